package repomanager

import (
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/redis/go-redis/v9"
)

// RedisRepositoryManager keeps users in PostgreSQL and refresh tokens in
// Redis. Refresh token writes do not take part in SQL transactions.
type RedisRepositoryManager struct {
	PostgresRepositoryManager
	tokens *refreshtokens.RedisRepository
}

func NewRedisRepositoryManager(rdb redis.UniversalClient, prefix string) *RedisRepositoryManager {
	return &RedisRepositoryManager{tokens: refreshtokens.NewRedisRepository(rdb, prefix)}
}

// RefreshTokens ignores db and returns the shared Redis repository.
func (m *RedisRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.tokens
}
