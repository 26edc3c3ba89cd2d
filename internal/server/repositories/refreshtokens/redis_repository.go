package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps refresh tokens in Redis:
//
//	<prefix>:token:<token>  hash {user_id, expires_at, created_at, seq}, expires with the token
//	<prefix>:user:<id>      sorted set of tokens scored by expiration (unix ms)
//	<prefix>:users          set of user ids that own tokens
//	<prefix>:seq            insertion counter
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "rt"
	}
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisRepository) tokenKey(token string) string { return r.prefix + ":token:" + token }
func (r *RedisRepository) userKey(userID int64) string {
	return r.prefix + ":user:" + strconv.FormatInt(userID, 10)
}
func (r *RedisRepository) usersKey() string { return r.prefix + ":users" }
func (r *RedisRepository) seqKey() string   { return r.prefix + ":seq" }

func storeError(err error) error {
	return fmt.Errorf("redis error: %w", err)
}

// createScript stores the hash, its TTL and the set entries in one step.
// KEYS: token, user set, users, seq. ARGV: user id, expires ms, created ms, token.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local seq = redis.call('INCR', KEYS[4])
redis.call('HSET', KEYS[1], 'user_id', ARGV[1], 'expires_at', ARGV[2], 'created_at', ARGV[3], 'seq', seq)
redis.call('PEXPIREAT', KEYS[1], ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[4])
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// deleteScript drops every token of a user together with the user set.
// KEYS: user set, users. ARGV: token key prefix, user id.
var deleteScript = redis.NewScript(`
local tokens = redis.call('ZRANGE', KEYS[1], 0, -1)
for _, t in ipairs(tokens) do
	redis.call('DEL', ARGV[1] .. t)
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[2])
return #tokens
`)

func (r *RedisRepository) Create(ctx context.Context, userID int64, token string, expires time.Time) error {
	keys := []string{r.tokenKey(token), r.userKey(userID), r.usersKey(), r.seqKey()}
	created, err := createScript.Run(ctx, r.rdb, keys,
		userID, expires.UnixMilli(), time.Now().UnixMilli(), token,
	).Int()
	if err != nil {
		return storeError(err)
	}
	if created == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *RedisRepository) load(ctx context.Context, token string) (*models.RefreshToken, error) {
	vals, err := r.rdb.HGetAll(ctx, r.tokenKey(token)).Result()
	if err != nil {
		return nil, storeError(err)
	}
	if len(vals) == 0 {
		return nil, common.ErrorNotFound
	}

	userID, err1 := strconv.ParseInt(vals["user_id"], 10, 64)
	expires, err2 := strconv.ParseInt(vals["expires_at"], 10, 64)
	seq, err3 := strconv.ParseInt(vals["seq"], 10, 64)
	created, _ := strconv.ParseInt(vals["created_at"], 10, 64)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, common.ErrorNotFound
	}

	return &models.RefreshToken{
		ID:        seq,
		UserID:    userID,
		Token:     token,
		Expires:   time.UnixMilli(expires),
		CreatedAt: time.UnixMilli(created),
	}, nil
}

func (r *RedisRepository) Find(ctx context.Context, token string, userID int64, now time.Time) (*models.RefreshToken, error) {
	t, err := r.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID || !t.Expires.After(now) {
		return nil, common.ErrorNotFound
	}

	// a token missing from the user set has been revoked
	err = r.rdb.ZScore(ctx, r.userKey(userID), token).Err()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	return t, nil
}

func liveMin(now time.Time) string {
	return "(" + strconv.FormatInt(now.UnixMilli(), 10)
}

func (r *RedisRepository) FindNewest(ctx context.Context, userID int64, now time.Time) (*models.RefreshToken, error) {
	uk := r.userKey(userID)

	top, err := r.rdb.ZRevRangeByScoreWithScores(ctx, uk, &redis.ZRangeBy{
		Max: "+inf", Min: liveMin(now), Count: 1,
	}).Result()
	if err != nil {
		return nil, storeError(err)
	}
	if len(top) == 0 {
		return nil, common.ErrorNotFound
	}

	score := strconv.FormatFloat(top[0].Score, 'f', -1, 64)
	ties, err := r.rdb.ZRangeByScore(ctx, uk, &redis.ZRangeBy{Min: score, Max: score}).Result()
	if err != nil {
		return nil, storeError(err)
	}

	var newest *models.RefreshToken
	for _, token := range ties {
		t, err := r.load(ctx, token)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if newest == nil || t.ID > newest.ID {
			newest = t
		}
	}
	if newest == nil {
		return nil, common.ErrorNotFound
	}
	return newest, nil
}

func (r *RedisRepository) CountForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	n, err := r.rdb.ZCount(ctx, r.userKey(userID), liveMin(now), "+inf").Result()
	if err != nil {
		return 0, storeError(err)
	}
	return n, nil
}

func (r *RedisRepository) DeleteForUser(ctx context.Context, userID int64) error {
	keys := []string{r.userKey(userID), r.usersKey()}
	if err := deleteScript.Run(ctx, r.rdb, keys, r.prefix+":token:", userID).Err(); err != nil {
		return storeError(err)
	}
	return nil
}

func (r *RedisRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ids, err := r.rdb.SMembers(ctx, r.usersKey()).Result()
	if err != nil {
		return 0, storeError(err)
	}

	upTo := strconv.FormatInt(now.UnixMilli(), 10)
	var purged int64
	for _, id := range ids {
		uk := r.prefix + ":user:" + id

		expired, err := r.rdb.ZRangeByScore(ctx, uk, &redis.ZRangeBy{Min: "-inf", Max: upTo}).Result()
		if err != nil {
			return purged, storeError(err)
		}
		if len(expired) == 0 {
			continue
		}

		keys := make([]string, 0, len(expired))
		members := make([]any, 0, len(expired))
		for _, t := range expired {
			keys = append(keys, r.tokenKey(t))
			members = append(members, t)
		}

		var left *redis.IntCmd
		_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, uk, members...)
			left = pipe.ZCard(ctx, uk)
			return nil
		})
		if err != nil {
			return purged, storeError(err)
		}
		purged += int64(len(expired))

		if left.Val() == 0 {
			if err := r.rdb.SRem(ctx, r.usersKey(), id).Err(); err != nil {
				return purged, storeError(err)
			}
		}
	}
	return purged, nil
}
