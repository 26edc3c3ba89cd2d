package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// memStore backs the in-memory repositories. fail maps a method name such as
// "tokens.Create" to the error it should return.
type memStore struct {
	mu         sync.Mutex
	users      map[int64]models.User
	tokens     []models.RefreshToken
	nextUserID int64
	nextToken  int64
	fail       map[string]error
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]models.User{}, fail: map[string]error{}}
}

func (s *memStore) injected(name string) error {
	return s.fail[name]
}

func (s *memStore) liveTokens(userID int64, now time.Time) []models.RefreshToken {
	var out []models.RefreshToken
	for _, t := range s.tokens {
		if t.UserID == userID && t.Expires.After(now) {
			out = append(out, t)
		}
	}
	return out
}

func (s *memStore) tokenCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func (s *memStore) setBlocked(id int64, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[id]
	u.IsBlocked = blocked
	s.users[id] = u
}

// --- users.Repository ---

type memUsers struct{ st *memStore }

var _ users.Repository = memUsers{}

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("users.Create"); err != nil {
		return nil, err
	}
	for _, e := range r.st.users {
		if e.Email == u.Email || e.Name == u.Name {
			return nil, common.ErrorAlreadyExists
		}
	}
	r.st.nextUserID++
	u.ID = r.st.nextUserID
	u.CreatedAt = time.Now()
	r.st.users[u.ID] = *u
	return u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.st.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("users.UpdatePasswordHash"); err != nil {
		return err
	}
	u, ok := r.st.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	r.st.users[id] = u
	return nil
}

func (r memUsers) Delete(_ context.Context, id int64) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("users.Delete"); err != nil {
		return err
	}
	if _, ok := r.st.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.st.users, id)
	return nil
}

func (r memUsers) Count(context.Context) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("users.Count"); err != nil {
		return 0, err
	}
	return int64(len(r.st.users)), nil
}

// --- refreshtokens.Repository ---

type memTokens struct{ st *memStore }

var _ refreshtokens.Repository = memTokens{}

func (r memTokens) Create(_ context.Context, userID int64, token string, expires time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("tokens.Create"); err != nil {
		return err
	}
	for _, t := range r.st.tokens {
		if t.Token == token {
			return common.ErrorAlreadyExists
		}
	}
	r.st.nextToken++
	r.st.tokens = append(r.st.tokens, models.RefreshToken{
		ID: r.st.nextToken, UserID: userID, Token: token, Expires: expires,
	})
	return nil
}

func (r memTokens) Find(_ context.Context, token string, userID int64, now time.Time) (*models.RefreshToken, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, t := range r.st.liveTokens(userID, now) {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memTokens) FindNewest(_ context.Context, userID int64, now time.Time) (*models.RefreshToken, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	live := r.st.liveTokens(userID, now)
	if len(live) == 0 {
		return nil, common.ErrorNotFound
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].Expires.Equal(live[j].Expires) {
			return live[i].Expires.After(live[j].Expires)
		}
		return live[i].ID > live[j].ID
	})
	return &live[0], nil
}

func (r memTokens) CountForUser(_ context.Context, userID int64, now time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("tokens.CountForUser"); err != nil {
		return 0, err
	}
	return int64(len(r.st.liveTokens(userID, now))), nil
}

func (r memTokens) DeleteForUser(_ context.Context, userID int64) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("tokens.DeleteForUser"); err != nil {
		return err
	}
	kept := r.st.tokens[:0]
	for _, t := range r.st.tokens {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	r.st.tokens = kept
	return nil
}

func (r memTokens) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if err := r.st.injected("tokens.PurgeExpired"); err != nil {
		return 0, err
	}
	var n int64
	kept := r.st.tokens[:0]
	for _, t := range r.st.tokens {
		if t.Expires.After(now) {
			kept = append(kept, t)
		} else {
			n++
		}
	}
	r.st.tokens = kept
	return n, nil
}

// --- manager and transactor ---

type memManager struct{ st *memStore }

func (m memManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m memManager) Users(dbx.DBTX) users.Repository                 { return memUsers{m.st} }
func (m memManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return memTokens{m.st} }

// memTx restores the store snapshot when fn fails, like a rollback.
type memTx struct {
	dbx.DBTX
	st *memStore
}

func (m memTx) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.st.mu.Lock()
	snap := make(map[int64]models.User, len(m.st.users))
	for k, v := range m.st.users {
		snap[k] = v
	}
	tokens := append([]models.RefreshToken(nil), m.st.tokens...)
	m.st.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.st.mu.Lock()
		m.st.users = snap
		m.st.tokens = tokens
		m.st.mu.Unlock()
		return err
	}
	return nil
}

// --- observer ---

type recordingObserver struct {
	mu  sync.Mutex
	got []string
}

func (o *recordingObserver) ObserveOperation(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, op+":"+outcome)
}

func (o *recordingObserver) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.got) == 0 {
		return ""
	}
	return o.got[len(o.got)-1]
}
