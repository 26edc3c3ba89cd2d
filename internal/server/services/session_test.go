package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	aliceEmail = "a@x.com"
	aliceName  = "alice1"
	alicePwd   = "Str0ng!Pwd"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	svc    *SessionService
	st     *memStore
	clock  *testClock
	obs    *recordingObserver
	signer *auth.Signer
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	clock := &testClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	signer, err := auth.NewSigner([]byte(cfg.SecretKey), cfg.AccessTokenTTL, cfg.ResetCodeTTL, auth.WithClock(clock.Now))
	require.NoError(t, err)

	st := newMemStore()
	obs := &recordingObserver{}
	hasher := cryptox.NewArgon2Hasher(cryptox.Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	svc := NewSessionService(memTx{st: st}, memManager{st: st}, signer, hasher, cfg,
		WithClock(clock.Now), WithObserver(obs))

	return &testEnv{svc: svc, st: st, clock: clock, obs: obs, signer: signer}
}

func (e *testEnv) signupAlice(t *testing.T) *SignupResult {
	t.Helper()
	res, err := e.svc.Signup(context.Background(), aliceEmail, aliceName, alicePwd)
	require.NoError(t, err)
	return res
}

// tamper swaps the first character of the signature segment.
func tamper(token string) string {
	i := strings.LastIndex(token, ".") + 1
	c := byte('A')
	if token[i] == 'A' {
		c = 'B'
	}
	return token[:i] + string(c) + token[i+1:]
}

// requireFailure checks the error kind and the message a caller would see.
func requireFailure(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
	assert.Equal(t, msg, common.PublicMessage(err, "internal error"))
}

func TestSignup_ReturnsVerifiableTokens(t *testing.T) {
	e := newTestEnv(t)

	res := e.signupAlice(t)
	require.NotZero(t, res.ID)
	assert.NotEmpty(t, res.RefreshToken)

	id, err := e.signer.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.ID, id)

	assert.Equal(t, 1, e.st.tokenCount(res.ID))
	stored := e.st.users[res.ID]
	assert.NotContains(t, stored.PasswordHash, alicePwd)
	assert.Equal(t, "signup:ok", e.obs.last())
}

func TestSignup_PasswordRules(t *testing.T) {
	tests := []struct {
		name     string
		userName string
		password string
		msg      string
	}{
		{"too short", aliceName, "S0!a", MsgWeakPassword},
		{"no digit", aliceName, "Strong!Pwd", MsgWeakPassword},
		{"no special", aliceName, "Str0ngPwd1", MsgWeakPassword},
		{"part of name", "Str0ng!Pwd-fan", alicePwd, MsgWeakPassword},
		{"too long", aliceName, "Aa1!" + strings.Repeat("x", 97), MsgPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			_, err := e.svc.Signup(context.Background(), aliceEmail, tt.userName, tt.password)
			requireFailure(t, err, common.ErrorForbidden, tt.msg)
			assert.Empty(t, e.st.users)
		})
	}
}

func TestSignup_AlreadyTaken(t *testing.T) {
	e := newTestEnv(t)
	e.signupAlice(t)

	_, err := e.svc.Signup(context.Background(), aliceEmail, "bob22", "An0ther!Pwd")
	requireFailure(t, err, common.ErrorConflict, MsgAlreadyTaken)

	_, err = e.svc.Signup(context.Background(), "b@x.com", aliceName, "An0ther!Pwd")
	requireFailure(t, err, common.ErrorConflict, MsgAlreadyTaken)

	assert.Len(t, e.st.users, 1)
	assert.Len(t, e.st.tokens, 1)
	assert.Equal(t, "signup:conflict", e.obs.last())
}

func TestSignup_UserCeiling(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.MaxUsers = 1 })
	e.signupAlice(t)

	_, err := e.svc.Signup(context.Background(), "b@x.com", "bob22", "An0ther!Pwd")
	requireFailure(t, err, common.ErrorForbidden, MsgUserLimitReached)
}

func TestSignup_TokenFailureRollsBackUser(t *testing.T) {
	e := newTestEnv(t)
	e.st.fail["tokens.Create"] = errors.New("disk full")

	_, err := e.svc.Signup(context.Background(), aliceEmail, aliceName, alicePwd)
	requireFailure(t, err, common.ErrorInternal, "internal error")
	assert.Equal(t, "SESSION_INTERNAL", common.CodeOf(err))
	assert.NotContains(t, common.PublicMessage(err, "internal error"), "disk full")
	assert.Empty(t, e.st.users)
	assert.Equal(t, "signup:internal", e.obs.last())
}

func TestSignup_RollbackOnSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(aliceName, aliceEmail, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_blocked", "created_at"}).AddRow(7, false, time.Now()))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	cfg := testConfig()
	signer, err := auth.NewSigner([]byte(cfg.SecretKey), cfg.AccessTokenTTL, cfg.ResetCodeTTL)
	require.NoError(t, err)
	hasher := cryptox.NewArgon2Hasher(cryptox.Params{Time: 1, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	svc := NewSessionService(dbx.NewSQLDB(db, nil), repomanager.NewPostgresRepositoryManager(), signer, hasher, cfg)

	_, err = svc.Signup(context.Background(), aliceEmail, aliceName, alicePwd)
	assert.ErrorIs(t, err, common.ErrorInternal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_Success(t *testing.T) {
	e := newTestEnv(t)
	su := e.signupAlice(t)

	res, err := e.svc.Login(context.Background(), aliceEmail, alicePwd)
	require.NoError(t, err)
	assert.Equal(t, su.ID, res.ID)
	assert.Equal(t, aliceName, res.Name)
	assert.NotEqual(t, su.RefreshToken, res.RefreshToken)

	id, err := e.signer.VerifyAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, su.ID, id)
	assert.Equal(t, 2, e.st.tokenCount(su.ID))
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		block    bool
		msg      string
	}{
		{"unknown email", "missing@x.com", alicePwd, false, MsgInvalidCredentials},
		{"wrong password", aliceEmail, "Wr0ng!Pwd", false, MsgInvalidCredentials},
		{"too long", aliceEmail, strings.Repeat("A1!a", 26), false, MsgInvalidCredentials},
		{"blocked", aliceEmail, alicePwd, true, MsgAccountBlocked},
		{"blocked with wrong password", aliceEmail, "Wr0ng!Pwd", true, MsgInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			su := e.signupAlice(t)
			if tt.block {
				e.st.setBlocked(su.ID, true)
			}

			_, err := e.svc.Login(context.Background(), tt.email, tt.password)
			requireFailure(t, err, common.ErrorUnauthorized, tt.msg)
			assert.Equal(t, 1, e.st.tokenCount(su.ID))
			assert.Equal(t, "login:unauthorized", e.obs.last())
		})
	}
}

func TestLogin_StorageErrorIsInternal(t *testing.T) {
	e := newTestEnv(t)
	e.signupAlice(t)
	e.st.fail["users.GetByEmail"] = errors.New("conn refused")

	_, err := e.svc.Login(context.Background(), aliceEmail, alicePwd)
	requireFailure(t, err, common.ErrorInternal, "internal error")
}

func TestLogin_RefreshTokenCap(t *testing.T) {
	e := newTestEnv(t)
	su := e.signupAlice(t)

	seen := map[string]bool{su.RefreshToken: true}
	var last string
	for i := 1; i <= 100; i++ {
		res, err := e.svc.Login(context.Background(), aliceEmail, alicePwd)
		require.NoError(t, err)
		require.False(t, seen[res.RefreshToken], "login %d reused a token", i)
		seen[res.RefreshToken] = true
		last = res.RefreshToken
	}
	require.Equal(t, 101, e.st.tokenCount(su.ID))

	for i := 0; i < 3; i++ {
		res, err := e.svc.Login(context.Background(), aliceEmail, alicePwd)
		require.NoError(t, err)
		assert.Equal(t, last, res.RefreshToken)
	}
	assert.Equal(t, 101, e.st.tokenCount(su.ID))
}

func TestLogin_CapPrefersLatestExpiry(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.RefreshTokenCap = 1 })
	su := e.signupAlice(t)

	e.clock.Advance(time.Minute)
	second, err := e.svc.Login(context.Background(), aliceEmail, alicePwd)
	require.NoError(t, err)
	require.NotEqual(t, su.RefreshToken, second.RefreshToken)

	third, err := e.svc.Login(context.Background(), aliceEmail, alicePwd)
	require.NoError(t, err)
	assert.Equal(t, second.RefreshToken, third.RefreshToken)
}

func TestLogin_CapCountsOnlyLiveTokens(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) { c.RefreshTokenCap = 0 })
	su := e.signupAlice(t)

	e.clock.Advance(31 * 24 * time.Hour)
	res, err := e.svc.Login(context.Background(), aliceEmail, alicePwd)
	require.NoError(t, err)
	assert.NotEqual(t, su.RefreshToken, res.RefreshToken)
}

func TestRefreshAccessToken(t *testing.T) {
	e := newTestEnv(t)
	su := e.signupAlice(t)

	// expired access tokens are accepted
	e.clock.Advance(2 * time.Hour)
	_, err := e.signer.VerifyAccessToken(su.AccessToken)
	require.ErrorIs(t, err, common.ErrTokenExpired)

	token, err := e.svc.RefreshAccessToken(context.Background(), su.AccessToken, su.RefreshToken)
	require.NoError(t, err)
	id, err := e.signer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, su.ID, id)

	// the refresh token is neither rotated nor consumed
	_, err = e.svc.RefreshAccessToken(context.Background(), su.AccessToken, su.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, 1, e.st.tokenCount(su.ID))
}

func TestRefreshAccessToken_Failures(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signupAlice(t)
	bob, err := e.svc.Signup(context.Background(), "b@x.com", "bob22", "An0ther!Pwd")
	require.NoError(t, err)

	other, err := auth.NewSigner([]byte("other-secret"), time.Hour, time.Minute)
	require.NoError(t, err)
	forged, err := other.SignAccessToken(alice.ID)
	require.NoError(t, err)

	tampered := tamper(alice.AccessToken)

	_, err = e.svc.RefreshAccessToken(context.Background(), tampered, alice.RefreshToken)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidAccessToken)

	_, err = e.svc.RefreshAccessToken(context.Background(), forged, alice.RefreshToken)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidAccessToken)

	_, err = e.svc.RefreshAccessToken(context.Background(), alice.AccessToken, "deadbeef")
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidRefreshToken)

	// bob's refresh token cannot be used with alice's access token
	_, err = e.svc.RefreshAccessToken(context.Background(), alice.AccessToken, bob.RefreshToken)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidRefreshToken)

	e.clock.Advance(31 * 24 * time.Hour)
	_, err = e.svc.RefreshAccessToken(context.Background(), alice.AccessToken, alice.RefreshToken)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidRefreshToken)
}

func TestRefreshAccessToken_IgnoresAccountStanding(t *testing.T) {
	e := newTestEnv(t)
	su := e.signupAlice(t)
	e.st.setBlocked(su.ID, true)

	_, err := e.svc.RefreshAccessToken(context.Background(), su.AccessToken, su.RefreshToken)
	require.NoError(t, err)
}

func TestScenario_SignupLoginLogout(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.Signup(ctx, aliceEmail, aliceName, alicePwd)
	require.NoError(t, err)

	res, err := e.svc.Login(ctx, aliceEmail, alicePwd)
	require.NoError(t, err)

	require.NoError(t, e.svc.Logout(ctx, res.AccessToken))
	assert.Equal(t, "logout:ok", e.obs.last())

	_, err = e.svc.RefreshAccessToken(ctx, res.AccessToken, res.RefreshToken)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidRefreshToken)
}

func TestLogout_RequiresValidAccessToken(t *testing.T) {
	e := newTestEnv(t)
	su := e.signupAlice(t)

	err := e.svc.Logout(context.Background(), "not-a-token")
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidAccessToken)

	e.clock.Advance(time.Hour + time.Second)
	err = e.svc.Logout(context.Background(), su.AccessToken)
	requireFailure(t, err, common.ErrorUnauthorized, MsgAccessTokenExpired)

	assert.Equal(t, 1, e.st.tokenCount(su.ID))
}

func TestDeleteAccount(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	su := e.signupAlice(t)
	_, err := e.svc.Login(ctx, aliceEmail, alicePwd)
	require.NoError(t, err)

	require.NoError(t, e.svc.DeleteAccount(ctx, su.AccessToken))
	assert.Empty(t, e.st.users)
	assert.Zero(t, e.st.tokenCount(su.ID))

	_, err = e.svc.Login(ctx, aliceEmail, alicePwd)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidCredentials)

	// the access token outlives the account
	err = e.svc.DeleteAccount(ctx, su.AccessToken)
	requireFailure(t, err, common.ErrorNotFound, MsgUserNotFound)

	// name and email are free again
	_, err = e.svc.Signup(ctx, aliceEmail, aliceName, alicePwd)
	require.NoError(t, err)
}

func TestDeleteAccount_FailureKeepsTokens(t *testing.T) {
	e := newTestEnv(t)
	su := e.signupAlice(t)
	e.st.fail["users.Delete"] = errors.New("lock timeout")

	err := e.svc.DeleteAccount(context.Background(), su.AccessToken)
	requireFailure(t, err, common.ErrorInternal, "internal error")
	assert.Equal(t, 1, e.st.tokenCount(su.ID))
}

func TestDeleteAccount_ExpiredToken(t *testing.T) {
	e := newTestEnv(t)
	su := e.signupAlice(t)
	e.clock.Advance(2 * time.Hour)

	err := e.svc.DeleteAccount(context.Background(), su.AccessToken)
	requireFailure(t, err, common.ErrorUnauthorized, MsgAccessTokenExpired)
	assert.Len(t, e.st.users, 1)
}

func TestCheckOldPassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	su := e.signupAlice(t)

	ok, err := e.svc.CheckOldPassword(ctx, su.AccessToken, alicePwd)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.svc.CheckOldPassword(ctx, su.AccessToken, "Wr0ng!Pwd")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.svc.CheckOldPassword(ctx, su.AccessToken, strings.Repeat("x", 101))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.svc.CheckOldPassword(ctx, "garbage", alicePwd)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidAccessToken)

	delete(e.st.users, su.ID)
	_, err = e.svc.CheckOldPassword(ctx, su.AccessToken, alicePwd)
	requireFailure(t, err, common.ErrorNotFound, MsgUserNotFound)
}

func TestChangePassword_InvalidatesSessions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	su := e.signupAlice(t)
	login, err := e.svc.Login(ctx, aliceEmail, alicePwd)
	require.NoError(t, err)

	const newPwd = "N3w!Secret"
	require.NoError(t, e.svc.ChangePassword(ctx, su.AccessToken, alicePwd, newPwd))
	assert.Zero(t, e.st.tokenCount(su.ID))

	for _, rt := range []string{su.RefreshToken, login.RefreshToken} {
		_, err = e.svc.RefreshAccessToken(ctx, su.AccessToken, rt)
		requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidRefreshToken)
	}

	_, err = e.svc.Login(ctx, aliceEmail, alicePwd)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidCredentials)
	_, err = e.svc.Login(ctx, aliceEmail, newPwd)
	require.NoError(t, err)
}

func TestChangePassword_Failures(t *testing.T) {
	tests := []struct {
		name   string
		old    string
		new    string
		block  bool
		kind   error
		msg    string
		mutate func(e *testEnv)
	}{
		{name: "wrong old password", old: "Wr0ng!Pwd", new: "N3w!Secret", kind: common.ErrorUnauthorized, msg: MsgWrongPassword},
		{name: "weak new password", old: alicePwd, new: "weakweak", kind: common.ErrorForbidden, msg: MsgWeakPassword},
		{name: "new password too long", old: alicePwd, new: "Aa1!" + strings.Repeat("y", 97), kind: common.ErrorForbidden, msg: MsgPasswordTooLong},
		{name: "blocked", old: alicePwd, new: "N3w!Secret", block: true, kind: common.ErrorForbidden, msg: MsgAccountBlocked},
		{
			name: "storage failure", old: alicePwd, new: "N3w!Secret", kind: common.ErrorInternal, msg: "internal error",
			mutate: func(e *testEnv) { e.st.fail["tokens.DeleteForUser"] = errors.New("timeout") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			su := e.signupAlice(t)
			before := e.st.users[su.ID].PasswordHash
			if tt.block {
				e.st.setBlocked(su.ID, true)
			}
			if tt.mutate != nil {
				tt.mutate(e)
			}

			err := e.svc.ChangePassword(context.Background(), su.AccessToken, tt.old, tt.new)
			requireFailure(t, err, tt.kind, tt.msg)
			assert.Equal(t, before, e.st.users[su.ID].PasswordHash)
			assert.Equal(t, 1, e.st.tokenCount(su.ID))
		})
	}
}

func TestGetForgotPasswordCode(t *testing.T) {
	e := newTestEnv(t)
	e.signupAlice(t)

	code, err := e.svc.GetForgotPasswordCode(context.Background(), aliceEmail)
	require.NoError(t, err)
	email, err := e.signer.VerifyResetCode(code)
	require.NoError(t, err)
	assert.Equal(t, aliceEmail, email)
}

func TestGetForgotPasswordCode_Missing(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.GetForgotPasswordCode(context.Background(), "missing@x.com")
	requireFailure(t, err, common.ErrorNotFound, MsgUserNotFound)
	assert.Equal(t, "forgot_password:not_found", e.obs.last())
}

func TestResetPassword_CodeUsableTwice(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	su := e.signupAlice(t)

	code, err := e.svc.GetForgotPasswordCode(ctx, aliceEmail)
	require.NoError(t, err)

	first, err := e.svc.ResetPassword(ctx, code)
	require.NoError(t, err)
	assert.True(t, auth.IsValidPassword(aliceName, aliceEmail, first))
	assert.Zero(t, e.st.tokenCount(su.ID))

	second, err := e.svc.ResetPassword(ctx, code)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = e.svc.Login(ctx, aliceEmail, first)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidCredentials)
	_, err = e.svc.Login(ctx, aliceEmail, second)
	require.NoError(t, err)
}

func TestResetPassword_Failures(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	su := e.signupAlice(t)

	code, err := e.svc.GetForgotPasswordCode(ctx, aliceEmail)
	require.NoError(t, err)

	_, err = e.svc.ResetPassword(ctx, "not-a-code")
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidResetCode)

	// an access token is not a reset code
	_, err = e.svc.ResetPassword(ctx, su.AccessToken)
	requireFailure(t, err, common.ErrorUnauthorized, MsgInvalidResetCode)

	e.clock.Advance(6 * time.Minute)
	_, err = e.svc.ResetPassword(ctx, code)
	requireFailure(t, err, common.ErrorForbidden, MsgResetCodeExpired)

	fresh, err := e.svc.GetForgotPasswordCode(ctx, aliceEmail)
	require.NoError(t, err)
	delete(e.st.users, su.ID)
	_, err = e.svc.ResetPassword(ctx, fresh)
	requireFailure(t, err, common.ErrorNotFound, MsgUserNotFound)
}

func TestObserver_ReportsOutcomes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	su := e.signupAlice(t)

	_, _ = e.svc.Login(ctx, aliceEmail, "Wr0ng!Pwd")
	_, _ = e.svc.RefreshAccessToken(ctx, su.AccessToken, su.RefreshToken)
	_, _ = e.svc.CheckOldPassword(ctx, su.AccessToken, alicePwd)
	_ = e.svc.DeleteAccount(ctx, su.AccessToken)

	assert.Equal(t, []string{
		"signup:ok",
		"login:unauthorized",
		"refresh:ok",
		"check_password:ok",
		"delete_account:ok",
	}, e.obs.got)
}
