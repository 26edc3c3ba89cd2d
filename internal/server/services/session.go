// Package services contains server-side business logic. This file implements
// SessionService: signup, login, token refresh, logout, account deletion,
// password change and the forgot-password flow.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// TokenSigner mints and checks access tokens and reset codes.
type TokenSigner interface {
	SignAccessToken(userID int64) (string, error)
	VerifyAccessToken(token string) (int64, error)
	DecodeAccessToken(token string) (int64, error)
	SignResetCode(email string) (string, error)
	VerifyResetCode(code string) (string, error)
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Observer receives the outcome of every operation.
type Observer interface {
	ObserveOperation(operation, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}

// SignupResult is returned by Signup.
type SignupResult struct {
	ID           int64
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by Login.
type LoginResult struct {
	ID           int64
	Name         string
	AccessToken  string
	RefreshToken string
}

// SessionService orchestrates the credential store, the refresh token store
// and the token signer.
type SessionService struct {
	db              dbx.TxDB
	repomanager     repomanager.RepositoryManager
	signer          TokenSigner
	hasher          PasswordHasher
	refreshTokenTTL time.Duration
	refreshTokenCap int64
	maxUsers        int64
	resetPwdLength  int
	now             func() time.Time
	observer        Observer

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*SessionService)

func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func WithObserver(o Observer) Option {
	return func(s *SessionService) { s.observer = o }
}

// NewSessionService constructs a SessionService using repositories and
// server config.
func NewSessionService(db dbx.TxDB, m repomanager.RepositoryManager, signer TokenSigner, hasher PasswordHasher, cfg *config.Config, opts ...Option) *SessionService {
	s := &SessionService{
		db:              db,
		repomanager:     m,
		signer:          signer,
		hasher:          hasher,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		refreshTokenCap: cfg.RefreshTokenCap,
		maxUsers:        cfg.MaxUsers,
		resetPwdLength:  cfg.ResetPasswordLength,
		now:             time.Now,
		observer:        nopObserver{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SessionService) observe(op string, err *error) {
	s.observer.ObserveOperation(op, common.KindLabel(*err))
}

// Signup creates a user and opens its first session.
func (s *SessionService) Signup(ctx context.Context, email, name, password string) (res *SignupResult, err error) {
	const op = "signup"
	defer s.observe(op, &err)

	if auth.TooLong(password) {
		return nil, errPasswordTooLong()
	}
	if !auth.IsValidPassword(name, email, password) {
		return nil, errWeakPassword()
	}

	count, err := s.repomanager.Users(s.db).Count(ctx)
	if err != nil {
		return nil, internal(op, err)
	}
	if count >= s.maxUsers {
		return nil, errUserLimitReached()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internal(op, err)
	}

	now := s.now()
	err = s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).Create(ctx, &models.User{Name: name, Email: email, PasswordHash: hash})
		if errors.Is(err, common.ErrorAlreadyExists) {
			return errAlreadyTaken()
		}
		if err != nil {
			return internal(op, err)
		}

		refresh, err := s.createRefreshToken(ctx, tx, u.ID, now)
		if err != nil {
			return internal(op, err)
		}
		access, err := s.signer.SignAccessToken(u.ID)
		if err != nil {
			return internal(op, err)
		}

		res = &SignupResult{ID: u.ID, AccessToken: access, RefreshToken: refresh}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Login checks credentials and returns a new access token together with a
// refresh token.
func (s *SessionService) Login(ctx context.Context, email, password string) (res *LoginResult, err error) {
	const op = "login"
	defer s.observe(op, &err)

	if auth.TooLong(password) {
		return nil, errInvalidCredentials()
	}

	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		// same work as a real check so timing does not reveal the account
		_, _ = s.hasher.Verify(password, s.dummy())
		return nil, errInvalidCredentials()
	}
	if err != nil {
		return nil, internal(op, err)
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return nil, internal(op, err)
	}
	if !ok {
		return nil, errInvalidCredentials()
	}
	if u.IsBlocked {
		return nil, errLoginBlocked()
	}

	access, err := s.signer.SignAccessToken(u.ID)
	if err != nil {
		return nil, internal(op, err)
	}
	refresh, err := s.obtainRefreshToken(ctx, u.ID)
	if err != nil {
		return nil, internal(op, err)
	}

	return &LoginResult{ID: u.ID, Name: u.Name, AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token. The
// access token may be expired but must carry a valid signature. Account
// standing is not re-checked.
func (s *SessionService) RefreshAccessToken(ctx context.Context, accessToken, refreshToken string) (token string, err error) {
	const op = "refresh"
	defer s.observe(op, &err)

	userID, err := s.signer.DecodeAccessToken(accessToken)
	if err != nil {
		return "", errInvalidAccessToken()
	}

	_, err = s.repomanager.RefreshTokens(s.db).Find(ctx, refreshToken, userID, s.now())
	if errors.Is(err, common.ErrorNotFound) {
		return "", errInvalidRefreshToken()
	}
	if err != nil {
		return "", internal(op, err)
	}

	token, err = s.signer.SignAccessToken(userID)
	if err != nil {
		return "", internal(op, err)
	}
	return token, nil
}

// Logout ends every session of the token's user.
func (s *SessionService) Logout(ctx context.Context, accessToken string) (err error) {
	const op = "logout"
	defer s.observe(op, &err)

	userID, err := s.authenticate(accessToken)
	if err != nil {
		return err
	}

	if err := s.repomanager.RefreshTokens(s.db).DeleteForUser(ctx, userID); err != nil {
		return internal(op, err)
	}
	return nil
}

// DeleteAccount removes the token's user together with its refresh tokens.
func (s *SessionService) DeleteAccount(ctx context.Context, accessToken string) (err error) {
	const op = "delete_account"
	defer s.observe(op, &err)

	userID, err := s.authenticate(accessToken)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).DeleteForUser(ctx, userID); err != nil {
			return internal(op, err)
		}
		err := s.repomanager.Users(tx).Delete(ctx, userID)
		if errors.Is(err, common.ErrorNotFound) {
			return errUserNotFound()
		}
		if err != nil {
			return internal(op, err)
		}
		return nil
	})
}

// CheckOldPassword reports whether password is the current password of the
// token's user.
func (s *SessionService) CheckOldPassword(ctx context.Context, accessToken, password string) (ok bool, err error) {
	const op = "check_password"
	defer s.observe(op, &err)

	userID, err := s.authenticate(accessToken)
	if err != nil {
		return false, err
	}

	u, err := s.getUser(ctx, op, userID)
	if err != nil {
		return false, err
	}
	if auth.TooLong(password) {
		return false, nil
	}

	ok, err = s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return false, internal(op, err)
	}
	return ok, nil
}

// ChangePassword replaces the password of the token's user and ends all of
// its sessions.
func (s *SessionService) ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) (err error) {
	const op = "change_password"
	defer s.observe(op, &err)

	userID, err := s.authenticate(accessToken)
	if err != nil {
		return err
	}

	u, err := s.getUser(ctx, op, userID)
	if err != nil {
		return err
	}
	if u.IsBlocked {
		return errChangeBlocked()
	}

	if auth.TooLong(oldPassword) {
		return errWrongPassword()
	}
	ok, err := s.hasher.Verify(oldPassword, u.PasswordHash)
	if err != nil {
		return internal(op, err)
	}
	if !ok {
		return errWrongPassword()
	}

	if auth.TooLong(newPassword) {
		return errPasswordTooLong()
	}
	if !auth.IsValidPassword(u.Name, u.Email, newPassword) {
		return errWeakPassword()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internal(op, err)
	}
	return s.replacePassword(ctx, op, u.ID, hash)
}

// GetForgotPasswordCode returns a short-lived reset code for the account
// registered with email.
func (s *SessionService) GetForgotPasswordCode(ctx context.Context, email string) (code string, err error) {
	const op = "forgot_password"
	defer s.observe(op, &err)

	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return "", errUserNotFound()
	}
	if err != nil {
		return "", internal(op, err)
	}

	code, err = s.signer.SignResetCode(u.Email)
	if err != nil {
		return "", internal(op, err)
	}
	return code, nil
}

// ResetPassword sets a generated password for the account named by code,
// ends all of its sessions and returns the new plaintext password. A code
// stays usable until it expires.
func (s *SessionService) ResetPassword(ctx context.Context, code string) (password string, err error) {
	const op = "reset_password"
	defer s.observe(op, &err)

	email, err := s.signer.VerifyResetCode(code)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrTokenExpired):
		return "", errResetCodeExpired()
	case errors.Is(err, common.ErrInvalidToken):
		return "", errInvalidResetCode()
	default:
		return "", internal(op, err)
	}

	u, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return "", errUserNotFound()
	}
	if err != nil {
		return "", internal(op, err)
	}

	password, err = cryptox.GeneratePassword(s.resetPwdLength)
	if err != nil {
		return "", internal(op, err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", internal(op, err)
	}
	if err := s.replacePassword(ctx, op, u.ID, hash); err != nil {
		return "", err
	}
	return password, nil
}

// authenticate requires a currently valid access token.
func (s *SessionService) authenticate(accessToken string) (int64, error) {
	userID, err := s.signer.VerifyAccessToken(accessToken)
	switch {
	case err == nil:
		return userID, nil
	case errors.Is(err, common.ErrTokenExpired):
		return 0, errAccessTokenExpired()
	default:
		return 0, errInvalidAccessToken()
	}
}

func (s *SessionService) getUser(ctx context.Context, op string, userID int64) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, errUserNotFound()
	}
	if err != nil {
		return nil, internal(op, err)
	}
	return u, nil
}

// replacePassword stores hash and drops every refresh token of the user in
// one transaction.
func (s *SessionService) replacePassword(ctx context.Context, op string, userID int64, hash string) error {
	return s.db.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.repomanager.Users(tx).UpdatePasswordHash(ctx, userID, hash)
		if errors.Is(err, common.ErrorNotFound) {
			return errUserNotFound()
		}
		if err != nil {
			return internal(op, err)
		}
		if err := s.repomanager.RefreshTokens(tx).DeleteForUser(ctx, userID); err != nil {
			return internal(op, err)
		}
		return nil
	})
}

func (s *SessionService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *SessionService) createRefreshToken(ctx context.Context, db dbx.DBTX, userID int64, now time.Time) (string, error) {
	token, err := s.generateRefreshToken()
	if err != nil {
		return "", err
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, userID, token, now.Add(s.refreshTokenTTL)); err != nil {
		return "", err
	}
	return token, nil
}

// obtainRefreshToken creates a new refresh token while the user holds no
// more than refreshTokenCap live ones, and otherwise hands back the newest
// existing token. Concurrent logins may overshoot the cap slightly.
func (s *SessionService) obtainRefreshToken(ctx context.Context, userID int64) (string, error) {
	repo := s.repomanager.RefreshTokens(s.db)
	now := s.now()

	count, err := repo.CountForUser(ctx, userID, now)
	if err != nil {
		return "", err
	}
	if count <= s.refreshTokenCap {
		return s.createRefreshToken(ctx, s.db, userID, now)
	}

	newest, err := repo.FindNewest(ctx, userID, now)
	if errors.Is(err, common.ErrorNotFound) {
		// every token expired since the count
		return s.createRefreshToken(ctx, s.db, userID, now)
	}
	if err != nil {
		return "", err
	}
	return newest.Token, nil
}

// dummy returns a hash verified against when the email is unknown.
func (s *SessionService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("timing-equalizer-Passw0rd!")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
