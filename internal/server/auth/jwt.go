// Package auth holds the stateless pieces of authentication: the token signer
// for access tokens and password reset codes, and the password policy.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultAccessTokenTTL = time.Hour
	DefaultResetCodeTTL   = 5 * time.Minute

	kindAccess = "access"
	kindReset  = "reset"
)

// Claims includes the registered claims plus the subject of the token:
// UserID for access tokens and Email for reset codes. Kind keeps the two
// token types from being accepted in place of one another.
type Claims struct {
	jwt.RegisteredClaims
	Kind   string `json:"kind"`
	UserID int64  `json:"uid,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Signer mints and verifies HS256 tokens with a single secret.
type Signer struct {
	secret    []byte
	accessTTL time.Duration
	resetTTL  time.Duration
	now       func() time.Time
}

type SignerOption func(*Signer)

// WithClock replaces time.Now for both signing and verification.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) { s.now = now }
}

// NewSigner returns common.ErrMissingSecret when secret is empty. Non-positive
// lifetimes fall back to the defaults.
func NewSigner(secret []byte, accessTTL, resetTTL time.Duration, opts ...SignerOption) (*Signer, error) {
	if len(secret) == 0 {
		return nil, common.ErrMissingSecret
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if resetTTL <= 0 {
		resetTTL = DefaultResetCodeTTL
	}

	s := &Signer{
		secret:    append([]byte(nil), secret...),
		accessTTL: accessTTL,
		resetTTL:  resetTTL,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Signer) sign(c Claims, ttl time.Duration) (string, error) {
	now := s.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// parse checks the signature first. Expiry is reported as
// common.ErrTokenExpired only for a token of the expected kind; everything
// else is common.ErrInvalidToken.
func (s *Signer) parse(tokenString, kind string, opts ...jwt.ParserOption) (*Claims, error) {
	claims := &Claims{}
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired) && claims.Kind == kind:
		return nil, common.ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: unexpected token kind %q", common.ErrInvalidToken, claims.Kind)
	}
	return claims, nil
}

// SignAccessToken returns an access token for userID that expires after the
// access lifetime.
func (s *Signer) SignAccessToken(userID int64) (string, error) {
	return s.sign(Claims{Kind: kindAccess, UserID: userID}, s.accessTTL)
}

// VerifyAccessToken checks signature and expiry and returns the embedded user id.
func (s *Signer) VerifyAccessToken(tokenString string) (int64, error) {
	c, err := s.parse(tokenString, kindAccess)
	if err != nil {
		return 0, err
	}
	return userIDFrom(c)
}

// DecodeAccessToken checks the signature and structure of an access token but
// ignores its expiry. Only refreshing an access token should use it.
func (s *Signer) DecodeAccessToken(tokenString string) (int64, error) {
	c, err := s.parse(tokenString, kindAccess, jwt.WithoutClaimsValidation())
	if err != nil {
		return 0, err
	}
	return userIDFrom(c)
}

// SignResetCode returns a password reset code for email that expires after
// the reset lifetime.
func (s *Signer) SignResetCode(email string) (string, error) {
	return s.sign(Claims{Kind: kindReset, Email: email}, s.resetTTL)
}

// VerifyResetCode checks signature and expiry and returns the embedded email.
func (s *Signer) VerifyResetCode(code string) (string, error) {
	c, err := s.parse(code, kindReset)
	if err != nil {
		return "", err
	}
	if c.Email == "" {
		return "", fmt.Errorf("%w: missing email", common.ErrInvalidToken)
	}
	return c.Email, nil
}

func userIDFrom(c *Claims) (int64, error) {
	if c.UserID <= 0 {
		return 0, fmt.Errorf("%w: missing user id", common.ErrInvalidToken)
	}
	return c.UserID, nil
}
