// Package admin implements the operator console: a single configured admin
// identity and the account-management endpoints it unlocks.
package admin

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the lifetime of an admin session token.
const TokenTTL = 24 * time.Hour

const adminRole = "admin"

// ErrInvalidCredentials is returned for any failed admin login.
var ErrInvalidCredentials = errors.New("invalid credentials")

var ErrInvalidToken = errors.New("invalid admin token")

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticator checks the admin password and issues HS256 session tokens.
type Authenticator struct {
	email        string
	passwordHash []byte
	secret       []byte
	now          func() time.Time
}

type Option func(*Authenticator)

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator builds an authenticator for one admin account. Admin
// access is disabled unless email, passwordHash and secret are all set.
func NewAuthenticator(email, passwordHash string, secret []byte, opts ...Option) *Authenticator {
	a := &Authenticator{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(passwordHash),
		secret:       secret,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether an admin identity and signing secret are configured.
func (a *Authenticator) Enabled() bool {
	return a.email != "" && len(a.passwordHash) > 0 && len(a.secret) > 0
}

// Login verifies the admin credentials and returns a signed token.
func (a *Authenticator) Login(email, password string) (string, error) {
	if !a.Enabled() {
		return "", ErrInvalidCredentials
	}
	given := strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(given), []byte(a.email)) == 1
	// Always run bcrypt so a wrong email costs the same as a wrong password.
	pwErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !emailOK || pwErr != nil {
		return "", ErrInvalidCredentials
	}
	return a.issueToken()
}

func (a *Authenticator) issueToken() (string, error) {
	now := a.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.email,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: adminRole,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(a.secret)
}

// ValidateToken checks signature, algorithm and expiry and returns the admin email.
func (a *Authenticator) ValidateToken(token string) (string, error) {
	if !a.Enabled() {
		return "", ErrInvalidToken
	}
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid || c.Role != adminRole || c.Subject != a.email {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
