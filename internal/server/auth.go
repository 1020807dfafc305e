// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/starmind/starmind-tui/internal/config"
)

// =============================================================================
// AUTH
// =============================================================================

// DefaultTokenTTL applies when the configured TTL is not positive.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidCredentials is returned for a wrong user, password or code.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Auth checks credentials and issues session tokens for the single
// configured user.
type Auth struct {
	enabled    bool
	user       string
	hash       []byte
	totpSecret string
	secret     []byte
	ttl        time.Duration
	now        func() time.Time

	// valid holds every issued, unrevoked token.
	valid *cache.Cache
}

// NewAuth builds the authenticator. The password is hashed with bcrypt at
// the given cost; an empty JWT secret is replaced by 32 random bytes.
func NewAuth(cfg config.ServeConfig, bcryptCost int) (*Auth, error) {
	ttl := time.Duration(cfg.TokenTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}

	a := &Auth{
		enabled:    cfg.AuthEnabled,
		user:       cfg.User,
		totpSecret: cfg.TOTPSecret,
		ttl:        ttl,
		now:        time.Now,
		valid:      cache.New(ttl, 10*time.Minute),
	}
	if !a.enabled {
		return a, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	a.hash = hash

	if cfg.JWTSecret != "" {
		a.secret = []byte(cfg.JWTSecret)
	} else {
		a.secret = make([]byte, 32)
		if _, err := rand.Read(a.secret); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
	}
	return a, nil
}

// Enabled reports whether requests need a session.
func (a *Auth) Enabled() bool { return a.enabled }

// TTL returns the session lifetime.
func (a *Auth) TTL() time.Duration { return a.ttl }

// RequiresCode reports whether a one-time code is part of login.
func (a *Auth) RequiresCode() bool { return a.totpSecret != "" }

// CheckCredentials verifies user, password and, when configured, the TOTP
// code.
func (a *Auth) CheckCredentials(user, password, code string) error {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	if a.totpSecret != "" && !totp.Validate(code, a.totpSecret) {
		return ErrInvalidCredentials
	}
	return nil
}

// Issue signs a new session token and marks it valid.
func (a *Auth) Issue() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   a.user,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	a.valid.Set(token, struct{}{}, a.ttl)
	return token, nil
}

// Validate reports whether token is a live session. With auth disabled
// every request is accepted.
func (a *Auth) Validate(token string) bool {
	if !a.enabled {
		return true
	}
	if token == "" {
		return false
	}
	if _, ok := a.valid.Get(token); !ok {
		return false
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{},
		func(*jwt.Token) (interface{}, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	return err == nil && parsed.Valid
}

// Revoke invalidates token.
func (a *Auth) Revoke(token string) {
	if token != "" {
		a.valid.Delete(token)
	}
}
