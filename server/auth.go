package main

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// errTokenExpired covers every token that can no longer be used: past its
// expiry, revoked, malformed or signed with another key.
var errTokenExpired = errors.New("token expired")

type tokenInfo struct {
	username string
	expires  time.Time
}

// Tokens issues and checks HS256 tokens. A token is only honoured while its
// id is in the live set, so LOGOUT and the console can revoke it.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu   sync.Mutex
	live map[string]tokenInfo // jti -> owner
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		live:   make(map[string]tokenInfo),
	}
}

func (t *Tokens) Issue(username string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)
	t.live[claims.ID] = tokenInfo{username: username, expires: claims.ExpiresAt.Time}
	return signed, nil
}

// Verify returns the username the token was issued to.
func (t *Tokens) Verify(token string) (string, error) {
	claims, err := t.parse(token)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.live[claims.ID]
	if !ok || info.username != claims.Subject {
		return "", errTokenExpired
	}
	return claims.Subject, nil
}

// Revoke invalidates one token. Revoking an unusable token is not an error.
func (t *Tokens) Revoke(token string) {
	claims, err := t.parse(token)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, claims.ID)
}

// RevokeUser invalidates every token of username and returns how many.
func (t *Tokens) RevokeUser(username string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, info := range t.live {
		if info.username == username {
			delete(t.live, id)
			n++
		}
	}
	return n
}

func (t *Tokens) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			logrus.WithFields(logrus.Fields{
				"function": "parse",
				"error":    err.Error(),
			}).Debug("Rejected token")
		}
		return nil, errTokenExpired
	}
	return claims, nil
}

func (t *Tokens) pruneLocked(now time.Time) {
	for id, info := range t.live {
		if !info.expires.After(now) {
			delete(t.live, id)
		}
	}
}
