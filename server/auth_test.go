package main

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokens() (*Tokens, *testClock) {
	clock := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	tokens := NewTokens("test-secret", time.Hour)
	tokens.now = clock.Now
	return tokens, clock
}

func TestTokenRoundTrip(t *testing.T) {
	tokens, _ := newTestTokens()

	tok, err := tokens.Issue("mediaA")
	require.NoError(t, err)

	user, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "mediaA", user)
}

func TestTokenExpiry(t *testing.T) {
	tokens, clock := newTestTokens()
	tok, err := tokens.Issue("mediaA")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = tokens.Verify(tok)
	assert.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = tokens.Verify(tok)
	assert.Equal(t, errTokenExpired, err)
}

func TestTokenFromOtherKeyIsRejected(t *testing.T) {
	tokens, _ := newTestTokens()
	other := NewTokens("other-secret", time.Hour)
	other.now = tokens.now

	tok, err := other.Issue("mediaA")
	require.NoError(t, err)
	_, err = tokens.Verify(tok)
	assert.Equal(t, errTokenExpired, err)
}

func TestTokenWithoutExpiryIsRejected(t *testing.T) {
	tokens, _ := newTestTokens()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "mediaA"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tokens.Verify(tok)
	assert.Equal(t, errTokenExpired, err)
}

func TestRevoke(t *testing.T) {
	tokens, _ := newTestTokens()
	a, _ := tokens.Issue("mediaA")
	b, _ := tokens.Issue("mediaA")
	c, _ := tokens.Issue("klubX")

	tokens.Revoke(a)
	_, err := tokens.Verify(a)
	assert.Error(t, err)
	_, err = tokens.Verify(b)
	assert.NoError(t, err)

	assert.Equal(t, 1, tokens.RevokeUser("mediaA"))
	_, err = tokens.Verify(b)
	assert.Error(t, err)
	_, err = tokens.Verify(c)
	assert.NoError(t, err)

	tokens.Revoke("not a token")
}

func TestIssuePrunesExpired(t *testing.T) {
	tokens, clock := newTestTokens()
	tokens.Issue("mediaA")
	clock.Advance(2 * time.Hour)
	tokens.Issue("klubX")

	assert.Len(t, tokens.live, 1)
}
