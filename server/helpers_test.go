package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/puyokura/pssichat/model"
	"github.com/stretchr/testify/require"
)

// testClock is a settable time source.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store    *Store
	tokens   *Tokens
	presence *memoryPresence
	server   *Server
	clock    *testClock
}

// newFixture returns a backend with three accounts, all with password
// "secret".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	clock := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

	store := NewStore(filepath.Join(dir, "users.json"), filepath.Join(dir, "messages.json"))
	for _, u := range []struct {
		name string
		role model.Role
	}{
		{"pusat1", model.RolePusat},
		{"mediaA", model.RoleMedia},
		{"klubX", model.Role("ADMIN_KLUB_PERSIB")},
	} {
		_, err := store.RegisterUser(u.name, "secret", u.role, "")
		require.NoError(t, err)
	}

	tokens := NewTokens("test-secret", time.Hour)
	tokens.now = clock.Now

	presence := newMemoryPresence(30 * time.Second)
	presence.now = clock.Now

	server := NewServer(store, tokens, presence)
	server.now = clock.Now

	return &fixture{store: store, tokens: tokens, presence: presence, server: server, clock: clock}
}

func (f *fixture) call(t *testing.T, action model.Action, payload interface{}) model.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return f.server.Handle(context.Background(), model.Request{ID: 7, Action: action, PostData: string(data)})
}

func (f *fixture) login(t *testing.T, user string) string {
	t.Helper()
	resp := f.call(t, model.ActionLogin, model.LoginPayload{Username: user, Password: "secret"})
	require.Equal(t, model.StatusSuccess, resp.Status, resp.Message)
	return resp.Token
}
