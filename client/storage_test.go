package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/puyokura/pssichat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	storage := NewLocalStorage(path)
	require.NoError(t, storage.Load())
	sessions := NewSessions(storage)
	assert.Nil(t, sessions.Current())

	sess := model.Session{Token: "abc", User: model.Identity{Username: "pusat1", Role: model.RolePusat}}
	require.NoError(t, sessions.Save(sess))

	reloaded := NewLocalStorage(path)
	require.NoError(t, reloaded.Load())
	raw, ok := reloaded.Get(sessionKey)
	require.True(t, ok)
	assert.Contains(t, raw, `"tipeUser":"ADMIN_PUSAT"`)

	restored := NewSessions(reloaded).Current()
	require.NotNil(t, restored)
	assert.Equal(t, sess, *restored)
}

func TestSessionClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	storage := NewLocalStorage(path)
	require.NoError(t, storage.Set("other", "kept"))

	sessions := NewSessions(storage)
	require.NoError(t, sessions.Save(model.Session{Token: "abc", User: model.Identity{Username: "klubX"}}))
	require.NoError(t, sessions.Clear())
	assert.Nil(t, sessions.Current())

	reloaded := NewLocalStorage(path)
	require.NoError(t, reloaded.Load())
	_, ok := reloaded.Get(sessionKey)
	assert.False(t, ok)
	v, _ := reloaded.Get("other")
	assert.Equal(t, "kept", v)

	// Clearing twice is fine.
	assert.NoError(t, sessions.Clear())
}

func TestSessionSaveRejectsInvalid(t *testing.T) {
	sessions := NewSessions(NewLocalStorage(filepath.Join(t.TempDir(), "s.json")))
	assert.Error(t, sessions.Save(model.Session{Token: "abc"}))
	assert.Nil(t, sessions.Current())
}

func TestCorruptStoredSessionIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pssi_admin_session":"{not json"}`), 0600))

	storage := NewLocalStorage(path)
	require.NoError(t, storage.Load())
	assert.Nil(t, NewSessions(storage).Current())
	_, ok := storage.Get(sessionKey)
	assert.False(t, ok)
}

func TestCurrentReturnsCopy(t *testing.T) {
	sessions := NewSessions(NewLocalStorage(filepath.Join(t.TempDir(), "s.json")))
	require.NoError(t, sessions.Save(model.Session{Token: "abc", User: model.Identity{Username: "u"}}))

	sessions.Current().Token = "mutated"
	assert.Equal(t, "abc", sessions.Current().Token)
}

func TestConfigWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clientconfig.json")
	cfg := NewConfig(path)
	require.NoError(t, cfg.Load())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"host": "localhost:8999"`)

	require.NoError(t, os.WriteFile(path, []byte(`{"host":"10.0.0.2:9000","log_level":"debug"}`), 0644))
	cfg = NewConfig(path)
	require.NoError(t, cfg.Load())
	assert.Equal(t, "10.0.0.2:9000", cfg.Host)
	assert.Equal(t, "pssi_storage.json", cfg.StorageFile, "missing fields keep defaults")
	assert.Equal(t, "debug", cfg.Level().String())
}
