package main

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/puyokura/pssichat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressLog(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "server.log")
	require.NoError(t, os.WriteFile(source, []byte("line one\nline two\n"), 0644))

	target, err := compressLog(source, dir, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "logs-20240501-103000.tar.gz"), target)

	file, err := os.Open(target)
	require.NoError(t, err)
	defer file.Close()
	gz, err := gzip.NewReader(file)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	header, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "server.log", header.Name)
	content, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", string(content))

	_, err = tr.Next()
	assert.Equal(t, io.EOF, err)
}

func TestCompressLogMissingSource(t *testing.T) {
	_, err := compressLog(filepath.Join(t.TempDir(), "absent.log"), t.TempDir(), time.Now())
	assert.Error(t, err)
}

func TestSeedUsersOnlyOnEmptyStore(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "u.json"), filepath.Join(dir, "m.json"))
	seeds := []SeedUser{
		{Username: "pusat", Password: "pusat123", Role: string(model.RolePusat)},
		{Username: "klub", Password: "klub123", Role: "ADMIN_KLUB_PERSIB", ClubID: "PERSIB"},
	}

	seedUsers(store, seeds)
	require.Len(t, store.UserList(), 2)
	_, err := store.Authenticate("klub", "klub123")
	assert.NoError(t, err)

	seedUsers(store, []SeedUser{{Username: "late", Password: "x", Role: string(model.RoleMedia)}})
	_, ok := store.User("late")
	assert.False(t, ok)
}
