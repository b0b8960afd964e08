package main

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

// sessionKey is the storage key the admin session lives under.
const sessionKey = "pssi_admin_session"

// LocalStorage is a small persistent string key/value store backed by one
// JSON file. Every write rewrites the file.
type LocalStorage struct {
	path  string
	items map[string]string
	mu    sync.RWMutex
}

func NewLocalStorage(path string) *LocalStorage {
	return &LocalStorage{path: path, items: make(map[string]string)}
}

func (s *LocalStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read storage %s", s.path)
	}
	items := make(map[string]string)
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrapf(err, "parse storage %s", s.path)
	}
	s.items = items
	return nil
}

func (s *LocalStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *LocalStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return s.saveInternal()
}

func (s *LocalStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return nil
	}
	delete(s.items, key)
	return s.saveInternal()
}

func (s *LocalStorage) saveInternal() error {
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(s.path, data, 0600), "write storage %s", s.path)
}

// Sessions keeps the current login in LocalStorage so it survives restarts.
// It implements chat.SessionStore.
type Sessions struct {
	storage *LocalStorage
	mu      sync.Mutex
	current *model.Session
}

// NewSessions restores a stored session, if any. A corrupt entry is dropped.
func NewSessions(storage *LocalStorage) *Sessions {
	s := &Sessions{storage: storage}
	raw, ok := storage.Get(sessionKey)
	if !ok {
		return s
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || !sess.Valid() {
		logrus.WithFields(logrus.Fields{
			"function": "NewSessions",
		}).Warn("Dropping unreadable stored session")
		if err := storage.Remove(sessionKey); err != nil {
			logrus.WithError(err).Warn("Failed to remove stored session")
		}
		return s
	}
	s.current = &sess
	return s
}

func (s *Sessions) Current() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

func (s *Sessions) Save(sess model.Session) error {
	if !sess.Valid() {
		return errors.New("invalid session")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.Set(sessionKey, string(data)); err != nil {
		return err
	}
	s.current = &sess
	return nil
}

// Clear forgets the session in memory even if removing it from disk fails.
func (s *Sessions) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	return s.storage.Remove(sessionKey)
}
