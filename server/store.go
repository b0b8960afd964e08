package main

import (
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUserExists         = errors.New("user already exists")
	errInvalidCredentials = errors.New("invalid credentials")
)

// User is a stored admin account.
type User struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Role         model.Role `json:"tipeUser"`
	ClubID       string     `json:"idKlub,omitempty"`
}

func (u *User) Identity() model.Identity {
	return model.Identity{Username: u.Username, Role: u.Role, ClubID: u.ClubID}
}

// StoredMessage is a direct message with its read flag.
type StoredMessage struct {
	model.Message
	Read bool `json:"read"`
}

type Store struct {
	Users    map[string]*User // Key: Username
	Messages []StoredMessage
	mu       sync.RWMutex
	userFile string
	msgFile  string
}

func NewStore(userFile, msgFile string) *Store {
	return &Store{
		Users:    make(map[string]*User),
		Messages: make([]StoredMessage, 0),
		userFile: userFile,
		msgFile:  msgFile,
	}
}

func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, err := os.ReadFile(s.userFile); err == nil {
		var usersList []*User
		if err := json.Unmarshal(data, &usersList); err != nil {
			return errors.Wrapf(err, "parse %s", s.userFile)
		}
		for _, u := range usersList {
			s.Users[u.Username] = u
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "read %s", s.userFile)
	}

	if data, err := os.ReadFile(s.msgFile); err == nil {
		if err := json.Unmarshal(data, &s.Messages); err != nil {
			return errors.Wrapf(err, "parse %s", s.msgFile)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "read %s", s.msgFile)
	}
	return nil
}

func (s *Store) RegisterUser(username, password string, role model.Role, clubID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.Users[username]; exists {
		return nil, errUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		ClubID:       clubID,
	}
	s.Users[username] = user

	if err := s.saveUsersInternal(); err != nil {
		delete(s.Users, username) // Rollback
		return nil, err
	}
	return user, nil
}

// saveUsersInternal must be called with the lock held.
func (s *Store) saveUsersInternal() error {
	usersList := make([]*User, 0, len(s.Users))
	for _, u := range s.Users {
		usersList = append(usersList, u)
	}
	sort.Slice(usersList, func(i, j int) bool { return usersList[i].Username < usersList[j].Username })
	data, err := json.MarshalIndent(usersList, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(s.userFile, data, 0644), "write %s", s.userFile)
}

// saveMessagesInternal must be called with the lock held.
func (s *Store) saveMessagesInternal() error {
	data, err := json.MarshalIndent(s.Messages, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(s.msgFile, data, 0644), "write %s", s.msgFile)
}

func (s *Store) Authenticate(username, password string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.Users[username]
	if !exists {
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}
	return user, nil
}

func (s *Store) User(username string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.Users[username]
	return u, ok
}

// UserList returns every account sorted by username.
func (s *Store) UserList() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.Users))
	for _, u := range s.Users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Contacts lists every other account with the number of unread messages it
// sent to self. online reports presence.
func (s *Store) Contacts(self string, online func(string) bool) []model.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unread := make(map[string]int)
	for _, m := range s.Messages {
		if m.Recipient == self && !m.Read {
			unread[m.Sender]++
		}
	}

	contacts := make([]model.Contact, 0, len(s.Users))
	for name, u := range s.Users {
		if name == self {
			continue
		}
		contacts = append(contacts, model.Contact{
			Username:    name,
			Role:        u.Role,
			IsOnline:    online != nil && online(name),
			UnreadCount: unread[name],
		})
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Username < contacts[j].Username })
	return contacts
}

// Conversation returns the messages between a and b, oldest first.
func (s *Store) Conversation(a, b string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, 0)
	for _, m := range s.Messages {
		if (m.Sender == a && m.Recipient == b) || (m.Sender == b && m.Recipient == a) {
			out = append(out, m.Message)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (s *Store) AddMessage(msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages = append(s.Messages, StoredMessage{Message: msg})
	if err := s.saveMessagesInternal(); err != nil {
		s.Messages = s.Messages[:len(s.Messages)-1]
		return err
	}
	return nil
}

// MarkRead flags every message from sender to reader as read and returns how
// many changed.
func (s *Store) MarkRead(reader, sender string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.Messages {
		m := &s.Messages[i]
		if m.Sender == sender && m.Recipient == reader && !m.Read {
			m.Read = true
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.saveMessagesInternal()
}
