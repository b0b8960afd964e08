package main

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SeedUser is an account created on startup when the user store is empty.
type SeedUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"tipeUser"`
	ClubID   string `json:"idKlub,omitempty"`
}

type Config struct {
	Port        string `json:"port"`
	Host        string `json:"host"`
	ServerName  string `json:"server_name"`
	TokenSecret string `json:"token_secret"`
	// TokenTTL is the token lifetime in minutes.
	TokenTTL int `json:"token_ttl"`
	// PresenceWindow is how long, in seconds, a user counts as online after
	// their last call.
	PresenceWindow  int        `json:"presence_window"`
	PresenceBackend string     `json:"presence_backend"` // memory | redis
	RedisAddr       string     `json:"redis_addr"`
	UsersFile       string     `json:"users_file"`
	MessagesFile    string     `json:"messages_file"`
	SeedUsers       []SeedUser `json:"seed_users"`
	mu              sync.RWMutex
	configFile      string
}

func NewConfig(filename string) *Config {
	if filename == "" {
		filename = "serverconfig.json"
	}
	return &Config{
		configFile: filename,
		// Defaults
		Port:            "8999",
		Host:            "localhost",
		ServerName:      "PSSI Admin Backend",
		TokenSecret:     "change-me",
		TokenTTL:        8 * 60,
		PresenceWindow:  30,
		PresenceBackend: "memory",
		RedisAddr:       "localhost:6379",
		UsersFile:       "users.json",
		MessagesFile:    "messages.json",
		SeedUsers: []SeedUser{
			{Username: "pusat", Password: "pusat123", Role: "ADMIN_PUSAT"},
			{Username: "media", Password: "media123", Role: "ADMIN_MEDIA"},
		},
	}
}

func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.configFile); os.IsNotExist(err) {
		// Create default config if not exists
		return c.saveInternal()
	}

	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return errors.Wrapf(err, "read config %s", c.configFile)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config %s", c.configFile)
	}

	// Auto-update config file with any missing fields (defaults)
	return c.saveInternal()
}

func (c *Config) saveInternal() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(c.configFile, data, 0644), "write config %s", c.configFile)
}

func (c *Config) TokenLifetime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.TokenTTL <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(c.TokenTTL) * time.Minute
}

func (c *Config) OnlineWindow() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.PresenceWindow <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.PresenceWindow) * time.Second
}

func (c *Config) Addr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Host + ":" + c.Port
}
