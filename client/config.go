package main

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Host        string `json:"host"`
	StorageFile string `json:"storage_file"`
	LogFile     string `json:"log_file"`
	LogLevel    string `json:"log_level"`
	// CallTimeout is the per-call deadline in seconds.
	CallTimeout int `json:"call_timeout"`
	mu          sync.RWMutex
	configFile  string
}

func NewConfig(filename string) *Config {
	if filename == "" {
		filename = "clientconfig.json"
	}
	return &Config{
		configFile: filename,
		// Defaults
		Host:        "localhost:8999",
		StorageFile: "pssi_storage.json",
		LogFile:     "client.log",
		LogLevel:    "info",
		CallTimeout: 15,
	}
}

func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.configFile); os.IsNotExist(err) {
		return c.saveInternal()
	}

	data, err := os.ReadFile(c.configFile)
	if err != nil {
		return errors.Wrapf(err, "read config %s", c.configFile)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parse config %s", c.configFile)
	}

	// Write back so fields added since the file was created show up.
	return c.saveInternal()
}

func (c *Config) saveInternal() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(c.configFile, data, 0644), "write config %s", c.configFile)
}

// Timeout returns the per-call deadline.
func (c *Config) Timeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.CallTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.CallTimeout) * time.Second
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() logrus.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
