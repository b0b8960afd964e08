package main

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

const logDir = "logs"

func setupLogging() (*os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(filepath.Join(logDir, "server.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	logrus.SetOutput(io.MultiWriter(os.Stdout, logFile))
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.InfoLevel)
	if os.Getenv("PSSI_DEBUG") != "" {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return logFile, nil
}

// compressLog archives source into dir/logs-<timestamp>.tar.gz and returns
// the archive path.
func compressLog(source, dir string, now time.Time) (string, error) {
	target := filepath.Join(dir, fmt.Sprintf("logs-%s.tar.gz", now.Format("20060102-150405")))

	file, err := os.Open(source)
	if err != nil {
		return "", errors.Wrap(err, "open log")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", errors.Wrap(err, "stat log")
	}

	outFile, err := os.Create(target)
	if err != nil {
		return "", errors.Wrap(err, "create archive")
	}
	defer outFile.Close()

	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	header, err := tar.FileInfoHeader(info, info.Name())
	if err != nil {
		return "", errors.Wrap(err, "tar header")
	}
	header.Name = filepath.Base(source)

	if err := tw.WriteHeader(header); err != nil {
		return "", errors.Wrap(err, "write tar header")
	}
	if _, err := io.Copy(tw, file); err != nil {
		return "", errors.Wrap(err, "compress log")
	}
	if err := tw.Close(); err != nil {
		return "", errors.Wrap(err, "close tar")
	}
	if err := gw.Close(); err != nil {
		return "", errors.Wrap(err, "close gzip")
	}
	return target, nil
}

// seedUsers creates the configured accounts when the store has none.
func seedUsers(store *Store, seeds []SeedUser) {
	if len(store.UserList()) > 0 {
		return
	}
	for _, seed := range seeds {
		if _, err := store.RegisterUser(seed.Username, seed.Password, model.Role(seed.Role), seed.ClubID); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "seedUsers",
				"user":     seed.Username,
				"error":    err.Error(),
			}).Warn("Failed to seed user")
			continue
		}
		logrus.WithFields(logrus.Fields{
			"function": "seedUsers",
			"user":     seed.Username,
			"role":     seed.Role,
		}).Info("Seeded user")
	}
}

func newPresence(config *Config) Presence {
	window := config.OnlineWindow()
	if config.PresenceBackend != "redis" {
		return newMemoryPresence(window)
	}
	p := newRedisPresence(config.RedisAddr, window)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "newPresence",
			"addr":     config.RedisAddr,
			"error":    err.Error(),
		}).Warn("Redis unreachable, using in-memory presence")
		p.Close()
		return newMemoryPresence(window)
	}
	return p
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		fmt.Printf("Failed to setup logging: %v\n", err)
		return
	}

	configFile := flag.String("config", "serverconfig.json", "Path to configuration file")
	flag.Parse()

	config := NewConfig(*configFile)
	if err := config.Load(); err != nil {
		logrus.WithError(err).Error("Error loading config")
	}

	store := NewStore(config.UsersFile, config.MessagesFile)
	if err := store.Load(); err != nil {
		logrus.WithError(err).Error("Error loading store")
	}
	seedUsers(store, config.SeedUsers)

	tokens := NewTokens(config.TokenSecret, config.TokenLifetime())
	presence := newPresence(config)
	server := NewServer(store, tokens, presence)

	hub := NewHub(server)
	go hub.Run()

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:    ":" + config.Port,
		Handler: NewRouter(config, hub, server),
	}

	go func() {
		logrus.WithFields(logrus.Fields{"addr": httpServer.Addr}).Info("Server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("ListenAndServe failed")
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Stop()
		if err := httpServer.Shutdown(ctx); err != nil {
			logrus.WithError(err).Warn("Shutdown failed")
		}
		if c, ok := presence.(interface{ Close() error }); ok {
			c.Close()
		}

		logrus.SetOutput(os.Stdout)
		logFile.Close()
		source := filepath.Join(logDir, "server.log")
		target, err := compressLog(source, logDir, time.Now())
		if err != nil {
			logrus.WithError(err).Error("Failed to compress log")
			return
		}
		os.Remove(source)
		logrus.WithFields(logrus.Fields{"archive": target}).Info("Log compressed")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	consoleDone := make(chan struct{})

	go func() {
		NewConsole(store, tokens, presence, hub, os.Stdout).Run(os.Stdin)
		close(consoleDone)
	}()

	select {
	case <-stop:
		fmt.Println("\nShutting down server...")
	case <-consoleDone:
	}
	shutdown()
}
