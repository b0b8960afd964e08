package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/puyokura/pssichat/chat"
	"github.com/sirupsen/logrus"
)

// setupLogging sends logs to a file; the terminal belongs to the UI.
func setupLogging(path string, level logrus.Level) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	logrus.SetOutput(f)
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return f, nil
}

func main() {
	configFile := flag.String("config", "clientconfig.json", "Path to configuration file")
	host := flag.String("host", "", "backend host:port (overrides config)")
	flag.Parse()

	config := NewConfig(*configFile)
	if err := config.Load(); err != nil {
		fmt.Printf("Error loading config: %v\n", err)
	}
	if *host != "" {
		config.Host = *host
	}

	logFile, err := setupLogging(config.LogFile, config.Level())
	if err != nil {
		fmt.Printf("Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	storage := NewLocalStorage(config.StorageFile)
	if err := storage.Load(); err != nil {
		logrus.WithError(err).Warn("Starting with empty storage")
	}
	sessions := NewSessions(storage)

	net := NewNetwork(config.Host)
	defer net.Close()

	engine := chat.New(chat.Config{
		Transport:   net,
		Sessions:    sessions,
		CallTimeout: config.Timeout(),
	})

	p := tea.NewProgram(initialModel(config, net, sessions, engine), tea.WithAltScreen())
	engine.Attach(p.Send)

	logrus.WithFields(logrus.Fields{
		"host": config.Host,
	}).Info("Client started")

	if _, err := p.Run(); err != nil {
		logrus.WithError(err).Error("Program exited with error")
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
