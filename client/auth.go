package main

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/chat"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

const (
	loginSuccessText  = "Login successful!"
	loggedOutText     = "You have been logged out."
	connectionErrText = "Connection error."
)

type loginResultMsg struct {
	Session *model.Session
	// Text is the notice for a failed login.
	Text string
}

type logoutDoneMsg struct {
	Err error
}

// loginCmd calls LOGIN and reports the new session, or the notice to show.
func loginCmd(t chat.Transport, timeout time.Duration, username, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resp, err := t.Call(ctx, model.ActionLogin, model.LoginPayload{
			Username: username,
			Password: password,
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "loginCmd",
				"user":     username,
				"error":    err.Error(),
			}).Warn("Login call failed")
			return loginResultMsg{Text: connectionErrText}
		}
		if !resp.OK() || resp.User == nil || resp.Token == "" {
			text := resp.Message
			if text == "" {
				text = "Login failed."
			}
			logrus.WithFields(logrus.Fields{
				"function": "loginCmd",
				"user":     username,
				"status":   resp.Status,
			}).Info("Login rejected")
			return loginResultMsg{Text: text}
		}
		return loginResultMsg{Session: &model.Session{Token: resp.Token, User: *resp.User}}
	}
}

// logoutCmd revokes token on the backend. The local session is already gone
// by the time it runs, so its outcome is only logged.
func logoutCmd(t chat.Transport, timeout time.Duration, token string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resp, err := t.Call(ctx, model.ActionLogout, model.TokenPayload{Token: token})
		if err == nil && !resp.OK() {
			err = errors.Errorf("logout: %s %s", resp.Status, resp.Message)
		}
		return logoutDoneMsg{Err: err}
	}
}
