package chat

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

// MessageSentMsg is the result of a send. On success the client clears its
// input; on failure the draft is kept for a retry.
type MessageSentMsg struct {
	Token string
	Peer  string
	Body  string
	Err   error
}

// OK reports whether the message was accepted by the backend.
func (m MessageSentMsg) OK() bool { return m.Err == nil }

// Send dispatches body to the active peer. An empty or whitespace-only body,
// or no open conversation, is a no-op.
func (e *Engine) Send(body string) tea.Cmd {
	body = strings.TrimSpace(body)
	peer, open := e.view.Peer()
	sess := e.session()
	if body == "" || !open || sess == nil || !e.entered {
		return nil
	}

	token := sess.Token
	transport, timeout := e.transport, e.callTimeout

	logrus.WithFields(logrus.Fields{
		"function": "Send",
		"peer":     peer,
		"length":   len(body),
	}).Debug("Sending message")

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		_, err := call(ctx, transport, model.ActionSendMessage, model.SendPayload{
			Token:     token,
			Recipient: peer,
			Message:   body,
		})
		return MessageSentMsg{Token: token, Peer: peer, Body: body, Err: err}
	}
}

func (e *Engine) handleSent(msg MessageSentMsg) tea.Cmd {
	if errors.Is(msg.Err, ErrExpired) {
		return e.expired(msg.Token, true)
	}
	if !e.current(msg.Token) {
		return nil
	}
	if msg.Err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleSent",
			"peer":     msg.Peer,
			"error":    msg.Err.Error(),
		}).Warn("Send failed")
		e.Notify(NoticeError, noticeText(msg.Err))
		return nil
	}
	if !e.view.IsOpen(msg.Peer) {
		return nil
	}
	return e.conversationCmd(msg.Token, msg.Peer, syncSent)
}
