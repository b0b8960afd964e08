package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

// ReceiptPublishedMsg is the result of a read-receipt publish. Its outcome
// never gates anything except session expiry.
type ReceiptPublishedMsg struct {
	Token string
	Peer  string
	// Refresh asks for a contact refresh once the receipt is through, so the
	// unread badge of Peer is cleared.
	Refresh bool
	Err     error
}

// receiptCmd acknowledges the messages of peer currently rendered.
func (e *Engine) receiptCmd(token, peer string, refresh bool) tea.Cmd {
	if latest, ok := latestFrom(e.conversation, peer); ok && latest.After(e.lastReceipt) {
		e.lastReceipt = latest
	}
	transport, timeout := e.transport, e.callTimeout

	logrus.WithFields(logrus.Fields{
		"function": "receiptCmd",
		"peer":     peer,
	}).Debug("Publishing read receipt")

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		_, err := call(ctx, transport, model.ActionMarkAsRead, model.MarkReadPayload{
			Token:  token,
			Sender: peer,
		})
		return ReceiptPublishedMsg{Token: token, Peer: peer, Refresh: refresh, Err: err}
	}
}

func (e *Engine) handleReceipt(msg ReceiptPublishedMsg) tea.Cmd {
	if errors.Is(msg.Err, ErrExpired) {
		return e.expired(msg.Token, false)
	}
	if msg.Err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handleReceipt",
			"peer":     msg.Peer,
			"error":    msg.Err.Error(),
		}).Debug("Read receipt failed")
	}
	if !msg.Refresh || !e.current(msg.Token) {
		return nil
	}
	return e.contactsCmd(msg.Token, true)
}
