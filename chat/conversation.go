package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

// syncReason records why a conversation sync was issued; it decides the
// follow-up steps once the result is applied.
type syncReason int

const (
	// syncOpen is a user-initiated open: explicit, publishes a receipt.
	syncOpen syncReason = iota
	// syncPoll is a background tick: silent.
	syncPoll
	// syncSent refreshes after a successful send: silent, no receipt.
	syncSent
)

func (r syncReason) String() string {
	switch r {
	case syncOpen:
		return "open"
	case syncPoll:
		return "poll"
	case syncSent:
		return "sent"
	}
	return "unknown"
}

func (r syncReason) silent() bool { return r != syncOpen }

func (r syncReason) markRead() bool { return r == syncOpen }

// ConversationLoadedMsg is the result of a conversation sync.
type ConversationLoadedMsg struct {
	Token    string
	Peer     string
	Seq      uint64
	Reason   syncReason
	Messages []model.Message
	Err      error
}

// Open makes peer the active conversation and loads it. The sync publishes
// a read receipt for peer and then refreshes the contact directory.
func (e *Engine) Open(c model.Contact) tea.Cmd {
	sess := e.session()
	if sess == nil || !e.entered || c.Username == "" {
		return nil
	}

	prev := e.view.String()
	e.view.Open(c.Username)
	e.peerOnline = c.IsOnline
	// Nothing from the previous peer may stay under the new header.
	e.conversation = nil
	e.lastReceipt = time.Time{}
	e.openPending = true

	logrus.WithFields(logrus.Fields{
		"function": "Open",
		"from":     prev,
		"to":       e.view.String(),
	}).Info("Conversation opened")

	return e.conversationCmd(sess.Token, c.Username, syncOpen)
}

func (e *Engine) conversationCmd(token, peer string, reason syncReason) tea.Cmd {
	e.convSeq++
	seq := e.convSeq
	transport, timeout := e.transport, e.callTimeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		msg := ConversationLoadedMsg{Token: token, Peer: peer, Seq: seq, Reason: reason}
		resp, err := call(ctx, transport, model.ActionConversation, model.ConversationPayload{
			Token:     token,
			Recipient: peer,
		})
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Messages = resp.Messages
		return msg
	}
}

func (e *Engine) handleConversation(msg ConversationLoadedMsg) tea.Cmd {
	if errors.Is(msg.Err, ErrExpired) {
		return e.expired(msg.Token, !msg.Reason.silent())
	}
	if !e.current(msg.Token) || !e.view.IsOpen(msg.Peer) {
		logrus.WithFields(logrus.Fields{
			"function": "handleConversation",
			"peer":     msg.Peer,
			"view":     e.view.String(),
			"reason":   msg.Reason.String(),
		}).Debug("Discarding stale conversation response")
		return nil
	}

	if msg.Err != nil {
		fields := logrus.Fields{
			"function": "handleConversation",
			"peer":     msg.Peer,
			"reason":   msg.Reason.String(),
			"error":    msg.Err.Error(),
		}
		if msg.Reason.silent() {
			logrus.WithFields(fields).Debug("Background conversation refresh failed")
			return nil
		}
		logrus.WithFields(fields).Warn("Conversation load failed")
		e.openPending = false
		e.Notify(NoticeError, noticeText(msg.Err))
		// The open still refreshes the directory, as a successful one would.
		return e.contactsCmd(msg.Token, true)
	}

	if msg.Seq < e.convApplied {
		// A newer sync for the same peer already rendered; keep it but still
		// run the follow-ups, so an open is always acknowledged.
		logrus.WithFields(logrus.Fields{
			"function": "handleConversation",
			"peer":     msg.Peer,
			"seq":      msg.Seq,
			"applied":  e.convApplied,
		}).Debug("Skipping render of out-of-order conversation response")
	} else {
		e.convApplied = msg.Seq
		e.conversation = append([]model.Message(nil), msg.Messages...)
	}

	switch {
	case msg.Reason.markRead():
		e.openPending = false
		return e.receiptCmd(msg.Token, msg.Peer, true)
	case msg.Reason == syncPoll && !e.openPending && e.hasUnacknowledged(msg.Peer):
		return e.receiptCmd(msg.Token, msg.Peer, false)
	}
	return nil
}

// hasUnacknowledged reports whether the open conversation holds a message
// from peer newer than the last published receipt.
func (e *Engine) hasUnacknowledged(peer string) bool {
	latest, ok := latestFrom(e.conversation, peer)
	return ok && latest.After(e.lastReceipt)
}

func latestFrom(msgs []model.Message, sender string) (time.Time, bool) {
	var (
		latest time.Time
		found  bool
	)
	for _, m := range msgs {
		if m.Sender != sender {
			continue
		}
		if !found || m.Timestamp.After(latest) {
			latest = m.Timestamp
			found = true
		}
	}
	return latest, found
}
