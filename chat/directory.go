package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

// ContactsLoadedMsg is the result of a contact directory sync.
type ContactsLoadedMsg struct {
	Token    string
	Seq      uint64
	Silent   bool
	Contacts []model.Contact
	Err      error
}

func (e *Engine) contactsCmd(token string, silent bool) tea.Cmd {
	e.dirSeq++
	seq := e.dirSeq
	transport, timeout := e.transport, e.callTimeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		msg := ContactsLoadedMsg{Token: token, Seq: seq, Silent: silent}
		resp, err := call(ctx, transport, model.ActionChatDashboard, model.TokenPayload{Token: token})
		if err != nil {
			msg.Err = err
			return msg
		}
		msg.Contacts = resp.Contacts
		return msg
	}
}

func (e *Engine) handleContacts(msg ContactsLoadedMsg) tea.Cmd {
	if errors.Is(msg.Err, ErrExpired) {
		return e.expired(msg.Token, !msg.Silent)
	}
	if !e.current(msg.Token) {
		return nil
	}

	if msg.Err != nil {
		fields := logrus.Fields{
			"function": "handleContacts",
			"silent":   msg.Silent,
			"error":    msg.Err.Error(),
		}
		if msg.Silent {
			logrus.WithFields(fields).Debug("Background contact refresh failed")
			return nil
		}
		logrus.WithFields(fields).Warn("Contact refresh failed")
		e.Notify(NoticeError, noticeText(msg.Err))
		return nil
	}

	if msg.Seq < e.dirApplied {
		logrus.WithFields(logrus.Fields{
			"function": "handleContacts",
			"seq":      msg.Seq,
			"applied":  e.dirApplied,
		}).Debug("Discarding out-of-order contact list")
		return nil
	}
	e.dirApplied = msg.Seq
	e.contacts = append([]model.Contact(nil), msg.Contacts...)

	if peer, open := e.view.Peer(); open {
		for _, c := range e.contacts {
			if c.Username == peer {
				e.peerOnline = c.IsOnline
				break
			}
		}
	}
	return nil
}
