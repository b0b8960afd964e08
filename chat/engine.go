package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/puyokura/pssichat/model"
	"github.com/sirupsen/logrus"
)

// DefaultCallTimeout bounds a single backend call.
const DefaultCallTimeout = 15 * time.Second

// Config wires the engine to its collaborators.
type Config struct {
	Transport   Transport
	Sessions    SessionStore
	Clock       Clock         // defaults to DefaultClock
	CallTimeout time.Duration // defaults to DefaultCallTimeout
	NoticeTTL   time.Duration // defaults to NoticeTTL
}

// SessionExpiredMsg is emitted once the engine has torn down an expired
// session. The client returns to the login screen on it.
type SessionExpiredMsg struct{}

// Engine is the messaging view state. All methods except Attach must be
// called from the program goroutine.
type Engine struct {
	transport   Transport
	sessions    SessionStore
	clock       Clock
	callTimeout time.Duration
	noticeTTL   time.Duration
	send        func(tea.Msg)

	scheduler *Scheduler
	view      ViewState
	entered   bool

	owner      string // token the directory was loaded with
	contacts   []model.Contact
	dirSeq     uint64
	dirApplied uint64

	peerOnline   bool
	conversation []model.Message
	convSeq      uint64
	convApplied  uint64
	lastReceipt  time.Time
	openPending  bool // open sync issued, its receipt not yet

	notices      []Notice
	nextNoticeID int
}

// New returns an engine in the Idle state with polling stopped.
func New(cfg Config) *Engine {
	e := &Engine{
		transport:   cfg.Transport,
		sessions:    cfg.Sessions,
		clock:       cfg.Clock,
		callTimeout: cfg.CallTimeout,
		noticeTTL:   cfg.NoticeTTL,
	}
	if e.clock == nil {
		e.clock = DefaultClock
	}
	if e.callTimeout <= 0 {
		e.callTimeout = DefaultCallTimeout
	}
	if e.noticeTTL <= 0 {
		e.noticeTTL = NoticeTTL
	}
	e.scheduler = NewScheduler(e.clock, e.post)
	return e
}

// Attach sets the function timer callbacks use to post messages into the
// program, normally tea.Program.Send. Call it before the program starts.
func (e *Engine) Attach(send func(tea.Msg)) {
	e.send = send
}

func (e *Engine) post(msg tea.Msg) {
	if e.send != nil {
		e.send(msg)
	}
}

// Enter activates the messaging view: an explicit contact refresh and a new
// polling session.
func (e *Engine) Enter() tea.Cmd {
	sess := e.session()
	if sess == nil {
		return nil
	}
	if sess.Token != e.owner {
		e.forget()
		e.owner = sess.Token
	}
	e.entered = true
	peer, _ := e.view.Peer()
	e.scheduler.Start(peer)

	logrus.WithFields(logrus.Fields{
		"function": "Enter",
		"user":     sess.User.Username,
	}).Info("Messaging view entered")

	return e.contactsCmd(sess.Token, false)
}

// Leave deactivates the messaging view. In-flight responses are discarded
// when they arrive.
func (e *Engine) Leave() {
	e.scheduler.Stop()
	e.view.Close()
	e.entered = false
	e.conversation = nil
	e.lastReceipt = time.Time{}
	e.openPending = false

	logrus.WithFields(logrus.Fields{
		"function": "Leave",
	}).Info("Messaging view left")
}

// Reset leaves the view and forgets the contact directory, so nothing of
// one login is shown to the next.
func (e *Engine) Reset() {
	e.Leave()
	e.forget()
}

func (e *Engine) forget() {
	e.view.Close()
	e.conversation = nil
	e.lastReceipt = time.Time{}
	e.openPending = false

	e.owner = ""
	e.contacts = nil
	e.dirApplied = e.dirSeq
	e.peerOnline = false
}

// Update applies msg to the engine state and returns follow-up commands.
// Messages the engine does not own are ignored.
func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case PollTickMsg:
		return e.handleTick(msg)
	case ContactsLoadedMsg:
		return e.handleContacts(msg)
	case ConversationLoadedMsg:
		return e.handleConversation(msg)
	case ReceiptPublishedMsg:
		return e.handleReceipt(msg)
	case MessageSentMsg:
		return e.handleSent(msg)
	case noticeExpiredMsg:
		e.dismiss(msg.id)
	}
	return nil
}

func (e *Engine) handleTick(msg PollTickMsg) tea.Cmd {
	peer, open := e.view.Peer()
	if !e.scheduler.Accept(msg, peer) {
		return nil
	}
	sess := e.session()
	if sess == nil {
		e.scheduler.Stop()
		return nil
	}

	cmds := []tea.Cmd{e.contactsCmd(sess.Token, true)}
	if open {
		cmds = append(cmds, e.conversationCmd(sess.Token, peer, syncPoll))
	}
	return tea.Batch(cmds...)
}

// expire tears down the session after the backend reported it expired.
func (e *Engine) expire(explicit bool) tea.Cmd {
	if err := e.sessions.Clear(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "expire",
			"error":    err.Error(),
		}).Warn("Failed to clear stored session")
	}
	e.Reset()

	logrus.WithFields(logrus.Fields{
		"function": "expire",
		"explicit": explicit,
	}).Warn("Session expired, logging out")

	if explicit {
		e.Notify(NoticeError, "Session expired. Please log in again.")
	}
	return func() tea.Msg { return SessionExpiredMsg{} }
}

// sameSession reports whether token is the token of the live session.
func (e *Engine) sameSession(token string) bool {
	sess := e.session()
	return sess != nil && sess.Token == token
}

// current reports whether a response issued with token still belongs to the
// live session of an entered view.
func (e *Engine) current(token string) bool {
	return e.entered && e.sameSession(token)
}

// expired handles ErrExpired for a response issued with token. Expiry of the
// live session is acted on even after the view was left.
func (e *Engine) expired(token string, explicit bool) tea.Cmd {
	if !e.sameSession(token) {
		return nil
	}
	return e.expire(explicit)
}

func (e *Engine) session() *model.Session {
	if e.sessions == nil {
		return nil
	}
	sess := e.sessions.Current()
	if !sess.Valid() {
		return nil
	}
	return sess
}

// Entered reports whether the messaging view is active.
func (e *Engine) Entered() bool { return e.entered }

// Polling reports whether the refresh timer is running.
func (e *Engine) Polling() bool { return e.scheduler.Active() }

// View returns the conversation view state.
func (e *Engine) View() ViewState { return e.view }

// ActivePeer returns the open conversation peer.
func (e *Engine) ActivePeer() (string, bool) { return e.view.Peer() }

// PeerOnline reports the online status shown in the conversation header.
func (e *Engine) PeerOnline() bool { return e.peerOnline }

// Self returns the logged in username, or "" without a session.
func (e *Engine) Self() string {
	if sess := e.session(); sess != nil {
		return sess.User.Username
	}
	return ""
}

// Contacts returns a copy of the contact directory.
func (e *Engine) Contacts() []model.Contact {
	return append([]model.Contact(nil), e.contacts...)
}

// Conversation returns a copy of the open conversation, oldest first.
func (e *Engine) Conversation() []model.Message {
	return append([]model.Message(nil), e.conversation...)
}

// Notices returns the visible notices, oldest first.
func (e *Engine) Notices() []Notice {
	return append([]Notice(nil), e.notices...)
}
