package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/puyokura/pssichat/model"
)

// fakeTimer is a timer of fakeClock. It only fires when the test says so.
type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasLive := !t.stopped && !t.fired
	t.stopped = true
	return wasLive
}

// fakeClock records every AfterFunc and lets tests count and fire live timers.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// live returns the number of armed timers with duration d.
func (c *fakeClock) live(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.d == d && !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fire advances the clock by d and runs every live timer with duration d.
func (c *fakeClock) fire(d time.Duration) int {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if t.d == d && !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
	return len(due)
}

// fakeSessions is an in-memory SessionStore.
type fakeSessions struct {
	session *model.Session
	cleared int
}

func newFakeSessions(user string) *fakeSessions {
	return &fakeSessions{session: &model.Session{
		Token: "token-" + user,
		User:  model.Identity{Username: user, Role: model.RolePusat},
	}}
}

func (s *fakeSessions) Current() *model.Session { return s.session }

func (s *fakeSessions) Clear() error {
	s.session = nil
	s.cleared++
	return nil
}

type recordedCall struct {
	Action  model.Action
	Payload interface{}
}

// fakeBackend is a stateful Transport: contacts, conversations and unread
// counts, with per-action failure injection.
type fakeBackend struct {
	mu            sync.Mutex
	self          string
	contacts      []model.Contact
	conversations map[string][]model.Message
	calls         []recordedCall

	// transportErr makes an action fail at the transport level.
	transportErr map[model.Action]error
	// status overrides the response status of an action.
	status map[model.Action]model.Status
}

func newFakeBackend(self string, contacts ...model.Contact) *fakeBackend {
	return &fakeBackend{
		self:          self,
		contacts:      contacts,
		conversations: make(map[string][]model.Message),
		transportErr:  make(map[model.Action]error),
		status:        make(map[model.Action]model.Status),
	}
}

func (b *fakeBackend) Call(_ context.Context, action model.Action, payload interface{}) (*model.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, recordedCall{Action: action, Payload: payload})
	if err := b.transportErr[action]; err != nil {
		return nil, err
	}
	if st, ok := b.status[action]; ok && st != model.StatusSuccess {
		return &model.Response{Status: st, Message: string(action) + " refused"}, nil
	}

	resp := &model.Response{Status: model.StatusSuccess}
	switch action {
	case model.ActionChatDashboard:
		resp.Contacts = append([]model.Contact(nil), b.contacts...)
	case model.ActionConversation:
		p := payload.(model.ConversationPayload)
		resp.Messages = append([]model.Message(nil), b.conversations[p.Recipient]...)
	case model.ActionSendMessage:
		p := payload.(model.SendPayload)
		b.conversations[p.Recipient] = append(b.conversations[p.Recipient], model.Message{
			Sender:    b.self,
			Recipient: p.Recipient,
			Body:      p.Message,
			Timestamp: time.Date(2024, 5, 1, 10, len(b.calls), 0, 0, time.UTC),
		})
	case model.ActionMarkAsRead:
		p := payload.(model.MarkReadPayload)
		for i := range b.contacts {
			if b.contacts[i].Username == p.Sender {
				b.contacts[i].UnreadCount = 0
			}
		}
	}
	return resp, nil
}

// receive stores an incoming message from peer and bumps its unread count.
func (b *fakeBackend) receive(peer, body string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[peer] = append(b.conversations[peer], model.Message{
		Sender: peer, Recipient: b.self, Body: body, Timestamp: at,
	})
	for i := range b.contacts {
		if b.contacts[i].Username == peer {
			b.contacts[i].UnreadCount++
		}
	}
}

func (b *fakeBackend) callsOf(action model.Action) []recordedCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedCall
	for _, c := range b.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBackend) actions() []model.Action {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Action, 0, len(b.calls))
	for _, c := range b.calls {
		out = append(out, c.Action)
	}
	return out
}

func (b *fakeBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

// harness plays the role of tea.Program: it runs commands synchronously and
// feeds the resulting messages back into the engine in order.
type harness struct {
	t        *testing.T
	engine   *Engine
	clock    *fakeClock
	backend  *fakeBackend
	sessions *fakeSessions

	mu      sync.Mutex
	queue   []tea.Msg
	emitted []tea.Msg // every message delivered, for assertions
}

func newHarness(t *testing.T, backend *fakeBackend) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		clock:    newFakeClock(),
		backend:  backend,
		sessions: newFakeSessions(backend.self),
	}
	h.engine = New(Config{
		Transport: backend,
		Sessions:  h.sessions,
		Clock:     h.clock,
		NoticeTTL: testNoticeTTL,
	})
	h.engine.Attach(h.post)
	return h
}

func (h *harness) post(msg tea.Msg) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, msg)
}

// exec runs cmd and returns the messages it produced, expanding batches.
func exec(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if msg == nil {
		return nil
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, exec(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// run executes cmd and processes everything that follows from it.
func (h *harness) run(cmd tea.Cmd) {
	for _, msg := range exec(cmd) {
		h.post(msg)
	}
	h.settle()
}

// deliver feeds msg to the engine and processes the fallout.
func (h *harness) deliver(msg tea.Msg) {
	h.post(msg)
	h.settle()
}

func (h *harness) settle() {
	for i := 0; ; i++ {
		if i > 1000 {
			h.t.Fatal("harness did not settle")
		}
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.mu.Unlock()
			return
		}
		msg := h.queue[0]
		h.queue = h.queue[1:]
		h.emitted = append(h.emitted, msg)
		h.mu.Unlock()

		for _, next := range exec(h.engine.Update(msg)) {
			h.post(next)
		}
	}
}

// tick fires the poll timer and processes the resulting refresh.
func (h *harness) tick() int {
	n := h.clock.fire(PollInterval)
	h.settle()
	return n
}

func (h *harness) sawExpired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.emitted {
		if _, ok := m.(SessionExpiredMsg); ok {
			return true
		}
	}
	return false
}

// testNoticeTTL differs from PollInterval so fire can tell the timers apart.
const testNoticeTTL = 3 * time.Second

var errUnreachable = errors.New("dial tcp: connection refused")
