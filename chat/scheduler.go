package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// PollInterval is the fixed refresh period of the messaging view.
const PollInterval = 5 * time.Second

// PollTickMsg is posted by the scheduler timer. Ticks from a cancelled
// polling session carry an old epoch and are dropped.
type PollTickMsg struct {
	Epoch uint64
	At    time.Time
}

// pollingSession is one start..stop run of the scheduler.
type pollingSession struct {
	epoch uint64
	timer Timer
	peer  string // active peer when the current timer was armed
}

// Scheduler owns the recurring refresh timer. At most one timer is armed at
// any time: Start cancels the previous session before installing a new one.
// It is not safe for concurrent use; the engine calls it from Update only.
type Scheduler struct {
	clock   Clock
	send    func(tea.Msg)
	epoch   uint64
	current *pollingSession
}

// NewScheduler returns a stopped scheduler that posts ticks through send.
func NewScheduler(clock Clock, send func(tea.Msg)) *Scheduler {
	if clock == nil {
		clock = DefaultClock
	}
	return &Scheduler{clock: clock, send: send}
}

// Start cancels any running session and arms a new one.
func (s *Scheduler) Start(peer string) {
	s.Stop()

	s.epoch++
	s.current = &pollingSession{epoch: s.epoch}
	s.arm(peer)

	logrus.WithFields(logrus.Fields{
		"function": "Start",
		"epoch":    s.epoch,
		"peer":     peer,
	}).Debug("Polling started")
}

// Stop cancels the pending timer. Calling it while stopped is a no-op.
func (s *Scheduler) Stop() {
	if s.current == nil {
		return
	}
	if s.current.timer != nil {
		s.current.timer.Stop()
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stop",
		"epoch":    s.current.epoch,
	}).Debug("Polling stopped")

	s.current = nil
	// A tick that already fired is queued with the old epoch; bumping it
	// makes Accept drop that tick.
	s.epoch++
}

// Accept reports whether tick belongs to the live session. An accepted tick
// re-arms the timer before the caller runs its refresh, so a failing refresh
// never delays the next tick.
func (s *Scheduler) Accept(tick PollTickMsg, peer string) bool {
	if s.current == nil || tick.Epoch != s.current.epoch {
		logrus.WithFields(logrus.Fields{
			"function":   "Accept",
			"tick_epoch": tick.Epoch,
			"epoch":      s.epoch,
		}).Debug("Dropping tick from cancelled polling session")
		return false
	}
	s.arm(peer)
	return true
}

// Active reports whether a polling session is running.
func (s *Scheduler) Active() bool {
	return s.current != nil
}

// Epoch returns the epoch of the running session, or 0 when stopped.
func (s *Scheduler) Epoch() uint64 {
	if s.current == nil {
		return 0
	}
	return s.current.epoch
}

func (s *Scheduler) arm(peer string) {
	ps := s.current
	epoch := ps.epoch
	clock, send := s.clock, s.send

	ps.peer = peer
	ps.timer = clock.AfterFunc(PollInterval, func() {
		if send != nil {
			send(PollTickMsg{Epoch: epoch, At: clock.Now()})
		}
	})
}
