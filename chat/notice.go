package chat

import (
	"time"

	"github.com/sirupsen/logrus"
)

// NoticeTTL is how long a notice stays visible.
const NoticeTTL = 5 * time.Second

// NoticeKind selects the notice style.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is one entry of the notification area.
type Notice struct {
	ID   int
	Kind NoticeKind
	Text string
}

type noticeExpiredMsg struct {
	id int
}

// Notify adds a notice and schedules its removal. It must be called from
// the program goroutine, like Update.
func (e *Engine) Notify(kind NoticeKind, text string) {
	e.nextNoticeID++
	id := e.nextNoticeID
	e.notices = append(e.notices, Notice{ID: id, Kind: kind, Text: text})

	logrus.WithFields(logrus.Fields{
		"function": "Notify",
		"kind":     kind,
		"text":     text,
	}).Info("Notice shown")

	e.clock.AfterFunc(e.noticeTTL, func() {
		e.post(noticeExpiredMsg{id: id})
	})
}

func (e *Engine) dismiss(id int) {
	for i, n := range e.notices {
		if n.ID == id {
			e.notices = append(e.notices[:i], e.notices[i+1:]...)
			return
		}
	}
}
