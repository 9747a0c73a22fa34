package manager

import (
	"sync"
	"time"
)

// journalSize bounds the events a manager keeps for status reports.
const journalSize = 32

// EventLog is a fixed-size ring of recent events. The manager keeps one for
// status reports and tests attach a larger one as their publisher.
type EventLog struct {
	mu   sync.Mutex
	buf  []Event
	next int
	full bool
}

// NewEventLog retains up to capacity events; non-positive means journalSize.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = journalSize
	}
	return &EventLog{buf: make([]Event, capacity)}
}

func (l *EventLog) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	l.mu.Lock()
	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()
}

// Events returns the retained events, oldest first.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append(make([]Event, 0, l.next), l.buf[:l.next]...)
	}
	out := make([]Event, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	return append(out, l.buf[:l.next]...)
}

// Names returns the retained event names, oldest first.
func (l *EventLog) Names() []string {
	evs := l.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}
