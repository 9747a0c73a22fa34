package manager

import "time"

// Event is one manager lifecycle notification.
type Event struct {
	Name   string         `json:"name"`
	Model  string         `json:"model,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Time   time.Time      `json:"time"`
}

// Event names published by the manager.
const (
	EventInstallStart   = "install_start"
	EventInstallPhase   = "install_phase"
	EventInstallDone    = "install_done"
	EventInstallFailed  = "install_failed"
	EventRemoveDone     = "remove_done"
	EventSynced         = "synced"
	EventRuntimeStarted = "runtime_started"
)

// EventPublisher receives manager events synchronously on the calling
// goroutine, so Publish must not block.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Progress is one advisory install notification.
type Progress struct {
	OperationID string    `json:"operationId"`
	Model       string    `json:"model"`
	Phase       string    `json:"phase"`
	Stream      string    `json:"stream,omitempty"`
	Line        string    `json:"line"`
	Time        time.Time `json:"time"`
}

// ProgressFunc observes install progress. Stdout and stderr lines arrive from
// separate goroutines, so implementations must be safe for concurrent use.
type ProgressFunc func(Progress)
