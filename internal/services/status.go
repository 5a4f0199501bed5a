package services

import (
	"sync"
	"time"
)

type SyncStatus string

const (
	StatusIdle      SyncStatus = "idle"
	StatusUploading SyncStatus = "uploading"
	StatusSuccess   SyncStatus = "success"
	StatusError     SyncStatus = "error"
)

type Status struct {
	State     SyncStatus `json:"state"`
	Message   string     `json:"message,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// StatusTracker holds the user-visible sync status. Success and error go
// back to idle after the display duration unless something newer was set.
type StatusTracker struct {
	mu      sync.Mutex
	current Status
	gen     uint64
	display time.Duration
}

func NewStatusTracker(display time.Duration) *StatusTracker {
	return &StatusTracker{
		current: Status{State: StatusIdle, UpdatedAt: time.Now()},
		display: display,
	}
}

func (t *StatusTracker) Set(state SyncStatus, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gen++
	t.current = Status{State: state, Message: message, UpdatedAt: time.Now()}
	if state != StatusSuccess && state != StatusError {
		return
	}

	gen := t.gen
	time.AfterFunc(t.display, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.gen == gen {
			t.current = Status{State: StatusIdle, UpdatedAt: time.Now()}
		}
	})
}

func (t *StatusTracker) Current() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
