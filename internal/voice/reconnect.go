package voice

import (
	"sync"
	"time"
)

// State is the connection state of the call-notification channel.
type State int

const (
	// Disconnected means no connection and no retry scheduled.
	Disconnected State = iota
	// Connected means the channel is up and delivering signals.
	Connected
	// Reconnecting means a retry is scheduled after the fixed delay.
	Reconnecting
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Reconnector tracks the notification channel's connection state and paces
// retries. The retry delay is fixed: the channel reconnects forever at the
// same cadence, with no backoff and no attempt cap.
type Reconnector struct {
	delay time.Duration

	mu       sync.Mutex
	state    State
	attempts int
}

// NewReconnector creates a reconnector with the given fixed retry delay.
func NewReconnector(delay time.Duration) *Reconnector {
	return &Reconnector{delay: delay}
}

// State returns the current connection state.
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts returns how many reconnects have been scheduled since the last
// successful connection.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Connected records a successful connection and resets the attempt counter.
func (r *Reconnector) Connected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Connected
	r.attempts = 0
}

// Disconnected records a dropped or failed connection and returns the delay to
// wait before the next attempt.
func (r *Reconnector) Disconnected() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Reconnecting
	r.attempts++
	return r.delay
}

// Stop records a deliberate shutdown.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Disconnected
}
