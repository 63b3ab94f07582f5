package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/real-rm/counselbox/internal/api"
	cberrors "github.com/real-rm/counselbox/internal/errors"
	"github.com/real-rm/counselbox/internal/util"
	"github.com/real-rm/golog"
)

// Handle is an opened call-surface window.
type Handle interface {
	// Navigate points the window at the given URL.
	Navigate(url string)
	// Closed reports whether the user has closed the window.
	Closed() bool
	// Close closes the window. Closing an already-closed window is a no-op.
	Close()
}

// Surface opens call-surface windows. OpenBlank returns nil when the
// environment refused to open one (popup blocked).
type Surface interface {
	OpenBlank() Handle
}

// Panel renders the in-call state on the console itself.
type Panel interface {
	ShowCall(sessionID int64)
	ClearCall()
}

// CallService is the server side of the voice queue as seen from the console.
// Accepting a call is deliberately absent: that request is issued by the call
// surface itself after the hand-off, never by the console.
type CallService interface {
	FetchWaitingCalls(ctx context.Context) ([]api.CallSummary, error)
	EndCall(ctx context.Context, sessionID int64) error
}

// WaitingView renders the waiting-call queue.
type WaitingView interface {
	ReplaceWaiting(calls []api.CallSummary)
}

// Notifier surfaces a blocking user notice.
type Notifier interface {
	Notify(text string)
}

// Handoff drives the accept-call flow: hand the call to a separate
// call-surface window and keep the console's local state honest about whether
// that window is still there. The surface owns acceptance and termination of
// the call; the console only tracks the presumed session id it handed off.
type Handoff struct {
	consultantID  int64
	surfaceURL    string
	watchInterval time.Duration
	service       CallService
	surface       Surface
	panel         Panel
	view          WaitingView
	notifier      Notifier
	logger        *golog.Logger

	mu        sync.Mutex
	displayed int64
	handle    Handle
}

// NewHandoff creates a hand-off driver for one consultant.
func NewHandoff(consultantID int64, surfaceURL string, watchInterval time.Duration,
	service CallService, surface Surface, panel Panel, view WaitingView,
	notifier Notifier, logger *golog.Logger) *Handoff {
	return &Handoff{
		consultantID:  consultantID,
		surfaceURL:    surfaceURL,
		watchInterval: watchInterval,
		service:       service,
		surface:       surface,
		panel:         panel,
		view:          view,
		notifier:      notifier,
		logger:        logger.WithGroup("voice"),
	}
}

// DisplayedCall returns the session id of the call currently handed off, zero
// when none.
func (h *Handoff) DisplayedCall() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.displayed
}

// AcceptCall hands a waiting call to the surface. The blank window opens
// first: it must be created inside the user's click to survive popup policies.
// The closure watch starts before navigation so a window the user closes while
// still blank is noticed. Navigation is unconditional; the surface page claims
// the call on the server itself, so the displayed id is only presumed until
// the surface says otherwise.
func (h *Handoff) AcceptCall(sessionID int64) {
	handle := h.surface.OpenBlank()
	if handle == nil {
		h.logger.Warn("Call surface blocked", "session_id", sessionID)
		h.notifier.Notify(cberrors.ErrPopupBlocked().Notice())
		return
	}

	h.mu.Lock()
	h.displayed = sessionID
	h.handle = handle
	h.mu.Unlock()

	util.SafeGo(h.logger, "surfaceWatch", func() { h.watch(sessionID, handle) })

	handle.Navigate(fmt.Sprintf("%s?sessionId=%d&consultantId=%d",
		h.surfaceURL, sessionID, h.consultantID))

	h.panel.ShowCall(sessionID)
	h.logger.Info("Call handed off to surface",
		"session_id", sessionID,
		"consultant_id", h.consultantID)
}

// watch polls the window until the user closes it or another call displaces
// this one. A user-closed window only cleans up console state: the surface owns
// ending the call on the server, so no end request is sent from here.
func (h *Handoff) watch(sessionID int64, handle Handle) {
	ticker := time.NewTicker(h.watchInterval)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.Lock()
		current := h.displayed == sessionID && h.handle == handle
		h.mu.Unlock()
		if !current {
			return
		}
		if !handle.Closed() {
			continue
		}

		h.mu.Lock()
		if h.displayed == sessionID && h.handle == handle {
			h.displayed = 0
			h.handle = nil
		}
		h.mu.Unlock()
		h.panel.ClearCall()
		h.logger.Info("Call surface closed by user", "session_id", sessionID)
		return
	}
}

// Hangup ends the displayed call from the console side. With no displayed call
// it is a no-op. The server is asked first; only on success does the window
// close and the local state clear, so a refused hang-up leaves the call as it
// was.
func (h *Handoff) Hangup(ctx context.Context) {
	h.mu.Lock()
	sessionID := h.displayed
	handle := h.handle
	h.mu.Unlock()
	if sessionID == 0 {
		return
	}

	if err := h.service.EndCall(ctx, sessionID); err != nil {
		util.LogError(h.logger, "voice", "end the call", err,
			"session_id", sessionID)
		h.notifier.Notify(noticeFor(err, "Could not end the call. Please try again."))
		return
	}

	h.mu.Lock()
	if h.displayed == sessionID {
		h.displayed = 0
		h.handle = nil
	}
	h.mu.Unlock()

	if handle != nil {
		handle.Close()
	}
	h.panel.ClearCall()
	h.logger.Info("Call ended from console", "session_id", sessionID)
	h.Refresh(ctx)
}

// Refresh reloads the waiting-call queue. Failures keep the current display;
// the next signal or manual refresh retries.
func (h *Handoff) Refresh(ctx context.Context) {
	calls, err := h.service.FetchWaitingCalls(ctx)
	if err != nil {
		util.LogError(h.logger, "voice", "load waiting calls", err)
		return
	}
	h.view.ReplaceWaiting(calls)
}

// noticeFor prefers the structured user notice when the error carries one.
func noticeFor(err error, fallback string) string {
	var ce *cberrors.ClientError
	if errors.As(err, &ce) {
		return ce.Notice()
	}
	return fallback
}
