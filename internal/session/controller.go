// Package session holds the single active session for one client instance
// (consultant console or customer widget) and drives everything scoped to it:
// the channel lifecycle, history backfill, rendering callbacks, and the
// terminal end-of-session effects.
//
// The controller is the exclusive owner of the active session id and the open
// channel. Event handlers reach both only through it, which is what keeps the
// at-most-one-active-channel invariant enforceable.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/channel"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/real-rm/counselbox/internal/metrics"
	"github.com/real-rm/counselbox/internal/routing"
	"github.com/real-rm/counselbox/internal/util"
	"github.com/real-rm/golog"
)

// ConversationView renders the conversation. Implementations own the DOM (or
// terminal) side; the controller only decides what and when.
type ConversationView interface {
	AppendSelf(text string)
	AppendOther(text string)
	AppendSystem(text string)
	Clear()
	SetInputEnabled(enabled bool)
}

// Notifier surfaces a blocking user notice.
type Notifier interface {
	Notify(text string)
}

// Selection reflects the highlighted-selection pointer in a session list.
// The consultant console wires this to the roster view; the customer widget
// has no list and passes nil.
type Selection interface {
	Select(sessionID int64)
}

// HistoryService backfills and read-marks stored messages.
type HistoryService interface {
	FetchHistory(ctx context.Context, sessionID int64) ([]api.HistoryMessage, error)
	MarkRead(ctx context.Context, sessionID int64) error
}

// StartService creates a new inquiry session (customer side).
type StartService interface {
	StartSession(ctx context.Context, inquiryType string) (int64, error)
}

// Conn is the slice of a channel the controller needs.
type Conn interface {
	Send(e envelope.Envelope) error
	Close()
	SessionID() int64
}

// Opener opens session-scoped channels.
type Opener interface {
	Open(sessionID int64, id envelope.Identity, h channel.Handler) (Conn, error)
}

// Controller is the session state machine for one client instance.
type Controller struct {
	identity envelope.Identity
	opener   Opener
	history  HistoryService
	starter  StartService
	view     ConversationView
	selected Selection
	notifier Notifier
	logger   *golog.Logger

	mu     sync.Mutex
	active int64
	conn   Conn
	ended  bool
	epoch  uint64 // increments on every channel open; stale events are dropped
}

// NewController creates a controller. starter may be nil on the consultant
// side, selected may be nil on the customer side.
func NewController(id envelope.Identity, opener Opener, history HistoryService,
	starter StartService, view ConversationView, selected Selection,
	notifier Notifier, logger *golog.Logger) *Controller {
	return &Controller{
		identity: id,
		opener:   opener,
		history:  history,
		starter:  starter,
		view:     view,
		selected: selected,
		notifier: notifier,
		logger:   logger.WithGroup("session"),
	}
}

// ActiveSession returns the currently active session id, zero when idle.
func (c *Controller) ActiveSession() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Ended reports whether the active session has reached its terminal state.
func (c *Controller) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// SelectSession makes the given session current: updates the selection
// highlight, clears the conversation view, backfills history, marks messages
// read, and opens the channel. A failed backfill degrades rather than aborts:
// a notice is rendered and the channel still opens so live messages flow.
//
// Selecting session zero is a no-op. Any previously open channel is closed
// before the new one opens.
func (c *Controller) SelectSession(ctx context.Context, sessionID int64) {
	if sessionID == 0 {
		return
	}

	c.mu.Lock()
	prior := c.conn
	c.conn = nil
	c.active = sessionID
	c.ended = false
	c.mu.Unlock()

	if prior != nil {
		prior.Close()
	}

	if c.selected != nil {
		c.selected.Select(sessionID)
	}
	c.view.Clear()
	c.view.SetInputEnabled(true)

	msgs, err := c.history.FetchHistory(ctx, sessionID)
	if err != nil {
		util.LogError(c.logger, "session", "load previous messages", err,
			"session_id", sessionID)
		c.view.AppendSystem("Previous messages are unavailable.")
	} else {
		for _, m := range msgs {
			if m.SenderType == c.identity.Role {
				c.view.AppendSelf(m.MessageText)
			} else {
				c.view.AppendOther(m.MessageText)
			}
		}
		c.view.AppendSystem(fmt.Sprintf("Session #%d started.", sessionID))
		// Read-marking is advisory: log and move on.
		if err := c.history.MarkRead(ctx, sessionID); err != nil {
			util.LogError(c.logger, "session", "mark messages read", err,
				"session_id", sessionID)
		}
	}

	c.openChannel(sessionID)
}

// StartInquiry starts a new customer inquiry when no session is active yet,
// then sends the inquiry type as the first chat message.
func (c *Controller) StartInquiry(ctx context.Context, inquiryType string) error {
	inquiryType = strings.TrimSpace(inquiryType)
	if inquiryType == "" {
		return nil
	}
	if c.starter == nil {
		c.logger.Error("No start service configured, inquiry not started")
		return nil
	}

	if c.ActiveSession() == 0 {
		sessionID, err := c.starter.StartSession(ctx, inquiryType)
		if err != nil {
			util.LogError(c.logger, "session", "start a session", err)
			c.notifier.Notify("Could not start a support session. Please try again.")
			return err
		}
		c.mu.Lock()
		c.active = sessionID
		c.ended = false
		c.mu.Unlock()
		c.view.SetInputEnabled(true)
		c.openChannel(sessionID)
	}

	c.SendChat(inquiryType)
	return nil
}

// SendChat renders the message locally as self immediately, then queues it on
// the channel. The UI never waits for an acknowledgment or echo. After the
// session has ended, sending is rejected client-side as a no-op until a new
// session is selected.
func (c *Controller) SendChat(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	sessionID := c.active
	conn := c.conn
	c.mu.Unlock()

	if sessionID == 0 {
		c.notifier.Notify("No session is selected.")
		return
	}

	c.view.AppendSelf(trimmed)

	if conn == nil {
		c.logger.Warn("Channel not open, message not delivered to server",
			"session_id", sessionID)
		return
	}
	if err := conn.Send(envelope.Chat(sessionID, c.identity, trimmed)); err != nil {
		util.LogError(c.logger, "session", "send chat envelope", err,
			"session_id", sessionID)
	}
}

// EndSession ends the active session on the user's explicit request: sends the
// END envelope while the channel is still open, then closes it, disables
// input, and renders the local ended notice. Ending twice produces the same
// end state as ending once; ending with no active session is a user-visible
// blocking notice.
func (c *Controller) EndSession() {
	c.mu.Lock()
	if c.active == 0 {
		c.mu.Unlock()
		c.notifier.Notify("No session is selected to end.")
		return
	}
	if c.ended {
		c.mu.Unlock()
		return
	}
	sessionID := c.active
	conn := c.conn
	c.conn = nil
	c.ended = true
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Send(envelope.End(sessionID, c.identity)); err != nil {
			util.LogError(c.logger, "session", "send end envelope", err,
				"session_id", sessionID)
		}
		conn.Close()
	}
	c.view.SetInputEnabled(false)
	c.view.AppendSystem("You ended the session.")
}

// openChannel opens a channel for the session and installs it as the single
// active connection, unless the user already moved on to another session while
// the dial was in flight.
func (c *Controller) openChannel(sessionID int64) {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	conn, err := c.opener.Open(sessionID, c.identity, &connEvents{c: c, epoch: epoch})
	if err != nil {
		// Config and transport errors are logged by the adapter; a closed chat
		// channel requires the user to reselect the session, so nothing else
		// happens here.
		return
	}

	c.mu.Lock()
	if c.active != sessionID || c.epoch != epoch {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()
}

// connEvents forwards channel callbacks into the controller, tagged with the
// epoch of the open that created them so events from a superseded channel are
// dropped.
type connEvents struct {
	c     *Controller
	epoch uint64
}

func (e *connEvents) OnOpen(sessionID int64) {
	e.c.logger.Info("Session channel open", "session_id", sessionID)
}

func (e *connEvents) OnMessage(raw []byte) {
	if !e.current() {
		return
	}
	e.c.handleInbound(raw)
}

func (e *connEvents) OnClose(sessionID int64) {
	c := e.c
	c.mu.Lock()
	if c.epoch == e.epoch {
		// The chat channel does not auto-reconnect: a closed channel stays
		// closed until the user reselects the session.
		c.conn = nil
	}
	c.mu.Unlock()
	c.logger.Info("Session channel closed", "session_id", sessionID)
}

func (e *connEvents) OnError(err error) {
	util.LogError(e.c.logger, "session", "handle channel event", err)
}

func (e *connEvents) current() bool {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()
	return e.c.epoch == e.epoch
}

// handleInbound routes one raw payload and applies the render decision.
func (c *Controller) handleInbound(raw []byte) {
	env, ok := envelope.Decode(raw)
	if !ok {
		// Malformed payloads are tolerated: shown as opaque counterpart text,
		// matching the channel's best-effort display policy.
		metrics.TransportErrors.Inc()
		c.view.AppendOther(string(raw))
		return
	}

	action := routing.Route(env, c.identity, c.ActiveSession())
	metrics.EnvelopesRouted.WithLabelValues(action.String()).Inc()

	switch action {
	case routing.RenderAsOther:
		c.view.AppendOther(env.Message)
	case routing.RenderAsSystem:
		c.view.AppendSystem(env.Message)
	case routing.Terminate:
		c.terminate()
	}
}

// terminate applies the remote end-of-session effects. The client never
// re-sends its own END in response.
func (c *Controller) terminate() {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.ended = true
	c.mu.Unlock()

	c.view.SetInputEnabled(false)
	c.view.AppendSystem("The session has ended.")
	if conn != nil {
		conn.Close()
	}
}
