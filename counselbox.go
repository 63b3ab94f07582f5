// Package counselbox wires the support-portal client pieces into the two
// deliverable surfaces: the consultant console and the customer chat widget.
// Everything stateful lives in the internal packages; this package only
// composes them against a configuration and a set of views.
package counselbox

import (
	"context"
	"strings"

	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/channel"
	"github.com/real-rm/counselbox/internal/config"
	"github.com/real-rm/counselbox/internal/constants"
	"github.com/real-rm/counselbox/internal/envelope"
	cberrors "github.com/real-rm/counselbox/internal/errors"
	"github.com/real-rm/counselbox/internal/roster"
	"github.com/real-rm/counselbox/internal/session"
	"github.com/real-rm/counselbox/internal/util"
	"github.com/real-rm/counselbox/internal/voice"
	"github.com/real-rm/golog"
)

// AgentViews collects every rendering surface the consultant console drives.
type AgentViews struct {
	Conversation session.ConversationView
	Roster       roster.View
	Waiting      voice.WaitingView
	Panel        voice.Panel
	Surface      voice.Surface
	Notifier     session.Notifier
}

// AgentConsole is the consultant-side client: session handling, the polled
// roster, and the voice queue with its notification channel.
type AgentConsole struct {
	identity   envelope.Identity
	controller *session.Controller
	poller     *roster.Poller
	handoff    *voice.Handoff
	listener   *voice.Listener
	logger     *golog.Logger
}

// NewAgentConsole composes a console for the given consultant identity.
func NewAgentConsole(cfg *config.Config, id envelope.Identity, views AgentViews, logger *golog.Logger) (*AgentConsole, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !id.Valid() || id.Role != envelope.SenderAgent {
		return nil, cberrors.ErrIdentityMissing()
	}

	client := api.NewClient(cfg.ServerURL, cfg.BasePath, logger)
	opener := &dialerOpener{dialer: channel.NewDialer(client.SocketURL(constants.DefaultChatSocketPath), logger)}

	controller := session.NewController(id, opener, client, nil,
		views.Conversation, rosterSelection{views.Roster}, views.Notifier, logger)
	poller := roster.NewPoller(client, controller, views.Roster, views.Notifier,
		cfg.RosterInterval, logger)

	surfaceURL := resolveSurfaceURL(cfg.CallSurfaceURL, client.BaseURL())
	handoff := voice.NewHandoff(id.ID, surfaceURL, cfg.PopupWatchInterval,
		client, views.Surface, views.Panel, views.Waiting, views.Notifier, logger)

	console := &AgentConsole{
		identity:   id,
		controller: controller,
		poller:     poller,
		handoff:    handoff,
		logger:     logger.WithGroup("console"),
	}
	console.listener = voice.NewListener(
		client.SocketURL(constants.DefaultCallSocketPath), id.ID,
		cfg.NotifyReconnectDelay,
		func(envelope.Type) { handoff.Refresh(context.Background()) },
		logger)
	return console, nil
}

// Run starts the background loops and blocks until ctx is cancelled.
func (a *AgentConsole) Run(ctx context.Context) {
	a.logger.Info("Console running", "consultant_id", a.identity.ID)
	util.SafeGo(a.logger, "notifyListener", func() { a.listener.Run(ctx) })
	a.handoff.Refresh(ctx)
	a.poller.Run(ctx)
}

// SelectSession activates a session from the in-progress list.
func (a *AgentConsole) SelectSession(ctx context.Context, sessionID int64) {
	a.controller.SelectSession(ctx, sessionID)
}

// SendChat sends a chat message on the active session.
func (a *AgentConsole) SendChat(text string) {
	a.controller.SendChat(text)
}

// EndSession ends the active session.
func (a *AgentConsole) EndSession() {
	a.controller.EndSession()
}

// Assign claims a waiting session and activates it.
func (a *AgentConsole) Assign(ctx context.Context, sessionID int64) {
	a.poller.Assign(ctx, sessionID)
}

// AcceptCall hands a waiting voice call to the call surface.
func (a *AgentConsole) AcceptCall(sessionID int64) {
	a.handoff.AcceptCall(sessionID)
}

// Hangup ends the displayed voice call.
func (a *AgentConsole) Hangup(ctx context.Context) {
	a.handoff.Hangup(ctx)
}

// RefreshCalls reloads the waiting-call queue on demand.
func (a *AgentConsole) RefreshCalls(ctx context.Context) {
	a.handoff.Refresh(ctx)
}

// ActiveSession returns the console's active session id, zero when idle.
func (a *AgentConsole) ActiveSession() int64 {
	return a.controller.ActiveSession()
}

// CustomerWidget is the customer-side client: one inquiry session at a time,
// started on demand.
type CustomerWidget struct {
	identity   envelope.Identity
	controller *session.Controller
	logger     *golog.Logger
}

// NewCustomerWidget composes a widget for the given customer identity.
func NewCustomerWidget(cfg *config.Config, id envelope.Identity,
	view session.ConversationView, notifier session.Notifier, logger *golog.Logger) (*CustomerWidget, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !id.Valid() || id.Role != envelope.SenderUser {
		return nil, cberrors.ErrIdentityMissing()
	}

	client := api.NewClient(cfg.ServerURL, cfg.BasePath, logger)
	opener := &dialerOpener{dialer: channel.NewDialer(client.SocketURL(constants.DefaultChatSocketPath), logger)}
	controller := session.NewController(id, opener, client, client,
		view, nil, notifier, logger)

	return &CustomerWidget{
		identity:   id,
		controller: controller,
		logger:     logger.WithGroup("widget"),
	}, nil
}

// StartInquiry starts a new inquiry session, or sends on the existing one.
func (w *CustomerWidget) StartInquiry(ctx context.Context, inquiryType string) error {
	return w.controller.StartInquiry(ctx, inquiryType)
}

// SendChat sends a chat message on the active session.
func (w *CustomerWidget) SendChat(text string) {
	w.controller.SendChat(text)
}

// EndSession ends the active session.
func (w *CustomerWidget) EndSession() {
	w.controller.EndSession()
}

// ActiveSession returns the widget's active session id, zero when idle.
func (w *CustomerWidget) ActiveSession() int64 {
	return w.controller.ActiveSession()
}

// resolveSurfaceURL makes the call-surface URL absolute. Relative values, the
// default included, are resolved against the portal base so the opened window
// always navigates to a full origin.
func resolveSurfaceURL(configured, base string) string {
	u := configured
	if u == "" {
		u = constants.DefaultCallSurface
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return base + u
}

// dialerOpener adapts the channel dialer to the controller's Opener interface.
// The indirection keeps the nil handling explicit: a failed open must yield a
// nil interface, not a typed nil *channel.Channel inside one.
type dialerOpener struct {
	dialer *channel.Dialer
}

func (o *dialerOpener) Open(sessionID int64, id envelope.Identity, h channel.Handler) (session.Conn, error) {
	ch, err := o.dialer.Open(sessionID, id, h)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// rosterSelection adapts the roster view's highlight to the controller's
// Selection interface.
type rosterSelection struct {
	view roster.View
}

func (s rosterSelection) Select(sessionID int64) {
	if s.view != nil {
		s.view.MarkSelected(sessionID)
	}
}
