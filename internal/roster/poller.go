// Package roster keeps the consultant's two session lists fresh: the waiting
// queue and the in-progress list. The server is the source of truth; every
// poll replaces both lists wholesale and then re-applies the local selection
// highlight, so selection state survives refreshes without diffing.
package roster

import (
	"context"
	"sync"
	"time"

	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/metrics"
	"github.com/real-rm/counselbox/internal/util"
	"github.com/real-rm/golog"
)

// View renders the two lists. ReplaceWaiting and ReplaceChatting discard
// whatever was displayed before; MarkSelected highlights exactly one row.
type View interface {
	ReplaceWaiting(sessions []api.SessionSummary)
	ReplaceChatting(sessions []api.SessionSummary)
	MarkSelected(sessionID int64)
}

// Directory is the server side of the roster: the list fetch and the
// assignment claim.
type Directory interface {
	FetchRoster(ctx context.Context) (*api.Roster, error)
	AssignSession(ctx context.Context, sessionID int64) error
}

// SessionSelector activates a session. The poller consults ActiveSession to
// re-apply the highlight after each refresh.
type SessionSelector interface {
	SelectSession(ctx context.Context, sessionID int64)
	ActiveSession() int64
}

// Notifier surfaces a blocking user notice.
type Notifier interface {
	Notify(text string)
}

// Poller refreshes the roster on a fixed interval and handles the consultant's
// assign action.
type Poller struct {
	directory Directory
	selector  SessionSelector
	view      View
	notifier  Notifier
	interval  time.Duration
	logger    *golog.Logger

	mu       sync.Mutex
	waiting  []api.SessionSummary
	chatting []api.SessionSummary
}

// NewPoller creates a poller. interval is how often the lists refresh.
func NewPoller(directory Directory, selector SessionSelector, view View,
	notifier Notifier, interval time.Duration, logger *golog.Logger) *Poller {
	return &Poller{
		directory: directory,
		selector:  selector,
		view:      view,
		notifier:  notifier,
		interval:  interval,
		logger:    logger.WithGroup("roster"),
	}
}

// Run polls until ctx is cancelled. The first refresh happens immediately so
// the console never opens on empty lists.
func (p *Poller) Run(ctx context.Context) {
	p.Tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Roster polling stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick refreshes both lists once. A failed fetch keeps the current display:
// stale lists beat empty ones, and the next tick retries anyway.
func (p *Poller) Tick(ctx context.Context) {
	roster, err := p.directory.FetchRoster(ctx)
	if err != nil {
		metrics.RosterTicks.WithLabelValues("error").Inc()
		util.LogError(p.logger, "roster", "load the session lists", err)
		return
	}
	metrics.RosterTicks.WithLabelValues("ok").Inc()
	p.apply(roster.WaitingList, roster.ChattingList)
}

// apply replaces the rendered lists and restores the selection highlight when
// the active session is still present in the in-progress list.
func (p *Poller) apply(waiting, chatting []api.SessionSummary) {
	p.mu.Lock()
	p.waiting = waiting
	p.chatting = chatting
	p.mu.Unlock()

	p.view.ReplaceWaiting(waiting)
	p.view.ReplaceChatting(chatting)

	active := p.selector.ActiveSession()
	if active == 0 {
		return
	}
	for _, s := range chatting {
		if s.SessionID == active {
			p.view.MarkSelected(active)
			return
		}
	}
}

// Assign claims a waiting session for this consultant. On success the session
// moves to the in-progress list locally right away and becomes the active
// session; the next poll confirms the move from the server's view. On failure
// the user gets a blocking notice and the lists stay as they were.
func (p *Poller) Assign(ctx context.Context, sessionID int64) {
	if err := p.directory.AssignSession(ctx, sessionID); err != nil {
		util.LogError(p.logger, "roster", "assign the session", err,
			"session_id", sessionID)
		p.notifier.Notify("Could not assign the session. Please try again.")
		return
	}

	p.mu.Lock()
	waiting := make([]api.SessionSummary, 0, len(p.waiting))
	var moved *api.SessionSummary
	for _, s := range p.waiting {
		if s.SessionID == sessionID {
			claimed := s
			claimed.Status = "IN_PROGRESS"
			moved = &claimed
			continue
		}
		waiting = append(waiting, s)
	}
	p.waiting = waiting
	if moved != nil {
		p.chatting = append(p.chatting, *moved)
	}
	waitingCopy := p.waiting
	chattingCopy := p.chatting
	p.mu.Unlock()

	p.view.ReplaceWaiting(waitingCopy)
	p.view.ReplaceChatting(chattingCopy)

	p.selector.SelectSession(ctx, sessionID)
	p.view.MarkSelected(sessionID)
}

// Waiting returns the last fetched waiting list.
func (p *Poller) Waiting() []api.SessionSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting
}

// Chatting returns the last fetched in-progress list.
func (p *Poller) Chatting() []api.SessionSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chatting
}
