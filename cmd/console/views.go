package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/voice"
)

// terminalConversation renders the conversation as prefixed lines on a writer.
type terminalConversation struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
}

func newTerminalConversation(out io.Writer) *terminalConversation {
	return &terminalConversation{out: out, enabled: true}
}

func (v *terminalConversation) AppendSelf(text string) { v.line("you   | " + text) }

func (v *terminalConversation) AppendOther(text string) { v.line("them  | " + text) }

func (v *terminalConversation) AppendSystem(text string) { v.line("-- " + text) }

func (v *terminalConversation) Clear() {
	v.line("-- (conversation cleared)")
}

func (v *terminalConversation) SetInputEnabled(enabled bool) {
	v.mu.Lock()
	v.enabled = enabled
	v.mu.Unlock()
	if !enabled {
		v.line("-- (input disabled)")
	}
}

// InputEnabled reports whether sending is currently allowed.
func (v *terminalConversation) InputEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.enabled
}

func (v *terminalConversation) line(s string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, s)
}

// terminalNotifier renders blocking notices as loud terminal lines.
type terminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (n *terminalNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "!! %s\n", text)
}

// terminalRoster prints the two session lists whenever their content changes.
// Reprinting every poll would flood the terminal, so it remembers the last
// rendering.
type terminalRoster struct {
	mu       sync.Mutex
	out      io.Writer
	lastWait string
	lastChat string
	selected int64
}

func newTerminalRoster(out io.Writer) *terminalRoster {
	return &terminalRoster{out: out}
}

func (v *terminalRoster) ReplaceWaiting(sessions []api.SessionSummary) {
	v.replace("waiting", sessions, &v.lastWait)
}

func (v *terminalRoster) ReplaceChatting(sessions []api.SessionSummary) {
	v.replace("chatting", sessions, &v.lastChat)
}

func (v *terminalRoster) MarkSelected(sessionID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == sessionID {
		return
	}
	v.selected = sessionID
	fmt.Fprintf(v.out, "== selected session #%d\n", sessionID)
}

func (v *terminalRoster) replace(label string, sessions []api.SessionSummary, last *string) {
	rendered := ""
	for _, s := range sessions {
		rendered += fmt.Sprintf("  #%d %s %s\n", s.SessionID, s.InquiryType, s.Status)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if rendered == *last {
		return
	}
	*last = rendered
	if rendered == "" {
		fmt.Fprintf(v.out, "== %s: (empty)\n", label)
		return
	}
	fmt.Fprintf(v.out, "== %s:\n%s", label, rendered)
}

// terminalWaitingCalls prints the voice queue when it changes.
type terminalWaitingCalls struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func (v *terminalWaitingCalls) ReplaceWaiting(calls []api.CallSummary) {
	rendered := ""
	for _, c := range calls {
		rendered += fmt.Sprintf("  call #%d %s\n", c.SessionID, c.Status)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if rendered == v.last {
		return
	}
	v.last = rendered
	if rendered == "" {
		fmt.Fprintln(v.out, "== calls waiting: (none)")
		return
	}
	fmt.Fprintf(v.out, "== calls waiting:\n%s", rendered)
}

// terminalPanel prints the in-call banner.
type terminalPanel struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *terminalPanel) ShowCall(sessionID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "** in call, session #%d\n", sessionID)
}

func (p *terminalPanel) ClearCall() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "** call cleared")
}

// terminalSurface stands in for the browser's popup window. The terminal has
// no separate window to hand the call to; the handle just tracks the URL and
// stays open until closed from the console.
type terminalSurface struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *terminalSurface) OpenBlank() voice.Handle {
	return &terminalHandle{out: s.out}
}

type terminalHandle struct {
	mu     sync.Mutex
	out    io.Writer
	closed bool
}

func (h *terminalHandle) Navigate(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fmt.Fprintf(h.out, "** call surface: %s\n", url)
}

func (h *terminalHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *terminalHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}
