// Package testutil provides common test helpers and mock implementations
// for the console, widget, roster, and voice tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/channel"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/real-rm/counselbox/internal/session"
	"github.com/real-rm/counselbox/internal/voice"
	"github.com/real-rm/golog"
)

// CreateTestLogger creates a logger for testing that writes to a temporary directory
func CreateTestLogger(t *testing.T) *golog.Logger {
	t.Helper()
	logger, err := golog.InitLog(golog.LogConfig{
		Dir:            t.TempDir(),
		Level:          "error",
		StandardOutput: false,
	})
	if err != nil {
		t.Fatalf("Failed to create test logger: %v", err)
	}
	return logger
}

// Entry is one rendered conversation line captured by MockConversationView.
type Entry struct {
	Kind string // "self", "other", "system"
	Text string
}

// MockConversationView records every render call in order.
type MockConversationView struct {
	mu           sync.Mutex
	Entries      []Entry
	Cleared      int
	InputEnabled bool
}

func (v *MockConversationView) AppendSelf(text string) { v.append("self", text) }

func (v *MockConversationView) AppendOther(text string) { v.append("other", text) }

func (v *MockConversationView) AppendSystem(text string) { v.append("system", text) }

func (v *MockConversationView) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Entries = nil
	v.Cleared++
}

func (v *MockConversationView) SetInputEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.InputEnabled = enabled
}

func (v *MockConversationView) append(kind, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Entries = append(v.Entries, Entry{Kind: kind, Text: text})
}

// Rendered returns a snapshot of the captured entries.
func (v *MockConversationView) Rendered() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Entry, len(v.Entries))
	copy(out, v.Entries)
	return out
}

// Input reports the last input-enabled state.
func (v *MockConversationView) Input() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.InputEnabled
}

// MockNotifier records blocking notices.
type MockNotifier struct {
	mu      sync.Mutex
	Notices []string
}

func (n *MockNotifier) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Notices = append(n.Notices, text)
}

// All returns a snapshot of the captured notices.
func (n *MockNotifier) All() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.Notices))
	copy(out, n.Notices)
	return out
}

// MockSelection records selection highlight changes.
type MockSelection struct {
	mu       sync.Mutex
	Selected []int64
}

func (s *MockSelection) Select(sessionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Selected = append(s.Selected, sessionID)
}

// Last returns the most recent selection, zero when none.
func (s *MockSelection) Last() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Selected) == 0 {
		return 0
	}
	return s.Selected[len(s.Selected)-1]
}

// MockRosterView records list replacements and highlight calls.
type MockRosterView struct {
	mu           sync.Mutex
	Waiting      []api.SessionSummary
	Chatting     []api.SessionSummary
	WaitingSets  int
	ChattingSets int
	Highlighted  []int64
}

func (v *MockRosterView) ReplaceWaiting(sessions []api.SessionSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Waiting = sessions
	v.WaitingSets++
}

func (v *MockRosterView) ReplaceChatting(sessions []api.SessionSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Chatting = sessions
	v.ChattingSets++
}

func (v *MockRosterView) MarkSelected(sessionID int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Highlighted = append(v.Highlighted, sessionID)
}

// WaitingList returns the last rendered waiting list.
func (v *MockRosterView) WaitingList() []api.SessionSummary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Waiting
}

// ChattingList returns the last rendered in-progress list.
func (v *MockRosterView) ChattingList() []api.SessionSummary {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Chatting
}

// LastHighlight returns the most recent highlighted session, zero when none.
func (v *MockRosterView) LastHighlight() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.Highlighted) == 0 {
		return 0
	}
	return v.Highlighted[len(v.Highlighted)-1]
}

// MockHistoryService is a mock history backend with error injection.
type MockHistoryService struct {
	mu sync.Mutex

	FetchHistoryFunc   func(int64) ([]api.HistoryMessage, error)
	FetchHistoryError  error
	FetchHistoryCalled bool
	History            []api.HistoryMessage

	MarkReadError    error
	MarkReadSessions []int64
}

func (m *MockHistoryService) FetchHistory(_ context.Context, sessionID int64) ([]api.HistoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchHistoryCalled = true
	if m.FetchHistoryFunc != nil {
		return m.FetchHistoryFunc(sessionID)
	}
	if m.FetchHistoryError != nil {
		return nil, m.FetchHistoryError
	}
	return m.History, nil
}

func (m *MockHistoryService) MarkRead(_ context.Context, sessionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkReadSessions = append(m.MarkReadSessions, sessionID)
	return m.MarkReadError
}

// MockStartService is a mock session-start backend with error injection.
type MockStartService struct {
	mu sync.Mutex

	StartSessionError error
	NextSessionID     int64
	StartedInquiries  []string
}

func (m *MockStartService) StartSession(_ context.Context, inquiryType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartSessionError != nil {
		return 0, m.StartSessionError
	}
	m.StartedInquiries = append(m.StartedInquiries, inquiryType)
	return m.NextSessionID, nil
}

// MockConn is a fake channel connection that records sent envelopes.
type MockConn struct {
	mu        sync.Mutex
	ID        int64
	SendError error
	Sent      []envelope.Envelope
	Closes    int
}

func (c *MockConn) Send(e envelope.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendError != nil {
		return c.SendError
	}
	c.Sent = append(c.Sent, e)
	return nil
}

func (c *MockConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closes++
}

func (c *MockConn) SessionID() int64 { return c.ID }

// SentEnvelopes returns a snapshot of the envelopes sent on this conn.
func (c *MockConn) SentEnvelopes() []envelope.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]envelope.Envelope, len(c.Sent))
	copy(out, c.Sent)
	return out
}

// CloseCount returns how many times Close was called.
func (c *MockConn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Closes
}

// MockOpener hands out MockConns and keeps the handler of the latest open so
// tests can inject inbound frames.
type MockOpener struct {
	mu sync.Mutex

	OpenError error
	Opened    []*MockConn
	Handlers  []channel.Handler
}

func (o *MockOpener) Open(sessionID int64, _ envelope.Identity, h channel.Handler) (session.Conn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.OpenError != nil {
		return nil, o.OpenError
	}
	conn := &MockConn{ID: sessionID}
	o.Opened = append(o.Opened, conn)
	o.Handlers = append(o.Handlers, h)
	return conn, nil
}

// LastConn returns the most recently opened conn, nil when none.
func (o *MockOpener) LastConn() *MockConn {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Opened) == 0 {
		return nil
	}
	return o.Opened[len(o.Opened)-1]
}

// LastHandler returns the handler from the most recent open, nil when none.
func (o *MockOpener) LastHandler() channel.Handler {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Handlers) == 0 {
		return nil
	}
	return o.Handlers[len(o.Handlers)-1]
}

// Deliver injects an inbound raw payload through the latest open's handler.
func (o *MockOpener) Deliver(raw []byte) {
	if h := o.LastHandler(); h != nil {
		h.OnMessage(raw)
	}
}

// MockDirectory is a mock roster backend with error injection.
type MockDirectory struct {
	mu sync.Mutex

	FetchRosterError error
	Roster           api.Roster
	FetchCount       int

	AssignError    error
	AssignedCalled []int64
}

func (d *MockDirectory) FetchRoster(_ context.Context) (*api.Roster, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FetchCount++
	if d.FetchRosterError != nil {
		return nil, d.FetchRosterError
	}
	r := d.Roster
	return &r, nil
}

func (d *MockDirectory) AssignSession(_ context.Context, sessionID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.AssignError != nil {
		return d.AssignError
	}
	d.AssignedCalled = append(d.AssignedCalled, sessionID)
	return nil
}

// SetRoster swaps the roster returned by the next fetch.
func (d *MockDirectory) SetRoster(r api.Roster) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Roster = r
}

// Fetches returns how many roster fetches have been attempted.
func (d *MockDirectory) Fetches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.FetchCount
}

// MockCallService is a mock voice backend with error injection. It covers
// only what the console itself may do with the queue; claiming a call happens
// on the surface side and has no mock here.
type MockCallService struct {
	mu sync.Mutex

	WaitingCalls      []api.CallSummary
	FetchWaitingError error

	EndError   error
	EndedCalls []int64
}

func (m *MockCallService) FetchWaitingCalls(_ context.Context) ([]api.CallSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchWaitingError != nil {
		return nil, m.FetchWaitingError
	}
	return m.WaitingCalls, nil
}

func (m *MockCallService) EndCall(_ context.Context, sessionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EndError != nil {
		return m.EndError
	}
	m.EndedCalls = append(m.EndedCalls, sessionID)
	return nil
}

// FakeHandle is a fake call-surface window.
type FakeHandle struct {
	mu        sync.Mutex
	URL       string
	closed    bool
	CloseCnt  int
	Navigated int
}

func (h *FakeHandle) Navigate(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.URL = url
	h.Navigated++
}

func (h *FakeHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *FakeHandle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.CloseCnt++
}

// UserClose simulates the user closing the window without the console's help.
func (h *FakeHandle) UserClose() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

// FakeSurface hands out FakeHandles, or nil when Blocked is set. With
// PreClosed set, every handle comes back already user-closed, as when the
// window is dismissed while still blank.
type FakeSurface struct {
	mu        sync.Mutex
	Blocked   bool
	PreClosed bool
	Handles   []*FakeHandle
}

// OpenBlank returns a new handle, or a nil interface when the surface is
// blocked, matching what a popup-blocked environment reports.
func (s *FakeSurface) OpenBlank() voice.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Blocked {
		return nil
	}
	h := &FakeHandle{closed: s.PreClosed}
	s.Handles = append(s.Handles, h)
	return h
}

// LastHandle returns the most recently opened handle, nil when none.
func (s *FakeSurface) LastHandle() *FakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Handles) == 0 {
		return nil
	}
	return s.Handles[len(s.Handles)-1]
}

// MockPanel records in-call panel state changes.
type MockPanel struct {
	mu      sync.Mutex
	Showing int64
	Shows   []int64
	Clears  int
}

func (p *MockPanel) ShowCall(sessionID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Showing = sessionID
	p.Shows = append(p.Shows, sessionID)
}

func (p *MockPanel) ClearCall() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Showing = 0
	p.Clears++
}

// Displayed returns the session currently shown on the panel.
func (p *MockPanel) Displayed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Showing
}

// MockWaitingView records waiting-call list replacements.
type MockWaitingView struct {
	mu       sync.Mutex
	Calls    []api.CallSummary
	Replaces int
}

func (v *MockWaitingView) ReplaceWaiting(calls []api.CallSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Calls = calls
	v.Replaces++
}
