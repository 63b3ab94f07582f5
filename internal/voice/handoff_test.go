package voice_test

import (
	"context"
	"testing"
	"time"

	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/testutil"
	"github.com/real-rm/counselbox/internal/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const watchInterval = 5 * time.Millisecond

type handoffFixture struct {
	handoff  *voice.Handoff
	service  *testutil.MockCallService
	surface  *testutil.FakeSurface
	panel    *testutil.MockPanel
	waiting  *testutil.MockWaitingView
	notifier *testutil.MockNotifier
}

func newHandoffFixture(t *testing.T) *handoffFixture {
	t.Helper()
	f := &handoffFixture{
		service:  &testutil.MockCallService{},
		surface:  &testutil.FakeSurface{},
		panel:    &testutil.MockPanel{},
		waiting:  &testutil.MockWaitingView{},
		notifier: &testutil.MockNotifier{},
	}
	f.handoff = voice.NewHandoff(7, "http://portal/voice/agent.html", watchInterval,
		f.service, f.surface, f.panel, f.waiting, f.notifier,
		testutil.CreateTestLogger(t))
	return f
}

func TestAcceptCall_opensAndNavigatesSurface(t *testing.T) {
	f := newHandoffFixture(t)

	f.handoff.AcceptCall(42)

	handle := f.surface.LastHandle()
	require.NotNil(t, handle)
	assert.Equal(t, "http://portal/voice/agent.html?sessionId=42&consultantId=7", handle.URL)
	assert.Equal(t, int64(42), f.handoff.DisplayedCall())
	assert.Equal(t, int64(42), f.panel.Displayed())
}

func TestAcceptCall_blockedSurfaceAborts(t *testing.T) {
	f := newHandoffFixture(t)
	f.surface.Blocked = true

	f.handoff.AcceptCall(42)

	assert.Zero(t, f.handoff.DisplayedCall())
	require.Len(t, f.notifier.All(), 1)
	assert.Contains(t, f.notifier.All()[0], "popups")
}

func TestAcceptCall_windowClosedWhileStillBlankIsNoticed(t *testing.T) {
	f := newHandoffFixture(t)
	f.surface.PreClosed = true

	f.handoff.AcceptCall(42)

	assert.Eventually(t, func() bool {
		return f.handoff.DisplayedCall() == 0
	}, time.Second, watchInterval, "the watch runs from before navigation")
	assert.Zero(t, f.panel.Displayed())
	assert.Empty(t, f.service.EndedCalls)
}

func TestWatch_userClosingWindowClearsLocalStateOnly(t *testing.T) {
	f := newHandoffFixture(t)
	f.handoff.AcceptCall(42)
	handle := f.surface.LastHandle()
	require.NotNil(t, handle)

	handle.UserClose()

	assert.Eventually(t, func() bool {
		return f.handoff.DisplayedCall() == 0
	}, time.Second, watchInterval)
	assert.Zero(t, f.panel.Displayed())
	assert.Empty(t, f.service.EndedCalls, "closing the window must not end the call server-side")
}

func TestHangup_withoutDisplayedCallIsANoOp(t *testing.T) {
	f := newHandoffFixture(t)

	f.handoff.Hangup(context.Background())

	assert.Empty(t, f.service.EndedCalls)
	assert.Empty(t, f.notifier.All())
}

func TestHangup_serverRefusalLeavesCallDisplayed(t *testing.T) {
	f := newHandoffFixture(t)
	f.handoff.AcceptCall(42)
	f.service.EndError = assert.AnError

	f.handoff.Hangup(context.Background())

	assert.Equal(t, int64(42), f.handoff.DisplayedCall(), "refused hang-up changes nothing")
	assert.False(t, f.surface.LastHandle().Closed())
	require.Len(t, f.notifier.All(), 1)
}

func TestHangup_successClosesWindowAndClearsState(t *testing.T) {
	f := newHandoffFixture(t)
	f.service.WaitingCalls = []api.CallSummary{{SessionID: 50, Status: "WAITING"}}
	f.handoff.AcceptCall(42)

	f.handoff.Hangup(context.Background())

	assert.Equal(t, []int64{42}, f.service.EndedCalls)
	assert.True(t, f.surface.LastHandle().Closed())
	assert.Zero(t, f.handoff.DisplayedCall())
	assert.Zero(t, f.panel.Displayed())
	assert.NotZero(t, f.waiting.Replaces, "hang-up refreshes the queue")
}

func TestRefresh_replacesWaitingList(t *testing.T) {
	f := newHandoffFixture(t)
	f.service.WaitingCalls = []api.CallSummary{
		{SessionID: 50, Status: "WAITING"},
		{SessionID: 51, Status: "WAITING"},
	}

	f.handoff.Refresh(context.Background())

	require.Len(t, f.waiting.Calls, 2)
}

func TestRefresh_failureKeepsCurrentList(t *testing.T) {
	f := newHandoffFixture(t)
	f.service.WaitingCalls = []api.CallSummary{{SessionID: 50, Status: "WAITING"}}
	f.handoff.Refresh(context.Background())

	f.service.FetchWaitingError = assert.AnError
	f.handoff.Refresh(context.Background())

	require.Len(t, f.waiting.Calls, 1, "failed refresh must not blank the queue")
	assert.Equal(t, 1, f.waiting.Replaces)
}
