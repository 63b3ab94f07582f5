package counselbox_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/real-rm/counselbox"
	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/config"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/real-rm/counselbox/internal/simulator"
	"github.com/real-rm/counselbox/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(serverURL string) *config.Config {
	return &config.Config{
		ServerURL:            serverURL,
		BasePath:             "/counsel",
		RosterInterval:       20 * time.Millisecond,
		PopupWatchInterval:   10 * time.Millisecond,
		NotifyReconnectDelay: 20 * time.Millisecond,
	}
}

func startSimulator(t *testing.T) (*simulator.Simulator, *config.Config) {
	t.Helper()
	sim := simulator.New(testutil.CreateTestLogger(t))
	srv := httptest.NewServer(sim.Router("/counsel"))
	t.Cleanup(srv.Close)
	return sim, testConfig(srv.URL)
}

func hasEntry(view *testutil.MockConversationView, kind, text string) func() bool {
	return func() bool {
		for _, e := range view.Rendered() {
			if e.Kind == kind && e.Text == text {
				return true
			}
		}
		return false
	}
}

func TestChatFlow_customerAndConsultantEndToEnd(t *testing.T) {
	_, cfg := startSimulator(t)
	ctx := context.Background()
	logger := testutil.CreateTestLogger(t)

	// Customer opens an inquiry.
	customerView := &testutil.MockConversationView{}
	customerNotify := &testutil.MockNotifier{}
	widget, err := counselbox.NewCustomerWidget(cfg,
		envelope.Identity{ID: 31, Role: envelope.SenderUser, Name: "Customer"},
		customerView, customerNotify, logger)
	require.NoError(t, err)
	require.NoError(t, widget.StartInquiry(ctx, "LOAN"))
	sessionID := widget.ActiveSession()
	require.NotZero(t, sessionID)

	// Consultant claims it and joins.
	agentViews := counselbox.AgentViews{
		Conversation: &testutil.MockConversationView{},
		Roster:       &testutil.MockRosterView{},
		Waiting:      &testutil.MockWaitingView{},
		Panel:        &testutil.MockPanel{},
		Surface:      &testutil.FakeSurface{},
		Notifier:     &testutil.MockNotifier{},
	}
	agentView := agentViews.Conversation.(*testutil.MockConversationView)
	console, err := counselbox.NewAgentConsole(cfg,
		envelope.Identity{ID: 7, Role: envelope.SenderAgent, Name: "Consultant"},
		agentViews, logger)
	require.NoError(t, err)

	console.Assign(ctx, sessionID)
	require.Equal(t, sessionID, console.ActiveSession())

	// The customer's opening message is in the history backfill.
	assert.Eventually(t, hasEntry(agentView, "other", "LOAN"), 2*time.Second, 10*time.Millisecond)

	// Consultant replies; it reaches the customer and renders exactly once on
	// the consultant side despite the server echo.
	console.SendChat("how can I help")
	assert.Eventually(t, hasEntry(customerView, "other", "how can I help"), 2*time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond) // allow the echo to arrive
	selfCount := 0
	for _, e := range agentView.Rendered() {
		if e.Kind == "self" && e.Text == "how can I help" {
			selfCount++
		}
	}
	assert.Equal(t, 1, selfCount, "echo must not duplicate the consultant's own message")

	// Customer answers back.
	widget.SendChat("thanks")
	assert.Eventually(t, hasEntry(agentView, "other", "thanks"), 2*time.Second, 10*time.Millisecond)

	// Consultant ends the session; the customer side reaches its terminal state.
	console.EndSession()
	assert.Eventually(t, func() bool {
		return !customerView.Input()
	}, 2*time.Second, 10*time.Millisecond)

	// Sending after the end stays local and silent.
	widget.SendChat("anyone there?")
	assert.Empty(t, customerNotify.All())
}

func TestVoiceFlow_acceptAndHangup(t *testing.T) {
	sim, cfg := startSimulator(t)
	ctx := context.Background()
	logger := testutil.CreateTestLogger(t)

	agentViews := counselbox.AgentViews{
		Conversation: &testutil.MockConversationView{},
		Roster:       &testutil.MockRosterView{},
		Waiting:      &testutil.MockWaitingView{},
		Panel:        &testutil.MockPanel{},
		Surface:      &testutil.FakeSurface{},
		Notifier:     &testutil.MockNotifier{},
	}
	console, err := counselbox.NewAgentConsole(cfg,
		envelope.Identity{ID: 7, Role: envelope.SenderAgent},
		agentViews, logger)
	require.NoError(t, err)

	sim.EnqueueCall(9001)
	console.RefreshCalls(ctx)
	waiting := agentViews.Waiting.(*testutil.MockWaitingView)
	require.Len(t, waiting.Calls, 1)

	// The console only opens and navigates the window; the opened page claims
	// the call itself. The navigated URL must carry the portal origin, the
	// configured surface path is relative.
	console.AcceptCall(9001)
	surface := agentViews.Surface.(*testutil.FakeSurface)
	handle := surface.LastHandle()
	require.NotNil(t, handle)
	assert.Equal(t, cfg.ServerURL+"/counsel/voice/agent.html?sessionId=9001&consultantId=7", handle.URL)

	// What the surface page does once loaded: claim the call on the server.
	surfaceClient := api.NewClient(cfg.ServerURL, cfg.BasePath, logger)
	require.NoError(t, surfaceClient.AcceptCall(ctx, 9001))

	// A second surface claiming the same call is refused with a reason.
	err = surfaceClient.AcceptCall(ctx, 9001)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALREADY_TAKEN")

	console.Hangup(ctx)
	assert.True(t, handle.Closed())
	panel := agentViews.Panel.(*testutil.MockPanel)
	assert.Zero(t, panel.Displayed())
}

func TestRosterPolling_seesWaitingSessions(t *testing.T) {
	sim, cfg := startSimulator(t)
	waitingID := sim.AddWaitingSession("CARD")

	agentViews := counselbox.AgentViews{
		Conversation: &testutil.MockConversationView{},
		Roster:       &testutil.MockRosterView{},
		Waiting:      &testutil.MockWaitingView{},
		Panel:        &testutil.MockPanel{},
		Surface:      &testutil.FakeSurface{},
		Notifier:     &testutil.MockNotifier{},
	}
	console, err := counselbox.NewAgentConsole(cfg,
		envelope.Identity{ID: 7, Role: envelope.SenderAgent},
		agentViews, testutil.CreateTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go console.Run(ctx)

	roster := agentViews.Roster.(*testutil.MockRosterView)
	assert.Eventually(t, func() bool {
		for _, s := range roster.WaitingList() {
			if s.SessionID == waitingID {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
