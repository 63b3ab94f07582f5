package session_test

import (
	"context"
	"testing"

	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/real-rm/counselbox/internal/session"
	"github.com/real-rm/counselbox/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var agentID = envelope.Identity{ID: 7, Role: envelope.SenderAgent, Name: "Agent"}

type fixture struct {
	controller *session.Controller
	opener     *testutil.MockOpener
	history    *testutil.MockHistoryService
	starter    *testutil.MockStartService
	view       *testutil.MockConversationView
	selection  *testutil.MockSelection
	notifier   *testutil.MockNotifier
}

func newFixture(t *testing.T, id envelope.Identity) *fixture {
	t.Helper()
	f := &fixture{
		opener:    &testutil.MockOpener{},
		history:   &testutil.MockHistoryService{},
		starter:   &testutil.MockStartService{NextSessionID: 500},
		view:      &testutil.MockConversationView{},
		selection: &testutil.MockSelection{},
		notifier:  &testutil.MockNotifier{},
	}
	f.controller = session.NewController(id, f.opener, f.history, f.starter,
		f.view, f.selection, f.notifier, testutil.CreateTestLogger(t))
	return f
}

func TestSelectSession_rendersHistoryAndOpensChannel(t *testing.T) {
	f := newFixture(t, agentID)
	f.history.History = []api.HistoryMessage{
		{SenderType: envelope.SenderUser, MessageText: "hello"},
		{SenderType: envelope.SenderAgent, MessageText: "hi, how can I help"},
	}

	f.controller.SelectSession(context.Background(), 42)

	assert.Equal(t, int64(42), f.controller.ActiveSession())
	assert.Equal(t, int64(42), f.selection.Last())
	require.NotNil(t, f.opener.LastConn())
	assert.Equal(t, int64(42), f.opener.LastConn().SessionID())
	assert.Equal(t, []int64{42}, f.history.MarkReadSessions)

	entries := f.view.Rendered()
	require.Len(t, entries, 3)
	assert.Equal(t, testutil.Entry{Kind: "other", Text: "hello"}, entries[0])
	assert.Equal(t, testutil.Entry{Kind: "self", Text: "hi, how can I help"}, entries[1])
	assert.Equal(t, "system", entries[2].Kind)
	assert.Contains(t, entries[2].Text, "#42")
	assert.True(t, f.view.Input())
}

func TestSelectSession_historyFailureStillOpensChannel(t *testing.T) {
	f := newFixture(t, agentID)
	f.history.FetchHistoryError = assert.AnError

	f.controller.SelectSession(context.Background(), 42)

	require.NotNil(t, f.opener.LastConn())
	entries := f.view.Rendered()
	require.Len(t, entries, 1)
	assert.Equal(t, "system", entries[0].Kind)
	assert.Contains(t, entries[0].Text, "unavailable")
	// read-marking is skipped when the backfill failed
	assert.Empty(t, f.history.MarkReadSessions)
}

func TestSelectSession_switchClosesPriorChannel(t *testing.T) {
	f := newFixture(t, agentID)

	f.controller.SelectSession(context.Background(), 42)
	first := f.opener.LastConn()
	require.NotNil(t, first)

	f.controller.SelectSession(context.Background(), 43)

	assert.Equal(t, 1, first.CloseCount())
	assert.Equal(t, int64(43), f.controller.ActiveSession())
	assert.Equal(t, 2, f.view.Cleared, "view clears on every select")
	require.NotNil(t, f.opener.LastConn())
	assert.Equal(t, int64(43), f.opener.LastConn().SessionID())
}

func TestSelectSession_zeroIsANoOp(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 0)
	assert.Zero(t, f.controller.ActiveSession())
	assert.Nil(t, f.opener.LastConn())
}

func TestSendChat_rendersSelfBeforeDelivery(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)

	f.controller.SendChat("  hello there  ")

	entries := f.view.Rendered()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, testutil.Entry{Kind: "self", Text: "hello there"}, last)

	sent := f.opener.LastConn().SentEnvelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, envelope.TypeChat, sent[0].Type)
	assert.Equal(t, int64(42), sent[0].SessionID)
	assert.Equal(t, envelope.SenderAgent, sent[0].SenderType)
	assert.Equal(t, int64(7), sent[0].SenderID)
	assert.Equal(t, "hello there", sent[0].Message)
}

func TestSendChat_renderedEvenWhenDeliveryFails(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)
	f.opener.LastConn().SendError = assert.AnError

	f.controller.SendChat("hello")

	last := f.view.Rendered()[len(f.view.Rendered())-1]
	assert.Equal(t, testutil.Entry{Kind: "self", Text: "hello"}, last)
	assert.Empty(t, f.notifier.All())
}

func TestSendChat_withoutSessionNotifies(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SendChat("hello")
	assert.Empty(t, f.view.Rendered())
	require.Len(t, f.notifier.All(), 1)
}

func TestSendChat_emptyAndBlankAreDropped(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)
	f.controller.SendChat("")
	f.controller.SendChat("   ")
	assert.Empty(t, f.opener.LastConn().SentEnvelopes())
}

func TestInbound_counterpartChatRenders(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)

	raw, err := envelope.Envelope{
		Type: envelope.TypeChat, SessionID: 42,
		SenderType: envelope.SenderUser, SenderID: 99, Message: "hi",
	}.Encode()
	require.NoError(t, err)
	f.opener.Deliver(raw)

	last := f.view.Rendered()[len(f.view.Rendered())-1]
	assert.Equal(t, testutil.Entry{Kind: "other", Text: "hi"}, last)
}

func TestInbound_ownEchoIsSuppressed(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)

	f.controller.SendChat("hello")
	echo, err := envelope.Chat(42, agentID, "hello").Encode()
	require.NoError(t, err)
	f.opener.Deliver(echo)

	selfCount := 0
	for _, e := range f.view.Rendered() {
		if e.Kind == "self" && e.Text == "hello" {
			selfCount++
		}
	}
	assert.Equal(t, 1, selfCount, "message must render exactly once despite the echo")
}

func TestInbound_duplicateCounterpartMessagesRenderTwice(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)

	raw, err := envelope.Envelope{
		Type: envelope.TypeChat, SessionID: 42,
		SenderType: envelope.SenderUser, SenderID: 99, Message: "hi",
	}.Encode()
	require.NoError(t, err)
	f.opener.Deliver(raw)
	f.opener.Deliver(raw)

	count := 0
	for _, e := range f.view.Rendered() {
		if e.Kind == "other" && e.Text == "hi" {
			count++
		}
	}
	assert.Equal(t, 2, count, "no dedup on inbound: duplicates render twice")
}

func TestInbound_strayEnvelopeFromOtherSessionIgnored(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)
	before := len(f.view.Rendered())

	raw, err := envelope.Envelope{
		Type: envelope.TypeChat, SessionID: 777,
		SenderType: envelope.SenderUser, SenderID: 99, Message: "stray",
	}.Encode()
	require.NoError(t, err)
	f.opener.Deliver(raw)

	assert.Len(t, f.view.Rendered(), before)
}

func TestInbound_malformedPayloadRendersAsOpaqueText(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)

	f.opener.Deliver([]byte("maintenance window tonight"))

	last := f.view.Rendered()[len(f.view.Rendered())-1]
	assert.Equal(t, testutil.Entry{Kind: "other", Text: "maintenance window tonight"}, last)
}

func TestInbound_endTerminatesWithoutResendingEnd(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)
	conn := f.opener.LastConn()

	raw, err := envelope.Envelope{Type: envelope.TypeEnd, SessionID: 42}.Encode()
	require.NoError(t, err)
	f.opener.Deliver(raw)

	assert.True(t, f.controller.Ended())
	assert.False(t, f.view.Input())
	assert.Equal(t, 1, conn.CloseCount())
	for _, e := range conn.SentEnvelopes() {
		assert.NotEqual(t, envelope.TypeEnd, e.Type, "terminate must not echo END back")
	}
	last := f.view.Rendered()[len(f.view.Rendered())-1]
	assert.Equal(t, "system", last.Kind)
}

func TestSendChat_afterEndedIsANoOp(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)
	conn := f.opener.LastConn()

	raw, err := envelope.Envelope{Type: envelope.TypeEnd, SessionID: 42}.Encode()
	require.NoError(t, err)
	f.opener.Deliver(raw)
	before := len(f.view.Rendered())

	f.controller.SendChat("too late")

	assert.Len(t, f.view.Rendered(), before)
	assert.Empty(t, f.notifier.All())
	for _, e := range conn.SentEnvelopes() {
		assert.NotEqual(t, "too late", e.Message)
	}
}

func TestEndSession_sendsEndAndDisablesInput(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)
	conn := f.opener.LastConn()

	f.controller.EndSession()

	sent := conn.SentEnvelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, envelope.TypeEnd, sent[0].Type)
	assert.Equal(t, int64(42), sent[0].SessionID)
	assert.Equal(t, 1, conn.CloseCount())
	assert.True(t, f.controller.Ended())
	assert.False(t, f.view.Input())
}

func TestEndSession_isIdempotent(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)
	conn := f.opener.LastConn()

	f.controller.EndSession()
	entriesAfterFirst := len(f.view.Rendered())
	f.controller.EndSession()

	require.Len(t, conn.SentEnvelopes(), 1, "END must go out exactly once")
	assert.Len(t, f.view.Rendered(), entriesAfterFirst, "second end adds nothing")
	assert.Empty(t, f.notifier.All())
}

func TestEndSession_withoutSessionNotifies(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.EndSession()
	require.Len(t, f.notifier.All(), 1)
}

func TestStartInquiry_startsSessionAndSendsFirstMessage(t *testing.T) {
	userID := envelope.Identity{ID: 31, Role: envelope.SenderUser}
	f := newFixture(t, userID)

	err := f.controller.StartInquiry(context.Background(), "LOAN")
	require.NoError(t, err)

	assert.Equal(t, int64(500), f.controller.ActiveSession())
	require.NotNil(t, f.opener.LastConn())
	sent := f.opener.LastConn().SentEnvelopes()
	require.Len(t, sent, 1)
	assert.Equal(t, envelope.TypeChat, sent[0].Type)
	assert.Equal(t, "LOAN", sent[0].Message)
}

func TestStartInquiry_reusesActiveSession(t *testing.T) {
	userID := envelope.Identity{ID: 31, Role: envelope.SenderUser}
	f := newFixture(t, userID)

	require.NoError(t, f.controller.StartInquiry(context.Background(), "LOAN"))
	require.NoError(t, f.controller.StartInquiry(context.Background(), "CARD"))

	assert.Len(t, f.starter.StartedInquiries, 1, "one server-side session for the widget")
	assert.Equal(t, int64(500), f.controller.ActiveSession())
}

func TestStartInquiry_serverFailureNotifies(t *testing.T) {
	userID := envelope.Identity{ID: 31, Role: envelope.SenderUser}
	f := newFixture(t, userID)
	f.starter.StartSessionError = assert.AnError

	err := f.controller.StartInquiry(context.Background(), "LOAN")
	require.Error(t, err)
	assert.Zero(t, f.controller.ActiveSession())
	require.Len(t, f.notifier.All(), 1)
}

func TestOnClose_doesNotReopenChannel(t *testing.T) {
	f := newFixture(t, agentID)
	f.controller.SelectSession(context.Background(), 42)
	opens := len(f.opener.Opened)

	f.opener.LastHandler().OnClose(42)

	assert.Len(t, f.opener.Opened, opens, "chat channel never reconnects on its own")
	// the session stays selected; live messages resume only after a reselect
	assert.Equal(t, int64(42), f.controller.ActiveSession())
}
