package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_validEnvelope(t *testing.T) {
	raw := []byte(`{"type":"CHAT","sessionId":42,"senderType":"USER","senderId":9,"message":"hello"}`)
	e, ok := Decode(raw)
	require.True(t, ok)
	assert.Equal(t, TypeChat, e.Type)
	assert.Equal(t, int64(42), e.SessionID)
	assert.Equal(t, SenderUser, e.SenderType)
	assert.Equal(t, int64(9), e.SenderID)
	assert.Equal(t, "hello", e.Message)
}

func TestDecode_plainTextIsNotAnEnvelope(t *testing.T) {
	_, ok := Decode([]byte("system maintenance at midnight"))
	assert.False(t, ok)
}

func TestEnter_carriesSessionAndIdentity(t *testing.T) {
	id := Identity{ID: 7, Role: SenderAgent}
	e := Enter(42, id)
	assert.Equal(t, TypeEnter, e.Type)
	assert.Equal(t, int64(42), e.SessionID)
	assert.Equal(t, SenderAgent, e.SenderType)
	assert.Equal(t, int64(7), e.SenderID)
	assert.Empty(t, e.Message)
}

func TestFromIdentity(t *testing.T) {
	id := Identity{ID: 7, Role: SenderAgent}
	assert.True(t, Chat(1, id, "x").FromIdentity(id))

	otherID := Envelope{Type: TypeChat, SenderType: SenderAgent, SenderID: 8}
	assert.False(t, otherID.FromIdentity(id))

	otherRole := Envelope{Type: TypeChat, SenderType: SenderUser, SenderID: 7}
	assert.False(t, otherRole.FromIdentity(id))
}

func TestIdentity_Valid(t *testing.T) {
	assert.True(t, Identity{ID: 1, Role: SenderUser}.Valid())
	assert.True(t, Identity{ID: 1, Role: SenderAgent}.Valid())
	assert.False(t, Identity{ID: 0, Role: SenderUser}.Valid())
	assert.False(t, Identity{ID: 1, Role: "ADMIN"}.Valid())
	assert.False(t, Identity{}.Valid())
}

func TestCounterpart(t *testing.T) {
	assert.Equal(t, SenderUser, SenderAgent.Counterpart())
	assert.Equal(t, SenderAgent, SenderUser.Counterpart())
	assert.Equal(t, SenderType(""), SenderType("ADMIN").Counterpart())
}

func TestIsVoiceSignal(t *testing.T) {
	assert.True(t, TypeVoiceEnqueued.IsVoiceSignal())
	assert.True(t, TypeCallAssigned.IsVoiceSignal())
	assert.False(t, TypeChat.IsVoiceSignal())
	assert.False(t, TypeEnd.IsVoiceSignal())
}
