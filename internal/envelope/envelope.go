// Package envelope defines the wire format exchanged over the support messaging
// channels, along with the identity of the local client instance.
package envelope

import (
	"encoding/json"
)

// Type identifies the kind of envelope on the wire.
type Type string

// Chat channel envelope types.
const (
	TypeEnter  Type = "ENTER"
	TypeChat   Type = "CHAT"
	TypeEnd    Type = "END"
	TypeSystem Type = "SYSTEM"
)

// Call-notification channel envelope types.
const (
	TypeVoiceEnqueued Type = "VOICE_ENQUEUED"
	TypeVoiceAccepted Type = "VOICE_ACCEPTED"
	TypeVoiceEnded    Type = "VOICE_ENDED"
	TypeCallAssigned  Type = "CALL_ASSIGNED"
)

// IsVoiceSignal reports whether the type is one of the roster-affecting signals
// delivered on the call-notification channel.
func (t Type) IsVoiceSignal() bool {
	switch t {
	case TypeVoiceEnqueued, TypeVoiceAccepted, TypeVoiceEnded, TypeCallAssigned:
		return true
	}
	return false
}

// SenderType identifies the logical role of an envelope's originator.
type SenderType string

const (
	// SenderAgent is the consultant side of a support session.
	SenderAgent SenderType = "AGENT"
	// SenderUser is the customer side of a support session.
	SenderUser SenderType = "USER"
)

// Counterpart returns the opposite role, or the zero value for unknown roles.
func (s SenderType) Counterpart() SenderType {
	switch s {
	case SenderAgent:
		return SenderUser
	case SenderUser:
		return SenderAgent
	}
	return ""
}

// Identity is the local client's identity as injected by the hosting page:
// a numeric account id plus the role the client acts as.
type Identity struct {
	ID   int64
	Role SenderType
	Name string
}

// Valid reports whether the identity carries a usable id and role.
// Connecting without a valid identity is a configuration error, never attempted.
func (id Identity) Valid() bool {
	return id.ID != 0 && (id.Role == SenderAgent || id.Role == SenderUser)
}

// Envelope is the unit of exchange on the messaging channel.
type Envelope struct {
	Type       Type       `json:"type"`
	SessionID  int64      `json:"sessionId,omitempty"`
	SenderType SenderType `json:"senderType,omitempty"`
	SenderID   int64      `json:"senderId,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// Enter builds the envelope a channel sends first after opening, telling the
// server which session and role the physical connection represents.
func Enter(sessionID int64, id Identity) Envelope {
	return Envelope{
		Type:       TypeEnter,
		SessionID:  sessionID,
		SenderType: id.Role,
		SenderID:   id.ID,
	}
}

// Chat builds an outbound chat envelope.
func Chat(sessionID int64, id Identity, text string) Envelope {
	return Envelope{
		Type:       TypeChat,
		SessionID:  sessionID,
		SenderType: id.Role,
		SenderID:   id.ID,
		Message:    text,
	}
}

// End builds the terminal envelope for a session.
func End(sessionID int64, id Identity) Envelope {
	return Envelope{
		Type:       TypeEnd,
		SessionID:  sessionID,
		SenderType: id.Role,
		SenderID:   id.ID,
	}
}

// FromIdentity reports whether the envelope's sender fields match the given
// local identity. Used to detect echo of self-sent messages.
func (e Envelope) FromIdentity(id Identity) bool {
	return e.SenderType == id.Role && e.SenderID == id.ID
}

// Decode parses a raw channel payload. A payload that is not a JSON envelope is
// not an error on this channel: ok is false and callers display the raw text
// as-is.
func Decode(raw []byte) (Envelope, bool) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, false
	}
	return e, true
}

// Encode marshals an envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
