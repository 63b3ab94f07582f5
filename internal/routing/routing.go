// Package routing classifies inbound envelopes by type and sender role and
// decides whether to render, ignore, or terminate. The rules are evaluated in
// a fixed order so self-echo suppression and cross-session isolation always
// win over rendering.
package routing

import (
	"github.com/real-rm/counselbox/internal/envelope"
)

// RenderAction is the routing decision for one inbound envelope.
type RenderAction int

const (
	// Ignore drops the envelope: wrong session, self-echo, or unknown type.
	Ignore RenderAction = iota
	// RenderAsSelf renders on the local side. Only produced for outbound
	// messages at send time, never by Route.
	RenderAsSelf
	// RenderAsOther renders as the counterpart party.
	RenderAsOther
	// RenderAsSystem renders as an advisory notice.
	RenderAsSystem
	// Terminate signals the session has ended remotely.
	Terminate
)

// String returns the action name for logs and metrics labels.
func (a RenderAction) String() string {
	switch a {
	case Ignore:
		return "ignore"
	case RenderAsSelf:
		return "self"
	case RenderAsOther:
		return "other"
	case RenderAsSystem:
		return "system"
	case Terminate:
		return "terminate"
	}
	return "unknown"
}

// Route decides what to do with an inbound envelope, given the local identity
// and the currently active session id. Rules, in order:
//
//  1. An envelope bound to a different session is ignored, whatever its type.
//     Guards against cross-session bleed when a connection briefly outlives a
//     session switch.
//  2. A chat from our own (role, id) pair is a confirmed echo of a message
//     already rendered at send time: ignored.
//  3. A chat from the counterpart role renders as the other party.
//  4. A chat from any other sender renders as a system notice (defensive
//     fallback for role mismatch or missing role).
//  5. END terminates the session.
//  6. SYSTEM renders as a system notice.
//  7. Anything else is ignored.
func Route(e envelope.Envelope, local envelope.Identity, activeSessionID int64) RenderAction {
	if e.SessionID != 0 && activeSessionID != 0 && e.SessionID != activeSessionID {
		return Ignore
	}

	switch e.Type {
	case envelope.TypeChat:
		if e.FromIdentity(local) {
			return Ignore
		}
		if e.SenderType == local.Role.Counterpart() {
			return RenderAsOther
		}
		return RenderAsSystem
	case envelope.TypeEnd:
		return Terminate
	case envelope.TypeSystem:
		return RenderAsSystem
	}
	return Ignore
}
