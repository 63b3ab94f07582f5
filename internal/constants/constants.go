// Package constants provides centralized constant definitions for the counselbox client.
// This eliminates magic numbers and strings throughout the codebase.
package constants

import "time"

// Default route and surface locations
const (
	DefaultBasePath       = "/counsel"
	DefaultChatSocketPath = "/ws/chat"
	DefaultCallSocketPath = "/ws/call-agent"
	DefaultCallSurface    = "/voice/agent.html"
)

// Durations for background operations
const (
	DefaultRosterInterval       = 3 * time.Second        // roster poll cadence
	DefaultPopupWatchInterval   = 800 * time.Millisecond // popup liveness poll
	DefaultNotifyReconnectDelay = 2 * time.Second        // call-notification channel retry delay
)

// Messaging channel lifecycle timeouts
const (
	PongWait   = 60 * time.Second           // time allowed to read the next pong
	PingPeriod = (PongWait * 9) / 10        // ping interval, must be less than PongWait
	WriteWait  = 10 * time.Second           // time allowed to write a frame
)

// Sizes and Limits
const (
	SendQueueSize         = 256     // outbound frames buffered per channel
	DefaultMaxMessageSize = 1048576 // 1MB read limit for inbound frames
	MinIdentitySecretLen  = 32      // HMAC secret strength floor
)

// Default Configuration Values
const (
	DefaultServerURL = "http://localhost:8080"
	DefaultLogDir    = "./logs"
	DefaultLogLevel  = "info"
)
