// Package voice handles the consultant's voice-call duties: the waiting-call
// queue, the popup hand-off to the call surface, and the always-on
// call-notification channel that tells the console when the queue changed.
package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/real-rm/counselbox/internal/metrics"
	"github.com/real-rm/counselbox/internal/util"
	"github.com/real-rm/golog"
)

// Listener keeps the call-notification channel open for one consultant. The
// channel carries advisory signals only: every voice signal collapses into a
// queue refresh, so a missed one costs nothing once the channel is back.
//
// Unlike the chat channel, this channel reconnects on its own: it is not bound
// to a user action, so nobody would be there to reopen it by hand.
type Listener struct {
	socketURL    string
	consultantID int64
	onSignal     func(envelope.Type)
	reconnector  *Reconnector
	dialer       *websocket.Dialer
	logger       *golog.Logger
}

// NewListener creates a listener for the given consultant. onSignal fires once
// per voice signal, on the listener's goroutine.
func NewListener(socketURL string, consultantID int64, reconnectDelay time.Duration,
	onSignal func(envelope.Type), logger *golog.Logger) *Listener {
	return &Listener{
		socketURL:    socketURL,
		consultantID: consultantID,
		onSignal:     onSignal,
		reconnector:  NewReconnector(reconnectDelay),
		dialer:       websocket.DefaultDialer,
		logger:       logger.WithGroup("voice"),
	}
}

// State returns the notification channel's connection state.
func (l *Listener) State() State {
	return l.reconnector.State()
}

// Run connects and keeps the channel alive until ctx is cancelled. Every drop,
// including a failed dial, schedules a retry after the fixed delay.
func (l *Listener) Run(ctx context.Context) {
	defer l.reconnector.Stop()
	for {
		if err := l.connectAndListen(ctx); err != nil {
			util.LogError(l.logger, "voice", "listen for call signals", err,
				"consultant_id", l.consultantID)
		}
		if ctx.Err() != nil {
			l.logger.Info("Call-notification channel stopped",
				"consultant_id", l.consultantID)
			return
		}

		delay := l.reconnector.Disconnected()
		metrics.NotifyReconnects.Inc()
		l.logger.Info("Call-notification channel down, reconnecting",
			"consultant_id", l.consultantID,
			"attempt", l.reconnector.Attempts(),
			"delay", delay.String())
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// connectAndListen dials once and reads until the connection drops or ctx is
// cancelled.
func (l *Listener) connectAndListen(ctx context.Context) error {
	url := fmt.Sprintf("%s?consultantId=%d", l.socketURL, l.consultantID)
	conn, _, err := l.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	l.reconnector.Connected()
	l.logger.Info("Call-notification channel open", "consultant_id", l.consultantID)

	// Unblock ReadMessage when ctx is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	util.SafeGo(l.logger, "notifyWatch", func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		e, ok := envelope.Decode(raw)
		if !ok {
			l.logger.Warn("Unparseable call signal dropped", "payload_size", len(raw))
			continue
		}
		if !e.Type.IsVoiceSignal() {
			continue
		}
		l.logger.Info("Call signal received", "signal", string(e.Type))
		l.onSignal(e.Type)
	}
}
