// Package channel implements the messaging channel adapter: a bidirectional
// connection scoped to one session id. The adapter owns the wire lifecycle
// (dial, ENTER handshake, read/write pumps, close) and surfaces everything
// else to its owner through the Handler callbacks.
package channel

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/real-rm/counselbox/internal/constants"
	"github.com/real-rm/counselbox/internal/envelope"
	cberrors "github.com/real-rm/counselbox/internal/errors"
	"github.com/real-rm/counselbox/internal/metrics"
	"github.com/real-rm/counselbox/internal/util"
	"github.com/real-rm/golog"
)

// Handler receives lifecycle events from a channel. Callbacks run on the
// channel's read goroutine; implementations serialize their own state.
type Handler interface {
	OnOpen(sessionID int64)
	OnMessage(raw []byte)
	OnClose(sessionID int64)
	OnError(err error)
}

// Dialer opens session-scoped channels against one websocket endpoint.
type Dialer struct {
	url    string
	dialer *websocket.Dialer
	logger *golog.Logger
}

// NewDialer creates a dialer for the chat socket endpoint.
func NewDialer(socketURL string, logger *golog.Logger) *Dialer {
	return &Dialer{
		url:    socketURL,
		dialer: websocket.DefaultDialer,
		logger: logger.WithGroup("channel"),
	}
}

// Open dials a new channel scoped to the given session and identity.
//
// It fails fast, before any network effect, when the session id or identity is
// missing: that is a configuration error, logged and returned, never surfaced
// as a user dialog. On success the ENTER envelope has already been written as
// the first frame and the pumps are running.
func (d *Dialer) Open(sessionID int64, id envelope.Identity, h Handler) (*Channel, error) {
	if sessionID == 0 {
		err := cberrors.ErrSessionMissing()
		d.logger.Error("Channel open refused", "error", err)
		return nil, err
	}
	if !id.Valid() {
		err := cberrors.ErrIdentityMissing()
		d.logger.Error("Channel open refused", "error", err, "session_id", sessionID)
		return nil, err
	}

	conn, _, err := d.dialer.Dial(d.url, nil)
	if err != nil {
		util.LogError(d.logger, "channel", "dial messaging endpoint", err,
			"session_id", sessionID)
		return nil, cberrors.NewTransportError(cberrors.CodeDialFailed, "dial failed", err)
	}
	conn.SetReadLimit(constants.DefaultMaxMessageSize)

	c := &Channel{
		conn:      conn,
		sessionID: sessionID,
		identity:  id,
		handler:   h,
		logger:    d.logger,
		send:      make(chan []byte, constants.SendQueueSize),
	}

	// ENTER must be the first envelope on the wire: it tells the server which
	// session and role this physical connection represents.
	enter, err := envelope.Enter(sessionID, id).Encode()
	if err != nil {
		conn.Close()
		return nil, cberrors.NewTransportError(cberrors.CodeDialFailed, "encode ENTER", err)
	}
	conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, enter); err != nil {
		conn.Close()
		util.LogError(d.logger, "channel", "send ENTER", err, "session_id", sessionID)
		return nil, cberrors.NewTransportError(cberrors.CodeDialFailed, "send ENTER", err)
	}

	metrics.ChannelOpens.Inc()
	metrics.ActiveChannels.Inc()
	d.logger.Info("Channel opened",
		"session_id", sessionID,
		"sender_type", string(id.Role))

	util.SafeGo(d.logger, "readPump", c.readPump)
	util.SafeGo(d.logger, "writePump", c.writePump)

	h.OnOpen(sessionID)
	return c, nil
}

// Channel is one open session-scoped connection.
type Channel struct {
	conn      *websocket.Conn
	sessionID int64
	identity  envelope.Identity
	handler   Handler
	logger    *golog.Logger
	send      chan []byte

	// mu guards closed and every enqueue on send. Close tears the queue down
	// under the same lock, so Send never races into a closed channel.
	mu     sync.Mutex
	closed bool
}

// SessionID returns the session this channel is scoped to.
func (c *Channel) SessionID() int64 {
	return c.sessionID
}

// Send queues an envelope for delivery. Sending on a closed channel returns
// ErrChannelClosed; a full queue drops the frame with an error rather than
// blocking the caller.
func (c *Channel) Send(e envelope.Envelope) error {
	data, err := e.Encode()
	if err != nil {
		return cberrors.NewTransportError(cberrors.CodeChannelClosed, "encode envelope", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cberrors.ErrChannelClosed()
	}
	select {
	case c.send <- data:
		metrics.EnvelopesSent.Inc()
		return nil
	default:
		return cberrors.NewTransportError(cberrors.CodeChannelClosed, "send queue full", nil)
	}
}

// Close tears the channel down. Idempotent: closing an already-closed channel
// is a no-op.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	metrics.ActiveChannels.Dec()
	c.logger.Info("Channel closed", "session_id", c.sessionID)
}

// readPump reads frames until the connection drops, handing each raw payload
// to the handler. Parsing is the owner's concern; a malformed payload is not a
// transport error here.
func (c *Channel) readPump() {
	defer func() {
		c.Close()
		c.conn.Close()
		c.handler.OnClose(c.sessionID)
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.PongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				metrics.TransportErrors.Inc()
				c.handler.OnError(cberrors.NewTransportError(cberrors.CodeChannelClosed, "unexpected close", err))
			} else {
				c.logger.Info("Channel read loop ending", "session_id", c.sessionID)
			}
			return
		}
		c.handler.OnMessage(raw)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Channel) writePump() {
	ticker := time.NewTicker(constants.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
			if !ok {
				// Queue closed by Close: say goodbye properly.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				util.LogError(c.logger, "channel", "write frame", err,
					"session_id", c.sessionID)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
