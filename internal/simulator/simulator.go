// Package simulator is an in-memory stand-in for the portal's server side:
// the session and call HTTP endpoints plus the two websocket channels. It
// exists for local development and integration tests; nothing here persists.
package simulator

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/real-rm/counselbox/internal/api"
	"github.com/real-rm/counselbox/internal/envelope"
	"github.com/real-rm/counselbox/internal/util"
	"github.com/real-rm/golog"
)

type session struct {
	id          int64
	inquiryType string
	status      string
	messages    []api.HistoryMessage
	conns       map[*websocket.Conn]bool
}

type call struct {
	sessionID int64
	status    string
}

// Simulator holds the whole in-memory portal state.
type Simulator struct {
	logger   *golog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*session
	calls    map[int64]*call
	notify   map[int64][]*websocket.Conn // consultantId -> open notification conns
}

// New creates an empty simulator.
func New(logger *golog.Logger) *Simulator {
	return &Simulator{
		logger:   logger.WithGroup("simulator"),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		nextID:   1000,
		sessions: make(map[int64]*session),
		calls:    make(map[int64]*call),
		notify:   make(map[int64][]*websocket.Conn),
	}
}

// Router builds a gin engine with every portal route mounted under basePath.
func (s *Simulator) Router(basePath string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	g := engine.Group(api.NormalizeBasePath(basePath))
	g.POST("/cs/chat/start", s.startSession)
	g.GET("/cs/chat/messages", s.listMessages)
	g.POST("/cs/chat/messages/read", s.markRead)
	g.GET("/cs/chatting/status", s.rosterStatus)
	g.POST("/cs/chatting/assign", s.assignSession)
	g.GET("/cs/call/voice/waiting", s.waitingCalls)
	g.POST("/cs/call/voice/:id/accept", s.acceptCall)
	g.POST("/cs/call/voice/:id/end", s.endCall)
	g.GET("/ws/chat", s.chatSocket)
	g.GET("/ws/call-agent", s.notifySocket)
	return engine
}

func (s *Simulator) startSession(c *gin.Context) {
	var body struct {
		InquiryType string `json:"inquiryType"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid body"})
		return
	}

	s.mu.Lock()
	s.nextID++
	sess := &session{
		id:          s.nextID,
		inquiryType: body.InquiryType,
		status:      "WAITING",
		conns:       make(map[*websocket.Conn]bool),
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("Session started", "session_id", sess.id, "inquiry_type", body.InquiryType)
	c.JSON(http.StatusOK, gin.H{"sessionId": sess.id})
}

func (s *Simulator) listMessages(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	sess := s.sessions[id]
	var msgs []api.HistoryMessage
	if sess != nil {
		msgs = append(msgs, sess.messages...)
	}
	s.mu.Unlock()
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"reason": "no such session"})
		return
	}
	if msgs == nil {
		msgs = []api.HistoryMessage{}
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *Simulator) markRead(c *gin.Context) {
	if _, ok := sessionIDParam(c); !ok {
		return
	}
	c.Status(http.StatusOK)
}

func (s *Simulator) rosterStatus(c *gin.Context) {
	s.mu.Lock()
	roster := api.Roster{
		WaitingList:  []api.SessionSummary{},
		ChattingList: []api.SessionSummary{},
	}
	for _, sess := range s.sessions {
		summary := api.SessionSummary{
			SessionID:   sess.id,
			InquiryType: sess.inquiryType,
			Status:      sess.status,
		}
		switch sess.status {
		case "WAITING":
			roster.WaitingList = append(roster.WaitingList, summary)
		case "IN_PROGRESS":
			roster.ChattingList = append(roster.ChattingList, summary)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, roster)
}

func (s *Simulator) assignSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	sess := s.sessions[id]
	var reason string
	switch {
	case sess == nil:
		reason = "no such session"
	case sess.status != "WAITING":
		reason = "session is not waiting"
	default:
		sess.status = "IN_PROGRESS"
	}
	s.mu.Unlock()

	if reason != "" {
		c.JSON(http.StatusConflict, gin.H{"reason": reason})
		return
	}
	s.logger.Info("Session assigned", "session_id", id)
	c.Status(http.StatusOK)
}

func (s *Simulator) waitingCalls(c *gin.Context) {
	s.mu.Lock()
	calls := []api.CallSummary{}
	for _, cl := range s.calls {
		if cl.status == "WAITING" {
			calls = append(calls, api.CallSummary{SessionID: cl.sessionID, Status: cl.status})
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, calls)
}

func (s *Simulator) acceptCall(c *gin.Context) {
	id, ok := callIDParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	cl := s.calls[id]
	var reason string
	switch {
	case cl == nil:
		reason = "NO_SUCH_CALL"
	case cl.status != "WAITING":
		reason = "ALREADY_TAKEN"
	default:
		cl.status = "IN_PROGRESS"
	}
	s.mu.Unlock()

	if reason != "" {
		// Logical failure inside an HTTP success, matching the portal contract.
		c.JSON(http.StatusOK, gin.H{"ok": false, "reason": reason})
		return
	}
	s.broadcastSignal(envelope.TypeVoiceAccepted)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Simulator) endCall(c *gin.Context) {
	id, ok := callIDParam(c)
	if !ok {
		return
	}
	s.mu.Lock()
	cl := s.calls[id]
	var reason string
	switch {
	case cl == nil:
		reason = "NO_SUCH_CALL"
	case cl.status == "ENDED":
		reason = "ALREADY_ENDED"
	default:
		cl.status = "ENDED"
	}
	s.mu.Unlock()

	if reason != "" {
		c.JSON(http.StatusOK, gin.H{"ok": false, "reason": reason})
		return
	}
	s.broadcastSignal(envelope.TypeVoiceEnded)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// chatSocket serves one messaging channel. The first frame must be ENTER; it
// binds the connection to its session. Chat frames are stored and broadcast to
// every connection on the session, the sender included. END marks the session
// ended and is broadcast before the connections drop.
func (s *Simulator) chatSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.LogError(s.logger, "simulator", "upgrade chat socket", err)
		return
	}

	util.SafeGo(s.logger, "chatSocket", func() {
		defer conn.Close()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		enter, ok := envelope.Decode(raw)
		if !ok || enter.Type != envelope.TypeEnter || enter.SessionID == 0 {
			s.logger.Warn("Chat socket rejected, no ENTER handshake")
			return
		}

		s.mu.Lock()
		sess := s.sessions[enter.SessionID]
		if sess != nil {
			sess.conns[conn] = true
		}
		s.mu.Unlock()
		if sess == nil {
			s.logger.Warn("Chat socket for unknown session", "session_id", enter.SessionID)
			return
		}
		defer func() {
			s.mu.Lock()
			delete(sess.conns, conn)
			s.mu.Unlock()
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			e, ok := envelope.Decode(raw)
			if !ok {
				continue
			}
			switch e.Type {
			case envelope.TypeChat:
				s.mu.Lock()
				sess.messages = append(sess.messages, api.HistoryMessage{
					SenderType:  e.SenderType,
					MessageText: e.Message,
				})
				s.mu.Unlock()
				s.broadcast(sess, raw)
			case envelope.TypeEnd:
				s.mu.Lock()
				sess.status = "ENDED"
				s.mu.Unlock()
				s.broadcast(sess, raw)
				return
			}
		}
	})
}

// notifySocket serves the consultant's call-notification channel.
func (s *Simulator) notifySocket(c *gin.Context) {
	consultantID, err := strconv.ParseInt(c.Query("consultantId"), 10, 64)
	if err != nil || consultantID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "consultantId required"})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.LogError(s.logger, "simulator", "upgrade notify socket", err)
		return
	}

	s.mu.Lock()
	s.notify[consultantID] = append(s.notify[consultantID], conn)
	s.mu.Unlock()

	util.SafeGo(s.logger, "notifySocket", func() {
		defer func() {
			s.mu.Lock()
			conns := s.notify[consultantID]
			for i, existing := range conns {
				if existing == conn {
					s.notify[consultantID] = append(conns[:i], conns[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
			conn.Close()
		}()
		// Signals are push-only; drain until the peer goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// EnqueueCall queues a waiting voice call and pushes the enqueued signal to
// every connected consultant.
func (s *Simulator) EnqueueCall(sessionID int64) {
	s.mu.Lock()
	s.calls[sessionID] = &call{sessionID: sessionID, status: "WAITING"}
	s.mu.Unlock()
	s.broadcastSignal(envelope.TypeVoiceEnqueued)
}

// AddWaitingSession seeds a waiting chat session, as if a customer had started
// an inquiry elsewhere.
func (s *Simulator) AddWaitingSession(inquiryType string) int64 {
	s.mu.Lock()
	s.nextID++
	sess := &session{
		id:          s.nextID,
		inquiryType: inquiryType,
		status:      "WAITING",
		conns:       make(map[*websocket.Conn]bool),
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess.id
}

func (s *Simulator) broadcast(sess *session, raw []byte) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(sess.conns))
	for conn := range sess.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			util.LogError(s.logger, "simulator", "broadcast to session", err,
				"session_id", sess.id)
		}
	}
}

func (s *Simulator) broadcastSignal(t envelope.Type) {
	data, err := envelope.Envelope{Type: t}.Encode()
	if err != nil {
		return
	}
	s.mu.Lock()
	var conns []*websocket.Conn
	for _, list := range s.notify {
		conns = append(conns, list...)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			util.LogError(s.logger, "simulator", "push call signal", err)
		}
	}
}

func sessionIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Query("sessionId"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "sessionId required"})
		return 0, false
	}
	return id, true
}

func callIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"reason": "call id required"})
		return 0, false
	}
	return id, true
}
