// Package api is the thin HTTP client for the portal's server-side
// collaborators: session start, history backfill, read-marking, the consultant
// roster, session assignment, and the voice-call queue.
//
// Response shapes are the contract; exact paths are deployment detail carried
// here in one place. The call endpoints may report a logical failure inside a
// 200 response ({"ok":false,"reason":...}), so callers always get that surfaced
// as a request error rather than a decoded body.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/real-rm/counselbox/internal/envelope"
	cberrors "github.com/real-rm/counselbox/internal/errors"
	"github.com/real-rm/golog"
)

// SessionSummary is one roster entry.
type SessionSummary struct {
	SessionID   int64  `json:"sessionId"`
	InquiryType string `json:"inquiryType,omitempty"`
	Status      string `json:"status,omitempty"`
	UnreadCount int    `json:"unreadCount,omitempty"`
}

// Roster holds the two disjoint consultant lists.
type Roster struct {
	WaitingList  []SessionSummary `json:"waitingList"`
	ChattingList []SessionSummary `json:"chattingList"`
}

// HistoryMessage is one stored message returned by the history backfill.
type HistoryMessage struct {
	SenderType  envelope.SenderType `json:"senderType"`
	MessageText string              `json:"messageText"`
}

// CallSummary is one waiting voice call.
type CallSummary struct {
	SessionID int64  `json:"sessionId"`
	Status    string `json:"status"`
}

// callResult is the logical result wrapper used by the call endpoints.
type callResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type startResponse struct {
	SessionID int64 `json:"sessionId"`
}

// Client talks to the portal's HTTP collaborators.
type Client struct {
	baseURL string // origin + normalized base path, no trailing slash
	http    *http.Client
	logger  *golog.Logger
}

// NewClient creates a client for the given portal origin and base path prefix.
// The base path is normalized before any URL is composed from it.
func NewClient(serverURL, basePath string, logger *golog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/") + NormalizeBasePath(basePath),
		http:    &http.Client{},
		logger:  logger.WithGroup("api"),
	}
}

// NormalizeBasePath brings a configured path prefix into the one canonical
// form used for URL composition: a leading "/", no trailing "/", and the empty
// string for the root. "/counsel/", "counsel" and "/counsel" all become
// "/counsel".
func NormalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// BaseURL returns the composed origin + base path.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SocketURL converts an HTTP route under the base path into its websocket
// counterpart (http -> ws, https -> wss).
func (c *Client) SocketURL(path string) string {
	u := c.baseURL + path
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

// StartSession starts a new inquiry and returns the server-assigned session id.
func (c *Client) StartSession(ctx context.Context, inquiryType string) (int64, error) {
	body, err := json.Marshal(map[string]string{"inquiryType": inquiryType})
	if err != nil {
		return 0, cberrors.NewRequestError("start a session", "", err)
	}
	var resp startResponse
	if err := c.doJSON(ctx, http.MethodPost, "/cs/chat/start", body, &resp, "start a session"); err != nil {
		return 0, err
	}
	if resp.SessionID == 0 {
		return 0, cberrors.NewRequestError("start a session", "no session id assigned", nil)
	}
	return resp.SessionID, nil
}

// FetchHistory returns the stored conversation for a session in arrival order.
func (c *Client) FetchHistory(ctx context.Context, sessionID int64) ([]HistoryMessage, error) {
	var msgs []HistoryMessage
	path := fmt.Sprintf("/cs/chat/messages?sessionId=%d", sessionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &msgs, "load previous messages"); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead marks a session's messages read for this client. Advisory: callers
// log failures and move on, the user is never told.
func (c *Client) MarkRead(ctx context.Context, sessionID int64) error {
	path := fmt.Sprintf("/cs/chat/messages/read?sessionId=%d", sessionID)
	return c.doJSON(ctx, http.MethodPost, path, nil, nil, "mark messages read")
}

// FetchRoster returns the waiting and in-progress session lists.
func (c *Client) FetchRoster(ctx context.Context) (*Roster, error) {
	var r Roster
	if err := c.doJSON(ctx, http.MethodGet, "/cs/chatting/status", nil, &r, "load the session lists"); err != nil {
		return nil, err
	}
	return &r, nil
}

// AssignSession claims a waiting session for this consultant.
func (c *Client) AssignSession(ctx context.Context, sessionID int64) error {
	path := fmt.Sprintf("/cs/chatting/assign?sessionId=%d", sessionID)
	return c.doJSON(ctx, http.MethodPost, path, nil, nil, "assign the session")
}

// FetchWaitingCalls returns the queued voice calls.
func (c *Client) FetchWaitingCalls(ctx context.Context) ([]CallSummary, error) {
	var calls []CallSummary
	if err := c.doJSON(ctx, http.MethodGet, "/cs/call/voice/waiting", nil, &calls, "load waiting calls"); err != nil {
		return nil, err
	}
	return calls, nil
}

// AcceptCall claims a queued voice call. The call-surface page issues this
// once loaded; the console never claims calls itself.
func (c *Client) AcceptCall(ctx context.Context, sessionID int64) error {
	path := fmt.Sprintf("/cs/call/voice/%d/accept", sessionID)
	return c.doCall(ctx, path, "accept the call")
}

// EndCall ends a voice call.
func (c *Client) EndCall(ctx context.Context, sessionID int64) error {
	path := fmt.Sprintf("/cs/call/voice/%d/end", sessionID)
	return c.doCall(ctx, path, "end the call")
}

// doCall posts to a call endpoint and checks the logical ok flag, which may be
// false even on an HTTP success status.
func (c *Client) doCall(ctx context.Context, path, action string) error {
	var result callResult
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &result, action); err != nil {
		return err
	}
	if !result.OK {
		reason := result.Reason
		if reason == "" {
			reason = "UNKNOWN"
		}
		return cberrors.NewRequestError(action, reason, nil)
	}
	return nil
}

// doJSON performs one request and decodes a JSON response into out (when out
// is non-nil and the body is non-empty). Non-2xx statuses become request
// errors carrying whatever reason the server put in the error body.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out interface{}, action string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return cberrors.NewRequestError(action, "", err)
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return cberrors.NewRequestError(action, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return cberrors.NewRequestError(action, errorReason(resp), nil)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return cberrors.NewRequestError(action, "", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return cberrors.NewRequestError(action, "", err)
	}
	return nil
}

// errorReason extracts a server-supplied failure reason from an error body.
func errorReason(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		for _, s := range []string{body.Reason, body.Message, body.Error} {
			if s != "" {
				return s
			}
		}
	}
	return resp.Status
}
