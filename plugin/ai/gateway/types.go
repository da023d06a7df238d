// Package gateway is the client for the AI backend's REST contract.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Service is the request/response contract consumed by the controllers.
type Service interface {
	// SendChat posts one user utterance. POST /chat
	SendChat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// Approve resolves a pending approval. POST /approve
	Approve(ctx context.Context, req *ApproveRequest) (*ApproveResponse, error)
	// History loads the stored conversation. GET /history/{session_id}
	History(ctx context.Context, sessionID string) (*HistoryResponse, error)
	// ClearHistory deletes the stored conversation. DELETE /history/{session_id}
	ClearHistory(ctx context.Context, sessionID string) (*ClearResponse, error)
	// LinkStatus probes the mailbox link. GET /gmail/status
	LinkStatus(ctx context.Context, sessionID string) (*StatusResponse, error)
	// StartLink asks for an authorization URL. GET /gmail/auth
	StartLink(ctx context.Context, sessionID string) (*AuthURLResponse, error)
	// LinkedProfile fetches the linked account's profile. GET /gmail/profile
	LinkedProfile(ctx context.Context, sessionID string) (*ProfileResponse, error)
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type ChatResponse struct {
	ID            ID             `json:"id"`
	Message       string         `json:"message"`
	Response      string         `json:"response"`
	IntentData    map[string]any `json:"intent_data"`
	NeedsApproval bool           `json:"needs_approval"`
	Timestamp     Time           `json:"timestamp"`
}

type ApproveRequest struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Approved  bool   `json:"approved"`
	// EditedData is sent as null when the user did not edit.
	EditedData map[string]any `json:"edited_data"`
}

type ApproveResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	N8NResponse json.RawMessage `json:"n8n_response,omitempty"`
}

// HasAutomationResponse reports whether the backend echoed a non-null automation result.
func (r *ApproveResponse) HasAutomationResponse() bool {
	trimmed := bytes.TrimSpace(r.N8NResponse)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

type HistoryResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

type HistoryMessage struct {
	ID         ID             `json:"id"`
	SessionID  string         `json:"session_id"`
	UserID     string         `json:"user_id"`
	Message    string         `json:"message"`
	Response   string         `json:"response"`
	IntentData map[string]any `json:"intent_data"`
	Timestamp  Time           `json:"timestamp"`
}

type ClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Authenticated         bool     `json:"authenticated"`
	CredentialsConfigured bool     `json:"credentials_configured"`
	Error                 string   `json:"error"`
	Success               bool     `json:"success"`
	RequiresAuth          bool     `json:"requires_auth"`
	Scopes                []string `json:"scopes"`
	Service               string   `json:"service"`
	SessionID             string   `json:"session_id"`
}

type AuthURLResponse struct {
	Success bool   `json:"success"`
	AuthURL string `json:"auth_url"`
	Message string `json:"message"`
}

type ProfileResponse struct {
	Success bool     `json:"success"`
	Profile *Profile `json:"profile"`
}

// Profile is the linked mailbox account.
type Profile struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Picture       string `json:"picture"`
	MessagesTotal int64  `json:"messages_total"`
}

// ID accepts both string and numeric ids from the backend.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Time parses the backend's timestamps, which may lack a zone offset.
// Zoneless values are taken as UTC.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		// Epoch milliseconds.
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return err
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}
