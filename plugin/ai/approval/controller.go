// Package approval gates backend actions behind an explicit user decision.
package approval

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	aierrors "github.com/hrygo/elva/internal/errors"
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/transcript"
)

// State is the approval machine state.
type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateResolving
)

func (s State) String() string {
	switch s {
	case StateAwaiting:
		return "awaiting_approval"
	case StateResolving:
		return "resolving"
	default:
		return "idle"
	}
}

// Transcript texts.
const (
	HelpText     = "📋 I've opened the approval form with pre-filled details. You can review and edit the information above, then click 'Approve' or just type 'Send it' to execute! Type 'Cancel' to abort."
	ApprovedText = "✅ Perfect! Action executed successfully! Your request has been sent to the automation system."
	RejectedText = "❌ No worries! Action cancelled as requested."
	FailedText   = "⚠️ Something went wrong with the approval. Please try again!"

	editSummaryPrefix = "📝 Updated details:\n"
	automationPrefix  = "🔗 Automation Response: "
)

// Pending is a copy of the approval awaiting a decision.
type Pending struct {
	Generation uint64
	MessageID  string
	Message    transcript.Message
	Draft      transcript.IntentData
	Editing    bool
}

// Snapshot is the read-only view used for rendering.
type Snapshot struct {
	State   State
	Pending *Pending
}

// Config wires a Controller.
type Config struct {
	Gateway gateway.Service
	Store   *transcript.Store
	// SessionID returns the current session id at call time.
	SessionID func() string
}

// Controller owns the pending approval of one session.
// Locks are never held across backend calls.
type Controller struct {
	gw        gateway.Service
	store     *transcript.Store
	sessionID func() string

	mu         sync.Mutex
	state      State
	pending    *Pending
	generation uint64
}

// NewController creates an idle controller.
func NewController(cfg Config) *Controller {
	return &Controller{
		gw:        cfg.Gateway,
		store:     cfg.Store,
		sessionID: cfg.SessionID,
	}
}

// Offer opens an approval for msg when it asks for one. Direct automation
// responses never open an approval. A newer offer supersedes any older one.
func (c *Controller) Offer(msg transcript.Message, direct bool) bool {
	if direct || !msg.NeedsApproval || msg.IntentData == nil {
		return false
	}

	c.mu.Lock()
	c.generation++
	c.pending = &Pending{
		Generation: c.generation,
		MessageID:  msg.ID,
		Message:    msg,
		Draft:      msg.IntentData.Clone(),
		Editing:    true,
	}
	c.state = StateAwaiting
	gen := c.generation
	c.mu.Unlock()

	slog.Debug("approval offered",
		"session_id", c.sessionID(),
		"generation", gen,
		"intent", msg.IntentData.Intent(),
	)
	c.store.Append(transcript.SystemMessage(HelpText))
	return true
}

// HasPending reports whether an approval is awaiting a decision.
func (c *Controller) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateAwaiting
}

// Busy reports whether an approval is awaiting a decision or being resolved.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateIdle
}

// UpdateField sets one draft field from form text. The intent discriminator
// and unknown keys are rejected. List fields are split on commas.
func (c *Controller) UpdateField(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaiting {
		return aierrors.NoPendingApproval()
	}
	if key == transcript.IntentKey {
		return aierrors.InvalidArgument("the intent field cannot be edited").WithContext("key", key)
	}
	current, ok := c.pending.Draft[key]
	if !ok {
		return aierrors.InvalidArgument("unknown draft field").WithContext("key", key)
	}
	if transcript.IsList(current) {
		c.pending.Draft[key] = transcript.SplitList(value)
	} else {
		c.pending.Draft[key] = value
	}
	return nil
}

// SetEditing switches between the editable form and the read-only review.
func (c *Controller) SetEditing(editing bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaiting {
		return aierrors.NoPendingApproval()
	}
	c.pending.Editing = editing
	return nil
}

// Resolve sends the decision to the backend. The controller returns to Idle
// whatever the outcome; a failure is reported once in the transcript and
// never retried. Results for a superseded approval are dropped.
func (c *Controller) Resolve(ctx context.Context, approved bool) error {
	c.mu.Lock()
	if c.state != StateAwaiting {
		c.mu.Unlock()
		return aierrors.NoPendingApproval()
	}
	c.state = StateResolving
	p := *c.pending
	var edited map[string]any
	if p.Editing {
		edited = p.Draft.Clone()
	}
	c.mu.Unlock()

	sessionID := c.sessionID()
	logger := slog.With("session_id", sessionID, "generation", p.Generation, "approved", approved)

	if edited != nil {
		c.store.Append(editSummary(edited))
	}

	resp, err := c.gw.Approve(ctx, &gateway.ApproveRequest{
		SessionID:  sessionID,
		MessageID:  p.MessageID,
		Approved:   approved,
		EditedData: edited,
	})

	c.mu.Lock()
	if c.generation != p.Generation || c.pending == nil {
		c.mu.Unlock()
		logger.Info("dropping stale approval result")
		return nil
	}
	c.state = StateIdle
	c.pending = nil
	c.mu.Unlock()

	switch {
	case err != nil:
		logger.Warn("approval failed", "error", err)
		c.store.Append(transcript.AssistantMessage(transcript.KindPlain, FailedText))
		return err
	case !resp.Success:
		logger.Warn("approval rejected by backend", "message", resp.Message)
		text := resp.Message
		if text == "" {
			text = FailedText
		}
		c.store.Append(transcript.SystemMessage(text))
		return nil
	}

	if !approved {
		c.store.Append(transcript.AssistantMessage(transcript.KindPlain, RejectedText))
		return nil
	}
	msgs := []transcript.Message{transcript.AssistantMessage(transcript.KindPlain, ApprovedText)}
	if resp.HasAutomationResponse() {
		msgs = append(msgs, transcript.SystemMessage(automationPrefix+prettyRaw(resp.N8NResponse)))
	}
	c.store.Append(msgs...)
	logger.Info("approval resolved")
	return nil
}

// Supersede discards the pending approval. A resolution already in flight
// completes against the backend but its result is ignored.
func (c *Controller) Supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.pending = nil
	c.state = StateIdle
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{State: c.state}
	if c.pending != nil {
		p := *c.pending
		p.Draft = p.Draft.Clone()
		snap.Pending = &p
	}
	return snap
}

func editSummary(draft map[string]any) transcript.Message {
	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		data = []byte("{}")
	}
	return transcript.AssistantMessage(transcript.KindEditSummary, editSummaryPrefix+string(data))
}

func prettyRaw(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(data)
}
