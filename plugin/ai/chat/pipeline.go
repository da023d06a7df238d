// Package chat runs one utterance through approval keywords, automation
// detection and the backend, committing replies in send order.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/elva/plugin/ai/approval"
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/link"
	"github.com/hrygo/elva/plugin/ai/router"
	"github.com/hrygo/elva/plugin/ai/timeout"
	"github.com/hrygo/elva/plugin/ai/transcript"
)

// Transcript texts.
const (
	NoPendingHintText = "🤔 I don't see any pending actions to approve. Try asking me to do something first, like 'Send an email to John about the meeting' or 'Create a reminder for tomorrow'!"
	SendFailedText    = "Sorry, I encountered an error. Please try again! 🤖"
	ClearFailedText   = "⚠️ Could not clear the conversation. Please try again."
	ResolvingText     = "⏳ I'm still working on your last decision. Give me a moment!"
)

// Config wires a Pipeline.
type Config struct {
	Gateway     gateway.Service
	Store       *transcript.Store
	Approval    *approval.Controller
	Link        *link.Controller
	Automations router.Classifier
	Keywords    *router.KeywordMatcher
	// SessionID returns the current session id at call time.
	SessionID func() string
	UserID    string
}

// Pipeline handles the utterances of one session.
type Pipeline struct {
	gw          gateway.Service
	store       *transcript.Store
	approval    *approval.Controller
	link        *link.Controller
	automations router.Classifier
	keywords    *router.KeywordMatcher
	sessionID   func() string
	userID      string

	seq *sequencer

	mu         sync.Mutex
	automation map[uint64]string
	labelOrder []uint64
	labelSeq   uint64
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Automations == nil {
		cfg.Automations = router.NewDefaultAutomationClassifier()
	}
	if cfg.Keywords == nil {
		cfg.Keywords = router.NewDefaultKeywordMatcher()
	}
	return &Pipeline{
		gw:          cfg.Gateway,
		store:       cfg.Store,
		approval:    cfg.Approval,
		link:        cfg.Link,
		automations: cfg.Automations,
		keywords:    cfg.Keywords,
		sessionID:   cfg.SessionID,
		userID:      cfg.UserID,
		seq:         newSequencer(),
		automation:  make(map[uint64]string),
	}
}

// Submit processes one utterance. Whitespace-only input is ignored.
// Failures end up in the transcript; the returned error is informational.
func (p *Pipeline) Submit(ctx context.Context, utterance string) error {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return nil
	}

	label, direct := p.automations.Classify(text)

	pending := p.approval.HasPending()
	switch action := p.keywords.ClassifyAction(text, p.approval.Busy()); action {
	case router.ActionApprove, router.ActionReject:
		p.store.Append(transcript.UserMessage(text))
		if !pending {
			p.store.Append(transcript.SystemMessage(ResolvingText))
			return nil
		}
		return p.approval.Resolve(ctx, action == router.ActionApprove)
	case router.ActionNoPendingHint:
		// Only approval words get the hint. Rejection words such as "no" hide
		// inside ordinary requests ("announcement", "know") and go to the backend.
		if !direct && p.keywords.ClassifyAction(text, true) == router.ActionApprove {
			p.store.Append(transcript.UserMessage(text), transcript.SystemMessage(NoPendingHintText))
			return nil
		}
	}

	if direct {
		done := p.showAutomation(label)
		defer done()
	}

	t := p.seq.issue(func() {
		p.store.Append(transcript.UserMessage(text))
	})

	sessionID := p.sessionID()
	resp, err := p.gw.SendChat(ctx, &gateway.ChatRequest{
		Message:   text,
		SessionID: sessionID,
		UserID:    p.userID,
	})

	p.seq.commit(t, func() {
		if err != nil {
			slog.Warn("chat send failed", "session_id", sessionID, "error", err)
			p.store.Append(transcript.AssistantMessage(transcript.KindPlain, SendFailedText))
			return
		}
		msg := assistantReply(resp, direct)
		p.store.Append(msg)
		p.approval.Offer(msg, direct)
		if wantsIntegrationTest(text) {
			p.store.Append(transcript.SystemMessage(p.integrationTestText(sessionID)))
		}
	})
	return err
}

func assistantReply(resp *gateway.ChatResponse, direct bool) transcript.Message {
	kind := transcript.KindPlain
	if direct {
		kind = transcript.KindAutomationDirect
	}
	msg := transcript.AssistantMessage(kind, resp.Response)
	if id := resp.ID.String(); id != "" {
		msg.ID = id
	}
	if !resp.Timestamp.IsZero() {
		msg.Timestamp = resp.Timestamp.Time
	}
	msg.IntentData = transcript.IntentData(resp.IntentData)
	msg.NeedsApproval = resp.NeedsApproval
	return msg
}

// showAutomation publishes an in-flight automation label until done is called.
func (p *Pipeline) showAutomation(label string) (done func()) {
	p.mu.Lock()
	p.labelSeq++
	id := p.labelSeq
	p.automation[id] = label
	p.labelOrder = append(p.labelOrder, id)
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.automation, id)
		for i, v := range p.labelOrder {
			if v == id {
				p.labelOrder = append(p.labelOrder[:i], p.labelOrder[i+1:]...)
				break
			}
		}
	}
}

// AutomationStatus returns the label of the newest in-flight direct
// automation, or "" when none is running.
func (p *Pipeline) AutomationStatus() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.labelOrder) == 0 {
		return ""
	}
	return p.automation[p.labelOrder[len(p.labelOrder)-1]]
}

// InFlight reports how many sends await their reply.
func (p *Pipeline) InFlight() int {
	return p.seq.pending()
}

func wantsIntegrationTest(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "gmail debug") || strings.Contains(lower, "test gmail")
}

func (p *Pipeline) integrationTestText(sessionID string) string {
	status := p.link.Status()
	connected := "Not Connected ❌"
	if status.Authenticated {
		connected = "Connected ✅"
	}
	creds := "Missing ❌"
	if status.CredentialsConfigured {
		creds = "Configured ✅"
	}
	diagnostics := "None"
	if p.store.HasPrefix(link.DebugPrefix) {
		diagnostics = "See the debug message above"
	}
	return fmt.Sprintf("🔧 **Gmail Integration Test**\n\n"+
		"🔗 **Current Status**: %s\n"+
		"🔑 **Credentials**: %s\n"+
		"🩺 **Diagnostics**: %s\n"+
		"🆔 **Session ID**: %s\n\n"+
		"**🧪 Test Steps:**\n"+
		"1. Click the \"Connect Gmail\" button above\n"+
		"2. You'll be redirected to Google's OAuth page\n"+
		"3. Grant permissions to your Google account\n"+
		"4. You'll be redirected back here\n"+
		"5. You should see a success message in this chat\n"+
		"6. The button should change to \"Gmail Connected ✅\"",
		connected, creds, diagnostics, sessionID)
}

// Mount loads the stored history and probes the link concurrently, then
// seeds the welcome message when the conversation is empty.
func (p *Pipeline) Mount(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, timeout.Mount)
	defer cancel()

	sessionID := p.sessionID()
	var history []transcript.Message

	var g errgroup.Group
	g.Go(func() error {
		resp, err := p.gw.History(ctx, sessionID)
		if err != nil {
			slog.Warn("history load failed", "session_id", sessionID, "error", err)
			return nil
		}
		history = transcript.FromHistory(resp.Messages)
		return nil
	})
	g.Go(func() error {
		probeCtx, cancel := context.WithTimeout(ctx, timeout.Probe)
		defer cancel()
		_, _ = p.link.Probe(probeCtx)
		return nil
	})
	_ = g.Wait()

	if len(history) > 0 {
		p.store.Hydrate(history)
	}
	p.store.SeedWelcome(transcript.WelcomeMessage(p.link.Linked()))
	slog.Debug("session mounted", "session_id", sessionID, "history", len(history))
}

// ClearHistory deletes the stored conversation and starts over locally.
func (p *Pipeline) ClearHistory(ctx context.Context) error {
	sessionID := p.sessionID()
	if _, err := p.gw.ClearHistory(ctx, sessionID); err != nil {
		slog.Warn("history clear failed", "session_id", sessionID, "error", err)
		p.store.Append(transcript.SystemMessage(ClearFailedText))
		return err
	}
	p.Reset()
	p.approval.Supersede()
	p.store.Clear()
	p.store.SeedWelcome(transcript.WelcomeMessage(p.link.Linked()))
	return nil
}

// Reset abandons every in-flight send; their replies are dropped.
func (p *Pipeline) Reset() {
	p.seq.reset()
}
