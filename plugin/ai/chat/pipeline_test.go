package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/elva/plugin/ai/approval"
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/link"
	"github.com/hrygo/elva/plugin/ai/transcript"
)

type fixture struct {
	gw       *gateway.MockService
	store    *transcript.Store
	approval *approval.Controller
	link     *link.Controller
	pipeline *Pipeline
}

func newFixture() *fixture {
	gw := gateway.NewMockService()
	store := transcript.NewStore()
	sessionID := func() string { return "session_1_abc" }
	f := &fixture{
		gw:       gw,
		store:    store,
		approval: approval.NewController(approval.Config{Gateway: gw, Store: store, SessionID: sessionID}),
		link:     link.NewController(link.Config{Gateway: gw, Store: store, SessionID: sessionID}),
	}
	f.pipeline = NewPipeline(Config{
		Gateway:   gw,
		Store:     store,
		Approval:  f.approval,
		Link:      f.link,
		SessionID: sessionID,
		UserID:    "default_user",
	})
	return f
}

func countKind(store *transcript.Store, kind transcript.Kind) int {
	n := 0
	for _, m := range store.Messages() {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

func texts(store *transcript.Store) []string {
	var out []string
	for _, m := range store.Messages() {
		out = append(out, m.Text)
	}
	return out
}

func TestPipeline_IgnoresBlankInput(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.pipeline.Submit(context.Background(), "   \n"))
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 0, f.gw.Calls("SendChat"))
}

func TestPipeline_PlainChat(t *testing.T) {
	f := newFixture()
	f.gw.SendChatFunc = func(_ context.Context, req *gateway.ChatRequest) (*gateway.ChatResponse, error) {
		return &gateway.ChatResponse{ID: "7", Response: "Hi! How can I help?"}, nil
	}

	require.NoError(t, f.pipeline.Submit(context.Background(), "hello there"))

	reqs := f.gw.ChatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "hello there", reqs[0].Message)
	assert.Equal(t, "session_1_abc", reqs[0].SessionID)
	assert.Equal(t, "default_user", reqs[0].UserID)

	msgs := f.store.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUser())
	assert.Equal(t, "7", msgs[1].ID)
	assert.Equal(t, transcript.KindPlain, msgs[1].Kind)
	assert.False(t, f.approval.HasPending())
}

func TestPipeline_SendItResolvesPendingApproval(t *testing.T) {
	f := newFixture()
	f.gw.SendChatFunc = func(_ context.Context, _ *gateway.ChatRequest) (*gateway.ChatResponse, error) {
		return &gateway.ChatResponse{
			ID:            "42",
			Response:      "Here's a draft email for John.",
			NeedsApproval: true,
			IntentData: map[string]any{
				"intent":          "send_email",
				"recipient_email": "john@x.com",
				"subject":         "Hi",
				"body":            "Hello John",
			},
		}, nil
	}

	require.NoError(t, f.pipeline.Submit(context.Background(), "Send an email to john@x.com saying hi"))
	require.True(t, f.approval.HasPending())
	assert.Equal(t, approval.HelpText, texts(f.store)[2])

	require.NoError(t, f.pipeline.Submit(context.Background(), "Send it"))

	assert.Equal(t, 1, f.gw.Calls("SendChat"), "keyword never reaches /chat")
	reqs := f.gw.ApproveRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "42", reqs[0].MessageID)
	assert.True(t, reqs[0].Approved)
	assert.Equal(t, "john@x.com", reqs[0].EditedData["recipient_email"])

	all := texts(f.store)
	assert.Equal(t, "Send it", all[3])
	assert.Equal(t, approval.ApprovedText, all[len(all)-1])
	assert.False(t, f.approval.HasPending())
}

func TestPipeline_KeywordWithoutPendingShowsHint(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.pipeline.Submit(context.Background(), "yes"))

	assert.Equal(t, []string{"yes", NoPendingHintText}, texts(f.store))
	assert.Equal(t, 0, f.gw.Calls("SendChat"))
	assert.Equal(t, 0, f.gw.Calls("Approve"))
}

func TestPipeline_RejectionWordsWithoutPendingReachBackend(t *testing.T) {
	for _, utterance := range []string{
		"Send an email to Tom about the announcement",
		"What do you know about Go?",
		"Remind me to water the plants now",
		"stop",
	} {
		t.Run(utterance, func(t *testing.T) {
			f := newFixture()
			f.gw.SendChatFunc = func(_ context.Context, _ *gateway.ChatRequest) (*gateway.ChatResponse, error) {
				return &gateway.ChatResponse{Response: "On it."}, nil
			}

			require.NoError(t, f.pipeline.Submit(context.Background(), utterance))

			assert.Equal(t, 1, f.gw.Calls("SendChat"))
			assert.Equal(t, []string{utterance, "On it."}, texts(f.store))
		})
	}
}

func TestPipeline_KeywordWhileResolving(t *testing.T) {
	f := newFixture()
	started := make(chan struct{})
	release := make(chan struct{})
	f.gw.ApproveFunc = func(_ context.Context, _ *gateway.ApproveRequest) (*gateway.ApproveResponse, error) {
		close(started)
		<-release
		return &gateway.ApproveResponse{Success: true}, nil
	}
	draft := transcript.AssistantMessage(transcript.KindPlain, "Here's a draft email for John.")
	draft.ID = "42"
	draft.NeedsApproval = true
	draft.IntentData = transcript.IntentData{"intent": "send_email", "subject": "Hi"}
	require.True(t, f.approval.Offer(draft, false))

	done := make(chan error, 1)
	go func() { done <- f.pipeline.Submit(context.Background(), "Send it") }()
	<-started

	require.NoError(t, f.pipeline.Submit(context.Background(), "yes"))
	all := texts(f.store)
	assert.Equal(t, ResolvingText, all[len(all)-1])
	assert.NotContains(t, all, NoPendingHintText)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, f.gw.Calls("Approve"))
	assert.Equal(t, 0, f.gw.Calls("SendChat"))
}

func TestPipeline_DirectAutomationSkipsApproval(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.gw.SendChatFunc = func(_ context.Context, _ *gateway.ChatRequest) (*gateway.ChatResponse, error) {
		<-release
		return &gateway.ChatResponse{
			Response:      "3 new notifications",
			NeedsApproval: true,
			IntentData:    map[string]any{"intent": "linkedin_notifications"},
		}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.pipeline.Submit(context.Background(), "check my linkedin notifications") }()

	require.Eventually(t, func() bool {
		return f.pipeline.AutomationStatus() == "🔔 Checking LinkedIn notifications..."
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, "", f.pipeline.AutomationStatus())
	assert.False(t, f.approval.HasPending())
	msgs := f.store.Messages()
	assert.Equal(t, transcript.KindAutomationDirect, msgs[len(msgs)-1].Kind)
}

func TestPipeline_TransportFailure(t *testing.T) {
	f := newFixture()
	f.gw.SendChatFunc = func(_ context.Context, _ *gateway.ChatRequest) (*gateway.ChatResponse, error) {
		return nil, errors.New("connection refused")
	}

	assert.Error(t, f.pipeline.Submit(context.Background(), "hello"))
	assert.Equal(t, []string{"hello", SendFailedText}, texts(f.store))
	assert.Equal(t, 0, f.pipeline.InFlight())
}

func TestPipeline_RepliesCommitInSendOrder(t *testing.T) {
	f := newFixture()
	gates := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	f.gw.SendChatFunc = func(_ context.Context, req *gateway.ChatRequest) (*gateway.ChatResponse, error) {
		<-gates[req.Message]
		return &gateway.ChatResponse{Response: "reply to " + req.Message}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.pipeline.Submit(context.Background(), "first")
	}()
	require.Eventually(t, func() bool { return f.pipeline.InFlight() == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.pipeline.Submit(context.Background(), "second")
	}()
	require.Eventually(t, func() bool { return f.pipeline.InFlight() == 2 }, time.Second, time.Millisecond)

	// The second reply arrives first but must wait for the first.
	close(gates["second"])
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, texts(f.store))

	close(gates["first"])
	wg.Wait()
	assert.Equal(t, []string{"first", "second", "reply to first", "reply to second"}, texts(f.store))
}

func TestPipeline_ResetDropsInFlightReplies(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.gw.SendChatFunc = func(_ context.Context, req *gateway.ChatRequest) (*gateway.ChatResponse, error) {
		<-release
		return &gateway.ChatResponse{Response: "late"}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.pipeline.Submit(context.Background(), "slow") }()
	require.Eventually(t, func() bool { return f.pipeline.InFlight() == 1 }, time.Second, time.Millisecond)

	f.pipeline.Reset()
	f.store.Clear()
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 0, f.pipeline.InFlight())
}

func TestPipeline_IntegrationTestMessage(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.pipeline.Submit(context.Background(), "Test Gmail please"))

	msgs := f.store.Messages()
	require.Len(t, msgs, 3)
	last := msgs[2]
	assert.Equal(t, transcript.KindSystem, last.Kind)
	assert.Contains(t, last.Text, "🔧 **Gmail Integration Test**")
	assert.Contains(t, last.Text, "🆔 **Session ID**: session_1_abc")
	assert.Contains(t, last.Text, "6. The button should change to \"Gmail Connected ✅\"")
	assert.Contains(t, last.Text, "🩺 **Diagnostics**: None")
}

func TestPipeline_IntegrationTestMessageNotesDiagnostics(t *testing.T) {
	f := newFixture()
	banner := transcript.SystemMessage("🔧 debug")
	banner.ID = transcript.NewID(link.DebugPrefix)
	require.True(t, f.store.AppendUnlessPrefix(link.DebugPrefix, banner))

	require.NoError(t, f.pipeline.Submit(context.Background(), "gmail debug"))

	all := texts(f.store)
	assert.Contains(t, all[len(all)-1], "🩺 **Diagnostics**: See the debug message above")
}

func TestPipeline_MountWithHistory(t *testing.T) {
	f := newFixture()
	f.gw.HistoryFunc = func(_ context.Context, _ string) (*gateway.HistoryResponse, error) {
		return &gateway.HistoryResponse{Messages: []gateway.HistoryMessage{
			{ID: "1", Message: "hi", Response: "hello"},
		}}, nil
	}

	f.pipeline.Mount(context.Background())

	assert.Equal(t, []string{"hi", "hello"}, texts(f.store))
	assert.Equal(t, 1, f.gw.Calls("LinkStatus"))
	assert.Equal(t, 0, countKind(f.store, transcript.KindWelcome))
}

func TestPipeline_MountSeedsWelcome(t *testing.T) {
	f := newFixture()
	f.gw.HistoryFunc = func(_ context.Context, _ string) (*gateway.HistoryResponse, error) {
		return nil, errors.New("unreachable")
	}
	f.gw.LinkStatusFunc = func(_ context.Context, _ string) (*gateway.StatusResponse, error) {
		return &gateway.StatusResponse{Success: true, CredentialsConfigured: true, Authenticated: true}, nil
	}

	f.pipeline.Mount(context.Background())

	msgs := f.store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.KindWelcome, msgs[0].Kind)
	assert.Contains(t, msgs[0].Text, "Gmail is connected")
}

func TestPipeline_ClearHistory(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.pipeline.Submit(context.Background(), "hello"))

	require.NoError(t, f.pipeline.ClearHistory(context.Background()))
	msgs := f.store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.KindWelcome, msgs[0].Kind)

	f.gw.ClearHistoryFunc = func(_ context.Context, _ string) (*gateway.ClearResponse, error) {
		return nil, errors.New("down")
	}
	assert.Error(t, f.pipeline.ClearHistory(context.Background()))
	assert.Equal(t, ClearFailedText, texts(f.store)[1])
}
