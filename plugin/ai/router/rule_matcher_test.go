package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutomationClassifier_DefaultTable(t *testing.T) {
	c := NewDefaultAutomationClassifier()

	tests := []struct {
		input string
		label string
		ok    bool
	}{
		{"Check my LinkedIn notifications", "🔔 Checking LinkedIn notifications...", true},
		{"scrape product listings from amazon", "🛒 Scraping product listings...", true},
		{"Find PRODUCT deals", "🛒 Scraping product listings...", true},
		{"any new job alerts?", "💼 Checking LinkedIn job alerts...", true},
		{"check website example.com", "🔍 Monitoring website updates...", true},
		{"monitor competitor pricing", "📊 Analyzing competitor data...", true},
		{"get me the latest news", "📰 Gathering latest news...", true},
		{"Send an email to john@x.com saying hi", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			label, ok := c.Classify(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.ok, c.IsDirectAutomation(tt.input))
		})
	}
}

func TestAutomationClassifier_FirstMatchWins(t *testing.T) {
	// Matches both the linkedin-notification row and the job row; the earlier row wins.
	c := NewDefaultAutomationClassifier()
	label, ok := c.Classify("check linkedin notifications about job alerts")
	require.True(t, ok)
	assert.Equal(t, "🔔 Checking LinkedIn notifications...", label)

	custom, err := NewAutomationClassifier([]AutomationRule{
		{Pattern: "report", Label: "first"},
		{Pattern: "weekly.*report", Label: "second"},
	})
	require.NoError(t, err)
	label, _ = custom.Classify("weekly report")
	assert.Equal(t, "first", label)
}

func TestAutomationClassifier_Deterministic(t *testing.T) {
	c := NewDefaultAutomationClassifier()
	first, firstOK := c.Classify("scrape news articles")
	for i := 0; i < 100; i++ {
		label, ok := c.Classify("scrape news articles")
		assert.Equal(t, first, label)
		assert.Equal(t, firstOK, ok)
	}
}

func TestAutomationClassifier_InvalidPattern(t *testing.T) {
	_, err := NewAutomationClassifier([]AutomationRule{{Pattern: "(unclosed", Label: "x"}})
	assert.Error(t, err)
}

func TestKeywordMatcher_ClassifyAction(t *testing.T) {
	m := NewDefaultKeywordMatcher()

	tests := []struct {
		name       string
		input      string
		hasPending bool
		want       Action
	}{
		{"ApproveSendIt", "Send it", true, ActionApprove},
		{"ApproveGoAhead", "  GO AHEAD please ", true, ActionApprove},
		{"RejectCancel", "cancel that", true, ActionReject},
		{"RejectDontSend", "don't send", true, ActionReject},
		{"BothApprovalWins", "yes, cancel", true, ActionApprove},
		{"NoKeywords", "what's the weather", true, ActionNone},
		{"ApprovalWithoutPending", "approve", false, ActionNoPendingHint},
		{"RejectionWithoutPending", "abort", false, ActionNoPendingHint},
		{"PlainWithoutPending", "hello there", false, ActionNone},
		{"Empty", "   ", true, ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ClassifyAction(tt.input, tt.hasPending))
		})
	}
}

func TestKeywordMatcher_SubstringSemantics(t *testing.T) {
	m := NewDefaultKeywordMatcher()
	// "no" is matched as a substring, so words containing it count as rejection.
	assert.Equal(t, ActionReject, m.ClassifyAction("I know", true))
	assert.Equal(t, ActionNoPendingHint, m.ClassifyAction("I know", false))
}

func TestKeywordMatcher_CustomSets(t *testing.T) {
	m := NewKeywordMatcher([]string{" Ship IT "}, []string{"hold"})
	assert.Equal(t, ActionApprove, m.ClassifyAction("ship it now", true))
	assert.Equal(t, ActionReject, m.ClassifyAction("hold on", true))
	assert.Equal(t, ActionNone, m.ClassifyAction("send it", true))
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "approve", ActionApprove.String())
	assert.Equal(t, "reject", ActionReject.String())
	assert.Equal(t, "no_pending_hint", ActionNoPendingHint.String())
	assert.Equal(t, "none", ActionNone.String())
}
