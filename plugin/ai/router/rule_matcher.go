package router

import (
	"fmt"
	"regexp"
	"strings"
)

// AutomationRule is one row of the direct-automation table.
type AutomationRule struct {
	Pattern string // case-insensitive regular expression
	Label   string // status shown while the automation runs
}

// DefaultAutomationRules is the built-in table, evaluated top to bottom.
var DefaultAutomationRules = []AutomationRule{
	{Pattern: `check.*linkedin.*notification`, Label: "🔔 Checking LinkedIn notifications..."},
	{Pattern: `scrape.*product|product.*listing|find.*product`, Label: "🛒 Scraping product listings..."},
	{Pattern: `job.*alert|linkedin.*job|check.*job`, Label: "💼 Checking LinkedIn job alerts..."},
	{Pattern: `website.*update|check.*website`, Label: "🔍 Monitoring website updates..."},
	{Pattern: `competitor.*monitor|monitor.*competitor`, Label: "📊 Analyzing competitor data..."},
	{Pattern: `news.*article|scrape.*news|latest.*news`, Label: "📰 Gathering latest news..."},
}

type compiledRule struct {
	pattern *regexp.Regexp
	label   string
}

// AutomationClassifier applies an ordered rule table.
type AutomationClassifier struct {
	rules []compiledRule
}

// NewAutomationClassifier compiles the given rules in order.
func NewAutomationClassifier(rules []AutomationRule) (*AutomationClassifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("automation rule %d (%q): %w", i, r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{pattern: re, label: r.Label})
	}
	return &AutomationClassifier{rules: compiled}, nil
}

// NewDefaultAutomationClassifier returns the classifier for DefaultAutomationRules.
func NewDefaultAutomationClassifier() *AutomationClassifier {
	c, err := NewAutomationClassifier(DefaultAutomationRules)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the label of the first rule matching the lowercased utterance.
func (c *AutomationClassifier) Classify(utterance string) (string, bool) {
	lower := strings.ToLower(utterance)
	for _, r := range c.rules {
		if r.pattern.MatchString(lower) {
			return r.label, true
		}
	}
	return "", false
}

// IsDirectAutomation reports whether the utterance bypasses the approval gate.
func (c *AutomationClassifier) IsDirectAutomation(utterance string) bool {
	_, ok := c.Classify(utterance)
	return ok
}

var _ Classifier = (*AutomationClassifier)(nil)

// Default keyword sets, matched as substrings of the trimmed, lowercased utterance.
var (
	DefaultApprovalKeywords  = []string{"send it", "approve", "yes", "confirm", "execute", "do it", "go ahead"}
	DefaultRejectionKeywords = []string{"cancel", "no", "reject", "don't send", "abort", "stop"}
)

// KeywordMatcher reads approval and rejection intent from free text.
type KeywordMatcher struct {
	approval  []string
	rejection []string
}

// NewKeywordMatcher creates a matcher with the given keyword sets.
func NewKeywordMatcher(approval, rejection []string) *KeywordMatcher {
	return &KeywordMatcher{
		approval:  lowerAll(approval),
		rejection: lowerAll(rejection),
	}
}

// NewDefaultKeywordMatcher returns the matcher for the default keyword sets.
func NewDefaultKeywordMatcher() *KeywordMatcher {
	return NewKeywordMatcher(DefaultApprovalKeywords, DefaultRejectionKeywords)
}

// ClassifyAction classifies the utterance. When both sets match, approval wins.
func (m *KeywordMatcher) ClassifyAction(utterance string, hasPending bool) Action {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return ActionNone
	}

	approve := containsAny(text, m.approval)
	reject := containsAny(text, m.rejection)
	if !approve && !reject {
		return ActionNone
	}
	if !hasPending {
		return ActionNoPendingHint
	}
	if approve {
		return ActionApprove
	}
	return ActionReject
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
