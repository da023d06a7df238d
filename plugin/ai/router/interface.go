// Package router classifies raw utterances before they reach the backend.
// Both classifiers are pure: the same input and tables always give the same result.
package router

// Classifier maps an utterance to a direct-automation status label.
type Classifier interface {
	// Classify returns the label of the first matching rule.
	// ok is false when no rule matches.
	Classify(utterance string) (label string, ok bool)
}

// Action is the approval reading of an utterance.
type Action int

const (
	// ActionNone means the utterance is an ordinary chat message.
	ActionNone Action = iota
	// ActionApprove resolves the pending approval with approved=true.
	ActionApprove
	// ActionReject resolves the pending approval with approved=false.
	ActionReject
	// ActionNoPendingHint means approval keywords were used with nothing pending.
	ActionNoPendingHint
)

func (a Action) String() string {
	switch a {
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionNoPendingHint:
		return "no_pending_hint"
	default:
		return "none"
	}
}
