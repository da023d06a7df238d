// Package transcript holds the ordered chat transcript shared by every controller.
package transcript

import (
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/elva/plugin/ai/gateway"
)

// Direction tells who authored a message.
type Direction string

const (
	DirectionUser      Direction = "user"
	DirectionAssistant Direction = "assistant"
)

// Kind selects how a message is rendered.
type Kind string

const (
	KindPlain            Kind = "plain"
	KindSystem           Kind = "system"
	KindEditSummary      Kind = "edit-summary"
	KindWelcome          Kind = "welcome"
	KindAutomationDirect Kind = "automation-direct"
	KindLinkSuccess      Kind = "link-success"
	KindLinkError        Kind = "link-error"
)

// Message is one transcript entry.
type Message struct {
	ID            string           `json:"id" yaml:"id"`
	Direction     Direction        `json:"direction" yaml:"direction"`
	Text          string           `json:"text" yaml:"text"`
	Timestamp     time.Time        `json:"timestamp" yaml:"timestamp"`
	Kind          Kind             `json:"kind" yaml:"kind"`
	IntentData    IntentData       `json:"intent_data,omitempty" yaml:"intent_data,omitempty"`
	NeedsApproval bool             `json:"needs_approval,omitempty" yaml:"needs_approval,omitempty"`
	Profile       *gateway.Profile `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// IsUser reports whether the user authored the message.
func (m Message) IsUser() bool {
	return m.Direction == DirectionUser
}

// NewID returns a transcript id with the given prefix.
func NewID(prefix string) string {
	return prefix + shortuuid.New()
}

// UserMessage builds a user-authored message.
func UserMessage(text string) Message {
	return Message{
		ID:        NewID("user_"),
		Direction: DirectionUser,
		Text:      text,
		Timestamp: time.Now(),
		Kind:      KindPlain,
	}
}

// AssistantMessage builds an assistant message of the given kind.
func AssistantMessage(kind Kind, text string) Message {
	return Message{
		ID:        NewID("msg_"),
		Direction: DirectionAssistant,
		Text:      text,
		Timestamp: time.Now(),
		Kind:      kind,
	}
}

// SystemMessage builds an assistant system message.
func SystemMessage(text string) Message {
	return AssistantMessage(KindSystem, text)
}

const welcomeBase = "Hi Buddy 👋 Good to see you! Elva AI at your service. Ask me anything or tell me what to do!"

// WelcomeText is the greeting for a fresh conversation.
func WelcomeText(linked bool) string {
	if linked {
		return welcomeBase + "\n\n🎉 **Gmail is connected!** I can now help you with:\n" +
			"• 📧 Check your Gmail inbox\n• ✉️ Send emails\n• 📨 Read specific emails\n• 🔍 Search your messages"
	}
	return welcomeBase + "\n\n💡 **Tip:** Connect Gmail above for email assistance!"
}

// WelcomeMessage builds the welcome message.
func WelcomeMessage(linked bool) Message {
	msg := AssistantMessage(KindWelcome, WelcomeText(linked))
	msg.ID = NewID("welcome_")
	return msg
}

// FromHistory expands stored backend records into user and assistant messages.
func FromHistory(records []gateway.HistoryMessage) []Message {
	out := make([]Message, 0, len(records)*2)
	for _, rec := range records {
		ts := rec.Timestamp.Time
		if ts.IsZero() {
			ts = time.Now()
		}
		id := rec.ID.String()
		if id == "" {
			id = NewID("hist_")
		}
		if rec.Message != "" {
			out = append(out, Message{
				ID:        id + "_user",
				Direction: DirectionUser,
				Text:      rec.Message,
				Timestamp: ts,
				Kind:      KindPlain,
			})
		}
		if rec.Response != "" {
			out = append(out, Message{
				ID:         id,
				Direction:  DirectionAssistant,
				Text:       rec.Response,
				Timestamp:  ts,
				Kind:       KindPlain,
				IntentData: IntentData(rec.IntentData).Clone(),
			})
		}
	}
	return out
}
