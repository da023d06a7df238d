package genui

import (
	"strings"

	"github.com/hrygo/elva/plugin/ai/approval"
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/link"
	"github.com/hrygo/elva/plugin/ai/transcript"
)

// FormField is one editable draft field.
type FormField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	List     bool   `json:"list,omitempty"`
	ReadOnly bool   `json:"read_only,omitempty"`
	Long     bool   `json:"long,omitempty"`
}

// ApprovalFormData is the payload of an approval form.
type ApprovalFormData struct {
	Title      string      `json:"title"`
	Intent     string      `json:"intent"`
	MessageID  string      `json:"message_id"`
	Generation uint64      `json:"generation"`
	Editing    bool        `json:"editing"`
	Fields     []FormField `json:"fields"`
}

// Fields lists the draft as form fields, intent first and read-only.
func Fields(draft transcript.IntentData) []FormField {
	keys := draft.Keys()
	fields := make([]FormField, 0, len(keys))
	for _, k := range keys {
		v := draft[k]
		fields = append(fields, FormField{
			Key:      k,
			Label:    Label(k),
			Value:    transcript.FieldText(v),
			List:     transcript.IsList(v),
			ReadOnly: k == transcript.IntentKey,
			Long:     k == "body" || k == "message" || k == "content" || k == "description",
		})
	}
	return fields
}

// Label turns a snake_case key into a title: recipient_email → Recipient Email.
func Label(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// IntentTitle names the action an intent performs.
func IntentTitle(intent string) string {
	if intent == "" {
		return "Review Action"
	}
	return "Review " + Label(intent)
}

// NewApprovalForm renders a pending approval as an editable form.
func NewApprovalForm(p *approval.Pending) *UIComponent {
	intent := p.Draft.Intent()
	return &UIComponent{
		Type: ComponentApprovalForm,
		ID:   generateID(),
		Data: &ApprovalFormData{
			Title:      IntentTitle(intent),
			Intent:     intent,
			MessageID:  p.MessageID,
			Generation: p.Generation,
			Editing:    p.Editing,
			Fields:     Fields(p.Draft),
		},
		Actions: []UIAction{
			{ID: "save_field", Type: "submit", Label: "Save", Style: "ghost", Method: "POST", Href: "/approval/field"},
			{ID: "review", Type: "submit", Label: "Done Editing", Style: "secondary", Method: "POST", Href: "/approval/editing"},
			{ID: "approve", Type: "submit", Label: "Approve", Style: "primary", Method: "POST", Href: "/approval/approve"},
			{ID: "reject", Type: "submit", Label: "Cancel", Style: "danger", Method: "POST", Href: "/approval/reject"},
		},
	}
}

// View is everything the components are generated from.
type View struct {
	Approval   approval.Snapshot
	Link       link.Status
	Profile    *gateway.Profile
	Automation string
}

// Generate lists the components for the current session view.
func Generate(v View) []UIComponent {
	out := []UIComponent{*NewLinkBanner(v.Link, v.Profile)}
	if v.Automation != "" {
		out = append(out, UIComponent{
			Type: ComponentAutomationStatus,
			ID:   generateID(),
			Data: map[string]string{"label": v.Automation},
		})
	}
	p := v.Approval.Pending
	if v.Approval.State == approval.StateIdle || p == nil {
		return out
	}
	if p.Editing {
		return append(out, *NewApprovalForm(p))
	}
	dialog := NewConfirmDialog(
		IntentTitle(p.Draft.Intent()),
		p.Message.Text,
		map[string]any{"message_id": p.MessageID, "generation": p.Generation},
		false,
	)
	return append(out, *dialog)
}
