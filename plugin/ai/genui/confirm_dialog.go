package genui

// ConfirmDialogData represents data for a confirmation dialog.
type ConfirmDialogData struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	ConfirmText string `json:"confirm_text"`
	CancelText  string `json:"cancel_text"`
	Danger      bool   `json:"danger"` // Red button for dangerous actions
}

// NewConfirmDialog creates a confirmation dialog with Approve and Cancel buttons.
func NewConfirmDialog(title, message string, payload any, danger bool) *UIComponent {
	return NewConfirmDialogWithLabels(title, message, "Approve", "Cancel", payload, danger)
}

// NewConfirmDialogWithLabels creates a confirmation dialog with custom button labels.
// Both buttons post to the approval endpoint.
func NewConfirmDialogWithLabels(title, message, confirmLabel, cancelLabel string, payload any, danger bool) *UIComponent {
	return &UIComponent{
		Type: ComponentConfirmDialog,
		ID:   generateID(),
		Data: &ConfirmDialogData{
			Title:       title,
			Message:     message,
			ConfirmText: confirmLabel,
			CancelText:  cancelLabel,
			Danger:      danger,
		},
		Actions: []UIAction{
			{
				ID:      "approve",
				Type:    "submit",
				Label:   confirmLabel,
				Style:   ternary(danger, "danger", "primary"),
				Method:  "POST",
				Href:    "/approval/approve",
				Payload: payload,
			},
			{
				ID:     "reject",
				Type:   "submit",
				Label:  cancelLabel,
				Style:  "secondary",
				Method: "POST",
				Href:   "/approval/reject",
			},
		},
	}
}
