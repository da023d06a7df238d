// Package genui describes the interactive components shown next to the
// transcript: the approval form, its confirmation and the link banner.
package genui

import (
	"github.com/google/uuid"
)

// ComponentType defines the type of UI component.
type ComponentType string

const (
	ComponentApprovalForm     ComponentType = "approval_form"
	ComponentConfirmDialog    ComponentType = "confirm_dialog"
	ComponentLinkBanner       ComponentType = "link_banner"
	ComponentAutomationStatus ComponentType = "automation_status"
)

// UIComponent represents a generic UI component.
type UIComponent struct {
	Type    ComponentType `json:"type"`
	ID      string        `json:"id"`
	Data    any           `json:"data"`
	Actions []UIAction    `json:"actions,omitempty"`
}

// UIAction represents an action button on a component.
type UIAction struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "button", "link", "submit"
	Label   string `json:"label"`
	Style   string `json:"style"` // "primary", "secondary", "danger", "ghost"
	Method  string `json:"method,omitempty"`
	Href    string `json:"href,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// generateID creates a unique component ID.
func generateID() string {
	return uuid.New().String()[:8]
}

func ternary(condition bool, trueVal, falseVal string) string {
	if condition {
		return trueVal
	}
	return falseVal
}
