package genui

import (
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/link"
)

// LinkBannerData is the payload of the mailbox link banner.
type LinkBannerData struct {
	State                 string           `json:"state"`
	Label                 string           `json:"label"`
	Authenticated         bool             `json:"authenticated"`
	Loading               bool             `json:"loading"`
	CredentialsConfigured bool             `json:"credentials_configured"`
	Error                 string           `json:"error,omitempty"`
	Profile               *gateway.Profile `json:"profile,omitempty"`
}

// LinkLabel is the banner button text for a link status.
func LinkLabel(s link.Status) string {
	switch {
	case s.Loading || s.State == link.StateChecking:
		return "Checking Gmail..."
	case s.Authenticated:
		return "Gmail Connected ✅"
	case s.State == link.StateLinkedPendingRedirect:
		return "Redirecting to Google..."
	case s.State == link.StateNotConfigured:
		return "Gmail Not Configured"
	default:
		return "Connect Gmail"
	}
}

// NewLinkBanner renders the link status. The connect action is offered
// only while the account is not linked.
func NewLinkBanner(s link.Status, profile *gateway.Profile) *UIComponent {
	c := &UIComponent{
		Type: ComponentLinkBanner,
		ID:   generateID(),
		Data: &LinkBannerData{
			State:                 s.State.String(),
			Label:                 LinkLabel(s),
			Authenticated:         s.Authenticated,
			Loading:               s.Loading,
			CredentialsConfigured: s.CredentialsConfigured,
			Error:                 s.Error,
			Profile:               profile,
		},
	}
	if !s.Authenticated && !s.Loading {
		c.Actions = []UIAction{{
			ID:     "connect",
			Type:   "submit",
			Label:  "Connect Gmail",
			Style:  "primary",
			Method: "POST",
			Href:   "/link",
		}}
	}
	return c
}
