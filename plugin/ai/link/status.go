// Package link tracks the external mailbox link for one session.
package link

import (
	"fmt"
	"strings"

	"github.com/hrygo/elva/plugin/ai/gateway"
)

// State is the link machine state.
type State int

const (
	StateUnchecked State = iota
	StateChecking
	StateLinked
	StateUnlinked
	StateNotConfigured
	StateLinkedPendingRedirect
	StateError
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateLinked:
		return "linked"
	case StateUnlinked:
		return "unlinked"
	case StateNotConfigured:
		return "not_configured"
	case StateLinkedPendingRedirect:
		return "pending_redirect"
	case StateError:
		return "error"
	default:
		return "unchecked"
	}
}

// DebugInfo is the diagnostic payload of the last probe.
type DebugInfo struct {
	Success      bool     `json:"success"`
	RequiresAuth bool     `json:"requires_auth"`
	Scopes       []string `json:"scopes,omitempty"`
	Service      string   `json:"service,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	Transport    string   `json:"transport,omitempty"`
}

// Status is the link status of one session.
type Status struct {
	State                 State      `json:"-"`
	Authenticated         bool       `json:"authenticated"`
	Loading               bool       `json:"loading"`
	CredentialsConfigured bool       `json:"credentials_configured"`
	Error                 string     `json:"error,omitempty"`
	DebugInfo             *DebugInfo `json:"debug_info,omitempty"`
}

// StateOf derives the machine state from a probe response.
func StateOf(resp *gateway.StatusResponse) State {
	switch {
	case !resp.Success:
		return StateError
	case !resp.CredentialsConfigured:
		return StateNotConfigured
	case resp.Authenticated:
		return StateLinked
	default:
		return StateUnlinked
	}
}

// needsDiagnostics reports whether a probe response warrants the debug banner.
func needsDiagnostics(resp *gateway.StatusResponse) bool {
	return !resp.Success || !resp.CredentialsConfigured || resp.Error != ""
}

func check(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// diagnosticsText renders the debug banner for a probe response.
func diagnosticsText(resp *gateway.StatusResponse, sessionID string) string {
	var b strings.Builder
	b.WriteString("🔧 **Gmail Connection Debug**\n\n")
	fmt.Fprintf(&b, "📋 **Status**: %s\n", check(resp.Success, "Service Running", "Service Error"))
	fmt.Fprintf(&b, "🔑 **Credentials**: %s\n", check(resp.CredentialsConfigured, "Configured ✅", "Missing ❌"))
	fmt.Fprintf(&b, "🔐 **Authentication**: %s\n", check(resp.Authenticated, "Connected ✅", "Not Connected ❌"))
	fmt.Fprintf(&b, "🆔 **Session ID**: %s\n", sessionID)
	if resp.Error != "" {
		fmt.Fprintf(&b, "❌ **Error**: %s\n", resp.Error)
	}
	b.WriteString("\n")
	switch {
	case !resp.CredentialsConfigured:
		b.WriteString("⚠️ **Issue**: Gmail credentials.json file is missing from backend. This is required for OAuth2 authentication to work properly.")
	case !resp.Authenticated:
		b.WriteString("💡 Click \"Connect Gmail\" above to authenticate with your Google account.")
	default:
		b.WriteString("✅ Everything looks good!")
	}
	return b.String()
}

// unreachableText renders the debug banner for a probe that never got an answer.
func unreachableText(err error, sessionID string) string {
	var b strings.Builder
	b.WriteString("🔧 **Gmail Connection Debug**\n\n")
	b.WriteString("📋 **Status**: Service Unreachable\n")
	fmt.Fprintf(&b, "🆔 **Session ID**: %s\n", sessionID)
	fmt.Fprintf(&b, "❌ **Error**: %s\n\n", err)
	b.WriteString("⚠️ **Issue**: The backend did not answer the status check. Make sure it is running and reload the page.")
	return b.String()
}
