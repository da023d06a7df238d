package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/link"
)

var (
	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	warningStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Underline(true)
)

var probeSessionID string

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the AI backend is reachable and report the mailbox link",
	Long: `Probe the configured backend by:
  • Fetching the mailbox link status
  • Loading the stored history of a session

Use --session-id to inspect an existing browser session.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		gw := gateway.NewClient(gateway.Config{
			BaseURL:     p.BackendURL,
			Timeout:     p.RequestTimeout,
			MaxInflight: p.MaxInflight,
		})
		if !runProbe(cmd.Context(), cmd.OutOrStdout(), gw, p.BackendURL, probeSessionID) {
			return errors.New("backend probe failed")
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().StringVar(&probeSessionID, "session-id", "session_probe", "session id to probe")
}

// runProbe prints the probe report and reports whether the backend answered.
func runProbe(ctx context.Context, w io.Writer, gw gateway.Service, backendURL, sessionID string) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(w, sectionStyle.Render("🔍 Elva Backend Probe"))
	fmt.Fprintln(w, infoStyle.Render("Backend: "+backendURL+"/api"))
	fmt.Fprintln(w, infoStyle.Render("Session: "+sessionID))
	fmt.Fprintln(w)

	status, err := gw.LinkStatus(ctx, sessionID)
	if err != nil {
		fmt.Fprintln(w, errorStyle.Render("❌ Backend unreachable:"), err)
		return false
	}
	fmt.Fprintln(w, successStyle.Render("✅ Backend reachable"))

	switch state := link.StateOf(status); state {
	case link.StateLinked:
		fmt.Fprintln(w, successStyle.Render("✅ Gmail connected"))
	case link.StateUnlinked:
		fmt.Fprintln(w, warningStyle.Render("⚠️  Gmail not connected"))
	case link.StateNotConfigured:
		fmt.Fprintln(w, warningStyle.Render("⚠️  Gmail credentials not configured"))
	default:
		fmt.Fprintln(w, errorStyle.Render("❌ Link status check failed:"), status.Error)
	}
	if len(status.Scopes) > 0 {
		fmt.Fprintln(w, infoStyle.Render("Scopes: "+strings.Join(status.Scopes, ", ")))
	}

	history, err := gw.History(ctx, sessionID)
	if err != nil {
		fmt.Fprintln(w, warningStyle.Render("⚠️  History unavailable:"), err)
		return true
	}
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("✅ %d stored exchanges", len(history.Messages))))
	return true
}
