package frontend

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/elva/internal/errors"
	"github.com/hrygo/elva/plugin/ai/transcript"
	"github.com/hrygo/elva/plugin/ai/transcript/export"
	"github.com/hrygo/elva/server/internal/observability"
)

func home(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/")
}

// Index renders the chat page. An OAuth redirect is applied first and then
// stripped from the address bar.
// GET /
func (s *FrontendService) Index(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	s.mount(ctx, state)
	if state.Link.HandleRedirect(ctx, c.QueryParams()) {
		return home(c)
	}
	return s.renderPage(c, "index.html", s.pageData(state))
}

// SendChat submits an utterance. The reply arrives in the background; the
// page polls while it is in flight.
// POST /chat
func (s *FrontendService) SendChat(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	text := c.FormValue("message")
	if !s.Limiter.Allow(state.ID()) {
		s.onRateLimited(c)
		state.Transcript.Append(transcript.SystemMessage(RateLimitedText))
		return home(c)
	}

	logger := observability.LoggerFrom(c.Request().Context())
	ctx := context.WithoutCancel(c.Request().Context())
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if err := state.Chat.Submit(ctx, text); err != nil {
			logger.Warn("chat submit failed", "error", err)
		}
	}()
	return home(c)
}

// Approve resolves the pending approval.
// POST /approval/approve
func (s *FrontendService) Approve(c echo.Context) error {
	return s.resolve(c, true)
}

// Reject resolves the pending approval.
// POST /approval/reject
func (s *FrontendService) Reject(c echo.Context) error {
	return s.resolve(c, false)
}

func (s *FrontendService) resolve(c echo.Context, approved bool) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	if err := state.Approval.Resolve(c.Request().Context(), approved); err != nil {
		observability.LoggerFrom(c.Request().Context()).Warn("approval resolve failed", "approved", approved, "error", err)
	}
	return home(c)
}

// SaveField stores one edited draft field.
// POST /approval/field
func (s *FrontendService) SaveField(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	if err := state.Approval.UpdateField(c.FormValue("key"), c.FormValue("value")); err != nil {
		if errors.IsCode(err, errors.ErrCodeInvalidArgument) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		observability.LoggerFrom(c.Request().Context()).Warn("draft update ignored", "error", err)
	}
	return home(c)
}

// SetEditing toggles the form between editing and review.
// POST /approval/editing
func (s *FrontendService) SetEditing(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	editing, err := strconv.ParseBool(c.FormValue("editing"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "editing must be true or false")
	}
	if err := state.Approval.SetEditing(editing); err != nil {
		observability.LoggerFrom(c.Request().Context()).Warn("editing toggle ignored", "error", err)
	}
	return home(c)
}

// StartLink sends the browser to the provider's consent screen.
// POST /link
func (s *FrontendService) StartLink(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	authURL, err := state.Link.Initiate(c.Request().Context())
	if err != nil {
		return home(c)
	}
	return c.Redirect(http.StatusSeeOther, authURL)
}

// NewChat starts a new conversation under a fresh session id.
// POST /new
func (s *FrontendService) NewChat(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	oldID := state.ID()
	newID := s.Registry.Reset(state)
	s.Limiter.Forget(oldID)
	if err := s.setCookie(c, newID); err != nil {
		return err
	}
	return home(c)
}

// ClearHistory deletes the stored history of the session.
// POST /history/clear
func (s *FrontendService) ClearHistory(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	if err := state.Chat.ClearHistory(c.Request().Context()); err != nil {
		observability.LoggerFrom(c.Request().Context()).Warn("clear history failed", "error", err)
	}
	return home(c)
}

// Export downloads the transcript.
// GET /export?format=txt|md|json|yaml
func (s *FrontendService) Export(c echo.Context) error {
	state, err := s.session(c)
	if err != nil {
		return err
	}
	exporter, err := export.NewExporter(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	now := time.Now()
	doc := &export.Document{
		SessionID:  state.ID(),
		ExportedAt: now,
		Messages:   state.Transcript.Messages(),
	}
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, exporter.ContentType())
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.FileName(exporter, now)+`"`)
	res.WriteHeader(http.StatusOK)
	return exporter.Export(doc, res)
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status   string                         `json:"status"`
	Version  string                         `json:"version"`
	Sessions int                            `json:"sessions"`
	Metrics  *observability.MetricsSnapshot `json:"metrics"`
}

// Healthz reports liveness and request counters.
// GET /healthz
func (s *FrontendService) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.Profile.Version,
		Sessions: s.Registry.Len(),
		Metrics:  s.Metrics.Snapshot(),
	})
}
