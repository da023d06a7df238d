package frontend

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hrygo/elva/internal/errors"
	"github.com/hrygo/elva/plugin/ai/approval"
	"github.com/hrygo/elva/plugin/ai/genui"
	"github.com/hrygo/elva/plugin/ai/link"
	"github.com/hrygo/elva/plugin/ai/session"
	"github.com/hrygo/elva/plugin/ai/transcript"
	"github.com/hrygo/elva/server/internal/observability"
)

// newMarkdown renders assistant text. Raw HTML in messages is dropped.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
}

func (s *FrontendService) renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &buf); err != nil {
		slog.Warn("failed to render markdown", "error", err)
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

func (s *FrontendService) funcMap() template.FuncMap {
	return template.FuncMap{
		"markdown": s.renderMarkdown,
		"clock": func(t time.Time) string {
			return t.Format("15:04")
		},
	}
}

// pageData is the model of index.html.
type pageData struct {
	SessionID  string
	Version    string
	Messages   []transcript.Message
	Components []genui.UIComponent
	// Busy makes the page poll while a send, probe or resolution is running.
	Busy bool
}

func viewOf(state *session.State) genui.View {
	return genui.View{
		Approval:   state.Approval.Snapshot(),
		Link:       state.Link.Status(),
		Profile:    state.Link.Profile(),
		Automation: state.Chat.AutomationStatus(),
	}
}

func (s *FrontendService) pageData(state *session.State) *pageData {
	v := viewOf(state)
	return &pageData{
		SessionID:  state.ID(),
		Version:    s.Profile.Version,
		Messages:   state.Transcript.Messages(),
		Components: genui.Generate(v),
		Busy: state.Chat.InFlight() > 0 ||
			v.Link.State == link.StateChecking ||
			v.Approval.State == approval.StateResolving,
	}
}

func (s *FrontendService) renderPage(c echo.Context, name string, data any) error {
	tmpl, ok := s.pages[name]
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "template not found: "+name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		observability.LoggerFrom(c.Request().Context()).Error("failed to render page", "page", name, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render page")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// requestContext attaches a RequestContext to the request and records it in the metrics.
func (s *FrontendService) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		route := req.Method + " " + c.Path()
		rc := observability.NewRequestContextWithID(slog.Default(), req.Header.Get(echo.HeaderXRequestID), route)
		c.Response().Header().Set(echo.HeaderXRequestID, rc.RequestID)
		c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), rc)))

		err := next(c)

		status := c.Response().Status
		if err != nil {
			status = http.StatusInternalServerError
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		s.Metrics.RecordRequest(route, status, rc.Duration())
		rc.Debug("request served",
			slog.Int(observability.LogFieldStatus, status),
			slog.Int64(observability.LogFieldDuration, rc.DurationMs()),
		)
		return err
	}
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	switch errors.GetCodeFromError(err, "") {
	case errors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeNoPendingApproval:
		return http.StatusConflict
	case errors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case errors.ErrCodeBackendUnavailable, errors.ErrCodeBackendRejected:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeContextCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func errorJSON(c echo.Context, err error) error {
	code := errors.GetCodeFromError(err, "INTERNAL")
	msg := err.Error()
	var aiErr *errors.AIError
	if errors.As(err, &aiErr) {
		msg = aiErr.Message
	}
	return c.JSON(statusFor(err), ErrorResponse{Code: string(code), Error: msg})
}
