// Package frontend serves the chat pages and the JSON API of a session.
package frontend

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"

	"github.com/hrygo/elva/internal/profile"
	"github.com/hrygo/elva/plugin/ai/session"
	"github.com/hrygo/elva/server/auth"
	"github.com/hrygo/elva/server/internal/observability"
	servermw "github.com/hrygo/elva/server/middleware"
)

//go:embed templates
var templatesFS embed.FS

// RateLimitedText is appended when a session sends faster than allowed.
const RateLimitedText = "⏳ You're sending messages too quickly. Please wait a moment and try again."

type FrontendService struct {
	Secret   []byte
	Profile  *profile.Profile
	Registry *session.Registry
	Metrics  *observability.Metrics
	Limiter  *servermw.RateLimiter

	markdown goldmark.Markdown
	pages    map[string]*template.Template

	// background tracks page sends that outlive their request.
	background sync.WaitGroup
}

func NewFrontendService(profile *profile.Profile, registry *session.Registry, metrics *observability.Metrics) (*FrontendService, error) {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	s := &FrontendService{
		Secret:   []byte(profile.Secret),
		Profile:  profile,
		Registry: registry,
		Metrics:  metrics,
		Limiter:  servermw.NewRateLimiter(profile.ChatRateLimit, profile.ChatBurst),
		markdown: newMarkdown(),
	}
	pages, err := parsePages(s.funcMap())
	if err != nil {
		return nil, err
	}
	s.pages = pages
	return s, nil
}

// Register registers the page and API routes with the given Echo instance.
func (s *FrontendService) Register(echoServer *echo.Echo) {
	echoServer.GET("/healthz", s.Healthz)

	pages := echoServer.Group("", s.requestContext)
	pages.GET("/", s.Index)
	pages.POST("/chat", s.SendChat)
	pages.POST("/approval/approve", s.Approve)
	pages.POST("/approval/reject", s.Reject)
	pages.POST("/approval/field", s.SaveField)
	pages.POST("/approval/editing", s.SetEditing)
	pages.POST("/link", s.StartLink)
	pages.POST("/new", s.NewChat)
	pages.POST("/history/clear", s.ClearHistory)
	pages.GET("/export", s.Export)

	api := echoServer.Group("/api/v1", s.requestContext, middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*"},
		AllowCredentials: true,
	}))
	api.GET("/state", s.GetState)
	api.POST("/chat", s.PostChat, servermw.Limit(s.Limiter, s.cookieSessionID, s.onRateLimited))
	api.POST("/approval", s.PostApproval)
	api.PATCH("/approval/draft", s.PatchDraft)
	api.POST("/link", s.PostLink)
	api.POST("/new", s.PostNew)
	api.DELETE("/history", s.DeleteHistory)
}

// Wait blocks until background sends have finished.
func (s *FrontendService) Wait() {
	s.background.Wait()
}

// parsePages builds a template for each page by combining layout.html with the page template.
func parsePages(funcs template.FuncMap) (map[string]*template.Template, error) {
	tmplFS, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, errors.Wrap(err, "failed to get templates subfs")
	}

	layoutBytes, err := fs.ReadFile(tmplFS, "layout.html")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read layout")
	}

	pageNames := []string{
		"index.html",
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		pageBytes, err := fs.ReadFile(tmplFS, name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", name)
		}

		tmpl, err := template.New("layout.html").Funcs(funcs).Parse(string(layoutBytes))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse layout for %s", name)
		}
		if _, err := tmpl.New(name).Parse(string(pageBytes)); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", name)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// session returns the state of the request, creating one when needed, and
// refreshes the cookie whenever the session id changed.
//
// A valid cookie always wins. The session id of an OAuth redirect is adopted
// only by a browser without one.
func (s *FrontendService) session(c echo.Context) (*session.State, error) {
	var state *session.State
	redirectID := c.QueryParam("session_id")
	fromRedirect := c.QueryParam("auth") != "" && session.ValidID(redirectID)
	cookieID, hasCookie := auth.SessionIDFromRequest(c.Request(), s.Secret)
	switch {
	case hasCookie:
		state = s.Registry.GetOrCreate(cookieID)
		if fromRedirect && redirectID != cookieID {
			observability.LoggerFrom(c.Request().Context()).Warn("oauth redirect names another session",
				"session_id", cookieID,
				"redirect_session_id", redirectID,
			)
		}
	case fromRedirect:
		state = s.Registry.GetOrCreate(redirectID)
	default:
		state = s.Registry.Create()
	}

	if rc, ok := observability.FromContext(c.Request().Context()); ok {
		rc.SessionID = state.ID()
	}
	if !hasCookie || cookieID != state.ID() {
		if err := s.setCookie(c, state.ID()); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func (s *FrontendService) setCookie(c echo.Context, sessionID string) error {
	cookie, err := auth.SessionCookie(sessionID, s.Secret, s.Profile.SessionIdleTTL, !s.Profile.IsDev())
	if err != nil {
		return err
	}
	c.SetCookie(cookie)
	return nil
}

func (s *FrontendService) cookieSessionID(c echo.Context) string {
	id, _ := auth.SessionIDFromRequest(c.Request(), s.Secret)
	return id
}

func (s *FrontendService) onRateLimited(c echo.Context) {
	s.Metrics.RecordRateLimited()
	observability.LoggerFrom(c.Request().Context()).Warn("chat rate limited")
}

// mount runs the first-visit sequence once per session id.
func (s *FrontendService) mount(ctx context.Context, state *session.State) {
	if state.BeginMount() {
		state.Chat.Mount(ctx)
	}
}
