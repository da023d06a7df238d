package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/elva/internal/profile"
	"github.com/hrygo/elva/plugin/ai/cache"
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/router"
	"github.com/hrygo/elva/plugin/ai/session"
	"github.com/hrygo/elva/server/internal/observability"
	"github.com/hrygo/elva/server/router/frontend"
)

const profileCacheTTL = 10 * time.Minute

type Server struct {
	Profile *profile.Profile
	Gateway gateway.Service

	echoServer *echo.Echo
	registry   *session.Registry
	frontend   *frontend.FrontendService
	cleanupJob *session.SessionCleanupJob
}

// NewServer creates a server talking to the backend configured in the profile.
func NewServer(ctx context.Context, profile *profile.Profile) (*Server, error) {
	gw := gateway.NewClient(gateway.Config{
		BaseURL:     profile.BackendURL,
		Timeout:     profile.RequestTimeout,
		MaxInflight: profile.MaxInflight,
	})
	return NewServerWithGateway(ctx, profile, gw)
}

// NewServerWithGateway creates a server on top of the given backend service.
func NewServerWithGateway(_ context.Context, profile *profile.Profile, gw gateway.Service) (*Server, error) {
	s := &Server{
		Profile: profile,
		Gateway: gw,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.BodyLimit("1M"))
	s.echoServer = echoServer

	s.registry = session.NewRegistry(session.Deps{
		Gateway:     gw,
		UserID:      profile.UserID,
		LinkService: profile.LinkService,
		Automations: router.NewDefaultAutomationClassifier(),
		Keywords:    router.NewDefaultKeywordMatcher(),
		Profiles:    cache.NewLRU[*gateway.Profile](1024, profileCacheTTL),
	})
	s.cleanupJob = session.NewSessionCleanupJob(s.registry, session.CleanupConfig{
		IdleTTL: profile.SessionIdleTTL,
	})

	frontendService, err := frontend.NewFrontendService(profile, s.registry, observability.NewMetrics())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create frontend service")
	}
	frontendService.Register(echoServer)
	s.frontend = frontendService

	return s, nil
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.echoServer.Listener = listener

	s.cleanupJob.Start(ctx)

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	slog.Info("elva server started", "address", listener.Addr().String(), "backend", s.Profile.BackendURL, "mode", s.Profile.Mode)
	return nil
}

// Shutdown stops accepting requests and waits for background sends.
func (s *Server) Shutdown(ctx context.Context) {
	s.cleanupJob.Stop()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.frontend.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown deadline reached with chat sends in flight")
	}
	slog.Info("elva server stopped")
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if addr := s.echoServer.ListenerAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Handler exposes the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Registry returns the session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}
