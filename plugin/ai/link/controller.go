package link

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	aierrors "github.com/hrygo/elva/internal/errors"
	"github.com/hrygo/elva/plugin/ai/cache"
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/transcript"
)

// Transcript id prefixes.
const (
	DebugPrefix   = "gmail_debug_"
	SuccessPrefix = "gmail_auth_success_"
	ErrorPrefix   = "gmail_auth_error_"
)

// SuccessText is shown once the account is linked.
const SuccessText = "Gmail connected successfully ✅"

const (
	initiateFailedText = "⚠️ Could not start Gmail authentication. Please try again."
	profileTTL         = 10 * time.Minute
)

// Config wires a Controller.
type Config struct {
	Gateway gateway.Service
	Store   *transcript.Store
	// SessionID returns the current session id at call time.
	SessionID func() string
	// Service is the redirect service name to accept, "gmail" by default.
	Service string
	// Profiles caches linked profiles by session. Optional.
	Profiles cache.Cache[*gateway.Profile]
}

// Controller owns the link status of one session.
type Controller struct {
	gw        gateway.Service
	store     *transcript.Store
	sessionID func() string
	service   string
	profiles  cache.Cache[*gateway.Profile]

	mu      sync.Mutex
	status  Status
	probed  bool
	profile *gateway.Profile
}

// NewController creates a controller in the Unchecked state.
func NewController(cfg Config) *Controller {
	if cfg.Service == "" {
		cfg.Service = "gmail"
	}
	return &Controller{
		gw:        cfg.Gateway,
		store:     cfg.Store,
		sessionID: cfg.SessionID,
		service:   cfg.Service,
		profiles:  cfg.Profiles,
	}
}

// Status returns a copy of the current link status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Linked reports whether the last probe found an authenticated account.
func (c *Controller) Linked() bool {
	return c.Status().Authenticated
}

// Profile returns the last fetched linked profile, or nil.
func (c *Controller) Profile() *gateway.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Probe refreshes the link status. Loading is set only for the first probe.
// A diagnostic banner is appended at most once per transcript when the
// backend reports a problem or cannot be reached.
func (c *Controller) Probe(ctx context.Context) (Status, error) {
	c.mu.Lock()
	c.status.Loading = !c.probed
	if c.status.State != StateLinkedPendingRedirect {
		c.status.State = StateChecking
	}
	c.mu.Unlock()

	sessionID := c.sessionID()
	resp, err := c.gw.LinkStatus(ctx, sessionID)

	c.mu.Lock()
	c.probed = true
	if err != nil {
		c.status = Status{
			State:     StateError,
			Error:     err.Error(),
			DebugInfo: &DebugInfo{SessionID: sessionID, Transport: string(aierrors.GetCodeFromError(err, aierrors.ErrCodeBackendUnavailable))},
		}
	} else {
		c.status = Status{
			State:                 StateOf(resp),
			Authenticated:         resp.Authenticated,
			CredentialsConfigured: resp.CredentialsConfigured,
			Error:                 resp.Error,
			DebugInfo: &DebugInfo{
				Success:      resp.Success,
				RequiresAuth: resp.RequiresAuth,
				Scopes:       append([]string(nil), resp.Scopes...),
				Service:      resp.Service,
				SessionID:    resp.SessionID,
			},
		}
	}
	status := c.status
	c.mu.Unlock()

	logger := slog.With("session_id", sessionID, "link_state", status.State.String())
	if err != nil {
		logger.Warn("link status probe failed", "error", err)
		c.appendDiagnostics(unreachableText(err, sessionID))
		return status, err
	}
	logger.Debug("link status probed", "authenticated", resp.Authenticated)
	if needsDiagnostics(resp) {
		c.appendDiagnostics(diagnosticsText(resp, sessionID))
	}
	return status, nil
}

func (c *Controller) appendDiagnostics(text string) {
	msg := transcript.SystemMessage(text)
	msg.ID = transcript.NewID(DebugPrefix)
	c.store.AppendUnlessPrefix(DebugPrefix, msg)
}

// HandleRedirect applies an OAuth redirect result. Any request carrying
// the auth parameter is reported handled so the caller drops the parameters.
func (c *Controller) HandleRedirect(ctx context.Context, query url.Values) bool {
	auth := query.Get("auth")
	if auth == "" {
		return false
	}

	switch {
	case auth == "success" && query.Get("service") == c.service:
		c.handleSuccess(ctx)
	case auth == "error":
		c.handleFailure(ctx, query.Get("message"), query.Get("details"))
	default:
		slog.Info("ignoring oauth redirect",
			"session_id", c.sessionID(),
			"auth", auth,
			"service", query.Get("service"),
		)
	}
	return true
}

func (c *Controller) handleSuccess(ctx context.Context) {
	_, _ = c.Probe(ctx)

	msg := transcript.AssistantMessage(transcript.KindLinkSuccess, SuccessText)
	msg.ID = transcript.NewID(SuccessPrefix)
	msg.Profile = c.fetchProfile(ctx)
	c.store.Append(msg)
}

func (c *Controller) handleFailure(ctx context.Context, code, details string) {
	_, _ = c.Probe(ctx)

	sessionID := c.sessionID()
	failure := Classify(code, details)
	slog.Warn("oauth link failed", "session_id", sessionID, "code", code, "debug", failure.Debug)

	msg := transcript.AssistantMessage(transcript.KindLinkError, failure.Text(sessionID))
	msg.ID = transcript.NewID(ErrorPrefix)
	c.store.Append(msg)
}

// fetchProfile returns the linked profile, or nil when it cannot be fetched.
func (c *Controller) fetchProfile(ctx context.Context) *gateway.Profile {
	sessionID := c.sessionID()
	key := sessionID + "_profile"
	if c.profiles != nil {
		if p, ok := c.profiles.Get(key); ok {
			c.setProfile(p)
			return p
		}
	}

	resp, err := c.gw.LinkedProfile(ctx, sessionID)
	if err != nil {
		slog.Warn("linked profile fetch failed", "session_id", sessionID, "error", err)
		return nil
	}
	if !resp.Success || resp.Profile == nil {
		return nil
	}
	if c.profiles != nil {
		c.profiles.Set(key, resp.Profile, profileTTL)
	}
	c.setProfile(resp.Profile)
	return resp.Profile
}

func (c *Controller) setProfile(p *gateway.Profile) {
	c.mu.Lock()
	c.profile = p
	c.mu.Unlock()
}

// Initiate asks the backend for an authorization URL and tags its state
// parameter with the session id. The caller navigates the browser to the
// returned URL. On failure the reason is appended to the transcript.
func (c *Controller) Initiate(ctx context.Context) (string, error) {
	sessionID := c.sessionID()
	resp, err := c.gw.StartLink(ctx, sessionID)
	if err != nil {
		slog.Warn("link initiation failed", "session_id", sessionID, "error", err)
		c.store.Append(transcript.SystemMessage(initiateFailedText))
		return "", err
	}
	if !resp.Success || resp.AuthURL == "" {
		text := resp.Message
		if text == "" {
			text = initiateFailedText
		}
		c.store.Append(transcript.SystemMessage(text))
		return "", aierrors.Wrap(nil, aierrors.ErrCodeBackendRejected, "authorization url unavailable").WithContext("message", resp.Message)
	}

	authURL, err := withSessionState(resp.AuthURL, sessionID)
	if err != nil {
		c.store.Append(transcript.SystemMessage(initiateFailedText))
		return "", aierrors.Wrap(err, aierrors.ErrCodeBackendRejected, "malformed authorization url")
	}

	c.mu.Lock()
	c.status.State = StateLinkedPendingRedirect
	c.mu.Unlock()
	slog.Info("link initiated", "session_id", sessionID)
	return authURL, nil
}

// withSessionState prefixes the URL's state parameter with the session id.
func withSessionState(raw, sessionID string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	state := sessionID
	if existing := q.Get("state"); existing != "" {
		state = sessionID + "_" + existing
	}
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
