package profile

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the front end server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Version is the current version of server
	Version string

	// BackendURL is the root of the AI backend; requests go to BackendURL + "/api".
	BackendURL string
	// UserID is sent as user_id on every chat request.
	UserID string
	// LinkService is the service name expected in the OAuth redirect (service=<name>).
	LinkService string
	// Secret signs the session cookie.
	Secret string

	RequestTimeout time.Duration // ELVA_REQUEST_TIMEOUT (default: 30s)
	MaxInflight    int64         // ELVA_MAX_INFLIGHT (default: 16)
	SessionIdleTTL time.Duration // ELVA_SESSION_IDLE_TTL (default: 24h)
	ChatRateLimit  float64       // ELVA_CHAT_RATE_LIMIT, sends per second per session (default: 1)
	ChatBurst      int           // ELVA_CHAT_BURST (default: 5)
	LogFormat      string        // ELVA_LOG_FORMAT: text or json (default: text)
}

const (
	defaultUserID         = "default_user"
	defaultLinkService    = "gmail"
	defaultRequestTimeout = 30 * time.Second
	defaultMaxInflight    = 16
	defaultSessionIdleTTL = 24 * time.Hour
	defaultChatRateLimit  = 1
	defaultChatBurst      = 5
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// FromEnv fills values that are only taken from the environment.
// REACT_APP_BACKEND_URL is honored so an existing front end .env keeps working.
func (p *Profile) FromEnv() {
	if p.Secret == "" {
		p.Secret = os.Getenv("ELVA_SECRET")
	}
	if p.BackendURL == "" {
		p.BackendURL = os.Getenv("REACT_APP_BACKEND_URL")
	}
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	p.BackendURL = strings.TrimRight(strings.TrimSpace(p.BackendURL), "/")
	if p.BackendURL == "" {
		return errors.New("backend url is required")
	}
	u, err := url.Parse(p.BackendURL)
	if err != nil {
		return errors.Wrapf(err, "invalid backend url %s", p.BackendURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("backend url %s must be http or https", p.BackendURL)
	}

	if p.UserID == "" {
		p.UserID = defaultUserID
	}
	if p.LinkService == "" {
		p.LinkService = defaultLinkService
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = defaultRequestTimeout
	}
	if p.MaxInflight <= 0 {
		p.MaxInflight = defaultMaxInflight
	}
	if p.SessionIdleTTL <= 0 {
		p.SessionIdleTTL = defaultSessionIdleTTL
	}
	if p.ChatRateLimit <= 0 {
		p.ChatRateLimit = defaultChatRateLimit
	}
	if p.ChatBurst <= 0 {
		p.ChatBurst = defaultChatBurst
	}
	if p.LogFormat != "json" {
		p.LogFormat = "text"
	}

	if p.Secret == "" {
		if p.Mode == "prod" {
			return errors.New("secret is required in prod mode")
		}
		secret, err := randomSecret()
		if err != nil {
			return errors.Wrap(err, "failed to generate session secret")
		}
		p.Secret = secret
		slog.Warn("no secret configured, using an ephemeral one; sessions will not survive a restart")
	}

	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
