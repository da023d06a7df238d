package link

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aierrors "github.com/hrygo/elva/internal/errors"
	"github.com/hrygo/elva/plugin/ai/cache"
	"github.com/hrygo/elva/plugin/ai/gateway"
	"github.com/hrygo/elva/plugin/ai/transcript"
)

func newTestController(gw gateway.Service) (*Controller, *transcript.Store) {
	store := transcript.NewStore()
	c := NewController(Config{
		Gateway:   gw,
		Store:     store,
		SessionID: func() string { return "session_1_abc" },
		Profiles:  cache.NewLRU[*gateway.Profile](16, time.Minute),
	})
	return c, store
}

func statusFunc(resp gateway.StatusResponse) func(context.Context, string) (*gateway.StatusResponse, error) {
	return func(context.Context, string) (*gateway.StatusResponse, error) {
		r := resp
		return &r, nil
	}
}

func TestController_ProbeStates(t *testing.T) {
	tests := []struct {
		name   string
		resp   gateway.StatusResponse
		state  State
		banner bool
	}{
		{"Linked", gateway.StatusResponse{Success: true, CredentialsConfigured: true, Authenticated: true}, StateLinked, false},
		{"Unlinked", gateway.StatusResponse{Success: true, CredentialsConfigured: true}, StateUnlinked, false},
		{"NotConfigured", gateway.StatusResponse{Success: true}, StateNotConfigured, true},
		{"ServiceError", gateway.StatusResponse{Success: false, CredentialsConfigured: true}, StateError, true},
		{"ErrorField", gateway.StatusResponse{Success: true, CredentialsConfigured: true, Authenticated: true, Error: "token expired"}, StateLinked, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := gateway.NewMockService()
			gw.LinkStatusFunc = statusFunc(tt.resp)
			c, store := newTestController(gw)

			status, err := c.Probe(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.state, status.State)
			assert.False(t, status.Loading)
			assert.Equal(t, tt.banner, store.HasPrefix(DebugPrefix))
		})
	}
}

func TestController_ProbeIsIdempotent(t *testing.T) {
	gw := gateway.NewMockService()
	gw.LinkStatusFunc = statusFunc(gateway.StatusResponse{Success: true})
	c, store := newTestController(gw)

	first, err := c.Probe(context.Background())
	require.NoError(t, err)
	second, err := c.Probe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Len(), "banner appended once")
}

func TestController_ProbeConcurrentBannerOnce(t *testing.T) {
	gw := gateway.NewMockService()
	gw.LinkStatusFunc = statusFunc(gateway.StatusResponse{Success: false})
	c, store := newTestController(gw)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Probe(context.Background())
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.Len())
}

func TestController_LoadingOnlyDuringFirstProbe(t *testing.T) {
	observed := make(chan bool, 2)
	gw := gateway.NewMockService()
	var c *Controller
	gw.LinkStatusFunc = func(context.Context, string) (*gateway.StatusResponse, error) {
		observed <- c.Status().Loading
		return &gateway.StatusResponse{Success: true, CredentialsConfigured: true}, nil
	}
	c, _ = newTestController(gw)

	_, _ = c.Probe(context.Background())
	_, _ = c.Probe(context.Background())
	assert.True(t, <-observed)
	assert.False(t, <-observed)
	assert.False(t, c.Status().Loading)
}

func TestController_ProbeTransportFailure(t *testing.T) {
	gw := gateway.NewMockService()
	gw.LinkStatusFunc = func(context.Context, string) (*gateway.StatusResponse, error) {
		return nil, aierrors.BackendUnavailable("status", errors.New("connection refused"))
	}
	c, store := newTestController(gw)

	status, err := c.Probe(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, status.State)
	assert.False(t, status.CredentialsConfigured)
	assert.NotEmpty(t, status.Error)
	require.True(t, store.HasPrefix(DebugPrefix))
	assert.Contains(t, store.Messages()[0].Text, "Service Unreachable")
}

func TestDiagnosticsText(t *testing.T) {
	text := diagnosticsText(&gateway.StatusResponse{Success: true}, "sid")
	assert.True(t, strings.HasPrefix(text, "🔧 **Gmail Connection Debug**\n\n📋 **Status**: Service Running\n"))
	assert.Contains(t, text, "🔑 **Credentials**: Missing ❌\n")
	assert.Contains(t, text, "🆔 **Session ID**: sid\n")
	assert.True(t, strings.HasSuffix(text, "This is required for OAuth2 authentication to work properly."))

	text = diagnosticsText(&gateway.StatusResponse{CredentialsConfigured: true, Error: "boom"}, "sid")
	assert.Contains(t, text, "📋 **Status**: Service Error\n")
	assert.Contains(t, text, "❌ **Error**: boom\n\n")
	assert.True(t, strings.HasSuffix(text, `💡 Click "Connect Gmail" above to authenticate with your Google account.`))
}

func TestController_HandleRedirectSuccess(t *testing.T) {
	gw := gateway.NewMockService()
	gw.LinkStatusFunc = statusFunc(gateway.StatusResponse{Success: true, CredentialsConfigured: true, Authenticated: true})
	gw.LinkedProfileFunc = func(context.Context, string) (*gateway.ProfileResponse, error) {
		return &gateway.ProfileResponse{Success: true, Profile: &gateway.Profile{Name: "Ada", Email: "ada@x.com", MessagesTotal: 12}}, nil
	}
	c, store := newTestController(gw)

	handled := c.HandleRedirect(context.Background(), url.Values{
		"auth": {"success"}, "service": {"gmail"}, "session_id": {"session_1_abc"},
	})
	require.True(t, handled)

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.KindLinkSuccess, msgs[0].Kind)
	assert.Equal(t, SuccessText, msgs[0].Text)
	assert.True(t, strings.HasPrefix(msgs[0].ID, SuccessPrefix))
	require.NotNil(t, msgs[0].Profile)
	assert.Equal(t, "ada@x.com", msgs[0].Profile.Email)
	assert.Equal(t, StateLinked, c.Status().State)
	assert.Equal(t, "Ada", c.Profile().Name)

	// The profile is cached for the session.
	c.HandleRedirect(context.Background(), url.Values{"auth": {"success"}, "service": {"gmail"}})
	assert.Equal(t, 1, gw.Calls("LinkedProfile"))
}

func TestController_HandleRedirectSuccessWithoutProfile(t *testing.T) {
	gw := gateway.NewMockService()
	gw.LinkedProfileFunc = func(context.Context, string) (*gateway.ProfileResponse, error) {
		return nil, errors.New("boom")
	}
	c, store := newTestController(gw)

	require.True(t, c.HandleRedirect(context.Background(), url.Values{"auth": {"success"}, "service": {"gmail"}}))
	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.KindLinkSuccess, msgs[0].Kind)
	assert.Nil(t, msgs[0].Profile)
}

func TestController_HandleRedirectAccessDenied(t *testing.T) {
	gw := gateway.NewMockService()
	c, store := newTestController(gw)

	require.True(t, c.HandleRedirect(context.Background(), url.Values{
		"auth": {"error"}, "message": {"access_denied"}, "details": {"ignored"},
	}))
	assert.Equal(t, 1, gw.Calls("LinkStatus"))

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, transcript.KindLinkError, msgs[0].Kind)
	assert.Contains(t, msgs[0].Text, "Gmail authentication was cancelled. You can try connecting again anytime.")
	assert.Contains(t, msgs[0].Text, "🔧 **Debug Info**: User denied access during OAuth2 flow.")
	assert.Contains(t, msgs[0].Text, "🆔 **Session**: session_1_abc")
}

func TestController_HandleRedirectIgnored(t *testing.T) {
	c, store := newTestController(gateway.NewMockService())
	assert.False(t, c.HandleRedirect(context.Background(), url.Values{}))
	assert.True(t, c.HandleRedirect(context.Background(), url.Values{"auth": {"success"}, "service": {"outlook"}}))
	assert.Equal(t, 0, store.Len())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code, details string
		user, debug   string
	}{
		{"access_denied", "x", "Gmail authentication was cancelled. You can try connecting again anytime.", "User denied access during OAuth2 flow."},
		{"no_code", "", "Gmail authentication failed - no authorization received.", "OAuth2 callback did not receive authorization code."},
		{"auth_failed", "", "Gmail authentication failed during token exchange.", "Token exchange with Google failed."},
		{"auth_failed", "invalid_grant", "Gmail authentication failed during token exchange.", "invalid_grant"},
		{"server_error", "", "Gmail authentication failed due to a server error.", "Backend server error during OAuth2 processing."},
		{"weird", "", "Gmail authentication failed. Please try again.", "Unknown error: weird"},
		{"invalid_scope", "scope rejected by provider", "Gmail authentication failed. Please try again.", "Unknown error: invalid_scope (scope rejected by provider)"},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.details, func(t *testing.T) {
			f := Classify(tt.code, tt.details)
			assert.Equal(t, tt.user, f.User)
			assert.Equal(t, tt.debug, f.Debug)
			assert.Contains(t, f.Text("session_1_abc"), tt.debug)
		})
	}
}

func TestController_Initiate(t *testing.T) {
	t.Run("InjectsSessionIntoExistingState", func(t *testing.T) {
		gw := gateway.NewMockService()
		gw.StartLinkFunc = func(context.Context, string) (*gateway.AuthURLResponse, error) {
			return &gateway.AuthURLResponse{Success: true, AuthURL: "https://accounts.example.com/o/oauth2/auth?client_id=c&state=xyz"}, nil
		}
		c, _ := newTestController(gw)

		raw, err := c.Initiate(context.Background())
		require.NoError(t, err)
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "session_1_abc_xyz", u.Query().Get("state"))
		assert.Equal(t, "c", u.Query().Get("client_id"))
		assert.Equal(t, StateLinkedPendingRedirect, c.Status().State)
	})

	t.Run("SessionOnlyWithoutState", func(t *testing.T) {
		gw := gateway.NewMockService()
		gw.StartLinkFunc = func(context.Context, string) (*gateway.AuthURLResponse, error) {
			return &gateway.AuthURLResponse{Success: true, AuthURL: "https://accounts.example.com/auth"}, nil
		}
		c, _ := newTestController(gw)

		raw, err := c.Initiate(context.Background())
		require.NoError(t, err)
		u, _ := url.Parse(raw)
		assert.Equal(t, "session_1_abc", u.Query().Get("state"))
	})

	t.Run("BackendMessageAppendedVerbatim", func(t *testing.T) {
		gw := gateway.NewMockService()
		gw.StartLinkFunc = func(context.Context, string) (*gateway.AuthURLResponse, error) {
			return &gateway.AuthURLResponse{Success: false, Message: "credentials.json missing"}, nil
		}
		c, store := newTestController(gw)

		_, err := c.Initiate(context.Background())
		assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeBackendRejected))
		msgs := store.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "credentials.json missing", msgs[0].Text)
		assert.Equal(t, StateUnchecked, c.Status().State)
	})
}
