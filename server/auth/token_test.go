package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestSessionToken_RoundTrip(t *testing.T) {
	token, err := GenerateSessionToken("session_1_abc", secret, time.Now().Add(time.Hour))
	require.NoError(t, err)

	id, err := ParseSessionToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "session_1_abc", id)
}

func TestSessionToken_Rejects(t *testing.T) {
	t.Run("WrongSecret", func(t *testing.T) {
		token, err := GenerateSessionToken("session_1_abc", secret, time.Time{})
		require.NoError(t, err)
		_, err = ParseSessionToken(token, []byte("other"))
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := GenerateSessionToken("session_1_abc", secret, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		_, err = ParseSessionToken(token, secret)
		assert.Error(t, err)
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &jwt.RegisteredClaims{Issuer: Issuer, Subject: "session_1_abc"})
		token.Header["kid"] = KeyID
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = ParseSessionToken(signed, secret)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ParseSessionToken("not-a-token", secret)
		assert.Error(t, err)
	})
}

func TestSessionIDFromRequest(t *testing.T) {
	cookie, err := SessionCookie("session_1_abc", secret, time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, SessionCookieName, cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := SessionIDFromRequest(req, secret)
	assert.False(t, ok)

	req.AddCookie(cookie)
	id, ok := SessionIDFromRequest(req, secret)
	require.True(t, ok)
	assert.Equal(t, "session_1_abc", id)
}
