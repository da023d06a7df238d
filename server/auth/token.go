// Package auth signs and verifies the browser session cookie.
package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	// SessionCookieName is the cookie carrying the signed session id.
	SessionCookieName = "elva_session"
	// Issuer is the issuer of session tokens.
	Issuer = "elva"
	// KeyID is the key id of session tokens.
	KeyID = "v1"
)

// GenerateSessionToken signs a token whose subject is the session id.
func GenerateSessionToken(sessionID string, secret []byte, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = KeyID

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign session token")
	}
	return signed, nil
}

// ParseSessionToken verifies a token and returns its session id.
func ParseSessionToken(tokenString string, secret []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if kid, ok := t.Header["kid"].(string); !ok || kid != KeyID {
			return nil, errors.Errorf("unexpected kid: %v", t.Header["kid"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		return "", errors.Wrap(err, "invalid session token")
	}
	if claims.Subject == "" {
		return "", errors.New("session token has no subject")
	}
	return claims.Subject, nil
}

// SessionCookie builds the cookie for a session id.
func SessionCookie(sessionID string, secret []byte, ttl time.Duration, secure bool) (*http.Cookie, error) {
	expiresAt := time.Now().Add(ttl)
	token, err := GenerateSessionToken(sessionID, secret, expiresAt)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// SessionIDFromRequest returns the verified session id of the request cookie.
func SessionIDFromRequest(r *http.Request, secret []byte) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := ParseSessionToken(cookie.Value, secret)
	if err != nil {
		return "", false
	}
	return id, true
}
