package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-list-backend/internal/identity"
)

var testSecret = []byte("test-secret")

func TestGenerateParseToken(t *testing.T) {
	tok, err := GenerateToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	p, err := ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, identity.Principal("alice"), p)
}

func TestGenerateToken_RequiresPrincipal(t *testing.T) {
	_, err := GenerateToken(testSecret, " ", time.Hour)
	assert.Error(t, err)
}

func TestParseToken_Rejects(t *testing.T) {
	good, err := GenerateToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testSecret)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject: "alice",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]struct {
		secret []byte
		token  string
	}{
		"wrong secret": {[]byte("other"), good},
		"expired":      {testSecret, expired},
		"no subject":   {testSecret, noSubject},
		"alg none":     {testSecret, unsigned},
		"garbage":      {testSecret, "not-a-jwt"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(tc.secret, tc.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func whoami(t *testing.T, m Middleware, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	m.Wrap(WhoAmIHandler())(rec, req)
	return rec
}

func TestMiddleware_BearerToken(t *testing.T) {
	m := New(testSecret, false)
	tok, err := GenerateToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	rec := whoami(t, m, "Bearer "+tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "alice", body["principal"])
	assert.Equal(t, false, body["anonymous"])
}

func TestMiddleware_MissingToken(t *testing.T) {
	rec := whoami(t, New(testSecret, false), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing token")
}

func TestMiddleware_AnonymousAllowed(t *testing.T) {
	rec := whoami(t, New(testSecret, true), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, string(identity.Anonymous), body["principal"])
	assert.Equal(t, true, body["anonymous"])
}

func TestMiddleware_InvalidTokenNotDowngradedToAnonymous(t *testing.T) {
	m := New(testSecret, true)

	rec := whoami(t, m, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = whoami(t, m, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
