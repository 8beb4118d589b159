// ABOUTME: Tests for JWT verification and the bearer token middleware
// ABOUTME: Covers token round-trips, expiry, bad headers and principal wiring

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	token, err := v.Generate("user-42", time.Hour)
	require.NoError(t, err)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestJWTVerifier_Expired(t *testing.T) {
	v := NewJWTVerifier(testSecret)

	token, err := v.Generate("user-42", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	token, err := NewJWTVerifier([]byte("other-secret")).Generate("user-42", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTVerifier(testSecret).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_Garbage(t *testing.T) {
	_, err := NewJWTVerifier(testSecret).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		token   string
		wantErr bool
	}{
		{"valid", "Bearer abc123", "abc123", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic abc123", "", true},
		{"empty token", "Bearer ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			if tt.wantErr {
				assert.NotEmpty(t, errMsg)
			} else {
				assert.Empty(t, errMsg)
				assert.Equal(t, tt.token, token)
			}
		})
	}
}

func TestMiddleware_AttachesPrincipal(t *testing.T) {
	v := NewJWTVerifier(testSecret)
	token, err := v.Generate("user-42", time.Hour)
	require.NoError(t, err)

	var got *Principal
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "user-42", got.UserID)
}

func TestMiddleware_RejectsMissingToken(t *testing.T) {
	handler := Middleware(NewJWTVerifier(testSecret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])
}

func TestMiddleware_RejectsBadToken(t *testing.T) {
	handler := Middleware(NewJWTVerifier(testSecret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFromContext_Absent(t *testing.T) {
	p := FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.Nil(t, p)
}
