// ABOUTME: HTTP middleware extracting the bearer token into a request principal
// ABOUTME: Rejects missing or invalid tokens with the API's JSON failure envelope

package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// extractBearerToken pulls a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Middleware returns an HTTP middleware that verifies the bearer token and
// attaches the resulting Principal to the request context.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			principal := &Principal{UserID: userID}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
