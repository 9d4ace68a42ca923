package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sha1n/mcp-manual-server/internal/config"
)

// Realm is announced to clients that fail basic authentication.
const Realm = "manual-mcp"

// excludedPaths bypass authentication
var excludedPaths = map[string]bool{
	"/health": true,
}

// Middleware wraps an HTTP handler.
type Middleware = func(http.Handler) http.Handler

// NewMiddleware creates an authentication middleware based on settings
func NewMiddleware(settings config.AuthSettings) (Middleware, error) {
	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		return withExclusions(requireCredentials(basicAuthorizer(settings.Basic), basicChallenge)), nil
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		return withExclusions(requireCredentials(apiKeyAuthorizer(settings.APIKeys), nil)), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// withExclusions skips authentication for excluded paths
func withExclusions(authMiddleware Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		authedHandler := authMiddleware(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			authedHandler.ServeHTTP(w, r)
		})
	}
}

// requireCredentials rejects requests the authorizer does not accept.
// challenge, when set, adds headers to the 401 response.
func requireCredentials(authorized func(*http.Request) bool, challenge func(http.ResponseWriter)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authorized(r) {
				slog.Debug("Rejected unauthenticated request", "path", r.URL.Path, "remote", r.RemoteAddr)
				if challenge != nil {
					challenge(w)
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func basicChallenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", Realm))
}

func basicAuthorizer(settings config.BasicAuthSettings) func(*http.Request) bool {
	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(settings.Username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(settings.Password)) == 1
		return ok && userMatch && passMatch
	}
}

func apiKeyAuthorizer(apiKeys []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		key := APIKey(r)
		if key == "" {
			return false
		}
		valid := false
		for _, validKey := range apiKeys {
			// no early exit
			if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
				valid = true
			}
		}
		return valid
	}
}

// APIKey returns the key from the X-API-Key header or a Bearer token.
func APIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
