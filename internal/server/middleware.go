package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/matzehuels/crateintel/pkg/auth"
)

type contextKey string

const apiKeyContextKey contextKey = "apiKey"

// callerKey extracts the authenticated key record from a request
// context. Only valid inside the authenticated route group.
func callerKey(req *http.Request) *auth.APIKey {
	key, _ := req.Context().Value(apiKeyContextKey).(*auth.APIKey)
	return key
}

// rawKey pulls the credential from the X-API-Key header, a bearer
// token, or the api_key query parameter, in that order.
func rawKey(req *http.Request) string {
	if key := req.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if bearer := req.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
		return strings.TrimPrefix(bearer, "Bearer ")
	}
	return req.URL.Query().Get("api_key")
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key, err := s.deps.Auth.Authenticate(req.Context(), rawKey(req))
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(req.Context(), apiKeyContextKey, key)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// rateLimit consumes one window slot and records the billed call. The
// window state goes on the response headers either way.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key := callerKey(req)
		decision, err := s.deps.Auth.CheckAndConsume(req.Context(), key)
		setRateHeaders(w, decision)
		if err != nil {
			writeError(w, err)
			return
		}
		if s.deps.Usage != nil {
			s.deps.Usage.Record(key.Key)
		}
		next.ServeHTTP(w, req)
	})
}
