// Package middleware guards the authenticated HTTP surface: access-token
// verification and policy checks.
package middleware

import (
	"net/http"
	"strings"

	"authgate/internal/policy"
	"authgate/internal/security"
	"authgate/internal/store"
)

// RequireAuth returns middleware that validates the Bearer access token and
// attaches the actor identity to the request context. Downstream code —
// including the persistence gateway's ownership conventions — reads the
// actor from there.
func RequireAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, "missing access token")
				return
			}
			subject, role, err := tokens.ValidateAccess(raw)
			if err != nil {
				unauthorized(w, "invalid access token")
				return
			}
			ctx := store.WithIdentity(r.Context(), store.Identity{Subject: subject, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAction returns a handler that admits the request only when the
// access policy allows the actor's role to perform action. Must run inside
// RequireAuth.
func RequireAction(eval *policy.Evaluator, action string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := store.IdentityFrom(r.Context())
		if !ok {
			unauthorized(w, "authentication required")
			return
		}
		allowed, err := eval.Allow(r.Context(), id.Role, action)
		if err != nil {
			http.Error(w, `{"error":{"code":"policy_error","message":"policy evaluation failed"}}`, http.StatusInternalServerError)
			return
		}
		if !allowed {
			http.Error(w, `{"error":{"code":"forbidden","message":"not allowed"}}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"` + msg + `"}}`))
}
