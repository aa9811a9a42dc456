package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"cohort/internal/identity"
)

type contextKey struct{}

// ClaimsFromContext returns the verified claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(contextKey{}).(Claims)
	return c, ok
}

// Middleware enforces a bearer token signed by tokens and, when roles are
// given, restricts access to those roles. Admins always pass the role check.
func Middleware(tokens *Tokens, roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := make(map[identity.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				deny(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(authz[len("bearer "):]))
			if err != nil {
				deny(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if len(allowed) > 0 && !allowed[claims.Role] && claims.Role != identity.RoleAdmin {
				deny(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
