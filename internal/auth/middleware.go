package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-retail/backoffice/internal/platform/httpx"
	"github.com/meridian-retail/backoffice/internal/shared"
)

// Middleware resolves the bearer token and injects the actor into context.
// Requests without a valid token are rejected; mount it on protected
// subtrees only.
func Middleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			actor, err := service.Resolve(r.Context(), token)
			if err != nil {
				if err != ErrTokenInvalid {
					logger.Error("resolve token", slog.Any("error", err))
				}
				httpx.ProblemCode(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized", "missing or invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireRole gates a subtree to one role. Admin always passes.
func RequireRole(role shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.ProblemCode(w, http.StatusUnauthorized, "Unauthorized", "Unauthorized", "authentication required")
				return
			}
			if !actor.Is(role) {
				httpx.ProblemCode(w, http.StatusForbidden, "Forbidden", "Forbidden", "role "+string(role)+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
