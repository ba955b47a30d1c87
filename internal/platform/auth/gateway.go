// Package auth extracts caller identity from the API gateway and verifies
// signed webhook requests. The gateway terminates end-user authentication and
// forwards the resolved identity as trusted headers.
package auth

import (
	"net/http"
	"strings"

	"github.com/printbound/api/internal/platform/httpx"
	"github.com/printbound/api/internal/platform/requestctx"
)

// Trusted headers injected by the API gateway.
const (
	HeaderTenantID = "X-Tenant-Id"
	HeaderUserID   = "X-User-Id"
	HeaderStaff    = "X-Staff"
)

// GatewayIdentity reads the gateway identity headers and stores the actor on
// the request context. Requests without a tenant are rejected.
func GatewayIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tenantID := strings.TrimSpace(r.Header.Get(HeaderTenantID))
			if tenantID == "" {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "tenant identity missing", http.StatusUnauthorized))
				return
			}

			actor := requestctx.Actor{
				TenantID: tenantID,
				UserID:   strings.TrimSpace(r.Header.Get(HeaderUserID)),
				Staff:    parseStaffHeader(r.Header.Get(HeaderStaff)),
			}

			next.ServeHTTP(w, r.WithContext(requestctx.WithActor(ctx, actor)))
		})
	}
}

// RequireUser rejects requests whose actor carries no user identity.
func RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, ok := requestctx.ActorFromContext(ctx)
			if !ok || actor.UserID == "" {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "user identity required", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff rejects requests from actors without the staff flag.
func RequireStaff() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor, ok := requestctx.ActorFromContext(ctx)
			if !ok {
				httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "identity required", http.StatusUnauthorized))
				return
			}
			if !actor.Staff {
				httpx.WriteError(ctx, w, httpx.NewError("forbidden", "staff access required", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseStaffHeader(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
