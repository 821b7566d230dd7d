package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/shoplyft/backend/api/responses"
	pkgerrors "github.com/shoplyft/backend/pkg/errors"
	"github.com/shoplyft/backend/pkg/logger"
)

const (
	userIDHeader = "X-User-Id"
	roleHeader   = "X-Actor-Role"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

// Actor binds the authenticated identity from the gateway headers onto
// the request context. Requests without a valid user id are rejected;
// authentication itself happens upstream.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(userIDHeader)
			userID, err := uuid.Parse(raw)
			if err != nil || userID == uuid.Nil {
				responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing or invalid user identity"))
				return
			}

			role := r.Header.Get(roleHeader)
			if role == "" {
				role = "customer"
			}

			ctx := context.WithValue(r.Context(), ctxUserID, userID)
			ctx = context.WithValue(ctx, ctxRole, role)
			ctx = logger.WithUserID(ctx, userID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole gates a route group on the actor role set by Actor.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				responses.WriteError(r.Context(), w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v, true
	}
	return uuid.Nil, false
}

func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}
