// Package api implements the Quill REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/seroka/quill/internal/auth"
	"github.com/seroka/quill/internal/models"
)

type contextKey string

const adminContextKey contextKey = "admin"

// RequireAdmin returns middleware that validates the Bearer token against the
// auth service and stores the authenticated admin on the request context.
func RequireAdmin(authSvc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody("no token provided"))
				return
			}
			admin, err := authSvc.Authenticate(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errorBody("invalid token"))
				return
			}
			ctx := context.WithValue(r.Context(), adminContextKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// adminFrom returns the authenticated admin stored by RequireAdmin.
func adminFrom(r *http.Request) (models.Admin, bool) {
	admin, ok := r.Context().Value(adminContextKey).(models.Admin)
	return admin, ok
}
