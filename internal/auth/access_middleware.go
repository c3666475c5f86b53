package auth

import (
	"net/http"

	"github.com/agjmills/assetadmin/internal/metrics"
)

// RequireAccess requires an authenticated user holding the capability code.
// If not authenticated, redirects to login. Otherwise returns 403 Forbidden.
// Expects RequireAuth to be applied first, as it reads the user from context.
func RequireAccess(code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			if !user.Can(code) {
				metrics.PermissionDenied.WithLabelValues("access").Inc()
				http.Error(w, "Forbidden - "+code+" required", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
