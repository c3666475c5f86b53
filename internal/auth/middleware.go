package auth

import (
	"context"
	"net/http"

	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"
)

type contextKey string

const UserContextKey contextKey = "user"

// WithUser returns a copy of ctx carrying the user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

func GetUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}

func loadUser(r *http.Request, db *gorm.DB, sm *scs.SessionManager) *models.User {
	userID := sm.GetInt(r.Context(), SessionUserKey)
	if userID == 0 {
		return nil
	}
	var user models.User
	if err := db.WithContext(r.Context()).First(&user, userID).Error; err != nil {
		return nil
	}
	return &user
}

// RequireAuth redirects to /login unless the session names an existing user.
// Must run inside sm.LoadAndSave.
func RequireAuth(db *gorm.DB, sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := loadUser(r, db, sm)
			if user == nil {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func OptionalAuth(db *gorm.DB, sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := loadUser(r, db, sm); user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}
