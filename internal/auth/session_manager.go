package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/agjmills/assetadmin/internal/config"
	"github.com/agjmills/assetadmin/internal/database"
	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"
)

// SessionUserKey holds the authenticated user's ID in the session.
const SessionUserKey = "user_id"

const defaultSessionLifetime = 7 * 24 * time.Hour

// NewSessionManager returns a session manager persisting to the sessions
// table of db. The cookie is HttpOnly and SameSite Strict, and Secure in
// production.
func NewSessionManager(db *gorm.DB, cfg *config.Config) (*scs.SessionManager, error) {
	store, err := database.SessionStore(db)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	sm := scs.New()
	sm.Store = store
	sm.Lifetime = sessionLifetime(cfg.SessionDuration)
	sm.Cookie.Name = "session_token"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Secure = cfg.Env == "production"
	return sm, nil
}

func sessionLifetime(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		if raw != "" {
			logger.Warn("invalid SESSION_DURATION, using default", "value", raw, "default", defaultSessionLifetime)
		}
		return defaultSessionLifetime
	}
	return d
}
