package routes

import (
	"io/fs"
	"net/http"
	"time"

	csrf "filippo.io/csrf/gorilla"
	"github.com/agjmills/assetadmin/internal/assets"
	"github.com/agjmills/assetadmin/internal/auth"
	"github.com/agjmills/assetadmin/internal/config"
	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/handlers"
	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/agjmills/assetadmin/internal/middleware"
	"github.com/agjmills/assetadmin/internal/storage"
	"github.com/agjmills/assetadmin/web"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Login attempts: 5 per 15 minutes per client IP. Uploads: a burst of 20,
// refilling at one per second.
const (
	loginRate   = 5.0 / (15 * 60)
	loginBurst  = 5
	loginTTL    = 15 * time.Minute
	uploadRate  = 1.0
	uploadBurst = 20
	uploadTTL   = 10 * time.Minute
)

// Setup configures HTTP routes and middleware on r: health and metrics,
// embedded static files, the login flow and the asset admin section.
//
// CSRF protection (filippo.io/csrf) checks Fetch Metadata headers
// (Sec-Fetch-Site, Origin) rather than tokens. Cross-site browser requests
// are rejected; requests without those headers (API clients, curl) pass and
// still need a session. csrf.Token exists for template compatibility only.
//
// The upload endpoint runs without the CSRF middleware so the multipart body
// can be streamed. It relies on the session and SameSite cookies.
func Setup(r chi.Router, db *gorm.DB, cfg *config.Config, svc *assets.Service, blobs storage.StorageBackend, sessionManager *scs.SessionManager, version string) {
	authHandler := handlers.NewAuthHandler(db, cfg, sessionManager)
	assetHandler := handlers.NewAssetHandler(svc, cfg, sessionManager)
	healthHandler := handlers.NewHealthHandler(db, blobs, version)

	loginLimit := middleware.RateLimit(loginRate, loginBurst, loginTTL)
	uploadLimit := middleware.RateLimit(uploadRate, uploadBurst, uploadTTL)

	csrfMiddleware := func(next http.Handler) http.Handler { return next }
	if cfg.CSRFEnabled {
		csrfMiddleware = csrf.Protect(
			[]byte(cfg.SessionSecret),
			csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Warn("csrf validation failed",
					"reason", csrf.FailureReason(r),
					"method", r.Method,
					"path", r.URL.Path,
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
			})),
		)
	}

	requireAccess := auth.RequireAccess(models.PermAccessAssets)

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	static, err := fs.Sub(web.FS, "static")
	if err != nil {
		panic("embedded static files missing: " + err.Error())
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.NotFound(middleware.NotFoundHandler)

	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.OptionalAuth(db, sessionManager))
		r.Get("/", authHandler.ShowLogin)
		r.Get("/login", authHandler.ShowLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(loginLimit)
		r.Post("/login", authHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(csrfMiddleware)
		r.Post("/logout", authHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
		r.Use(requireAccess)
		r.Use(csrfMiddleware)
		r.Get("/admin/assets", assetHandler.Index)
		r.Get("/admin/assets/show/{id}", assetHandler.Index)
		r.Get("/admin/assets/addfolder", assetHandler.AddFolderForm)
		r.Post("/admin/assets/addfolder", assetHandler.AddFolder)
		r.Post("/admin/assets/delete", assetHandler.Delete)
		r.Get("/admin/assets/field/File/item/{itemID}", assetHandler.Detail)
		r.Get("/admin/assets/download/{id}", assetHandler.Download)
	})

	// Streaming upload, no CSRF middleware (see above).
	r.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
		r.Use(requireAccess)
		r.Use(uploadLimit)
		r.Post("/admin/assets/upload", assetHandler.Upload)
	})

	// JSON API. CORS runs first so preflights are answered before auth.
	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
		r.Use(sessionManager.LoadAndSave)
		r.Use(auth.RequireAuth(db, sessionManager))
		r.Use(requireAccess)
		r.Use(csrfMiddleware)
		r.Options("/admin/assets/api/*", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/admin/assets/api/batch/delete", assetHandler.BatchDelete)
		r.Get("/admin/assets/api/subtree", assetHandler.Subtree)
		r.Get("/admin/assets/api/list", assetHandler.ListJSON)
	})
}
