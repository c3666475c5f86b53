package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agjmills/assetadmin/internal/assets"
	"github.com/agjmills/assetadmin/internal/auth"
	"github.com/agjmills/assetadmin/internal/config"
	"github.com/agjmills/assetadmin/internal/database"
	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/storage"
	"github.com/agjmills/assetadmin/web"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	if err := LoadTemplates(web.FS); err != nil {
		panic("failed to load templates: " + err.Error())
	}
}

// assetTestApp wires the asset handler the way routes.Setup does, with the
// acting user injected instead of looked up from a login.
type assetTestApp struct {
	db      *gorm.DB
	cfg     *config.Config
	sm      *scs.SessionManager
	svc     *assets.Service
	blobs   *storage.MemoryBackend
	router  chi.Router
	user    *models.User
	cookies map[string]*http.Cookie
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.Options(gormlogger.Silent))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	return db
}

func newUser(id uint, admin bool, perms ...string) *models.User {
	return &models.User{
		ID:          id,
		Username:    fmt.Sprintf("user%d", id),
		IsAdmin:     admin,
		Permissions: datatypes.NewJSONType(perms),
	}
}

var (
	adminUser  = newUser(1, true)
	viewerUser = newUser(3, false, models.PermAccessAssets)
)

func newAssetTestApp(t *testing.T, user *models.User) *assetTestApp {
	t.Helper()

	app := &assetTestApp{
		db: setupTestDB(t),
		cfg: &config.Config{
			PageLength:    2,
			MaxUploadSize: 1024,
		},
		sm:      scs.New(),
		blobs:   storage.NewMemoryBackend(),
		user:    user,
		cookies: map[string]*http.Cookie{},
	}
	app.svc = assets.NewService(app.db, app.blobs, assets.Options{
		Names:         assets.NameGenerator{MaxAttempts: 10},
		MaxUploadSize: app.cfg.MaxUploadSize,
	})

	h := NewAssetHandler(app.svc, app.cfg, app.sm)
	r := chi.NewRouter()
	r.Use(app.sm.LoadAndSave)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), app.user)))
		})
	})
	r.Get("/admin/assets", h.Index)
	r.Get("/admin/assets/show/{id}", h.Index)
	r.Get("/admin/assets/addfolder", h.AddFolderForm)
	r.Post("/admin/assets/addfolder", h.AddFolder)
	r.Post("/admin/assets/delete", h.Delete)
	r.Get("/admin/assets/field/File/item/{itemID}", h.Detail)
	r.Get("/admin/assets/download/{id}", h.Download)
	r.Post("/admin/assets/upload", h.Upload)
	r.Post("/admin/assets/api/batch/delete", h.BatchDelete)
	r.Get("/admin/assets/api/subtree", h.Subtree)
	r.Get("/admin/assets/api/list", h.ListJSON)
	app.router = r
	return app
}

// do serves req, carrying cookies between calls like a browser would.
func (app *assetTestApp) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range app.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(app.cookies, c.Name)
			continue
		}
		app.cookies[c.Name] = c
	}
	return w
}

func (app *assetTestApp) get(path string) *httptest.ResponseRecorder {
	return app.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (app *assetTestApp) seed(t *testing.T, a models.Asset) models.Asset {
	t.Helper()
	if a.Title == "" {
		a.Title = a.Name
	}
	if a.Filename == "" {
		a.Filename = a.Name
	}
	if err := app.svc.Store().Create(context.Background(), &a); err != nil {
		t.Fatalf("seed %s: %v", a.Name, err)
	}
	return a
}

// rememberedFolder reads the session value through a throwaway request.
func (app *assetTestApp) rememberedFolder(t *testing.T) int {
	t.Helper()
	var id int
	read := app.sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = app.sm.GetInt(r.Context(), assets.SessionKey)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range app.cookies {
		req.AddCookie(c)
	}
	read.ServeHTTP(httptest.NewRecorder(), req)
	return id
}

func readBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	b, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}
