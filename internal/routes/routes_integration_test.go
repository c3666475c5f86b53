package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/agjmills/assetadmin/internal/assets"
	"github.com/agjmills/assetadmin/internal/auth"
	"github.com/agjmills/assetadmin/internal/config"
	"github.com/agjmills/assetadmin/internal/database"
	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/handlers"
	"github.com/agjmills/assetadmin/internal/middleware"
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
	if err := handlers.LoadTemplates(web.FS); err != nil {
		panic(err)
	}
	if err := middleware.LoadErrorTemplates(web.FS); err != nil {
		panic(err)
	}
}

// testIPCounter is used to generate unique IP addresses for tests to avoid rate limiting
var testIPCounter atomic.Uint64

// uniqueTestIP generates a unique IP address for each test to avoid rate limiting
func uniqueTestIP() string {
	counter := testIPCounter.Add(1)
	return fmt.Sprintf("192.168.%d.%d:12345", (counter/256)%256, counter%256)
}

// routeTestApp encapsulates all dependencies for route integration tests
type routeTestApp struct {
	db             *gorm.DB
	cfg            *config.Config
	sessionManager *scs.SessionManager
	storage        *storage.MemoryBackend
	router         chi.Router
}

func testConfig() *config.Config {
	return &config.Config{
		DBType:          "sqlite",
		BcryptCost:      4, // Low cost for faster tests
		MaxUploadSize:   1024 * 1024,
		SessionSecret:   "test-secret-key-32-bytes-long!!!",
		SessionDuration: "1h",
		Env:             "test",
		PageLength:      15,
	}
}

// newRouteTestApp creates a new test application with full routing setup
func newRouteTestApp(t *testing.T, cfg *config.Config) *routeTestApp {
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

	sessionManager, err := auth.NewSessionManager(db, cfg)
	if err != nil {
		t.Fatalf("Failed to create session manager: %v", err)
	}

	memStorage := storage.NewMemoryBackend()
	svc := assets.NewService(db, memStorage, assets.Options{
		Names:         assets.NameGenerator{MaxAttempts: 100},
		MaxUploadSize: cfg.MaxUploadSize,
	})

	router := chi.NewRouter()
	Setup(router, db, cfg, svc, memStorage, sessionManager, "test-version")

	return &routeTestApp{
		db:             db,
		cfg:            cfg,
		sessionManager: sessionManager,
		storage:        memStorage,
		router:         router,
	}
}

// createTestUser creates a test user holding perms
func (app *routeTestApp) createTestUser(t *testing.T, username, password string, admin bool, perms ...string) *models.User {
	t.Helper()

	hashedPassword, err := auth.HashPassword(password, app.cfg.BcryptCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hashedPassword,
		IsAdmin:      admin,
		Permissions:  datatypes.NewJSONType(perms),
	}
	if err := app.db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// newFormRequest creates an HTTP form request with a unique IP
func (app *routeTestApp) newFormRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = uniqueTestIP()
	return req
}

// login posts credentials and returns the session cookie
func (app *routeTestApp) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	form := url.Values{"username": {username}, "password": {password}}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, app.newFormRequest(http.MethodPost, "/login", form))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Login failed: %d %s", w.Code, w.Body.String())
	}

	for _, c := range w.Result().Cookies() {
		if c.Name == app.sessionManager.Cookie.Name {
			return c
		}
	}
	t.Fatal("No session cookie returned after login")
	return nil
}

// serve runs req with the session cookie attached. Requests still carrying
// the httptest default address get a unique one.
func (app *routeTestApp) serve(req *http.Request, session *http.Cookie) *httptest.ResponseRecorder {
	if session != nil {
		req.AddCookie(session)
	}
	if req.RemoteAddr == "192.0.2.1:1234" {
		req.RemoteAddr = uniqueTestIP()
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	app := newRouteTestApp(t, testConfig())

	w := app.serve(httptest.NewRequest(http.MethodGet, "/health", nil), nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Errorf("Failed to parse health response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app := newRouteTestApp(t, testConfig())

	w := app.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "go_") {
		t.Error("Expected Prometheus Go metrics in response")
	}
	if !strings.Contains(body, "assetadmin_folders_created_total") {
		t.Error("Expected application metrics in response")
	}
}

func TestStaticFileServing(t *testing.T) {
	app := newRouteTestApp(t, testConfig())

	w := app.serve(httptest.NewRequest(http.MethodGet, "/static/admin.css", nil), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Expected text/css, got %q", ct)
	}

	w = app.serve(httptest.NewRequest(http.MethodGet, "/static/missing.js", nil), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing asset, got %d", w.Code)
	}
}

func TestPublicRoutes(t *testing.T) {
	app := newRouteTestApp(t, testConfig())

	for _, path := range []string{"/", "/login"} {
		t.Run(path, func(t *testing.T) {
			w := app.serve(httptest.NewRequest(http.MethodGet, path, nil), nil)
			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
		})
	}
}

func TestNotFoundHandler(t *testing.T) {
	app := newRouteTestApp(t, testConfig())

	w := app.serve(httptest.NewRequest(http.MethodGet, "/nonexistent-route", nil), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Page not found") {
		t.Error("Expected the 404 page")
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	app := newRouteTestApp(t, testConfig())

	protectedRoutes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/admin/assets"},
		{http.MethodGet, "/admin/assets/show/0"},
		{http.MethodGet, "/admin/assets/addfolder"},
		{http.MethodPost, "/admin/assets/addfolder"},
		{http.MethodPost, "/admin/assets/delete"},
		{http.MethodGet, "/admin/assets/field/File/item/1"},
		{http.MethodGet, "/admin/assets/download/1"},
		{http.MethodPost, "/admin/assets/upload"},
		{http.MethodPost, "/admin/assets/api/batch/delete"},
		{http.MethodGet, "/admin/assets/api/subtree"},
		{http.MethodGet, "/admin/assets/api/list"},
	}

	for _, route := range protectedRoutes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := app.serve(httptest.NewRequest(route.method, route.path, nil), nil)

			if w.Code != http.StatusSeeOther {
				t.Errorf("Expected redirect (303), got %d for %s %s", w.Code, route.method, route.path)
			}
			if location := w.Header().Get("Location"); location != "/login" {
				t.Errorf("Expected redirect to /login, got %s", location)
			}
		})
	}
}

func TestAssetsRequireAccessPermission(t *testing.T) {
	app := newRouteTestApp(t, testConfig())
	app.createTestUser(t, "outsider", "password123", false)
	session := app.login(t, "outsider", "password123")

	for _, path := range []string{"/admin/assets", "/admin/assets/api/list"} {
		w := app.serve(httptest.NewRequest(http.MethodGet, path, nil), session)
		if w.Code != http.StatusForbidden {
			t.Errorf("%s: Expected 403 Forbidden, got %d", path, w.Code)
		}
	}
}

func TestLoginFlow(t *testing.T) {
	app := newRouteTestApp(t, testConfig())
	app.createTestUser(t, "testuser", "password123", false, models.PermAccessAssets)

	t.Run("successful login", func(t *testing.T) {
		session := app.login(t, "testuser", "password123")

		w := app.serve(httptest.NewRequest(http.MethodGet, "/login", nil), session)
		if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/admin/assets" {
			t.Errorf("Expected redirect to /admin/assets, got %d %q", w.Code, w.Header().Get("Location"))
		}
	})

	t.Run("failed login", func(t *testing.T) {
		form := url.Values{"username": {"testuser"}, "password": {"wrongpassword"}}
		w := app.serve(app.newFormRequest(http.MethodPost, "/login", form), nil)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected status 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "Invalid credentials") {
			t.Error("Expected the login page with an error")
		}
	})
}

func TestRateLimiting(t *testing.T) {
	app := newRouteTestApp(t, testConfig())

	form := url.Values{"username": {"attacker"}, "password": {"wrongpassword"}}
	for i := range loginBurst + 1 {
		req := app.newFormRequest(http.MethodPost, "/login", form)
		req.RemoteAddr = "203.0.113.7:12345"

		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)

		if i < loginBurst && w.Code != http.StatusUnauthorized {
			t.Fatalf("Attempt %d: expected 401, got %d", i+1, w.Code)
		}
		if i == loginBurst && w.Code != http.StatusTooManyRequests {
			t.Fatalf("Attempt %d: expected 429, got %d", i+1, w.Code)
		}
	}

	// Other clients are unaffected.
	w := app.serve(app.newFormRequest(http.MethodPost, "/login", form), nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected another IP to reach the handler, got %d", w.Code)
	}
}

func TestBrowseAndCreateFolder(t *testing.T) {
	app := newRouteTestApp(t, testConfig())
	app.createTestUser(t, "editor", "password123", false, models.PermAccessAssets, models.PermCreateAssets, models.PermEditAssets)
	session := app.login(t, "editor", "password123")

	w := app.serve(app.newFormRequest(http.MethodPost, "/admin/assets/addfolder", url.Values{"Name": {"Photos"}}), session)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("Expected redirect (303), got %d: %s", w.Code, w.Body.String())
	}
	location := w.Header().Get("Location")
	if !strings.HasPrefix(location, "/admin/assets/show/") {
		t.Fatalf("Expected redirect into the folder, got %q", location)
	}

	req := httptest.NewRequest(http.MethodGet, location, nil)
	for _, c := range w.Result().Cookies() {
		if c.Name == "flash_message" {
			req.AddCookie(c)
		}
	}
	w = app.serve(req, session)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Created folder Photos.") {
		t.Error("Expected the success flash on the folder page")
	}

	// The session now remembers Photos, so the bare listing opens it.
	w = app.serve(httptest.NewRequest(http.MethodGet, "/admin/assets", nil), session)
	if !strings.Contains(w.Body.String(), `aria-current="page">Photos<`) {
		t.Error("Expected the remembered folder to be current")
	}
}

func TestLogoutForgetsFolder(t *testing.T) {
	app := newRouteTestApp(t, testConfig())
	app.createTestUser(t, "admin", "password123", true)
	session := app.login(t, "admin", "password123")

	w := app.serve(app.newFormRequest(http.MethodPost, "/admin/assets/addfolder", url.Values{"Name": {"Docs"}}), session)
	app.serve(httptest.NewRequest(http.MethodGet, w.Header().Get("Location"), nil), session)

	w = app.serve(httptest.NewRequest(http.MethodPost, "/logout", nil), session)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("Expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}

	session = app.login(t, "admin", "password123")
	w = app.serve(httptest.NewRequest(http.MethodGet, "/admin/assets", nil), session)
	if strings.Contains(w.Body.String(), `aria-current="page">Docs<`) {
		t.Error("A new session should start at the root folder")
	}
}

func TestCSRFProtection(t *testing.T) {
	cfg := testConfig()
	cfg.CSRFEnabled = true
	app := newRouteTestApp(t, cfg)
	app.createTestUser(t, "csrfuser", "password123", true)
	session := app.login(t, "csrfuser", "password123")

	tests := []struct {
		name       string
		site       string
		wantStatus int
	}{
		{"cross-site browser request is rejected", "cross-site", http.StatusForbidden},
		{"same-site browser request is rejected", "same-site", http.StatusForbidden},
		{"same-origin browser request passes", "same-origin", http.StatusSeeOther},
		{"non-browser client passes", "", http.StatusSeeOther},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"Name": {fmt.Sprintf("folder%d", i)}}
			req := app.newFormRequest(http.MethodPost, "/admin/assets/addfolder", form)
			if tt.site != "" {
				req.Header.Set("Sec-Fetch-Site", tt.site)
			}

			w := app.serve(req, session)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}

	var count int64
	app.db.Model(&models.Asset{}).Count(&count)
	if count != 2 {
		t.Errorf("Expected 2 folders from the accepted requests, got %d", count)
	}
}

func TestUploadThroughRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.CSRFEnabled = true
	app := newRouteTestApp(t, cfg)
	app.createTestUser(t, "uploader", "password123", true)
	session := app.login(t, "uploader", "password123")

	body := "--XYZ\r\n" +
		`Content-Disposition: form-data; name="file"; filename="notes.txt"` + "\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"hello\r\n--XYZ--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/admin/assets/upload", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=XYZ")
	req.Header.Set("Accept", "application/json")

	w := app.serve(req, session)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var file models.Asset
	if err := json.NewDecoder(w.Body).Decode(&file); err != nil {
		t.Fatalf("Failed to decode upload response: %v", err)
	}

	w = app.serve(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/admin/assets/download/%d", file.ID), nil), session)
	if w.Code != http.StatusOK || w.Body.String() != "hello" {
		t.Errorf("Expected the uploaded content, got %d %q", w.Code, w.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://cms.example.com"}
	app := newRouteTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/admin/assets/api/list", nil)
	req.Header.Set("Origin", "https://cms.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	w := app.serve(req, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://cms.example.com" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}
}
