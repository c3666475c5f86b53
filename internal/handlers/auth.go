package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/agjmills/assetadmin/internal/auth"
	"github.com/agjmills/assetadmin/internal/config"
	"github.com/agjmills/assetadmin/internal/database/models"
	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/agjmills/assetadmin/internal/metrics"
	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"
)

const homePath = "/admin/assets"

type AuthHandler struct {
	db             *gorm.DB
	cfg            *config.Config
	sessionManager *scs.SessionManager
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, sessionManager *scs.SessionManager) *AuthHandler {
	return &AuthHandler{
		db:             db,
		cfg:            cfg,
		sessionManager: sessionManager,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	jsonRequest := isJSONRequest(r)
	if jsonRequest {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	var user models.User
	err := h.db.WithContext(r.Context()).Where("username = ?", req.Username).First(&user).Error
	if err != nil || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		metrics.RecordLogin(false)
		logger.Warn("login failed", "username", req.Username, "remote_addr", r.RemoteAddr)
		if jsonRequest {
			writeJSONError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		data := pageData(w, r, "Log in")
		data["Error"] = "Invalid credentials"
		if err := render(w, http.StatusUnauthorized, "login.html", data); err != nil {
			logger.Error("failed to render login page", "error", err)
		}
		return
	}

	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.sessionManager.Put(r.Context(), auth.SessionUserKey, int(user.ID))
	metrics.RecordLogin(true)
	logger.Info("user logged in", "user_id", user.ID)

	if jsonRequest {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		})
		return
	}
	http.Redirect(w, r, homePath, http.StatusSeeOther)
}

// Logout destroys the session, which also forgets the remembered folder.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		http.Error(w, "Failed to logout", http.StatusInternalServerError)
		return
	}

	if isJSONRequest(r) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if auth.GetUser(r) != nil {
		http.Redirect(w, r, homePath, http.StatusSeeOther)
		return
	}

	if err := render(w, http.StatusOK, "login.html", pageData(w, r, "Log in")); err != nil {
		logger.Error("failed to render login page", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
