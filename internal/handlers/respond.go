package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/agjmills/assetadmin/internal/assets"
	"github.com/agjmills/assetadmin/internal/flash"
	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/agjmills/assetadmin/internal/middleware"
	"github.com/agjmills/assetadmin/internal/storage"
)

// isJSONRequest reports whether the client sent or asked for JSON.
func isJSONRequest(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode json response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes and user facing messages.
func statusFor(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, assets.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, assets.ErrPermissionDenied):
		return http.StatusForbidden, "Permission denied"
	case errors.Is(err, assets.ErrNameExhausted):
		return http.StatusConflict, "Could not find a free name, please choose another one"
	case errors.Is(err, assets.ErrInvalidName):
		return http.StatusBadRequest, "Invalid name: " + strings.TrimPrefix(err.Error(), assets.ErrInvalidName.Error()+": ")
	case errors.Is(err, storage.ErrFileTooLarge), errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, "File too large"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// fail answers a failed operation. JSON clients get a JSON error body. Browser
// form posts with a user-correctable error (bad name, name clash, too large)
// get a flash message and a redirect to back; everything else gets a status page.
func fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	if isJSONRequest(r) {
		writeJSONError(w, status, message)
		return
	}

	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusRequestEntityTooLarge:
		if back != "" {
			flash.Error(w, message)
			http.Redirect(w, r, back, http.StatusSeeOther)
			return
		}
		http.Error(w, message, status)
	case http.StatusNotFound:
		middleware.NotFoundHandler(w, r)
	case http.StatusInternalServerError:
		middleware.InternalErrorHandler(w, r)
	default:
		http.Error(w, message, status)
	}
}

// failJSON answers API endpoints, which always speak JSON.
func failJSON(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSONError(w, status, message)
}
