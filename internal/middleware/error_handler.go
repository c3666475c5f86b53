package middleware

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"runtime/debug"

	"github.com/agjmills/assetadmin/internal/logger"
	"github.com/agjmills/assetadmin/internal/templateutil"
)

var (
	errorTemplates *template.Template
	errorFS        fs.FS
)

// LoadErrorTemplates parses the shared layout from fsys. Error pages are
// looked up below templates/ in the same file system.
func LoadErrorTemplates(fsys fs.FS) error {
	tmpl, err := template.New("").Funcs(templateutil.FuncMap()).ParseFS(fsys, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return err
	}
	errorTemplates, errorFS = tmpl, fsys
	return nil
}

// NotFoundHandler renders a custom 404 page
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	renderError(w, "404.html", map[string]any{
		"Title": "Page Not Found",
	})
}

// InternalErrorHandler renders a custom 500 page
func InternalErrorHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	renderError(w, "500.html", map[string]any{
		"Title": "Internal Server Error",
	})
}

func renderError(w http.ResponseWriter, page string, data map[string]any) {
	if errorTemplates == nil {
		fmt.Fprintf(w, "Error: %s", data["Title"])
		return
	}

	tmpl, err := errorTemplates.Clone()
	if err != nil {
		fmt.Fprintf(w, "Error rendering template: %v", err)
		return
	}

	if _, err := tmpl.ParseFS(errorFS, "templates/"+page); err != nil {
		fmt.Fprintf(w, "Error parsing template: %v", err)
		return
	}

	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		fmt.Fprintf(w, "Error executing template: %v", err)
	}
}

// RecoverMiddleware catches panics and renders 500 pages
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Error("panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				InternalErrorHandler(w, r)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
