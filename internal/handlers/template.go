package handlers

import (
	"bytes"
	"html/template"
	"io/fs"
	"net/http"

	csrf "filippo.io/csrf/gorilla"
	"github.com/agjmills/assetadmin/internal/auth"
	"github.com/agjmills/assetadmin/internal/flash"
	"github.com/agjmills/assetadmin/internal/templateutil"
)

var (
	templates   *template.Template
	templatesFS fs.FS
)

// LoadTemplates parses the layout and shared partials from fsys. Page
// templates are parsed per render from templates/<page> on top of a clone,
// so every page can define its own "content" block.
func LoadTemplates(fsys fs.FS) error {
	tmpl, err := template.New("").Funcs(templateutil.FuncMap()).ParseFS(fsys, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return err
	}
	templates, templatesFS = tmpl, fsys
	return nil
}

// render executes page inside the layout. Output is buffered so a template
// error still yields a clean 500 instead of half a page.
func render(w http.ResponseWriter, status int, page string, data map[string]any) error {
	tmpl, err := templates.Clone()
	if err != nil {
		return err
	}

	if _, err := tmpl.ParseFS(templatesFS, "templates/"+page); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// pageData returns the values every page shares: title, user, CSRF token
// and the pending flash message.
func pageData(w http.ResponseWriter, r *http.Request, title string) map[string]any {
	return map[string]any{
		"Title":     title,
		"User":      auth.GetUser(r),
		"CSRFToken": csrf.Token(r),
		"Flash":     flash.Get(w, r),
	}
}
