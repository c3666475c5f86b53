// Package web embeds the HTML templates and static assets of the admin UI.
package web

import "embed"

//go:embed templates static
var FS embed.FS
