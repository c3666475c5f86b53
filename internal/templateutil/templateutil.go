// Package templateutil provides shared template helper functions for use across
// different template loading contexts (handlers, middleware, etc.).
package templateutil

import (
	"fmt"
	"html/template"
	"time"
)

// DateTimeLayout renders timestamps in the listing grid and detail view.
const DateTimeLayout = "02/01/2006 3:04pm"

// FormatBytes formats a byte count into human-readable units (B, KB, MB, etc.).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDate renders t in DateTimeLayout. The zero time renders empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateTimeLayout)
}

// SanitizeID converts a string into a safe HTML element ID.
// It replaces spaces and non-alphanumeric characters (except hyphen and underscore)
// with underscores, and prefixes with "id-" to ensure the ID starts with a letter.
func SanitizeID(s string) string {
	result := make([]byte, 0, len(s)+3)
	result = append(result, "id-"...)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

// FuncMap returns the template function map shared by page and error templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"formatBytes": FormatBytes,
		"formatDate":  FormatDate,
		"sanitizeID":  SanitizeID,
		"add":         func(a, b int) int { return a + b },
		"sub":         func(a, b int) int { return a - b },
	}
}
