// Package flash carries one-shot status messages across a redirect in a short lived cookie.
package flash

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const (
	flashCookieName = "flash_message"
)

// Kinds understood by the layout template.
const (
	KindError   = "error"
	KindSuccess = "success"
	KindInfo    = "info"
	KindWarning = "warning"
)

// Secure marks the flash cookie Secure. main sets it in production.
var Secure bool

type Message struct {
	Type    string
	Content string
}

// Set creates a flash message that will be available on the next request
func Set(w http.ResponseWriter, msgType, content string) {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(msgType + ":" + content))

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// Get retrieves and clears the flash message
func Get(w http.ResponseWriter, r *http.Request) *Message {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   Secure,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})

	decoded, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}

	kind, content, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil
	}
	return &Message{Type: kind, Content: content}
}

func Error(w http.ResponseWriter, content string) {
	Set(w, KindError, content)
}

func Success(w http.ResponseWriter, content string) {
	Set(w, KindSuccess, content)
}

func Info(w http.ResponseWriter, content string) {
	Set(w, KindInfo, content)
}

func Warning(w http.ResponseWriter, content string) {
	Set(w, KindWarning, content)
}
