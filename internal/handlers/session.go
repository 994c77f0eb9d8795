package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quotedesk/checkout/internal/platform/requestctx"
)

const defaultSessionCookie = "quote_session"

// SessionConfig controls the signed wizard session cookie.
type SessionConfig struct {
	CookieName string
	SigningKey []byte
	Secure     bool
	MaxAge     time.Duration
}

// SessionMiddleware resolves the wizard session id from a signed cookie, issuing a new one when the
// cookie is missing or its signature does not verify. The id is stored on the request context.
func SessionMiddleware(cfg SessionConfig) func(http.Handler) http.Handler {
	name := strings.TrimSpace(cfg.CookieName)
	if name == "" {
		name = defaultSessionCookie
	}
	key := cfg.SigningKey
	if len(key) == 0 {
		// Process-ephemeral key: sessions do not survive a restart. Config requires a key outside local.
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("session: failed to generate signing key: " + err.Error())
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := readSessionCookie(r, name, key)
			if !ok {
				id = ulid.Make().String()
				cookie := &http.Cookie{
					Name:     name,
					Value:    signSessionID(id, key),
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				}
				if cfg.MaxAge > 0 {
					cookie.MaxAge = int(cfg.MaxAge.Seconds())
				}
				http.SetCookie(w, cookie)
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(r.Context(), id)))
		})
	}
}

func signSessionID(id string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func readSessionCookie(r *http.Request, name string, key []byte) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	id, sig, found := strings.Cut(c.Value, ".")
	if !found || id == "" {
		return "", false
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return "", false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	if !hmac.Equal(got, mac.Sum(nil)) {
		return "", false
	}
	return id, true
}
