// Package identity gives every browser a stable anonymous shopper key. The
// key scopes the backend cart and is carried in the MARKET_SESSION cookie.
package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName names the shopper identity cookie.
	CookieName = "MARKET_SESSION"

	// MaxAge is the cookie lifetime.
	MaxAge = 30 * 24 * time.Hour
)

// Resolver reads and issues shopper keys. It holds no state beyond cookie
// attributes, so one value serves every request.
type Resolver struct {
	Secure bool
}

// Lookup returns the shopper key carried by the request, if any.
// A present but blank cookie counts as absent.
func (Resolver) Lookup(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// Issue generates a fresh key and sets it on the response.
func (res Resolver) Issue(w http.ResponseWriter) string {
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    key,
		Path:     "/",
		MaxAge:   int(MaxAge / time.Second),
		HttpOnly: true,
		Secure:   res.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return key
}

// Resolve returns the request's key, issuing one when absent. It never fails.
func (res Resolver) Resolve(w http.ResponseWriter, r *http.Request) string {
	if key, ok := res.Lookup(r); ok {
		return key
	}
	return res.Issue(w)
}
