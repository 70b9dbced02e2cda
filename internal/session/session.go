// Package session stores per-browser server-side state: the admin bearer
// token and the pending flash message. Each browser is identified by an
// opaque HTTP session id carried in the MARKET_SID cookie.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known keys within a session.
const (
	KeyAdminToken = "admin_token"
	KeyFlash      = "flash"
)

// Store is a per-session key/value map with expiry. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, sid, key string) (string, bool, error)

	// Set writes key and refreshes the session's expiry.
	Set(ctx context.Context, sid, key, value string) error

	// Take reads and removes key in one step.
	Take(ctx context.Context, sid, key string) (string, bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, sid, key string) error

	// Destroy removes the whole session.
	Destroy(ctx context.Context, sid string) error
}

// FlashKind classifies a flash message for display.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind FlashKind `json:"kind"`
	Text string    `json:"text"`
}

// CookieName names the HTTP session cookie.
const CookieName = "MARKET_SID"

// Manager issues session ids and reads/writes flash messages.
type Manager struct {
	store  Store
	secure bool
}

// NewManager wraps store. secure marks the cookie Secure.
func NewManager(store Store, secure bool) *Manager {
	return &Manager{store: store, secure: secure}
}

// NewID generates a session id.
func NewID() string { return uuid.NewString() }

// ID returns the request's session id, issuing a new one when the cookie is
// missing or malformed. The cookie lives for the browser session; server-side
// data expires according to the store's TTL.
func (m *Manager) ID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			return c.Value
		}
	}

	sid := NewID()
	m.Bind(w, sid)
	return sid
}

// Bind points the browser's session cookie at sid.
func (m *Manager) Bind(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetFlash replaces any pending flash.
func (m *Manager) SetFlash(ctx context.Context, sid string, f Flash) error {
	if strings.TrimSpace(f.Text) == "" {
		return nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding flash: %w", err)
	}
	return m.store.Set(ctx, sid, KeyFlash, string(b))
}

// TakeFlash consumes the pending flash. A nil flash means none was pending.
func (m *Manager) TakeFlash(ctx context.Context, sid string) (*Flash, error) {
	raw, ok, err := m.store.Take(ctx, sid, KeyFlash)
	if err != nil || !ok {
		return nil, err
	}
	var f Flash
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("decoding flash: %w", err)
	}
	return &f, nil
}

// DefaultTTL is how long an idle session's data is kept.
const DefaultTTL = 12 * time.Hour
