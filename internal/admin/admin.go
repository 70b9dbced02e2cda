// Package admin holds the back-office login state. The backend issues an
// opaque bearer token at login; this package keeps it in the HTTP session and
// discards it as soon as the backend rejects it. There is no local expiry or
// refresh.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"market-web/internal/gateway"
	"market-web/internal/model"
	"market-web/internal/session"
)

var (
	// ErrLoginRequired means no token is stored for the session.
	ErrLoginRequired = errors.New("admin login required")

	// ErrSessionExpired means the backend rejected the stored token. The token
	// has already been evicted when this is returned.
	ErrSessionExpired = errors.New("admin session expired")

	// ErrEmptyToken means the backend accepted the login but returned no token.
	ErrEmptyToken = errors.New("backend returned an empty admin token")
)

// EvictionRecorder is told each time a rejected token is discarded.
type EvictionRecorder interface {
	AdminTokenEvicted()
}

// Manager binds admin tokens to HTTP session ids.
type Manager struct {
	gw       gateway.Gateway
	store    session.Store
	logger   *slog.Logger
	recorder EvictionRecorder
}

// NewManager creates a Manager. recorder may be nil.
func NewManager(gw gateway.Gateway, store session.Store, logger *slog.Logger, recorder EvictionRecorder) *Manager {
	return &Manager{gw: gw, store: store, logger: logger, recorder: recorder}
}

// Login exchanges credentials for a token and stores it under a freshly
// issued session id, which it returns. The session the browser arrived with
// is destroyed, so an id chosen by someone else never carries a token.
// On failure nothing changes.
func (m *Manager) Login(ctx context.Context, sid, username, password string) (string, error) {
	resp, err := m.gw.AdminLogin(ctx, username, password)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(resp.AccessToken)
	if token == "" {
		return "", ErrEmptyToken
	}

	fresh := session.NewID()
	if err := m.store.Set(ctx, fresh, session.KeyAdminToken, token); err != nil {
		return "", fmt.Errorf("storing admin token: %w", err)
	}
	if err := m.store.Destroy(ctx, sid); err != nil {
		m.logger.WarnContext(ctx, "destroying pre-login session", slog.String("error", err.Error()))
	}
	return fresh, nil
}

// CurrentToken returns the stored token. A store failure is treated as no
// token so the admin is sent back to login rather than shown an error page.
func (m *Manager) CurrentToken(ctx context.Context, sid string) (string, bool) {
	token, ok, err := m.store.Get(ctx, sid, session.KeyAdminToken)
	if err != nil {
		m.logger.WarnContext(ctx, "reading admin token", slog.String("error", err.Error()))
		return "", false
	}
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

// Evict removes the stored token.
func (m *Manager) Evict(ctx context.Context, sid string) {
	if err := m.store.Delete(ctx, sid, session.KeyAdminToken); err != nil {
		m.logger.WarnContext(ctx, "evicting admin token", slog.String("error", err.Error()))
	}
}

// Guard runs fn with the session's token. Without a token fn is not called
// and ErrLoginRequired is returned. When fn fails because the backend
// rejected the token (401/403), the token is evicted and the error is
// wrapped with ErrSessionExpired. Other failures pass through unchanged.
func (m *Manager) Guard(ctx context.Context, sid string, fn func(token string) error) error {
	token, ok := m.CurrentToken(ctx, sid)
	if !ok {
		return ErrLoginRequired
	}

	err := fn(token)
	if err == nil {
		return nil
	}
	if model.IsAuthorizationFailure(err) {
		m.Evict(ctx, sid)
		if m.recorder != nil {
			m.recorder.AdminTokenEvicted()
		}
		m.logger.InfoContext(ctx, "admin token rejected by backend; evicted",
			slog.Int("status", model.StatusCode(err)),
		)
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return err
}

// IsAuthFailure reports whether err should send the admin back to login.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrLoginRequired) || errors.Is(err, ErrSessionExpired)
}
