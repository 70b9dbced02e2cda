// Package handler provides the HTTP handlers for the storefront and
// back-office pages.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"market-web/internal/compat"
	"market-web/internal/identity"
	"market-web/internal/middleware"
	"market-web/internal/model"
	"market-web/internal/session"
	"market-web/internal/view"
	"market-web/internal/workflow"
)

// MaxFormSize limits form bodies to 1MB.
const MaxFormSize = 1 << 20

// ReadinessChecker reports whether the backend is compatible.
type ReadinessChecker interface {
	Check(ctx context.Context) (compat.Result, error)
}

// Metrics is the subset of the metrics registry the router needs.
type Metrics interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

// Options holds the Handler's dependencies. Readiness, Metrics and
// LoginLimiter may be nil.
type Options struct {
	Storefront   *workflow.Storefront
	Backoffice   *workflow.Backoffice
	Sessions     *session.Manager
	Identity     identity.Resolver
	Views        *view.Renderer
	Readiness    ReadinessChecker
	Metrics      Metrics
	LoginLimiter *middleware.RateLimiter
	Logger       *slog.Logger
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store        *workflow.Storefront
	office       *workflow.Backoffice
	sessions     *session.Manager
	identity     identity.Resolver
	views        *view.Renderer
	readiness    ReadinessChecker
	metrics      Metrics
	loginLimiter *middleware.RateLimiter
	logger       *slog.Logger
}

func New(opts Options) *Handler {
	return &Handler{
		store:        opts.Storefront,
		office:       opts.Backoffice,
		sessions:     opts.Sessions,
		identity:     opts.Identity,
		views:        opts.Views,
		readiness:    opts.Readiness,
		metrics:      opts.Metrics,
		loginLimiter: opts.LoginLimiter,
		logger:       opts.Logger,
	}
}

// Routes builds the router with its middleware chain:
// request id → recovery → logging → metrics → cross-site guard → handler.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.Logging(h.logger))
	if h.metrics != nil {
		r.Use(middleware.Metrics(h.metrics))
	}
	r.Use(middleware.CrossSite(h.logger))

	r.NotFound(h.handleNotFound)

	// Operational endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(h.withSession)

		// Storefront
		r.Get("/", h.handleHome)
		r.Get("/products", h.handleCatalog)
		r.Get("/products/{id}", h.handleProduct)
		r.Get("/cart", h.handleCart)
		r.Post("/cart/items", h.handleAddCartItem)
		r.Post("/cart/items/{itemId}/qty", h.handleUpdateCartItem)
		r.Post("/cart/items/{itemId}/delete", h.handleDeleteCartItem)
		r.Get("/checkout", h.handleCheckout)
		r.Post("/checkout/submit", h.handleSubmitOrder)
		r.Get("/orders/lookup", h.handleLookupForm)
		r.Post("/orders/lookup", h.handleLookup)
		r.Get("/orders/{orderNo}", h.handleOrder)
		r.Post("/orders/{orderNo}/cancel", h.handleCancelOrder)

		// Back office
		r.Route("/admin", func(r chi.Router) {
			r.Get("/login", h.handleLoginForm)
			if h.loginLimiter != nil {
				r.With(h.loginLimiter.Handler).Post("/login", h.handleLogin)
			} else {
				r.Post("/login", h.handleLogin)
			}
			r.Post("/logout", h.handleLogout)
			r.Get("/orders", h.handleAdminOrders)
			r.Get("/orders/{orderId}", h.handleAdminOrder)
			r.Post("/orders/{orderId}/status", h.handleUpdateStatus)
			r.Post("/orders/{orderId}/shortage", h.handleShortage)
			r.Post("/orders/{orderId}/refunds", h.handleRefund)
			r.Get("/content", h.handleContent)
			r.Post("/content/promotions", h.handleCreatePromotion)
			r.Post("/content/banners", h.handleCreateBanner)
			r.Post("/content/notices", h.handleCreateNotice)
		})
	})

	return r
}

// === Response Helpers ===

type sidKey struct{}

// withSession resolves the browser's session id once per request so that
// every helper sees the same id, including on a first visit.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := h.sessions.ID(w, r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sidKey{}, sid)))
	})
}

// sid returns the request's session id.
func (h *Handler) sid(w http.ResponseWriter, r *http.Request) string {
	if sid, ok := r.Context().Value(sidKey{}).(string); ok {
		return sid
	}
	return h.sessions.ID(w, r)
}

// render shows a page, consuming any pending flash for this browser.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, admin bool, data any) {
	ctx := r.Context()
	sid := h.sid(w, r)

	flash, err := h.sessions.TakeFlash(ctx, sid)
	if err != nil {
		h.logger.WarnContext(ctx, "flash read failed", slog.String("error", err.Error()))
	}

	p := view.Page{Title: title, Flash: flash, Admin: admin, Data: data}
	if err := h.views.Render(w, status, page, p); err != nil {
		h.logger.ErrorContext(ctx, "render failed",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// follow stores the outcome's flash and redirects with 303 See Other. A new
// session id in the outcome is bound to the browser first.
func (h *Handler) follow(w http.ResponseWriter, r *http.Request, out workflow.Outcome) {
	sid := out.SessionID
	if sid != "" {
		h.sessions.Bind(w, sid)
	}
	if out.Flash != nil {
		if sid == "" {
			sid = h.sid(w, r)
		}
		if err := h.sessions.SetFlash(r.Context(), sid, *out.Flash); err != nil {
			h.logger.WarnContext(r.Context(), "flash write failed", slog.String("error", err.Error()))
		}
	}
	http.Redirect(w, r, out.Redirect, http.StatusSeeOther)
}

// followPtr follows out when a page read handed one back.
func (h *Handler) followPtr(w http.ResponseWriter, r *http.Request, out *workflow.Outcome) bool {
	if out == nil {
		return false
	}
	h.follow(w, r, *out)
	return true
}

// unavailable renders the failure page for a page read. Backend 404s become
// the not-found page; everything else is 502.
func (h *Handler) unavailable(w http.ResponseWriter, r *http.Request, op string, err error) {
	if model.StatusCode(err) == http.StatusNotFound {
		h.handleNotFound(w, r)
		return
	}
	h.logger.WarnContext(r.Context(), op+" failed",
		slog.String("error", err.Error()),
		slog.Int("backend_status", model.StatusCode(err)),
	)
	h.render(w, r, http.StatusBadGateway, view.Unavailable, "Unavailable", false, nil)
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, view.NotFound, "Not found", false, nil)
}

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// parseForm limits and parses the request body. Failure is treated as an
// empty form.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFormSize)
	if err := r.ParseForm(); err != nil {
		h.logger.InfoContext(r.Context(), "form parse failed", slog.String("error", err.Error()))
	}
}

// pathInt reads an integer URL parameter.
func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	return n, err == nil
}

// pathString reads a URL parameter, undoing any percent-encoding chi kept
// from the raw path.
func pathString(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

// formBool reports whether a checkbox-style field is set.
func formBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(key))) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

// === Operational ===

type healthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple liveness response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type readyResponse struct {
	Status         string `json:"status"`
	BackendVersion string `json:"backend_version,omitempty"`
	MinVersion     string `json:"min_version,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleReady probes the backend version.
// GET /readyz
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.readiness == nil {
		h.writeJSON(w, http.StatusOK, readyResponse{Status: "ok"})
		return
	}
	res, err := h.readiness.Check(r.Context())
	resp := readyResponse{Status: "ok", BackendVersion: res.BackendVersion, MinVersion: res.MinVersion}
	if err != nil {
		resp.Status = "unavailable"
		resp.Error = err.Error()
		h.logger.WarnContext(r.Context(), "readiness check failed", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}
