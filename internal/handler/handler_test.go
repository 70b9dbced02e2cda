package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-web/internal/admin"
	"market-web/internal/compat"
	"market-web/internal/gateway"
	"market-web/internal/identity"
	"market-web/internal/metrics"
	"market-web/internal/middleware"
	"market-web/internal/model"
	"market-web/internal/session"
	"market-web/internal/view"
	"market-web/internal/workflow"
)

// testEnv drives the router like a browser that keeps its cookies and does
// not follow redirects.
type testEnv struct {
	t       *testing.T
	gw      *gateway.Mock
	router  http.Handler
	cookies map[string]*http.Cookie
}

type envOption func(*Options)

func newTestEnv(t *testing.T, gw *gateway.Mock, opts ...envOption) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	views, err := view.New()
	require.NoError(t, err)
	store := session.NewMemoryStore(time.Hour)
	o := Options{
		Storefront: workflow.NewStorefront(gw, logger, workflow.StorefrontConfig{Location: time.UTC}),
		Backoffice: workflow.NewBackoffice(gw, admin.NewManager(gw, store, logger, nil), logger, time.UTC),
		Sessions:   session.NewManager(store, false),
		Identity:   identity.Resolver{},
		Views:      views,
		Logger:     logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &testEnv{t: t, gw: gw, router: New(o).Routes(), cookies: map[string]*http.Cookie{}}
}

func (e *testEnv) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	e.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range e.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		e.cookies[c.Name] = c
	}
	return w
}

func (e *testEnv) login() {
	e.t.Helper()
	wantRedirect(e.t, e.do("POST", "/admin/login", url.Values{"username": {"admin"}, "password": {"pw"}}), "/admin/orders")
}

func wantRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, w.Code, "body %q", w.Body.String())
	assert.Equal(t, location, w.Header().Get("Location"))
}

func acceptLogin(context.Context, string, string) (*model.AdminLoginResponse, error) {
	return &model.AdminLoginResponse{AccessToken: "tok"}, nil
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, &gateway.Mock{})

	for _, path := range []string{"/health", "/healthz"} {
		w := env.do("GET", path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		var resp healthResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "ok", resp.Status, path)
	}
	assert.Empty(t, env.cookies, "health check sets no cookies")
}

type fakeChecker struct {
	res compat.Result
	err error
}

func (f fakeChecker) Check(context.Context) (compat.Result, error) { return f.res, f.err }

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name       string
		checker    fakeChecker
		wantStatus int
		wantBody   string
	}{
		{"compatible", fakeChecker{res: compat.Result{BackendVersion: "1.4.0", MinVersion: "1.2.0", Compatible: true}}, http.StatusOK, `"backend_version":"1.4.0"`},
		{"incompatible", fakeChecker{res: compat.Result{BackendVersion: "1.0.0", MinVersion: "1.2.0"}, err: compat.ErrIncompatible}, http.StatusServiceUnavailable, `"status":"unavailable"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &gateway.Mock{}, func(o *Options) { o.Readiness = tt.checker })
			w := env.do("GET", "/readyz", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestShopperIdentityIsStable(t *testing.T) {
	var keys []string
	gw := &gateway.Mock{
		CartFunc: func(_ context.Context, key string) (*model.Cart, error) {
			keys = append(keys, key)
			return &model.Cart{SessionKey: key}, nil
		},
	}
	env := newTestEnv(t, gw)

	w := env.do("GET", "/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	issued, ok := env.cookies[identity.CookieName]
	require.True(t, ok, "no shopper cookie issued")
	assert.True(t, issued.HttpOnly)
	assert.Equal(t, "/", issued.Path)

	w = env.do("GET", "/cart", nil)
	for _, c := range w.Result().Cookies() {
		assert.NotEqual(t, identity.CookieName, c.Name, "cookie re-issued for known shopper")
	}
	assert.Equal(t, []string{issued.Value, issued.Value}, keys)

	// A fresh browser gets a different key.
	other := newTestEnv(t, gw)
	other.do("GET", "/cart", nil)
	assert.NotEqual(t, issued.Value, other.cookies[identity.CookieName].Value)
}

func TestCartMutationRedirectsWithFlash(t *testing.T) {
	gw := &gateway.Mock{
		AddCartItemFunc: func(_ context.Context, _ string, productID, qty int) (*model.Cart, error) {
			assert.Equal(t, 10, productID)
			assert.Equal(t, 3, qty)
			return &model.Cart{}, nil
		},
		CartFunc: func(context.Context, string) (*model.Cart, error) { return &model.Cart{}, nil },
	}
	env := newTestEnv(t, gw)

	w := env.do("POST", "/cart/items", url.Values{"productId": {"10"}, "qty": {"3"}})
	wantRedirect(t, w, "/cart")

	w = env.do("GET", "/cart", nil)
	assert.Contains(t, w.Body.String(), workflow.MsgCartAdded)

	w = env.do("GET", "/cart", nil)
	assert.NotContains(t, w.Body.String(), workflow.MsgCartAdded, "flash is shown once")
}

func TestAddCartItemMalformedProduct(t *testing.T) {
	gw := &gateway.Mock{}
	env := newTestEnv(t, gw)

	w := env.do("POST", "/cart/items", url.Values{"productId": {"abc"}, "qty": {"1"}})
	wantRedirect(t, w, "/cart")
	assert.Empty(t, gw.Calls())
}

func TestCartQtyIsRequired(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		form     url.Values
		wantText string
	}{
		{"add without qty", "/cart/items", url.Values{"productId": {"10"}}, workflow.MsgCartAddFailed},
		{"add blank qty", "/cart/items", url.Values{"productId": {"10"}, "qty": {"  "}}, workflow.MsgCartAddFailed},
		{"add non-numeric qty", "/cart/items", url.Values{"productId": {"10"}, "qty": {"abc"}}, workflow.MsgCartAddFailed},
		{"update without qty", "/cart/items/5/qty", url.Values{}, workflow.MsgCartQtyFailed},
		{"update blank qty", "/cart/items/5/qty", url.Values{"qty": {""}}, workflow.MsgCartQtyFailed},
		{"update non-numeric qty", "/cart/items/5/qty", url.Values{"qty": {"2.5"}}, workflow.MsgCartQtyFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &gateway.Mock{}
			env := newTestEnv(t, gw)

			wantRedirect(t, env.do("POST", tt.path, tt.form), "/cart")
			assert.Empty(t, gw.Calls(), "no backend call without a quantity")

			gw.CartFunc = func(context.Context, string) (*model.Cart, error) { return &model.Cart{}, nil }
			assert.Contains(t, env.do("GET", "/cart", nil).Body.String(), tt.wantText)
		})
	}
}

func TestCheckoutInvalidQuoteRenders(t *testing.T) {
	gw := &gateway.Mock{
		CartFunc: func(context.Context, string) (*model.Cart, error) {
			return &model.Cart{Items: []model.CartItem{{ID: 1, ProductName: "Tofu", Qty: 1, LineTotal: decimal.NewFromInt(2000)}}}, nil
		},
		QuoteFunc: func(_ context.Context, req *model.CheckoutRequest) (*model.CheckoutQuote, error) {
			assert.Equal(t, workflow.DefaultDongCode, req.DongCode)
			return &model.CheckoutQuote{Valid: false, Errors: []string{"minimum order amount not met"}}, nil
		},
	}
	env := newTestEnv(t, gw)

	w := env.do("GET", "/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Tofu")
	assert.Contains(t, body, "minimum order amount not met")
	assert.NotContains(t, gw.Calls(), "CreateOrder", "rendering checkout never places an order")
}

func TestSubmitOrderRedirectsToDetail(t *testing.T) {
	gw := &gateway.Mock{
		CreateOrderFunc: func(_ context.Context, req *model.OrderCreateRequest) (*model.Order, error) {
			assert.True(t, req.AllowSubstitution)
			return &model.Order{OrderNo: "ORD-1001"}, nil
		},
	}
	env := newTestEnv(t, gw)

	w := env.do("POST", "/checkout/submit", url.Values{
		"customerName":      {"Lee"},
		"customerPhone":     {"0101234567"},
		"addressLine1":      {"12 Market-ro"},
		"allowSubstitution": {"true"},
	})
	wantRedirect(t, w, "/orders/ORD-1001?phone=0101234567")
}

func TestCancelFailureReturnsToOrder(t *testing.T) {
	gw := &gateway.Mock{
		CancelOrderFunc: func(context.Context, string, string, string) (*model.Order, error) {
			return nil, model.NewBackendError("cancel order", 409, []byte(`{"detail":"already out for delivery"}`))
		},
		OrderFunc: func(_ context.Context, orderNo, _ string) (*model.Order, error) {
			return &model.Order{OrderNo: orderNo, Status: model.OrderOutForDelivery}, nil
		},
	}
	env := newTestEnv(t, gw)

	w := env.do("POST", "/orders/ORD-1001/cancel", url.Values{"phone": {"0101234567"}})
	wantRedirect(t, w, "/orders/ORD-1001?phone=0101234567")

	w = env.do("GET", "/orders/ORD-1001?phone=0101234567", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), workflow.MsgCancelFailed)
}

func TestOrderWithoutPhoneRedirectsToLookup(t *testing.T) {
	gw := &gateway.Mock{}
	env := newTestEnv(t, gw)

	wantRedirect(t, env.do("GET", "/orders/ORD-1001", nil), "/orders/lookup")
	assert.Empty(t, gw.Calls())
}

func TestLookupSubmit(t *testing.T) {
	gw := &gateway.Mock{
		LookupOrderFunc: func(_ context.Context, orderNo, phone string) (*model.Order, error) {
			if phone == "0101234567" {
				return &model.Order{OrderNo: orderNo}, nil
			}
			return nil, model.NewBackendError("lookup order", 404, nil)
		},
	}
	env := newTestEnv(t, gw)

	wantRedirect(t, env.do("POST", "/orders/lookup", url.Values{"orderNo": {"ORD-7"}, "phone": {"0101234567"}}),
		"/orders/ORD-7?phone=0101234567")
	wantRedirect(t, env.do("POST", "/orders/lookup", url.Values{"orderNo": {"ORD-7"}, "phone": {"000"}}),
		"/orders/lookup")

	w := env.do("GET", "/orders/lookup", nil)
	assert.Contains(t, w.Body.String(), workflow.MsgOrderNotFound)
}

func TestPageReadFailureIsUnavailable(t *testing.T) {
	gw := &gateway.Mock{
		HomeFunc: func(context.Context) (*model.Home, error) {
			return nil, model.NewUnavailableError("home", errors.New("connection refused"))
		},
	}
	env := newTestEnv(t, gw)

	w := env.do("GET", "/", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Temporarily unavailable")
}

func TestProductNotFound(t *testing.T) {
	gw := &gateway.Mock{
		ProductFunc: func(context.Context, int) (*model.Product, error) {
			return nil, model.NewBackendError("get product", 404, []byte(`{"detail":"Product not found"}`))
		},
	}
	env := newTestEnv(t, gw)

	assert.Equal(t, http.StatusNotFound, env.do("GET", "/products/999", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do("GET", "/products/abc", nil).Code)
	assert.Len(t, gw.Calls(), 1, "malformed id never reaches the backend")
}

func TestAdminGuardRedirectsWithoutCalls(t *testing.T) {
	gw := &gateway.Mock{}
	env := newTestEnv(t, gw)

	requests := []struct {
		method string
		path   string
		form   url.Values
	}{
		{"GET", "/admin/orders", nil},
		{"GET", "/admin/orders/1", nil},
		{"GET", "/admin/content", nil},
		{"POST", "/admin/orders/1/status", url.Values{"status": {"PICKING"}}},
		{"POST", "/admin/orders/1/refunds", url.Values{"amount": {"1000"}}},
		{"POST", "/admin/content/notices", url.Values{"title": {"x"}, "startAt": {"2026-03-01T00:00"}, "endAt": {"2026-03-02T00:00"}}},
	}
	for _, rq := range requests {
		t.Run(rq.method+" "+rq.path, func(t *testing.T) {
			wantRedirect(t, env.do(rq.method, rq.path, rq.form), "/admin/login")
		})
	}
	assert.Empty(t, gw.Calls())

	w := env.do("GET", "/admin/login", nil)
	assert.Contains(t, w.Body.String(), workflow.MsgLoginRequired)
}

func TestAdminLoginIssuesFreshSession(t *testing.T) {
	const planted = "11111111-2222-4333-8444-555555555555"
	gw := &gateway.Mock{
		AdminLoginFunc: acceptLogin,
		AdminOrdersFunc: func(context.Context, string, model.OrderStatus) ([]model.Order, error) {
			return nil, nil
		},
	}
	env := newTestEnv(t, gw)
	env.cookies[session.CookieName] = &http.Cookie{Name: session.CookieName, Value: planted}

	w := env.do("POST", "/admin/login", url.Values{"username": {"admin"}, "password": {"pw"}})
	wantRedirect(t, w, "/admin/orders")

	var issued *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			issued = c
		}
	}
	require.NotNil(t, issued, "login must set a new session cookie")
	assert.NotEqual(t, planted, issued.Value)
	assert.True(t, issued.HttpOnly)

	assert.Equal(t, http.StatusOK, env.do("GET", "/admin/orders", nil).Code)

	// The id known before login grants nothing.
	attacker := newTestEnv(t, gw)
	attacker.router = env.router
	attacker.cookies[session.CookieName] = &http.Cookie{Name: session.CookieName, Value: planted}
	wantRedirect(t, attacker.do("GET", "/admin/orders", nil), "/admin/login")
	assert.Equal(t, []string{"AdminLogin", "AdminOrders"}, gw.Calls())
}

func TestAdminLoginFailureKeepsSession(t *testing.T) {
	gw := &gateway.Mock{
		AdminLoginFunc: func(context.Context, string, string) (*model.AdminLoginResponse, error) {
			return nil, model.NewBackendError("admin login", 401, nil)
		},
	}
	env := newTestEnv(t, gw)
	env.do("GET", "/admin/login", nil)
	before := env.cookies[session.CookieName]
	require.NotNil(t, before)

	w := env.do("POST", "/admin/login", url.Values{"username": {"admin"}, "password": {"nope"}})
	wantRedirect(t, w, "/admin/login")
	for _, c := range w.Result().Cookies() {
		assert.NotEqual(t, session.CookieName, c.Name, "failed login does not rotate the session")
	}
	assert.Contains(t, env.do("GET", "/admin/login", nil).Body.String(), workflow.MsgLoginFailed)
}

func TestAdminTokenEvictedOnUnauthorized(t *testing.T) {
	gw := &gateway.Mock{
		AdminLoginFunc: acceptLogin,
		AdminOrdersFunc: func(context.Context, string, model.OrderStatus) ([]model.Order, error) {
			return nil, model.NewBackendError("list admin orders", 401, nil)
		},
	}
	env := newTestEnv(t, gw)

	env.login()
	wantRedirect(t, env.do("GET", "/admin/orders", nil), "/admin/login")
	wantRedirect(t, env.do("GET", "/admin/orders", nil), "/admin/login")

	assert.Equal(t, []string{"AdminLogin", "AdminOrders"}, gw.Calls())
}

func TestAdminOrdersBackendFailureRendersUnavailable(t *testing.T) {
	gw := &gateway.Mock{
		AdminLoginFunc: acceptLogin,
		AdminOrdersFunc: func(context.Context, string, model.OrderStatus) ([]model.Order, error) {
			return nil, model.NewBackendError("list admin orders", 500, []byte(`Internal Server Error`))
		},
	}
	env := newTestEnv(t, gw)
	env.login()

	w := env.do("GET", "/admin/orders", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.Contains(t, w.Body.String(), "Temporarily unavailable")

	// The token survives a server error, so the next load retries the backend.
	assert.Equal(t, http.StatusBadGateway, env.do("GET", "/admin/orders", nil).Code)
	assert.Equal(t, []string{"AdminLogin", "AdminOrders", "AdminOrders"}, gw.Calls())
}

func TestAdminContentMixedFailuresEvict(t *testing.T) {
	gw := &gateway.Mock{
		AdminLoginFunc: acceptLogin,
		PromotionsFunc: func(context.Context, string) ([]model.AdminPromotion, error) {
			return nil, model.NewBackendError("list promotions", 500, nil)
		},
		BannersFunc: func(context.Context, string) ([]model.Banner, error) {
			time.Sleep(20 * time.Millisecond)
			return nil, model.NewBackendError("list banners", 401, nil)
		},
		NoticesFunc: func(context.Context, string) ([]model.AdminNotice, error) { return nil, nil },
	}
	env := newTestEnv(t, gw)
	env.login()

	wantRedirect(t, env.do("GET", "/admin/content", nil), "/admin/login")
	wantRedirect(t, env.do("GET", "/admin/orders", nil), "/admin/login")
	assert.NotContains(t, gw.Calls(), "AdminOrders", "evicted token is not reused")
}

func TestAdminOrdersPage(t *testing.T) {
	gw := &gateway.Mock{
		AdminLoginFunc: acceptLogin,
		AdminOrdersFunc: func(_ context.Context, token string, status model.OrderStatus) ([]model.Order, error) {
			assert.Equal(t, "tok", token)
			assert.Equal(t, model.OrderPicking, status)
			return []model.Order{{ID: 5, OrderNo: "ORD-5", Status: model.OrderPicking}}, nil
		},
	}
	env := newTestEnv(t, gw)
	env.login()

	w := env.do("GET", "/admin/orders?status=PICKING", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/admin/orders/5"`)
}

func TestCrossSitePostRejected(t *testing.T) {
	gw := &gateway.Mock{}
	env := newTestEnv(t, gw)

	req := httptest.NewRequest("POST", "/cart/items", strings.NewReader("productId=1&qty=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, gw.Calls())
}

func TestLoginRateLimited(t *testing.T) {
	gw := &gateway.Mock{
		AdminLoginFunc: func(context.Context, string, string) (*model.AdminLoginResponse, error) {
			return nil, model.NewBackendError("admin login", 401, nil)
		},
	}
	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := newTestEnv(t, gw, func(o *Options) {
		o.LoginLimiter = middleware.NewRateLimiter(2, logger, m)
		o.Metrics = m
	})

	form := url.Values{"username": {"admin"}, "password": {"wrong"}}
	for i := 0; i < 2; i++ {
		wantRedirect(t, env.do("POST", "/admin/login", form), "/admin/login")
	}
	assert.Equal(t, http.StatusTooManyRequests, env.do("POST", "/admin/login", form).Code)
	assert.Len(t, gw.Calls(), 2)

	body := env.do("GET", "/metrics", nil).Body.String()
	assert.Contains(t, body, "market_web_admin_login_throttled_total 1")
	assert.Contains(t, body, `route="/admin/login"`)
}
