// Package market implements gateway.Gateway over the commerce REST API.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"market-web/internal/gateway"
	"market-web/internal/model"
	"market-web/internal/transport"
)

// userAgent identifies this front end in backend access logs.
const userAgent = "market-web/1.0"

// adminTokenHeader carries the admin bearer token on every /admin call.
const adminTokenHeader = "X-Admin-Token"

// defaultTimeout bounds a single backend call end to end.
const defaultTimeout = 30 * time.Second

// Observer receives one sample per backend call. Status is 0 when no
// response was received.
type Observer interface {
	ObserveBackend(operation string, status int, d time.Duration)
}

// Config configures the HTTP gateway.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Transport defaults to transport.New(transport.ProfileDefault, Timeout).
	Transport http.RoundTripper

	// Observer is optional.
	Observer Observer
}

// Client is the HTTP implementation of gateway.Gateway.
// It holds no per-shopper state; the session key and admin token are passed
// on every call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	observer   Observer
}

// New creates a commerce API client with the given configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("market API base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("market API base URL %q is not an absolute URL", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rt := cfg.Transport
	if rt == nil {
		rt = transport.New(transport.ProfileDefault, timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: rt,
		},
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		observer: cfg.Observer,
	}, nil
}

// === Catalog ===

func (c *Client) Home(ctx context.Context) (*model.Home, error) {
	var home model.Home
	if err := c.do(ctx, "home", http.MethodGet, "/public/home", nil, "", nil, &home); err != nil {
		return nil, err
	}
	return &home, nil
}

func (c *Client) Products(ctx context.Context, q model.ProductQuery) ([]model.Product, error) {
	params := url.Values{}
	if q.CategoryID != nil {
		params.Set("category_id", strconv.Itoa(*q.CategoryID))
	}
	if s := strings.TrimSpace(q.Query); s != "" {
		params.Set("q", s)
	}
	if q.MinPrice != nil {
		params.Set("min_price", strconv.Itoa(*q.MinPrice))
	}
	if q.MaxPrice != nil {
		params.Set("max_price", strconv.Itoa(*q.MaxPrice))
	}
	if q.Promo != nil {
		params.Set("promo", strconv.FormatBool(*q.Promo))
	}
	if s := strings.TrimSpace(q.Sort); s != "" {
		params.Set("sort", s)
	}

	var products []model.Product
	if err := c.do(ctx, "list products", http.MethodGet, "/public/products", params, "", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) Product(ctx context.Context, id int) (*model.Product, error) {
	var p model.Product
	if err := c.do(ctx, "get product", http.MethodGet, "/public/products/"+strconv.Itoa(id), nil, "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// === Cart ===

type addCartItemBody struct {
	ProductID int `json:"product_id"`
	Qty       int `json:"qty"`
}

type updateCartItemBody struct {
	Qty int `json:"qty"`
}

func (c *Client) Cart(ctx context.Context, sessionKey string) (*model.Cart, error) {
	return c.cartCall(ctx, "get cart", http.MethodGet, "/cart", sessionKey, nil)
}

func (c *Client) AddCartItem(ctx context.Context, sessionKey string, productID, qty int) (*model.Cart, error) {
	return c.cartCall(ctx, "add cart item", http.MethodPost, "/cart/items", sessionKey,
		addCartItemBody{ProductID: productID, Qty: qty})
}

func (c *Client) UpdateCartItem(ctx context.Context, sessionKey string, itemID, qty int) (*model.Cart, error) {
	return c.cartCall(ctx, "update cart item", http.MethodPatch, "/cart/items/"+strconv.Itoa(itemID), sessionKey,
		updateCartItemBody{Qty: qty})
}

func (c *Client) DeleteCartItem(ctx context.Context, sessionKey string, itemID int) (*model.Cart, error) {
	return c.cartCall(ctx, "delete cart item", http.MethodDelete, "/cart/items/"+strconv.Itoa(itemID), sessionKey, nil)
}

func (c *Client) cartCall(ctx context.Context, op, method, path, sessionKey string, body any) (*model.Cart, error) {
	var cart model.Cart
	params := url.Values{"session_key": {sessionKey}}
	if err := c.do(ctx, op, method, path, params, "", body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// === Checkout and orders ===

func (c *Client) Quote(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutQuote, error) {
	var quote model.CheckoutQuote
	if err := c.do(ctx, "quote checkout", http.MethodPost, "/checkout/quote", nil, "", req, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func (c *Client) CreateOrder(ctx context.Context, req *model.OrderCreateRequest) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, "create order", http.MethodPost, "/orders", nil, "", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) LookupOrder(ctx context.Context, orderNo, phone string) (*model.Order, error) {
	var order model.Order
	params := url.Values{"order_no": {orderNo}, "phone": {phone}}
	if err := c.do(ctx, "lookup order", http.MethodGet, "/orders/lookup", params, "", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) Order(ctx context.Context, orderNo, phone string) (*model.Order, error) {
	var order model.Order
	params := url.Values{"phone": {phone}}
	if err := c.do(ctx, "get order", http.MethodGet, "/orders/"+url.PathEscape(orderNo), params, "", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderNo, phone, reason string) (*model.Order, error) {
	var order model.Order
	params := url.Values{"phone": {phone}}
	path := "/orders/" + url.PathEscape(orderNo) + "/cancel-requests"
	if err := c.do(ctx, "cancel order", http.MethodPost, path, params, "", model.CancelRequest{Reason: reason}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// === Admin ===

func (c *Client) AdminLogin(ctx context.Context, username, password string) (*model.AdminLoginResponse, error) {
	var resp model.AdminLoginResponse
	body := model.AdminLoginRequest{Username: username, Password: password}
	if err := c.do(ctx, "admin login", http.MethodPost, "/admin/auth/login", nil, "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) AdminOrders(ctx context.Context, token string, status model.OrderStatus) ([]model.Order, error) {
	var params url.Values
	if status != "" {
		params = url.Values{"status": {string(status)}}
	}
	var orders []model.Order
	if err := c.do(ctx, "list admin orders", http.MethodGet, "/admin/orders", params, token, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) AdminOrder(ctx context.Context, token string, orderID int) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, "get admin order", http.MethodGet, adminOrderPath(orderID, ""), nil, token, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, token string, orderID int, req *model.OrderStatusUpdate) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, "update order status", http.MethodPatch, adminOrderPath(orderID, "/status"), nil, token, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ApplyShortageAction(ctx context.Context, token string, orderID int, req *model.ShortageActionRequest) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, "apply shortage action", http.MethodPost, adminOrderPath(orderID, "/shortage-actions"), nil, token, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateRefund discards the refund record; the back office re-reads the order.
func (c *Client) CreateRefund(ctx context.Context, token string, orderID int, req *model.RefundRequest) error {
	return c.do(ctx, "create refund", http.MethodPost, adminOrderPath(orderID, "/refunds"), nil, token, req, nil)
}

func adminOrderPath(orderID int, suffix string) string {
	return "/admin/orders/" + strconv.Itoa(orderID) + suffix
}

func (c *Client) Promotions(ctx context.Context, token string) ([]model.AdminPromotion, error) {
	var out []model.AdminPromotion
	if err := c.do(ctx, "list promotions", http.MethodGet, "/admin/promotions", nil, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePromotion(ctx context.Context, token string, req *model.PromotionCreateRequest) (*model.AdminPromotion, error) {
	var out model.AdminPromotion
	if err := c.do(ctx, "create promotion", http.MethodPost, "/admin/promotions", nil, token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Banners(ctx context.Context, token string) ([]model.Banner, error) {
	var out []model.Banner
	if err := c.do(ctx, "list banners", http.MethodGet, "/admin/banners", nil, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateBanner(ctx context.Context, token string, req *model.BannerCreateRequest) (*model.Banner, error) {
	var out model.Banner
	if err := c.do(ctx, "create banner", http.MethodPost, "/admin/banners", nil, token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Notices(ctx context.Context, token string) ([]model.AdminNotice, error) {
	var out []model.AdminNotice
	if err := c.do(ctx, "list notices", http.MethodGet, "/admin/notices", nil, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateNotice(ctx context.Context, token string, req *model.NoticeCreateRequest) (*model.AdminNotice, error) {
	var out model.AdminNotice
	if err := c.do(ctx, "create notice", http.MethodPost, "/admin/notices", nil, token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// === Service metadata ===

// Version returns info.version from the backend's OpenAPI document.
func (c *Client) Version(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "openapi", http.MethodGet, "/openapi.json", nil, "", nil, &raw); err != nil {
		return "", err
	}
	v := gjson.GetBytes(raw, "info.version")
	if !v.Exists() || v.String() == "" {
		return "", fmt.Errorf("openapi: info.version missing")
	}
	return v.String(), nil
}

// === Transport ===

// do performs one backend request. out may be nil when the body is ignored.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, token string, body, out any) error {
	start := time.Now()
	status := 0
	if c.observer != nil {
		defer func() { c.observer.ObserveBackend(op, status, time.Since(start)) }()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshaling request: %w", op, err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(adminTokenHeader, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return model.NewUnavailableError(op, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.NewUnavailableError(op, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.NewBackendError(op, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: parsing response: %w", op, err)
	}
	return nil
}

// Verify Client implements Gateway interface at compile time.
var _ gateway.Gateway = (*Client)(nil)
