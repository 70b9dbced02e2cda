package gateway

import (
	"context"
	"net/http"
	"sync"

	"market-web/internal/model"
)

// Mock implements Gateway for testing.
// Each method can be configured via function fields. Unconfigured methods
// fail with a 501 BackendError so an unexpected call surfaces in the test.
type Mock struct {
	HomeFunc                func(ctx context.Context) (*model.Home, error)
	ProductsFunc            func(ctx context.Context, q model.ProductQuery) ([]model.Product, error)
	ProductFunc             func(ctx context.Context, id int) (*model.Product, error)
	CartFunc                func(ctx context.Context, sessionKey string) (*model.Cart, error)
	AddCartItemFunc         func(ctx context.Context, sessionKey string, productID, qty int) (*model.Cart, error)
	UpdateCartItemFunc      func(ctx context.Context, sessionKey string, itemID, qty int) (*model.Cart, error)
	DeleteCartItemFunc      func(ctx context.Context, sessionKey string, itemID int) (*model.Cart, error)
	QuoteFunc               func(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutQuote, error)
	CreateOrderFunc         func(ctx context.Context, req *model.OrderCreateRequest) (*model.Order, error)
	LookupOrderFunc         func(ctx context.Context, orderNo, phone string) (*model.Order, error)
	OrderFunc               func(ctx context.Context, orderNo, phone string) (*model.Order, error)
	CancelOrderFunc         func(ctx context.Context, orderNo, phone, reason string) (*model.Order, error)
	AdminLoginFunc          func(ctx context.Context, username, password string) (*model.AdminLoginResponse, error)
	AdminOrdersFunc         func(ctx context.Context, token string, status model.OrderStatus) ([]model.Order, error)
	AdminOrderFunc          func(ctx context.Context, token string, orderID int) (*model.Order, error)
	UpdateOrderStatusFunc   func(ctx context.Context, token string, orderID int, req *model.OrderStatusUpdate) (*model.Order, error)
	ApplyShortageActionFunc func(ctx context.Context, token string, orderID int, req *model.ShortageActionRequest) (*model.Order, error)
	CreateRefundFunc        func(ctx context.Context, token string, orderID int, req *model.RefundRequest) error
	PromotionsFunc          func(ctx context.Context, token string) ([]model.AdminPromotion, error)
	CreatePromotionFunc     func(ctx context.Context, token string, req *model.PromotionCreateRequest) (*model.AdminPromotion, error)
	BannersFunc             func(ctx context.Context, token string) ([]model.Banner, error)
	CreateBannerFunc        func(ctx context.Context, token string, req *model.BannerCreateRequest) (*model.Banner, error)
	NoticesFunc             func(ctx context.Context, token string) ([]model.AdminNotice, error)
	CreateNoticeFunc        func(ctx context.Context, token string, req *model.NoticeCreateRequest) (*model.AdminNotice, error)

	mu    sync.Mutex
	calls []string
}

// Calls returns the names of the methods invoked so far, in call order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Mock) record(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

func notConfigured(operation string) error {
	return &model.BackendError{Operation: operation, StatusCode: http.StatusNotImplemented}
}

// Home calls the configured HomeFunc or returns an error.
func (m *Mock) Home(ctx context.Context) (*model.Home, error) {
	m.record("Home")
	if m.HomeFunc != nil {
		return m.HomeFunc(ctx)
	}
	return nil, notConfigured("home")
}

// Products calls the configured ProductsFunc or returns an error.
func (m *Mock) Products(ctx context.Context, q model.ProductQuery) ([]model.Product, error) {
	m.record("Products")
	if m.ProductsFunc != nil {
		return m.ProductsFunc(ctx, q)
	}
	return nil, notConfigured("list products")
}

// Product calls the configured ProductFunc or returns an error.
func (m *Mock) Product(ctx context.Context, id int) (*model.Product, error) {
	m.record("Product")
	if m.ProductFunc != nil {
		return m.ProductFunc(ctx, id)
	}
	return nil, notConfigured("get product")
}

// Cart calls the configured CartFunc or returns an error.
func (m *Mock) Cart(ctx context.Context, sessionKey string) (*model.Cart, error) {
	m.record("Cart")
	if m.CartFunc != nil {
		return m.CartFunc(ctx, sessionKey)
	}
	return nil, notConfigured("get cart")
}

// AddCartItem calls the configured AddCartItemFunc or returns an error.
func (m *Mock) AddCartItem(ctx context.Context, sessionKey string, productID, qty int) (*model.Cart, error) {
	m.record("AddCartItem")
	if m.AddCartItemFunc != nil {
		return m.AddCartItemFunc(ctx, sessionKey, productID, qty)
	}
	return nil, notConfigured("add cart item")
}

// UpdateCartItem calls the configured UpdateCartItemFunc or returns an error.
func (m *Mock) UpdateCartItem(ctx context.Context, sessionKey string, itemID, qty int) (*model.Cart, error) {
	m.record("UpdateCartItem")
	if m.UpdateCartItemFunc != nil {
		return m.UpdateCartItemFunc(ctx, sessionKey, itemID, qty)
	}
	return nil, notConfigured("update cart item")
}

// DeleteCartItem calls the configured DeleteCartItemFunc or returns an error.
func (m *Mock) DeleteCartItem(ctx context.Context, sessionKey string, itemID int) (*model.Cart, error) {
	m.record("DeleteCartItem")
	if m.DeleteCartItemFunc != nil {
		return m.DeleteCartItemFunc(ctx, sessionKey, itemID)
	}
	return nil, notConfigured("delete cart item")
}

// Quote calls the configured QuoteFunc or returns an error.
func (m *Mock) Quote(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutQuote, error) {
	m.record("Quote")
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, req)
	}
	return nil, notConfigured("quote checkout")
}

// CreateOrder calls the configured CreateOrderFunc or returns an error.
func (m *Mock) CreateOrder(ctx context.Context, req *model.OrderCreateRequest) (*model.Order, error) {
	m.record("CreateOrder")
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return nil, notConfigured("create order")
}

// LookupOrder calls the configured LookupOrderFunc or returns an error.
func (m *Mock) LookupOrder(ctx context.Context, orderNo, phone string) (*model.Order, error) {
	m.record("LookupOrder")
	if m.LookupOrderFunc != nil {
		return m.LookupOrderFunc(ctx, orderNo, phone)
	}
	return nil, notConfigured("lookup order")
}

// Order calls the configured OrderFunc or returns an error.
func (m *Mock) Order(ctx context.Context, orderNo, phone string) (*model.Order, error) {
	m.record("Order")
	if m.OrderFunc != nil {
		return m.OrderFunc(ctx, orderNo, phone)
	}
	return nil, notConfigured("get order")
}

// CancelOrder calls the configured CancelOrderFunc or returns an error.
func (m *Mock) CancelOrder(ctx context.Context, orderNo, phone, reason string) (*model.Order, error) {
	m.record("CancelOrder")
	if m.CancelOrderFunc != nil {
		return m.CancelOrderFunc(ctx, orderNo, phone, reason)
	}
	return nil, notConfigured("cancel order")
}

// AdminLogin calls the configured AdminLoginFunc or returns an error.
func (m *Mock) AdminLogin(ctx context.Context, username, password string) (*model.AdminLoginResponse, error) {
	m.record("AdminLogin")
	if m.AdminLoginFunc != nil {
		return m.AdminLoginFunc(ctx, username, password)
	}
	return nil, notConfigured("admin login")
}

// AdminOrders calls the configured AdminOrdersFunc or returns an error.
func (m *Mock) AdminOrders(ctx context.Context, token string, status model.OrderStatus) ([]model.Order, error) {
	m.record("AdminOrders")
	if m.AdminOrdersFunc != nil {
		return m.AdminOrdersFunc(ctx, token, status)
	}
	return nil, notConfigured("list admin orders")
}

// AdminOrder calls the configured AdminOrderFunc or returns an error.
func (m *Mock) AdminOrder(ctx context.Context, token string, orderID int) (*model.Order, error) {
	m.record("AdminOrder")
	if m.AdminOrderFunc != nil {
		return m.AdminOrderFunc(ctx, token, orderID)
	}
	return nil, notConfigured("get admin order")
}

// UpdateOrderStatus calls the configured UpdateOrderStatusFunc or returns an error.
func (m *Mock) UpdateOrderStatus(ctx context.Context, token string, orderID int, req *model.OrderStatusUpdate) (*model.Order, error) {
	m.record("UpdateOrderStatus")
	if m.UpdateOrderStatusFunc != nil {
		return m.UpdateOrderStatusFunc(ctx, token, orderID, req)
	}
	return nil, notConfigured("update order status")
}

// ApplyShortageAction calls the configured ApplyShortageActionFunc or returns an error.
func (m *Mock) ApplyShortageAction(ctx context.Context, token string, orderID int, req *model.ShortageActionRequest) (*model.Order, error) {
	m.record("ApplyShortageAction")
	if m.ApplyShortageActionFunc != nil {
		return m.ApplyShortageActionFunc(ctx, token, orderID, req)
	}
	return nil, notConfigured("apply shortage action")
}

// CreateRefund calls the configured CreateRefundFunc or returns an error.
func (m *Mock) CreateRefund(ctx context.Context, token string, orderID int, req *model.RefundRequest) error {
	m.record("CreateRefund")
	if m.CreateRefundFunc != nil {
		return m.CreateRefundFunc(ctx, token, orderID, req)
	}
	return notConfigured("create refund")
}

// Promotions calls the configured PromotionsFunc or returns an error.
func (m *Mock) Promotions(ctx context.Context, token string) ([]model.AdminPromotion, error) {
	m.record("Promotions")
	if m.PromotionsFunc != nil {
		return m.PromotionsFunc(ctx, token)
	}
	return nil, notConfigured("list promotions")
}

// CreatePromotion calls the configured CreatePromotionFunc or returns an error.
func (m *Mock) CreatePromotion(ctx context.Context, token string, req *model.PromotionCreateRequest) (*model.AdminPromotion, error) {
	m.record("CreatePromotion")
	if m.CreatePromotionFunc != nil {
		return m.CreatePromotionFunc(ctx, token, req)
	}
	return nil, notConfigured("create promotion")
}

// Banners calls the configured BannersFunc or returns an error.
func (m *Mock) Banners(ctx context.Context, token string) ([]model.Banner, error) {
	m.record("Banners")
	if m.BannersFunc != nil {
		return m.BannersFunc(ctx, token)
	}
	return nil, notConfigured("list banners")
}

// CreateBanner calls the configured CreateBannerFunc or returns an error.
func (m *Mock) CreateBanner(ctx context.Context, token string, req *model.BannerCreateRequest) (*model.Banner, error) {
	m.record("CreateBanner")
	if m.CreateBannerFunc != nil {
		return m.CreateBannerFunc(ctx, token, req)
	}
	return nil, notConfigured("create banner")
}

// Notices calls the configured NoticesFunc or returns an error.
func (m *Mock) Notices(ctx context.Context, token string) ([]model.AdminNotice, error) {
	m.record("Notices")
	if m.NoticesFunc != nil {
		return m.NoticesFunc(ctx, token)
	}
	return nil, notConfigured("list notices")
}

// CreateNotice calls the configured CreateNoticeFunc or returns an error.
func (m *Mock) CreateNotice(ctx context.Context, token string, req *model.NoticeCreateRequest) (*model.AdminNotice, error) {
	m.record("CreateNotice")
	if m.CreateNoticeFunc != nil {
		return m.CreateNoticeFunc(ctx, token, req)
	}
	return nil, notConfigured("create notice")
}

// Verify Mock implements Gateway interface at compile time.
var _ Gateway = (*Mock)(nil)
