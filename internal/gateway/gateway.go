// Package gateway defines the contract between the web front end and the
// remote commerce API. Every backend capability the storefront and back office
// rely on is one method here.
package gateway

import (
	"context"

	"market-web/internal/model"
)

// Gateway abstracts the commerce API.
//
// Implementations issue exactly one backend request per call and never retry.
// A non-success response is returned as *model.BackendError; a transport
// failure wraps model.ErrBackendUnavailable.
type Gateway interface {
	// Home returns categories, featured products, live promotions and notices.
	Home(ctx context.Context) (*model.Home, error)

	// Products lists the catalog. Nil or blank query fields are not sent.
	Products(ctx context.Context, q model.ProductQuery) ([]model.Product, error)

	Product(ctx context.Context, id int) (*model.Product, error)

	// Cart returns the cart bound to the shopper session key.
	Cart(ctx context.Context, sessionKey string) (*model.Cart, error)
	AddCartItem(ctx context.Context, sessionKey string, productID, qty int) (*model.Cart, error)
	UpdateCartItem(ctx context.Context, sessionKey string, itemID, qty int) (*model.Cart, error)
	DeleteCartItem(ctx context.Context, sessionKey string, itemID int) (*model.Cart, error)

	// Quote prices the cart for a delivery area. The quote is never stored.
	Quote(ctx context.Context, req *model.CheckoutRequest) (*model.CheckoutQuote, error)

	CreateOrder(ctx context.Context, req *model.OrderCreateRequest) (*model.Order, error)

	// LookupOrder verifies an (order number, phone) pair.
	LookupOrder(ctx context.Context, orderNo, phone string) (*model.Order, error)
	Order(ctx context.Context, orderNo, phone string) (*model.Order, error)
	CancelOrder(ctx context.Context, orderNo, phone, reason string) (*model.Order, error)

	// AdminLogin exchanges credentials for an opaque bearer token.
	AdminLogin(ctx context.Context, username, password string) (*model.AdminLoginResponse, error)

	// Admin operations carry the token obtained from AdminLogin.
	AdminOrders(ctx context.Context, token string, status model.OrderStatus) ([]model.Order, error)
	AdminOrder(ctx context.Context, token string, orderID int) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, token string, orderID int, req *model.OrderStatusUpdate) (*model.Order, error)
	ApplyShortageAction(ctx context.Context, token string, orderID int, req *model.ShortageActionRequest) (*model.Order, error)
	CreateRefund(ctx context.Context, token string, orderID int, req *model.RefundRequest) error

	Promotions(ctx context.Context, token string) ([]model.AdminPromotion, error)
	CreatePromotion(ctx context.Context, token string, req *model.PromotionCreateRequest) (*model.AdminPromotion, error)
	Banners(ctx context.Context, token string) ([]model.Banner, error)
	CreateBanner(ctx context.Context, token string, req *model.BannerCreateRequest) (*model.Banner, error)
	Notices(ctx context.Context, token string) ([]model.AdminNotice, error)
	CreateNotice(ctx context.Context, token string, req *model.NoticeCreateRequest) (*model.AdminNotice, error)
}
