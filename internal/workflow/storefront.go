package workflow

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"market-web/internal/gateway"
	"market-web/internal/model"
)

// Customer-facing flash texts.
const (
	MsgCartAdded        = "Added to your cart."
	MsgCartAddFailed    = "Could not add the item to your cart."
	MsgCartUpdated      = "Cart updated."
	MsgCartQtyFailed    = "Could not change the quantity."
	MsgCartRemoved      = "Item removed from your cart."
	MsgCartDeleteFail   = "Could not remove the item."
	MsgOrderFailed      = "Could not place your order. Please check your cart and delivery details."
	MsgOrderNotFound    = "Order not found."
	MsgCancelAccepted   = "Your cancellation request was processed."
	MsgCancelFailed     = "This order can no longer be canceled."
	DefaultCancelReason = "Customer requested cancellation"
)

// DefaultDongCode is the delivery area quoted when the shopper picks none.
const DefaultDongCode = "1535011000"

// StorefrontConfig holds locale defaults.
type StorefrontConfig struct {
	DefaultDongCode string
	Location        *time.Location
}

// Storefront orchestrates the customer journey:
// browse, build a cart, quote, order, then track or cancel.
type Storefront struct {
	gw          gateway.Gateway
	logger      *slog.Logger
	defaultDong string
	loc         *time.Location
}

func NewStorefront(gw gateway.Gateway, logger *slog.Logger, cfg StorefrontConfig) *Storefront {
	s := &Storefront{
		gw:          gw,
		logger:      logger,
		defaultDong: orDefault(cfg.DefaultDongCode, DefaultDongCode),
		loc:         cfg.Location,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

// === Browsing ===

func (s *Storefront) Home(ctx context.Context) (*model.Home, error) {
	return s.gw.Home(ctx)
}

// CatalogPage is the product listing with the category filter options.
type CatalogPage struct {
	Query      model.ProductQuery
	Products   []model.Product
	Categories []model.Category
}

// Catalog fetches products and categories concurrently. Either failure fails
// the page.
func (s *Storefront) Catalog(ctx context.Context, q model.ProductQuery) (*CatalogPage, error) {
	page := &CatalogPage{Query: q}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := s.gw.Products(gctx, q)
		page.Products = products
		return err
	})
	g.Go(func() error {
		home, err := s.gw.Home(gctx)
		if err == nil {
			page.Categories = home.Categories
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Storefront) Product(ctx context.Context, id int) (*model.Product, error) {
	return s.gw.Product(ctx, id)
}

// === Cart ===

func (s *Storefront) Cart(ctx context.Context, sessionKey string) (*model.Cart, error) {
	return s.gw.Cart(ctx, sessionKey)
}

// AddCartItem forwards product and quantity verbatim; the backend validates.
func (s *Storefront) AddCartItem(ctx context.Context, sessionKey string, productID, qty int) Outcome {
	if _, err := s.gw.AddCartItem(ctx, sessionKey, productID, qty); err != nil {
		s.logger.WarnContext(ctx, "add cart item failed", append(backendAttrs(err), slog.Int("product_id", productID))...)
		return Failure("/cart", MsgCartAddFailed)
	}
	return success("/cart", MsgCartAdded)
}

func (s *Storefront) UpdateCartItem(ctx context.Context, sessionKey string, itemID, qty int) Outcome {
	if _, err := s.gw.UpdateCartItem(ctx, sessionKey, itemID, qty); err != nil {
		s.logger.WarnContext(ctx, "update cart item failed", append(backendAttrs(err), slog.Int("item_id", itemID))...)
		return Failure("/cart", MsgCartQtyFailed)
	}
	return success("/cart", MsgCartUpdated)
}

func (s *Storefront) DeleteCartItem(ctx context.Context, sessionKey string, itemID int) Outcome {
	if _, err := s.gw.DeleteCartItem(ctx, sessionKey, itemID); err != nil {
		s.logger.WarnContext(ctx, "delete cart item failed", append(backendAttrs(err), slog.Int("item_id", itemID))...)
		return Failure("/cart", MsgCartDeleteFail)
	}
	return success("/cart", MsgCartRemoved)
}

// === Checkout ===

// CheckoutPage pairs the cart with a fresh quote for one delivery area.
type CheckoutPage struct {
	DongCode string
	Cart     *model.Cart
	Quote    *model.CheckoutQuote
}

// Checkout fetches the cart and a quote concurrently. Both must succeed.
// An invalid quote still renders; the page shows the backend's reasons.
func (s *Storefront) Checkout(ctx context.Context, sessionKey, dongCode string) (*CheckoutPage, error) {
	page := &CheckoutPage{DongCode: orDefault(dongCode, s.defaultDong)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cart, err := s.gw.Cart(gctx, sessionKey)
		page.Cart = cart
		return err
	})
	g.Go(func() error {
		quote, err := s.gw.Quote(gctx, &model.CheckoutRequest{
			SessionKey: sessionKey,
			DongCode:   page.DongCode,
		})
		page.Quote = quote
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

// OrderForm is the checkout form as submitted.
type OrderForm struct {
	CustomerName        string
	CustomerPhone       string
	AddressLine1        string
	AddressLine2        string
	Building            string
	UnitNo              string
	DongCode            string
	ApartmentName       string
	Latitude            string
	Longitude           string
	RequestedSlot       string
	AllowSubstitution   bool
	DeliveryRequestNote string
}

// SubmitOrder places the order in a single backend call.
// An unparseable requested slot is dropped rather than rejected.
func (s *Storefront) SubmitOrder(ctx context.Context, sessionKey string, f OrderForm) Outcome {
	dong := orDefault(f.DongCode, s.defaultDong)
	phone := strings.TrimSpace(f.CustomerPhone)

	req := &model.OrderCreateRequest{
		SessionKey:          sessionKey,
		CustomerName:        strings.TrimSpace(f.CustomerName),
		CustomerPhone:       phone,
		AddressLine1:        strings.TrimSpace(f.AddressLine1),
		AddressLine2:        OptionalString(f.AddressLine2),
		Building:            OptionalString(f.Building),
		UnitNo:              OptionalString(f.UnitNo),
		DongCode:            dong,
		ApartmentName:       OptionalString(f.ApartmentName),
		Latitude:            OptionalFloat(f.Latitude),
		Longitude:           OptionalFloat(f.Longitude),
		RequestedSlotStart:  OptionalLocalDateTime(f.RequestedSlot, s.loc),
		AllowSubstitution:   f.AllowSubstitution,
		DeliveryRequestNote: OptionalString(f.DeliveryRequestNote),
	}

	order, err := s.gw.CreateOrder(ctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "create order failed", backendAttrs(err)...)
		return Failure("/checkout?"+url.Values{"dongCode": {dong}}.Encode(), MsgOrderFailed)
	}

	s.logger.InfoContext(ctx, "order created", slog.String("order_no", order.OrderNo))
	return redirect(OrderPath(order.OrderNo, phone))
}

// === Orders ===

// OrderPath is the customer order detail URL.
func OrderPath(orderNo, phone string) string {
	return "/orders/" + url.PathEscape(orderNo) + "?" + url.Values{"phone": {phone}}.Encode()
}

// LookupOrder verifies the pair before redirecting. ok is false when the
// backend does not recognise it; the caller re-shows the lookup form.
func (s *Storefront) LookupOrder(ctx context.Context, orderNo, phone string) (Outcome, bool) {
	orderNo, phone = strings.TrimSpace(orderNo), strings.TrimSpace(phone)
	if orderNo == "" || phone == "" {
		return Failure("/orders/lookup", MsgOrderNotFound), false
	}
	order, err := s.gw.LookupOrder(ctx, orderNo, phone)
	if err != nil {
		s.logger.InfoContext(ctx, "order lookup failed", backendAttrs(err)...)
		return Failure("/orders/lookup", MsgOrderNotFound), false
	}
	return redirect(OrderPath(order.OrderNo, phone)), true
}

// Order loads the detail view. A nil order comes with the Outcome to follow.
func (s *Storefront) Order(ctx context.Context, orderNo, phone string) (*model.Order, *Outcome) {
	order, err := s.gw.Order(ctx, orderNo, phone)
	if err != nil {
		s.logger.InfoContext(ctx, "order detail failed", append(backendAttrs(err), slog.String("order_no", orderNo))...)
		out := Failure("/orders/lookup", MsgOrderNotFound)
		return nil, &out
	}
	return order, nil
}

// CancelOrder submits a cancellation request once. Either way the shopper
// lands back on the order.
func (s *Storefront) CancelOrder(ctx context.Context, orderNo, phone, reason string) Outcome {
	back := OrderPath(orderNo, phone)
	if _, err := s.gw.CancelOrder(ctx, orderNo, phone, orDefault(reason, DefaultCancelReason)); err != nil {
		s.logger.WarnContext(ctx, "cancel order failed", append(backendAttrs(err), slog.String("order_no", orderNo))...)
		return Failure(back, MsgCancelFailed)
	}
	return success(back, MsgCancelAccepted)
}
