// Package model defines the data structures exchanged with the commerce API.
// Field names follow the backend's snake_case wire format.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// === Catalog ===

// Category is a product category listed on the home page and catalog filter.
type Category struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug,omitempty"`
	SortOrder int    `json:"sort_order,omitempty"`
}

// Product is a catalog entry. Prices are computed by the backend.
type Product struct {
	ID             int              `json:"id"`
	CategoryID     int              `json:"category_id"`
	CategoryName   string           `json:"category_name,omitempty"`
	Name           string           `json:"name"`
	SKU            string           `json:"sku,omitempty"`
	Description    string           `json:"description,omitempty"`
	UnitLabel      string           `json:"unit_label,omitempty"`
	OriginCountry  string           `json:"origin_country,omitempty"`
	StorageMethod  string           `json:"storage_method,omitempty"`
	IsWeightItem   bool             `json:"is_weight_item"`
	BasePrice      decimal.Decimal  `json:"base_price"`
	SalePrice      *decimal.Decimal `json:"sale_price,omitempty"`
	EffectivePrice decimal.Decimal  `json:"effective_price"`
	Status         string           `json:"status,omitempty"`
	StockQty       int              `json:"stock_qty"`
	MaxPerOrder    int              `json:"max_per_order,omitempty"`
}

// OnSale reports whether the backend applied a sale price.
func (p Product) OnSale() bool {
	return p.SalePrice != nil && p.EffectivePrice.LessThan(p.BasePrice)
}

// Promotion is the public projection of an admin-authored promotion.
type Promotion struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	PromoType string    `json:"promo_type"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	IsActive  bool      `json:"is_active"`
}

// Notice is the public projection of an admin-authored notice.
type Notice struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// Home is the landing page payload.
type Home struct {
	Categories       []Category  `json:"categories"`
	FeaturedProducts []Product   `json:"featured_products"`
	Promotions       []Promotion `json:"promotions"`
	Notices          []Notice    `json:"notices"`
}

// ProductQuery filters the catalog listing. Nil/blank fields are not sent.
type ProductQuery struct {
	CategoryID *int
	Query      string
	MinPrice   *int
	MaxPrice   *int
	Promo      *bool
	Sort       string
}

// === Cart ===

// CartItem is one cart line with backend-computed line total.
type CartItem struct {
	ID           int             `json:"id"`
	ProductID    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Qty          int             `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	StockQty     int             `json:"stock_qty"`
	IsWeightItem bool            `json:"is_weight_item"`
}

// Cart is the shopper's cart keyed by session key.
type Cart struct {
	SessionKey string          `json:"session_key"`
	Items      []CartItem      `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// === Checkout ===

// CheckoutRequest asks the backend for a delivery quote.
type CheckoutRequest struct {
	SessionKey         string     `json:"session_key"`
	DongCode           string     `json:"dong_code"`
	ApartmentName      *string    `json:"apartment_name"`
	Latitude           *float64   `json:"latitude"`
	Longitude          *float64   `json:"longitude"`
	RequestedSlotStart *time.Time `json:"requested_slot_start"`
}

// CheckoutQuote is recomputed on every checkout page view; never persisted.
type CheckoutQuote struct {
	Valid                 bool            `json:"valid"`
	Errors                []string        `json:"errors"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DeliveryFee           decimal.Decimal `json:"delivery_fee"`
	TotalEstimated        decimal.Decimal `json:"total_estimated"`
	MinOrderAmount        decimal.Decimal `json:"min_order_amount"`
	FreeDeliveryThreshold decimal.Decimal `json:"free_delivery_threshold"`
}

// === Orders ===

// OrderStatus is the backend's order lifecycle state.
type OrderStatus string

const (
	OrderReceived            OrderStatus = "RECEIVED"
	OrderPicking             OrderStatus = "PICKING"
	OrderSubstitutionPending OrderStatus = "SUBSTITUTION_PENDING"
	OrderOutForDelivery      OrderStatus = "OUT_FOR_DELIVERY"
	OrderDelivered           OrderStatus = "DELIVERED"
	OrderCanceled            OrderStatus = "CANCELED"
)

// OrderStatuses lists every lifecycle state in display order.
// The backend is the only authority on which transitions are legal.
var OrderStatuses = []OrderStatus{
	OrderReceived,
	OrderPicking,
	OrderSubstitutionPending,
	OrderOutForDelivery,
	OrderDelivered,
	OrderCanceled,
}

// OrderCreateRequest is the order submission payload.
type OrderCreateRequest struct {
	SessionKey          string     `json:"session_key"`
	CustomerName        string     `json:"customer_name"`
	CustomerPhone       string     `json:"customer_phone"`
	AddressLine1        string     `json:"address_line1"`
	AddressLine2        *string    `json:"address_line2"`
	Building            *string    `json:"building"`
	UnitNo              *string    `json:"unit_no"`
	DongCode            string     `json:"dong_code"`
	ApartmentName       *string    `json:"apartment_name"`
	Latitude            *float64   `json:"latitude"`
	Longitude           *float64   `json:"longitude"`
	RequestedSlotStart  *time.Time `json:"requested_slot_start"`
	AllowSubstitution   bool       `json:"allow_substitution"`
	DeliveryRequestNote *string    `json:"delivery_request_note"`
}

// OrderItem tracks ordered versus fulfilled quantity; fulfilled may be lower
// after a shortage action.
type OrderItem struct {
	ID                 int             `json:"id"`
	ProductID          int             `json:"product_id"`
	ProductName        string          `json:"product_name"`
	QtyOrdered         int             `json:"qty_ordered"`
	QtyFulfilled       *int            `json:"qty_fulfilled"`
	UnitPriceEstimated decimal.Decimal `json:"unit_price_estimated"`
	LineEstimated      decimal.Decimal `json:"line_estimated"`
	IsWeightItem       bool            `json:"is_weight_item"`
}

// Short reports whether fewer units were fulfilled than ordered.
func (i OrderItem) Short() bool {
	return i.QtyFulfilled != nil && *i.QtyFulfilled < i.QtyOrdered
}

// Order is addressed by customers through the (order_no, phone) pair and by
// admins through the numeric id.
type Order struct {
	ID                 int              `json:"id"`
	OrderNo            string           `json:"order_no"`
	Status             OrderStatus      `json:"status"`
	CustomerName       string           `json:"customer_name"`
	CustomerPhone      string           `json:"customer_phone"`
	SubtotalEstimated  decimal.Decimal  `json:"subtotal_estimated"`
	DeliveryFee        decimal.Decimal  `json:"delivery_fee"`
	TotalEstimated     decimal.Decimal  `json:"total_estimated"`
	TotalFinal         *decimal.Decimal `json:"total_final"`
	AllowSubstitution  bool             `json:"allow_substitution"`
	OrderedAt          time.Time        `json:"ordered_at"`
	RequestedSlotStart *time.Time       `json:"requested_slot_start"`
	Items              []OrderItem      `json:"items"`
}

// CancelRequest carries the customer's free-text cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}
