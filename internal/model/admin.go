package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdminLoginRequest is posted to the backend's admin auth endpoint.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLoginResponse carries the opaque bearer token.
type AdminLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Role        string `json:"role,omitempty"`
}

// OrderStatusUpdate is forwarded verbatim; no local state machine applies.
type OrderStatusUpdate struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

// Shortage action kinds understood by the backend.
const (
	ShortageFulfillPartial = "FULFILL_PARTIAL"
	ShortageSubstitute     = "SUBSTITUTE"
	ShortageCancelItem     = "CANCEL_ITEM"
)

// ShortageActionRequest remediates one order line that cannot be fully
// supplied. The optional fields are validated only by the backend.
type ShortageActionRequest struct {
	OrderItemID           int     `json:"order_item_id"`
	Action                string  `json:"action"`
	FulfilledQty          *int    `json:"fulfilled_qty"`
	SubstitutionProductID *int    `json:"substitution_product_id"`
	SubstitutionQty       *int    `json:"substitution_qty"`
	Reason                *string `json:"reason"`
}

// DefaultRefundMethod is used when the admin does not pick a refund method.
const DefaultRefundMethod = "COD_ADJUSTMENT"

// RefundRequest registers a refund against an order.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	Method string          `json:"method"`
}

// AdminPromotion is the admin projection of a promotion.
type AdminPromotion struct {
	ID             int              `json:"id"`
	Title          string           `json:"title"`
	PromoType      string           `json:"promo_type"`
	StartAt        time.Time        `json:"start_at"`
	EndAt          time.Time        `json:"end_at"`
	IsActive       bool             `json:"is_active"`
	BannerImageURL *string          `json:"banner_image_url"`
	ProductIDs     []int            `json:"product_ids"`
	PromoPrice     *decimal.Decimal `json:"promo_price"`
}

// PromotionCreateRequest creates a time-windowed promotion.
type PromotionCreateRequest struct {
	Title          string           `json:"title"`
	PromoType      string           `json:"promo_type"`
	StartAt        time.Time        `json:"start_at"`
	EndAt          time.Time        `json:"end_at"`
	IsActive       bool             `json:"is_active"`
	BannerImageURL *string          `json:"banner_image_url"`
	ProductIDs     []int            `json:"product_ids"`
	PromoPrice     *decimal.Decimal `json:"promo_price"`
}

// Banner is a home-page banner.
type Banner struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	ImageURL     string    `json:"image_url"`
	LinkType     string    `json:"link_type"`
	LinkTarget   *string   `json:"link_target"`
	DisplayOrder int       `json:"display_order"`
	IsActive     bool      `json:"is_active"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
}

// BannerCreateRequest creates a banner.
type BannerCreateRequest struct {
	Title        string    `json:"title"`
	ImageURL     string    `json:"image_url"`
	LinkType     string    `json:"link_type"`
	LinkTarget   *string   `json:"link_target"`
	DisplayOrder int       `json:"display_order"`
	IsActive     bool      `json:"is_active"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
}

// AdminNotice is the admin projection of a notice.
type AdminNotice struct {
	ID       int       `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	IsPinned bool      `json:"is_pinned"`
	IsActive bool      `json:"is_active"`
}

// NoticeCreateRequest creates a notice.
type NoticeCreateRequest struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	IsPinned bool      `json:"is_pinned"`
	IsActive bool      `json:"is_active"`
}
