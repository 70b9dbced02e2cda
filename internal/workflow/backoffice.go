package workflow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"market-web/internal/admin"
	"market-web/internal/gateway"
	"market-web/internal/model"
)

// Back-office flash texts.
const (
	MsgLoginRequired     = "Your admin session has expired. Please log in again."
	MsgLoginFailed       = "Login failed."
	MsgLoggedOut         = "You have been logged out."
	MsgOrderDetailFailed = "Could not load the order."
	MsgStatusUpdated     = "Order status updated."
	MsgStatusFailed      = "Could not change the order status."
	MsgShortageApplied   = "Shortage action applied."
	MsgShortageFailed    = "Could not apply the shortage action."
	MsgRefundCreated     = "Refund registered."
	MsgRefundFailed      = "Could not register the refund."
	MsgContentFailed     = "Could not load content."
	MsgPromotionCreated  = "Promotion created."
	MsgPromotionFailed   = "Could not create the promotion."
	MsgBannerCreated     = "Banner created."
	MsgBannerFailed      = "Could not create the banner."
	MsgNoticeCreated     = "Notice created."
	MsgNoticeFailed      = "Could not create the notice."
)

// Defaults applied to blank form fields.
const (
	DefaultPromoType      = "WEEKLY"
	DefaultBannerLinkType = "PROMOTION"
)

const (
	pathLogin   = "/admin/login"
	pathOrders  = "/admin/orders"
	pathContent = "/admin/content"
)

// AdminOrderPath is the back-office order detail URL.
func AdminOrderPath(id int) string {
	return pathOrders + "/" + strconv.Itoa(id)
}

// Backoffice orchestrates admin operations. Every call except Login runs
// behind the admin guard.
type Backoffice struct {
	gw     gateway.Gateway
	admin  *admin.Manager
	logger *slog.Logger
	loc    *time.Location
}

// NewBackoffice creates a Backoffice. loc is used for content time windows;
// nil means the server's local zone.
func NewBackoffice(gw gateway.Gateway, am *admin.Manager, logger *slog.Logger, loc *time.Location) *Backoffice {
	if loc == nil {
		loc = time.Local
	}
	return &Backoffice{gw: gw, admin: am, logger: logger, loc: loc}
}

// LoggedIn reports whether the session currently holds a token.
func (b *Backoffice) LoggedIn(ctx context.Context, sid string) bool {
	_, ok := b.admin.CurrentToken(ctx, sid)
	return ok
}

// === Session ===

// Login authenticates and moves the browser onto a new session id.
func (b *Backoffice) Login(ctx context.Context, sid, username, password string) Outcome {
	fresh, err := b.admin.Login(ctx, sid, strings.TrimSpace(username), password)
	if err != nil {
		b.logger.WarnContext(ctx, "admin login failed", append(backendAttrs(err), slog.String("username", username))...)
		return Failure(pathLogin, MsgLoginFailed)
	}
	b.logger.InfoContext(ctx, "admin logged in", slog.String("username", username))
	out := redirect(pathOrders)
	out.SessionID = fresh
	return out
}

func (b *Backoffice) Logout(ctx context.Context, sid string) Outcome {
	b.admin.Evict(ctx, sid)
	return success(pathLogin, MsgLoggedOut)
}

// guarded runs fn behind the admin guard and maps the result onto the uniform
// outcome contract.
func (b *Backoffice) guarded(ctx context.Context, sid, op, back, okMsg, failMsg string, fn func(token string) error) Outcome {
	err := b.admin.Guard(ctx, sid, fn)
	switch {
	case err == nil:
		return success(back, okMsg)
	case admin.IsAuthFailure(err):
		return Failure(pathLogin, MsgLoginRequired)
	default:
		b.logger.WarnContext(ctx, op+" failed", backendAttrs(err)...)
		return Failure(back, failMsg)
	}
}

// readFailure maps a failed page read onto a redirect.
func (b *Backoffice) readFailure(ctx context.Context, op, back, msg string, err error) *Outcome {
	var out Outcome
	if admin.IsAuthFailure(err) {
		out = Failure(pathLogin, MsgLoginRequired)
	} else {
		b.logger.WarnContext(ctx, op+" failed", backendAttrs(err)...)
		out = Failure(back, msg)
	}
	return &out
}

// === Orders ===

// OrdersPage is the order list with its active status filter.
type OrdersPage struct {
	Status   model.OrderStatus
	Statuses []model.OrderStatus
	Orders   []model.Order
}

// ParseOrderStatus returns s when it names a known status, else "".
func ParseOrderStatus(s string) model.OrderStatus {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, st := range model.OrderStatuses {
		if string(st) == s {
			return st
		}
	}
	return ""
}

// Orders lists orders, optionally filtered by status. Unknown statuses are
// ignored. The Outcome is set when the admin has to log in; any other
// backend failure is returned for the caller to render, since the list is
// the back office's landing page and has nowhere else to send the admin.
func (b *Backoffice) Orders(ctx context.Context, sid, status string) (*OrdersPage, *Outcome, error) {
	page := &OrdersPage{Status: ParseOrderStatus(status), Statuses: model.OrderStatuses}
	err := b.admin.Guard(ctx, sid, func(token string) error {
		orders, err := b.gw.AdminOrders(ctx, token, page.Status)
		page.Orders = orders
		return err
	})
	switch {
	case err == nil:
		return page, nil, nil
	case admin.IsAuthFailure(err):
		out := Failure(pathLogin, MsgLoginRequired)
		return nil, &out, nil
	default:
		return nil, nil, err
	}
}

// OrderPage is one order with the forms that act on it.
type OrderPage struct {
	Order    *model.Order
	Statuses []model.OrderStatus
}

func (b *Backoffice) Order(ctx context.Context, sid string, id int) (*OrderPage, *Outcome) {
	page := &OrderPage{Statuses: model.OrderStatuses}
	err := b.admin.Guard(ctx, sid, func(token string) error {
		order, err := b.gw.AdminOrder(ctx, token, id)
		page.Order = order
		return err
	})
	if err != nil {
		return nil, b.readFailure(ctx, "get admin order", pathOrders, MsgOrderDetailFailed, err)
	}
	return page, nil
}

// UpdateOrderStatus forwards the requested status; the backend decides
// whether the transition is legal.
func (b *Backoffice) UpdateOrderStatus(ctx context.Context, sid string, id int, status, reason string) Outcome {
	req := &model.OrderStatusUpdate{
		Status: strings.TrimSpace(status),
		Reason: OptionalString(reason),
	}
	return b.guarded(ctx, sid, "update order status", pathOrders, MsgStatusUpdated, MsgStatusFailed,
		func(token string) error {
			_, err := b.gw.UpdateOrderStatus(ctx, token, id, req)
			return err
		})
}

// ShortageForm is the shortage action form as submitted.
type ShortageForm struct {
	OrderItemID           string
	Action                string
	FulfilledQty          string
	SubstitutionProductID string
	SubstitutionQty       string
	Reason                string
}

// ApplyShortage remediates one order line. Optional integers that are blank
// or malformed are omitted; a malformed line id fails without a backend call.
func (b *Backoffice) ApplyShortage(ctx context.Context, sid string, id int, f ShortageForm) Outcome {
	back := AdminOrderPath(id)
	itemID := OptionalInt(f.OrderItemID)
	if itemID == nil {
		return b.invalidForm(ctx, sid, back, MsgShortageFailed)
	}

	req := &model.ShortageActionRequest{
		OrderItemID:           *itemID,
		Action:                strings.TrimSpace(f.Action),
		FulfilledQty:          OptionalInt(f.FulfilledQty),
		SubstitutionProductID: OptionalInt(f.SubstitutionProductID),
		SubstitutionQty:       OptionalInt(f.SubstitutionQty),
		Reason:                OptionalString(f.Reason),
	}
	return b.guarded(ctx, sid, "apply shortage action", back, MsgShortageApplied, MsgShortageFailed,
		func(token string) error {
			_, err := b.gw.ApplyShortageAction(ctx, token, id, req)
			return err
		})
}

// RefundForm is the refund form as submitted.
type RefundForm struct {
	Amount string
	Reason string
	Method string
}

// CreateRefund registers a refund. The amount is required; a malformed
// amount fails without a backend call.
func (b *Backoffice) CreateRefund(ctx context.Context, sid string, id int, f RefundForm) Outcome {
	back := AdminOrderPath(id)
	amount, err := decimal.NewFromString(strings.TrimSpace(f.Amount))
	if err != nil {
		return b.invalidForm(ctx, sid, back, MsgRefundFailed)
	}

	req := &model.RefundRequest{
		Amount: amount,
		Reason: strings.TrimSpace(f.Reason),
		Method: orDefault(f.Method, model.DefaultRefundMethod),
	}
	return b.guarded(ctx, sid, "create refund", back, MsgRefundCreated, MsgRefundFailed,
		func(token string) error {
			return b.gw.CreateRefund(ctx, token, id, req)
		})
}

// === Content ===

// ContentPage lists every admin-authored content kind.
type ContentPage struct {
	Promotions []model.AdminPromotion
	Banners    []model.Banner
	Notices    []model.AdminNotice
}

// Content fetches promotions, banners and notices concurrently. Every read
// runs to completion so an authorization failure from any of them is seen
// by the guard, even when a sibling failed first.
func (b *Backoffice) Content(ctx context.Context, sid string) (*ContentPage, *Outcome) {
	page := &ContentPage{}
	err := b.admin.Guard(ctx, sid, func(token string) error {
		var (
			g    errgroup.Group
			errs [3]error
		)
		g.Go(func() error {
			page.Promotions, errs[0] = b.gw.Promotions(ctx, token)
			return errs[0]
		})
		g.Go(func() error {
			page.Banners, errs[1] = b.gw.Banners(ctx, token)
			return errs[1]
		})
		g.Go(func() error {
			page.Notices, errs[2] = b.gw.Notices(ctx, token)
			return errs[2]
		})
		g.Wait()
		return decisive(errs[:]...)
	})
	if err != nil {
		return nil, b.readFailure(ctx, "list content", pathOrders, MsgContentFailed, err)
	}
	return page, nil
}

// decisive picks the error to report from concurrent reads: an
// authorization failure wins, otherwise the first failure.
func decisive(errs ...error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if model.IsAuthorizationFailure(err) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

// PromotionForm is the promotion form as submitted.
type PromotionForm struct {
	Title          string
	PromoType      string
	StartAt        string
	EndAt          string
	BannerImageURL string
	ProductIDs     string
	PromoPrice     string
}

func (b *Backoffice) CreatePromotion(ctx context.Context, sid string, f PromotionForm) Outcome {
	start, end, ok := b.window(f.StartAt, f.EndAt)
	if !ok {
		return b.invalidForm(ctx, sid, pathContent, MsgPromotionFailed)
	}
	req := &model.PromotionCreateRequest{
		Title:          strings.TrimSpace(f.Title),
		PromoType:      orDefault(f.PromoType, DefaultPromoType),
		StartAt:        start,
		EndAt:          end,
		IsActive:       true,
		BannerImageURL: OptionalString(f.BannerImageURL),
		ProductIDs:     ParseProductIDs(f.ProductIDs),
		PromoPrice:     OptionalDecimal(f.PromoPrice),
	}
	return b.guarded(ctx, sid, "create promotion", pathContent, MsgPromotionCreated, MsgPromotionFailed,
		func(token string) error {
			_, err := b.gw.CreatePromotion(ctx, token, req)
			return err
		})
}

// BannerForm is the banner form as submitted.
type BannerForm struct {
	Title        string
	ImageURL     string
	LinkType     string
	LinkTarget   string
	DisplayOrder string
	StartAt      string
	EndAt        string
}

func (b *Backoffice) CreateBanner(ctx context.Context, sid string, f BannerForm) Outcome {
	start, end, ok := b.window(f.StartAt, f.EndAt)
	if !ok {
		return b.invalidForm(ctx, sid, pathContent, MsgBannerFailed)
	}
	order := 0
	if n := OptionalInt(f.DisplayOrder); n != nil {
		order = *n
	}
	req := &model.BannerCreateRequest{
		Title:        strings.TrimSpace(f.Title),
		ImageURL:     strings.TrimSpace(f.ImageURL),
		LinkType:     orDefault(f.LinkType, DefaultBannerLinkType),
		LinkTarget:   OptionalString(f.LinkTarget),
		DisplayOrder: order,
		IsActive:     true,
		StartAt:      start,
		EndAt:        end,
	}
	return b.guarded(ctx, sid, "create banner", pathContent, MsgBannerCreated, MsgBannerFailed,
		func(token string) error {
			_, err := b.gw.CreateBanner(ctx, token, req)
			return err
		})
}

// NoticeForm is the notice form as submitted.
type NoticeForm struct {
	Title   string
	Body    string
	StartAt string
	EndAt   string
	Pinned  bool
}

func (b *Backoffice) CreateNotice(ctx context.Context, sid string, f NoticeForm) Outcome {
	start, end, ok := b.window(f.StartAt, f.EndAt)
	if !ok {
		return b.invalidForm(ctx, sid, pathContent, MsgNoticeFailed)
	}
	req := &model.NoticeCreateRequest{
		Title:    strings.TrimSpace(f.Title),
		Body:     f.Body,
		StartAt:  start,
		EndAt:    end,
		IsPinned: f.Pinned,
		IsActive: true,
	}
	return b.guarded(ctx, sid, "create notice", pathContent, MsgNoticeCreated, MsgNoticeFailed,
		func(token string) error {
			_, err := b.gw.CreateNotice(ctx, token, req)
			return err
		})
}

// window parses a required start/end pair in the configured zone.
func (b *Backoffice) window(startAt, endAt string) (time.Time, time.Time, bool) {
	start, err := ParseLocalDateTime(startAt, b.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := ParseLocalDateTime(endAt, b.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// invalidForm rejects a submission before any backend call. A session
// without a token still goes to login first.
func (b *Backoffice) invalidForm(ctx context.Context, sid, back, msg string) Outcome {
	if !b.LoggedIn(ctx, sid) {
		return Failure(pathLogin, MsgLoginRequired)
	}
	return Failure(back, msg)
}
