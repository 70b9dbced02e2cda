package handler

import (
	"net/http"

	"market-web/internal/view"
	"market-web/internal/workflow"
)

// === Session ===

// GET /admin/login
func (h *Handler) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.AdminLogin, "Admin login", false, nil)
}

// POST /admin/login (username, password)
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	h.follow(w, r, h.office.Login(r.Context(), h.sid(w, r), r.FormValue("username"), r.FormValue("password")))
}

// POST /admin/logout
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.follow(w, r, h.office.Logout(r.Context(), h.sid(w, r)))
}

// === Orders ===

// GET /admin/orders?status=
func (h *Handler) handleAdminOrders(w http.ResponseWriter, r *http.Request) {
	page, out, err := h.office.Orders(r.Context(), h.sid(w, r), r.URL.Query().Get("status"))
	if h.followPtr(w, r, out) {
		return
	}
	if err != nil {
		h.unavailable(w, r, "list admin orders", err)
		return
	}
	h.render(w, r, http.StatusOK, view.AdminOrders, "Orders", true, page)
}

// GET /admin/orders/{orderId}
func (h *Handler) handleAdminOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "orderId")
	if !ok {
		h.handleNotFound(w, r)
		return
	}
	page, out := h.office.Order(r.Context(), h.sid(w, r), id)
	if h.followPtr(w, r, out) {
		return
	}
	h.render(w, r, http.StatusOK, view.AdminOrder, "Order "+page.Order.OrderNo, true, page)
}

// POST /admin/orders/{orderId}/status (status, reason)
func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "orderId")
	if !ok {
		h.handleNotFound(w, r)
		return
	}
	h.parseForm(w, r)
	h.follow(w, r, h.office.UpdateOrderStatus(r.Context(), h.sid(w, r), id, r.FormValue("status"), r.FormValue("reason")))
}

// POST /admin/orders/{orderId}/shortage
func (h *Handler) handleShortage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "orderId")
	if !ok {
		h.handleNotFound(w, r)
		return
	}
	h.parseForm(w, r)
	form := workflow.ShortageForm{
		OrderItemID:           r.FormValue("orderItemId"),
		Action:                r.FormValue("action"),
		FulfilledQty:          r.FormValue("fulfilledQty"),
		SubstitutionProductID: r.FormValue("substitutionProductId"),
		SubstitutionQty:       r.FormValue("substitutionQty"),
		Reason:                r.FormValue("reason"),
	}
	h.follow(w, r, h.office.ApplyShortage(r.Context(), h.sid(w, r), id, form))
}

// POST /admin/orders/{orderId}/refunds (amount, reason, method)
func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "orderId")
	if !ok {
		h.handleNotFound(w, r)
		return
	}
	h.parseForm(w, r)
	form := workflow.RefundForm{
		Amount: r.FormValue("amount"),
		Reason: r.FormValue("reason"),
		Method: r.FormValue("method"),
	}
	h.follow(w, r, h.office.CreateRefund(r.Context(), h.sid(w, r), id, form))
}

// === Content ===

// GET /admin/content
func (h *Handler) handleContent(w http.ResponseWriter, r *http.Request) {
	page, out := h.office.Content(r.Context(), h.sid(w, r))
	if h.followPtr(w, r, out) {
		return
	}
	h.render(w, r, http.StatusOK, view.AdminContent, "Content", true, page)
}

// POST /admin/content/promotions
func (h *Handler) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	form := workflow.PromotionForm{
		Title:          r.FormValue("title"),
		PromoType:      r.FormValue("promoType"),
		StartAt:        r.FormValue("startAt"),
		EndAt:          r.FormValue("endAt"),
		BannerImageURL: r.FormValue("bannerImageUrl"),
		ProductIDs:     r.FormValue("productIds"),
		PromoPrice:     r.FormValue("promoPrice"),
	}
	h.follow(w, r, h.office.CreatePromotion(r.Context(), h.sid(w, r), form))
}

// POST /admin/content/banners
func (h *Handler) handleCreateBanner(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	form := workflow.BannerForm{
		Title:        r.FormValue("title"),
		ImageURL:     r.FormValue("imageUrl"),
		LinkType:     r.FormValue("linkType"),
		LinkTarget:   r.FormValue("linkTarget"),
		DisplayOrder: r.FormValue("displayOrder"),
		StartAt:      r.FormValue("startAt"),
		EndAt:        r.FormValue("endAt"),
	}
	h.follow(w, r, h.office.CreateBanner(r.Context(), h.sid(w, r), form))
}

// POST /admin/content/notices
func (h *Handler) handleCreateNotice(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	form := workflow.NoticeForm{
		Title:   r.FormValue("title"),
		Body:    r.FormValue("body"),
		StartAt: r.FormValue("startAt"),
		EndAt:   r.FormValue("endAt"),
		Pinned:  formBool(r, "isPinned"),
	}
	h.follow(w, r, h.office.CreateNotice(r.Context(), h.sid(w, r), form))
}
