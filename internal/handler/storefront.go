package handler

import (
	"net/http"
	"strconv"
	"strings"

	"market-web/internal/model"
	"market-web/internal/view"
	"market-web/internal/workflow"
)

// === Browsing ===

// GET /
func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	home, err := h.store.Home(r.Context())
	if err != nil {
		h.unavailable(w, r, "home", err)
		return
	}
	h.render(w, r, http.StatusOK, view.Home, "", false, home)
}

// GET /products?categoryId&q&minPrice&maxPrice&promo&sort
func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	page, err := h.store.Catalog(r.Context(), productQuery(r))
	if err != nil {
		h.unavailable(w, r, "catalog", err)
		return
	}
	h.render(w, r, http.StatusOK, view.Catalog, "Products", false, page)
}

// productQuery reads catalog filters. Malformed numbers are dropped.
func productQuery(r *http.Request) model.ProductQuery {
	q := r.URL.Query()
	pq := model.ProductQuery{
		CategoryID: workflow.OptionalInt(q.Get("categoryId")),
		Query:      strings.TrimSpace(q.Get("q")),
		MinPrice:   workflow.OptionalInt(q.Get("minPrice")),
		MaxPrice:   workflow.OptionalInt(q.Get("maxPrice")),
		Sort:       strings.TrimSpace(q.Get("sort")),
	}
	if pq.Sort == "" {
		pq.Sort = "popular"
	}
	if v, err := strconv.ParseBool(q.Get("promo")); err == nil {
		pq.Promo = &v
	}
	return pq
}

// GET /products/{id}
func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(r, "id")
	if !ok {
		h.handleNotFound(w, r)
		return
	}
	p, err := h.store.Product(r.Context(), id)
	if err != nil {
		h.unavailable(w, r, "product", err)
		return
	}
	h.render(w, r, http.StatusOK, view.Product, p.Name, false, p)
}

// === Cart ===

// GET /cart
func (h *Handler) handleCart(w http.ResponseWriter, r *http.Request) {
	key := h.identity.Resolve(w, r)
	cart, err := h.store.Cart(r.Context(), key)
	if err != nil {
		h.unavailable(w, r, "cart", err)
		return
	}
	h.render(w, r, http.StatusOK, view.Cart, "Cart", false, cart)
}

// POST /cart/items (productId, qty)
func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	key := h.identity.Resolve(w, r)

	productID := workflow.OptionalInt(r.FormValue("productId"))
	qty, ok := formQty(r)
	if productID == nil || !ok {
		h.follow(w, r, workflow.Failure("/cart", workflow.MsgCartAddFailed))
		return
	}
	h.follow(w, r, h.store.AddCartItem(r.Context(), key, *productID, qty))
}

// POST /cart/items/{itemId}/qty (qty)
func (h *Handler) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	key := h.identity.Resolve(w, r)

	itemID, idOK := pathInt(r, "itemId")
	qty, qtyOK := formQty(r)
	if !idOK || !qtyOK {
		h.follow(w, r, workflow.Failure("/cart", workflow.MsgCartQtyFailed))
		return
	}
	h.follow(w, r, h.store.UpdateCartItem(r.Context(), key, itemID, qty))
}

// POST /cart/items/{itemId}/delete
func (h *Handler) handleDeleteCartItem(w http.ResponseWriter, r *http.Request) {
	key := h.identity.Resolve(w, r)

	itemID, ok := pathInt(r, "itemId")
	if !ok {
		h.follow(w, r, workflow.Failure("/cart", workflow.MsgCartDeleteFail))
		return
	}
	h.follow(w, r, h.store.DeleteCartItem(r.Context(), key, itemID))
}

// formQty reads the required qty field. The backend judges the range.
func formQty(r *http.Request) (int, bool) {
	n := workflow.OptionalInt(r.FormValue("qty"))
	if n == nil {
		return 0, false
	}
	return *n, true
}

// === Checkout ===

// GET /checkout?dongCode=
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	key := h.identity.Resolve(w, r)
	page, err := h.store.Checkout(r.Context(), key, r.URL.Query().Get("dongCode"))
	if err != nil {
		h.unavailable(w, r, "checkout", err)
		return
	}
	h.render(w, r, http.StatusOK, view.Checkout, "Checkout", false, page)
}

// POST /checkout/submit
func (h *Handler) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	key := h.identity.Resolve(w, r)

	form := workflow.OrderForm{
		CustomerName:        r.FormValue("customerName"),
		CustomerPhone:       r.FormValue("customerPhone"),
		AddressLine1:        r.FormValue("addressLine1"),
		AddressLine2:        r.FormValue("addressLine2"),
		Building:            r.FormValue("building"),
		UnitNo:              r.FormValue("unitNo"),
		DongCode:            r.FormValue("dongCode"),
		ApartmentName:       r.FormValue("apartmentName"),
		Latitude:            r.FormValue("latitude"),
		Longitude:           r.FormValue("longitude"),
		RequestedSlot:       r.FormValue("requestedSlotStart"),
		AllowSubstitution:   formBool(r, "allowSubstitution"),
		DeliveryRequestNote: r.FormValue("deliveryRequestNote"),
	}
	h.follow(w, r, h.store.SubmitOrder(r.Context(), key, form))
}

// === Orders ===

// GET /orders/lookup
func (h *Handler) handleLookupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.OrderLookup, "Track order", false, nil)
}

// POST /orders/lookup (orderNo, phone)
func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	out, _ := h.store.LookupOrder(r.Context(), r.FormValue("orderNo"), r.FormValue("phone"))
	h.follow(w, r, out)
}

// GET /orders/{orderNo}?phone=
func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	orderNo := pathString(r, "orderNo")
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		h.follow(w, r, workflow.Failure("/orders/lookup", workflow.MsgOrderNotFound))
		return
	}

	order, out := h.store.Order(r.Context(), orderNo, phone)
	if h.followPtr(w, r, out) {
		return
	}
	h.render(w, r, http.StatusOK, view.Order, "Order "+order.OrderNo, false, view.OrderDetail{Order: order, Phone: phone})
}

// POST /orders/{orderNo}/cancel (phone, reason)
func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.parseForm(w, r)
	orderNo := pathString(r, "orderNo")
	h.follow(w, r, h.store.CancelOrder(r.Context(), orderNo, strings.TrimSpace(r.FormValue("phone")), r.FormValue("reason")))
}
