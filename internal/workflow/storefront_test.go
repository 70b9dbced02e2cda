package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-web/internal/gateway"
	"market-web/internal/model"
	"market-web/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStorefront(gw gateway.Gateway) *Storefront {
	return NewStorefront(gw, discardLogger(), StorefrontConfig{Location: time.UTC})
}

func conflict(op string) error {
	return model.NewBackendError(op, 409, []byte(`{"detail":{"code":"CONFLICT","message":"nope"}}`))
}

func TestSubmitOrder_RedirectsToOrderDetail(t *testing.T) {
	var got *model.OrderCreateRequest
	gw := &gateway.Mock{
		CreateOrderFunc: func(_ context.Context, req *model.OrderCreateRequest) (*model.Order, error) {
			got = req
			return &model.Order{OrderNo: "ORD-1001", Status: model.OrderReceived}, nil
		},
	}
	s := newTestStorefront(gw)

	out := s.SubmitOrder(context.Background(), "key-1", OrderForm{
		CustomerName:  "Kim",
		CustomerPhone: "0101234567",
		AddressLine1:  "1 Market St",
		RequestedSlot: "2026-03-01T18:00",
	})

	assert.Equal(t, "/orders/ORD-1001?phone=0101234567", out.Redirect)
	assert.Nil(t, out.Flash)
	require.NotNil(t, got)
	assert.Equal(t, "key-1", got.SessionKey)
	assert.Equal(t, DefaultDongCode, got.DongCode, "blank dong falls back to default area")
	require.NotNil(t, got.RequestedSlotStart)
	assert.True(t, got.RequestedSlotStart.Equal(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)))
	assert.Nil(t, got.AddressLine2)
	assert.Nil(t, got.DeliveryRequestNote)
	assert.Equal(t, []string{"CreateOrder"}, gw.Calls())
}

func TestSubmitOrder_UnparseableSlotIsOmitted(t *testing.T) {
	var got *model.OrderCreateRequest
	gw := &gateway.Mock{
		CreateOrderFunc: func(_ context.Context, req *model.OrderCreateRequest) (*model.Order, error) {
			got = req
			return &model.Order{OrderNo: "ORD-1"}, nil
		},
	}
	newTestStorefront(gw).SubmitOrder(context.Background(), "k", OrderForm{CustomerPhone: "010", RequestedSlot: "asap"})

	require.NotNil(t, got)
	assert.Nil(t, got.RequestedSlotStart)
}

func TestSubmitOrder_FailureReturnsToCheckout(t *testing.T) {
	gw := &gateway.Mock{
		CreateOrderFunc: func(context.Context, *model.OrderCreateRequest) (*model.Order, error) {
			return nil, model.NewBackendError("create order", 400, []byte(`{"detail":"cart is empty"}`))
		},
	}
	out := newTestStorefront(gw).SubmitOrder(context.Background(), "k", OrderForm{DongCode: "1111", CustomerPhone: "010"})

	assert.Equal(t, "/checkout?dongCode=1111", out.Redirect)
	require.NotNil(t, out.Flash)
	assert.Equal(t, session.FlashError, out.Flash.Kind)
	assert.Equal(t, MsgOrderFailed, out.Flash.Text)
	assert.Len(t, gw.Calls(), 1, "order submission is never retried")
}

func TestCheckout_InvalidQuoteStillRenders(t *testing.T) {
	gw := &gateway.Mock{
		CartFunc: func(_ context.Context, key string) (*model.Cart, error) {
			return &model.Cart{SessionKey: key, Items: []model.CartItem{{ID: 1, Qty: 1}}, Subtotal: decimal.NewFromInt(3000)}, nil
		},
		QuoteFunc: func(_ context.Context, req *model.CheckoutRequest) (*model.CheckoutQuote, error) {
			assert.Equal(t, "k", req.SessionKey)
			assert.Equal(t, DefaultDongCode, req.DongCode)
			return &model.CheckoutQuote{Valid: false, Errors: []string{"minimum order amount not met"}}, nil
		},
	}

	page, err := newTestStorefront(gw).Checkout(context.Background(), "k", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultDongCode, page.DongCode)
	assert.Len(t, page.Cart.Items, 1)
	assert.False(t, page.Quote.Valid)
	assert.Equal(t, []string{"minimum order amount not met"}, page.Quote.Errors)
	assert.NotContains(t, gw.Calls(), "CreateOrder")
}

func TestCheckout_EitherFailureFailsPage(t *testing.T) {
	okCart := func(context.Context, string) (*model.Cart, error) { return &model.Cart{}, nil }
	okQuote := func(context.Context, *model.CheckoutRequest) (*model.CheckoutQuote, error) {
		return &model.CheckoutQuote{Valid: true}, nil
	}
	boom := model.NewUnavailableError("x", errors.New("down"))

	tests := []struct {
		name string
		gw   *gateway.Mock
	}{
		{"cart fails", &gateway.Mock{
			CartFunc:  func(context.Context, string) (*model.Cart, error) { return nil, boom },
			QuoteFunc: okQuote,
		}},
		{"quote fails", &gateway.Mock{
			CartFunc:  okCart,
			QuoteFunc: func(context.Context, *model.CheckoutRequest) (*model.CheckoutQuote, error) { return nil, boom },
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := newTestStorefront(tt.gw).Checkout(context.Background(), "k", "1535011000")
			assert.Nil(t, page)
			assert.ErrorIs(t, err, model.ErrBackendUnavailable)
		})
	}
}

func TestCheckout_ReadsRunConcurrently(t *testing.T) {
	var inFlight, peak atomic.Int32
	track := func() func() {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return func() { inFlight.Add(-1) }
	}
	gw := &gateway.Mock{
		CartFunc: func(context.Context, string) (*model.Cart, error) {
			defer track()()
			return &model.Cart{}, nil
		},
		QuoteFunc: func(context.Context, *model.CheckoutRequest) (*model.CheckoutQuote, error) {
			defer track()()
			return &model.CheckoutQuote{}, nil
		},
	}

	_, err := newTestStorefront(gw).Checkout(context.Background(), "k", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), peak.Load())
}

func TestCatalog_FetchesProductsAndCategories(t *testing.T) {
	gw := &gateway.Mock{
		ProductsFunc: func(_ context.Context, q model.ProductQuery) ([]model.Product, error) {
			assert.Equal(t, "popular", q.Sort)
			return []model.Product{{ID: 1, Name: "Apple"}}, nil
		},
		HomeFunc: func(context.Context) (*model.Home, error) {
			return &model.Home{Categories: []model.Category{{ID: 3, Name: "Fruit"}}}, nil
		},
	}

	page, err := newTestStorefront(gw).Catalog(context.Background(), model.ProductQuery{Sort: "popular"})
	require.NoError(t, err)
	assert.Len(t, page.Products, 1)
	assert.Equal(t, "Fruit", page.Categories[0].Name)
}

func TestCartMutations(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		gw      *gateway.Mock
		run     func(s *Storefront) Outcome
		wantMsg string
		wantErr bool
	}{
		{
			name: "add ok",
			gw: &gateway.Mock{AddCartItemFunc: func(_ context.Context, key string, pid, qty int) (*model.Cart, error) {
				assert.Equal(t, 0, qty, "quantity is forwarded verbatim")
				return &model.Cart{}, nil
			}},
			run:     func(s *Storefront) Outcome { return s.AddCartItem(ctx, "k", 10, 0) },
			wantMsg: MsgCartAdded,
		},
		{
			name: "add rejected",
			gw: &gateway.Mock{AddCartItemFunc: func(context.Context, string, int, int) (*model.Cart, error) {
				return nil, conflict("add cart item")
			}},
			run:     func(s *Storefront) Outcome { return s.AddCartItem(ctx, "k", 10, 99) },
			wantMsg: MsgCartAddFailed, wantErr: true,
		},
		{
			name: "update rejected",
			gw: &gateway.Mock{UpdateCartItemFunc: func(context.Context, string, int, int) (*model.Cart, error) {
				return nil, conflict("update cart item")
			}},
			run:     func(s *Storefront) Outcome { return s.UpdateCartItem(ctx, "k", 1, 50) },
			wantMsg: MsgCartQtyFailed, wantErr: true,
		},
		{
			name: "delete ok",
			gw: &gateway.Mock{DeleteCartItemFunc: func(context.Context, string, int) (*model.Cart, error) {
				return &model.Cart{}, nil
			}},
			run:     func(s *Storefront) Outcome { return s.DeleteCartItem(ctx, "k", 1) },
			wantMsg: MsgCartRemoved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.run(newTestStorefront(tt.gw))
			assert.Equal(t, "/cart", out.Redirect)
			require.NotNil(t, out.Flash)
			assert.Equal(t, tt.wantMsg, out.Flash.Text)
			if tt.wantErr {
				assert.Equal(t, session.FlashError, out.Flash.Kind)
			} else {
				assert.Equal(t, session.FlashSuccess, out.Flash.Kind)
			}
		})
	}
}

func TestCancelOrder(t *testing.T) {
	t.Run("failure returns to order with flash", func(t *testing.T) {
		gw := &gateway.Mock{
			CancelOrderFunc: func(context.Context, string, string, string) (*model.Order, error) {
				return nil, conflict("cancel order")
			},
		}
		out := newTestStorefront(gw).CancelOrder(context.Background(), "ORD-1001", "0101234567", "late")

		assert.Equal(t, "/orders/ORD-1001?phone=0101234567", out.Redirect)
		require.NotNil(t, out.Flash)
		assert.Equal(t, session.FlashError, out.Flash.Kind)
		assert.Equal(t, MsgCancelFailed, out.Flash.Text)
		assert.Len(t, gw.Calls(), 1, "cancellation is never retried")
	})

	t.Run("blank reason gets default", func(t *testing.T) {
		var reason string
		gw := &gateway.Mock{
			CancelOrderFunc: func(_ context.Context, _, _, r string) (*model.Order, error) {
				reason = r
				return &model.Order{Status: model.OrderCanceled}, nil
			},
		}
		out := newTestStorefront(gw).CancelOrder(context.Background(), "ORD-1", "010", "  ")

		assert.Equal(t, DefaultCancelReason, reason)
		assert.Equal(t, session.FlashSuccess, out.Flash.Kind)
	})
}

func TestOrder_NotFoundRedirectsToLookup(t *testing.T) {
	gw := &gateway.Mock{
		OrderFunc: func(context.Context, string, string) (*model.Order, error) {
			return nil, model.NewBackendError("get order", 404, []byte(`{"detail":"not found"}`))
		},
	}
	order, out := newTestStorefront(gw).Order(context.Background(), "ORD-X", "010")

	assert.Nil(t, order)
	require.NotNil(t, out)
	assert.Equal(t, "/orders/lookup", out.Redirect)
	assert.Equal(t, MsgOrderNotFound, out.Flash.Text)
}

func TestOrderPath(t *testing.T) {
	assert.Equal(t, "/orders/A%20B?phone=010+1", OrderPath("A B", "010 1"))
}

func TestLookup(t *testing.T) {
	gw := &gateway.Mock{
		LookupOrderFunc: func(_ context.Context, no, phone string) (*model.Order, error) {
			if no == "ORD-1" && phone == "010" {
				return &model.Order{OrderNo: "ORD-1"}, nil
			}
			return nil, model.NewBackendError("lookup order", 404, nil)
		},
	}
	s := newTestStorefront(gw)

	out, ok := s.LookupOrder(context.Background(), " ORD-1 ", " 010 ")
	assert.True(t, ok)
	assert.Equal(t, "/orders/ORD-1?phone=010", out.Redirect)

	out, ok = s.LookupOrder(context.Background(), "ORD-1", "999")
	assert.False(t, ok)
	assert.Equal(t, MsgOrderNotFound, out.Flash.Text)

	_, ok = s.LookupOrder(context.Background(), "", "010")
	assert.False(t, ok)
	assert.Len(t, gw.Calls(), 2, "blank input never reaches the backend")
}
