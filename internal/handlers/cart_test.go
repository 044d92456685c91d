package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/clovermart/api/internal/platform/auth"
	"github.com/clovermart/api/internal/services"
)

func newCartRouter(service services.CartService) chi.Router {
	handler := NewCartHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/cart", handler.Routes)
	return router
}

func authedRequest(method, target string, body *strings.Reader, identity *auth.Identity) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	return req
}

func TestCartHandlersGetCart(t *testing.T) {
	now := testTime()
	service := &stubCartService{
		getCart: func(_ context.Context, userID string) (services.Cart, error) {
			if userID != "user-7" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return services.Cart{
				ID:       "user-7",
				UserID:   "user-7",
				Currency: "usd",
				Items: []services.CartItem{
					{ID: "item-1", ProductID: "p1", Name: "Mug", Quantity: 2, UnitPrice: 1200, AddedAt: now},
				},
				UpdatedAt: now,
			}, nil
		},
	}

	router := newCartRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/cart", nil, &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Cart.Currency != "USD" {
		t.Fatalf("currency = %q, want USD", resp.Cart.Currency)
	}
	if resp.Cart.TotalItems != 2 || resp.Cart.Subtotal != 2400 {
		t.Fatalf("totals = %d items / %d, want 2 / 2400", resp.Cart.TotalItems, resp.Cart.Subtotal)
	}
	if resp.Cart.Items[0].LineTotal != 2400 {
		t.Fatalf("line total = %d, want 2400", resp.Cart.Items[0].LineTotal)
	}
}

func TestCartHandlersRequireAuthentication(t *testing.T) {
	router := newCartRouter(&stubCartService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	service := &stubCartService{
		addItem: func(_ context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
			if cmd.UserID != "user-7" || cmd.ProductID != "p1" || cmd.Variant != "red" || cmd.Quantity != 3 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.Cart{ID: "user-7", UserID: "user-7", Currency: "USD"}, nil
		},
	}

	body := strings.NewReader(`{"product_id":"p1","variant":"red","quantity":3}`)
	router := newCartRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/cart/items", body, &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestCartHandlersAddItemRejectsEmptyBody(t *testing.T) {
	router := newCartRouter(&stubCartService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/cart/items", strings.NewReader("  "), &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestCartHandlersAddItemPayloadTooLarge(t *testing.T) {
	router := newCartRouter(&stubCartService{})
	oversized := fmt.Sprintf(`{"product_id":%q}`, strings.Repeat("x", maxCartBodySize))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/cart/items", strings.NewReader(oversized), &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestCartHandlersUpdateItemMapsErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", fmt.Errorf("%w: quantity", services.ErrCartInvalidInput), http.StatusBadRequest, "invalid_request"},
		{"insufficient stock", fmt.Errorf("%w: p1", services.ErrCartInsufficientStock), http.StatusBadRequest, "insufficient_stock"},
		{"product missing", fmt.Errorf("%w: p1", services.ErrCartProductNotFound), http.StatusNotFound, "product_not_found"},
		{"line missing", fmt.Errorf("%w: item-9", services.ErrCartNotFound), http.StatusNotFound, "cart_not_found"},
		{"unavailable", fmt.Errorf("%w: firestore", services.ErrCartUnavailable), http.StatusServiceUnavailable, "cart_service_unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubCartService{
				updateItem: func(context.Context, services.UpdateCartItemCommand) (services.Cart, error) {
					return services.Cart{}, tc.err
				},
			}
			router := newCartRouter(service)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, authedRequest(http.MethodPut, "/cart/items/item-9", strings.NewReader(`{"quantity":1}`), &auth.Identity{UID: "user-7"}))

			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			var payload map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			if payload["error"] != tc.wantCode {
				t.Fatalf("error code = %v, want %s", payload["error"], tc.wantCode)
			}
		})
	}
}

func TestCartHandlersRemoveItem(t *testing.T) {
	service := &stubCartService{
		removeItem: func(_ context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
			if cmd.ItemID != "item-2" {
				t.Fatalf("item id = %q", cmd.ItemID)
			}
			return services.Cart{ID: "user-7", Currency: "USD"}, nil
		},
	}

	router := newCartRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodDelete, "/cart/items/item-2", nil, &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestCartHandlersClearCart(t *testing.T) {
	cleared := false
	service := &stubCartService{
		clearCart: func(_ context.Context, userID string) error {
			cleared = userID == "user-7"
			return nil
		},
	}

	router := newCartRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodDelete, "/cart", nil, &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if !cleared {
		t.Fatal("expected ClearCart to be called with the caller's uid")
	}
}

func TestCartHandlersMergeGuestCart(t *testing.T) {
	service := &stubCartService{
		mergeGuestCart: func(_ context.Context, cmd services.MergeGuestCartCommand) (services.Cart, error) {
			if cmd.GuestToken != "guest-token-1" {
				t.Fatalf("guest token = %q", cmd.GuestToken)
			}
			return services.Cart{ID: "user-7", Currency: "USD"}, nil
		},
	}

	router := newCartRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/cart/merge", strings.NewReader(`{"guest_token":"guest-token-1"}`), &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestCartHandlersServiceUnavailable(t *testing.T) {
	router := newCartRouter(nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/cart", nil, &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
