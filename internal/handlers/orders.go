package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/platform/auth"
	"github.com/clovermart/api/internal/platform/httpx"
	"github.com/clovermart/api/internal/platform/pagination"
	"github.com/clovermart/api/internal/services"
)

// OrderHandlers exposes order creation and lifecycle endpoints.
type OrderHandlers struct {
	authn            *auth.Authenticator
	orders           services.OrderService
	createMiddleware func(http.Handler) http.Handler
	defaultPageSize  int
	maxPageSize      int
}

const maxOrderBodySize = 64 * 1024

// OrderHandlersOption customises the handler set.
type OrderHandlersOption func(*OrderHandlers)

// WithCreateOrderMiddleware wraps POST / with the supplied middleware,
// typically the idempotency layer.
func WithCreateOrderMiddleware(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.createMiddleware = mw
	}
}

// NewOrderHandlers constructs handlers enforcing Firebase authentication
// before invoking the order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:           authn,
		orders:          orders,
		defaultPageSize: 20,
		maxPageSize:     100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}

	if h.createMiddleware != nil {
		r.With(h.createMiddleware).Post("/", h.createOrder)
	} else {
		r.Post("/", h.createOrder)
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderId}", h.getOrder)
	r.Put("/{orderId}/status", h.updateStatus)
	r.Put("/{orderId}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	items := make([]services.OrderLineInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderLineInput{
			ProductID: item.ProductID,
			Variant:   item.Variant,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID:           identity.UID,
		Items:            items,
		ShippingAddress:  req.ShippingAddress.toDomain(),
		PaymentMethod:    req.PaymentMethod,
		ShippingMethodID: req.ShippingMethodID,
		CouponCode:       req.CouponCode,
		Currency:         req.Currency,
		ExchangeRate:     req.ExchangeRate,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: h.defaultPageSize,
		MaxPageSize:     h.maxPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	cmd := services.ListOrdersCommand{
		ActorID: identity.UID,
		IsAdmin: isAdmin(identity),
		UserID:  strings.TrimSpace(r.URL.Query().Get("userId")),
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		cmd.Status = []services.OrderStatus{services.OrderStatus(strings.ToLower(status))}
	}

	page, err := h.orders.ListOrders(ctx, cmd)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	payload := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Items)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Items {
		payload.Orders = append(payload.Orders, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderCommand{
		OrderID: chi.URLParam(r, "orderId"),
		ActorID: identity.UID,
		IsAdmin: isAdmin(identity),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	var req updateOrderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusCommand{
		OrderID:  chi.URLParam(r, "orderId"),
		ActorID:  identity.UID,
		IsAdmin:  isAdmin(identity),
		Target:   services.OrderStatus(req.Status),
		Tracking: req.TrackingNumber,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderId"),
		ActorID: identity.UID,
		IsAdmin: isAdmin(identity),
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponRejected):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_rejected", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to access this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderAlreadyPaid):
		httpx.WriteError(ctx, w, httpx.NewError("already_paid", "order is already paid", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state_transition", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "order operation failed", http.StatusInternalServerError))
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:               strings.TrimSpace(order.ID),
		Number:           strings.TrimSpace(order.Number),
		UserID:           strings.TrimSpace(order.UserID),
		Status:           string(order.Status),
		PaymentMethod:    order.PaymentMethod,
		ShippingMethodID: order.ShippingMethodID,
		CouponCode:       order.CouponCode,
		Currency:         strings.ToUpper(strings.TrimSpace(order.Currency)),
		ExchangeRate:     order.ExchangeRate,
		ConvertedTotal:   order.ConvertedTotal,
		IsPaid:           order.IsPaid,
		IsDelivered:      order.IsDelivered,
		TrackingNumber:   order.TrackingNumber,
		ShippingAddress:  buildAddressPayload(order.ShippingAddress),
		Totals: orderTotalsPayload{
			Items:    order.Totals.Items,
			Discount: order.Totals.Discount,
			Shipping: order.Totals.Shipping,
			Tax:      order.Totals.Tax,
			Total:    order.Totals.Total,
		},
		PaidAt:      formatTimePtr(order.PaidAt),
		ShippedAt:   formatTimePtr(order.ShippedAt),
		DeliveredAt: formatTimePtr(order.DeliveredAt),
		CancelledAt: formatTimePtr(order.CancelledAt),
	}
	if !order.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(order.CreatedAt)
	}
	if !order.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(order.UpdatedAt)
	}

	payload.Items = make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:   item.ProductID,
			Name:        item.Name,
			Image:       item.Image,
			Variant:     item.Variant,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
			FlashSaleID: item.FlashSaleID,
		})
	}
	return payload
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		FullName:   addr.FullName,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID               string             `json:"id"`
	Number           string             `json:"number"`
	UserID           string             `json:"user_id"`
	Status           string             `json:"status"`
	Items            []orderItemPayload `json:"items"`
	ShippingAddress  addressPayload     `json:"shipping_address"`
	PaymentMethod    string             `json:"payment_method"`
	ShippingMethodID string             `json:"shipping_method_id"`
	CouponCode       string             `json:"coupon_code,omitempty"`
	Currency         string             `json:"currency"`
	ExchangeRate     float64            `json:"exchange_rate"`
	Totals           orderTotalsPayload `json:"totals"`
	ConvertedTotal   int64              `json:"converted_total"`
	IsPaid           bool               `json:"is_paid"`
	IsDelivered      bool               `json:"is_delivered"`
	TrackingNumber   string             `json:"tracking_number,omitempty"`
	PaidAt           string             `json:"paid_at,omitempty"`
	ShippedAt        string             `json:"shipped_at,omitempty"`
	DeliveredAt      string             `json:"delivered_at,omitempty"`
	CancelledAt      string             `json:"cancelled_at,omitempty"`
	CreatedAt        string             `json:"created_at,omitempty"`
	UpdatedAt        string             `json:"updated_at,omitempty"`
}

type orderTotalsPayload struct {
	Items    int64 `json:"items"`
	Discount int64 `json:"discount"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

type orderItemPayload struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Image       string `json:"image,omitempty"`
	Variant     string `json:"variant,omitempty"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
	FlashSaleID string `json:"flash_sale_id,omitempty"`
}

type addressPayload struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type createOrderRequest struct {
	Items            []createOrderItemRequest `json:"items"`
	ShippingAddress  addressRequest           `json:"shipping_address"`
	PaymentMethod    string                   `json:"payment_method"`
	ShippingMethodID string                   `json:"shipping_method_id"`
	CouponCode       string                   `json:"coupon_code"`
	Currency         string                   `json:"currency"`
	ExchangeRate     float64                  `json:"exchange_rate"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant"`
	Quantity  int64  `json:"quantity"`
}

type addressRequest struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// addressPolicy strips all markup from free-text address fields before they
// reach persistence or notification payloads.
var addressPolicy = bluemonday.StrictPolicy()

func (a addressRequest) toDomain() services.Address {
	return services.Address{
		FullName:   addressPolicy.Sanitize(a.FullName),
		Line1:      addressPolicy.Sanitize(a.Line1),
		Line2:      addressPolicy.Sanitize(a.Line2),
		City:       addressPolicy.Sanitize(a.City),
		State:      addressPolicy.Sanitize(a.State),
		PostalCode: addressPolicy.Sanitize(a.PostalCode),
		Country:    a.Country,
		Phone:      addressPolicy.Sanitize(a.Phone),
	}
}

type updateOrderStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}
