package services

import (
	"context"
	"time"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Product            = domain.Product
	FlashSale          = domain.FlashSale
	Coupon             = domain.Coupon
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	GuestCartLine      = domain.GuestCartLine
	Address            = domain.Address
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderTotals        = domain.OrderTotals
	PaymentResult      = domain.PaymentResult
	Reservation        = domain.Reservation
	ReservationLine    = domain.ReservationLine
	ShippingMethod     = domain.ShippingMethod
	SystemHealthReport = domain.SystemHealthReport
)

// PriceQuote is the Discount Resolver output: the effective unit price and the
// sale that produced it, when one applies.
type PriceQuote struct {
	UnitPrice int64
	FlashSale *FlashSale
}

// DiscountService resolves the effective unit price of a product at an instant.
// It never mutates sale counters; those move at reservation time.
type DiscountService interface {
	EffectivePrice(ctx context.Context, product Product, now time.Time) (PriceQuote, error)
}

// CartService manages the per-user cart with locked-in pricing and stock checks.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
	MergeGuestCart(ctx context.Context, cmd MergeGuestCartCommand) (Cart, error)
}

// CouponService validates coupon codes against a subtotal and manages the
// usage counter around order creation.
type CouponService interface {
	Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponApplication, error)
	// Redeem increments the coupon's usage counter once; it fails when the
	// limit is already consumed.
	Redeem(ctx context.Context, code string, now time.Time) error
	// Unredeem reverses a Redeem when order persistence fails afterwards.
	Unredeem(ctx context.Context, code string, now time.Time) error
}

// InventoryService takes and releases stock holds for orders and surfaces
// low-stock products after a successful reservation.
type InventoryService interface {
	Reserve(ctx context.Context, cmd ReserveStockCommand) (Reservation, error)
	Release(ctx context.Context, orderID string, now time.Time) (Reservation, error)
	CollectLowStock(ctx context.Context, productIDs []string) ([]LowStockAlert, error)
}

// OrderService assembles orders from priced lines and drives the lifecycle
// state machine afterwards.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	MarkPaid(ctx context.Context, cmd MarkPaidCommand) (Order, error)
	MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (Order, error)
}

// SystemService aggregates utility endpoints (health checks, counters).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	NextCounterValue(ctx context.Context, cmd CounterCommand) (int64, error)
}

// ShippingRateProvider resolves a shipping method and its zone rate table.
type ShippingRateProvider interface {
	GetMethod(ctx context.Context, methodID string) (ShippingMethod, error)
}

// NotificationService receives order lifecycle notifications. Callers treat it
// as fire-and-forget: failures are logged, never surfaced.
type NotificationService interface {
	NotifyOrder(ctx context.Context, message OrderNotification) error
}

// LoyaltyService awards points to a user, typically on delivery.
type LoyaltyService interface {
	AwardPoints(ctx context.Context, message LoyaltyAward) error
}

// LowStockPublisher emits restock alerts for products that dipped under the
// configured threshold.
type LowStockPublisher interface {
	PublishLowStock(ctx context.Context, alert LowStockAlert) error
}

// Command and DTO definitions ------------------------------------------------

type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Variant   string
	Quantity  int64
}

type UpdateCartItemCommand struct {
	UserID   string
	ItemID   string
	Quantity int64
}

type RemoveCartItemCommand struct {
	UserID string
	ItemID string
}

type MergeGuestCartCommand struct {
	UserID     string
	GuestToken string
}

type ValidateCouponCommand struct {
	Code     string
	Subtotal int64
	Now      time.Time
}

// CouponApplication reports the validated coupon and the discount it grants
// against the submitted subtotal.
type CouponApplication struct {
	Coupon   Coupon
	Discount int64
}

type ReserveStockCommand struct {
	OrderID string
	UserID  string
	Lines   []ReservationLine
	Now     time.Time
}

type CreateOrderCommand struct {
	UserID           string
	Items            []OrderLineInput
	ShippingAddress  Address
	PaymentMethod    string
	ShippingMethodID string
	CouponCode       string
	Currency         string
	ExchangeRate     float64
}

// OrderLineInput is a requested line before pricing; unit prices are always
// re-derived server-side.
type OrderLineInput struct {
	ProductID string
	Variant   string
	Quantity  int64
}

type GetOrderCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

type ListOrdersCommand struct {
	ActorID    string
	IsAdmin    bool
	UserID     string
	Status     []OrderStatus
	Pagination Pagination
}

type OrderListFilter = repositories.OrderListFilter

type OrderStatusCommand struct {
	OrderID  string
	ActorID  string
	IsAdmin  bool
	Target   OrderStatus
	Tracking string
}

type CancelOrderCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

type MarkPaidCommand struct {
	OrderID string
	Payment PaymentResult
}

type MarkDeliveredCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

type CounterCommand struct {
	CounterID string
	Step      int64
}

// OrderNotification is the message published for order lifecycle events.
type OrderNotification struct {
	OrderID     string             `json:"orderId"`
	OrderNumber string             `json:"orderNumber"`
	UserID      string             `json:"userId"`
	Event       string             `json:"event"`
	TotalPrice  int64              `json:"totalPrice"`
	Currency    string             `json:"currency"`
	Status      domain.OrderStatus `json:"status,omitempty"`
	Tracking    string             `json:"tracking,omitempty"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

// LoyaltyAward credits points for a delivered order.
type LoyaltyAward struct {
	UserID     string    `json:"userId"`
	OrderID    string    `json:"orderId"`
	Points     int64     `json:"points"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}

// LowStockAlert flags a product whose stock fell under the restock threshold.
type LowStockAlert struct {
	ProductID  string    `json:"productId"`
	Name       string    `json:"name"`
	Stock      int64     `json:"stock"`
	Threshold  int64     `json:"threshold"`
	ObservedAt time.Time `json:"observedAt"`
}
