package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/clovermart/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	FlashSales() FlashSaleRepository
	Coupons() CouponRepository
	Carts() CartRepository
	GuestCarts() GuestCartRepository
	Orders() OrderRepository
	Inventory() InventoryRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository reads catalog entries. Stock mutation goes through
// InventoryRepository so that every write is an atomic conditional update.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

// ErrNoActiveFlashSale signals that no enabled sale window covers the product;
// callers fall back to the list price.
var ErrNoActiveFlashSale = errors.New("flash sale: no active sale for product")

// FlashSaleRepository resolves the sale, if any, covering a product at an instant.
type FlashSaleRepository interface {
	// FindActiveForProduct returns the sale whose window contains now for the
	// product, regardless of remaining quantity; callers check the cap.
	// Returns ErrNoActiveFlashSale when no sale applies.
	FindActiveForProduct(ctx context.Context, productID string, now time.Time) (domain.FlashSale, error)
	FindByID(ctx context.Context, flashSaleID string) (domain.FlashSale, error)
}

// CouponRepository maintains coupon definitions and their usage counters.
// IncrementUsage must be a single conditional update so that concurrent orders
// cannot push UsedCount past UsageLimit.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	IncrementUsage(ctx context.Context, code string, now time.Time) (domain.Coupon, error)
	DecrementUsage(ctx context.Context, code string, now time.Time) error
}

// CartRepository owns the per-user cart document.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	DeleteCart(ctx context.Context, userID string) error
}

// GuestCartRepository stores pre-login cart lines keyed by an opaque session token.
type GuestCartRepository interface {
	Get(ctx context.Context, token string) ([]domain.GuestCartLine, error)
	Save(ctx context.Context, token string, lines []domain.GuestCartLine, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

// OrderRepository persists order records and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// InventoryRepository takes and releases stock holds with transactional guarantees:
// every stock decrement and flash-sale counter increment is conditional, never
// a separate read-then-write pair.
type InventoryRepository interface {
	Reserve(ctx context.Context, req InventoryReserveRequest) (domain.Reservation, error)
	Release(ctx context.Context, orderID string, now time.Time) (domain.Reservation, error)
	FindByOrder(ctx context.Context, orderID string) (domain.Reservation, error)
}

// InventoryReserveRequest carries the reservation to take plus the request timestamp.
type InventoryReserveRequest struct {
	Reservation domain.Reservation
	Now         time.Time
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// CounterRepository provides transaction-safe sequence numbers for order numbering.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// OrderListFilter narrows order listings for user and admin views.
type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	Pagination domain.Pagination
}
