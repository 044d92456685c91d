package firestore

import (
	"context"
	"errors"
	"io"

	pfirestore "github.com/clovermart/api/internal/platform/firestore"
	"github.com/clovermart/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories together with the Redis
// guest-cart store behind the repositories.Registry contract.
type Registry struct {
	provider   *pfirestore.Provider
	products   *ProductRepository
	flashSales *FlashSaleRepository
	coupons    *CouponRepository
	carts      *CartRepository
	orders     *OrderRepository
	inventory  *InventoryRepository
	counters   *CounterRepository
	guestCarts repositories.GuestCartRepository
}

// NewRegistry constructs every repository against the shared provider.
// guestCarts may be nil when no Redis endpoint is configured; MergeGuestCart
// is then unavailable.
func NewRegistry(provider *pfirestore.Provider, guestCarts repositories.GuestCartRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	flashSales, err := NewFlashSaleRepository(provider)
	if err != nil {
		return nil, err
	}
	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	inventory, err := NewInventoryRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:   provider,
		products:   products,
		flashSales: flashSales,
		coupons:    coupons,
		carts:      carts,
		orders:     orders,
		inventory:  inventory,
		counters:   counters,
		guestCarts: guestCarts,
	}, nil
}

// Close releases the provider and the guest-cart connection pool.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var firstErr error
	if closer, ok := r.guestCarts.(io.Closer); ok && closer != nil {
		if err := closer.Close(); err != nil {
			firstErr = err
		}
	}
	if r.provider != nil {
		if err := r.provider.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Registry) Products() repositories.ProductRepository     { return r.products }
func (r *Registry) FlashSales() repositories.FlashSaleRepository { return r.flashSales }
func (r *Registry) Coupons() repositories.CouponRepository       { return r.coupons }
func (r *Registry) Carts() repositories.CartRepository           { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository         { return r.orders }
func (r *Registry) Inventory() repositories.InventoryRepository  { return r.inventory }
func (r *Registry) Counters() repositories.CounterRepository     { return r.counters }

func (r *Registry) GuestCarts() repositories.GuestCartRepository { return r.guestCarts }

// RunInTx groups repository calls; the Firestore repositories already run
// their own transactions, so grouping is a pass-through here.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return fn(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
