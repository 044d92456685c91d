package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/repositories"
)

var errDiscountFlashSalesRequired = errors.New("discount service: flash sale repository is required")

// ErrDiscountUnavailable indicates the resolver could not consult the sale store.
var ErrDiscountUnavailable = errors.New("discount service: unavailable")

// DiscountServiceDeps wires the flash-sale lookup used for price resolution.
type DiscountServiceDeps struct {
	FlashSales repositories.FlashSaleRepository
	Logger     func(context.Context, string, map[string]any)
}

type discountService struct {
	flashSales repositories.FlashSaleRepository
	logger     func(context.Context, string, map[string]any)
}

// NewDiscountService constructs a DiscountService enforcing dependency validation.
func NewDiscountService(deps DiscountServiceDeps) (DiscountService, error) {
	if deps.FlashSales == nil {
		return nil, errDiscountFlashSalesRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &discountService{
		flashSales: deps.FlashSales,
		logger:     logger,
	}, nil
}

// EffectivePrice returns the unit price at now, applying an active flash sale
// when its window covers now and its cap is not yet consumed. The lookup is a
// pure read; soldCount moves only when inventory is reserved.
func (s *discountService) EffectivePrice(ctx context.Context, product Product, now time.Time) (PriceQuote, error) {
	if s == nil || s.flashSales == nil {
		return PriceQuote{}, ErrDiscountUnavailable
	}

	quote := PriceQuote{UnitPrice: product.Price}

	sale, err := s.flashSales.FindActiveForProduct(ctx, product.ID, now)
	if err != nil {
		if errors.Is(err, repositories.ErrNoActiveFlashSale) {
			return quote, nil
		}
		s.logger(ctx, "discount.flash_sale_lookup_failed", map[string]any{
			"productID": product.ID,
			"error":     err.Error(),
		})
		return PriceQuote{}, ErrDiscountUnavailable
	}

	if !sale.RunningAt(now) {
		return quote, nil
	}

	quote.UnitPrice = domain.FlashUnitPrice(product.Price, sale.DiscountPercent)
	saleCopy := sale
	quote.FlashSale = &saleCopy
	return quote, nil
}
