package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/repositories"
)

var errCouponRepositoryRequired = errors.New("coupon service: repository is required")

// ErrCouponRejected is the base error for every coupon rejection reason.
var ErrCouponRejected = errors.New("coupon service: rejected")

// ErrCouponInvalid indicates the code does not exist or the coupon is inactive.
var ErrCouponInvalid = fmt.Errorf("%w: invalid code", ErrCouponRejected)

// ErrCouponExpired indicates the coupon's expiry predates the request time.
var ErrCouponExpired = fmt.Errorf("%w: expired", ErrCouponRejected)

// ErrCouponUsageExhausted indicates the usage limit is fully consumed.
var ErrCouponUsageExhausted = fmt.Errorf("%w: usage limit reached", ErrCouponRejected)

// ErrCouponBelowMinimum indicates the subtotal is under the coupon's minimum purchase.
var ErrCouponBelowMinimum = fmt.Errorf("%w: below minimum purchase", ErrCouponRejected)

// ErrCouponUnavailable indicates the coupon store could not be consulted.
var ErrCouponUnavailable = errors.New("coupon service: unavailable")

// CouponServiceDeps wires the coupon repository for validation and redemption.
type CouponServiceDeps struct {
	Repository repositories.CouponRepository
	Logger     func(context.Context, string, map[string]any)
}

type couponService struct {
	repo   repositories.CouponRepository
	logger func(context.Context, string, map[string]any)
}

// NewCouponService constructs a CouponService enforcing dependency validation.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Repository == nil {
		return nil, errCouponRepositoryRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &couponService{
		repo:   deps.Repository,
		logger: logger,
	}, nil
}

// Validate checks the code against the subtotal at the captured request time.
// Rejection reasons are evaluated in a fixed order: invalid, expired, usage
// exhausted, below minimum. Validation never touches the usage counter.
func (s *couponService) Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponApplication, error) {
	if s == nil || s.repo == nil {
		return CouponApplication{}, ErrCouponUnavailable
	}

	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	if code == "" {
		return CouponApplication{}, ErrCouponInvalid
	}
	if cmd.Subtotal < 0 {
		return CouponApplication{}, ErrCouponInvalid
	}

	now := cmd.Now.UTC()
	if now.IsZero() {
		return CouponApplication{}, ErrCouponUnavailable
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if isCouponNotFound(err) || isRepoNotFound(err) {
			return CouponApplication{}, ErrCouponInvalid
		}
		s.logger(ctx, "coupon.lookup_failed", map[string]any{
			"code":  code,
			"error": err.Error(),
		})
		return CouponApplication{}, ErrCouponUnavailable
	}

	if !coupon.Active {
		return CouponApplication{}, ErrCouponInvalid
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(now) {
		return CouponApplication{}, ErrCouponExpired
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return CouponApplication{}, ErrCouponUsageExhausted
	}
	if coupon.MinPurchase != nil && cmd.Subtotal < *coupon.MinPurchase {
		return CouponApplication{}, ErrCouponBelowMinimum
	}

	return CouponApplication{
		Coupon:   coupon,
		Discount: couponDiscount(coupon, cmd.Subtotal),
	}, nil
}

// Redeem increments the usage counter once. The repository performs the
// increment as a single conditional update, so concurrent orders cannot push
// the counter past the limit.
func (s *couponService) Redeem(ctx context.Context, code string, now time.Time) error {
	if s == nil || s.repo == nil {
		return ErrCouponUnavailable
	}

	normalised := strings.ToUpper(strings.TrimSpace(code))
	if normalised == "" {
		return ErrCouponInvalid
	}

	if _, err := s.repo.IncrementUsage(ctx, normalised, now.UTC()); err != nil {
		switch {
		case isCouponUsageExhausted(err):
			return ErrCouponUsageExhausted
		case isCouponNotFound(err):
			return ErrCouponInvalid
		}
		s.logger(ctx, "coupon.redeem_failed", map[string]any{
			"code":  normalised,
			"error": err.Error(),
		})
		return ErrCouponUnavailable
	}
	return nil
}

// Unredeem compensates a Redeem when the order it belonged to never persisted.
func (s *couponService) Unredeem(ctx context.Context, code string, now time.Time) error {
	if s == nil || s.repo == nil {
		return ErrCouponUnavailable
	}

	normalised := strings.ToUpper(strings.TrimSpace(code))
	if normalised == "" {
		return ErrCouponInvalid
	}

	if err := s.repo.DecrementUsage(ctx, normalised, now.UTC()); err != nil {
		if isCouponNotFound(err) {
			return ErrCouponInvalid
		}
		s.logger(ctx, "coupon.unredeem_failed", map[string]any{
			"code":  normalised,
			"error": err.Error(),
		})
		return ErrCouponUnavailable
	}
	return nil
}

// couponDiscount computes the discount a valid coupon grants. Percentage
// discounts clamp to maxDiscount when set; fixed discounts never exceed the
// subtotal, so a total can never go negative.
func couponDiscount(coupon domain.Coupon, subtotal int64) int64 {
	var discount int64
	switch coupon.Type {
	case domain.CouponTypePercentage:
		discount = domain.PercentageDiscount(subtotal, coupon.Value)
		if coupon.MaxDiscount != nil && discount > *coupon.MaxDiscount {
			discount = *coupon.MaxDiscount
		}
	case domain.CouponTypeFixed:
		discount = coupon.Value
	default:
		return 0
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func isCouponNotFound(err error) bool {
	var couponErr *repositories.CouponError
	if errors.As(err, &couponErr) {
		return couponErr.Code == repositories.CouponErrorNotFound
	}
	return false
}

func isCouponUsageExhausted(err error) bool {
	var couponErr *repositories.CouponError
	if errors.As(err, &couponErr) {
		return couponErr.Code == repositories.CouponErrorUsageExhausted
	}
	return false
}
