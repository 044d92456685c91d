package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/clovermart/api/internal/domain"
	pfirestore "github.com/clovermart/api/internal/platform/firestore"
	"github.com/clovermart/api/internal/repositories"
)

const couponCollection = "coupons"

// CouponRepository persists coupons keyed by their normalised code. The usage
// counter only moves through conditional transactional updates so concurrent
// orders cannot exceed the configured limit.
type CouponRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[couponDocument](provider, couponCollection, nil, nil)
	return &CouponRepository{provider: provider, base: base}, nil
}

// FindByCode loads a coupon by its case-insensitive code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := normaliseCouponCode(code)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		if repoErr, ok := err.(*pfirestore.Error); ok && repoErr.IsNotFound() {
			return domain.Coupon{}, repositories.NewCouponError(repositories.CouponErrorNotFound, fmt.Sprintf("coupon %s not found", id), err)
		}
		return domain.Coupon{}, wrapCouponError("coupon.findByCode", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// IncrementUsage advances the usage counter only while it is below the limit.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code string, now time.Time) (domain.Coupon, error) {
	if r == nil || r.provider == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	id := normaliseCouponCode(code)
	if id == "" {
		return domain.Coupon{}, errors.New("coupon repository: code is required")
	}

	instant := now.UTC()
	var updated domain.Coupon
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewCouponError(repositories.CouponErrorNotFound, fmt.Sprintf("coupon %s not found", id), err)
			}
			return err
		}
		var doc couponDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode coupon %s: %w", id, err)
		}
		if doc.UsageLimit != nil && doc.UsedCount >= *doc.UsageLimit {
			return repositories.NewCouponError(repositories.CouponErrorUsageExhausted, fmt.Sprintf("coupon %s usage exhausted", id), nil)
		}
		doc.UsedCount++
		doc.UpdatedAt = instant
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = doc.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.Coupon{}, wrapCouponError("coupon.incrementUsage", err)
	}
	return updated, nil
}

// DecrementUsage compensates a usage increment after a later pipeline failure.
func (r *CouponRepository) DecrementUsage(ctx context.Context, code string, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("coupon repository not initialised")
	}
	id := normaliseCouponCode(code)
	if id == "" {
		return errors.New("coupon repository: code is required")
	}

	instant := now.UTC()
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewCouponError(repositories.CouponErrorNotFound, fmt.Sprintf("coupon %s not found", id), err)
			}
			return err
		}
		var doc couponDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode coupon %s: %w", id, err)
		}
		if doc.UsedCount <= 0 {
			return nil
		}
		doc.UsedCount--
		doc.UpdatedAt = instant
		return tx.Set(ref, doc)
	})
	return wrapCouponError("coupon.decrementUsage", err)
}

func normaliseCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type couponDocument struct {
	Code        string     `firestore:"code"`
	Type        string     `firestore:"type"`
	Value       int64      `firestore:"value"`
	MinPurchase *int64     `firestore:"minPurchase,omitempty"`
	MaxDiscount *int64     `firestore:"maxDiscount,omitempty"`
	ExpiresAt   *time.Time `firestore:"expiresAt,omitempty"`
	UsageLimit  *int64     `firestore:"usageLimit,omitempty"`
	UsedCount   int64      `firestore:"usedCount"`
	Active      bool       `firestore:"active"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}

func (d couponDocument) toDomain(id string) domain.Coupon {
	code := strings.TrimSpace(d.Code)
	if code == "" {
		code = id
	}
	return domain.Coupon{
		ID:          id,
		Code:        code,
		Type:        domain.CouponType(strings.TrimSpace(d.Type)),
		Value:       d.Value,
		MinPurchase: d.MinPurchase,
		MaxDiscount: d.MaxDiscount,
		ExpiresAt:   d.ExpiresAt,
		UsageLimit:  d.UsageLimit,
		UsedCount:   d.UsedCount,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func wrapCouponError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coupErr *repositories.CouponError
	if errors.As(err, &coupErr) {
		if coupErr.Op == "" {
			coupErr.Op = op
		}
		return coupErr
	}
	return pfirestore.WrapError(op, err)
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)
