package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/clovermart/api/internal/domain"
	pfirestore "github.com/clovermart/api/internal/platform/firestore"
	"github.com/clovermart/api/internal/repositories"
)

const flashSaleCollection = "flashSales"

// FlashSaleRepository reads flash-sale documents. The sold counter is advanced
// only inside InventoryRepository transactions.
type FlashSaleRepository struct {
	base *pfirestore.BaseRepository[flashSaleDocument]
}

// NewFlashSaleRepository constructs a Firestore-backed flash-sale repository.
func NewFlashSaleRepository(provider *pfirestore.Provider) (*FlashSaleRepository, error) {
	if provider == nil {
		return nil, errors.New("flash sale repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[flashSaleDocument](provider, flashSaleCollection, nil, nil)
	return &FlashSaleRepository{base: base}, nil
}

// FindActiveForProduct returns the enabled sale whose window contains now.
// At most one such sale exists per product; creation tooling enforces that.
func (r *FlashSaleRepository) FindActiveForProduct(ctx context.Context, productID string, now time.Time) (domain.FlashSale, error) {
	if r == nil || r.base == nil {
		return domain.FlashSale{}, errors.New("flash sale repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.FlashSale{}, errors.New("flash sale repository: product id is required")
	}

	instant := now.UTC()
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.
			Where("productId", "==", id).
			Where("active", "==", true).
			Where("startsAt", "<=", instant).
			OrderBy("startsAt", firestore.Desc).
			Limit(1)
	})
	if err != nil {
		return domain.FlashSale{}, err
	}
	for _, doc := range docs {
		sale := doc.Data.toDomain(doc.ID)
		if !instant.After(sale.EndsAt) {
			return sale, nil
		}
	}
	return domain.FlashSale{}, repositories.ErrNoActiveFlashSale
}

// FindByID loads a single sale document.
func (r *FlashSaleRepository) FindByID(ctx context.Context, flashSaleID string) (domain.FlashSale, error) {
	if r == nil || r.base == nil {
		return domain.FlashSale{}, errors.New("flash sale repository not initialised")
	}
	id := strings.TrimSpace(flashSaleID)
	if id == "" {
		return domain.FlashSale{}, errors.New("flash sale repository: id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.FlashSale{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

type flashSaleDocument struct {
	ProductID       string    `firestore:"productId"`
	DiscountPercent int64     `firestore:"discountPercent"`
	StartsAt        time.Time `firestore:"startsAt"`
	EndsAt          time.Time `firestore:"endsAt"`
	Quantity        int64     `firestore:"quantity"`
	SoldCount       int64     `firestore:"soldCount"`
	Active          bool      `firestore:"active"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

func (d flashSaleDocument) toDomain(id string) domain.FlashSale {
	return domain.FlashSale{
		ID:              id,
		ProductID:       strings.TrimSpace(d.ProductID),
		DiscountPercent: d.DiscountPercent,
		StartsAt:        d.StartsAt,
		EndsAt:          d.EndsAt,
		Quantity:        d.Quantity,
		SoldCount:       d.SoldCount,
		Active:          d.Active,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

var _ repositories.FlashSaleRepository = (*FlashSaleRepository)(nil)
