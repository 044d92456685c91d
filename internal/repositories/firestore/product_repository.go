package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/clovermart/api/internal/domain"
	pfirestore "github.com/clovermart/api/internal/platform/firestore"
	"github.com/clovermart/api/internal/repositories"
)

const productCollection = "products"

// ProductRepository reads catalog documents. Stock writes happen exclusively
// inside InventoryRepository transactions.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{base: base}, nil
}

// FindByID loads a single product document.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByIDs loads the given products, omitting missing ones from the result.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}

	products := make(map[string]domain.Product, len(productIDs))
	for _, raw := range productIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, seen := products[id]; seen {
			continue
		}
		doc, err := r.base.Get(ctx, id)
		if err != nil {
			if repoErr, ok := err.(*pfirestore.Error); ok && repoErr.IsNotFound() {
				continue
			}
			return nil, err
		}
		products[id] = doc.Data.toDomain(doc.ID)
	}
	return products, nil
}

type productDocument struct {
	Name       string    `firestore:"name"`
	Image      string    `firestore:"image,omitempty"`
	Price      int64     `firestore:"price"`
	Currency   string    `firestore:"currency"`
	Stock      int64     `firestore:"stock"`
	Active     bool      `firestore:"active"`
	CategoryID string    `firestore:"categoryId,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:         id,
		Name:       strings.TrimSpace(d.Name),
		Image:      strings.TrimSpace(d.Image),
		Price:      d.Price,
		Currency:   strings.ToUpper(strings.TrimSpace(d.Currency)),
		Stock:      d.Stock,
		Active:     d.Active,
		CategoryID: strings.TrimSpace(d.CategoryID),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
