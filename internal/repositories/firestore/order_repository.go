package firestore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/clovermart/api/internal/domain"
	pfirestore "github.com/clovermart/api/internal/platform/firestore"
	"github.com/clovermart/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists order documents.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{provider: provider, base: base}, nil
}

// Insert creates the order document; an existing ID is a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}

	ref, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, newOrderDocument(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the stored document for the order.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	_, err := r.base.Set(ctx, id, newOrderDocument(order))
	return err
}

// FindByID loads a single order document.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders newest first, filtered by user and status.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
	}

	query := client.Collection(orderCollection).Query
	if uid := strings.TrimSpace(filter.UserID); uid != "" {
		query = query.Where("userId", "==", uid)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = string(st)
		}
		query = query.Where("status", "in", statuses)
	}
	query = query.OrderBy("createdAt", firestore.Desc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := decodeOrderPageToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		query = query.StartAfter(decoded.CreatedAt)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := encodeOrderPageToken(orderPageToken{CreatedAt: last.CreatedAt})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

type orderPageToken struct {
	CreatedAt time.Time
}

func encodeOrderPageToken(token orderPageToken) (string, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(token); err != nil {
		return "", fmt.Errorf("encode order page token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes.TrimSpace(buf.Bytes())), nil
}

func decodeOrderPageToken(encoded string) (*orderPageToken, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode order page token: %w", err)
	}
	var token orderPageToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode order page token json: %w", err)
	}
	return &token, nil
}

// Document structures -------------------------------------------------------

type orderDocument struct {
	Number           string               `firestore:"number"`
	UserID           string               `firestore:"userId"`
	Items            []orderItemDocument  `firestore:"items"`
	ShippingAddress  addressDocument      `firestore:"shippingAddress"`
	PaymentMethod    string               `firestore:"paymentMethod"`
	ShippingMethodID string               `firestore:"shippingMethodId,omitempty"`
	CouponCode       string               `firestore:"couponCode,omitempty"`
	Currency         string               `firestore:"currency"`
	ExchangeRate     float64              `firestore:"exchangeRate"`
	ItemsPrice       int64                `firestore:"itemsPrice"`
	Discount         int64                `firestore:"discount"`
	ShippingPrice    int64                `firestore:"shippingPrice"`
	TaxPrice         int64                `firestore:"taxPrice"`
	TotalPrice       int64                `firestore:"totalPrice"`
	ConvertedTotal   int64                `firestore:"convertedTotal"`
	Status           string               `firestore:"status"`
	IsPaid           bool                 `firestore:"isPaid"`
	PaidAt           *time.Time           `firestore:"paidAt,omitempty"`
	PaymentResult    *paymentResultRecord `firestore:"paymentResult,omitempty"`
	IsDelivered      bool                 `firestore:"isDelivered"`
	DeliveredAt      *time.Time           `firestore:"deliveredAt,omitempty"`
	ShippedAt        *time.Time           `firestore:"shippedAt,omitempty"`
	CancelledAt      *time.Time           `firestore:"cancelledAt,omitempty"`
	TrackingNumber   string               `firestore:"trackingNumber,omitempty"`
	CreatedAt        time.Time            `firestore:"createdAt"`
	UpdatedAt        time.Time            `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID   string `firestore:"productId"`
	Name        string `firestore:"name"`
	Image       string `firestore:"image,omitempty"`
	Variant     string `firestore:"variant,omitempty"`
	Quantity    int64  `firestore:"qty"`
	UnitPrice   int64  `firestore:"unitPrice"`
	LineTotal   int64  `firestore:"lineTotal"`
	FlashSaleID string `firestore:"flashSaleId,omitempty"`
}

type addressDocument struct {
	FullName   string `firestore:"fullName"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

type paymentResultRecord struct {
	ID         string    `firestore:"id"`
	Status     string    `firestore:"status"`
	Email      string    `firestore:"email,omitempty"`
	UpdateTime time.Time `firestore:"updateTime"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			ProductID:   strings.TrimSpace(item.ProductID),
			Name:        strings.TrimSpace(item.Name),
			Image:       strings.TrimSpace(item.Image),
			Variant:     strings.TrimSpace(item.Variant),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
			FlashSaleID: strings.TrimSpace(item.FlashSaleID),
		}
	}

	doc := orderDocument{
		Number:           strings.TrimSpace(order.Number),
		UserID:           strings.TrimSpace(order.UserID),
		Items:            items,
		ShippingAddress:  newAddressDocument(order.ShippingAddress),
		PaymentMethod:    strings.TrimSpace(order.PaymentMethod),
		ShippingMethodID: strings.TrimSpace(order.ShippingMethodID),
		CouponCode:       strings.TrimSpace(order.CouponCode),
		Currency:         strings.ToUpper(strings.TrimSpace(order.Currency)),
		ExchangeRate:     order.ExchangeRate,
		ItemsPrice:       order.Totals.Items,
		Discount:         order.Totals.Discount,
		ShippingPrice:    order.Totals.Shipping,
		TaxPrice:         order.Totals.Tax,
		TotalPrice:       order.Totals.Total,
		ConvertedTotal:   order.ConvertedTotal,
		Status:           string(order.Status),
		IsPaid:           order.IsPaid,
		PaidAt:           order.PaidAt,
		IsDelivered:      order.IsDelivered,
		DeliveredAt:      order.DeliveredAt,
		ShippedAt:        order.ShippedAt,
		CancelledAt:      order.CancelledAt,
		TrackingNumber:   strings.TrimSpace(order.TrackingNumber),
		CreatedAt:        order.CreatedAt.UTC(),
		UpdatedAt:        order.UpdatedAt.UTC(),
	}
	if order.PaymentResult != nil {
		doc.PaymentResult = &paymentResultRecord{
			ID:         strings.TrimSpace(order.PaymentResult.ID),
			Status:     strings.TrimSpace(order.PaymentResult.Status),
			Email:      strings.TrimSpace(order.PaymentResult.Email),
			UpdateTime: order.PaymentResult.UpdateTime.UTC(),
		}
	}
	return doc
}

func newAddressDocument(addr domain.Address) addressDocument {
	return addressDocument{
		FullName:   strings.TrimSpace(addr.FullName),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      strings.TrimSpace(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      strings.TrimSpace(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(addr.Country)),
		Phone:      strings.TrimSpace(addr.Phone),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderItem{
			ProductID:   item.ProductID,
			Name:        item.Name,
			Image:       item.Image,
			Variant:     item.Variant,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
			FlashSaleID: item.FlashSaleID,
		}
	}

	order := domain.Order{
		ID:               id,
		Number:           d.Number,
		UserID:           d.UserID,
		Items:            items,
		ShippingAddress:  d.ShippingAddress.toDomain(),
		PaymentMethod:    d.PaymentMethod,
		ShippingMethodID: d.ShippingMethodID,
		CouponCode:       d.CouponCode,
		Currency:         d.Currency,
		ExchangeRate:     d.ExchangeRate,
		Totals: domain.OrderTotals{
			Items:    d.ItemsPrice,
			Discount: d.Discount,
			Shipping: d.ShippingPrice,
			Tax:      d.TaxPrice,
			Total:    d.TotalPrice,
		},
		ConvertedTotal: d.ConvertedTotal,
		Status:         domain.OrderStatus(d.Status),
		IsPaid:         d.IsPaid,
		PaidAt:         d.PaidAt,
		IsDelivered:    d.IsDelivered,
		DeliveredAt:    d.DeliveredAt,
		ShippedAt:      d.ShippedAt,
		CancelledAt:    d.CancelledAt,
		TrackingNumber: d.TrackingNumber,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.PaymentResult != nil {
		order.PaymentResult = &domain.PaymentResult{
			ID:         d.PaymentResult.ID,
			Status:     d.PaymentResult.Status,
			Email:      d.PaymentResult.Email,
			UpdateTime: d.PaymentResult.UpdateTime,
		}
	}
	return order
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address{
		FullName:   d.FullName,
		Line1:      d.Line1,
		Line2:      d.Line2,
		City:       d.City,
		State:      d.State,
		PostalCode: d.PostalCode,
		Country:    d.Country,
		Phone:      d.Phone,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
