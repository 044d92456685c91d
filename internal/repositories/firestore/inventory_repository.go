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

const reservationCollection = "reservations"

// InventoryRepository mutates product stock and flash-sale counters inside a
// single Firestore transaction per order, so a contended unit of stock is won
// by exactly one reservation. Reservation documents are keyed by order ID.
type InventoryRepository struct {
	provider     *pfirestore.Provider
	products     *pfirestore.BaseRepository[productDocument]
	flashSales   *pfirestore.BaseRepository[flashSaleDocument]
	reservations *pfirestore.BaseRepository[reservationDocument]
}

// NewInventoryRepository constructs a Firestore-backed inventory repository.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	return &InventoryRepository{
		provider:     provider,
		products:     pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
		flashSales:   pfirestore.NewBaseRepository[flashSaleDocument](provider, flashSaleCollection, nil, nil),
		reservations: pfirestore.NewBaseRepository[reservationDocument](provider, reservationCollection, nil, nil),
	}, nil
}

// Reserve atomically decrements stock for every line and advances flash-sale
// counters, then records the hold. Any failing line aborts the whole
// transaction with no partial writes.
func (r *InventoryRepository) Reserve(ctx context.Context, req repositories.InventoryReserveRequest) (domain.Reservation, error) {
	if r == nil || r.provider == nil {
		return domain.Reservation{}, errors.New("inventory repository not initialised")
	}
	reservation := req.Reservation
	if strings.TrimSpace(reservation.OrderID) == "" {
		return domain.Reservation{}, errors.New("inventory reserve: order id is required")
	}
	if len(reservation.Lines) == 0 {
		return domain.Reservation{}, errors.New("inventory reserve: at least one line is required")
	}

	now := req.Now.UTC()
	reservation.Status = domain.ReservationStatusReserved
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}

	var saved domain.Reservation
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resRef, err := r.reservations.DocumentRef(ctx, reservation.OrderID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(resRef); err == nil {
			return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, fmt.Sprintf("reservation for order %s already exists", reservation.OrderID), nil)
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		// All reads happen before any write; Firestore transactions require it.
		type lineState struct {
			line    domain.ReservationLine
			prodRef *firestore.DocumentRef
			prodDoc productDocument
			saleRef *firestore.DocumentRef
			saleDoc flashSaleDocument
			hasSale bool
		}
		states := make([]lineState, 0, len(reservation.Lines))

		for _, line := range reservation.Lines {
			productID := strings.TrimSpace(line.ProductID)
			if productID == "" {
				return repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, "inventory reserve: product id is required", nil)
			}
			if line.Quantity <= 0 {
				return repositories.NewInventoryError(repositories.InventoryErrorUnknown, fmt.Sprintf("inventory reserve: quantity for %s must be > 0", productID), nil)
			}

			prodRef, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(prodRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return &repositories.InventoryError{Code: repositories.InventoryErrorProductNotFound, ProductID: productID, Message: fmt.Sprintf("product %s not found", productID), Err: err}
				}
				return err
			}
			var prodDoc productDocument
			if err := snap.DataTo(&prodDoc); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			if prodDoc.Stock < line.Quantity {
				return &repositories.InventoryError{Code: repositories.InventoryErrorInsufficientStock, ProductID: productID, Message: fmt.Sprintf("insufficient stock for %s", productID)}
			}

			state := lineState{line: line, prodRef: prodRef, prodDoc: prodDoc}

			if saleID := strings.TrimSpace(line.FlashSaleID); saleID != "" {
				saleRef, err := r.flashSales.DocumentRef(ctx, saleID)
				if err != nil {
					return err
				}
				saleSnap, err := tx.Get(saleRef)
				if err != nil {
					if status.Code(err) == codes.NotFound {
						return &repositories.InventoryError{Code: repositories.InventoryErrorFlashSaleExhausted, ProductID: productID, Message: fmt.Sprintf("flash sale %s not found", saleID), Err: err}
					}
					return err
				}
				var saleDoc flashSaleDocument
				if err := saleSnap.DataTo(&saleDoc); err != nil {
					return fmt.Errorf("decode flash sale %s: %w", saleID, err)
				}
				// A fully consumed cap fails the line even when raw stock remains.
				if saleDoc.SoldCount >= saleDoc.Quantity {
					return &repositories.InventoryError{Code: repositories.InventoryErrorFlashSaleExhausted, ProductID: productID, Message: fmt.Sprintf("flash sale %s exhausted", saleID)}
				}
				state.saleRef = saleRef
				state.saleDoc = saleDoc
				state.hasSale = true
			}

			states = append(states, state)
		}

		for _, state := range states {
			state.prodDoc.Stock -= state.line.Quantity
			state.prodDoc.UpdatedAt = now
			if err := tx.Set(state.prodRef, state.prodDoc); err != nil {
				return err
			}
			if state.hasSale {
				state.saleDoc.SoldCount += state.line.Quantity
				if state.saleDoc.SoldCount > state.saleDoc.Quantity {
					state.saleDoc.SoldCount = state.saleDoc.Quantity
				}
				state.saleDoc.UpdatedAt = now
				if err := tx.Set(state.saleRef, state.saleDoc); err != nil {
					return err
				}
			}
		}

		resDoc := newReservationDocument(reservation)
		resDoc.CreatedAt = reservation.CreatedAt.UTC()
		if err := tx.Create(resRef, resDoc); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, fmt.Sprintf("reservation for order %s already exists", reservation.OrderID), err)
			}
			return err
		}

		saved = resDoc.toDomain(reservation.OrderID)
		return nil
	})
	if err != nil {
		return domain.Reservation{}, wrapInventoryError("inventory.reserve", err)
	}
	return saved, nil
}

// Release restores the reserved quantities and marks the hold released.
// Flash-sale counters stay consumed; refunded units do not reopen the cap.
func (r *InventoryRepository) Release(ctx context.Context, orderID string, now time.Time) (domain.Reservation, error) {
	if r == nil || r.provider == nil {
		return domain.Reservation{}, errors.New("inventory repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Reservation{}, errors.New("inventory release: order id is required")
	}

	instant := now.UTC()
	var released domain.Reservation

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resRef, err := r.reservations.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		resSnap, err := tx.Get(resRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewInventoryError(repositories.InventoryErrorReservationNotFound, fmt.Sprintf("reservation for order %s not found", orderID), err)
			}
			return err
		}
		var resDoc reservationDocument
		if err := resSnap.DataTo(&resDoc); err != nil {
			return fmt.Errorf("decode reservation %s: %w", orderID, err)
		}
		if resDoc.Status != string(domain.ReservationStatusReserved) {
			return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, fmt.Sprintf("reservation for order %s is not held", orderID), nil)
		}

		type restore struct {
			ref *firestore.DocumentRef
			doc productDocument
			qty int64
		}
		restores := make([]restore, 0, len(resDoc.Lines))
		for _, line := range resDoc.Lines {
			productID := strings.TrimSpace(line.ProductID)
			prodRef, err := r.products.DocumentRef(ctx, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(prodRef)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return &repositories.InventoryError{Code: repositories.InventoryErrorProductNotFound, ProductID: productID, Message: fmt.Sprintf("product %s not found", productID), Err: err}
				}
				return err
			}
			var prodDoc productDocument
			if err := snap.DataTo(&prodDoc); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			restores = append(restores, restore{ref: prodRef, doc: prodDoc, qty: line.Quantity})
		}

		for _, item := range restores {
			item.doc.Stock += item.qty
			item.doc.UpdatedAt = instant
			if err := tx.Set(item.ref, item.doc); err != nil {
				return err
			}
		}

		resDoc.Status = string(domain.ReservationStatusReleased)
		resDoc.ReleasedAt = &instant
		if err := tx.Set(resRef, resDoc); err != nil {
			return err
		}

		released = resDoc.toDomain(orderID)
		return nil
	})
	if err != nil {
		return domain.Reservation{}, wrapInventoryError("inventory.release", err)
	}
	return released, nil
}

// FindByOrder loads the reservation record for an order.
func (r *InventoryRepository) FindByOrder(ctx context.Context, orderID string) (domain.Reservation, error) {
	if r == nil || r.reservations == nil {
		return domain.Reservation{}, errors.New("inventory repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Reservation{}, errors.New("inventory find: order id is required")
	}

	doc, err := r.reservations.Get(ctx, orderID)
	if err != nil {
		if repoErr, ok := err.(*pfirestore.Error); ok && repoErr.IsNotFound() {
			return domain.Reservation{}, repositories.NewInventoryError(repositories.InventoryErrorReservationNotFound, fmt.Sprintf("reservation for order %s not found", orderID), err)
		}
		return domain.Reservation{}, wrapInventoryError("inventory.find", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Helper structures ---------------------------------------------------------

type reservationDocument struct {
	ID         string                    `firestore:"id"`
	OrderID    string                    `firestore:"orderId"`
	UserID     string                    `firestore:"userId"`
	Status     string                    `firestore:"status"`
	Lines      []reservationLineDocument `firestore:"lines"`
	CreatedAt  time.Time                 `firestore:"createdAt"`
	ReleasedAt *time.Time                `firestore:"releasedAt,omitempty"`
}

type reservationLineDocument struct {
	ProductID   string `firestore:"productId"`
	Quantity    int64  `firestore:"qty"`
	FlashSaleID string `firestore:"flashSaleId,omitempty"`
}

func newReservationDocument(res domain.Reservation) reservationDocument {
	lines := make([]reservationLineDocument, len(res.Lines))
	for i, line := range res.Lines {
		lines[i] = reservationLineDocument{
			ProductID:   strings.TrimSpace(line.ProductID),
			Quantity:    line.Quantity,
			FlashSaleID: strings.TrimSpace(line.FlashSaleID),
		}
	}
	return reservationDocument{
		ID:        strings.TrimSpace(res.ID),
		OrderID:   strings.TrimSpace(res.OrderID),
		UserID:    strings.TrimSpace(res.UserID),
		Status:    string(res.Status),
		Lines:     lines,
		CreatedAt: res.CreatedAt.UTC(),
	}
}

func (d reservationDocument) toDomain(orderID string) domain.Reservation {
	lines := make([]domain.ReservationLine, len(d.Lines))
	for i, line := range d.Lines {
		lines[i] = domain.ReservationLine{
			ProductID:   strings.TrimSpace(line.ProductID),
			Quantity:    line.Quantity,
			FlashSaleID: strings.TrimSpace(line.FlashSaleID),
		}
	}
	return domain.Reservation{
		ID:         strings.TrimSpace(d.ID),
		OrderID:    orderID,
		UserID:     strings.TrimSpace(d.UserID),
		Status:     domain.ReservationStatus(d.Status),
		Lines:      lines,
		CreatedAt:  d.CreatedAt,
		ReleasedAt: d.ReleasedAt,
	}
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}

var _ repositories.InventoryRepository = (*InventoryRepository)(nil)
