package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/repositories"
)

func newTestInventoryService(t *testing.T, deps InventoryServiceDeps) InventoryService {
	t.Helper()
	if deps.Repository == nil {
		deps.Repository = &stubInventoryRepository{}
	}
	if deps.Products == nil {
		deps.Products = &stubProductRepository{}
	}
	svc, err := NewInventoryService(deps)
	if err != nil {
		t.Fatalf("NewInventoryService: %v", err)
	}
	return svc
}

func TestReserveCollapsesDuplicateLines(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var got repositories.InventoryReserveRequest
	svc := newTestInventoryService(t, InventoryServiceDeps{
		Repository: &stubInventoryRepository{
			reserve: func(_ context.Context, req repositories.InventoryReserveRequest) (domain.Reservation, error) {
				got = req
				return req.Reservation, nil
			},
		},
	})

	reservation, err := svc.Reserve(context.Background(), ReserveStockCommand{
		OrderID: "o1",
		UserID:  "u1",
		Now:     now,
		Lines: []ReservationLine{
			{ProductID: "p1", Quantity: 2, FlashSaleID: "fs1"},
			{ProductID: "p2", Quantity: 1},
			{ProductID: "p1", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if reservation.OrderID != "o1" {
		t.Fatalf("reservation order = %q", reservation.OrderID)
	}
	if len(got.Reservation.Lines) != 2 {
		t.Fatalf("expected collapsed lines, got %+v", got.Reservation.Lines)
	}
	if got.Reservation.Lines[0].Quantity != 5 || got.Reservation.Lines[0].FlashSaleID != "fs1" {
		t.Fatalf("collapsed line = %+v", got.Reservation.Lines[0])
	}
	if !got.Now.Equal(now) {
		t.Fatalf("request now = %v", got.Now)
	}
}

func TestReserveTranslatesStockAndCapFailures(t *testing.T) {
	cases := []struct {
		name string
		code repositories.InventoryErrorCode
		want error
	}{
		{"insufficient stock", repositories.InventoryErrorInsufficientStock, ErrInventoryInsufficientStock},
		{"flash sale cap exhausted", repositories.InventoryErrorFlashSaleExhausted, ErrInventoryInsufficientStock},
		{"missing product", repositories.InventoryErrorProductNotFound, ErrInventoryProductNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestInventoryService(t, InventoryServiceDeps{
				Repository: &stubInventoryRepository{
					reserve: func(context.Context, repositories.InventoryReserveRequest) (domain.Reservation, error) {
						return domain.Reservation{}, &repositories.InventoryError{Code: tc.code, ProductID: "p1"}
					},
				},
			})

			_, err := svc.Reserve(context.Background(), ReserveStockCommand{
				OrderID: "o1",
				UserID:  "u1",
				Now:     time.Now(),
				Lines:   []ReservationLine{{ProductID: "p1", Quantity: 1}},
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReserveValidatesInput(t *testing.T) {
	svc := newTestInventoryService(t, InventoryServiceDeps{})

	_, err := svc.Reserve(context.Background(), ReserveStockCommand{OrderID: "o1", UserID: "u1", Now: time.Now()})
	if !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected ErrInventoryInvalidInput for empty lines, got %v", err)
	}

	_, err = svc.Reserve(context.Background(), ReserveStockCommand{
		OrderID: "o1",
		UserID:  "u1",
		Now:     time.Now(),
		Lines:   []ReservationLine{{ProductID: "p1", Quantity: 0}},
	})
	if !errors.Is(err, ErrInventoryInvalidInput) {
		t.Fatalf("expected ErrInventoryInvalidInput for zero quantity, got %v", err)
	}
}

func TestReleaseTranslatesMissingReservation(t *testing.T) {
	svc := newTestInventoryService(t, InventoryServiceDeps{
		Repository: &stubInventoryRepository{
			release: func(context.Context, string, time.Time) (domain.Reservation, error) {
				return domain.Reservation{}, &repositories.InventoryError{Code: repositories.InventoryErrorReservationNotFound}
			},
		},
	})

	if _, err := svc.Release(context.Background(), "o1", time.Now()); !errors.Is(err, ErrInventoryReservationNotFound) {
		t.Fatalf("expected ErrInventoryReservationNotFound, got %v", err)
	}
}

func TestReleaseTranslatesDoubleRelease(t *testing.T) {
	svc := newTestInventoryService(t, InventoryServiceDeps{
		Repository: &stubInventoryRepository{
			release: func(context.Context, string, time.Time) (domain.Reservation, error) {
				return domain.Reservation{}, &repositories.InventoryError{Code: repositories.InventoryErrorInvalidReservationState}
			},
		},
	})

	if _, err := svc.Release(context.Background(), "o1", time.Now()); !errors.Is(err, ErrInventoryConflict) {
		t.Fatalf("expected ErrInventoryConflict, got %v", err)
	}
}

func TestCollectLowStockFlagsThresholdBreaches(t *testing.T) {
	svc := newTestInventoryService(t, InventoryServiceDeps{
		LowStockThreshold: 5,
		Products: &stubProductRepository{
			findByIDs: func(_ context.Context, ids []string) (map[string]domain.Product, error) {
				if len(ids) != 2 {
					t.Fatalf("expected deduplicated ids, got %v", ids)
				}
				return map[string]domain.Product{
					"p1": {ID: "p1", Name: "Low", Stock: 3},
					"p2": {ID: "p2", Name: "Fine", Stock: 50},
				}, nil
			},
		},
	})

	alerts, err := svc.CollectLowStock(context.Background(), []string{"p1", "p2", "p1"})
	if err != nil {
		t.Fatalf("CollectLowStock: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %+v", alerts)
	}
	if alerts[0].ProductID != "p1" || alerts[0].Stock != 3 || alerts[0].Threshold != 5 {
		t.Fatalf("unexpected alert %+v", alerts[0])
	}
}
