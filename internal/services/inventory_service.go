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

var (
	errInventoryRepositoryRequired = errors.New("inventory service: repository is required")
	errInventoryProductsRequired   = errors.New("inventory service: product repository is required")
)

// ErrInventoryInvalidInput indicates the caller supplied invalid input.
var ErrInventoryInvalidInput = errors.New("inventory service: invalid input")

// ErrInventoryInsufficientStock indicates a line's quantity exceeds the
// product's remaining stock or its flash-sale cap.
var ErrInventoryInsufficientStock = errors.New("inventory service: insufficient stock")

// ErrInventoryProductNotFound indicates a line references a missing product.
var ErrInventoryProductNotFound = errors.New("inventory service: product not found")

// ErrInventoryReservationNotFound indicates no reservation exists for the order.
var ErrInventoryReservationNotFound = errors.New("inventory service: reservation not found")

// ErrInventoryConflict indicates the reservation already exists or was released.
var ErrInventoryConflict = errors.New("inventory service: conflict")

// ErrInventoryUnavailable indicates the stock store could not be reached.
var ErrInventoryUnavailable = errors.New("inventory service: unavailable")

// InventoryServiceDeps wires the stock repositories for reservation workflows.
type InventoryServiceDeps struct {
	Repository        repositories.InventoryRepository
	Products          repositories.ProductRepository
	LowStockThreshold int64
	Logger            func(context.Context, string, map[string]any)
}

type inventoryService struct {
	repo      repositories.InventoryRepository
	products  repositories.ProductRepository
	threshold int64
	logger    func(context.Context, string, map[string]any)
}

// NewInventoryService constructs an InventoryService enforcing dependency validation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Repository == nil {
		return nil, errInventoryRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errInventoryProductsRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	threshold := deps.LowStockThreshold
	if threshold < 0 {
		threshold = 0
	}

	return &inventoryService{
		repo:      deps.Repository,
		products:  deps.Products,
		threshold: threshold,
		logger:    logger,
	}, nil
}

// Reserve takes a stock hold for every line in one transaction. Either all
// decrements commit or none do; per-line failures surface the offending
// product so callers can report it.
func (s *inventoryService) Reserve(ctx context.Context, cmd ReserveStockCommand) (Reservation, error) {
	if s == nil || s.repo == nil {
		return Reservation{}, ErrInventoryUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" || userID == "" {
		return Reservation{}, ErrInventoryInvalidInput
	}

	lines, err := normaliseReservationLines(cmd.Lines)
	if err != nil {
		return Reservation{}, err
	}

	now := cmd.Now.UTC()
	if now.IsZero() {
		return Reservation{}, ErrInventoryInvalidInput
	}

	reservation := domain.Reservation{
		ID:      orderID,
		OrderID: orderID,
		UserID:  userID,
		Status:  domain.ReservationStatusReserved,
		Lines:   lines,
	}

	held, err := s.repo.Reserve(ctx, repositories.InventoryReserveRequest{
		Reservation: reservation,
		Now:         now,
	})
	if err != nil {
		return Reservation{}, s.translateInventoryError(ctx, err)
	}
	return held, nil
}

// Release returns reserved stock to the shelf; flash-sale counters stay
// consumed. Releasing twice is a conflict.
func (s *inventoryService) Release(ctx context.Context, orderID string, now time.Time) (Reservation, error) {
	if s == nil || s.repo == nil {
		return Reservation{}, ErrInventoryUnavailable
	}

	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return Reservation{}, ErrInventoryInvalidInput
	}

	released, err := s.repo.Release(ctx, trimmed, now.UTC())
	if err != nil {
		return Reservation{}, s.translateInventoryError(ctx, err)
	}
	return released, nil
}

// CollectLowStock reports which of the given products now sit at or below the
// restock threshold. Missing products are skipped rather than failing the scan.
func (s *inventoryService) CollectLowStock(ctx context.Context, productIDs []string) ([]LowStockAlert, error) {
	if s == nil || s.products == nil {
		return nil, ErrInventoryUnavailable
	}

	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		ids = append(ids, trimmed)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		s.logger(ctx, "inventory.low_stock_scan_failed", map[string]any{
			"error": err.Error(),
		})
		return nil, ErrInventoryUnavailable
	}

	alerts := make([]LowStockAlert, 0)
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			continue
		}
		if product.Stock > s.threshold {
			continue
		}
		alerts = append(alerts, LowStockAlert{
			ProductID: product.ID,
			Name:      product.Name,
			Stock:     product.Stock,
			Threshold: s.threshold,
		})
	}
	return alerts, nil
}

func normaliseReservationLines(lines []ReservationLine) ([]domain.ReservationLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}

	out := make([]domain.ReservationLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: product_id is required", ErrInventoryInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrInventoryInvalidInput)
		}

		// Lines for the same product collapse so the transaction touches each
		// product document once.
		if i, ok := index[productID]; ok {
			out[i].Quantity += line.Quantity
			if out[i].FlashSaleID == "" {
				out[i].FlashSaleID = strings.TrimSpace(line.FlashSaleID)
			}
			continue
		}
		index[productID] = len(out)
		out = append(out, domain.ReservationLine{
			ProductID:   productID,
			Quantity:    line.Quantity,
			FlashSaleID: strings.TrimSpace(line.FlashSaleID),
		})
	}
	return out, nil
}

func (s *inventoryService) translateInventoryError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock, repositories.InventoryErrorFlashSaleExhausted:
			return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, invErr.ProductID)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryProductNotFound, invErr.ProductID)
		case repositories.InventoryErrorReservationNotFound:
			return ErrInventoryReservationNotFound
		case repositories.InventoryErrorInvalidReservationState:
			return ErrInventoryConflict
		}
	}

	s.logger(ctx, "inventory.operation_failed", map[string]any{
		"error": err.Error(),
	})
	return ErrInventoryUnavailable
}
