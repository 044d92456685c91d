package handlers

import (
	"context"
	"errors"
	"time"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/services"
)

type stubCartService struct {
	getCart        func(ctx context.Context, userID string) (services.Cart, error)
	addItem        func(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error)
	updateItem     func(ctx context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error)
	removeItem     func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error)
	clearCart      func(ctx context.Context, userID string) error
	mergeGuestCart func(ctx context.Context, cmd services.MergeGuestCartCommand) (services.Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getCart == nil {
		return services.Cart{}, errors.New("GetCart not configured")
	}
	return s.getCart(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addItem == nil {
		return services.Cart{}, errors.New("AddItem not configured")
	}
	return s.addItem(ctx, cmd)
}

func (s *stubCartService) UpdateItem(ctx context.Context, cmd services.UpdateCartItemCommand) (services.Cart, error) {
	if s.updateItem == nil {
		return services.Cart{}, errors.New("UpdateItem not configured")
	}
	return s.updateItem(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
	if s.removeItem == nil {
		return services.Cart{}, errors.New("RemoveItem not configured")
	}
	return s.removeItem(ctx, cmd)
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearCart == nil {
		return errors.New("ClearCart not configured")
	}
	return s.clearCart(ctx, userID)
}

func (s *stubCartService) MergeGuestCart(ctx context.Context, cmd services.MergeGuestCartCommand) (services.Cart, error) {
	if s.mergeGuestCart == nil {
		return services.Cart{}, errors.New("MergeGuestCart not configured")
	}
	return s.mergeGuestCart(ctx, cmd)
}

type stubOrderService struct {
	createOrder      func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getOrder         func(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error)
	listOrders       func(ctx context.Context, cmd services.ListOrdersCommand) (domain.CursorPage[services.Order], error)
	transitionStatus func(ctx context.Context, cmd services.OrderStatusCommand) (services.Order, error)
	cancel           func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	markPaid         func(ctx context.Context, cmd services.MarkPaidCommand) (services.Order, error)
	markDelivered    func(ctx context.Context, cmd services.MarkDeliveredCommand) (services.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createOrder == nil {
		return services.Order{}, errors.New("CreateOrder not configured")
	}
	return s.createOrder(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error) {
	if s.getOrder == nil {
		return services.Order{}, errors.New("GetOrder not configured")
	}
	return s.getOrder(ctx, cmd)
}

func (s *stubOrderService) ListOrders(ctx context.Context, cmd services.ListOrdersCommand) (domain.CursorPage[services.Order], error) {
	if s.listOrders == nil {
		return domain.CursorPage[services.Order]{}, errors.New("ListOrders not configured")
	}
	return s.listOrders(ctx, cmd)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusCommand) (services.Order, error) {
	if s.transitionStatus == nil {
		return services.Order{}, errors.New("TransitionStatus not configured")
	}
	return s.transitionStatus(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancel == nil {
		return services.Order{}, errors.New("Cancel not configured")
	}
	return s.cancel(ctx, cmd)
}

func (s *stubOrderService) MarkPaid(ctx context.Context, cmd services.MarkPaidCommand) (services.Order, error) {
	if s.markPaid == nil {
		return services.Order{}, errors.New("MarkPaid not configured")
	}
	return s.markPaid(ctx, cmd)
}

func (s *stubOrderService) MarkDelivered(ctx context.Context, cmd services.MarkDeliveredCommand) (services.Order, error) {
	if s.markDelivered == nil {
		return services.Order{}, errors.New("MarkDelivered not configured")
	}
	return s.markDelivered(ctx, cmd)
}

type stubSystemService struct {
	healthReport     func(ctx context.Context) (services.SystemHealthReport, error)
	nextCounterValue func(ctx context.Context, cmd services.CounterCommand) (int64, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.healthReport == nil {
		return services.SystemHealthReport{}, errors.New("HealthReport not configured")
	}
	return s.healthReport(ctx)
}

func (s *stubSystemService) NextCounterValue(ctx context.Context, cmd services.CounterCommand) (int64, error) {
	if s.nextCounterValue == nil {
		return 0, errors.New("NextCounterValue not configured")
	}
	return s.nextCounterValue(ctx, cmd)
}

func testTime() time.Time {
	return time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
}
