package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/repositories"
)

var (
	errOrderRepositoryRequired = errors.New("order service: repository is required")
	errOrderProductsRequired   = errors.New("order service: product repository is required")
	errOrderDiscountsRequired  = errors.New("order service: discount resolver is required")
	errOrderInventoryRequired  = errors.New("order service: inventory service is required")
	errOrderShippingRequired   = errors.New("order service: shipping rate provider is required")
	errOrderCountersRequired   = errors.New("order service: counter repository is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderProductNotFound indicates a requested line references a missing or inactive product.
var ErrOrderProductNotFound = errors.New("order service: product not found")

// ErrOrderForbidden indicates the actor does not own the order and is not an admin.
var ErrOrderForbidden = errors.New("order service: forbidden")

// ErrOrderAlreadyPaid indicates a paid order was marked paid again.
var ErrOrderAlreadyPaid = errors.New("order service: already paid")

// ErrOrderInvalidTransition indicates the status change is not allowed from the current state.
var ErrOrderInvalidTransition = errors.New("order service: invalid state transition")

// ErrOrderUnavailable indicates the order store or a required collaborator failed.
var ErrOrderUnavailable = errors.New("order service: unavailable")

const (
	taxRate               = 0.10
	defaultShippingMethod = "standard"
	orderCounterPrefix    = "orders"
)

var allowedPaymentMethods = map[string]struct{}{
	"stripe": {},
	"paypal": {},
	"wallet": {},
	"cod":    {},
}

// statusTransitions is the lifecycle state machine. Cancellation is reachable
// only before shipping; payment state moves independently.
var statusTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

// OrderServiceDeps wires every collaborator the assembler and lifecycle
// manager depend on. Notifications, loyalty and low-stock hooks are optional;
// their absence only silences the side effects.
type OrderServiceDeps struct {
	Repository      repositories.OrderRepository
	Products        repositories.ProductRepository
	Counters        repositories.CounterRepository
	Discounts       DiscountService
	Coupons         CouponService
	Inventory       InventoryService
	Carts           CartService
	Shipping        ShippingRateProvider
	Notifications   NotificationService
	Loyalty         LoyaltyService
	LowStock        LowStockPublisher
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type orderService struct {
	repo          repositories.OrderRepository
	products      repositories.ProductRepository
	counters      repositories.CounterRepository
	discounts     DiscountService
	coupons       CouponService
	inventory     InventoryService
	carts         CartService
	shipping      ShippingRateProvider
	notifications NotificationService
	loyalty       LoyaltyService
	lowStock      LowStockPublisher
	newID         func() string
	now           func() time.Time
	currency      string
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errOrderProductsRequired
	}
	if deps.Discounts == nil {
		return nil, errOrderDiscountsRequired
	}
	if deps.Inventory == nil {
		return nil, errOrderInventoryRequired
	}
	if deps.Shipping == nil {
		return nil, errOrderShippingRequired
	}
	if deps.Counters == nil {
		return nil, errOrderCountersRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &orderService{
		repo:          deps.Repository,
		products:      deps.Products,
		counters:      deps.Counters,
		discounts:     deps.Discounts,
		coupons:       deps.Coupons,
		inventory:     deps.Inventory,
		carts:         deps.Carts,
		shipping:      deps.Shipping,
		notifications: deps.Notifications,
		loyalty:       deps.Loyalty,
		lowStock:      deps.LowStock,
		newID:         idGen,
		now:           func() time.Time { return deps.Clock().UTC() },
		currency:      currency,
		logger:        logger,
	}, nil
}

// CreateOrder runs the full assembly pipeline: validate, price at one captured
// now, resolve shipping, apply the coupon, compute totals, reserve inventory,
// redeem the coupon, persist, clear the cart, then emit side effects. Any
// failure after the reservation compensates by releasing the hold and
// reversing the coupon counter, so no partial state survives.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	if err := validateOrderInput(cmd); err != nil {
		return Order{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}
	if !domain.ValidCurrency(currency) {
		return Order{}, fmt.Errorf("%w: unknown currency %s", ErrOrderInvalidInput, currency)
	}

	rate := cmd.ExchangeRate
	if rate <= 0 {
		rate = 1
	}

	methodID := strings.TrimSpace(cmd.ShippingMethodID)
	if methodID == "" {
		methodID = defaultShippingMethod
	}

	now := s.now()

	items, reservationLines, itemsPrice, err := s.priceItems(ctx, cmd.Items, now)
	if err != nil {
		return Order{}, err
	}

	method, err := s.shipping.GetMethod(ctx, methodID)
	if err != nil {
		return Order{}, fmt.Errorf("%w: unknown shipping method %s", ErrOrderInvalidInput, methodID)
	}
	shippingPrice, _ := method.RateFor(cmd.ShippingAddress.Country)

	couponCode := strings.ToUpper(strings.TrimSpace(cmd.CouponCode))
	var discount int64
	if couponCode != "" {
		if s.coupons == nil {
			return Order{}, ErrOrderUnavailable
		}
		application, err := s.coupons.Validate(ctx, ValidateCouponCommand{
			Code:     couponCode,
			Subtotal: itemsPrice,
			Now:      now,
		})
		if err != nil {
			return Order{}, err
		}
		discount = application.Discount
	}

	taxPrice := domain.RoundMinorUnits(float64(itemsPrice-discount) * taxRate)
	total := itemsPrice + shippingPrice + taxPrice - discount

	orderID := strings.TrimSpace(s.newID())
	if orderID == "" {
		orderID = fmt.Sprintf("order-%d", now.UnixNano())
	}
	number, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	order := domain.Order{
		ID:               orderID,
		Number:           number,
		UserID:           userID,
		Items:            items,
		ShippingAddress:  normaliseAddress(cmd.ShippingAddress),
		PaymentMethod:    strings.ToLower(strings.TrimSpace(cmd.PaymentMethod)),
		ShippingMethodID: methodID,
		CouponCode:       couponCode,
		Currency:         currency,
		ExchangeRate:     rate,
		Totals: domain.OrderTotals{
			Items:    itemsPrice,
			Discount: discount,
			Shipping: shippingPrice,
			Tax:      taxPrice,
			Total:    total,
		},
		ConvertedTotal: domain.ConvertTotal(total, rate),
		Status:         domain.OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := s.inventory.Reserve(ctx, ReserveStockCommand{
		OrderID: orderID,
		UserID:  userID,
		Lines:   reservationLines,
		Now:     now,
	}); err != nil {
		return Order{}, err
	}

	// The usage counter moves only after the reservation holds; a failed
	// reservation must leave usedCount untouched.
	if couponCode != "" {
		if err := s.coupons.Redeem(ctx, couponCode, now); err != nil {
			s.releaseReservation(ctx, orderID, now)
			return Order{}, err
		}
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		s.releaseReservation(ctx, orderID, now)
		if couponCode != "" {
			if unredeemErr := s.coupons.Unredeem(ctx, couponCode, now); unredeemErr != nil {
				s.logger(ctx, "order.coupon_unredeem_failed", map[string]any{
					"orderID": orderID,
					"code":    couponCode,
					"error":   unredeemErr.Error(),
				})
			}
		}
		return Order{}, s.translateRepoError(err)
	}

	if s.carts != nil {
		if err := s.carts.ClearCart(ctx, userID); err != nil {
			s.logger(ctx, "order.cart_clear_failed", map[string]any{
				"orderID": orderID,
				"userID":  userID,
				"error":   err.Error(),
			})
		}
	}

	s.emitOrderCreated(ctx, order, reservationLines)

	return order, nil
}

// GetOrder loads an order, enforcing that non-admin callers only see their own.
func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !cmd.IsAdmin && order.UserID != strings.TrimSpace(cmd.ActorID) {
		return Order{}, ErrOrderForbidden
	}
	return order, nil
}

// ListOrders pages through orders. Non-admin callers are pinned to their own
// history regardless of the requested filter.
func (s *orderService) ListOrders(ctx context.Context, cmd ListOrdersCommand) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}

	actorID := strings.TrimSpace(cmd.ActorID)
	userID := strings.TrimSpace(cmd.UserID)
	if !cmd.IsAdmin {
		if actorID == "" {
			return domain.CursorPage[Order]{}, ErrOrderInvalidInput
		}
		userID = actorID
	}

	page, err := s.repo.List(ctx, repositories.OrderListFilter{
		UserID:     userID,
		Status:     cmd.Status,
		Pagination: cmd.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	return page, nil
}

// TransitionStatus advances the lifecycle state machine. Admin only. A
// transition to cancelled releases the order's stock hold first.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}
	if !cmd.IsAdmin {
		return Order{}, ErrOrderForbidden
	}

	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.Target))))
	switch target {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusShipped,
		domain.OrderStatusDelivered, domain.OrderStatusCancelled:
	default:
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Target)
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !transitionAllowed(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, target)
	}

	now := s.now()

	if target == domain.OrderStatusCancelled {
		return s.cancelOrder(ctx, order, now)
	}

	order.Status = target
	order.UpdatedAt = now
	switch target {
	case domain.OrderStatusShipped:
		ts := now
		order.ShippedAt = &ts
		if tracking := strings.TrimSpace(cmd.Tracking); tracking != "" {
			order.TrackingNumber = tracking
		}
	case domain.OrderStatusDelivered:
		ts := now
		order.IsDelivered = true
		order.DeliveredAt = &ts
	}

	if err := s.repo.Update(ctx, order); err != nil {
		return Order{}, s.translateRepoError(err)
	}

	switch target {
	case domain.OrderStatusShipped:
		s.notify(ctx, order, "shipped")
	case domain.OrderStatusDelivered:
		s.notify(ctx, order, "delivered")
		s.awardLoyalty(ctx, order)
	}

	return order, nil
}

// Cancel aborts an order that has not shipped. The owner or an admin may
// cancel; reserved stock goes back on the shelf.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if !cmd.IsAdmin && order.UserID != strings.TrimSpace(cmd.ActorID) {
		return Order{}, ErrOrderForbidden
	}
	if !transitionAllowed(order.Status, domain.OrderStatusCancelled) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidTransition, order.Status, domain.OrderStatusCancelled)
	}

	return s.cancelOrder(ctx, order, s.now())
}

// MarkPaid applies a gateway confirmation. Payment state is orthogonal to the
// status machine and marking twice is rejected.
func (s *orderService) MarkPaid(ctx context.Context, cmd MarkPaidCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	order, err := s.loadOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}
	if order.IsPaid {
		return Order{}, ErrOrderAlreadyPaid
	}

	now := s.now()
	ts := now
	order.IsPaid = true
	order.PaidAt = &ts
	payment := cmd.Payment
	order.PaymentResult = &payment
	order.UpdatedAt = now

	if err := s.repo.Update(ctx, order); err != nil {
		return Order{}, s.translateRepoError(err)
	}
	return order, nil
}

// MarkDelivered is a convenience wrapper over the shipped-to-delivered
// transition for admin tooling.
func (s *orderService) MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (Order, error) {
	return s.TransitionStatus(ctx, OrderStatusCommand{
		OrderID: cmd.OrderID,
		ActorID: cmd.ActorID,
		IsAdmin: cmd.IsAdmin,
		Target:  domain.OrderStatusDelivered,
	})
}

func (s *orderService) cancelOrder(ctx context.Context, order domain.Order, now time.Time) (Order, error) {
	if _, err := s.inventory.Release(ctx, order.ID, now); err != nil {
		// An absent or already-released hold means the stock is not held;
		// cancellation proceeds.
		if !errors.Is(err, ErrInventoryReservationNotFound) && !errors.Is(err, ErrInventoryConflict) {
			return Order{}, ErrOrderUnavailable
		}
		s.logger(ctx, "order.release_skipped", map[string]any{
			"orderID": order.ID,
			"reason":  err.Error(),
		})
	}

	order.Status = domain.OrderStatusCancelled
	ts := now
	order.CancelledAt = &ts
	order.UpdatedAt = now

	if err := s.repo.Update(ctx, order); err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.notify(ctx, order, "cancelled")
	return order, nil
}

func (s *orderService) priceItems(ctx context.Context, inputs []OrderLineInput, now time.Time) ([]domain.OrderItem, []ReservationLine, int64, error) {
	items := make([]domain.OrderItem, 0, len(inputs))
	lines := make([]ReservationLine, 0, len(inputs))
	var itemsPrice int64

	for _, input := range inputs {
		productID := strings.TrimSpace(input.ProductID)

		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if isRepoNotFound(err) {
				return nil, nil, 0, fmt.Errorf("%w: %s", ErrOrderProductNotFound, productID)
			}
			return nil, nil, 0, s.translateRepoError(err)
		}
		if !product.Active {
			return nil, nil, 0, fmt.Errorf("%w: %s", ErrOrderProductNotFound, productID)
		}
		if product.Stock < input.Quantity {
			return nil, nil, 0, fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, productID)
		}

		quote, err := s.discounts.EffectivePrice(ctx, product, now)
		if err != nil {
			return nil, nil, 0, ErrOrderUnavailable
		}

		lineTotal := quote.UnitPrice * input.Quantity
		items = append(items, domain.OrderItem{
			ProductID:   product.ID,
			Name:        product.Name,
			Image:       product.Image,
			Variant:     strings.TrimSpace(input.Variant),
			Quantity:    input.Quantity,
			UnitPrice:   quote.UnitPrice,
			LineTotal:   lineTotal,
			FlashSaleID: flashSaleID(quote),
		})
		lines = append(lines, ReservationLine{
			ProductID:   product.ID,
			Quantity:    input.Quantity,
			FlashSaleID: flashSaleID(quote),
		})
		itemsPrice += lineTotal
	}

	return items, lines, itemsPrice, nil
}

func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	counterID := fmt.Sprintf("%s-%04d", orderCounterPrefix, now.Year())
	seq, err := s.counters.Next(ctx, counterID, 1)
	if err != nil {
		s.logger(ctx, "order.counter_failed", map[string]any{
			"counterID": counterID,
			"error":     err.Error(),
		})
		return "", ErrOrderUnavailable
	}
	return fmt.Sprintf("CM-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) releaseReservation(ctx context.Context, orderID string, now time.Time) {
	if _, err := s.inventory.Release(ctx, orderID, now); err != nil {
		s.logger(ctx, "order.compensation_release_failed", map[string]any{
			"orderID": orderID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) loadOrder(ctx context.Context, orderID string) (domain.Order, error) {
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, trimmed)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	return order, nil
}

// emitOrderCreated fires the post-creation side effects. Failures are logged,
// never surfaced; a notification outage cannot fail a placed order.
func (s *orderService) emitOrderCreated(ctx context.Context, order domain.Order, lines []ReservationLine) {
	s.notify(ctx, order, "created")

	if s.lowStock == nil || s.inventory == nil {
		return
	}
	productIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}
	alerts, err := s.inventory.CollectLowStock(ctx, productIDs)
	if err != nil {
		s.logger(ctx, "order.low_stock_scan_failed", map[string]any{
			"orderID": order.ID,
			"error":   err.Error(),
		})
		return
	}
	for _, alert := range alerts {
		alert.ObservedAt = order.CreatedAt
		if err := s.lowStock.PublishLowStock(ctx, alert); err != nil {
			s.logger(ctx, "order.low_stock_publish_failed", map[string]any{
				"orderID":   order.ID,
				"productID": alert.ProductID,
				"error":     err.Error(),
			})
		}
	}
}

func (s *orderService) notify(ctx context.Context, order domain.Order, event string) {
	if s.notifications == nil {
		return
	}
	err := s.notifications.NotifyOrder(ctx, OrderNotification{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		Event:       event,
		TotalPrice:  order.Totals.Total,
		Currency:    order.Currency,
		Status:      order.Status,
		Tracking:    order.TrackingNumber,
		OccurredAt:  order.UpdatedAt,
	})
	if err != nil {
		s.logger(ctx, "order.notification_failed", map[string]any{
			"orderID": order.ID,
			"event":   event,
			"error":   err.Error(),
		})
	}
}

// awardLoyalty credits one point per whole currency unit of the order total.
// Award failures never roll back the delivery transition.
func (s *orderService) awardLoyalty(ctx context.Context, order domain.Order) {
	if s.loyalty == nil {
		return
	}
	points := loyaltyPoints(order)
	if points <= 0 {
		return
	}
	err := s.loyalty.AwardPoints(ctx, LoyaltyAward{
		UserID:     order.UserID,
		OrderID:    order.ID,
		Points:     points,
		Reason:     "order delivered",
		OccurredAt: order.UpdatedAt,
	})
	if err != nil {
		s.logger(ctx, "order.loyalty_award_failed", map[string]any{
			"orderID": order.ID,
			"userID":  order.UserID,
			"error":   err.Error(),
		})
	}
}

func loyaltyPoints(order domain.Order) int64 {
	scale := domain.CurrencyScale(order.Currency)
	divisor := int64(math.Pow10(scale))
	if divisor <= 0 {
		divisor = 1
	}
	return order.Totals.Total / divisor
}

func validateOrderInput(cmd CreateOrderCommand) error {
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: order items must not be empty", ErrOrderInvalidInput)
	}
	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: product_id is required", ErrOrderInvalidInput)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be greater than zero", ErrOrderInvalidInput)
		}
	}

	addr := cmd.ShippingAddress
	switch {
	case strings.TrimSpace(addr.FullName) == "",
		strings.TrimSpace(addr.Line1) == "",
		strings.TrimSpace(addr.City) == "",
		strings.TrimSpace(addr.PostalCode) == "":
		return fmt.Errorf("%w: shipping address is incomplete", ErrOrderInvalidInput)
	}
	country := strings.ToUpper(strings.TrimSpace(addr.Country))
	if len(country) != 2 {
		return fmt.Errorf("%w: country must be a 2-letter code", ErrOrderInvalidInput)
	}
	for _, r := range country {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: country must be a 2-letter code", ErrOrderInvalidInput)
		}
	}

	method := strings.ToLower(strings.TrimSpace(cmd.PaymentMethod))
	if _, ok := allowedPaymentMethods[method]; !ok {
		return fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	return nil
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrOrderNotFound
	}
	return ErrOrderUnavailable
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, candidate := range statusTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func normaliseAddress(addr domain.Address) domain.Address {
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Line1 = strings.TrimSpace(addr.Line1)
	addr.Line2 = strings.TrimSpace(addr.Line2)
	addr.City = strings.TrimSpace(addr.City)
	addr.State = strings.TrimSpace(addr.State)
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	addr.Country = strings.ToUpper(strings.TrimSpace(addr.Country))
	addr.Phone = strings.TrimSpace(addr.Phone)
	return addr
}
