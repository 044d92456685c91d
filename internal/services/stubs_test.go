package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/repositories"
)

// stubRepoError satisfies repositories.RepositoryError for failure injection.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e stubRepoError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "stub repository error"
}

func (e stubRepoError) IsNotFound() bool    { return e.notFound }
func (e stubRepoError) IsConflict() bool    { return e.conflict }
func (e stubRepoError) IsUnavailable() bool { return e.unavailable }

var errRepoNotFound = stubRepoError{msg: "document missing", notFound: true}

type stubProductRepository struct {
	findByID  func(ctx context.Context, productID string) (domain.Product, error)
	findByIDs func(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByID == nil {
		return domain.Product{}, errors.New("findByID not configured")
	}
	return s.findByID(ctx, productID)
}

func (s *stubProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if s.findByIDs == nil {
		return nil, errors.New("findByIDs not configured")
	}
	return s.findByIDs(ctx, productIDs)
}

type stubFlashSaleRepository struct {
	findActiveForProduct func(ctx context.Context, productID string, now time.Time) (domain.FlashSale, error)
	findByID             func(ctx context.Context, flashSaleID string) (domain.FlashSale, error)
}

func (s *stubFlashSaleRepository) FindActiveForProduct(ctx context.Context, productID string, now time.Time) (domain.FlashSale, error) {
	if s.findActiveForProduct == nil {
		return domain.FlashSale{}, repositories.ErrNoActiveFlashSale
	}
	return s.findActiveForProduct(ctx, productID, now)
}

func (s *stubFlashSaleRepository) FindByID(ctx context.Context, flashSaleID string) (domain.FlashSale, error) {
	if s.findByID == nil {
		return domain.FlashSale{}, errors.New("findByID not configured")
	}
	return s.findByID(ctx, flashSaleID)
}

type stubCouponRepository struct {
	findByCode     func(ctx context.Context, code string) (domain.Coupon, error)
	incrementUsage func(ctx context.Context, code string, now time.Time) (domain.Coupon, error)
	decrementUsage func(ctx context.Context, code string, now time.Time) error
}

func (s *stubCouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if s.findByCode == nil {
		return domain.Coupon{}, errors.New("findByCode not configured")
	}
	return s.findByCode(ctx, code)
}

func (s *stubCouponRepository) IncrementUsage(ctx context.Context, code string, now time.Time) (domain.Coupon, error) {
	if s.incrementUsage == nil {
		return domain.Coupon{}, errors.New("incrementUsage not configured")
	}
	return s.incrementUsage(ctx, code, now)
}

func (s *stubCouponRepository) DecrementUsage(ctx context.Context, code string, now time.Time) error {
	if s.decrementUsage == nil {
		return errors.New("decrementUsage not configured")
	}
	return s.decrementUsage(ctx, code, now)
}

type stubCartRepository struct {
	getCart    func(ctx context.Context, userID string) (domain.Cart, error)
	upsertCart func(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	deleteCart func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if s.getCart == nil {
		return domain.Cart{}, errRepoNotFound
	}
	return s.getCart(ctx, userID)
}

func (s *stubCartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s.upsertCart == nil {
		return cart, nil
	}
	return s.upsertCart(ctx, cart)
}

func (s *stubCartRepository) DeleteCart(ctx context.Context, userID string) error {
	if s.deleteCart == nil {
		return nil
	}
	return s.deleteCart(ctx, userID)
}

type stubGuestCartRepository struct {
	get    func(ctx context.Context, token string) ([]domain.GuestCartLine, error)
	save   func(ctx context.Context, token string, lines []domain.GuestCartLine, ttl time.Duration) error
	delete func(ctx context.Context, token string) error
}

func (s *stubGuestCartRepository) Get(ctx context.Context, token string) ([]domain.GuestCartLine, error) {
	if s.get == nil {
		return nil, nil
	}
	return s.get(ctx, token)
}

func (s *stubGuestCartRepository) Save(ctx context.Context, token string, lines []domain.GuestCartLine, ttl time.Duration) error {
	if s.save == nil {
		return nil
	}
	return s.save(ctx, token, lines, ttl)
}

func (s *stubGuestCartRepository) Delete(ctx context.Context, token string) error {
	if s.delete == nil {
		return nil
	}
	return s.delete(ctx, token)
}

type stubOrderRepository struct {
	insert   func(ctx context.Context, order domain.Order) error
	update   func(ctx context.Context, order domain.Order) error
	findByID func(ctx context.Context, orderID string) (domain.Order, error)
	list     func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if s.insert == nil {
		return nil
	}
	return s.insert(ctx, order)
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order) error {
	if s.update == nil {
		return nil
	}
	return s.update(ctx, order)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByID == nil {
		return domain.Order{}, errRepoNotFound
	}
	return s.findByID(ctx, orderID)
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.list == nil {
		return domain.CursorPage[domain.Order]{}, nil
	}
	return s.list(ctx, filter)
}

type stubInventoryRepository struct {
	reserve     func(ctx context.Context, req repositories.InventoryReserveRequest) (domain.Reservation, error)
	release     func(ctx context.Context, orderID string, now time.Time) (domain.Reservation, error)
	findByOrder func(ctx context.Context, orderID string) (domain.Reservation, error)
}

func (s *stubInventoryRepository) Reserve(ctx context.Context, req repositories.InventoryReserveRequest) (domain.Reservation, error) {
	if s.reserve == nil {
		return req.Reservation, nil
	}
	return s.reserve(ctx, req)
}

func (s *stubInventoryRepository) Release(ctx context.Context, orderID string, now time.Time) (domain.Reservation, error) {
	if s.release == nil {
		return domain.Reservation{}, errors.New("release not configured")
	}
	return s.release(ctx, orderID, now)
}

func (s *stubInventoryRepository) FindByOrder(ctx context.Context, orderID string) (domain.Reservation, error) {
	if s.findByOrder == nil {
		return domain.Reservation{}, errors.New("findByOrder not configured")
	}
	return s.findByOrder(ctx, orderID)
}

type stubCounterRepository struct {
	next func(ctx context.Context, counterID string, step int64) (int64, error)
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.next == nil {
		return 1, nil
	}
	return s.next(ctx, counterID, step)
}

// Service-level stubs ---------------------------------------------------------

type stubDiscountService struct {
	effectivePrice func(ctx context.Context, product Product, now time.Time) (PriceQuote, error)
}

func (s *stubDiscountService) EffectivePrice(ctx context.Context, product Product, now time.Time) (PriceQuote, error) {
	if s.effectivePrice == nil {
		return PriceQuote{UnitPrice: product.Price}, nil
	}
	return s.effectivePrice(ctx, product, now)
}

type stubCouponService struct {
	validate func(ctx context.Context, cmd ValidateCouponCommand) (CouponApplication, error)
	redeem   func(ctx context.Context, code string, now time.Time) error
	unredeem func(ctx context.Context, code string, now time.Time) error
}

func (s *stubCouponService) Validate(ctx context.Context, cmd ValidateCouponCommand) (CouponApplication, error) {
	if s.validate == nil {
		return CouponApplication{}, errors.New("validate not configured")
	}
	return s.validate(ctx, cmd)
}

func (s *stubCouponService) Redeem(ctx context.Context, code string, now time.Time) error {
	if s.redeem == nil {
		return nil
	}
	return s.redeem(ctx, code, now)
}

func (s *stubCouponService) Unredeem(ctx context.Context, code string, now time.Time) error {
	if s.unredeem == nil {
		return nil
	}
	return s.unredeem(ctx, code, now)
}

type stubInventoryService struct {
	reserve         func(ctx context.Context, cmd ReserveStockCommand) (Reservation, error)
	release         func(ctx context.Context, orderID string, now time.Time) (Reservation, error)
	collectLowStock func(ctx context.Context, productIDs []string) ([]LowStockAlert, error)
}

func (s *stubInventoryService) Reserve(ctx context.Context, cmd ReserveStockCommand) (Reservation, error) {
	if s.reserve == nil {
		return Reservation{ID: cmd.OrderID, OrderID: cmd.OrderID, UserID: cmd.UserID}, nil
	}
	return s.reserve(ctx, cmd)
}

func (s *stubInventoryService) Release(ctx context.Context, orderID string, now time.Time) (Reservation, error) {
	if s.release == nil {
		return Reservation{OrderID: orderID}, nil
	}
	return s.release(ctx, orderID, now)
}

func (s *stubInventoryService) CollectLowStock(ctx context.Context, productIDs []string) ([]LowStockAlert, error) {
	if s.collectLowStock == nil {
		return nil, nil
	}
	return s.collectLowStock(ctx, productIDs)
}

type stubCartService struct {
	clearCart func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(context.Context, string) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

func (s *stubCartService) AddItem(context.Context, AddCartItemCommand) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

func (s *stubCartService) UpdateItem(context.Context, UpdateCartItemCommand) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

func (s *stubCartService) RemoveItem(context.Context, RemoveCartItemCommand) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	if s.clearCart == nil {
		return nil
	}
	return s.clearCart(ctx, userID)
}

func (s *stubCartService) MergeGuestCart(context.Context, MergeGuestCartCommand) (Cart, error) {
	return Cart{}, errors.New("not implemented")
}

type stubShippingProvider struct {
	getMethod func(ctx context.Context, methodID string) (ShippingMethod, error)
}

func (s *stubShippingProvider) GetMethod(ctx context.Context, methodID string) (ShippingMethod, error) {
	if s.getMethod == nil {
		return ShippingMethod{
			ID:   methodID,
			Name: "Standard",
			Zones: []domain.ShippingZone{
				{Name: "domestic", Countries: []string{"US"}, Rate: 500},
			},
		}, nil
	}
	return s.getMethod(ctx, methodID)
}

type stubNotificationService struct {
	notifyOrder func(ctx context.Context, message OrderNotification) error
}

func (s *stubNotificationService) NotifyOrder(ctx context.Context, message OrderNotification) error {
	if s.notifyOrder == nil {
		return nil
	}
	return s.notifyOrder(ctx, message)
}

type stubLoyaltyService struct {
	awardPoints func(ctx context.Context, message LoyaltyAward) error
}

func (s *stubLoyaltyService) AwardPoints(ctx context.Context, message LoyaltyAward) error {
	if s.awardPoints == nil {
		return nil
	}
	return s.awardPoints(ctx, message)
}

type stubLowStockPublisher struct {
	publishLowStock func(ctx context.Context, alert LowStockAlert) error
}

func (s *stubLowStockPublisher) PublishLowStock(ctx context.Context, alert LowStockAlert) error {
	if s.publishLowStock == nil {
		return nil
	}
	return s.publishLowStock(ctx, alert)
}
