package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/clovermart/api/internal/platform/config"
	"github.com/clovermart/api/internal/repositories"
	"github.com/clovermart/api/internal/services"
	"github.com/clovermart/api/internal/shipping"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Discounts services.DiscountService
	Cart      services.CartService
	Coupons   services.CouponService
	Inventory services.InventoryService
	Orders    services.OrderService
	System    services.SystemService
	Shipping  services.ShippingRateProvider
}

// Container wires repositories, services, and supporting infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container assembly.
type Option func(*containerOptions)

type containerOptions struct {
	logger        *zap.Logger
	shipping      services.ShippingRateProvider
	notifications services.NotificationService
	loyalty       services.LoyaltyService
	lowStock      services.LowStockPublisher
	health        repositories.HealthRepository
	clock         func() time.Time
}

// WithHealthRepository supplies the dependency probe set backing /readyz.
func WithHealthRepository(health repositories.HealthRepository) Option {
	return func(o *containerOptions) {
		o.health = health
	}
}

// WithLogger routes service-level events through the given zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithShippingProvider overrides the YAML-table shipping provider, mainly for tests.
func WithShippingProvider(provider services.ShippingRateProvider) Option {
	return func(o *containerOptions) {
		o.shipping = provider
	}
}

// WithOrderEvents wires the post-order side effect sinks. Any of the three may
// be nil; the order service logs and continues without them.
func WithOrderEvents(notifications services.NotificationService, loyalty services.LoyaltyService, lowStock services.LowStockPublisher) Option {
	return func(o *containerOptions) {
		o.notifications = notifications
		o.loyalty = loyalty
		o.lowStock = lowStock
	}
}

// WithClock overrides the time source used by every service.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		o.clock = clock
	}
}

// NewContainer constructs the runtime dependencies. Production wiring provides the
// Firestore-backed registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&options)
	}

	svc, err := buildServices(cfg, reg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients and connection pools.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, options containerOptions) (Services, error) {
	var svc Services
	logger := serviceLogger(options.logger)

	discounts, err := services.NewDiscountService(services.DiscountServiceDeps{
		FlashSales: reg.FlashSales(),
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build discount service: %w", err)
	}
	svc.Discounts = discounts

	cart, err := services.NewCartService(services.CartServiceDeps{
		Repository:      reg.Carts(),
		Products:        reg.Products(),
		GuestCarts:      reg.GuestCarts(),
		Discounts:       discounts,
		Clock:           options.clock,
		DefaultCurrency: cfg.Checkout.DefaultCurrency,
		Logger:          logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	coupons, err := services.NewCouponService(services.CouponServiceDeps{
		Repository: reg.Coupons(),
		Logger:     logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = coupons

	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{
		Repository:        reg.Inventory(),
		Products:          reg.Products(),
		LowStockThreshold: cfg.Checkout.LowStockThreshold,
		Logger:            logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventory

	shippingProvider := options.shipping
	if shippingProvider == nil {
		provider, err := shipping.NewTableProviderFromFile(cfg.Shipping.TablePath)
		if err != nil {
			return Services{}, fmt.Errorf("load shipping table: %w", err)
		}
		shippingProvider = provider
	}
	svc.Shipping = shippingProvider

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Repository:      reg.Orders(),
		Products:        reg.Products(),
		Counters:        reg.Counters(),
		Discounts:       discounts,
		Coupons:         coupons,
		Inventory:       inventory,
		Carts:           cart,
		Shipping:        shippingProvider,
		Notifications:   options.notifications,
		Loyalty:         options.loyalty,
		LowStock:        options.lowStock,
		Clock:           options.clock,
		DefaultCurrency: cfg.Checkout.DefaultCurrency,
		Logger:          logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	if options.health != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: options.health,
			Counters:         reg.Counters(),
			Clock:            options.clock,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}

// serviceLogger adapts a zap logger to the event callback the services accept.
func serviceLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	if logger == nil {
		return nil
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields))
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		logger.Info(event, zapFields...)
	}
}
