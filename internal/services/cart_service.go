package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/clovermart/api/internal/domain"
	"github.com/clovermart/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartProductsRequired   = errors.New("cart service: product repository is required")
	errCartDiscountsRequired  = errors.New("cart service: discount resolver is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart or cart item does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartProductNotFound indicates the referenced product is missing or inactive.
var ErrCartProductNotFound = errors.New("cart service: product not found")

// ErrCartInsufficientStock indicates the requested quantity exceeds available stock.
var ErrCartInsufficientStock = errors.New("cart service: insufficient stock")

// CartServiceDeps wires the repositories and pricing dependencies for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Products        repositories.ProductRepository
	GuestCarts      repositories.GuestCartRepository
	Discounts       DiscountService
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
	IDGenerator     func() string
}

type cartService struct {
	repo       repositories.CartRepository
	products   repositories.ProductRepository
	guestCarts repositories.GuestCartRepository
	discounts  DiscountService
	newID      func() string
	now        func() time.Time
	currency   string
	logger     func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errCartProductsRequired
	}
	if deps.Discounts == nil {
		return nil, errCartDiscountsRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	service := &cartService{
		repo:       deps.Repository,
		products:   deps.Products,
		guestCarts: deps.GuestCarts,
		discounts:  deps.Discounts,
		newID:      idGen,
		now:        func() time.Time { return deps.Clock().UTC() },
		currency:   defaultCurrency,
		logger:     logger,
	}
	return service, nil
}

// GetCart loads the cart for the user, returning an empty cart when absent.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(uid), nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(cart, uid), nil
}

// AddItem validates stock, re-prices the line at a single captured now, and
// merges it into an existing line for the same product and variant.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Cart{}, ErrCartInvalidInput
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product_id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}
	variant := strings.TrimSpace(cmd.Variant)

	now := s.now()

	product, quote, err := s.priceProduct(ctx, productID, now)
	if err != nil {
		return Cart{}, err
	}

	cart, err := s.loadOrCreateCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	items := cloneCartItems(cart.Items)
	idx := indexOfCartLine(items, productID, variant)
	if idx >= 0 {
		merged := items[idx].Quantity + cmd.Quantity
		if merged > product.Stock {
			return Cart{}, fmt.Errorf("%w: only %d of %s available", ErrCartInsufficientStock, product.Stock, product.ID)
		}
		items[idx].Quantity = merged
		items[idx].UnitPrice = quote.UnitPrice
		items[idx].FlashSaleID = flashSaleID(quote)
		items[idx].Name = product.Name
		items[idx].Image = product.Image
		ts := now
		items[idx].UpdatedAt = &ts
	} else {
		if cmd.Quantity > product.Stock {
			return Cart{}, fmt.Errorf("%w: only %d of %s available", ErrCartInsufficientStock, product.Stock, product.ID)
		}
		items = append(items, domain.CartItem{
			ID:          s.nextItemID(now),
			ProductID:   product.ID,
			Name:        product.Name,
			Image:       product.Image,
			Variant:     variant,
			Quantity:    cmd.Quantity,
			UnitPrice:   quote.UnitPrice,
			FlashSaleID: flashSaleID(quote),
			AddedAt:     now,
		})
	}

	return s.saveItems(ctx, cart, items, now)
}

// UpdateItem re-validates stock and re-derives the unit price at update time;
// the price from the original add is not preserved.
func (s *cartService) UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if userID == "" || itemID == "" {
		return Cart{}, ErrCartInvalidInput
	}
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, userID)

	items := cloneCartItems(cart.Items)
	idx := indexOfCartItem(items, itemID)
	if idx < 0 {
		return Cart{}, ErrCartNotFound
	}

	now := s.now()

	product, quote, err := s.priceProduct(ctx, items[idx].ProductID, now)
	if err != nil {
		return Cart{}, err
	}
	if cmd.Quantity > product.Stock {
		return Cart{}, fmt.Errorf("%w: only %d of %s available", ErrCartInsufficientStock, product.Stock, product.ID)
	}

	items[idx].Quantity = cmd.Quantity
	items[idx].UnitPrice = quote.UnitPrice
	items[idx].FlashSaleID = flashSaleID(quote)
	items[idx].Name = product.Name
	items[idx].Image = product.Image
	ts := now
	items[idx].UpdatedAt = &ts

	return s.saveItems(ctx, cart, items, now)
}

// RemoveItem drops a single line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if userID == "" || itemID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, userID)

	items := cloneCartItems(cart.Items)
	idx := indexOfCartItem(items, itemID)
	if idx < 0 {
		return Cart{}, ErrCartNotFound
	}
	items = append(items[:idx], items[idx+1:]...)

	return s.saveItems(ctx, cart, items, s.now())
}

// ClearCart empties the user's cart. Clearing an absent cart is not an error.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}

	if err := s.repo.DeleteCart(ctx, uid); err != nil {
		if isRepoNotFound(err) {
			return nil
		}
		return s.translateRepoError(err)
	}
	return nil
}

// MergeGuestCart folds a guest session's lines into the authenticated cart.
// Lines referencing missing or inactive products are skipped, quantities are
// clamped to available stock, and every merged line is re-priced at now.
func (s *cartService) MergeGuestCart(ctx context.Context, cmd MergeGuestCartCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}
	if s.guestCarts == nil {
		return Cart{}, ErrCartUnavailable
	}

	userID := strings.TrimSpace(cmd.UserID)
	token := strings.TrimSpace(cmd.GuestToken)
	if userID == "" || token == "" {
		return Cart{}, ErrCartInvalidInput
	}

	guestLines, err := s.guestCarts.Get(ctx, token)
	if err != nil {
		s.logger(ctx, "cart.guest_cart_load_failed", map[string]any{
			"userID": userID,
			"error":  err.Error(),
		})
		return Cart{}, ErrCartUnavailable
	}

	cart, err := s.loadOrCreateCart(ctx, userID)
	if err != nil {
		return Cart{}, err
	}

	now := s.now()
	items := cloneCartItems(cart.Items)

	for _, line := range guestLines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" || line.Quantity <= 0 {
			continue
		}

		product, quote, err := s.priceProduct(ctx, productID, now)
		if err != nil {
			if errors.Is(err, ErrCartProductNotFound) {
				continue
			}
			return Cart{}, err
		}

		variant := strings.TrimSpace(line.Variant)
		idx := indexOfCartLine(items, productID, variant)
		if idx >= 0 {
			merged := items[idx].Quantity + line.Quantity
			if merged > product.Stock {
				merged = product.Stock
			}
			if merged <= 0 {
				continue
			}
			items[idx].Quantity = merged
			items[idx].UnitPrice = quote.UnitPrice
			items[idx].FlashSaleID = flashSaleID(quote)
			ts := now
			items[idx].UpdatedAt = &ts
			continue
		}

		qty := line.Quantity
		if qty > product.Stock {
			qty = product.Stock
		}
		if qty <= 0 {
			continue
		}
		items = append(items, domain.CartItem{
			ID:          s.nextItemID(now),
			ProductID:   product.ID,
			Name:        product.Name,
			Image:       product.Image,
			Variant:     variant,
			Quantity:    qty,
			UnitPrice:   quote.UnitPrice,
			FlashSaleID: flashSaleID(quote),
			AddedAt:     now,
		})
	}

	saved, err := s.saveItems(ctx, cart, items, now)
	if err != nil {
		return Cart{}, err
	}

	if err := s.guestCarts.Delete(ctx, token); err != nil {
		s.logger(ctx, "cart.guest_cart_delete_failed", map[string]any{
			"userID": userID,
			"error":  err.Error(),
		})
	}

	return saved, nil
}

func (s *cartService) priceProduct(ctx context.Context, productID string, now time.Time) (Product, PriceQuote, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, PriceQuote{}, fmt.Errorf("%w: %s", ErrCartProductNotFound, productID)
		}
		return Product{}, PriceQuote{}, s.translateRepoError(err)
	}
	if !product.Active {
		return Product{}, PriceQuote{}, fmt.Errorf("%w: %s", ErrCartProductNotFound, productID)
	}

	quote, err := s.discounts.EffectivePrice(ctx, product, now)
	if err != nil {
		s.logger(ctx, "cart.pricing_failed", map[string]any{
			"productID": productID,
			"error":     err.Error(),
		})
		return Product{}, PriceQuote{}, ErrCartUnavailable
	}
	return product, quote, nil
}

func (s *cartService) loadOrCreateCart(ctx context.Context, userID string) (Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(userID), nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(cart, userID), nil
}

func (s *cartService) saveItems(ctx context.Context, cart domain.Cart, items []domain.CartItem, now time.Time) (Cart, error) {
	cart.Items = items
	cart.UpdatedAt = now
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}

	saved, err := s.repo.UpsertCart(ctx, cart)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, cart.UserID), nil
}

func (s *cartService) newCart(userID string) domain.Cart {
	now := s.now()
	return domain.Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  s.currency,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) normaliseCart(cart domain.Cart, userID string) domain.Cart {
	if cart.ID = strings.TrimSpace(cart.ID); cart.ID == "" {
		cart.ID = userID
	}
	cart.UserID = strings.TrimSpace(firstNonEmpty(cart.UserID, userID))
	cart.Currency = strings.ToUpper(strings.TrimSpace(firstNonEmpty(cart.Currency, s.currency)))
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = s.now()
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = s.now()
	}
	return cart
}

func (s *cartService) nextItemID(now time.Time) string {
	id := strings.TrimSpace(s.newID())
	if id == "" {
		id = fmt.Sprintf("item-%d", now.UnixNano())
	}
	return id
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartUnavailable
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}

func flashSaleID(quote PriceQuote) string {
	if quote.FlashSale == nil {
		return ""
	}
	return quote.FlashSale.ID
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return []domain.CartItem{}
	}
	dup := make([]domain.CartItem, len(items))
	copy(dup, items)
	for i := range dup {
		if dup[i].UpdatedAt != nil {
			ts := dup[i].UpdatedAt.UTC()
			dup[i].UpdatedAt = &ts
		}
	}
	return dup
}

func indexOfCartItem(items []domain.CartItem, itemID string) int {
	target := strings.TrimSpace(itemID)
	if target == "" {
		return -1
	}
	for i, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.ID), target) {
			return i
		}
	}
	return -1
}

func indexOfCartLine(items []domain.CartItem, productID, variant string) int {
	for i, item := range items {
		if !strings.EqualFold(strings.TrimSpace(item.ProductID), productID) {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(item.Variant), variant) {
			continue
		}
		return i
	}
	return -1
}
