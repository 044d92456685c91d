package domain

import (
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results together with the next page token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Product is a catalog entry. Prices are stored in the currency's minor unit.
// Stock is mutated by admin tooling and by inventory reservations only.
type Product struct {
	ID         string
	Name       string
	Image      string
	Price      int64
	Currency   string
	Stock      int64
	Active     bool
	CategoryID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FlashSale is a time-boxed, quantity-capped percentage discount on a single product.
type FlashSale struct {
	ID              string
	ProductID       string
	DiscountPercent int64
	StartsAt        time.Time
	EndsAt          time.Time
	Quantity        int64
	SoldCount       int64
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RunningAt reports whether the sale can still price units at the given instant.
func (f FlashSale) RunningAt(now time.Time) bool {
	if !f.Active || f.Quantity <= 0 {
		return false
	}
	if now.Before(f.StartsAt) || now.After(f.EndsAt) {
		return false
	}
	return f.SoldCount < f.Quantity
}

// Remaining returns how many units the sale may still price.
func (f FlashSale) Remaining() int64 {
	if f.SoldCount >= f.Quantity {
		return 0
	}
	return f.Quantity - f.SoldCount
}

// CouponType distinguishes percentage coupons from fixed-amount ones.
type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

// Coupon applies a discount to an order subtotal, subject to expiry, usage and
// minimum-purchase constraints. UsedCount never exceeds UsageLimit when a limit is set.
type Coupon struct {
	ID          string
	Code        string
	Type        CouponType
	Value       int64
	MinPurchase *int64
	MaxDiscount *int64
	ExpiresAt   *time.Time
	UsageLimit  *int64
	UsedCount   int64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CartItem is one cart line. UnitPrice is locked in at add/update time and is
// not re-derived when the cart is read.
type CartItem struct {
	ID          string
	ProductID   string
	Name        string
	Image       string
	Variant     string
	Quantity    int64
	UnitPrice   int64
	FlashSaleID string
	AddedAt     time.Time
	UpdatedAt   *time.Time
}

// Cart is the per-user staging area for an order. The document ID doubles as
// the owning user's ID.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalItems sums quantities across all lines.
func (c Cart) TotalItems() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// Subtotal sums quantity times locked-in unit price across all lines.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.Quantity * item.UnitPrice
	}
	return total
}

// GuestCartLine is an unauthenticated cart line awaiting a merge after login.
type GuestCartLine struct {
	ProductID string `json:"productId"`
	Variant   string `json:"variant,omitempty"`
	Quantity  int64  `json:"quantity"`
}

// Address is a shipping destination. Country is an ISO 3166-1 alpha-2 code.
type Address struct {
	FullName   string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// OrderStatus tracks fulfillment progress. Payment state lives on the order's
// IsPaid flag and moves independently of the status machine.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderItem is an immutable snapshot of a priced line; later catalog edits
// cannot alter it.
type OrderItem struct {
	ProductID   string
	Name        string
	Image       string
	Variant     string
	Quantity    int64
	UnitPrice   int64
	LineTotal   int64
	FlashSaleID string
}

// OrderTotals carries the computed monetary fields of an order.
// Total = Items + Shipping + Tax - Discount.
type OrderTotals struct {
	Items    int64
	Discount int64
	Shipping int64
	Tax      int64
	Total    int64
}

// PaymentResult is the gateway's confirmation snapshot applied when an order
// is marked paid.
type PaymentResult struct {
	ID         string
	Status     string
	Email      string
	UpdateTime time.Time
}

// Order is an immutable financial record; only status, payment and shipment
// metadata change after creation.
type Order struct {
	ID               string
	Number           string
	UserID           string
	Items            []OrderItem
	ShippingAddress  Address
	PaymentMethod    string
	ShippingMethodID string
	CouponCode       string
	Currency         string
	ExchangeRate     float64
	Totals           OrderTotals
	ConvertedTotal   int64
	Status           OrderStatus
	IsPaid           bool
	PaidAt           *time.Time
	PaymentResult    *PaymentResult
	IsDelivered      bool
	DeliveredAt      *time.Time
	ShippedAt        *time.Time
	CancelledAt      *time.Time
	TrackingNumber   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReservationStatus records whether reserved stock is still held.
type ReservationStatus string

const (
	ReservationStatusReserved ReservationStatus = "reserved"
	ReservationStatusReleased ReservationStatus = "released"
)

// ReservationLine is one product's share of a reservation. FlashSaleID is set
// when the line was priced by a flash sale and its sold counter was advanced.
type ReservationLine struct {
	ProductID   string
	Quantity    int64
	FlashSaleID string
}

// Reservation is the audit record of a stock hold taken at order creation and
// released on cancellation.
type Reservation struct {
	ID         string
	OrderID    string
	UserID     string
	Status     ReservationStatus
	Lines      []ReservationLine
	CreatedAt  time.Time
	ReleasedAt *time.Time
}

// ShippingZone maps destination countries to a base rate in minor units.
type ShippingZone struct {
	Name      string
	Countries []string
	Rate      int64
}

// ShippingMethod is a carrier option with zone-based base rates.
type ShippingMethod struct {
	ID    string
	Name  string
	Zones []ShippingZone
}

// RateFor returns the base rate for the destination country, falling back to
// the first zone when no zone lists the country.
func (m ShippingMethod) RateFor(country string) (int64, bool) {
	if len(m.Zones) == 0 {
		return 0, false
	}
	needle := strings.ToUpper(strings.TrimSpace(country))
	for _, zone := range m.Zones {
		for _, c := range zone.Countries {
			if strings.ToUpper(strings.TrimSpace(c)) == needle {
				return zone.Rate, true
			}
		}
	}
	return m.Zones[0].Rate, true
}
