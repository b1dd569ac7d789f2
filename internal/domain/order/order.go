package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/internal/domain/promotion"
	"github.com/promokit/orders-api/internal/domain/voucher"
)

var (
	// ErrNotFound is returned when no order matches the given id.
	ErrNotFound = errors.New("order not found")
	// ErrNoProducts is returned when an order request carries no product lines.
	ErrNoProducts = errors.New("at least one product is required")
	// ErrSameCode is returned when the voucher and promotion codes on one
	// order are identical.
	ErrSameCode = errors.New("voucher and promotion cannot share the same code")
)

// InvalidPriceError indicates a product line with a negative price.
type InvalidPriceError struct {
	SKU string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("price must not be negative for sku %s", e.SKU)
}

// Line is a single ordered product, already resolved to its price.
type Line struct {
	SKU   string
	Price decimal.Decimal
}

// Order is a persisted purchase with its applied discount and the
// voucher/promotion it consumed, if any.
type Order struct {
	ID              int64
	Products        []Line
	DiscountApplied decimal.Decimal
	Voucher         *voucher.Voucher
	Promotion       *promotion.Promotion
	CreatedAt       time.Time
}

// Value returns the pre-discount order value, the sum of all line prices.
func Value(products []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range products {
		sum = sum.Add(l.Price)
	}
	return sum
}

// Repository defines persistence operations for orders. List and FindByID
// resolve the voucher/promotion associations.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	List(ctx context.Context, limit int) ([]Order, error)
	FindByID(ctx context.Context, id int64) (*Order, error)
	Delete(ctx context.Context, id int64) error
}

// Stores bundles the transaction-scoped repositories handed to a unit of
// work. Lookups through these repositories observe one consistent snapshot,
// and their row locks serialize concurrent redemptions per code.
type Stores struct {
	Vouchers   voucher.Repository
	Promotions promotion.Repository
	Orders     Repository
}

// UnitOfWork runs fn inside a single storage transaction. The transaction
// commits only when fn returns nil; any error discards every write made
// through the Stores.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, st Stores) error) error
}
