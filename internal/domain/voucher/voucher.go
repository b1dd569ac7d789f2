package voucher

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported voucher discount strategies.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the order value.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a fixed monetary amount.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is one of the known discount types.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrNotFound is returned when no voucher matches the given id or code.
	ErrNotFound = errors.New("voucher not found")
	// ErrExpired is returned when a voucher is past its expiration date.
	ErrExpired = errors.New("voucher expired")
	// ErrUsageLimitReached is returned when a voucher has no redemptions left.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
	// ErrMinOrderNotMet is returned when the order value is below the
	// voucher's minimum order value.
	ErrMinOrderNotMet = errors.New("minimum order value not met")
	// ErrCodeExists is returned when creating a voucher with a code that is
	// already taken.
	ErrCodeExists = errors.New("voucher code already exists")
	// ErrInUse is returned when deleting a voucher that is still referenced
	// by existing orders.
	ErrInUse = errors.New("voucher is in use by existing orders")
)

// ValidationError reports an input that failed a lifecycle validation rule.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Voucher is an order-wide discount code with an optional minimum-spend gate.
type Voucher struct {
	ID             int64
	Code           string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	ExpirationDate time.Time
	UsageLimit     int
	UsedCount      int
	MinOrderValue  *decimal.Decimal
	CreatedAt      time.Time
}

// Repository defines persistence operations for vouchers.
//
// FindByCodeForUpdate must lock the matched row for the remainder of the
// surrounding transaction so that concurrent redemptions of the same code
// serialize their check-and-decrement.
type Repository interface {
	Create(ctx context.Context, v *Voucher) error
	List(ctx context.Context, limit int) ([]Voucher, error)
	FindByID(ctx context.Context, id int64) (*Voucher, error)
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*Voucher, error)
	Update(ctx context.Context, v *Voucher) error
	RedeemOnce(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
