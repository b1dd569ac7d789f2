package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promotion discount strategies.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the matched line's price.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a fixed monetary amount.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is one of the known discount types.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrNotFound is returned when no promotion matches the given id or code.
	ErrNotFound = errors.New("promotion not found")
	// ErrExpired is returned when a promotion is past its expiration date.
	ErrExpired = errors.New("promotion expired")
	// ErrUsageLimitReached is returned when a promotion has no redemptions left.
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
	// ErrNoEligibleSkus is returned when a promotion defines no eligible SKUs
	// and therefore can never apply.
	ErrNoEligibleSkus = errors.New("promotion does not define eligible skus")
	// ErrNotApplicable is returned when none of the ordered SKUs are eligible.
	ErrNotApplicable = errors.New("promotion not applicable to any ordered product")
	// ErrCodeExists is returned when creating a promotion with a code that is
	// already taken.
	ErrCodeExists = errors.New("promotion code already exists")
	// ErrInUse is returned when deleting a promotion that is still referenced
	// by existing orders.
	ErrInUse = errors.New("promotion is in use by existing orders")
)

// ValidationError reports an input that failed a lifecycle validation rule.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Promotion is a SKU-gated discount code applied to at most one matching
// order line.
type Promotion struct {
	ID             int64
	Code           string
	EligibleSkus   []string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	ExpirationDate time.Time
	UsageLimit     int
	CreatedAt      time.Time
}

// Eligible reports whether the given SKU is covered by the promotion.
func (p *Promotion) Eligible(sku string) bool {
	for _, s := range p.EligibleSkus {
		if s == sku {
			return true
		}
	}
	return false
}

// Repository defines persistence operations for promotions.
//
// FindByCodeForUpdate must lock the matched row for the remainder of the
// surrounding transaction so that concurrent redemptions of the same code
// serialize their check-and-decrement.
type Repository interface {
	Create(ctx context.Context, p *Promotion) error
	List(ctx context.Context, limit int) ([]Promotion, error)
	FindByID(ctx context.Context, id int64) (*Promotion, error)
	FindByCode(ctx context.Context, code string) (*Promotion, error)
	FindByCodeForUpdate(ctx context.Context, code string) (*Promotion, error)
	Update(ctx context.Context, p *Promotion) error
	RedeemOnce(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}
