package voucher

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/pkg/randcode"
)

// Config holds the code-generation settings for the admin service.
type Config struct {
	// CodePrefix is prepended to auto-generated voucher codes.
	CodePrefix string
	// CodeSuffixLength is the number of random characters after the prefix.
	CodeSuffixLength int
}

// CreateInput holds the fields for creating a voucher. An empty Code asks
// the service to generate one.
type CreateInput struct {
	Code           string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	ExpirationDate string
	UsageLimit     int
	MinOrderValue  *decimal.Decimal
}

// UpdateInput holds a partial update; nil fields are left unchanged.
type UpdateInput struct {
	DiscountType   *DiscountType
	DiscountValue  *decimal.Decimal
	ExpirationDate *string
	UsageLimit     *int
	MinOrderValue  *decimal.Decimal
}

// Service implements the administrative voucher lifecycle.
type Service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

// NewService creates a voucher Service backed by the given repository.
func NewService(repo Repository, cfg Config) *Service {
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// Create validates the input and persists a new voucher. When no code is
// supplied, one is generated from the configured prefix.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Voucher, error) {
	if !in.DiscountType.Valid() {
		return nil, &ValidationError{Reason: "discount type must be either percentage or fixed"}
	}
	exp, err := s.parseExpiration(in.ExpirationDate)
	if err != nil {
		return nil, err
	}
	if err := validateUsageLimit(in.UsageLimit); err != nil {
		return nil, err
	}
	if err := validateMinOrderValue(in.MinOrderValue); err != nil {
		return nil, err
	}
	if err := validateDiscount(in.DiscountType, in.DiscountValue, in.MinOrderValue); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(in.Code)
	if code == "" {
		code = s.cfg.CodePrefix + randcode.Upper(s.cfg.CodeSuffixLength)
	}

	v := &Voucher{
		Code:           code,
		DiscountType:   in.DiscountType,
		DiscountValue:  in.DiscountValue,
		ExpirationDate: exp,
		UsageLimit:     in.UsageLimit,
		MinOrderValue:  in.MinOrderValue,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// FindAll returns the newest vouchers, capped at 100 rows.
func (s *Service) FindAll(ctx context.Context) ([]Voucher, error) {
	return s.repo.List(ctx, 100)
}

// FindOne returns the voucher with the given id, or ErrNotFound.
func (s *Service) FindOne(ctx context.Context, id int64) (*Voucher, error) {
	return s.repo.FindByID(ctx, id)
}

// Update applies a partial update to the voucher with the given code.
// Cross-field rules are re-evaluated against the resulting combination of
// old and new values.
func (s *Service) Update(ctx context.Context, code string, in UpdateInput) (*Voucher, error) {
	v, err := s.repo.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}

	updatedType := v.DiscountType
	if in.DiscountType != nil {
		updatedType = *in.DiscountType
	}
	if !updatedType.Valid() {
		return nil, &ValidationError{Reason: "discount type must be either percentage or fixed"}
	}

	updatedValue := v.DiscountValue
	if in.DiscountValue != nil {
		updatedValue = *in.DiscountValue
	}
	updatedMinOrder := v.MinOrderValue
	if in.MinOrderValue != nil {
		updatedMinOrder = in.MinOrderValue
	}

	if in.ExpirationDate != nil {
		exp, err := s.parseExpiration(*in.ExpirationDate)
		if err != nil {
			return nil, err
		}
		v.ExpirationDate = exp
	}
	if in.UsageLimit != nil {
		if err := validateUsageLimit(*in.UsageLimit); err != nil {
			return nil, err
		}
		v.UsageLimit = *in.UsageLimit
	}
	if in.MinOrderValue != nil {
		if err := validateMinOrderValue(in.MinOrderValue); err != nil {
			return nil, err
		}
		v.MinOrderValue = in.MinOrderValue
	}
	if in.DiscountValue != nil || in.DiscountType != nil {
		if err := validateDiscount(updatedType, updatedValue, updatedMinOrder); err != nil {
			return nil, err
		}
		v.DiscountType = updatedType
		v.DiscountValue = updatedValue
	}

	if err := s.repo.Update(ctx, v); err != nil {
		return nil, errors.Wrap(err, "update voucher")
	}
	return v, nil
}

// Delete removes the voucher with the given id. It returns ErrInUse when the
// voucher is still referenced by an order, and ErrNotFound when it does not
// exist.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) parseExpiration(raw string) (time.Time, error) {
	exp, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, &ValidationError{Reason: "invalid expiration date, expected RFC3339"}
	}
	if !exp.After(s.now()) {
		return time.Time{}, &ValidationError{Reason: "expiration date must be a future date"}
	}
	return exp, nil
}

func validateUsageLimit(limit int) error {
	if limit <= 0 {
		return &ValidationError{Reason: "usage limit must be greater than zero"}
	}
	return nil
}

func validateMinOrderValue(value *decimal.Decimal) error {
	if value != nil && value.IsNegative() {
		return &ValidationError{Reason: "minimum order value cannot be negative"}
	}
	return nil
}

func validateDiscount(t DiscountType, value decimal.Decimal, minOrderValue *decimal.Decimal) error {
	if !value.IsPositive() {
		return &ValidationError{Reason: "discount value must be positive"}
	}
	switch t {
	case DiscountPercentage:
		if value.LessThan(decimal.NewFromInt(1)) || value.GreaterThan(decimal.NewFromInt(100)) {
			return &ValidationError{Reason: "percentage discount must be between 1 and 100"}
		}
	case DiscountFixed:
		if minOrderValue != nil && value.GreaterThan(*minOrderValue) {
			return &ValidationError{Reason: "fixed discount cannot exceed the minimum order value"}
		}
	}
	return nil
}
