package promotion

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
	// CodePrefix is prepended to auto-generated promotion codes.
	CodePrefix string
	// CodeSuffixLength is the number of random characters after the prefix.
	CodeSuffixLength int
}

// CreateInput holds the fields for creating a promotion. An empty Code asks
// the service to generate one.
type CreateInput struct {
	Code           string
	EligibleSkus   []string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	ExpirationDate string
	UsageLimit     int
}

// UpdateInput holds a partial update; nil fields are left unchanged.
type UpdateInput struct {
	EligibleSkus   []string
	DiscountType   *DiscountType
	DiscountValue  *decimal.Decimal
	ExpirationDate *string
	UsageLimit     *int
}

// Service implements the administrative promotion lifecycle.
type Service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

// NewService creates a promotion Service backed by the given repository.
func NewService(repo Repository, cfg Config) *Service {
	return &Service{repo: repo, cfg: cfg, now: time.Now}
}

// Create validates the input and persists a new promotion. A promotion may
// be created without eligible SKUs, but it will fail validation when applied
// to an order until SKUs are added.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Promotion, error) {
	if !in.DiscountType.Valid() {
		return nil, &ValidationError{Reason: "discount type must be either percentage or fixed"}
	}
	exp, err := s.parseExpiration(in.ExpirationDate)
	if err != nil {
		return nil, err
	}
	if in.UsageLimit <= 0 {
		return nil, &ValidationError{Reason: "usage limit must be greater than zero"}
	}
	if err := validateDiscount(in.DiscountType, in.DiscountValue); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(in.Code)
	if code == "" {
		code = s.cfg.CodePrefix + randcode.Upper(s.cfg.CodeSuffixLength)
	}

	p := &Promotion{
		Code:           code,
		EligibleSkus:   in.EligibleSkus,
		DiscountType:   in.DiscountType,
		DiscountValue:  in.DiscountValue,
		ExpirationDate: exp,
		UsageLimit:     in.UsageLimit,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindAll returns the newest promotions, capped at 100 rows.
func (s *Service) FindAll(ctx context.Context) ([]Promotion, error) {
	return s.repo.List(ctx, 100)
}

// FindOne returns the promotion with the given id, or ErrNotFound.
func (s *Service) FindOne(ctx context.Context, id int64) (*Promotion, error) {
	return s.repo.FindByID(ctx, id)
}

// Update applies a partial update to the promotion with the given code,
// re-validating the resulting type/value combination.
func (s *Service) Update(ctx context.Context, code string, in UpdateInput) (*Promotion, error) {
	p, err := s.repo.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}

	if in.EligibleSkus != nil {
		p.EligibleSkus = in.EligibleSkus
	}

	updatedType := p.DiscountType
	if in.DiscountType != nil {
		updatedType = *in.DiscountType
	}
	if !updatedType.Valid() {
		return nil, &ValidationError{Reason: "discount type must be either percentage or fixed"}
	}

	if in.UsageLimit != nil {
		if *in.UsageLimit <= 0 {
			return nil, &ValidationError{Reason: "usage limit must be greater than zero"}
		}
		p.UsageLimit = *in.UsageLimit
	}
	if in.ExpirationDate != nil {
		exp, err := s.parseExpiration(*in.ExpirationDate)
		if err != nil {
			return nil, err
		}
		p.ExpirationDate = exp
	}
	if in.DiscountValue != nil || in.DiscountType != nil {
		updatedValue := p.DiscountValue
		if in.DiscountValue != nil {
			updatedValue = *in.DiscountValue
		}
		if err := validateDiscount(updatedType, updatedValue); err != nil {
			return nil, err
		}
		p.DiscountType = updatedType
		p.DiscountValue = updatedValue
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update promotion")
	}
	return p, nil
}

// Delete removes the promotion with the given id. It returns ErrInUse when
// the promotion is still referenced by an order, and ErrNotFound when it
// does not exist.
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

func validateDiscount(t DiscountType, value decimal.Decimal) error {
	if !value.IsPositive() {
		return &ValidationError{Reason: "discount value must be positive"}
	}
	if t == DiscountPercentage {
		if value.LessThan(decimal.NewFromInt(1)) || value.GreaterThan(decimal.NewFromInt(100)) {
			return &ValidationError{Reason: "percentage discount must be between 1 and 100"}
		}
	}
	return nil
}
