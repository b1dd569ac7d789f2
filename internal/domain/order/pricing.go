package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/internal/domain/promotion"
	"github.com/promokit/orders-api/internal/domain/voucher"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// CreateRequest is the input for pricing and creating an order.
type CreateRequest struct {
	Products      []Line
	VoucherCode   string
	PromotionCode string
}

// Pricing is the outcome of a successful discount computation. It carries
// no side effects: the caller applies the usage decrements for the entities
// flagged as used, atomically with persisting the order.
type Pricing struct {
	OrderValue      decimal.Decimal
	DiscountApplied decimal.Decimal
	Voucher         *voucher.Voucher
	Promotion       *promotion.Promotion
	UseVoucher      bool
	UsePromotion    bool
}

// Lookups resolves voucher and promotion codes. When pricing runs inside a
// transaction these are the transaction-scoped, row-locking lookups.
type Lookups struct {
	Voucher   func(ctx context.Context, code string) (*voucher.Voucher, error)
	Promotion func(ctx context.Context, code string) (*promotion.Promotion, error)
}

// Engine computes order pricing. It is a pure, synchronous computation; the
// only suspension points are the two code lookups.
type Engine struct {
	now func() time.Time
}

// NewEngine returns an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Price validates the optional voucher and promotion codes against the
// ordered products and computes the total discount. The voucher stage runs
// first, then the promotion stage; the first failed validation aborts the
// whole computation. The summed discount is capped at half the order value.
func (e *Engine) Price(ctx context.Context, req CreateRequest, lk Lookups) (*Pricing, error) {
	p := &Pricing{
		OrderValue:      Value(req.Products),
		DiscountApplied: decimal.Zero,
	}

	if req.VoucherCode != "" {
		if err := e.applyVoucher(ctx, p, req, lk); err != nil {
			return nil, err
		}
	}
	if req.PromotionCode != "" {
		if err := e.applyPromotion(ctx, p, req, lk); err != nil {
			return nil, err
		}
	}

	// Round before clamping: half-away-from-zero rounding of an already
	// clamped value could push it back above the cap when the cap itself
	// has a fractional cent. The clamped value rounds down for the same
	// reason.
	p.DiscountApplied = p.DiscountApplied.Round(2)
	maxAllowed := p.OrderValue.Div(two)
	if p.DiscountApplied.GreaterThan(maxAllowed) {
		p.DiscountApplied = maxAllowed.RoundDown(2)
	}

	return p, nil
}

func (e *Engine) applyVoucher(ctx context.Context, p *Pricing, req CreateRequest, lk Lookups) error {
	v, err := lk.Voucher(ctx, req.VoucherCode)
	if err != nil {
		if errors.Is(err, voucher.ErrNotFound) {
			return voucher.ErrNotFound
		}
		return errors.Wrap(err, "lookup voucher")
	}

	now := e.now()
	if !v.ExpirationDate.After(now) {
		return voucher.ErrExpired
	}
	if v.UsageLimit <= 0 {
		return voucher.ErrUsageLimitReached
	}
	if v.MinOrderValue != nil && p.OrderValue.LessThan(*v.MinOrderValue) {
		return voucher.ErrMinOrderNotMet
	}

	var amount decimal.Decimal
	switch v.DiscountType {
	case voucher.DiscountPercentage:
		amount = p.OrderValue.Mul(v.DiscountValue).Div(hundred)
	case voucher.DiscountFixed:
		amount = v.DiscountValue
	default:
		return errors.Errorf("unsupported voucher discount type: %q", v.DiscountType)
	}

	p.DiscountApplied = p.DiscountApplied.Add(amount)
	p.Voucher = v
	p.UseVoucher = true
	return nil
}

func (e *Engine) applyPromotion(ctx context.Context, p *Pricing, req CreateRequest, lk Lookups) error {
	promo, err := lk.Promotion(ctx, req.PromotionCode)
	if err != nil {
		if errors.Is(err, promotion.ErrNotFound) {
			return promotion.ErrNotFound
		}
		return errors.Wrap(err, "lookup promotion")
	}

	now := e.now()
	if !promo.ExpirationDate.After(now) {
		return promotion.ErrExpired
	}
	if promo.UsageLimit <= 0 {
		return promotion.ErrUsageLimitReached
	}
	if p.Voucher != nil && p.Voucher.Code == promo.Code {
		return ErrSameCode
	}
	if len(promo.EligibleSkus) == 0 {
		return promotion.ErrNoEligibleSkus
	}

	// Only the first eligible line is discounted, in original sequence
	// order, no matter how many lines qualify.
	var matched *Line
	for i := range req.Products {
		if promo.Eligible(req.Products[i].SKU) {
			matched = &req.Products[i]
			break
		}
	}
	if matched == nil {
		return promotion.ErrNotApplicable
	}

	var amount decimal.Decimal
	switch promo.DiscountType {
	case promotion.DiscountPercentage:
		amount = matched.Price.Mul(promo.DiscountValue).Div(hundred)
	case promotion.DiscountFixed:
		amount = promo.DiscountValue
	default:
		return errors.Errorf("unsupported promotion discount type: %q", promo.DiscountType)
	}

	p.DiscountApplied = p.DiscountApplied.Add(amount)
	p.Promotion = promo
	p.UsePromotion = true
	return nil
}
