package order

import (
	"context"
)

// Service orchestrates the pricing engine and the stores inside one atomic
// unit of work.
type Service struct {
	engine *Engine
	uow    UnitOfWork
	orders Repository
}

// NewService creates an order Service. The orders repository is used for
// reads and deletes outside a transaction; all writes go through the unit
// of work.
func NewService(engine *Engine, uow UnitOfWork, orders Repository) *Service {
	return &Service{engine: engine, uow: uow, orders: orders}
}

// Create prices the request and persists the order atomically with the
// voucher/promotion usage decrements. On any validation failure the
// transaction is discarded and no counter changes.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Products) == 0 {
		return nil, ErrNoProducts
	}
	for i := range req.Products {
		if req.Products[i].Price.IsNegative() {
			return nil, &InvalidPriceError{SKU: req.Products[i].SKU}
		}
	}

	var created *Order
	err := s.uow.Run(ctx, func(ctx context.Context, st Stores) error {
		pricing, err := s.engine.Price(ctx, req, Lookups{
			Voucher:   st.Vouchers.FindByCodeForUpdate,
			Promotion: st.Promotions.FindByCodeForUpdate,
		})
		if err != nil {
			return err
		}

		// Usage counters change only after every validation for both
		// codes has passed.
		if pricing.UseVoucher {
			if err := st.Vouchers.RedeemOnce(ctx, pricing.Voucher.ID); err != nil {
				return err
			}
		}
		if pricing.UsePromotion {
			if err := st.Promotions.RedeemOnce(ctx, pricing.Promotion.ID); err != nil {
				return err
			}
		}

		o := &Order{
			Products:        req.Products,
			DiscountApplied: pricing.DiscountApplied,
			Voucher:         pricing.Voucher,
			Promotion:       pricing.Promotion,
		}
		if err := st.Orders.Create(ctx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FindAll returns the newest orders with their voucher/promotion
// associations resolved, capped at 100 rows.
func (s *Service) FindAll(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx, 100)
}

// FindOne returns the order with the given id, or ErrNotFound.
func (s *Service) FindOne(ctx context.Context, id int64) (*Order, error) {
	return s.orders.FindByID(ctx, id)
}

// Delete removes the order row. Voucher/promotion usage counters are not
// restored; redemption is not reversible through order deletion.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.orders.Delete(ctx, id)
}
