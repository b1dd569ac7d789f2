package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promokit/orders-api/internal/domain/promotion"
)

const (
	promotionColumns = `id, code, eligible_skus, discount_type, discount_value,
		expiration_date, usage_limit, created_at`

	insertPromotionSQL = `INSERT INTO promotions
		(code, eligible_skus, discount_type, discount_value, expiration_date, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	listPromotionsSQL = `SELECT ` + promotionColumns + ` FROM promotions ORDER BY id DESC LIMIT $1`

	getPromotionByIDSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`

	getPromotionByCodeSQL = `SELECT ` + promotionColumns + ` FROM promotions WHERE code = $1`

	getPromotionByCodeForUpdateSQL = getPromotionByCodeSQL + ` FOR UPDATE`

	updatePromotionSQL = `UPDATE promotions SET eligible_skus = $2, discount_type = $3,
		discount_value = $4, expiration_date = $5, usage_limit = $6
		WHERE id = $1`

	redeemPromotionSQL = `UPDATE promotions SET usage_limit = usage_limit - 1 WHERE id = $1`

	deletePromotionSQL = `DELETE FROM promotions WHERE id = $1`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	db querier
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{db: pool}
}

// Create inserts the promotion and fills in its assigned id and creation
// time. Returns promotion.ErrCodeExists when the code is already taken.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	err := r.db.QueryRow(ctx, insertPromotionSQL,
		p.Code, p.EligibleSkus, string(p.DiscountType), p.DiscountValue,
		p.ExpirationDate, p.UsageLimit,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if pgErrCode(err) == codeUniqueViolation {
			return promotion.ErrCodeExists
		}
		return fmt.Errorf("creating promotion %q: %w", p.Code, err)
	}
	return nil
}

// List returns up to limit promotions, newest first.
func (r *PromotionRepository) List(ctx context.Context, limit int) ([]promotion.Promotion, error) {
	rows, err := r.db.Query(ctx, listPromotionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	promotions, err := pgx.CollectRows(rows, scanPromotion)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return promotions, nil
}

// FindByID looks up a promotion by id. Returns promotion.ErrNotFound when absent.
func (r *PromotionRepository) FindByID(ctx context.Context, id int64) (*promotion.Promotion, error) {
	return r.findOne(ctx, getPromotionByIDSQL, id)
}

// FindByCode looks up a promotion by its exact, case-sensitive code.
// Returns promotion.ErrNotFound when absent.
func (r *PromotionRepository) FindByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.findOne(ctx, getPromotionByCodeSQL, code)
}

// FindByCodeForUpdate is FindByCode with a FOR UPDATE row lock, serializing
// concurrent redemptions of the same code for the rest of the transaction.
func (r *PromotionRepository) FindByCodeForUpdate(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.findOne(ctx, getPromotionByCodeForUpdateSQL, code)
}

func (r *PromotionRepository) findOne(ctx context.Context, sql string, arg any) (*promotion.Promotion, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding promotion: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("finding promotion: %w", err)
	}
	return &p, nil
}

// Update persists the mutable fields of the promotion.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	tag, err := r.db.Exec(ctx, updatePromotionSQL,
		p.ID, p.EligibleSkus, string(p.DiscountType), p.DiscountValue,
		p.ExpirationDate, p.UsageLimit,
	)
	if err != nil {
		return fmt.Errorf("updating promotion %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// RedeemOnce consumes one use of the promotion.
func (r *PromotionRepository) RedeemOnce(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, redeemPromotionSQL, id)
	if err != nil {
		return fmt.Errorf("redeeming promotion %d: %w", id, err)
	}
	return nil
}

// Delete removes the promotion. Returns promotion.ErrInUse when an order
// still references it, promotion.ErrNotFound when it does not exist.
func (r *PromotionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, deletePromotionSQL, id)
	if err != nil {
		if pgErrCode(err) == codeForeignKeyViolation {
			return promotion.ErrInUse
		}
		return fmt.Errorf("deleting promotion %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	var (
		p            promotion.Promotion
		discountType string
	)
	err := row.Scan(
		&p.ID, &p.Code, &p.EligibleSkus, &discountType, &p.DiscountValue,
		&p.ExpirationDate, &p.UsageLimit, &p.CreatedAt,
	)
	p.DiscountType = promotion.DiscountType(discountType)
	return p, err
}
