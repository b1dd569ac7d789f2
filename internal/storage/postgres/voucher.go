package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/internal/domain/voucher"
)

const (
	voucherColumns = `id, code, discount_type, discount_value, expiration_date,
		usage_limit, used_count, min_order_value, created_at`

	insertVoucherSQL = `INSERT INTO vouchers
		(code, discount_type, discount_value, expiration_date, usage_limit, min_order_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	listVouchersSQL = `SELECT ` + voucherColumns + ` FROM vouchers ORDER BY id DESC LIMIT $1`

	getVoucherByIDSQL = `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`

	getVoucherByCodeSQL = `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1`

	getVoucherByCodeForUpdateSQL = getVoucherByCodeSQL + ` FOR UPDATE`

	updateVoucherSQL = `UPDATE vouchers SET discount_type = $2, discount_value = $3,
		expiration_date = $4, usage_limit = $5, min_order_value = $6
		WHERE id = $1`

	redeemVoucherSQL = `UPDATE vouchers
		SET usage_limit = usage_limit - 1, used_count = used_count + 1
		WHERE id = $1`

	deleteVoucherSQL = `DELETE FROM vouchers WHERE id = $1`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	db querier
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{db: pool}
}

// Create inserts the voucher and fills in its assigned id and creation time.
// Returns voucher.ErrCodeExists when the code is already taken.
func (r *VoucherRepository) Create(ctx context.Context, v *voucher.Voucher) error {
	err := r.db.QueryRow(ctx, insertVoucherSQL,
		v.Code, string(v.DiscountType), v.DiscountValue, v.ExpirationDate,
		v.UsageLimit, nullDecimal(v.MinOrderValue),
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if pgErrCode(err) == codeUniqueViolation {
			return voucher.ErrCodeExists
		}
		return fmt.Errorf("creating voucher %q: %w", v.Code, err)
	}
	return nil
}

// List returns up to limit vouchers, newest first.
func (r *VoucherRepository) List(ctx context.Context, limit int) ([]voucher.Voucher, error) {
	rows, err := r.db.Query(ctx, listVouchersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing vouchers: %w", err)
	}
	vouchers, err := pgx.CollectRows(rows, scanVoucher)
	if err != nil {
		return nil, fmt.Errorf("listing vouchers: %w", err)
	}
	return vouchers, nil
}

// FindByID looks up a voucher by id. Returns voucher.ErrNotFound when absent.
func (r *VoucherRepository) FindByID(ctx context.Context, id int64) (*voucher.Voucher, error) {
	return r.findOne(ctx, getVoucherByIDSQL, id)
}

// FindByCode looks up a voucher by its exact, case-sensitive code.
// Returns voucher.ErrNotFound when absent.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	return r.findOne(ctx, getVoucherByCodeSQL, code)
}

// FindByCodeForUpdate is FindByCode with a FOR UPDATE row lock, serializing
// concurrent redemptions of the same code for the rest of the transaction.
func (r *VoucherRepository) FindByCodeForUpdate(ctx context.Context, code string) (*voucher.Voucher, error) {
	return r.findOne(ctx, getVoucherByCodeForUpdateSQL, code)
}

func (r *VoucherRepository) findOne(ctx context.Context, sql string, arg any) (*voucher.Voucher, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("finding voucher: %w", err)
	}
	v, err := pgx.CollectExactlyOneRow(rows, scanVoucher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("finding voucher: %w", err)
	}
	return &v, nil
}

// Update persists the mutable fields of the voucher.
func (r *VoucherRepository) Update(ctx context.Context, v *voucher.Voucher) error {
	tag, err := r.db.Exec(ctx, updateVoucherSQL,
		v.ID, string(v.DiscountType), v.DiscountValue, v.ExpirationDate,
		v.UsageLimit, nullDecimal(v.MinOrderValue),
	)
	if err != nil {
		return fmt.Errorf("updating voucher %d: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrNotFound
	}
	return nil
}

// RedeemOnce consumes one use: usage_limit goes down, used_count goes up.
func (r *VoucherRepository) RedeemOnce(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, redeemVoucherSQL, id)
	if err != nil {
		return fmt.Errorf("redeeming voucher %d: %w", id, err)
	}
	return nil
}

// Delete removes the voucher. Returns voucher.ErrInUse when an order still
// references it, voucher.ErrNotFound when it does not exist.
func (r *VoucherRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, deleteVoucherSQL, id)
	if err != nil {
		if pgErrCode(err) == codeForeignKeyViolation {
			return voucher.ErrInUse
		}
		return fmt.Errorf("deleting voucher %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return voucher.ErrNotFound
	}
	return nil
}

func scanVoucher(row pgx.CollectableRow) (voucher.Voucher, error) {
	var (
		v            voucher.Voucher
		discountType string
		minOrder     decimal.NullDecimal
	)
	err := row.Scan(
		&v.ID, &v.Code, &discountType, &v.DiscountValue, &v.ExpirationDate,
		&v.UsageLimit, &v.UsedCount, &minOrder, &v.CreatedAt,
	)
	v.DiscountType = voucher.DiscountType(discountType)
	if minOrder.Valid {
		v.MinOrderValue = &minOrder.Decimal
	}
	return v, err
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
