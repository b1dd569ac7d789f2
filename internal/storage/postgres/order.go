package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/internal/domain/order"
	"github.com/promokit/orders-api/internal/domain/promotion"
	"github.com/promokit/orders-api/internal/domain/voucher"
)

const (
	insertOrderSQL = `INSERT INTO orders (products, discount_applied, voucher_id, promotion_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	// Orders are read together with their voucher/promotion associations.
	selectOrdersSQL = `SELECT o.id, o.products, o.discount_applied, o.created_at,
		v.id, v.code, v.discount_type, v.discount_value, v.expiration_date,
		v.usage_limit, v.used_count, v.min_order_value,
		p.id, p.code, p.eligible_skus, p.discount_type, p.discount_value,
		p.expiration_date, p.usage_limit
		FROM orders o
		LEFT JOIN vouchers v ON v.id = o.voucher_id
		LEFT JOIN promotions p ON p.id = o.promotion_id`

	listOrdersSQL = selectOrdersSQL + ` ORDER BY o.id DESC LIMIT $1`

	getOrderByIDSQL = selectOrdersSQL + ` WHERE o.id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: pool}
}

// Create persists a new order, serializing the product lines into the JSONB
// column, and fills in the assigned id and creation time.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	var voucherID, promotionID *int64
	if o.Voucher != nil {
		voucherID = &o.Voucher.ID
	}
	if o.Promotion != nil {
		promotionID = &o.Promotion.ID
	}

	err := r.db.QueryRow(ctx, insertOrderSQL,
		encodeLines(o.Products), o.DiscountApplied, voucherID, promotionID,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

// List returns up to limit orders, newest first, with associations resolved.
func (r *OrderRepository) List(ctx context.Context, limit int) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// FindByID looks up an order by id with associations resolved.
// Returns order.ErrNotFound when absent.
func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.db.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order %d: %w", id, err)
	}
	return &o, nil
}

// Delete removes the order row. Returns order.ErrNotFound when it does not
// exist. Usage counters on the referenced voucher/promotion are untouched.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		products []byte

		vID       *int64
		vCode     *string
		vType     *string
		vValue    decimal.NullDecimal
		vExpires  *time.Time
		vLimit    *int
		vUsed     *int
		vMinOrder decimal.NullDecimal

		pID      *int64
		pCode    *string
		pSkus    []string
		pType    *string
		pValue   decimal.NullDecimal
		pExpires *time.Time
		pLimit   *int
	)
	err := row.Scan(
		&o.ID, &products, &o.DiscountApplied, &o.CreatedAt,
		&vID, &vCode, &vType, &vValue, &vExpires, &vLimit, &vUsed, &vMinOrder,
		&pID, &pCode, &pSkus, &pType, &pValue, &pExpires, &pLimit,
	)
	if err != nil {
		return order.Order{}, err
	}

	o.Products, err = decodeLines(products)
	if err != nil {
		return order.Order{}, fmt.Errorf("decoding order %d products: %w", o.ID, err)
	}

	if vID != nil {
		v := &voucher.Voucher{
			ID:             *vID,
			Code:           *vCode,
			DiscountType:   voucher.DiscountType(*vType),
			DiscountValue:  vValue.Decimal,
			ExpirationDate: *vExpires,
			UsageLimit:     *vLimit,
			UsedCount:      *vUsed,
		}
		if vMinOrder.Valid {
			v.MinOrderValue = &vMinOrder.Decimal
		}
		o.Voucher = v
	}
	if pID != nil {
		o.Promotion = &promotion.Promotion{
			ID:             *pID,
			Code:           *pCode,
			EligibleSkus:   pSkus,
			DiscountType:   promotion.DiscountType(*pType),
			DiscountValue:  pValue.Decimal,
			ExpirationDate: *pExpires,
			UsageLimit:     *pLimit,
		}
	}
	return o, nil
}

// encodeLines serializes product lines for the JSONB column. Prices are
// written as plain JSON numbers, so the stored document round-trips without
// float conversion.
func encodeLines(lines []order.Line) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("sku")
		e.Str(l.SKU)
		e.FieldStart("price")
		e.Num(jx.Num(l.Price.String()))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeLines(data []byte) ([]order.Line, error) {
	var lines []order.Line
	d := jx.DecodeBytes(data)
	err := d.Arr(func(d *jx.Decoder) error {
		var line order.Line
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "sku":
				s, err := d.Str()
				if err != nil {
					return err
				}
				line.SKU = s
				return nil
			case "price":
				n, err := d.Num()
				if err != nil {
					return err
				}
				price, err := decimal.NewFromString(n.String())
				if err != nil {
					return err
				}
				line.Price = price
				return nil
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}
