package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promokit/orders-api/internal/domain/promotion"
	"github.com/promokit/orders-api/internal/domain/voucher"
)

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testEngine() *Engine {
	return &Engine{now: func() time.Time { return testNow }}
}

func lookupsFor(vouchers map[string]*voucher.Voucher, promotions map[string]*promotion.Promotion) Lookups {
	return Lookups{
		Voucher: func(_ context.Context, code string) (*voucher.Voucher, error) {
			if v, ok := vouchers[code]; ok {
				return v, nil
			}
			return nil, voucher.ErrNotFound
		},
		Promotion: func(_ context.Context, code string) (*promotion.Promotion, error) {
			if p, ok := promotions[code]; ok {
				return p, nil
			}
			return nil, promotion.ErrNotFound
		},
	}
}

func validVoucher(code string, t voucher.DiscountType, value string) *voucher.Voucher {
	return &voucher.Voucher{
		ID:             1,
		Code:           code,
		DiscountType:   t,
		DiscountValue:  dec(value),
		ExpirationDate: testNow.Add(24 * time.Hour),
		UsageLimit:     10,
	}
}

func validPromotion(code string, t promotion.DiscountType, value string, skus ...string) *promotion.Promotion {
	return &promotion.Promotion{
		ID:             1,
		Code:           code,
		EligibleSkus:   skus,
		DiscountType:   t,
		DiscountValue:  dec(value),
		ExpirationDate: testNow.Add(24 * time.Hour),
		UsageLimit:     10,
	}
}

func TestEnginePrice(t *testing.T) {
	ctx := context.Background()
	products := []Line{
		{SKU: "COFFEE-250G", Price: dec("100")},
		{SKU: "COFFEE-250G", Price: dec("100")},
		{SKU: "TEA-GREEN", Price: dec("200")},
	}

	tests := []struct {
		name       string
		req        CreateRequest
		vouchers   map[string]*voucher.Voucher
		promotions map[string]*promotion.Promotion
		want       string
		wantErr    error
	}{
		{
			name: "no codes means no discount",
			req:  CreateRequest{Products: products},
			want: "0",
		},
		{
			name:     "percentage voucher discounts the whole order",
			req:      CreateRequest{Products: products, VoucherCode: "TEN"},
			vouchers: map[string]*voucher.Voucher{"TEN": validVoucher("TEN", voucher.DiscountPercentage, "10")},
			want:     "40",
		},
		{
			name:     "fixed voucher discounts a flat amount",
			req:      CreateRequest{Products: products, VoucherCode: "SIXTY"},
			vouchers: map[string]*voucher.Voucher{"SIXTY": validVoucher("SIXTY", voucher.DiscountFixed, "60")},
			want:     "60",
		},
		{
			name:     "discount is capped at half the order value",
			req:      CreateRequest{Products: products, VoucherCode: "BIG"},
			vouchers: map[string]*voucher.Voucher{"BIG": validVoucher("BIG", voucher.DiscountFixed, "320")},
			want:     "200",
		},
		{
			name: "promotion discounts only the first eligible line",
			req:  CreateRequest{Products: products, PromotionCode: "HALF"},
			promotions: map[string]*promotion.Promotion{
				"HALF": validPromotion("HALF", promotion.DiscountPercentage, "50", "COFFEE-250G"),
			},
			want: "50",
		},
		{
			name: "fixed promotion",
			req:  CreateRequest{Products: products, PromotionCode: "FIVE"},
			promotions: map[string]*promotion.Promotion{
				"FIVE": validPromotion("FIVE", promotion.DiscountFixed, "5", "TEA-GREEN"),
			},
			want: "5",
		},
		{
			name:     "voucher and promotion discounts are summed",
			req:      CreateRequest{Products: products, VoucherCode: "TEN", PromotionCode: "HALF"},
			vouchers: map[string]*voucher.Voucher{"TEN": validVoucher("TEN", voucher.DiscountPercentage, "10")},
			promotions: map[string]*promotion.Promotion{
				"HALF": validPromotion("HALF", promotion.DiscountPercentage, "50", "COFFEE-250G"),
			},
			want: "90",
		},
		{
			name:     "summed discounts are capped together",
			req:      CreateRequest{Products: products, VoucherCode: "FORTY", PromotionCode: "BOGO"},
			vouchers: map[string]*voucher.Voucher{"FORTY": validVoucher("FORTY", voucher.DiscountPercentage, "40")},
			promotions: map[string]*promotion.Promotion{
				"BOGO": validPromotion("BOGO", promotion.DiscountPercentage, "100", "TEA-GREEN"),
			},
			want: "200",
		},
		{
			name:    "unknown voucher",
			req:     CreateRequest{Products: products, VoucherCode: "NOPE"},
			wantErr: voucher.ErrNotFound,
		},
		{
			name: "expired voucher",
			req:  CreateRequest{Products: products, VoucherCode: "OLD"},
			vouchers: map[string]*voucher.Voucher{"OLD": {
				Code:           "OLD",
				DiscountType:   voucher.DiscountPercentage,
				DiscountValue:  dec("10"),
				ExpirationDate: testNow.Add(-time.Minute),
				UsageLimit:     10,
			}},
			wantErr: voucher.ErrExpired,
		},
		{
			name: "voucher expiring exactly now is rejected",
			req:  CreateRequest{Products: products, VoucherCode: "EDGE"},
			vouchers: map[string]*voucher.Voucher{"EDGE": {
				Code:           "EDGE",
				DiscountType:   voucher.DiscountPercentage,
				DiscountValue:  dec("10"),
				ExpirationDate: testNow,
				UsageLimit:     10,
			}},
			wantErr: voucher.ErrExpired,
		},
		{
			name: "exhausted voucher",
			req:  CreateRequest{Products: products, VoucherCode: "DONE"},
			vouchers: map[string]*voucher.Voucher{"DONE": {
				Code:           "DONE",
				DiscountType:   voucher.DiscountPercentage,
				DiscountValue:  dec("10"),
				ExpirationDate: testNow.Add(time.Hour),
				UsageLimit:     0,
			}},
			wantErr: voucher.ErrUsageLimitReached,
		},
		{
			name: "order below voucher minimum",
			req:  CreateRequest{Products: products, VoucherCode: "MIN"},
			vouchers: map[string]*voucher.Voucher{"MIN": func() *voucher.Voucher {
				v := validVoucher("MIN", voucher.DiscountFixed, "25")
				min := dec("500")
				v.MinOrderValue = &min
				return v
			}()},
			wantErr: voucher.ErrMinOrderNotMet,
		},
		{
			name:    "unknown promotion",
			req:     CreateRequest{Products: products, PromotionCode: "NOPE"},
			wantErr: promotion.ErrNotFound,
		},
		{
			name: "expired promotion",
			req:  CreateRequest{Products: products, PromotionCode: "OLD"},
			promotions: map[string]*promotion.Promotion{"OLD": {
				Code:           "OLD",
				EligibleSkus:   []string{"TEA-GREEN"},
				DiscountType:   promotion.DiscountPercentage,
				DiscountValue:  dec("10"),
				ExpirationDate: testNow.Add(-time.Minute),
				UsageLimit:     10,
			}},
			wantErr: promotion.ErrExpired,
		},
		{
			name: "exhausted promotion",
			req:  CreateRequest{Products: products, PromotionCode: "DONE"},
			promotions: map[string]*promotion.Promotion{"DONE": {
				Code:           "DONE",
				EligibleSkus:   []string{"TEA-GREEN"},
				DiscountType:   promotion.DiscountPercentage,
				DiscountValue:  dec("10"),
				ExpirationDate: testNow.Add(time.Hour),
				UsageLimit:     0,
			}},
			wantErr: promotion.ErrUsageLimitReached,
		},
		{
			name:     "voucher and promotion with the same code",
			req:      CreateRequest{Products: products, VoucherCode: "TWIN", PromotionCode: "TWIN"},
			vouchers: map[string]*voucher.Voucher{"TWIN": validVoucher("TWIN", voucher.DiscountPercentage, "10")},
			promotions: map[string]*promotion.Promotion{
				"TWIN": validPromotion("TWIN", promotion.DiscountPercentage, "10", "TEA-GREEN"),
			},
			wantErr: ErrSameCode,
		},
		{
			name: "promotion without eligible skus",
			req:  CreateRequest{Products: products, PromotionCode: "EMPTY"},
			promotions: map[string]*promotion.Promotion{
				"EMPTY": validPromotion("EMPTY", promotion.DiscountPercentage, "10"),
			},
			wantErr: promotion.ErrNoEligibleSkus,
		},
		{
			name: "promotion not matching any ordered sku",
			req:  CreateRequest{Products: products, PromotionCode: "MISS"},
			promotions: map[string]*promotion.Promotion{
				"MISS": validPromotion("MISS", promotion.DiscountPercentage, "10", "SUGAR-1KG"),
			},
			wantErr: promotion.ErrNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine()
			p, err := e.Price(ctx, tt.req, lookupsFor(tt.vouchers, tt.promotions))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, p.DiscountApplied.Equal(dec(tt.want)),
				"discount = %s, want %s", p.DiscountApplied, tt.want)
		})
	}
}

func TestEnginePriceRounding(t *testing.T) {
	e := testEngine()
	// 15% of 33.33 is 4.9995, rounded to 5.00.
	p, err := e.Price(context.Background(), CreateRequest{
		Products:    []Line{{SKU: "A", Price: dec("33.33")}},
		VoucherCode: "FIFTEEN",
	}, lookupsFor(map[string]*voucher.Voucher{
		"FIFTEEN": validVoucher("FIFTEEN", voucher.DiscountPercentage, "15"),
	}, nil))

	require.NoError(t, err)
	assert.True(t, p.DiscountApplied.Equal(dec("5")), "discount = %s", p.DiscountApplied)
}

func TestEnginePriceFractionalCentCap(t *testing.T) {
	e := testEngine()
	// Half of 33.33 is 16.665. The capped discount must round down to
	// 16.66; rounding half away from zero would land above the cap.
	p, err := e.Price(context.Background(), CreateRequest{
		Products:    []Line{{SKU: "COFFEE-250G", Price: dec("33.33")}},
		VoucherCode: "TWENTY",
	}, lookupsFor(map[string]*voucher.Voucher{
		"TWENTY": validVoucher("TWENTY", voucher.DiscountFixed, "20"),
	}, nil))

	require.NoError(t, err)
	assert.True(t, p.DiscountApplied.Equal(dec("16.66")), "discount = %s", p.DiscountApplied)
	assert.True(t, p.DiscountApplied.LessThanOrEqual(p.OrderValue.Div(dec("2"))),
		"discount %s exceeds half the order value %s", p.DiscountApplied, p.OrderValue)
}

func TestEnginePriceUsageFlags(t *testing.T) {
	e := testEngine()
	products := []Line{{SKU: "COFFEE-250G", Price: dec("100")}}

	p, err := e.Price(context.Background(), CreateRequest{
		Products:      products,
		VoucherCode:   "TEN",
		PromotionCode: "HALF",
	}, lookupsFor(
		map[string]*voucher.Voucher{"TEN": validVoucher("TEN", voucher.DiscountPercentage, "10")},
		map[string]*promotion.Promotion{"HALF": validPromotion("HALF", promotion.DiscountPercentage, "50", "COFFEE-250G")},
	))

	require.NoError(t, err)
	assert.True(t, p.UseVoucher)
	assert.True(t, p.UsePromotion)
	require.NotNil(t, p.Voucher)
	require.NotNil(t, p.Promotion)
	assert.Equal(t, "TEN", p.Voucher.Code)
	assert.Equal(t, "HALF", p.Promotion.Code)
}
