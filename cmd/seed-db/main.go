// Command seed-db applies migrations and loads a set of demo vouchers and
// promotions for local development.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/promokit/orders-api/internal/domain/promotion"
	"github.com/promokit/orders-api/internal/domain/voucher"
	"github.com/promokit/orders-api/internal/storage/postgres"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedVouchers(ctx, postgres.NewVoucherRepository(pool)); err != nil {
		return errors.Wrap(err, "seed vouchers")
	}
	if err := seedPromotions(ctx, postgres.NewPromotionRepository(pool)); err != nil {
		return errors.Wrap(err, "seed promotions")
	}
	return nil
}

func seedVouchers(ctx context.Context, repo *postgres.VoucherRepository) error {
	slog.Info("seeding demo vouchers")

	nextYear := time.Now().AddDate(1, 0, 0)
	minOrder := decimal.NewFromInt(100)

	vouchers := []voucher.Voucher{
		{
			Code:           "VHRWELCOME10",
			DiscountType:   voucher.DiscountPercentage,
			DiscountValue:  decimal.NewFromInt(10),
			ExpirationDate: nextYear,
			UsageLimit:     1000,
		},
		{
			Code:           "VHRSAVE25",
			DiscountType:   voucher.DiscountFixed,
			DiscountValue:  decimal.NewFromInt(25),
			ExpirationDate: nextYear,
			UsageLimit:     500,
			MinOrderValue:  &minOrder,
		},
	}

	for i := range vouchers {
		v := &vouchers[i]
		err := repo.Create(ctx, v)
		switch {
		case errors.Is(err, voucher.ErrCodeExists):
			slog.Info("voucher already exists, skipping", slog.String("code", v.Code))
		case err != nil:
			return errors.Wrapf(err, "create voucher %s", v.Code)
		default:
			slog.Info("created voucher", slog.String("code", v.Code))
		}
	}
	return nil
}

func seedPromotions(ctx context.Context, repo *postgres.PromotionRepository) error {
	slog.Info("seeding demo promotions")

	nextYear := time.Now().AddDate(1, 0, 0)

	promotions := []promotion.Promotion{
		{
			Code:           "PMTCOFFEE50",
			EligibleSkus:   []string{"COFFEE-250G", "COFFEE-1KG"},
			DiscountType:   promotion.DiscountPercentage,
			DiscountValue:  decimal.NewFromInt(50),
			ExpirationDate: nextYear,
			UsageLimit:     200,
		},
		{
			Code:           "PMTTEATIME",
			EligibleSkus:   []string{"TEA-GREEN", "TEA-BLACK"},
			DiscountType:   promotion.DiscountFixed,
			DiscountValue:  decimal.NewFromInt(5),
			ExpirationDate: nextYear,
			UsageLimit:     300,
		},
	}

	for i := range promotions {
		p := &promotions[i]
		err := repo.Create(ctx, p)
		switch {
		case errors.Is(err, promotion.ErrCodeExists):
			slog.Info("promotion already exists, skipping", slog.String("code", p.Code))
		case err != nil:
			return errors.Wrapf(err, "create promotion %s", p.Code)
		default:
			slog.Info("created promotion", slog.String("code", p.Code))
		}
	}
	return nil
}
