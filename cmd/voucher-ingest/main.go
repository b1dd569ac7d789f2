// Command voucher-ingest bulk-imports voucher codes from gzip-compressed
// code lists, one code per line. A code is accepted only when it appears in
// every supplied file, which filters out corrupt or partial exports. All
// accepted codes get the same rule, configured by flags.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/promokit/orders-api/internal/domain/voucher"
	"github.com/promokit/orders-api/internal/storage/postgres"
)

const (
	bloomCapacity = 100_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 12
	insertBatch   = 1000
)

type rule struct {
	discountType  string
	discountValue string
	expiresIn     time.Duration
	usageLimit    int
}

func main() {
	var (
		databaseURL string
		r           rule
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&r.discountType, "discount-type", "percentage", "rule for imported codes: percentage or fixed")
	flag.StringVar(&r.discountValue, "discount-value", "10", "discount value for imported codes")
	flag.DurationVar(&r.expiresIn, "expires-in", 365*24*time.Hour, "lifetime of imported codes")
	flag.IntVar(&r.usageLimit, "usage-limit", 1, "usage limit per imported code")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("at least one code list file is required")
		os.Exit(1)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if !voucher.DiscountType(r.discountType).Valid() {
		slog.Error("discount type must be percentage or fixed", slog.String("got", r.discountType))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files, r); err != nil {
		slog.Error("voucher ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("voucher ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string, r rule) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: collecting codes present in every file")

	codes, err := collectCodes(ctx, files[0], filters[1:])
	if err != nil {
		return errors.Wrap(err, "collect codes")
	}

	slog.Info("codes accepted", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return insertCodes(ctx, pool, codes, r)
}

// buildFilters streams every file concurrently, adding each well-formed code
// to that file's bloom filter.
func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			err := streamCodes(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("file", path), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "filter %s", path)
			}

			slog.Info("pass 1 complete", slog.String("file", path), slog.Uint64("codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// collectCodes re-streams the first file and keeps deduplicated codes that
// test positive in every other file's filter.
func collectCodes(ctx context.Context, first string, others []*bloom.BloomFilter) ([]string, error) {
	seen := make(map[string]struct{})
	var codes []string

	err := streamCodes(ctx, first, func(code string) {
		if _, dup := seen[code]; dup {
			return
		}
		for _, f := range others {
			if !f.TestString(code) {
				return
			}
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// streamCodes reads a gzip file line by line, passing well-formed codes to fn.
func streamCodes(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := scanner.Text()
		if len(code) >= minCodeLen && len(code) <= maxCodeLen {
			fn(code)
		}
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

const insertVoucherSQL = `
INSERT INTO vouchers (code, discount_type, discount_value, expiration_date, usage_limit)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (code) DO NOTHING`

// insertCodes writes the accepted codes in batches. Codes already present
// keep their existing rule.
func insertCodes(ctx context.Context, pool *pgxpool.Pool, codes []string, r rule) error {
	value, err := decimal.NewFromString(r.discountValue)
	if err != nil {
		return errors.Wrap(err, "parse discount value")
	}
	expiration := time.Now().Add(r.expiresIn)

	slog.Info("writing vouchers", slog.Int("count", len(codes)))

	for start := 0; start < len(codes); start += insertBatch {
		end := min(start+insertBatch, len(codes))

		batch := &pgx.Batch{}
		for _, code := range codes[start:end] {
			batch.Queue(insertVoucherSQL, code, r.discountType, value, expiration, r.usageLimit)
		}
		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "insert batch at %d", start)
		}

		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(codes)))
	}
	return nil
}
