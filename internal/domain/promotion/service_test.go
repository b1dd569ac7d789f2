package promotion

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeRepo struct {
	Repository
	byCode  map[string]*Promotion
	updated []*Promotion
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byCode: make(map[string]*Promotion)}
}

func (f *fakeRepo) Create(_ context.Context, p *Promotion) error {
	if _, ok := f.byCode[p.Code]; ok {
		return ErrCodeExists
	}
	p.ID = int64(len(f.byCode) + 1)
	f.byCode[p.Code] = p
	return nil
}

func (f *fakeRepo) FindByCode(_ context.Context, code string) (*Promotion, error) {
	if p, ok := f.byCode[code]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) Update(_ context.Context, p *Promotion) error {
	f.updated = append(f.updated, p)
	return nil
}

func newTestService(repo *fakeRepo) *Service {
	s := NewService(repo, Config{CodePrefix: "PMT", CodeSuffixLength: 8})
	s.now = func() time.Time { return testNow }
	return s
}

func validInput() CreateInput {
	return CreateInput{
		EligibleSkus:   []string{"COFFEE-250G"},
		DiscountType:   DiscountPercentage,
		DiscountValue:  dec("50"),
		ExpirationDate: testNow.Add(24 * time.Hour).Format(time.RFC3339),
		UsageLimit:     100,
	}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("generates a prefixed code", func(t *testing.T) {
		p, err := newTestService(newFakeRepo()).Create(ctx, validInput())

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(p.Code, "PMT"))
		assert.Len(t, p.Code, len("PMT")+8)
	})

	t.Run("allows creation without eligible skus", func(t *testing.T) {
		in := validInput()
		in.EligibleSkus = nil

		p, err := newTestService(newFakeRepo()).Create(ctx, in)
		require.NoError(t, err)
		assert.Empty(t, p.EligibleSkus)
	})

	t.Run("rejects duplicate codes", func(t *testing.T) {
		svc := newTestService(newFakeRepo())
		in := validInput()
		in.Code = "PMTBOGO"

		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
		_, err = svc.Create(ctx, in)
		require.ErrorIs(t, err, ErrCodeExists)
	})

	validation := []struct {
		name   string
		mutate func(in *CreateInput)
	}{
		{"unknown discount type", func(in *CreateInput) { in.DiscountType = "bogus" }},
		{"past expiration", func(in *CreateInput) { in.ExpirationDate = testNow.Add(-time.Hour).Format(time.RFC3339) }},
		{"malformed expiration", func(in *CreateInput) { in.ExpirationDate = "next week" }},
		{"zero usage limit", func(in *CreateInput) { in.UsageLimit = 0 }},
		{"zero discount", func(in *CreateInput) { in.DiscountValue = decimal.Zero }},
		{"percentage above 100", func(in *CreateInput) { in.DiscountValue = dec("101") }},
	}

	for _, tt := range validation {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			_, err := newTestService(newFakeRepo()).Create(ctx, in)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
		})
	}
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*Service, *fakeRepo) {
		t.Helper()
		repo := newFakeRepo()
		svc := newTestService(repo)
		in := validInput()
		in.Code = "PMTBOGO"
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
		return svc, repo
	}

	t.Run("replaces eligible skus", func(t *testing.T) {
		svc, repo := seed(t)

		p, err := svc.Update(ctx, "PMTBOGO", UpdateInput{EligibleSkus: []string{"TEA-GREEN"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"TEA-GREEN"}, p.EligibleSkus)
		assert.Len(t, repo.updated, 1)
	})

	t.Run("unknown code", func(t *testing.T) {
		svc, _ := seed(t)
		limit := 5

		_, err := svc.Update(ctx, "MISSING", UpdateInput{UsageLimit: &limit})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("revalidates type and value together", func(t *testing.T) {
		svc, _ := seed(t)

		// Switching to fixed keeps the stored value 50, which is fine for
		// fixed. Switching value to 150 while staying percentage must fail.
		value := dec("150")
		_, err := svc.Update(ctx, "PMTBOGO", UpdateInput{DiscountValue: &value})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func TestEligible(t *testing.T) {
	p := &Promotion{EligibleSkus: []string{"A", "B"}}

	assert.True(t, p.Eligible("A"))
	assert.True(t, p.Eligible("B"))
	assert.False(t, p.Eligible("C"))
	assert.False(t, (&Promotion{}).Eligible("A"))
}
