package storage

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/solarsavings/pkg/types"
)

func sampleQuote(id string, createdAt time.Time) types.Quote {
	return types.Quote{
		ID:        id,
		Kind:      types.QuoteKindDemand,
		CreatedAt: createdAt,
		Demand: &types.DemandQuote{
			Billing: types.DemandBillingResult{
				Convention:    types.BillingRealPower,
				ShaveKW:       25,
				AnnualSavings: 9000,
			},
			Battery: types.BatterySizingResult{
				NameplateKWH: 61.7,
				InverterKW:   25,
				Regime:       types.RegimePowerDominated,
			},
			Economics: types.EconomicsResult{
				PaybackYears: math.Inf(1),
				YearlySeries: []types.YearlySavings{{Year: 1}},
			},
		},
	}
}

// testDatabase runs the behavior every Database must share.
func testDatabase(t *testing.T, db Database) {
	ctx := context.Background()
	// Firestore timestamps are microsecond precision
	base := time.Now().Truncate(time.Millisecond).UTC()

	t.Run("Save And Get", func(t *testing.T) {
		q := sampleQuote("quote-save-"+base.Format("150405.000"), base)
		require.NoError(t, db.SaveQuote(ctx, q))

		got, err := db.GetQuote(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, q.ID, got.ID)
		assert.Equal(t, types.QuoteKindDemand, got.Kind)
		assert.True(t, q.CreatedAt.Equal(got.CreatedAt))
		require.NotNil(t, got.Demand)
		assert.Equal(t, 25.0, got.Demand.Billing.ShaveKW)
		assert.Equal(t, types.RegimePowerDominated, got.Demand.Battery.Regime)
		assert.True(t, math.IsInf(got.Demand.Economics.PaybackYears, 1))
	})

	t.Run("Overwrite", func(t *testing.T) {
		q := sampleQuote("quote-overwrite-"+base.Format("150405.000"), base)
		require.NoError(t, db.SaveQuote(ctx, q))
		q.Demand.Billing.ShaveKW = 30
		require.NoError(t, db.SaveQuote(ctx, q))

		got, err := db.GetQuote(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, 30.0, got.Demand.Billing.ShaveKW)
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := db.GetQuote(ctx, "does-not-exist")
		assert.True(t, errors.Is(err, ErrQuoteNotFound), "got %v", err)
	})

	t.Run("Empty ID", func(t *testing.T) {
		err := db.SaveQuote(ctx, sampleQuote("", base))
		assert.ErrorContains(t, err, "quote ID cannot be empty")
	})

	t.Run("List Range", func(t *testing.T) {
		start := base.Add(24 * time.Hour)
		q1 := sampleQuote("quote-list-1-"+base.Format("150405.000"), start.Add(time.Minute))
		q2 := sampleQuote("quote-list-2-"+base.Format("150405.000"), start)
		q3 := sampleQuote("quote-list-3-"+base.Format("150405.000"), start.Add(time.Hour))
		for _, q := range []types.Quote{q1, q2, q3} {
			require.NoError(t, db.SaveQuote(ctx, q))
		}

		quotes, err := db.ListQuotes(ctx, start, start.Add(time.Hour))
		require.NoError(t, err)
		ids := make([]string, 0, len(quotes))
		for _, q := range quotes {
			ids = append(ids, q.ID)
		}
		// end is exclusive and results are oldest first
		assert.Equal(t, []string{q2.ID, q1.ID}, ids)
	})
}

func TestMemory(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testDatabase(t, db)

	t.Run("Isolated From Caller", func(t *testing.T) {
		ctx := context.Background()
		q := sampleQuote("isolated", time.Now())
		require.NoError(t, db.SaveQuote(ctx, q))
		q.Demand.Billing.ShaveKW = 99

		got, err := db.GetQuote(ctx, "isolated")
		require.NoError(t, err)
		assert.Equal(t, 25.0, got.Demand.Billing.ShaveKW)
	})
}
