package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/solarsavings/pkg/ingest"
	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/quote"
	"github.com/raterudder/solarsavings/pkg/storage"
	"github.com/raterudder/solarsavings/pkg/tou"
	"github.com/raterudder/solarsavings/pkg/types"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	count := 12
	lflag.JSON(&count, "seed-count", count, "Number of quotes of each kind to seed")
	s := storage.Configured()
	// residential quotes always carry an explicit production total, so no
	// estimator is needed
	c := quote.NewCalculator(nil, tou.Configured())
	lflag.Configure()

	ctx := context.Background()
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock quotes")

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		// spread quotes over the admin listing's default window
		createdAt := now.Add(-time.Duration(rng.Int63n(int64(29 * 24 * time.Hour))))

		series := syntheticDay(rng, createdAt.Truncate(24*time.Hour))
		capKW := math.Round(series.PeakKW * (0.7 + rng.Float64()*0.2))
		demand, err := c.CalculateDemand(ctx, &series, types.DemandQuoteRequest{
			Billing: types.DemandBillingInput{
				Convention:         types.BillingMaxRealOrApparent,
				RatePerUnit:        12 + rng.Float64()*8,
				CurrentPowerFactor: 0.8 + rng.Float64()*0.1,
				TargetPowerFactor:  0.95,
				TargetCapKW:        &capKW,
			},
			Battery: types.BatteryParams{CRate: 0.5, RoundTripEfficiency: 0.9, DepthOfDischarge: 0.9},
			Rebate:  types.RebateTerms{RatePerKW: 200},
			Cost:    types.InstallCost{BatteryDollarsPerKWH: 450, InverterDollarsPerKW: 250},
		})
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to calculate demand quote", "error", err)
			os.Exit(1)
		}
		demand.Series.Readings = nil
		seedQuote(ctx, s, types.Quote{
			ID:        uuid.NewString(),
			Kind:      types.QuoteKindDemand,
			CreatedAt: createdAt,
			Demand:    &demand,
		})
		fmt.Printf("Seeded demand quote at %s: peak %.0fkW, cap %.0fkW, $%.0f/yr\n",
			createdAt.Format(time.DateTime), series.PeakKW, capKW, demand.Billing.AnnualSavings)

		consumption := 8000 + rng.Float64()*8000
		residential, err := c.CalculateResidential(ctx, types.ResidentialQuoteRequest{
			AnnualConsumptionKWH:     consumption,
			AnnualSolarProductionKWH: consumption * (0.5 + rng.Float64()*0.4),
			BatteryNameplateKWH:      13.5 * float64(1+rng.Intn(2)),
			DepthOfDischarge:         0.9,
			InstalledCostTotal:       20000 + rng.Float64()*15000,
			Economics:                types.ProjectionTerms{Escalator: 0.02},
		})
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to calculate residential quote", "error", err)
			os.Exit(1)
		}
		seedQuote(ctx, s, types.Quote{
			ID:          uuid.NewString(),
			Kind:        types.QuoteKindResidential,
			CreatedAt:   createdAt.Add(time.Minute),
			Residential: &residential,
		})
		fmt.Printf("Seeded residential quote at %s: %.0fkWh, $%.0f/yr\n",
			createdAt.Format(time.DateTime), consumption, residential.Allocation.SavingsDollars)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock quotes successfully")
}

func seedQuote(ctx context.Context, s storage.Database, q types.Quote) {
	if err := s.SaveQuote(ctx, q); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed quote", "error", err, "id", q.ID)
		os.Exit(1)
	}
}

// syntheticDay builds a commercial load profile: a flat base with an
// afternoon bump whose height and width vary per site.
func syntheticDay(rng *rand.Rand, day time.Time) types.ParsedSeries {
	base := 40 + rng.Float64()*40
	peak := base + 100 + rng.Float64()*200
	center := 13 + rng.Float64()*3
	width := 1 + rng.Float64()*2

	readings := make([]types.IntervalReading, 0, 96)
	for t := day; t.Before(day.Add(24 * time.Hour)); t = t.Add(15 * time.Minute) {
		hour := float64(t.Hour()) + float64(t.Minute())/60
		dist := (hour - center) / width
		kw := base + (peak-base)*math.Exp(-dist*dist) + rng.Float64()*5
		readings = append(readings, types.IntervalReading{Timestamp: t, PowerKW: kw})
	}
	return ingest.Analyze(readings, 15*time.Minute)
}
