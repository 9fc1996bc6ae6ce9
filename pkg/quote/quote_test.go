package quote

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/solarsavings/pkg/tou"
	"github.com/raterudder/solarsavings/pkg/types"
)

func ptr(v float64) *float64 {
	return &v
}

type stubEstimator struct {
	est   types.ProductionEstimate
	err   error
	calls int
}

func (s *stubEstimator) Estimate(ctx context.Context, req types.ProductionRequest) (types.ProductionEstimate, error) {
	s.calls++
	return s.est, s.err
}

func newTestCalculator(t *testing.T, est *stubEstimator) *Calculator {
	a, err := tou.NewAllocator(tou.DefaultSchedule())
	require.NoError(t, err)
	if est == nil {
		return NewCalculator(nil, a)
	}
	return NewCalculator(est, a)
}

func demandRequest() types.DemandQuoteRequest {
	return types.DemandQuoteRequest{
		Billing: types.DemandBillingInput{
			Convention:          types.BillingMaxRealOrApparent,
			RatePerUnit:         15,
			MeasuredPeak:        types.DemandMeasurement{Unit: types.UnitKVA, Value: 500},
			CurrentPowerFactor:  0.85,
			TargetPowerFactor:   0.95,
			TargetCapKW:         ptr(400),
			PeakDurationMinutes: 60,
		},
		Battery: types.BatteryParams{
			CRate:               0.5,
			RoundTripEfficiency: 0.9,
			DepthOfDischarge:    0.9,
		},
		Rebate: types.RebateTerms{RatePerKW: 200},
		Cost: types.InstallCost{
			BatteryDollarsPerKWH: 500,
			InverterDollarsPerKW: 300,
		},
		Economics: types.ProjectionTerms{Years: 10},
	}
}

func TestCalculateDemand(t *testing.T) {
	c := newTestCalculator(t, nil)

	t.Run("Measured Peak", func(t *testing.T) {
		q, err := c.CalculateDemand(context.Background(), nil, demandRequest())
		require.NoError(t, err)

		assert.Nil(t, q.Series)
		assert.InDelta(t, 25.0, q.Billing.ShaveKW, 1e-9)
		assert.InDelta(t, 9000.0, q.Billing.AnnualSavings, 1e-9)

		assert.Equal(t, types.RegimePowerDominated, q.Battery.Regime)
		assert.InDelta(t, 50/0.81, q.Battery.NameplateKWH, 1e-9)
		assert.InDelta(t, 25.0, q.Battery.InverterKW, 1e-9)

		installed := 50/0.81*500 + 25*300
		assert.InDelta(t, installed, q.InstalledCost, 1e-6)
		assert.InDelta(t, 5000.0, q.Rebate.RebateFinal, 1e-9)
		assert.InDelta(t, installed-5000, q.Rebate.NetInstalledCost, 1e-6)

		assert.InDelta(t, (installed-5000)/9000, q.Economics.PaybackYears, 1e-9)
		assert.Len(t, q.Economics.YearlySeries, 10)
	})

	t.Run("Series Overrides Peak", func(t *testing.T) {
		series := &types.ParsedSeries{
			IntervalMinutes:            15,
			PeakKW:                     200,
			BaseLoadKW:                 30,
			TypicalPeakDurationMinutes: 90,
		}
		req := demandRequest()
		req.Billing.Convention = types.BillingRealPower
		req.Billing.CurrentPowerFactor = 0.9
		req.Billing.TargetPowerFactor = 0.9
		req.Billing.TargetCapKW = ptr(150)
		req.Battery.CRate = 1
		req.Cost = types.InstallCost{InstalledCostTotal: 60000}
		req.Rebate = types.RebateTerms{
			RatePerKW:          1000,
			AbsoluteCapDollars: ptr(20000),
			EligibleKW:         ptr(40),
		}

		q, err := c.CalculateDemand(context.Background(), series, req)
		require.NoError(t, err)
		assert.Same(t, series, q.Series)
		assert.InDelta(t, 200.0, q.Billing.Before.RealPowerKW, 1e-9)
		assert.InDelta(t, 50.0, q.Billing.ShaveKW, 1e-9)
		assert.InDelta(t, 90.0, q.Billing.PeakDurationMinutes, 1e-9)
		// 50 kW for 90 minutes outweighs 50 kWh at 1C
		assert.Equal(t, types.RegimeEnergyDominated, q.Battery.Regime)
		assert.InDelta(t, 75/0.81, q.Battery.NameplateKWH, 1e-9)
		assert.Equal(t, 60000.0, q.InstalledCost)
		assert.InDelta(t, 40000.0, q.Rebate.BaseRebate, 1e-9)
		assert.InDelta(t, 20000.0, q.Rebate.RebateFinal, 1e-9)
		assert.InDelta(t, 40000.0, q.Rebate.NetInstalledCost, 1e-9)
		assert.InDelta(t, 50*15*12.0, q.Billing.AnnualSavings, 1e-9)
	})

	t.Run("Fails Fast", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(r *types.DemandQuoteRequest)
			check  func(t *testing.T, err error)
		}{
			{"Bad PF", func(r *types.DemandQuoteRequest) { r.Billing.TargetPowerFactor = 0.8 }, isValidation("targetPowerFactor")},
			{"Bad Battery", func(r *types.DemandQuoteRequest) { r.Battery.CRate = 0 }, isValidation("cRate")},
			{"Bad Cost", func(r *types.DemandQuoteRequest) { r.Cost.BatteryDollarsPerKWH = -1 }, isValidation("cost.batteryDollarsPerKWH")},
			{"Bad Years", func(r *types.DemandQuoteRequest) { r.Economics.Years = -1 }, isValidation("years")},
			{"Years Beyond Horizon", func(r *types.DemandQuoteRequest) { r.Economics.Years = 1 << 30 }, isValidation("years")},
			{"Shave Too Large", func(r *types.DemandQuoteRequest) {
				r.Billing.TargetCapKW = nil
				r.Billing.ShaveKW = 1000
			}, isValidation("shaveKW")},
			{"Missing Solar Cost", func(r *types.DemandQuoteRequest) { r.Rebate.CapAtHalfSolarCost = true }, func(t *testing.T, err error) {
				var cerr *types.ConfigurationError
				require.True(t, errors.As(err, &cerr), "expected a ConfigurationError, got %v", err)
			}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := demandRequest()
				tt.mutate(&req)
				q, err := c.CalculateDemand(context.Background(), nil, req)
				tt.check(t, err)
				assert.Equal(t, types.DemandQuote{}, q)
			})
		}
	})
}

func isValidation(field string) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		var verr *types.ValidationError
		require.True(t, errors.As(err, &verr), "expected a ValidationError, got %v", err)
		assert.Equal(t, field, verr.Field)
	}
}

func TestCalculateResidential(t *testing.T) {
	t.Run("Provided Production", func(t *testing.T) {
		stub := &stubEstimator{}
		c := newTestCalculator(t, stub)
		q, err := c.CalculateResidential(context.Background(), types.ResidentialQuoteRequest{
			AnnualConsumptionKWH:     12000,
			AnnualSolarProductionKWH: 9000,
			BatteryNameplateKWH:      13.5,
			DepthOfDischarge:         0.9,
			InstalledCostTotal:       23760,
			Economics:                types.ProjectionTerms{Years: 25, Escalator: 0.02},
		})
		require.NoError(t, err)
		assert.Zero(t, stub.calls)
		assert.Equal(t, types.ProductionSourceProvided, q.Production.Source)
		assert.InDelta(t, 1188.0, q.Allocation.SavingsDollars, 1e-9)
		assert.InDelta(t, 5.0, q.Economics.ROIYear1Percent, 1e-9)
		assert.InDelta(t, 20.0, q.Economics.PaybackYears, 1e-9)
		assert.Len(t, q.Economics.YearlySeries, 25)
	})

	t.Run("Estimated Production", func(t *testing.T) {
		stub := &stubEstimator{est: types.ProductionEstimate{AnnualKWH: 2000, Source: types.ProductionSourcePVWatts}}
		c := newTestCalculator(t, stub)
		q, err := c.CalculateResidential(context.Background(), types.ResidentialQuoteRequest{
			AnnualConsumptionKWH: 12000,
			Production: &types.ProductionRequest{
				Latitude:         43.65,
				Longitude:        -79.38,
				SystemCapacityKW: 2,
				TiltDegrees:      30,
				AzimuthDegrees:   180,
			},
			InstalledCostTotal: 5000,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, stub.calls)
		assert.Equal(t, types.ProductionSourcePVWatts, q.Production.Source)
		assert.InDelta(t, 2000.0, q.Allocation.TotalOffsetKWH, 1e-9)
	})

	t.Run("Estimator Down", func(t *testing.T) {
		stub := &stubEstimator{err: errors.New("unavailable")}
		c := newTestCalculator(t, stub)
		q, err := c.CalculateResidential(context.Background(), types.ResidentialQuoteRequest{
			AnnualConsumptionKWH: 12000,
			Production: &types.ProductionRequest{
				Latitude:         43.65,
				Longitude:        -79.38,
				SystemCapacityKW: 5,
				AzimuthDegrees:   180,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, types.ProductionSourceFallback, q.Production.Source)
		assert.InDelta(t, 6000.0, q.Production.AnnualKWH, 1e-9)
	})

	t.Run("Invalid Before Estimating", func(t *testing.T) {
		stub := &stubEstimator{}
		c := newTestCalculator(t, stub)
		_, err := c.CalculateResidential(context.Background(), types.ResidentialQuoteRequest{
			AnnualConsumptionKWH: 12000,
			DepthOfDischarge:     2,
			Production: &types.ProductionRequest{
				SystemCapacityKW: 5,
			},
		})
		isValidation("depthOfDischarge")(t, err)
		assert.Zero(t, stub.calls)
	})

	t.Run("Invalid Production Request", func(t *testing.T) {
		stub := &stubEstimator{}
		c := newTestCalculator(t, stub)
		_, err := c.CalculateResidential(context.Background(), types.ResidentialQuoteRequest{
			AnnualConsumptionKWH: 12000,
			Production:           &types.ProductionRequest{Latitude: 95, SystemCapacityKW: 5},
		})
		isValidation("latitude")(t, err)
		assert.Zero(t, stub.calls)
	})
}
