package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/solarsavings/pkg/types"
)

func ptr(v float64) *float64 {
	return &v
}

func TestComputeState(t *testing.T) {
	t.Run("Apparent Power", func(t *testing.T) {
		s := ComputeState(types.BillingApparentPower, 10, 90, 0.9)
		assert.InDelta(t, 100.0, s.ApparentPowerKVA, 1e-9)
		assert.InDelta(t, 100.0, s.BilledDemand, 1e-9)
		assert.InDelta(t, 1000.0, s.MonthlyCost, 1e-9)
	})

	t.Run("Real Power", func(t *testing.T) {
		s := ComputeState(types.BillingRealPower, 10, 90, 0.9)
		assert.InDelta(t, 90.0, s.BilledDemand, 1e-9)
		assert.InDelta(t, 900.0, s.MonthlyCost, 1e-9)
	})

	t.Run("Max Picks Apparent", func(t *testing.T) {
		// 0.9 * 100/0.6 = 150 > 100
		s := ComputeState(types.BillingMaxRealOrApparent, 1, 100, 0.6)
		assert.InDelta(t, 150.0, s.BilledDemand, 1e-9)
	})
}

func TestSimulate_MaxConventionScenario(t *testing.T) {
	in := types.DemandBillingInput{
		Convention:         types.BillingMaxRealOrApparent,
		RatePerUnit:        15,
		MeasuredPeak:       types.DemandMeasurement{Unit: types.UnitKVA, Value: 500},
		CurrentPowerFactor: 0.85,
		TargetPowerFactor:  0.95,
		TargetCapKW:        ptr(400),
	}
	res, err := Simulate(in)
	require.NoError(t, err)

	assert.InDelta(t, 425.0, res.Before.RealPowerKW, 1e-9)
	assert.InDelta(t, 500.0, res.Before.ApparentPowerKVA, 1e-9)
	assert.InDelta(t, 450.0, res.Before.BilledDemand, 1e-9)
	assert.InDelta(t, 6750.0, res.Before.MonthlyCost, 1e-9)

	assert.InDelta(t, 425.0, res.AfterPF.RealPowerKW, 1e-9)
	assert.InDelta(t, 447.368, res.AfterPF.ApparentPowerKVA, 1e-3)
	// 0.9 * 447.4 = 402.6 so kW dominates
	assert.InDelta(t, 425.0, res.AfterPF.BilledDemand, 1e-9)
	assert.InDelta(t, 6375.0, res.AfterPF.MonthlyCost, 1e-9)

	assert.InDelta(t, 25.0, res.ShaveKW, 1e-9)
	assert.InDelta(t, 400.0, res.AfterPFShave.RealPowerKW, 1e-9)
	assert.InDelta(t, 400.0, res.AfterPFShave.BilledDemand, 1e-9)
	assert.InDelta(t, 6000.0, res.AfterPFShave.MonthlyCost, 1e-9)

	assert.InDelta(t, 375.0, res.MonthlyPFSavings, 1e-9)
	assert.InDelta(t, 375.0, res.MonthlyShaveSavings, 1e-9)
	assert.InDelta(t, 750.0, res.MonthlySavings, 1e-9)
	assert.InDelta(t, 9000.0, res.AnnualSavings, 1e-9)
}

func TestSimulate_ShaveSelection(t *testing.T) {
	base := types.DemandBillingInput{
		Convention:         types.BillingRealPower,
		RatePerUnit:        20,
		MeasuredPeak:       types.DemandMeasurement{Unit: types.UnitKW, Value: 300},
		CurrentPowerFactor: 0.9,
		TargetPowerFactor:  0.9,
	}

	t.Run("Explicit Shave", func(t *testing.T) {
		in := base
		in.ShaveKW = 50
		res, err := Simulate(in)
		require.NoError(t, err)
		assert.InDelta(t, 250.0, res.AfterPFShave.RealPowerKW, 1e-9)
		assert.InDelta(t, 12000.0, res.AnnualSavings, 1e-9)
	})

	t.Run("Cap Above Peak Means No Shave", func(t *testing.T) {
		in := base
		in.TargetCapKW = ptr(350)
		res, err := Simulate(in)
		require.NoError(t, err)
		assert.Zero(t, res.ShaveKW)
		assert.Zero(t, res.MonthlySavings)
	})

	t.Run("Cap Wins Over Explicit Shave", func(t *testing.T) {
		in := base
		in.ShaveKW = 10
		in.TargetCapKW = ptr(200)
		res, err := Simulate(in)
		require.NoError(t, err)
		assert.InDelta(t, 100.0, res.ShaveKW, 1e-9)
	})

	t.Run("Shave Entire Peak", func(t *testing.T) {
		in := base
		in.ShaveKW = 300
		res, err := Simulate(in)
		require.NoError(t, err)
		assert.Zero(t, res.AfterPFShave.RealPowerKW)
	})
}

func TestSimulate_Validation(t *testing.T) {
	valid := types.DemandBillingInput{
		Convention:         types.BillingApparentPower,
		RatePerUnit:        10,
		MeasuredPeak:       types.DemandMeasurement{Unit: types.UnitKVA, Value: 100},
		CurrentPowerFactor: 0.8,
		TargetPowerFactor:  0.95,
	}
	_, err := Simulate(valid)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(in *types.DemandBillingInput)
		field  string
	}{
		{"Target Below Current", func(in *types.DemandBillingInput) { in.TargetPowerFactor = 0.7 }, "targetPowerFactor"},
		{"Target Above One", func(in *types.DemandBillingInput) { in.TargetPowerFactor = 1.01 }, "targetPowerFactor"},
		{"Current Below Half", func(in *types.DemandBillingInput) { in.CurrentPowerFactor = 0.4 }, "currentPowerFactor"},
		{"Zero Rate", func(in *types.DemandBillingInput) { in.RatePerUnit = 0 }, "ratePerUnit"},
		{"Negative Rate", func(in *types.DemandBillingInput) { in.RatePerUnit = -1 }, "ratePerUnit"},
		{"Shave Above Peak", func(in *types.DemandBillingInput) { in.ShaveKW = 81 }, "shaveKW"},
		{"Negative Shave", func(in *types.DemandBillingInput) { in.ShaveKW = -1 }, "shaveKW"},
		{"Negative Cap", func(in *types.DemandBillingInput) { in.TargetCapKW = ptr(-1) }, "targetCapKW"},
		{"Unknown Convention", func(in *types.DemandBillingInput) { in.Convention = "peak" }, "convention"},
		{"Unknown Unit", func(in *types.DemandBillingInput) { in.MeasuredPeak.Unit = "MW" }, "measuredPeak.unit"},
		{"Negative Peak", func(in *types.DemandBillingInput) { in.MeasuredPeak.Value = -5 }, "measuredPeak.value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			res, err := Simulate(in)
			var verr *types.ValidationError
			require.True(t, errors.As(err, &verr), "expected a ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, types.DemandBillingResult{}, res, "no partial result on invalid input")
		})
	}
}

func TestSimulate_Properties(t *testing.T) {
	conventions := []types.BillingConvention{types.BillingApparentPower, types.BillingRealPower, types.BillingMaxRealOrApparent}
	pfs := []float64{0.5, 0.65, 0.8, 0.9, 0.97, 1.0}
	peaks := []types.DemandMeasurement{
		{Unit: types.UnitKW, Value: 0},
		{Unit: types.UnitKW, Value: 120},
		{Unit: types.UnitKVA, Value: 500},
	}
	for _, c := range conventions {
		for _, peak := range peaks {
			for i, current := range pfs {
				for _, target := range pfs[i:] {
					for _, shave := range []float64{0, 10, 1000} {
						in := types.DemandBillingInput{
							Convention:         c,
							RatePerUnit:        12.5,
							MeasuredPeak:       peak,
							CurrentPowerFactor: current,
							TargetPowerFactor:  target,
							ShaveKW:            shave,
						}
						res, err := Simulate(in)
						if err != nil {
							// only an oversized shave may fail
							var verr *types.ValidationError
							require.True(t, errors.As(err, &verr))
							require.Equal(t, "shaveKW", verr.Field)
							continue
						}
						assert.Equal(t, res.Before.RealPowerKW, res.AfterPF.RealPowerKW)
						assert.LessOrEqual(t, res.AfterPF.ApparentPowerKVA, res.Before.ApparentPowerKVA+1e-9)
						assert.GreaterOrEqual(t, res.AfterPFShave.RealPowerKW, 0.0)
						assert.LessOrEqual(t, res.ShaveKW, res.AfterPF.RealPowerKW)
						assert.InDelta(t, res.MonthlySavings*12, res.AnnualSavings, 1e-9)
					}
				}
			}
		}
	}
}
