package billing

import (
	"math"

	"github.com/raterudder/solarsavings/pkg/types"
)

const (
	minPowerFactor = 0.5
	maxPowerFactor = 1.0
	monthsPerYear  = 12
)

// ComputeState returns the billed demand and monthly cost of drawing kw at
// power factor pf under the given convention. Inputs are assumed validated.
func ComputeState(convention types.BillingConvention, ratePerUnit, kw, pf float64) types.BillingState {
	kva := kw / pf
	var billed float64
	switch convention {
	case types.BillingApparentPower:
		billed = kva
	case types.BillingRealPower:
		billed = kw
	case types.BillingMaxRealOrApparent:
		billed = math.Max(kw, types.ApparentPowerBillingFactor*kva)
	}
	return types.BillingState{
		RealPowerKW:      kw,
		ApparentPowerKVA: kva,
		PowerFactor:      pf,
		BilledDemand:     billed,
		MonthlyCost:      billed * ratePerUnit,
	}
}

// Simulate bills the measured peak three times: as measured, after power
// factor correction and after correction plus peak shaving. All inputs are
// validated before anything is computed.
func Simulate(in types.DemandBillingInput) (types.DemandBillingResult, error) {
	if err := Validate(in); err != nil {
		return types.DemandBillingResult{}, err
	}

	kw0 := in.MeasuredPeak.Value
	if in.MeasuredPeak.Unit == types.UnitKVA {
		kw0 = in.MeasuredPeak.Value * in.CurrentPowerFactor
	}
	before := ComputeState(in.Convention, in.RatePerUnit, kw0, in.CurrentPowerFactor)

	// correction lowers apparent power only, real power is unchanged
	afterPF := ComputeState(in.Convention, in.RatePerUnit, before.RealPowerKW, in.TargetPowerFactor)

	shave := in.ShaveKW
	if in.TargetCapKW != nil {
		shave = math.Max(0, afterPF.RealPowerKW-*in.TargetCapKW)
	}
	if shave > afterPF.RealPowerKW {
		return types.DemandBillingResult{}, types.Invalid("shaveKW", "%g kW exceeds the %g kW peak", shave, afterPF.RealPowerKW)
	}
	afterShave := ComputeState(in.Convention, in.RatePerUnit, afterPF.RealPowerKW-shave, in.TargetPowerFactor)

	monthly := before.MonthlyCost - afterShave.MonthlyCost
	return types.DemandBillingResult{
		Convention:          in.Convention,
		Before:              before,
		AfterPF:             afterPF,
		AfterPFShave:        afterShave,
		ShaveKW:             shave,
		PeakDurationMinutes: in.PeakDurationMinutes,
		MonthlyPFSavings:    before.MonthlyCost - afterPF.MonthlyCost,
		MonthlyShaveSavings: afterPF.MonthlyCost - afterShave.MonthlyCost,
		MonthlySavings:      monthly,
		// flat rate, no seasonal variation
		AnnualSavings: monthly * monthsPerYear,
	}, nil
}

// Validate checks a billing input without simulating it. The shave is only
// checked against the peak by Simulate.
func Validate(in types.DemandBillingInput) error {
	if !in.Convention.Valid() {
		return types.Invalid("convention", "unknown billing convention %q", in.Convention)
	}
	if !(in.RatePerUnit > 0) {
		return types.Invalid("ratePerUnit", "must be > 0, got %g", in.RatePerUnit)
	}
	switch in.MeasuredPeak.Unit {
	case types.UnitKW, types.UnitKVA:
	default:
		return types.Invalid("measuredPeak.unit", "unknown unit %q", in.MeasuredPeak.Unit)
	}
	if !(in.MeasuredPeak.Value >= 0) || math.IsInf(in.MeasuredPeak.Value, 0) {
		return types.Invalid("measuredPeak.value", "must be a non-negative number, got %g", in.MeasuredPeak.Value)
	}
	if !inRange(in.CurrentPowerFactor, minPowerFactor, maxPowerFactor) {
		return types.Invalid("currentPowerFactor", "must be within [%g, %g], got %g", minPowerFactor, maxPowerFactor, in.CurrentPowerFactor)
	}
	if in.TargetPowerFactor > maxPowerFactor {
		return types.Invalid("targetPowerFactor", "must not exceed %g, got %g", maxPowerFactor, in.TargetPowerFactor)
	}
	if in.TargetPowerFactor < in.CurrentPowerFactor {
		return types.Invalid("targetPowerFactor", "%g is below the current power factor %g", in.TargetPowerFactor, in.CurrentPowerFactor)
	}
	if !inRange(in.TargetPowerFactor, minPowerFactor, maxPowerFactor) {
		return types.Invalid("targetPowerFactor", "must be within [%g, %g], got %g", minPowerFactor, maxPowerFactor, in.TargetPowerFactor)
	}
	if in.TargetCapKW != nil && !(*in.TargetCapKW >= 0) {
		return types.Invalid("targetCapKW", "must be >= 0, got %g", *in.TargetCapKW)
	}
	if !(in.ShaveKW >= 0) {
		return types.Invalid("shaveKW", "must be >= 0, got %g", in.ShaveKW)
	}
	if !(in.PeakDurationMinutes >= 0) {
		return types.Invalid("peakDurationMinutes", "must be >= 0, got %g", in.PeakDurationMinutes)
	}
	return nil
}

// inRange also rejects NaN.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}
