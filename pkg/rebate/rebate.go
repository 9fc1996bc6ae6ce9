package rebate

import (
	"math"

	"github.com/raterudder/solarsavings/pkg/types"
)

// SolarCostShare is the largest fraction of the solar-only cost a rebate may
// cover when CapAtHalfSolarCost is set.
const SolarCostShare = 0.5

// Calculate applies the per-kW rate, then the absolute cap, then the optional
// solar cost share, and subtracts the result from the installed cost.
func Calculate(in types.RebateInput) (types.RebateBreakdown, error) {
	if err := Validate(in); err != nil {
		return types.RebateBreakdown{}, err
	}

	base := in.EligibleKW * in.RatePerKW
	afterCap := base
	if in.AbsoluteCapDollars != nil {
		afterCap = math.Min(base, *in.AbsoluteCapDollars)
	}
	final := afterCap
	if in.CapAtHalfSolarCost {
		final = math.Min(afterCap, SolarCostShare * *in.SolarOnlyCostDollars)
	}

	return types.RebateBreakdown{
		BaseRebate:       base,
		RebateAfterCap:   afterCap,
		RebateFinal:      final,
		NetInstalledCost: in.InstalledCostTotal - final,
	}, nil
}

// Validate checks a rebate input. A missing solar-only cost is a
// ConfigurationError, anything negative a ValidationError.
func Validate(in types.RebateInput) error {
	if in.CapAtHalfSolarCost && in.SolarOnlyCostDollars == nil {
		return &types.ConfigurationError{
			Field:  "solarOnlyCostDollars",
			Reason: "required when the rebate is capped at half the solar-only cost",
		}
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"eligibleKW", &in.EligibleKW},
		{"ratePerKW", &in.RatePerKW},
		{"absoluteCapDollars", in.AbsoluteCapDollars},
		{"solarOnlyCostDollars", in.SolarOnlyCostDollars},
		{"installedCostTotal", &in.InstalledCostTotal},
	} {
		if f.v == nil {
			continue
		}
		if !(*f.v >= 0) || math.IsInf(*f.v, 0) {
			return types.Invalid(f.name, "must be a non-negative number, got %g", *f.v)
		}
	}
	return nil
}
