package economics

import (
	"math"

	"github.com/raterudder/solarsavings/pkg/types"
)

// MaxProjectionYears bounds the length of a projection.
const MaxProjectionYears = 100

// Project builds a yearly savings series that grows by the escalator each year
// and derives first year ROI, simple payback and the breakeven year from it.
func Project(in types.EconomicsInput) (types.EconomicsResult, error) {
	if err := Validate(in); err != nil {
		return types.EconomicsResult{}, err
	}
	years := in.Years
	if years == 0 {
		years = types.DefaultProjectionYears
	}

	res := types.EconomicsResult{
		PaybackYears: math.Inf(1),
		YearlySeries: make([]types.YearlySavings, 0, years),
	}
	if in.NetInstalledCost > 0 {
		res.ROIYear1Percent = in.AnnualSavings / in.NetInstalledCost * 100
	}
	if in.AnnualSavings > 0 {
		res.PaybackYears = in.NetInstalledCost / in.AnnualSavings
	}

	var cumulative float64
	for year := 1; year <= years; year++ {
		annual := in.AnnualSavings * math.Pow(1+in.Escalator, float64(year-1))
		cumulative += annual
		res.YearlySeries = append(res.YearlySeries, types.YearlySavings{
			Year:              year,
			AnnualSavings:     annual,
			CumulativeSavings: cumulative,
		})
		if res.BreakevenYear == 0 && in.AnnualSavings > 0 && cumulative >= in.NetInstalledCost {
			res.BreakevenYear = year
		}
	}
	res.LifetimeSavings = cumulative
	return res, nil
}

// Validate checks a projection input.
func Validate(in types.EconomicsInput) error {
	if math.IsNaN(in.AnnualSavings) || math.IsInf(in.AnnualSavings, 0) {
		return types.Invalid("annualSavings", "must be a finite number")
	}
	if math.IsNaN(in.NetInstalledCost) || math.IsInf(in.NetInstalledCost, 0) {
		return types.Invalid("netInstalledCost", "must be a finite number")
	}
	if in.Years < 0 || in.Years > MaxProjectionYears {
		return types.Invalid("years", "must be within [0, %d], got %d", MaxProjectionYears, in.Years)
	}
	if !(in.Escalator > -1) || math.IsInf(in.Escalator, 0) {
		return types.Invalid("escalator", "must be > -1, got %g", in.Escalator)
	}
	return nil
}
