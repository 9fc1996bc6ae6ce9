package types

import (
	"encoding/json"
	"math"
)

// DefaultProjectionYears is used when EconomicsInput.Years is 0.
const DefaultProjectionYears = 25

// EconomicsInput configures a multi-year savings projection.
type EconomicsInput struct {
	AnnualSavings    float64 `json:"annualSavings"`
	NetInstalledCost float64 `json:"netInstalledCost"`
	Years            int     `json:"years"`
	// Escalator is the yearly growth in savings, e.g. 0.03 for 3%.
	Escalator float64 `json:"escalator"`
}

// YearlySavings is one year of a projection.
type YearlySavings struct {
	Year              int     `json:"year"`
	AnnualSavings     float64 `json:"annualSavings"`
	CumulativeSavings float64 `json:"cumulativeSavings"`
}

// EconomicsResult is the outcome of a projection.
type EconomicsResult struct {
	ROIYear1Percent float64 `json:"roiYear1Percent"`
	// PaybackYears is +Inf when there are no savings.
	PaybackYears    float64         `json:"paybackYears"`
	BreakevenYear   int             `json:"breakevenYear"`
	LifetimeSavings float64         `json:"lifetimeSavings"`
	YearlySeries    []YearlySavings `json:"yearlySeries"`
}

type economicsResultJSON struct {
	ROIYear1Percent float64         `json:"roiYear1Percent"`
	PaybackYears    *float64        `json:"paybackYears"`
	BreakevenYear   int             `json:"breakevenYear"`
	LifetimeSavings float64         `json:"lifetimeSavings"`
	YearlySeries    []YearlySavings `json:"yearlySeries"`
}

// MarshalJSON encodes an infinite payback as null since JSON has no infinity.
func (r EconomicsResult) MarshalJSON() ([]byte, error) {
	out := economicsResultJSON{
		ROIYear1Percent: r.ROIYear1Percent,
		BreakevenYear:   r.BreakevenYear,
		LifetimeSavings: r.LifetimeSavings,
		YearlySeries:    r.YearlySeries,
	}
	if !math.IsInf(r.PaybackYears, 0) && !math.IsNaN(r.PaybackYears) {
		p := r.PaybackYears
		out.PaybackYears = &p
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null payback back to +Inf.
func (r *EconomicsResult) UnmarshalJSON(b []byte) error {
	var in economicsResultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = EconomicsResult{
		ROIYear1Percent: in.ROIYear1Percent,
		PaybackYears:    math.Inf(1),
		BreakevenYear:   in.BreakevenYear,
		LifetimeSavings: in.LifetimeSavings,
		YearlySeries:    in.YearlySeries,
	}
	if in.PaybackYears != nil {
		r.PaybackYears = *in.PaybackYears
	}
	return nil
}
