package battery

import (
	"math"

	"github.com/raterudder/solarsavings/pkg/types"
)

// Size returns the smallest battery that can deliver in.ShaveKW for the whole
// peak. The nameplate must satisfy both the energy needed to ride out the peak
// and the energy implied by the c-rate limit at that power, each derated by
// efficiency and depth of discharge.
func Size(in types.BatterySizingInput) (types.BatterySizingResult, error) {
	if err := Validate(in); err != nil {
		return types.BatterySizingResult{}, err
	}

	energyNeeded := in.ShaveKW * (in.PeakDurationMinutes / 60)
	powerImplied := in.ShaveKW / in.CRate
	derate := in.RoundTripEfficiency * in.DepthOfDischarge

	// a tie is energy-dominated
	regime := types.RegimeEnergyDominated
	if powerImplied > energyNeeded {
		regime = types.RegimePowerDominated
	}

	return types.BatterySizingResult{
		NameplateKWH:          math.Max(energyNeeded/derate, powerImplied/derate),
		InverterKW:            in.ShaveKW,
		Regime:                regime,
		EnergyNeededKWH:       energyNeeded,
		PowerImpliedEnergyKWH: powerImplied,
	}, nil
}

// Validate checks a sizing input.
func Validate(in types.BatterySizingInput) error {
	if !(in.ShaveKW >= 0) || math.IsInf(in.ShaveKW, 0) {
		return types.Invalid("shaveKW", "must be a non-negative number, got %g", in.ShaveKW)
	}
	if !(in.PeakDurationMinutes >= 0) || math.IsInf(in.PeakDurationMinutes, 0) {
		return types.Invalid("peakDurationMinutes", "must be a non-negative number, got %g", in.PeakDurationMinutes)
	}
	if !(in.CRate > 0) || math.IsInf(in.CRate, 0) {
		return types.Invalid("cRate", "must be > 0, got %g", in.CRate)
	}
	if !fraction(in.RoundTripEfficiency) {
		return types.Invalid("roundTripEfficiency", "must be within (0, 1], got %g", in.RoundTripEfficiency)
	}
	if !fraction(in.DepthOfDischarge) {
		return types.Invalid("depthOfDischarge", "must be within (0, 1], got %g", in.DepthOfDischarge)
	}
	return nil
}

func fraction(v float64) bool {
	return v > 0 && v <= 1
}
