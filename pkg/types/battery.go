package types

// SizingRegime names the constraint that determined a battery's nameplate.
type SizingRegime string

const (
	// RegimePowerDominated means a short, intense peak: the c-rate limit sets
	// the size.
	RegimePowerDominated SizingRegime = "power-dominated"
	// RegimeEnergyDominated means a long peak: the energy to ride it out sets
	// the size.
	RegimeEnergyDominated SizingRegime = "energy-dominated"
)

// BatterySizingInput describes the shave a battery must deliver.
type BatterySizingInput struct {
	ShaveKW             float64 `json:"shaveKW"`
	PeakDurationMinutes float64 `json:"peakDurationMinutes"`
	// CRate is the rated power-to-energy ratio (kW per kWh).
	CRate               float64 `json:"cRate"`
	RoundTripEfficiency float64 `json:"roundTripEfficiency"`
	DepthOfDischarge    float64 `json:"depthOfDischarge"`
}

// BatterySizingResult is the minimum battery that delivers the shave.
type BatterySizingResult struct {
	NameplateKWH float64      `json:"nameplateKWH"`
	InverterKW   float64      `json:"inverterKW"`
	Regime       SizingRegime `json:"regime"`

	EnergyNeededKWH       float64 `json:"energyNeededKWH"`
	PowerImpliedEnergyKWH float64 `json:"powerImpliedEnergyKWH"`
}
