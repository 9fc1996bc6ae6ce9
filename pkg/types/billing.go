package types

// BillingConvention defines how a utility turns measured demand into billed
// demand units.
type BillingConvention string

const (
	// BillingApparentPower bills on kVA.
	BillingApparentPower BillingConvention = "apparent_power"
	// BillingRealPower bills on kW.
	BillingRealPower BillingConvention = "real_power"
	// BillingMaxRealOrApparent bills on max(kW, 0.9 × kVA).
	BillingMaxRealOrApparent BillingConvention = "max_real_or_apparent"
)

// ApparentPowerBillingFactor is the fraction of kVA compared against kW under
// BillingMaxRealOrApparent.
const ApparentPowerBillingFactor = 0.9

// Valid reports whether c is a known convention.
func (c BillingConvention) Valid() bool {
	switch c {
	case BillingApparentPower, BillingRealPower, BillingMaxRealOrApparent:
		return true
	}
	return false
}

// PowerUnit is the unit a demand measurement was recorded in.
type PowerUnit string

const (
	UnitKW  PowerUnit = "kW"
	UnitKVA PowerUnit = "kVA"
)

// DemandMeasurement is a measured peak tagged with its unit so that a kVA
// reading is never mistaken for kW.
type DemandMeasurement struct {
	Unit  PowerUnit `json:"unit"`
	Value float64   `json:"value"`
}

// BillingState is the demand and cost for one billing cycle at a given power
// factor.
type BillingState struct {
	RealPowerKW      float64 `json:"realPowerKW"`
	ApparentPowerKVA float64 `json:"apparentPowerKVA"`
	PowerFactor      float64 `json:"powerFactor"`
	BilledDemand     float64 `json:"billedDemand"`
	MonthlyCost      float64 `json:"monthlyCost"`
}

// DemandBillingInput configures a three-stage demand billing simulation.
type DemandBillingInput struct {
	Convention BillingConvention `json:"convention"`
	// RatePerUnit is dollars per billed unit per 30-day cycle.
	RatePerUnit  float64           `json:"ratePerUnit"`
	MeasuredPeak DemandMeasurement `json:"measuredPeak"`

	CurrentPowerFactor float64 `json:"currentPowerFactor"`
	TargetPowerFactor  float64 `json:"targetPowerFactor"`

	// TargetCapKW, when set, derives the shave from the post-correction kW.
	// Otherwise ShaveKW is used as given.
	TargetCapKW *float64 `json:"targetCapKW,omitempty"`
	ShaveKW     float64  `json:"shaveKW"`

	PeakDurationMinutes float64 `json:"peakDurationMinutes"`
}

// DemandBillingResult holds the three billing states of a simulation.
type DemandBillingResult struct {
	Convention   BillingConvention `json:"convention"`
	Before       BillingState      `json:"before"`
	AfterPF      BillingState      `json:"afterPF"`
	AfterPFShave BillingState      `json:"afterPFShave"`

	ShaveKW             float64 `json:"shaveKW"`
	PeakDurationMinutes float64 `json:"peakDurationMinutes"`

	MonthlyPFSavings    float64 `json:"monthlyPFSavings"`
	MonthlyShaveSavings float64 `json:"monthlyShaveSavings"`
	MonthlySavings      float64 `json:"monthlySavings"`
	AnnualSavings       float64 `json:"annualSavings"`
}
