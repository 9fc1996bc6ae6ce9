package types

// RebateInput configures a capped per-kW incentive.
type RebateInput struct {
	EligibleKW float64 `json:"eligibleKW"`
	RatePerKW  float64 `json:"ratePerKW"`
	// AbsoluteCapDollars limits the rebate. nil means uncapped.
	AbsoluteCapDollars *float64 `json:"absoluteCapDollars,omitempty"`

	// CapAtHalfSolarCost limits the rebate to half of SolarOnlyCostDollars,
	// which is then required.
	CapAtHalfSolarCost   bool     `json:"capAtHalfSolarCost"`
	SolarOnlyCostDollars *float64 `json:"solarOnlyCostDollars,omitempty"`

	InstalledCostTotal float64 `json:"installedCostTotal"`
}

// RebateBreakdown shows each stage of the rebate calculation. RebateFinal is
// never more than RebateAfterCap which is never more than BaseRebate.
type RebateBreakdown struct {
	BaseRebate       float64 `json:"baseRebate"`
	RebateAfterCap   float64 `json:"rebateAfterCap"`
	RebateFinal      float64 `json:"rebateFinal"`
	NetInstalledCost float64 `json:"netInstalledCost"`
}
