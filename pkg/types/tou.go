package types

// TOUPeriod is one price bucket of a time-of-use tariff.
type TOUPeriod struct {
	Name          string  `json:"name" yaml:"name"`
	DollarsPerKWH float64 `json:"dollarsPerKWH" yaml:"dollars_per_kwh"`
	// UsageShare is the fraction of annual consumption that falls in this
	// period. Shares across a schedule sum to 1.
	UsageShare float64 `json:"usageShare" yaml:"usage_share"`
}

// TOUSchedule is a set of time-of-use periods for a jurisdiction.
type TOUSchedule struct {
	Name    string      `json:"name" yaml:"name"`
	Periods []TOUPeriod `json:"periods" yaml:"periods"`
}

// TOUAllocationInput is the annual energy picture for a household.
type TOUAllocationInput struct {
	AnnualConsumptionKWH     float64 `json:"annualConsumptionKWH"`
	AnnualSolarProductionKWH float64 `json:"annualSolarProductionKWH"`
	BatteryNameplateKWH      float64 `json:"batteryNameplateKWH"`
	DepthOfDischarge         float64 `json:"depthOfDischarge"`
}

// TOUPeriodResult is the before and after picture for one period.
type TOUPeriodResult struct {
	Name            string  `json:"name"`
	DollarsPerKWH   float64 `json:"dollarsPerKWH"`
	PreUsageKWH     float64 `json:"preUsageKWH"`
	PreCostDollars  float64 `json:"preCostDollars"`
	OffsetKWH       float64 `json:"offsetKWH"`
	PostUsageKWH    float64 `json:"postUsageKWH"`
	PostCostDollars float64 `json:"postCostDollars"`
}

// TOUAllocationResult is the outcome of spreading a solar and battery energy
// budget across a schedule. Periods are in schedule order.
type TOUAllocationResult struct {
	Schedule string            `json:"schedule"`
	Periods  []TOUPeriodResult `json:"periods"`

	PreCostDollars  float64 `json:"preCostDollars"`
	PostCostDollars float64 `json:"postCostDollars"`
	SavingsDollars  float64 `json:"savingsDollars"`
	PercentSaved    float64 `json:"percentSaved"`

	BatteryAnnualThroughputKWH float64 `json:"batteryAnnualThroughputKWH"`
	OffsetBudgetKWH            float64 `json:"offsetBudgetKWH"`
	TotalOffsetKWH             float64 `json:"totalOffsetKWH"`
	UnusedBudgetKWH            float64 `json:"unusedBudgetKWH"`

	// SolarUsedKWH and BatteryUsedKWH split TotalOffsetKWH by aggregate
	// totals only. They are not the result of an hourly dispatch.
	SolarUsedKWH   float64 `json:"solarUsedKWH"`
	BatteryUsedKWH float64 `json:"batteryUsedKWH"`
}
