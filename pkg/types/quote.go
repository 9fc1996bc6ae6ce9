package types

import "time"

// BatteryParams are the technology characteristics used to size a battery.
type BatteryParams struct {
	CRate               float64 `json:"cRate"`
	RoundTripEfficiency float64 `json:"roundTripEfficiency"`
	DepthOfDischarge    float64 `json:"depthOfDischarge"`
}

// RebateTerms are the incentive program terms for a quote. The eligible kW
// defaults to the sized inverter kW when EligibleKW is nil.
type RebateTerms struct {
	RatePerKW            float64  `json:"ratePerKW"`
	AbsoluteCapDollars   *float64 `json:"absoluteCapDollars,omitempty"`
	CapAtHalfSolarCost   bool     `json:"capAtHalfSolarCost"`
	SolarOnlyCostDollars *float64 `json:"solarOnlyCostDollars,omitempty"`
	EligibleKW           *float64 `json:"eligibleKW,omitempty"`
}

// InstallCost is either an explicit total or unit prices used to estimate one.
type InstallCost struct {
	InstalledCostTotal   float64 `json:"installedCostTotal"`
	BatteryDollarsPerKWH float64 `json:"batteryDollarsPerKWH"`
	InverterDollarsPerKW float64 `json:"inverterDollarsPerKW"`
}

// ProjectionTerms configure the economics projection of a quote.
type ProjectionTerms struct {
	Years     int     `json:"years"`
	Escalator float64 `json:"escalator"`
}

// DemandQuoteRequest is everything needed to quote a commercial peak-shaving
// battery. When an interval series accompanies the request, its peak and
// typical peak duration replace Billing.MeasuredPeak and
// Billing.PeakDurationMinutes.
type DemandQuoteRequest struct {
	Billing   DemandBillingInput `json:"billing"`
	Battery   BatteryParams      `json:"battery"`
	Rebate    RebateTerms        `json:"rebate"`
	Cost      InstallCost        `json:"cost"`
	Economics ProjectionTerms    `json:"economics"`
}

// DemandQuote is the combined output of billing, sizing, rebate and economics.
type DemandQuote struct {
	Series        *ParsedSeries       `json:"series,omitempty"`
	Billing       DemandBillingResult `json:"billing"`
	Battery       BatterySizingResult `json:"battery"`
	InstalledCost float64             `json:"installedCost"`
	Rebate        RebateBreakdown     `json:"rebate"`
	Economics     EconomicsResult     `json:"economics"`
}

// ResidentialQuoteRequest is everything needed to quote a home solar and
// battery system on a time-of-use tariff. When AnnualSolarProductionKWH is 0,
// Production is used to estimate it.
type ResidentialQuoteRequest struct {
	AnnualConsumptionKWH     float64            `json:"annualConsumptionKWH"`
	AnnualSolarProductionKWH float64            `json:"annualSolarProductionKWH"`
	Production               *ProductionRequest `json:"production,omitempty"`
	BatteryNameplateKWH      float64            `json:"batteryNameplateKWH"`
	DepthOfDischarge         float64            `json:"depthOfDischarge"`
	InstalledCostTotal       float64            `json:"installedCostTotal"`
	Economics                ProjectionTerms    `json:"economics"`
}

// ResidentialQuote is the combined output of production, TOU allocation and
// economics.
type ResidentialQuote struct {
	Production ProductionEstimate  `json:"production"`
	Allocation TOUAllocationResult `json:"allocation"`
	Economics  EconomicsResult     `json:"economics"`
}

// QuoteKind distinguishes the quote flows.
type QuoteKind string

const (
	QuoteKindDemand      QuoteKind = "demand"
	QuoteKindResidential QuoteKind = "residential"
)

// Quote is a persisted calculation result.
type Quote struct {
	ID          string            `json:"id"`
	Kind        QuoteKind         `json:"kind"`
	CreatedAt   time.Time         `json:"createdAt"`
	Demand      *DemandQuote      `json:"demand,omitempty"`
	Residential *ResidentialQuote `json:"residential,omitempty"`
}
