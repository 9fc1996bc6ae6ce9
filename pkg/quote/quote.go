package quote

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/raterudder/solarsavings/pkg/battery"
	"github.com/raterudder/solarsavings/pkg/billing"
	"github.com/raterudder/solarsavings/pkg/economics"
	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/production"
	"github.com/raterudder/solarsavings/pkg/rebate"
	"github.com/raterudder/solarsavings/pkg/tou"
	"github.com/raterudder/solarsavings/pkg/types"
)

// Calculator chains the engine stages into demand and residential quotes.
type Calculator struct {
	production production.Estimator
	allocator  *tou.Allocator
}

// NewCalculator returns a Calculator. est may be nil, in which case residential
// quotes without an explicit production total use the fallback profile.
func NewCalculator(est production.Estimator, allocator *tou.Allocator) *Calculator {
	return &Calculator{
		production: est,
		allocator:  allocator,
	}
}

// Configured registers the production and schedule flags and returns a
// Calculator using them.
func Configured() *Calculator {
	return NewCalculator(production.Configured(), tou.Configured())
}

// Schedule returns the time-of-use schedule residential quotes are priced on.
func (c *Calculator) Schedule() types.TOUSchedule {
	return c.allocator.Schedule()
}

// CalculateDemand quotes a peak-shaving battery. When series is not nil its
// peak kW and typical peak duration replace the ones in the request. Every
// input is validated before any stage runs.
func (c *Calculator) CalculateDemand(ctx context.Context, series *types.ParsedSeries, req types.DemandQuoteRequest) (types.DemandQuote, error) {
	in := req.Billing
	if series != nil {
		in.MeasuredPeak = types.DemandMeasurement{Unit: types.UnitKW, Value: series.PeakKW}
		in.PeakDurationMinutes = float64(series.TypicalPeakDurationMinutes)
	}
	if err := validateDemand(in, req); err != nil {
		return types.DemandQuote{}, err
	}

	bill, err := billing.Simulate(in)
	if err != nil {
		return types.DemandQuote{}, err
	}

	size, err := battery.Size(types.BatterySizingInput{
		ShaveKW:             bill.ShaveKW,
		PeakDurationMinutes: bill.PeakDurationMinutes,
		CRate:               req.Battery.CRate,
		RoundTripEfficiency: req.Battery.RoundTripEfficiency,
		DepthOfDischarge:    req.Battery.DepthOfDischarge,
	})
	if err != nil {
		return types.DemandQuote{}, fmt.Errorf("failed to size battery: %w", err)
	}

	installed := req.Cost.InstalledCostTotal
	if installed == 0 {
		installed = size.NameplateKWH*req.Cost.BatteryDollarsPerKWH + size.InverterKW*req.Cost.InverterDollarsPerKW
	}

	eligible := size.InverterKW
	if req.Rebate.EligibleKW != nil {
		eligible = *req.Rebate.EligibleKW
	}
	reb, err := rebate.Calculate(rebateInput(req.Rebate, eligible, installed))
	if err != nil {
		return types.DemandQuote{}, fmt.Errorf("failed to calculate rebate: %w", err)
	}

	econ, err := economics.Project(types.EconomicsInput{
		AnnualSavings:    bill.AnnualSavings,
		NetInstalledCost: reb.NetInstalledCost,
		Years:            req.Economics.Years,
		Escalator:        req.Economics.Escalator,
	})
	if err != nil {
		return types.DemandQuote{}, fmt.Errorf("failed to project economics: %w", err)
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"calculated demand quote",
		slog.String("convention", string(bill.Convention)),
		slog.Float64("shaveKW", bill.ShaveKW),
		slog.Float64("nameplateKWH", size.NameplateKWH),
		slog.String("regime", string(size.Regime)),
		slog.Float64("annualSavings", bill.AnnualSavings),
		slog.Float64("netInstalledCost", reb.NetInstalledCost),
	)

	return types.DemandQuote{
		Series:        series,
		Billing:       bill,
		Battery:       size,
		InstalledCost: installed,
		Rebate:        reb,
		Economics:     econ,
	}, nil
}

func rebateInput(terms types.RebateTerms, eligibleKW, installed float64) types.RebateInput {
	return types.RebateInput{
		EligibleKW:           eligibleKW,
		RatePerKW:            terms.RatePerKW,
		AbsoluteCapDollars:   terms.AbsoluteCapDollars,
		CapAtHalfSolarCost:   terms.CapAtHalfSolarCost,
		SolarOnlyCostDollars: terms.SolarOnlyCostDollars,
		InstalledCostTotal:   installed,
	}
}

func validateDemand(in types.DemandBillingInput, req types.DemandQuoteRequest) error {
	if err := billing.Validate(in); err != nil {
		return err
	}
	// the shave is validated by Simulate once it is known
	if err := battery.Validate(types.BatterySizingInput{
		PeakDurationMinutes: in.PeakDurationMinutes,
		CRate:               req.Battery.CRate,
		RoundTripEfficiency: req.Battery.RoundTripEfficiency,
		DepthOfDischarge:    req.Battery.DepthOfDischarge,
	}); err != nil {
		return err
	}
	var eligible float64
	if req.Rebate.EligibleKW != nil {
		eligible = *req.Rebate.EligibleKW
	}
	if err := rebate.Validate(rebateInput(req.Rebate, eligible, req.Cost.InstalledCostTotal)); err != nil {
		return err
	}
	if err := nonNegative("cost.batteryDollarsPerKWH", req.Cost.BatteryDollarsPerKWH); err != nil {
		return err
	}
	if err := nonNegative("cost.inverterDollarsPerKW", req.Cost.InverterDollarsPerKW); err != nil {
		return err
	}
	return economics.Validate(types.EconomicsInput{
		Years:     req.Economics.Years,
		Escalator: req.Economics.Escalator,
	})
}

// CalculateResidential quotes a home solar and battery system on the
// Calculator's time-of-use schedule.
func (c *Calculator) CalculateResidential(ctx context.Context, req types.ResidentialQuoteRequest) (types.ResidentialQuote, error) {
	if err := validateResidential(req); err != nil {
		return types.ResidentialQuote{}, err
	}

	var prod types.ProductionEstimate
	if req.AnnualSolarProductionKWH > 0 || req.Production == nil {
		prod = production.Provided(req.AnnualSolarProductionKWH)
	} else {
		var err error
		prod, err = production.EstimateWithFallback(ctx, c.production, *req.Production, production.DefaultKWhPerKW)
		if err != nil {
			return types.ResidentialQuote{}, fmt.Errorf("failed to estimate production: %w", err)
		}
	}

	alloc, err := c.allocator.Allocate(types.TOUAllocationInput{
		AnnualConsumptionKWH:     req.AnnualConsumptionKWH,
		AnnualSolarProductionKWH: prod.AnnualKWH,
		BatteryNameplateKWH:      req.BatteryNameplateKWH,
		DepthOfDischarge:         req.DepthOfDischarge,
	})
	if err != nil {
		return types.ResidentialQuote{}, fmt.Errorf("failed to allocate offset: %w", err)
	}

	econ, err := economics.Project(types.EconomicsInput{
		AnnualSavings:    alloc.SavingsDollars,
		NetInstalledCost: req.InstalledCostTotal,
		Years:            req.Economics.Years,
		Escalator:        req.Economics.Escalator,
	})
	if err != nil {
		return types.ResidentialQuote{}, fmt.Errorf("failed to project economics: %w", err)
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"calculated residential quote",
		slog.String("schedule", alloc.Schedule),
		slog.String("productionSource", string(prod.Source)),
		slog.Float64("productionKWH", prod.AnnualKWH),
		slog.Float64("savings", alloc.SavingsDollars),
		slog.Float64("percentSaved", alloc.PercentSaved),
	)

	return types.ResidentialQuote{
		Production: prod,
		Allocation: alloc,
		Economics:  econ,
	}, nil
}

func validateResidential(req types.ResidentialQuoteRequest) error {
	if err := tou.ValidateInput(types.TOUAllocationInput{
		AnnualConsumptionKWH:     req.AnnualConsumptionKWH,
		AnnualSolarProductionKWH: req.AnnualSolarProductionKWH,
		BatteryNameplateKWH:      req.BatteryNameplateKWH,
		DepthOfDischarge:         req.DepthOfDischarge,
	}); err != nil {
		return err
	}
	if req.AnnualSolarProductionKWH == 0 && req.Production != nil {
		if err := production.ValidateRequest(*req.Production); err != nil {
			return err
		}
	}
	if err := nonNegative("installedCostTotal", req.InstalledCostTotal); err != nil {
		return err
	}
	return economics.Validate(types.EconomicsInput{
		Years:     req.Economics.Years,
		Escalator: req.Economics.Escalator,
	})
}

func nonNegative(field string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 0) {
		return types.Invalid(field, "must be a non-negative number, got %g", v)
	}
	return nil
}
