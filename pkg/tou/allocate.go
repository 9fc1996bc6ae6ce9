package tou

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/types"
)

const daysPerYear = 365

// Allocator spreads a household's solar and battery energy over a configured
// schedule.
type Allocator struct {
	schedule types.TOUSchedule
}

// NewAllocator returns an Allocator for a validated copy of schedule.
func NewAllocator(schedule types.TOUSchedule) (*Allocator, error) {
	if err := Validate(schedule); err != nil {
		return nil, err
	}
	schedule.Periods = append([]types.TOUPeriod(nil), schedule.Periods...)
	return &Allocator{schedule: schedule}, nil
}

// Configured registers the schedule flag and returns an Allocator using the
// schedule file, or DefaultSchedule when none is given.
func Configured() *Allocator {
	path := lflag.String("tou-schedule-file", "", "YAML time-of-use schedule (defaults to the built-in four period schedule)")

	a := &Allocator{schedule: DefaultSchedule()}

	lflag.Do(func() {
		if *path == "" {
			return
		}
		s, err := LoadSchedule(*path)
		if err != nil {
			panic(fmt.Sprintf("tou schedule failed: %v", err))
		}
		a.schedule = s
		log.Ctx(context.Background()).Info("loaded tou schedule", slog.String("name", s.Name), slog.Int("periods", len(s.Periods)))
	})

	return a
}

// Schedule returns the schedule the Allocator uses.
func (a *Allocator) Schedule() types.TOUSchedule {
	return a.schedule
}

// Allocate runs Allocate against the Allocator's schedule.
func (a *Allocator) Allocate(in types.TOUAllocationInput) (types.TOUAllocationResult, error) {
	return Allocate(a.schedule, in)
}

// Allocate splits annual consumption across the schedule's periods and offsets
// it with a budget of solar production plus one full battery cycle per day.
// The budget goes to the most expensive periods first and no period is offset
// by more than it uses. Solar is credited before the battery when splitting
// the total offset, which is an aggregate approximation and not an hourly
// dispatch.
func Allocate(schedule types.TOUSchedule, in types.TOUAllocationInput) (types.TOUAllocationResult, error) {
	if err := Validate(schedule); err != nil {
		return types.TOUAllocationResult{}, err
	}
	if err := ValidateInput(in); err != nil {
		return types.TOUAllocationResult{}, err
	}

	throughput := in.BatteryNameplateKWH * in.DepthOfDischarge * daysPerYear
	budget := in.AnnualSolarProductionKWH + throughput

	res := types.TOUAllocationResult{
		Schedule:                   schedule.Name,
		Periods:                    make([]types.TOUPeriodResult, len(schedule.Periods)),
		BatteryAnnualThroughputKWH: throughput,
		OffsetBudgetKWH:            budget,
	}
	for i, p := range schedule.Periods {
		usage := in.AnnualConsumptionKWH * p.UsageShare
		res.Periods[i] = types.TOUPeriodResult{
			Name:           p.Name,
			DollarsPerKWH:  p.DollarsPerKWH,
			PreUsageKWH:    usage,
			PreCostDollars: usage * p.DollarsPerKWH,
		}
		res.PreCostDollars += res.Periods[i].PreCostDollars
	}

	order := make([]int, len(schedule.Periods))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return schedule.Periods[order[a]].DollarsPerKWH > schedule.Periods[order[b]].DollarsPerKWH
	})

	remaining := budget
	for _, i := range order {
		p := &res.Periods[i]
		p.OffsetKWH = math.Min(p.PreUsageKWH, remaining)
		remaining -= p.OffsetKWH
		res.TotalOffsetKWH += p.OffsetKWH
	}

	for i := range res.Periods {
		p := &res.Periods[i]
		p.PostUsageKWH = p.PreUsageKWH - p.OffsetKWH
		p.PostCostDollars = p.PostUsageKWH * p.DollarsPerKWH
		res.PostCostDollars += p.PostCostDollars
	}

	res.UnusedBudgetKWH = remaining
	res.SavingsDollars = res.PreCostDollars - res.PostCostDollars
	if res.PreCostDollars > 0 {
		res.PercentSaved = res.SavingsDollars / res.PreCostDollars * 100
	}
	res.SolarUsedKWH = math.Min(in.AnnualSolarProductionKWH, res.TotalOffsetKWH)
	res.BatteryUsedKWH = res.TotalOffsetKWH - res.SolarUsedKWH
	return res, nil
}

// ValidateInput checks the energy totals of an allocation.
func ValidateInput(in types.TOUAllocationInput) error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"annualConsumptionKWH", in.AnnualConsumptionKWH},
		{"annualSolarProductionKWH", in.AnnualSolarProductionKWH},
		{"batteryNameplateKWH", in.BatteryNameplateKWH},
	} {
		if !(f.v >= 0) || math.IsInf(f.v, 0) {
			return types.Invalid(f.name, "must be a non-negative number, got %g", f.v)
		}
	}
	if !(in.DepthOfDischarge >= 0) || in.DepthOfDischarge > 1 {
		return types.Invalid("depthOfDischarge", "must be within [0, 1], got %g", in.DepthOfDischarge)
	}
	return nil
}
