package production

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/types"
)

// DefaultKWhPerKW is a conservative annual yield used when no estimator is
// reachable.
const DefaultKWhPerKW = 1200.0

// DefaultLossesPercent is used when a request doesn't specify system losses.
const DefaultLossesPercent = 14.0

// monthlyFractions is a northern hemisphere production profile, January
// first. It sums to 1.
var monthlyFractions = [12]float64{
	0.045, 0.058, 0.082, 0.095, 0.108, 0.112,
	0.115, 0.106, 0.088, 0.077, 0.062, 0.052,
}

// Estimator returns a solar production estimate for a proposed array.
type Estimator interface {
	Estimate(ctx context.Context, req types.ProductionRequest) (types.ProductionEstimate, error)
}

// Fallback estimates production as capacity times kWhPerKW, spread over the
// fixed monthly profile.
func Fallback(req types.ProductionRequest, kWhPerKW float64) types.ProductionEstimate {
	est := Provided(req.SystemCapacityKW * kWhPerKW)
	est.Source = types.ProductionSourceFallback
	return est
}

// Provided spreads a known annual production total over the monthly profile.
func Provided(annualKWH float64) types.ProductionEstimate {
	est := types.ProductionEstimate{
		AnnualKWH: annualKWH,
		Source:    types.ProductionSourceProvided,
	}
	for i, f := range monthlyFractions {
		est.MonthlyKWH[i] = annualKWH * f
	}
	return est
}

// EstimateWithFallback asks est for an estimate and falls back to the fixed
// profile if it fails or est is nil. Only an invalid request is an error.
func EstimateWithFallback(ctx context.Context, est Estimator, req types.ProductionRequest, kWhPerKW float64) (types.ProductionEstimate, error) {
	if err := ValidateRequest(req); err != nil {
		return types.ProductionEstimate{}, err
	}
	if est == nil {
		return Fallback(req, kWhPerKW), nil
	}
	res, err := est.Estimate(ctx, req)
	if err != nil {
		log.Ctx(ctx).WarnContext(
			ctx,
			"production estimate failed, using fallback profile",
			slog.Float64("systemCapacityKW", req.SystemCapacityKW),
			slog.Float64("kWhPerKW", kWhPerKW),
			slog.Any("error", err),
		)
		return Fallback(req, kWhPerKW), nil
	}
	return res, nil
}

// ValidateRequest checks that a request describes a physically possible
// array.
func ValidateRequest(req types.ProductionRequest) error {
	switch {
	case !(req.SystemCapacityKW > 0) || math.IsInf(req.SystemCapacityKW, 0):
		return types.Invalid("systemCapacityKW", "must be > 0, got %g", req.SystemCapacityKW)
	case !(req.Latitude >= -90 && req.Latitude <= 90):
		return types.Invalid("latitude", "must be within [-90, 90], got %g", req.Latitude)
	case !(req.Longitude >= -180 && req.Longitude <= 180):
		return types.Invalid("longitude", "must be within [-180, 180], got %g", req.Longitude)
	case !(req.TiltDegrees >= 0 && req.TiltDegrees <= 90):
		return types.Invalid("tiltDegrees", "must be within [0, 90], got %g", req.TiltDegrees)
	case !(req.AzimuthDegrees >= 0 && req.AzimuthDegrees < 360):
		return types.Invalid("azimuthDegrees", "must be within [0, 360), got %g", req.AzimuthDegrees)
	case !(req.LossesPercent >= -5 && req.LossesPercent <= 99):
		return types.Invalid("lossesPercent", "must be within [-5, 99], got %g", req.LossesPercent)
	}
	return nil
}

// Service is an Estimator that never fails on a valid request.
type Service struct {
	estimator Estimator
	kWhPerKW  float64
}

// NewService wraps est, which may be nil to always use the fallback profile.
func NewService(est Estimator, kWhPerKW float64) *Service {
	return &Service{estimator: est, kWhPerKW: kWhPerKW}
}

// Configured registers the production flags and returns a Service.
func Configured() *Service {
	provider := lflag.String("production-provider", "pvwatts", "Solar production estimator to use (available: pvwatts, fallback)")
	kWhPerKW := DefaultKWhPerKW
	lflag.JSON(&kWhPerKW, "fallback-kwh-per-kw", kWhPerKW, "Annual kWh per kW of capacity used when no estimator is available")

	s := &Service{}
	pv := configuredPVWatts()

	lflag.Do(func() {
		s.kWhPerKW = kWhPerKW
		switch *provider {
		case "pvwatts":
			if err := pv.Validate(); err != nil {
				panic(fmt.Sprintf("pvwatts validation failed: %v", err))
			}
			s.estimator = pv
		case "fallback":
		default:
			panic(fmt.Sprintf("unknown production provider: %s", *provider))
		}
	})

	return s
}

// Estimate implements Estimator.
func (s *Service) Estimate(ctx context.Context, req types.ProductionRequest) (types.ProductionEstimate, error) {
	return EstimateWithFallback(ctx, s.estimator, req, s.kWhPerKW)
}
