package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/solarsavings/pkg/common"
	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/types"
)

// PVWatts estimates production with the NREL PVWatts v8 API.
type PVWatts struct {
	apiURL   string
	apiKey   string
	attempts int
	backoff  time.Duration
	client   *http.Client
}

// NewPVWatts returns a PVWatts client. A nil client uses common.HTTPClient.
func NewPVWatts(apiURL, apiKey string, client *http.Client) *PVWatts {
	if client == nil {
		client = common.HTTPClient(15 * time.Second)
	}
	return &PVWatts{
		apiURL:   apiURL,
		apiKey:   apiKey,
		attempts: 3,
		backoff:  time.Second,
		client:   client,
	}
}

func configuredPVWatts() *PVWatts {
	p := NewPVWatts("", "", nil)
	apiURL := lflag.String("pvwatts-api-url", "https://developer.nrel.gov/api/pvwatts/v8.json", "URL for the PVWatts v8 API")
	apiKey := lflag.String("pvwatts-api-key", "", "API key for the NREL developer network")
	attempts := p.attempts
	lflag.JSON(&attempts, "pvwatts-attempts", attempts, "Number of times to try a PVWatts request before falling back")
	backoff := lflag.Duration("pvwatts-backoff", p.backoff, "Wait before the first PVWatts retry, doubled each retry")

	lflag.Do(func() {
		p.apiURL = *apiURL
		p.apiKey = *apiKey
		p.attempts = attempts
		p.backoff = *backoff
	})

	return p
}

// Validate ensures the configuration is valid.
func (p *PVWatts) Validate() error {
	if p.apiURL == "" {
		return errors.New("pvwatts-api-url is required")
	}
	if _, err := url.Parse(p.apiURL); err != nil {
		return fmt.Errorf("failed to parse pvwatts url (%s): %w", p.apiURL, err)
	}
	if p.apiKey == "" {
		return errors.New("pvwatts-api-key is required")
	}
	if p.attempts < 1 {
		return errors.New("pvwatts-attempts must be at least 1")
	}
	return nil
}

type pvwattsResponse struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Outputs  struct {
		ACMonthly []float64 `json:"ac_monthly"`
		ACAnnual  float64   `json:"ac_annual"`
	} `json:"outputs"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Estimate implements Estimator.
func (p *PVWatts) Estimate(ctx context.Context, req types.ProductionRequest) (types.ProductionEstimate, error) {
	losses := req.LossesPercent
	if losses == 0 {
		losses = DefaultLossesPercent
	}
	q := url.Values{}
	q.Set("api_key", p.apiKey)
	q.Set("system_capacity", formatFloat(req.SystemCapacityKW))
	q.Set("module_type", "0")
	q.Set("array_type", "1")
	q.Set("losses", formatFloat(losses))
	q.Set("tilt", formatFloat(req.TiltDegrees))
	q.Set("azimuth", formatFloat(req.AzimuthDegrees))
	q.Set("lat", formatFloat(req.Latitude))
	q.Set("lon", formatFloat(req.Longitude))
	u := p.apiURL + "?" + q.Encode()

	log.Ctx(ctx).DebugContext(
		ctx,
		"fetching pvwatts estimate",
		slog.Float64("systemCapacityKW", req.SystemCapacityKW),
		slog.Float64("lat", req.Latitude),
		slog.Float64("lon", req.Longitude),
	)

	resp, err := common.DoWithRetry(ctx, p.client, p.attempts, p.backoff, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return types.ProductionEstimate{}, fmt.Errorf("pvwatts request failed: %w", err)
	}
	defer resp.Body.Close()

	var body pvwattsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.ProductionEstimate{}, fmt.Errorf("failed to decode pvwatts response: %w", err)
	}
	if len(body.Errors) > 0 {
		return types.ProductionEstimate{}, fmt.Errorf("pvwatts returned errors: %s", strings.Join(body.Errors, "; "))
	}
	if len(body.Outputs.ACMonthly) != 12 {
		return types.ProductionEstimate{}, fmt.Errorf("pvwatts returned %d monthly values, expected 12", len(body.Outputs.ACMonthly))
	}
	for _, w := range body.Warnings {
		log.Ctx(ctx).WarnContext(ctx, "pvwatts warning", slog.String("warning", w))
	}

	est := types.ProductionEstimate{
		AnnualKWH: body.Outputs.ACAnnual,
		Source:    types.ProductionSourcePVWatts,
	}
	copy(est.MonthlyKWH[:], body.Outputs.ACMonthly)
	return est, nil
}
