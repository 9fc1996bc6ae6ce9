package tou

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raterudder/solarsavings/pkg/types"
)

const shareTolerance = 1e-6

// DefaultSchedule is a four period residential schedule with an overnight
// ultra-low rate.
func DefaultSchedule() types.TOUSchedule {
	return types.TOUSchedule{
		Name: "default",
		Periods: []types.TOUPeriod{
			{Name: "ultra-low-off-peak", DollarsPerKWH: 0.028, UsageShare: 0.30},
			{Name: "off-peak", DollarsPerKWH: 0.076, UsageShare: 0.38},
			{Name: "mid-peak", DollarsPerKWH: 0.122, UsageShare: 0.18},
			{Name: "on-peak", DollarsPerKWH: 0.284, UsageShare: 0.14},
		},
	}
}

// Validate checks that a schedule has uniquely named periods with
// non-negative rates and usage shares that add up to 1.
func Validate(s types.TOUSchedule) error {
	if len(s.Periods) == 0 {
		return types.Invalid("periods", "schedule %q has no periods", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Periods))
	var total float64
	for i, p := range s.Periods {
		if p.Name == "" {
			return types.Invalid("periods", "period %d has no name", i)
		}
		if _, ok := seen[p.Name]; ok {
			return types.Invalid("periods", "duplicate period %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		if !(p.DollarsPerKWH >= 0) || math.IsInf(p.DollarsPerKWH, 0) {
			return types.Invalid("periods", "period %q has invalid rate %g", p.Name, p.DollarsPerKWH)
		}
		if !(p.UsageShare >= 0) || p.UsageShare > 1 {
			return types.Invalid("periods", "period %q has invalid usage share %g", p.Name, p.UsageShare)
		}
		total += p.UsageShare
	}
	if math.Abs(total-1) > shareTolerance {
		return types.Invalid("periods", "usage shares sum to %g, not 1", total)
	}
	return nil
}

// ParseSchedule decodes and validates a YAML schedule.
func ParseSchedule(r io.Reader) (types.TOUSchedule, error) {
	var s types.TOUSchedule
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return types.TOUSchedule{}, &types.FormatError{Reason: "failed to decode schedule", Err: err}
	}
	if err := Validate(s); err != nil {
		return types.TOUSchedule{}, err
	}
	return s, nil
}

// LoadSchedule reads a YAML schedule from path.
func LoadSchedule(path string) (types.TOUSchedule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.TOUSchedule{}, fmt.Errorf("failed to read schedule %s: %w", path, err)
	}
	s, err := ParseSchedule(bytes.NewReader(b))
	if err != nil {
		return types.TOUSchedule{}, fmt.Errorf("failed to load schedule %s: %w", path, err)
	}
	return s, nil
}
