package ingest

import (
	"sort"
	"time"

	"github.com/raterudder/solarsavings/pkg/types"
)

const (
	// baseLoadPercentile picks the base load from the sorted interval powers.
	baseLoadPercentile = 0.05
	// peakRunThreshold is the fraction of peak an interval must reach to count
	// toward the typical peak duration.
	peakRunThreshold = 0.8
)

// Resample averages readings into fixed windows [t, t+interval) aligned to
// the wall clock. Windows without any readings are omitted rather than
// interpolated. The result is sorted by timestamp.
func Resample(readings []types.IntervalReading, interval time.Duration) []types.IntervalReading {
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[int64]*bucket)
	var starts []int64
	for _, r := range readings {
		// Truncate works on absolute time so windows stay on quarter hours in
		// any zone whose UTC offset is a whole number of quarter hours.
		key := r.Timestamp.Truncate(interval).UnixNano()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			starts = append(starts, key)
		}
		b.sum += r.PowerKW
		b.count++
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	// keep the location of the input so local-time exports stay local
	loc := time.UTC
	if len(readings) > 0 {
		loc = readings[0].Timestamp.Location()
	}
	out := make([]types.IntervalReading, 0, len(starts))
	for _, key := range starts {
		b := buckets[key]
		out = append(out, types.IntervalReading{
			Timestamp: time.Unix(0, key).In(loc),
			PowerKW:   b.sum / float64(b.count),
		})
	}
	return out
}

// Analyze derives the demand characteristics of an already resampled series.
func Analyze(readings []types.IntervalReading, interval time.Duration) types.ParsedSeries {
	series := types.ParsedSeries{
		Readings:        readings,
		IntervalMinutes: int(interval / time.Minute),
		Warnings:        []string{},
	}
	if len(readings) == 0 {
		return series
	}

	peakIdx := 0
	for i, r := range readings {
		if r.PowerKW > readings[peakIdx].PowerKW {
			peakIdx = i
		}
	}
	series.PeakKW = readings[peakIdx].PowerKW
	series.PeakTimestamp = readings[peakIdx].Timestamp
	series.BaseLoadKW = baseLoad(readings)
	series.TypicalPeakDurationMinutes = longestPeakRun(readings, series.PeakKW, interval) * series.IntervalMinutes
	return series
}

func baseLoad(readings []types.IntervalReading) float64 {
	powers := make([]float64, len(readings))
	for i, r := range readings {
		powers[i] = r.PowerKW
	}
	sort.Float64s(powers)
	idx := int(float64(len(powers)) * baseLoadPercentile)
	if idx <= 0 {
		// too few samples for a percentile, use the minimum
		return powers[0]
	}
	return powers[idx]
}

// longestPeakRun counts the longest run of back-to-back intervals at or above
// the peak threshold. A gap in the series ends a run. Never less than 1.
func longestPeakRun(readings []types.IntervalReading, peak float64, interval time.Duration) int {
	threshold := peak * peakRunThreshold
	longest, run := 0, 0
	for i, r := range readings {
		if r.PowerKW < threshold {
			run = 0
			continue
		}
		if run > 0 && !readings[i-1].Timestamp.Add(interval).Equal(r.Timestamp) {
			run = 0
		}
		run++
		longest = max(longest, run)
	}
	return max(longest, 1)
}
