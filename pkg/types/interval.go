package types

import "time"

// IntervalReading is a single average-demand sample.
type IntervalReading struct {
	Timestamp time.Time `json:"timestamp"`
	PowerKW   float64   `json:"powerKW"`
}

// ParsedSeries is an ingested interval export resampled to a fixed cadence
// along with the demand characteristics derived from it.
type ParsedSeries struct {
	// Readings are sorted by ascending timestamp. Windows without any raw
	// readings are omitted.
	Readings        []IntervalReading `json:"readings,omitempty"`
	IntervalMinutes int               `json:"intervalMinutes"`

	PeakKW                     float64   `json:"peakKW"`
	PeakTimestamp              time.Time `json:"peakTimestamp"`
	BaseLoadKW                 float64   `json:"baseLoadKW"`
	TypicalPeakDurationMinutes int       `json:"typicalPeakDurationMinutes"`

	// RawReadings is the number of valid rows before resampling.
	RawReadings int      `json:"rawReadings"`
	Warnings    []string `json:"warnings"`
}

// Start returns the timestamp of the first interval.
func (s ParsedSeries) Start() time.Time {
	if len(s.Readings) == 0 {
		return time.Time{}
	}
	return s.Readings[0].Timestamp
}

// End returns the exclusive end of the last interval.
func (s ParsedSeries) End() time.Time {
	if len(s.Readings) == 0 {
		return time.Time{}
	}
	return s.Readings[len(s.Readings)-1].Timestamp.Add(time.Duration(s.IntervalMinutes) * time.Minute)
}
