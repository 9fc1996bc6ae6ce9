package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/types"
)

// Interval is the fixed cadence every series is resampled to.
const Interval = 15 * time.Minute

// MinFullDayIntervals is the number of intervals in 24 hours. Shorter series
// are accepted with a warning.
const MinFullDayIntervals = 96

// Options tune parsing.
type Options struct {
	// Location is used for timestamps that carry no zone. Defaults to UTC.
	Location *time.Location
	// MaxReadings rejects inputs with more valid raw readings than this. Zero
	// means unlimited.
	MaxReadings int
}

// rawResult is what a format-specific parser hands back before resampling.
type rawResult struct {
	readings []types.IntervalReading
	warnings []string
}

// Parse reads an interval-demand export, resamples it to 15-minute intervals
// and derives the peak, base load and typical peak duration. Individual bad
// rows are skipped and reported in the returned warnings.
func Parse(ctx context.Context, r io.Reader, opts Options) (types.ParsedSeries, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	br := bufio.NewReader(r)
	first, err := peekFirstNonSpace(br)
	if err != nil {
		return types.ParsedSeries{}, &types.FormatError{Reason: "empty input", Err: err}
	}

	var raw rawResult
	if first == '<' {
		log.Ctx(ctx).DebugContext(ctx, "parsing hierarchical interval export")
		raw, err = parseESPI(br)
	} else {
		log.Ctx(ctx).DebugContext(ctx, "parsing delimited interval export")
		raw, err = parseDelimited(br, opts.Location)
	}
	if err != nil {
		return types.ParsedSeries{}, err
	}
	if len(raw.readings) == 0 {
		return types.ParsedSeries{}, &types.FormatError{Reason: fmt.Sprintf("no valid readings (%d rows skipped)", len(raw.warnings))}
	}
	if opts.MaxReadings > 0 && len(raw.readings) > opts.MaxReadings {
		return types.ParsedSeries{}, types.Invalid("readings", "%d readings exceeds the limit of %d", len(raw.readings), opts.MaxReadings)
	}

	warnings := raw.warnings
	if n := countOutOfOrder(raw.readings); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d readings were out of order and have been sorted", n))
	}
	sort.SliceStable(raw.readings, func(i, j int) bool {
		return raw.readings[i].Timestamp.Before(raw.readings[j].Timestamp)
	})

	series := Analyze(Resample(raw.readings, Interval), Interval)
	series.RawReadings = len(raw.readings)
	if len(series.Readings) < MinFullDayIntervals {
		warnings = append(warnings, fmt.Sprintf("only %d intervals of data, less than a full day (%d)", len(series.Readings), MinFullDayIntervals))
	}
	series.Warnings = warnings
	if series.Warnings == nil {
		series.Warnings = []string{}
	}

	if len(series.Warnings) > 0 {
		log.Ctx(ctx).WarnContext(
			ctx,
			"interval export parsed with warnings",
			slog.Int("warnings", len(series.Warnings)),
			slog.String("first", series.Warnings[0]),
		)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"interval export parsed",
		slog.Int("rawReadings", series.RawReadings),
		slog.Int("intervals", len(series.Readings)),
		slog.Float64("peakKW", series.PeakKW),
	)
	return series, nil
}

func peekFirstNonSpace(br *bufio.Reader) (byte, error) {
	for n := 1; ; n++ {
		b, err := br.Peek(n)
		if len(b) < n {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		c := b[n-1]
		// skip a UTF-8 byte order mark and whitespace
		if bytes.ContainsRune([]byte(" \t\r\n"), rune(c)) || c == 0xEF || c == 0xBB || c == 0xBF {
			continue
		}
		return c, nil
	}
}

func countOutOfOrder(readings []types.IntervalReading) int {
	var n int
	for i := 1; i < len(readings); i++ {
		if readings[i].Timestamp.Before(readings[i-1].Timestamp) {
			n++
		}
	}
	return n
}
