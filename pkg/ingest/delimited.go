package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/solarsavings/pkg/types"
)

var (
	timestampHeaders = []string{"timestamp", "datetime", "date", "time", "start"}
	powerHeaders     = []string{"kw", "power", "demand", "load"}

	// timestampLayouts are tried in order for zone-less or zoned timestamps.
	timestampLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006/01/02 15:04:05",
		"2006/01/02 15:04",
		"01/02/2006 15:04:05",
		"01/02/2006 15:04",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04 PM",
		"01/02/2006 03:04 PM",
	}
)

// parseDelimited reads a header-led delimited export. The delimiter is chosen
// from the header line.
func parseDelimited(br *bufio.Reader, loc *time.Location) (rawResult, error) {
	headerLine, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return rawResult{}, &types.FormatError{Reason: "reading header", Err: err}
	}
	headerLine = strings.TrimPrefix(headerLine, "\ufeff")
	if strings.TrimSpace(headerLine) == "" {
		return rawResult{}, &types.FormatError{Reason: "missing header row"}
	}
	delim := detectDelimiter(headerLine)

	cr := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return rawResult{}, &types.FormatError{Reason: "reading header", Err: err}
	}
	tsCols, powerCol, err := findColumns(header)
	if err != nil {
		return rawResult{}, err
	}

	var res rawResult
	lineNum := 1 // header was line 1
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.warnings = append(res.warnings, fmt.Sprintf("line %d: %v", lineNum, err))
				continue
			}
			return rawResult{}, &types.FormatError{Reason: fmt.Sprintf("reading line %d", lineNum), Err: err}
		}
		if isBlank(record) {
			continue
		}

		reading, err := parseRecord(record, tsCols, powerCol, delim, loc)
		if err != nil {
			res.warnings = append(res.warnings, fmt.Sprintf("line %d: %v", lineNum, err))
			continue
		}
		res.readings = append(res.readings, reading)
	}
	return res, nil
}

func detectDelimiter(headerLine string) rune {
	best := ','
	bestCount := strings.Count(headerLine, ",")
	for _, d := range []rune{';', '\t', '|'} {
		if c := strings.Count(headerLine, string(d)); c > bestCount {
			best = d
			bestCount = c
		}
	}
	return best
}

// findColumns matches header names case-insensitively by substring. A
// separate date and time column pair is joined into one timestamp. A column
// mentioning kWh is energy, not power, and is never picked as the power
// column.
func findColumns(header []string) ([]int, int, error) {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	find := func(want string, skip ...int) int {
		for i, h := range lower {
			if slices.Contains(skip, i) {
				continue
			}
			if strings.Contains(h, want) {
				return i
			}
		}
		return -1
	}

	var tsCols []int
	for _, want := range timestampHeaders {
		col := find(want)
		if col < 0 {
			continue
		}
		tsCols = []int{col}
		if want == "date" {
			if timeCol := find("time", col); timeCol >= 0 {
				tsCols = append(tsCols, timeCol)
			}
		}
		break
	}
	if len(tsCols) == 0 {
		return nil, 0, &types.FormatError{Reason: fmt.Sprintf("no timestamp column in header %q", strings.Join(header, ","))}
	}

	powerCol := -1
	for _, want := range powerHeaders {
		for i, h := range lower {
			if slices.Contains(tsCols, i) || strings.Contains(h, "kwh") {
				continue
			}
			if strings.Contains(h, want) {
				powerCol = i
				break
			}
		}
		if powerCol >= 0 {
			break
		}
	}
	if powerCol < 0 {
		return nil, 0, &types.FormatError{Reason: fmt.Sprintf("no power column in header %q", strings.Join(header, ","))}
	}
	return tsCols, powerCol, nil
}

func parseRecord(record []string, tsCols []int, powerCol int, delim rune, loc *time.Location) (types.IntervalReading, error) {
	need := max(slices.Max(tsCols), powerCol) + 1
	if len(record) < need {
		return types.IntervalReading{}, fmt.Errorf("expected at least %d fields, got %d", need, len(record))
	}
	parts := make([]string, 0, len(tsCols))
	for _, c := range tsCols {
		parts = append(parts, strings.TrimSpace(record[c]))
	}
	ts, err := parseTimestamp(strings.Join(parts, " "), loc)
	if err != nil {
		return types.IntervalReading{}, err
	}
	power, err := parsePower(record[powerCol], delim)
	if err != nil {
		return types.IntervalReading{}, err
	}
	return types.IntervalReading{Timestamp: ts, PowerKW: power}, nil
}

// parsePower accepts thousands separators in comma-delimited files. Files
// using any other delimiter may use a decimal comma, in which case dots are
// thousands separators.
func parsePower(field string, delim rune) (float64, error) {
	raw := strings.TrimSpace(field)
	switch {
	case delim == ',':
		raw = strings.ReplaceAll(raw, ",", "")
	case strings.Contains(raw, ","):
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.ReplaceAll(raw, ",", ".")
	}
	power, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing power %q: %w", field, err)
	}
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return 0, fmt.Errorf("parsing power %q: not a finite number", field)
	}
	if power < 0 {
		return 0, fmt.Errorf("negative power %v", power)
	}
	return power, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	// epoch seconds
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: unrecognized format", s)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
