package ingest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/solarsavings/pkg/types"
)

// espiTimePeriod is a duration in seconds starting at a unix timestamp.
type espiTimePeriod struct {
	Duration string `xml:"duration"`
	Start    string `xml:"start"`
}

type espiReading struct {
	TimePeriod *espiTimePeriod `xml:"timePeriod"`
	Value      string          `xml:"value"`
}

type espiBlock struct {
	Interval *espiTimePeriod `xml:"interval"`
	Readings []espiReading   `xml:"IntervalReading"`
}

const (
	// ESPI unit multipliers run from pico (-12) to tera (12).
	maxPowerOfTen = 12
	// maxPeriodSeconds bounds a block or reading duration to a year.
	maxPeriodSeconds = 366 * 24 * 60 * 60
)

type espiReadingType struct {
	PowerOfTenMultiplier *int `xml:"powerOfTenMultiplier"`
}

// parseESPI reads a Green Button style export. Each IntervalBlock declares its
// own duration and start and holds IntervalReading children whose values are
// energy in Wh. A reading without its own timePeriod takes an even share of
// the block's interval.
func parseESPI(r io.Reader) (rawResult, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var (
		res        rawResult
		blocks     []espiBlock
		multiplier int
		blockNum   int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// only malformed XML after good blocks is tolerated, read errors are not
			var serr *xml.SyntaxError
			if len(blocks) == 0 || !errors.As(err, &serr) {
				return rawResult{}, &types.FormatError{Reason: "decoding XML", Err: err}
			}
			res.warnings = append(res.warnings, fmt.Sprintf("XML truncated after block %d: %v", blockNum, err))
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "IntervalBlock":
			blockNum++
			var b espiBlock
			if err := dec.DecodeElement(&b, &se); err != nil {
				res.warnings = append(res.warnings, fmt.Sprintf("block %d: %v", blockNum, err))
				continue
			}
			blocks = append(blocks, b)
		case "ReadingType":
			var rt espiReadingType
			if err := dec.DecodeElement(&rt, &se); err == nil && rt.PowerOfTenMultiplier != nil {
				multiplier = *rt.PowerOfTenMultiplier
			}
		}
	}
	if len(blocks) == 0 && blockNum == 0 {
		return rawResult{}, &types.FormatError{Reason: "no IntervalBlock elements found"}
	}

	if multiplier < -maxPowerOfTen || multiplier > maxPowerOfTen {
		return rawResult{}, &types.FormatError{Reason: fmt.Sprintf("powerOfTenMultiplier %d outside [-%d, %d]", multiplier, maxPowerOfTen, maxPowerOfTen)}
	}
	scale := math.Pow10(multiplier)
	for i, b := range blocks {
		readings, warnings := b.toReadings(scale)
		for _, w := range warnings {
			res.warnings = append(res.warnings, fmt.Sprintf("block %d: %s", i+1, w))
		}
		res.readings = append(res.readings, readings...)
	}
	return res, nil
}

func (b espiBlock) toReadings(scale float64) ([]types.IntervalReading, []string) {
	if len(b.Readings) == 0 {
		return nil, []string{"no readings"}
	}

	// the block's interval is only needed for readings without a timePeriod
	var blockStart time.Time
	var share time.Duration
	var blockErr error
	if b.Interval != nil {
		blockStart, share, blockErr = b.Interval.parse()
		share /= time.Duration(len(b.Readings))
	} else {
		blockErr = errors.New("missing interval")
	}

	var out []types.IntervalReading
	var warnings []string
	for i, r := range b.Readings {
		var start time.Time
		var dur time.Duration
		var err error
		if r.TimePeriod != nil {
			start, dur, err = r.TimePeriod.parse()
		} else if blockErr != nil {
			err = blockErr
		} else {
			start, dur = blockStart.Add(time.Duration(i)*share), share
		}
		if err == nil && dur <= 0 {
			err = fmt.Errorf("non-positive duration %v", dur)
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("reading %d: %v", i+1, err))
			continue
		}

		wh, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
		if err != nil || math.IsNaN(wh) || math.IsInf(wh, 0) {
			warnings = append(warnings, fmt.Sprintf("reading %d: invalid value %q", i+1, r.Value))
			continue
		}
		kw := (wh * scale / 1000) / dur.Hours()
		if kw < 0 {
			warnings = append(warnings, fmt.Sprintf("reading %d: negative energy %v", i+1, wh))
			continue
		}
		if math.IsInf(kw, 0) || math.IsNaN(kw) {
			warnings = append(warnings, fmt.Sprintf("reading %d: value %q is out of range", i+1, r.Value))
			continue
		}
		out = append(out, types.IntervalReading{Timestamp: start, PowerKW: kw})
	}
	return out, warnings
}

func (p espiTimePeriod) parse() (time.Time, time.Duration, error) {
	secs, err := strconv.ParseInt(strings.TrimSpace(p.Duration), 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid duration %q", p.Duration)
	}
	if secs > maxPeriodSeconds || secs < -maxPeriodSeconds {
		return time.Time{}, 0, fmt.Errorf("duration %d seconds out of range", secs)
	}
	start, err := strconv.ParseInt(strings.TrimSpace(p.Start), 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid start %q", p.Start)
	}
	return time.Unix(start, 0).UTC(), time.Duration(secs) * time.Second, nil
}
