// Package timezone converts between the UTC instants used in storage and the
// fixed local civil zone used for display. DST gaps and overlaps are reported
// through IsValidLocal rather than treated as errors: a local clock value that
// does not exist (spring forward) or exists twice (fall back) is a policy
// decision for the caller, not a failure. Malformed timestamp input is the one
// condition that does fail, with a *ConversionError.
package timezone

import (
	"fmt"
	"time"

	"sensorhub-server/internal/modules/sensors/types"
)

// Direction selects which way ConvertEnvironmentalSeries / ConvertBatterySeries
// rewrite timestamps.
type Direction int

const (
	ToLocal Direction = iota
	ToUTC
)

// ConversionError reports a timestamp that could not be parsed or converted.
type ConversionError struct {
	Value  string
	Reason error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert timestamp %q: %v", e.Value, e.Reason)
}

func (e *ConversionError) Unwrap() error { return e.Reason }

// Converter converts between UTC and one fixed local zone.
type Converter struct {
	loc *time.Location
}

// New loads the named IANA zone, e.g. "Pacific/Auckland".
func New(name string) (*Converter, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return &Converter{loc: loc}, nil
}

// Zone returns the name of the local zone.
func (c *Converter) Zone() string { return c.loc.String() }

// ToLocal converts a UTC instant to the local zone. The instant itself is
// unchanged; only the wall-clock representation moves.
func (c *Converter) ToLocal(t time.Time) time.Time {
	return t.In(c.loc)
}

// ToUTC interprets the wall-clock fields of t as local civil time and returns
// the corresponding UTC instant. Inputs that already carry the local zone are
// converted directly. During a fall-back overlap the earlier offset wins;
// callers that care should check IsValidLocal first.
func (c *Converter) ToUTC(t time.Time) time.Time {
	if t.Location() == c.loc {
		return t.UTC()
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc).UTC()
}

// IsValidLocal reports whether the wall-clock value of t names exactly one
// instant in the local zone. It is false inside a spring-forward gap (the time
// never happens) and inside a fall-back overlap (the time happens twice).
func (c *Converter) IsValidLocal(t time.Time) bool {
	d := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), c.loc)

	// time.Date normalizes nonexistent wall times to the other side of the
	// gap, so a changed wall clock means the input fell in a gap.
	if !sameWallClock(d, t) {
		return false
	}

	// An overlap repeats wall-clock values at instants one transition apart.
	// Probe the common transition sizes on both sides.
	for _, delta := range []time.Duration{-time.Hour, -30 * time.Minute, 30 * time.Minute, time.Hour} {
		if sameWallClock(d.Add(delta).In(c.loc), t) {
			return false
		}
	}
	return true
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() &&
		a.Second() == b.Second() && a.Nanosecond() == b.Nanosecond()
}

// ParseTimestamp parses an RFC3339 timestamp. A value without zone information
// is rejected by RFC3339 itself; failures are returned as *ConversionError so
// the caller can tell bad input apart from pipeline faults.
func (c *Converter) ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &ConversionError{Value: s, Reason: err}
	}
	return t, nil
}

// ConvertEnvironmentalSeries rewrites every timestamp in the series in the
// given direction, preserving order and all other fields. The input slice is
// not modified.
func (c *Converter) ConvertEnvironmentalSeries(series []types.EnvironmentalReading, dir Direction) []types.EnvironmentalReading {
	if len(series) == 0 {
		return series
	}
	out := make([]types.EnvironmentalReading, len(series))
	copy(out, series)
	for i := range out {
		out[i].Timestamp = c.convert(out[i].Timestamp, dir)
	}
	return out
}

// ConvertBatterySeries is ConvertEnvironmentalSeries for battery readings.
func (c *Converter) ConvertBatterySeries(series []types.BatteryReading, dir Direction) []types.BatteryReading {
	if len(series) == 0 {
		return series
	}
	out := make([]types.BatteryReading, len(series))
	copy(out, series)
	for i := range out {
		out[i].Timestamp = c.convert(out[i].Timestamp, dir)
	}
	return out
}

func (c *Converter) convert(t time.Time, dir Direction) time.Time {
	if dir == ToUTC {
		return c.ToUTC(t)
	}
	return c.ToLocal(t)
}

// Info describes the zone and its current offset, for the /timezone endpoint.
type Info struct {
	LocalZone      string    `json:"localZone"`
	CurrentUTC     time.Time `json:"currentUtc"`
	CurrentLocal   time.Time `json:"currentLocal"`
	UTCOffsetHours float64   `json:"utcOffsetHours"`
	IsDST          bool      `json:"isDst"`
}

// CurrentInfo reports the zone name, current times and offset, and whether the
// zone is currently observing daylight saving.
func (c *Converter) CurrentInfo() Info {
	now := time.Now().UTC()
	local := now.In(c.loc)
	_, offset := local.Zone()

	return Info{
		LocalZone:      c.loc.String(),
		CurrentUTC:     now,
		CurrentLocal:   local,
		UTCOffsetHours: float64(offset) / 3600,
		IsDST:          local.IsDST(),
	}
}
