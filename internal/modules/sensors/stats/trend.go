package stats

import (
	"math"
	"sort"
	"time"

	"sensorhub-server/internal/modules/sensors/types"
)

// Trend direction and strength labels.
const (
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"
	DirectionStable     = "stable"

	StrengthStrong   = "strong"
	StrengthModerate = "moderate"
	StrengthWeak     = "weak"
)

// A slope smaller than this (per second of elapsed time) counts as flat.
const stableSlopeEpsilon = 1e-10

// Correlation thresholds for the strength label.
const (
	strongCorrelation   = 0.7
	moderateCorrelation = 0.4
)

// Trend is the least-squares fit of one metric against elapsed time within one
// group. Slope is in metric units per second of elapsed time.
type Trend struct {
	Slope         float64 `json:"slope"`
	Correlation   float64 `json:"correlation"`
	Direction     string  `json:"direction"`
	Strength      string  `json:"strength"`
	PointCount    int     `json:"pointCount"`
	TimeSpanHours float64 `json:"timeSpanHours"`
}

// EnvironmentalTrend fits a trend line per group for the named field. Groups
// with fewer than two points are skipped, not reported as zero-trend. Unknown
// fields yield an empty map.
func (c *Calculator) EnvironmentalTrend(series []types.EnvironmentalReading, field string, groupByLocation bool) map[string]Trend {
	extract, ok := environmentalField(field)
	if !ok {
		c.logger.Warn("unknown environmental field for trend", "field", field)
		return map[string]Trend{}
	}

	groups := map[string][]sample{}
	for _, r := range series {
		key := OverallGroup
		if groupByLocation {
			key = r.Location
		}
		groups[key] = append(groups[key], sample{ts: r.Timestamp, value: extract(r)})
	}
	return fitGroups(groups)
}

// BatteryTrend is EnvironmentalTrend for battery series; readings missing the
// requested metric are excluded before fitting.
func (c *Calculator) BatteryTrend(series []types.BatteryReading, field string, groupByLocation bool) map[string]Trend {
	extract, ok := batteryField(field)
	if !ok {
		c.logger.Warn("unknown battery field for trend", "field", field)
		return map[string]Trend{}
	}

	groups := map[string][]sample{}
	for _, r := range series {
		v := extract(r)
		if v == nil {
			continue
		}
		key := OverallGroup
		if groupByLocation {
			key = r.Location
		}
		groups[key] = append(groups[key], sample{ts: r.Timestamp, value: *v})
	}
	return fitGroups(groups)
}

type sample struct {
	ts    time.Time
	value float64
}

func fitGroups(groups map[string][]sample) map[string]Trend {
	out := map[string]Trend{}
	for key, samples := range groups {
		if trend, ok := fitTrend(samples); ok {
			out[key] = trend
		}
	}
	return out
}

// fitTrend fits an ordinary least-squares line of value against elapsed
// seconds. Returns false for fewer than two points.
func fitTrend(samples []sample) (Trend, bool) {
	if len(samples) < 2 {
		return Trend{}, false
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].ts.Before(samples[j].ts) })

	// Time axis relative to the first sample keeps the sums small.
	base := samples[0].ts
	n := float64(len(samples))

	var sumX, sumY float64
	for _, s := range samples {
		sumX += s.ts.Sub(base).Seconds()
		sumY += s.value
	}
	meanX := sumX / n
	meanY := sumY / n

	var covXY, varX, varY float64
	for _, s := range samples {
		dx := s.ts.Sub(base).Seconds() - meanX
		dy := s.value - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	slope := 0.0
	if varX > 0 {
		slope = covXY / varX
	}
	correlation := 0.0
	if varX > 0 && varY > 0 {
		correlation = covXY / math.Sqrt(varX*varY)
	}

	direction := DirectionStable
	if math.Abs(slope) >= stableSlopeEpsilon {
		if slope > 0 {
			direction = DirectionIncreasing
		} else {
			direction = DirectionDecreasing
		}
	}

	strength := StrengthWeak
	switch {
	case math.Abs(correlation) > strongCorrelation:
		strength = StrengthStrong
	case math.Abs(correlation) > moderateCorrelation:
		strength = StrengthModerate
	}

	span := samples[len(samples)-1].ts.Sub(samples[0].ts)
	return Trend{
		Slope:         slope,
		Correlation:   correlation,
		Direction:     direction,
		Strength:      strength,
		PointCount:    len(samples),
		TimeSpanHours: span.Hours(),
	}, true
}
