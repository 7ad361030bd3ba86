// Package stats computes descriptive statistics and derived classifications
// over sensor series. Every operation is a pure function of its input and
// degrades to an empty result on degenerate input; nothing here returns an
// error, because a missing statistic must not take down a query.
package stats

import (
	"log/slog"
	"math"
	"sort"

	"sensorhub-server/internal/modules/sensors/types"
)

// Comfort band constants. Fixed by definition, not derived from data.
const (
	TempComfortMin     = 18.0
	TempComfortMax     = 26.0
	HumidityComfortMin = 30.0
	HumidityComfortMax = 70.0
)

// Battery health thresholds over the percentage metric.
const (
	BatteryCritical = 20.0
	BatteryLow      = 40.0
	BatteryGood     = 70.0
)

// OverallGroup keys ungrouped results in the maps returned by the basic-stats
// and trend operations.
const OverallGroup = "overall"

// Summary holds the descriptive statistics of one metric within one group.
// An empty group summarizes to all zeros.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// ComfortIndex reports the fraction of readings inside the comfort bands.
type ComfortIndex struct {
	TempComfortPct      float64 `json:"tempComfortPct"`
	HumidityComfortPct  float64 `json:"humidityComfortPct"`
	OverallComfortScore float64 `json:"overallComfortScore"`
}

// BatteryHealth partitions charge readings into health bands.
type BatteryHealth struct {
	CriticalPct  float64 `json:"criticalPct"`
	LowPct       float64 `json:"lowPct"`
	MediumPct    float64 `json:"mediumPct"`
	GoodPct      float64 `json:"goodPct"`
	AverageLevel float64 `json:"averageLevel"`
	MinLevel     float64 `json:"minLevel"`
	HealthScore  float64 `json:"healthScore"`
}

type Calculator struct {
	logger *slog.Logger
}

func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger}
}

// Environmental metric names accepted by EnvironmentalBasicStats and
// EnvironmentalTrend.
const (
	FieldTemperature = "temperature"
	FieldHumidity    = "humidity"
)

// Battery metric names accepted by BatteryBasicStats and BatteryTrend.
const (
	FieldVoltage       = "voltage"
	FieldPercentage    = "percentage"
	FieldDischargeRate = "dischargerate"
)

// EnvironmentalBasicStats summarizes the requested fields, keyed field →
// group; the group key is the location when groupByLocation is set, otherwise
// OverallGroup. Unknown fields are skipped with a warning.
func (c *Calculator) EnvironmentalBasicStats(series []types.EnvironmentalReading, fields []string, groupByLocation bool) map[string]map[string]Summary {
	out := map[string]map[string]Summary{}
	for _, field := range fields {
		extract, ok := environmentalField(field)
		if !ok {
			c.logger.Warn("unknown environmental field, skipping", "field", field)
			continue
		}
		groups := map[string][]float64{}
		for _, r := range series {
			key := OverallGroup
			if groupByLocation {
				key = r.Location
			}
			groups[key] = append(groups[key], extract(r))
		}
		if len(groups) == 0 {
			groups[OverallGroup] = nil
		}
		summaries := make(map[string]Summary, len(groups))
		for key, values := range groups {
			summaries[key] = summarize(values)
		}
		out[field] = summaries
	}
	return out
}

// BatteryBasicStats is EnvironmentalBasicStats for battery series. Readings
// that do not carry the requested metric are excluded from its summary.
func (c *Calculator) BatteryBasicStats(series []types.BatteryReading, fields []string, groupByLocation bool) map[string]map[string]Summary {
	out := map[string]map[string]Summary{}
	for _, field := range fields {
		extract, ok := batteryField(field)
		if !ok {
			c.logger.Warn("unknown battery field, skipping", "field", field)
			continue
		}
		groups := map[string][]float64{}
		for _, r := range series {
			v := extract(r)
			if v == nil {
				continue
			}
			key := OverallGroup
			if groupByLocation {
				key = r.Location
			}
			groups[key] = append(groups[key], *v)
		}
		if len(groups) == 0 {
			groups[OverallGroup] = nil
		}
		summaries := make(map[string]Summary, len(groups))
		for key, values := range groups {
			summaries[key] = summarize(values)
		}
		out[field] = summaries
	}
	return out
}

// ComfortIndex reports the share of readings inside the fixed comfort bands:
// temperature in [18, 26] °C and humidity in [30, 70] %RH. The overall score
// is the mean of the two percentages. An empty series yields zeros.
func (c *Calculator) ComfortIndex(series []types.EnvironmentalReading) ComfortIndex {
	if len(series) == 0 {
		return ComfortIndex{}
	}
	var tempOK, humidityOK int
	for _, r := range series {
		if r.Temperature >= TempComfortMin && r.Temperature <= TempComfortMax {
			tempOK++
		}
		if r.Humidity >= HumidityComfortMin && r.Humidity <= HumidityComfortMax {
			humidityOK++
		}
	}
	n := float64(len(series))
	idx := ComfortIndex{
		TempComfortPct:     float64(tempOK) / n * 100,
		HumidityComfortPct: float64(humidityOK) / n * 100,
	}
	idx.OverallComfortScore = (idx.TempComfortPct + idx.HumidityComfortPct) / 2
	return idx
}

// BatteryHealth partitions charge percentage readings into critical (<20),
// low ([20,40)), medium ([40,70)) and good (≥70) bands. The health score is
// the mean charge clamped to [0, 100]. Readings without a percentage are
// ignored; an empty series yields zeros.
func (c *Calculator) BatteryHealth(series []types.BatteryReading) BatteryHealth {
	var levels []float64
	for _, r := range series {
		if r.Percentage != nil {
			levels = append(levels, *r.Percentage)
		}
	}
	if len(levels) == 0 {
		return BatteryHealth{}
	}

	var critical, low, medium, good int
	sum := 0.0
	minLevel := levels[0]
	for _, v := range levels {
		switch {
		case v < BatteryCritical:
			critical++
		case v < BatteryLow:
			low++
		case v < BatteryGood:
			medium++
		default:
			good++
		}
		sum += v
		if v < minLevel {
			minLevel = v
		}
	}

	n := float64(len(levels))
	mean := sum / n
	return BatteryHealth{
		CriticalPct:  float64(critical) / n * 100,
		LowPct:       float64(low) / n * 100,
		MediumPct:    float64(medium) / n * 100,
		GoodPct:      float64(good) / n * 100,
		AverageLevel: mean,
		MinLevel:     minLevel,
		HealthScore:  math.Max(0, math.Min(100, mean)),
	}
}

func environmentalField(name string) (func(types.EnvironmentalReading) float64, bool) {
	switch name {
	case FieldTemperature:
		return func(r types.EnvironmentalReading) float64 { return r.Temperature }, true
	case FieldHumidity:
		return func(r types.EnvironmentalReading) float64 { return r.Humidity }, true
	}
	return nil, false
}

func batteryField(name string) (func(types.BatteryReading) *float64, bool) {
	switch name {
	case FieldVoltage:
		return func(r types.BatteryReading) *float64 { return r.Voltage }, true
	case FieldPercentage:
		return func(r types.BatteryReading) *float64 { return r.Percentage }, true
	case FieldDischargeRate:
		return func(r types.BatteryReading) *float64 { return r.DischargeRate }, true
	}
	return nil, false
}

// summarize computes the Summary of a value slice. The input is not modified.
func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	n := float64(len(sorted))
	mean := sum / n

	// Sample standard deviation; a single value has no spread.
	std := 0.0
	if len(sorted) > 1 {
		ss := 0.0
		for _, v := range sorted {
			d := v - mean
			ss += d * d
		}
		std = math.Sqrt(ss / (n - 1))
	}

	return Summary{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Mean:   mean,
		Std:    std,
		Median: quantile(sorted, 0.5),
		Q25:    quantile(sorted, 0.25),
		Q75:    quantile(sorted, 0.75),
	}
}

// quantile returns the q-th quantile of an ascending slice using linear
// interpolation between the two nearest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
