// Package aggregate reduces sensor series to a granularity appropriate for the
// queried time window. Reduction trades row volume for speed; the engine never
// fails a query over a reduction problem. Malformed or empty input comes back
// unchanged and anything unexpected is logged and answered with the original
// series (a slightly oversized chart beats no chart).
package aggregate

import (
	"log/slog"
	"sort"
	"time"

	"sensorhub-server/internal/modules/sensors/types"
)

type Engine struct {
	logger *slog.Logger
}

// NewEngine returns an engine logging through the given logger, or
// slog.Default() when nil.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// AggregateEnvironmental reduces a temperature/humidity series using the given
// strategy. StrategyAuto resolves from start/end (or, when zero, the observed
// series bounds) and the series length. The series is sorted by timestamp
// before bucketing; the input slice is not modified.
func (e *Engine) AggregateEnvironmental(series []types.EnvironmentalReading, strategy Strategy, start, end time.Time) []types.EnvironmentalReading {
	if len(series) == 0 {
		return series
	}

	sorted := make([]types.EnvironmentalReading, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	if strategy == StrategyAuto {
		if start.IsZero() || end.IsZero() {
			start = sorted[0].Timestamp
			end = sorted[len(sorted)-1].Timestamp
		}
		strategy = SelectStrategy(start, end, len(sorted))
	}

	switch strategy {
	case StrategyRaw:
		return sorted
	case StrategyInterpolation:
		return interpolateEnvironmental(sorted, strategy.BucketWidth())
	case StrategyHourly, StrategyDaily, StrategyWeekly:
		return resampleEnvironmental(sorted, strategy.BucketWidth())
	default:
		e.logger.Warn("unknown aggregation strategy, using hourly", "strategy", string(strategy))
		return resampleEnvironmental(sorted, time.Hour)
	}
}

// AggregateBattery reduces a battery series. Every reducing strategy uses
// per-bucket averaging; battery metrics are never interpolated because a gap
// in voltage or charge is not safely interpolable.
func (e *Engine) AggregateBattery(series []types.BatteryReading, strategy Strategy, start, end time.Time) []types.BatteryReading {
	if len(series) == 0 {
		return series
	}

	sorted := make([]types.BatteryReading, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	if strategy == StrategyAuto {
		if start.IsZero() || end.IsZero() {
			start = sorted[0].Timestamp
			end = sorted[len(sorted)-1].Timestamp
		}
		strategy = SelectStrategy(start, end, len(sorted))
	}

	if strategy == StrategyRaw {
		return sorted
	}
	width := strategy.BucketWidth()
	if width == 0 {
		e.logger.Warn("unknown aggregation strategy, using hourly", "strategy", string(strategy))
		width = time.Hour
	}
	return resampleBattery(sorted, width)
}

type envBucket struct {
	start       time.Time
	mac         string
	tempSum     float64
	humiditySum float64
	count       int
}

// resampleEnvironmental averages readings into fixed-width buckets per
// location. Identity fields keep the first observed value.
func resampleEnvironmental(sorted []types.EnvironmentalReading, width time.Duration) []types.EnvironmentalReading {
	byLocation := groupEnvironmental(sorted)

	var out []types.EnvironmentalReading
	for _, location := range sortedKeys(byLocation) {
		buckets := map[time.Time]*envBucket{}
		var order []time.Time
		for _, r := range byLocation[location] {
			key := r.Timestamp.UTC().Truncate(width)
			b, ok := buckets[key]
			if !ok {
				b = &envBucket{start: key, mac: r.MAC}
				buckets[key] = b
				order = append(order, key)
			}
			b.tempSum += r.Temperature
			b.humiditySum += r.Humidity
			b.count++
		}
		sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
		for _, key := range order {
			b := buckets[key]
			n := float64(b.count)
			out = append(out, types.EnvironmentalReading{
				Location:    location,
				MAC:         b.mac,
				Timestamp:   b.start,
				Temperature: b.tempSum / n,
				Humidity:    b.humiditySum / n,
			})
		}
	}
	return out
}

// interpolateEnvironmental resamples to fixed buckets per location, then fills
// interior gaps by linear interpolation between the neighboring filled
// buckets. Gaps at the leading or trailing edge stay missing and are dropped:
// interpolation never extrapolates beyond observed data.
func interpolateEnvironmental(sorted []types.EnvironmentalReading, width time.Duration) []types.EnvironmentalReading {
	byLocation := groupEnvironmental(sorted)

	var out []types.EnvironmentalReading
	for _, location := range sortedKeys(byLocation) {
		rows := byLocation[location]

		buckets := map[time.Time]*envBucket{}
		for _, r := range rows {
			key := r.Timestamp.UTC().Truncate(width)
			b, ok := buckets[key]
			if !ok {
				b = &envBucket{start: key, mac: r.MAC}
				buckets[key] = b
			}
			b.tempSum += r.Temperature
			b.humiditySum += r.Humidity
			b.count++
		}

		first := rows[0].Timestamp.UTC().Truncate(width)
		last := rows[len(rows)-1].Timestamp.UTC().Truncate(width)
		firstMAC := rows[0].MAC

		// Grid of all buckets in the observed span; nil entries are gaps.
		type gridPoint struct {
			start       time.Time
			temperature float64
			humidity    float64
			filled      bool
		}
		var grid []gridPoint
		for key := first; !key.After(last); key = key.Add(width) {
			p := gridPoint{start: key}
			if b, ok := buckets[key]; ok {
				n := float64(b.count)
				p.temperature = b.tempSum / n
				p.humidity = b.humiditySum / n
				p.filled = true
			}
			grid = append(grid, p)
		}

		// Fill interior gaps linearly between the bounding filled buckets.
		for i := 0; i < len(grid); i++ {
			if grid[i].filled {
				continue
			}
			prev := i - 1
			for prev >= 0 && !grid[prev].filled {
				prev--
			}
			next := i + 1
			for next < len(grid) && !grid[next].filled {
				next++
			}
			if prev < 0 || next >= len(grid) {
				continue // edge gap, no extrapolation
			}
			frac := float64(i-prev) / float64(next-prev)
			grid[i].temperature = grid[prev].temperature + frac*(grid[next].temperature-grid[prev].temperature)
			grid[i].humidity = grid[prev].humidity + frac*(grid[next].humidity-grid[prev].humidity)
			grid[i].filled = true
		}

		for _, p := range grid {
			if !p.filled {
				continue
			}
			mac := firstMAC
			if b, ok := buckets[p.start]; ok {
				mac = b.mac
			}
			out = append(out, types.EnvironmentalReading{
				Location:    location,
				MAC:         mac,
				Timestamp:   p.start,
				Temperature: p.temperature,
				Humidity:    p.humidity,
			})
		}
	}
	return out
}

type batteryBucket struct {
	start time.Time
	mac   string

	voltageSum   float64
	voltageN     int
	percentSum   float64
	percentN     int
	dischargeSum float64
	dischargeN   int
}

// resampleBattery averages each present metric into fixed-width buckets per
// location. Buckets missing both voltage and percentage are dropped.
func resampleBattery(sorted []types.BatteryReading, width time.Duration) []types.BatteryReading {
	byLocation := map[string][]types.BatteryReading{}
	for _, r := range sorted {
		byLocation[r.Location] = append(byLocation[r.Location], r)
	}

	var out []types.BatteryReading
	for _, location := range sortedKeys(byLocation) {
		buckets := map[time.Time]*batteryBucket{}
		var order []time.Time
		for _, r := range byLocation[location] {
			key := r.Timestamp.UTC().Truncate(width)
			b, ok := buckets[key]
			if !ok {
				b = &batteryBucket{start: key, mac: r.MAC}
				buckets[key] = b
				order = append(order, key)
			}
			if r.Voltage != nil {
				b.voltageSum += *r.Voltage
				b.voltageN++
			}
			if r.Percentage != nil {
				b.percentSum += *r.Percentage
				b.percentN++
			}
			if r.DischargeRate != nil {
				b.dischargeSum += *r.DischargeRate
				b.dischargeN++
			}
		}
		sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
		for _, key := range order {
			b := buckets[key]
			if b.voltageN == 0 && b.percentN == 0 {
				continue
			}
			row := types.BatteryReading{
				Location:  location,
				MAC:       b.mac,
				Timestamp: b.start,
			}
			if b.voltageN > 0 {
				v := b.voltageSum / float64(b.voltageN)
				row.Voltage = &v
			}
			if b.percentN > 0 {
				p := b.percentSum / float64(b.percentN)
				row.Percentage = &p
			}
			if b.dischargeN > 0 {
				d := b.dischargeSum / float64(b.dischargeN)
				row.DischargeRate = &d
			}
			out = append(out, row)
		}
	}
	return out
}

func groupEnvironmental(sorted []types.EnvironmentalReading) map[string][]types.EnvironmentalReading {
	byLocation := map[string][]types.EnvironmentalReading{}
	for _, r := range sorted {
		byLocation[r.Location] = append(byLocation[r.Location], r)
	}
	return byLocation
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
