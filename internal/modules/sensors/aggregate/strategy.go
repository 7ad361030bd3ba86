package aggregate

import (
	"fmt"
	"time"
)

// Strategy is the reduction granularity chosen for one query. It is computed
// per query and never persisted.
type Strategy string

const (
	// StrategyAuto asks the engine to pick from the time range and row count.
	StrategyAuto Strategy = "auto"

	StrategyRaw           Strategy = "raw"
	StrategyInterpolation Strategy = "interpolation"
	StrategyHourly        Strategy = "hourly"
	StrategyDaily         Strategy = "daily"
	StrategyWeekly        Strategy = "weekly"
)

// Range thresholds for strategy selection. The table is monotonic: a longer
// range never selects a finer strategy.
const (
	rawThreshold           = 6 * time.Hour
	interpolationThreshold = 3 * 24 * time.Hour
	hourlyThreshold        = 14 * 24 * time.Hour
	dailyThreshold         = 90 * 24 * time.Hour
)

// Density bounds for the single-step adjustment, in points per hour.
const (
	highDensity = 100.0
	lowDensity  = 1.0
)

// ParseStrategy validates a wire-format strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAuto, StrategyRaw, StrategyInterpolation, StrategyHourly, StrategyDaily, StrategyWeekly:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown aggregation strategy %q", s)
}

// BucketWidth returns the fixed bucket width for a reducing strategy, or 0 for
// raw/auto.
func (s Strategy) BucketWidth() time.Duration {
	switch s {
	case StrategyInterpolation:
		return 15 * time.Minute
	case StrategyHourly:
		return time.Hour
	case StrategyDaily:
		return 24 * time.Hour
	case StrategyWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

// SelectStrategy picks the reduction strategy for a query window.
// pointCount is the number of rows the window matched, or negative when
// unknown. A known count adjusts the base strategy by at most one step:
// dense long-range queries coarsen (interpolation→hourly, hourly→daily) and
// sparse short-range queries refine (daily→hourly, hourly→interpolation).
func SelectStrategy(start, end time.Time, pointCount int) Strategy {
	timeRange := end.Sub(start)

	var strategy Strategy
	switch {
	case timeRange <= rawThreshold:
		strategy = StrategyRaw
	case timeRange <= interpolationThreshold:
		strategy = StrategyInterpolation
	case timeRange <= hourlyThreshold:
		strategy = StrategyHourly
	case timeRange <= dailyThreshold:
		strategy = StrategyDaily
	default:
		strategy = StrategyWeekly
	}

	if pointCount < 0 || timeRange <= 0 {
		return strategy
	}

	density := float64(pointCount) / timeRange.Hours()
	switch {
	case density > highDensity && timeRange > 24*time.Hour:
		switch strategy {
		case StrategyInterpolation:
			strategy = StrategyHourly
		case StrategyHourly:
			strategy = StrategyDaily
		}
	case density < lowDensity && timeRange < 7*24*time.Hour:
		switch strategy {
		case StrategyDaily:
			strategy = StrategyHourly
		case StrategyHourly:
			strategy = StrategyInterpolation
		}
	}
	return strategy
}
