// Package service composes the query pipeline: fetch, strategy resolution,
// aggregation, caching and timezone localization.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sensorhub-server/internal/metrics"
	"sensorhub-server/internal/modules/sensors/aggregate"
	"sensorhub-server/internal/modules/sensors/cache"
	"sensorhub-server/internal/modules/sensors/repository"
	"sensorhub-server/internal/modules/sensors/stats"
	"sensorhub-server/internal/modules/sensors/timezone"
	"sensorhub-server/internal/modules/sensors/types"
	"sensorhub-server/internal/sensorcfg"
)

// Query describes one series request. Start and End are UTC instants;
// an empty Locations slice means all locations.
type Query struct {
	Start     time.Time
	End       time.Time
	Locations []string
	Strategy  aggregate.Strategy
	Localize  bool
}

// EnvironmentalResult carries the aggregated series plus pipeline diagnostics.
type EnvironmentalResult struct {
	Series    []types.EnvironmentalReading
	Strategy  aggregate.Strategy
	RawCount  int
	FromCache bool
}

type BatteryResult struct {
	Series    []types.BatteryReading
	Strategy  aggregate.Strategy
	RawCount  int
	FromCache bool
}

type Service struct {
	repo      repository.SensorRepository
	engine    *aggregate.Engine
	stats     *stats.Calculator
	converter *timezone.Converter
	cache     *cache.QueryCache
	registry  *sensorcfg.Registry
	logger    *slog.Logger
}

// NewService wires the pipeline. cache may be nil, in which case every
// query runs against storage.
func NewService(
	repo repository.SensorRepository,
	converter *timezone.Converter,
	queryCache *cache.QueryCache,
	registry *sensorcfg.Registry,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		engine:    aggregate.NewEngine(logger),
		stats:     stats.NewCalculator(logger),
		converter: converter,
		cache:     queryCache,
		registry:  registry,
		logger:    logger,
	}
}

func (s *Service) Converter() *timezone.Converter { return s.converter }

func (s *Service) Registry() *sensorcfg.Registry { return s.registry }

// QueryEnvironmental runs the full pipeline for temp/humidity data.
// Localization happens last, after caching, so cached entries stay in UTC.
func (s *Service) QueryEnvironmental(ctx context.Context, q Query) (EnvironmentalResult, error) {
	started := time.Now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("environmental").Observe(time.Since(started).Seconds())
	}()

	fingerprint := cache.Fingerprint(q.Start, q.End, q.Locations, string(q.Strategy))
	if s.cache != nil {
		series, hit, err := s.cache.GetEnvironmental(ctx, fingerprint)
		if err != nil {
			s.logger.Warn("cache lookup failed, falling back to storage", "error", err)
		}
		if hit {
			metrics.CacheHits.Inc()
			return EnvironmentalResult{
				Series:    s.localizeEnvironmental(series, q.Localize),
				Strategy:  q.Strategy,
				RawCount:  len(series),
				FromCache: true,
			}, nil
		}
		metrics.CacheMisses.Inc()
	}

	raw, err := s.repo.FetchEnvironmental(q.Start, q.End, q.Locations)
	if err != nil {
		return EnvironmentalResult{}, fmt.Errorf("fetch environmental series: %w", err)
	}
	metrics.RowsFetched.WithLabelValues("environmental").Add(float64(len(raw)))

	resolved := q.Strategy
	if resolved == aggregate.StrategyAuto {
		resolved = aggregate.SelectStrategy(q.Start, q.End, len(raw))
	}
	aggregated := s.engine.AggregateEnvironmental(raw, resolved, q.Start, q.End)

	metrics.QueriesTotal.WithLabelValues("environmental", string(resolved)).Inc()
	metrics.RowsReturned.WithLabelValues("environmental").Add(float64(len(aggregated)))

	if s.cache != nil {
		if err := s.cache.PutEnvironmental(ctx, fingerprint, aggregated); err != nil {
			s.logger.Warn("cache store failed", "error", err)
		}
	}

	return EnvironmentalResult{
		Series:   s.localizeEnvironmental(aggregated, q.Localize),
		Strategy: resolved,
		RawCount: len(raw),
	}, nil
}

// QueryBattery mirrors QueryEnvironmental for battery data. Battery series
// are never interpolated; the engine downgrades that strategy to resampling.
func (s *Service) QueryBattery(ctx context.Context, q Query) (BatteryResult, error) {
	started := time.Now()
	defer func() {
		metrics.QueryDuration.WithLabelValues("battery").Observe(time.Since(started).Seconds())
	}()

	fingerprint := cache.Fingerprint(q.Start, q.End, q.Locations, string(q.Strategy))
	if s.cache != nil {
		series, hit, err := s.cache.GetBattery(ctx, fingerprint)
		if err != nil {
			s.logger.Warn("cache lookup failed, falling back to storage", "error", err)
		}
		if hit {
			metrics.CacheHits.Inc()
			return BatteryResult{
				Series:    s.localizeBattery(series, q.Localize),
				Strategy:  q.Strategy,
				RawCount:  len(series),
				FromCache: true,
			}, nil
		}
		metrics.CacheMisses.Inc()
	}

	raw, err := s.repo.FetchBattery(q.Start, q.End, q.Locations)
	if err != nil {
		return BatteryResult{}, fmt.Errorf("fetch battery series: %w", err)
	}
	metrics.RowsFetched.WithLabelValues("battery").Add(float64(len(raw)))

	resolved := q.Strategy
	if resolved == aggregate.StrategyAuto {
		resolved = aggregate.SelectStrategy(q.Start, q.End, len(raw))
	}
	aggregated := s.engine.AggregateBattery(raw, resolved, q.Start, q.End)

	metrics.QueriesTotal.WithLabelValues("battery", string(resolved)).Inc()
	metrics.RowsReturned.WithLabelValues("battery").Add(float64(len(aggregated)))

	if s.cache != nil {
		if err := s.cache.PutBattery(ctx, fingerprint, aggregated); err != nil {
			s.logger.Warn("cache store failed", "error", err)
		}
	}

	return BatteryResult{
		Series:   s.localizeBattery(aggregated, q.Localize),
		Strategy: resolved,
		RawCount: len(raw),
	}, nil
}

func (s *Service) localizeEnvironmental(series []types.EnvironmentalReading, localize bool) []types.EnvironmentalReading {
	if !localize || s.converter == nil {
		return series
	}
	return s.converter.ConvertEnvironmentalSeries(series, timezone.ToLocal)
}

func (s *Service) localizeBattery(series []types.BatteryReading, localize bool) []types.BatteryReading {
	if !localize || s.converter == nil {
		return series
	}
	return s.converter.ConvertBatterySeries(series, timezone.ToLocal)
}

// EnvironmentalStatistics computes summaries over the series. With aggregated
// set the pipeline output feeds the calculator, otherwise raw readings do.
func (s *Service) EnvironmentalStatistics(ctx context.Context, q Query, fields []string, groupByLocation, aggregated bool) (map[string]map[string]stats.Summary, error) {
	series, err := s.environmentalInput(ctx, q, aggregated)
	if err != nil {
		return nil, err
	}
	return s.stats.EnvironmentalBasicStats(series, fields, groupByLocation), nil
}

func (s *Service) BatteryStatistics(ctx context.Context, q Query, fields []string, groupByLocation, aggregated bool) (map[string]map[string]stats.Summary, error) {
	series, err := s.batteryInput(ctx, q, aggregated)
	if err != nil {
		return nil, err
	}
	return s.stats.BatteryBasicStats(series, fields, groupByLocation), nil
}

func (s *Service) ComfortIndex(ctx context.Context, q Query) (stats.ComfortIndex, error) {
	series, err := s.environmentalInput(ctx, q, false)
	if err != nil {
		return stats.ComfortIndex{}, err
	}
	return s.stats.ComfortIndex(series), nil
}

func (s *Service) BatteryHealth(ctx context.Context, q Query) (stats.BatteryHealth, error) {
	series, err := s.batteryInput(ctx, q, false)
	if err != nil {
		return stats.BatteryHealth{}, err
	}
	return s.stats.BatteryHealth(series), nil
}

func (s *Service) EnvironmentalTrend(ctx context.Context, q Query, field string, groupByLocation bool) (map[string]stats.Trend, error) {
	series, err := s.environmentalInput(ctx, q, false)
	if err != nil {
		return nil, err
	}
	return s.stats.EnvironmentalTrend(series, field, groupByLocation), nil
}

func (s *Service) BatteryTrend(ctx context.Context, q Query, field string, groupByLocation bool) (map[string]stats.Trend, error) {
	series, err := s.batteryInput(ctx, q, false)
	if err != nil {
		return nil, err
	}
	return s.stats.BatteryTrend(series, field, groupByLocation), nil
}

func (s *Service) environmentalInput(ctx context.Context, q Query, aggregated bool) ([]types.EnvironmentalReading, error) {
	if aggregated {
		result, err := s.QueryEnvironmental(ctx, q)
		if err != nil {
			return nil, err
		}
		return result.Series, nil
	}
	series, err := s.repo.FetchEnvironmental(q.Start, q.End, q.Locations)
	if err != nil {
		return nil, fmt.Errorf("fetch environmental series: %w", err)
	}
	return series, nil
}

func (s *Service) batteryInput(ctx context.Context, q Query, aggregated bool) ([]types.BatteryReading, error) {
	if aggregated {
		result, err := s.QueryBattery(ctx, q)
		if err != nil {
			return nil, err
		}
		return result.Series, nil
	}
	series, err := s.repo.FetchBattery(q.Start, q.End, q.Locations)
	if err != nil {
		return nil, fmt.Errorf("fetch battery series: %w", err)
	}
	return series, nil
}

func (s *Service) Locations() ([]string, error) {
	return s.repo.ListLocations()
}

// Overview reports storage totals for both reading tables.
type Overview struct {
	Environmental types.Overview `json:"environmental"`
	Battery       types.Overview `json:"battery"`
}

func (s *Service) Overview() (Overview, error) {
	env, err := s.repo.EnvironmentalOverview()
	if err != nil {
		return Overview{}, fmt.Errorf("environmental overview: %w", err)
	}
	battery, err := s.repo.BatteryOverview()
	if err != nil {
		return Overview{}, fmt.Errorf("battery overview: %w", err)
	}
	return Overview{Environmental: env, Battery: battery}, nil
}
