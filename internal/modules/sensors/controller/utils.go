package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sensorhub-server/internal/modules/sensors/aggregate"
	"sensorhub-server/internal/modules/sensors/service"
)

const (
	defaultRange = 24 * time.Hour
	maxRangeDays = 366
)

// parseSeriesQuery reads the common query parameters: from, to, locations,
// strategy, localize. Missing bounds default to the last 24 hours.
func parseSeriesQuery(r *http.Request) (service.Query, error) {
	q := r.URL.Query()
	now := time.Now().UTC()

	var from, to time.Time
	var err error
	if s := q.Get("from"); s != "" {
		from, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return service.Query{}, errors.New("invalid 'from' (expected RFC3339)")
		}
		from = from.UTC()
	}
	if s := q.Get("to"); s != "" {
		to, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return service.Query{}, errors.New("invalid 'to' (expected RFC3339)")
		}
		to = to.UTC()
	}
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-defaultRange)
	}

	if from.After(to) {
		return service.Query{}, errors.New("'from' must be <= 'to'")
	}
	if to.After(now.Add(time.Minute)) {
		return service.Query{}, errors.New("'to' must not be in the future")
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return service.Query{}, fmt.Errorf("time range too large (max %d days)", maxRangeDays)
	}

	strategy := aggregate.StrategyAuto
	if s := q.Get("strategy"); s != "" {
		strategy, err = aggregate.ParseStrategy(s)
		if err != nil {
			return service.Query{}, err
		}
	}

	localize, err := parseBoolParam(q.Get("localize"))
	if err != nil {
		return service.Query{}, errors.New("invalid 'localize' (expected boolean)")
	}

	return service.Query{
		Start:     from,
		End:       to,
		Locations: parseCSV(q.Get("locations")),
		Strategy:  strategy,
		Localize:  localize,
	}, nil
}

// parseCSV splits a comma-separated parameter, dropping empty entries.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseBoolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// parseStatsParams reads fields, group_by and aggregated for the statistics
// endpoints. defaults fills in the series kind's standard fields.
func parseStatsParams(r *http.Request, defaults []string) (fields []string, groupByLocation, aggregated bool, err error) {
	q := r.URL.Query()

	fields = parseCSV(q.Get("fields"))
	if len(fields) == 0 {
		fields = defaults
	}

	switch groupBy := q.Get("group_by"); groupBy {
	case "", "none":
	case "location":
		groupByLocation = true
	default:
		return nil, false, false, fmt.Errorf("invalid 'group_by' %q (allowed: location, none)", groupBy)
	}

	aggregated, err = parseBoolParam(q.Get("aggregated"))
	if err != nil {
		return nil, false, false, errors.New("invalid 'aggregated' (expected boolean)")
	}

	return fields, groupByLocation, aggregated, nil
}

// parseTrendParams reads field and group_by for the trend endpoints.
func parseTrendParams(r *http.Request, defaultField string) (field string, groupByLocation bool, err error) {
	q := r.URL.Query()

	field = q.Get("field")
	if field == "" {
		field = defaultField
	}

	switch groupBy := q.Get("group_by"); groupBy {
	case "", "none":
	case "location":
		groupByLocation = true
	default:
		return "", false, fmt.Errorf("invalid 'group_by' %q (allowed: location, none)", groupBy)
	}

	return field, groupByLocation, nil
}
