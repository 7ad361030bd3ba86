package controller

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sensorhub-server/internal/modules/sensors/service"
	"sensorhub-server/internal/modules/sensors/timezone"
	"sensorhub-server/internal/modules/sensors/types"
)

type mockRepo struct {
	environmental    []types.EnvironmentalReading
	environmentalErr error
	battery          []types.BatteryReading
	batteryErr       error
	locations        []string
	locationsErr     error
	envOverview      types.Overview
	batteryOverview  types.Overview
	overviewErr      error
}

func (m *mockRepo) FetchEnvironmental(start, end time.Time, locations []string) ([]types.EnvironmentalReading, error) {
	return m.environmental, m.environmentalErr
}

func (m *mockRepo) FetchBattery(start, end time.Time, locations []string) ([]types.BatteryReading, error) {
	return m.battery, m.batteryErr
}

func (m *mockRepo) ListLocations() ([]string, error) {
	return m.locations, m.locationsErr
}

func (m *mockRepo) InsertEnvironmental(r types.EnvironmentalReading) error { return nil }

func (m *mockRepo) InsertBattery(r types.BatteryReading) error { return nil }

func (m *mockRepo) EnvironmentalOverview() (types.Overview, error) {
	return m.envOverview, m.overviewErr
}

func (m *mockRepo) BatteryOverview() (types.Overview, error) {
	return m.batteryOverview, m.overviewErr
}

func newTestController(t *testing.T, repo *mockRepo) *sensorsControllerImpl {
	t.Helper()
	converter, err := timezone.New("Pacific/Auckland")
	if err != nil {
		t.Fatalf("timezone.New: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewService(repo, converter, nil, nil, logger)
	return NewSensorsController(svc, logger).(*sensorsControllerImpl)
}

func envSeries(n int, start time.Time, step time.Duration) []types.EnvironmentalReading {
	out := make([]types.EnvironmentalReading, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, types.EnvironmentalReading{
			Location:    "lounge",
			MAC:         "aa:bb:cc:dd:ee:01",
			Timestamp:   start.Add(time.Duration(i) * step),
			Temperature: 20.0 + float64(i),
			Humidity:    50.0,
		})
	}
	return out
}

func Test_handleLocations(t *testing.T) {
	t.Run("returns locations on success", func(t *testing.T) {
		ctrl := newTestController(t, &mockRepo{locations: []string{"bedroom", "lounge"}})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
		rec := httptest.NewRecorder()

		ctrl.handleLocations(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q; want application/json", ct)
		}
		var body struct {
			Locations []string `json:"locations"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body.Locations) != 2 || body.Locations[0] != "bedroom" {
			t.Errorf("locations = %v; want [bedroom lounge]", body.Locations)
		}
	})

	t.Run("returns empty list when no data", func(t *testing.T) {
		ctrl := newTestController(t, &mockRepo{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
		rec := httptest.NewRecorder()

		ctrl.handleLocations(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(rec.Body.String(), `"locations":[]`) {
			t.Errorf("body = %q; want empty locations array", rec.Body.String())
		}
	})

	t.Run("returns 500 on repository error", func(t *testing.T) {
		ctrl := newTestController(t, &mockRepo{locationsErr: errors.New("boom")})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
		rec := httptest.NewRecorder()

		ctrl.handleLocations(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}

func Test_handleEnvironmental(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)

	t.Run("returns series with resolved strategy", func(t *testing.T) {
		series := envSeries(4, now.Add(-4*time.Hour), time.Hour)
		ctrl := newTestController(t, &mockRepo{environmental: series})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental", nil)
		rec := httptest.NewRecorder()

		ctrl.handleEnvironmental(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var body struct {
			Strategy string                      `json:"strategy"`
			Count    int                         `json:"count"`
			RawCount int                         `json:"rawCount"`
			Series   []types.EnvironmentalReading `json:"series"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Strategy == "" || body.Strategy == "auto" {
			t.Errorf("strategy = %q; want a concrete resolved strategy", body.Strategy)
		}
		if body.RawCount != 4 {
			t.Errorf("rawCount = %d; want 4", body.RawCount)
		}
		if body.Count != len(body.Series) {
			t.Errorf("count = %d; want %d", body.Count, len(body.Series))
		}
	})

	t.Run("rejects invalid from", func(t *testing.T) {
		ctrl := newTestController(t, &mockRepo{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental?from=yesterday", nil)
		rec := httptest.NewRecorder()

		ctrl.handleEnvironmental(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
		}
		if !strings.Contains(rec.Body.String(), "from") {
			t.Errorf("body = %q; want mention of 'from'", rec.Body.String())
		}
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		ctrl := newTestController(t, &mockRepo{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental?strategy=quarterly", nil)
		rec := httptest.NewRecorder()

		ctrl.handleEnvironmental(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("returns 500 on repository error", func(t *testing.T) {
		ctrl := newTestController(t, &mockRepo{environmentalErr: errors.New("db locked")})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental", nil)
		rec := httptest.NewRecorder()

		ctrl.handleEnvironmental(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})
}

func Test_handleBattery(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)
	pct := 80.0

	t.Run("returns battery series", func(t *testing.T) {
		series := []types.BatteryReading{
			{Location: "lounge", MAC: "aa:bb:cc:dd:ee:01", Timestamp: now.Add(-2 * time.Hour), Percentage: &pct},
			{Location: "lounge", MAC: "aa:bb:cc:dd:ee:01", Timestamp: now.Add(-time.Hour), Percentage: &pct},
		}
		ctrl := newTestController(t, &mockRepo{battery: series})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/battery", nil)
		rec := httptest.NewRecorder()

		ctrl.handleBattery(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var body struct {
			RawCount int `json:"rawCount"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.RawCount != 2 {
			t.Errorf("rawCount = %d; want 2", body.RawCount)
		}
	})
}

func Test_handleEnvironmentalStatistics(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)

	t.Run("returns overall statistics", func(t *testing.T) {
		series := envSeries(5, now.Add(-5*time.Hour), time.Hour)
		ctrl := newTestController(t, &mockRepo{environmental: series})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental/statistics", nil)
		rec := httptest.NewRecorder()

		ctrl.handleEnvironmentalStatistics(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var body struct {
			Statistics map[string]map[string]struct {
				Count int     `json:"count"`
				Mean  float64 `json:"mean"`
			} `json:"statistics"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		temperature, ok := body.Statistics["temperature"]
		if !ok {
			t.Fatalf("missing temperature field; got %v", body.Statistics)
		}
		if temperature["overall"].Count != 5 {
			t.Errorf("temperature count = %d; want 5", temperature["overall"].Count)
		}
	})

	t.Run("groups by location when requested", func(t *testing.T) {
		series := envSeries(3, now.Add(-3*time.Hour), time.Hour)
		ctrl := newTestController(t, &mockRepo{environmental: series})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental/statistics?group_by=location", nil)
		rec := httptest.NewRecorder()

		ctrl.handleEnvironmentalStatistics(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if !strings.Contains(rec.Body.String(), "lounge") {
			t.Errorf("body = %q; want group keyed by location", rec.Body.String())
		}
	})

	t.Run("rejects invalid group_by", func(t *testing.T) {
		ctrl := newTestController(t, &mockRepo{})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental/statistics?group_by=mac", nil)
		rec := httptest.NewRecorder()

		ctrl.handleEnvironmentalStatistics(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

func Test_handleComfort(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)

	t.Run("all readings comfortable", func(t *testing.T) {
		series := []types.EnvironmentalReading{
			{Location: "lounge", Timestamp: now.Add(-2 * time.Hour), Temperature: 21.0, Humidity: 50.0},
			{Location: "lounge", Timestamp: now.Add(-time.Hour), Temperature: 22.0, Humidity: 55.0},
		}
		ctrl := newTestController(t, &mockRepo{environmental: series})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental/comfort", nil)
		rec := httptest.NewRecorder()

		ctrl.handleComfort(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var comfort struct {
			TempComfortPct      float64 `json:"tempComfortPct"`
			HumidityComfortPct  float64 `json:"humidityComfortPct"`
			OverallComfortScore float64 `json:"overallComfortScore"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &comfort); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if comfort.TempComfortPct != 100 || comfort.HumidityComfortPct != 100 || comfort.OverallComfortScore != 100 {
			t.Errorf("comfort = %+v; want 100%% across the board", comfort)
		}
	})
}

func Test_handleBatteryHealth(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)

	t.Run("reports health bands", func(t *testing.T) {
		levels := []float64{10, 30, 50, 80}
		series := make([]types.BatteryReading, 0, len(levels))
		for i := range levels {
			series = append(series, types.BatteryReading{
				Location:   "lounge",
				Timestamp:  now.Add(time.Duration(i-4) * time.Hour),
				Percentage: &levels[i],
			})
		}
		ctrl := newTestController(t, &mockRepo{battery: series})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/battery/health", nil)
		rec := httptest.NewRecorder()

		ctrl.handleBatteryHealth(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var health struct {
			CriticalPct float64 `json:"criticalPct"`
			LowPct      float64 `json:"lowPct"`
			MediumPct   float64 `json:"mediumPct"`
			GoodPct     float64 `json:"goodPct"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if health.CriticalPct != 25 || health.LowPct != 25 || health.MediumPct != 25 || health.GoodPct != 25 {
			t.Errorf("health = %+v; want 25%% in each band", health)
		}
	})
}

func Test_handleEnvironmentalTrend(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Hour)

	t.Run("strictly increasing series trends up", func(t *testing.T) {
		series := envSeries(6, now.Add(-6*time.Hour), time.Hour)
		ctrl := newTestController(t, &mockRepo{environmental: series})
		req := httptest.NewRequest(http.MethodGet, "/api/v1/environmental/trend?field=temperature", nil)
		rec := httptest.NewRecorder()

		ctrl.handleEnvironmentalTrend(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var body struct {
			Trends map[string]struct {
				Direction string `json:"direction"`
				Strength  string `json:"strength"`
			} `json:"trends"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		trend, ok := body.Trends["overall"]
		if !ok {
			t.Fatalf("missing overall trend; got %v", body.Trends)
		}
		if trend.Direction != "increasing" {
			t.Errorf("direction = %q; want increasing", trend.Direction)
		}
		if trend.Strength != "strong" {
			t.Errorf("strength = %q; want strong", trend.Strength)
		}
	})
}

func Test_handleOverview(t *testing.T) {
	earliest := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctrl := newTestController(t, &mockRepo{
		envOverview: types.Overview{RecordCount: 42, LocationCount: 3, EarliestRecord: &earliest},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/overview", nil)
	rec := httptest.NewRecorder()

	ctrl.handleOverview(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Environmental types.Overview `json:"environmental"`
		Battery       types.Overview `json:"battery"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Environmental.RecordCount != 42 || body.Environmental.LocationCount != 3 {
		t.Errorf("environmental overview = %+v", body.Environmental)
	}
	if body.Battery.RecordCount != 0 {
		t.Errorf("battery overview = %+v; want empty", body.Battery)
	}
}

func Test_handleTimezone(t *testing.T) {
	ctrl := newTestController(t, &mockRepo{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/timezone", nil)
	rec := httptest.NewRecorder()

	ctrl.handleTimezone(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "Pacific/Auckland") {
		t.Errorf("body = %q; want zone name", rec.Body.String())
	}
}

func Test_handleSensors_NoRegistry(t *testing.T) {
	ctrl := newTestController(t, &mockRepo{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sensors", nil)
	rec := httptest.NewRecorder()

	ctrl.handleSensors(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
