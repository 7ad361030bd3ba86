package repository

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sensorhub-server/internal/modules/sensors/types"
)

//go:embed sql/get-environmental.sql
var getEnvironmentalSQL string

//go:embed sql/get-battery.sql
var getBatterySQL string

//go:embed sql/list-locations.sql
var listLocationsSQL string

//go:embed sql/insert-environmental.sql
var insertEnvironmentalSQL string

//go:embed sql/insert-battery.sql
var insertBatterySQL string

//go:embed sql/overview-environmental.sql
var overviewEnvironmentalSQL string

//go:embed sql/overview-battery.sql
var overviewBatterySQL string

type SensorRepository interface {
	FetchEnvironmental(start time.Time, end time.Time, locations []string) ([]types.EnvironmentalReading, error)
	FetchBattery(start time.Time, end time.Time, locations []string) ([]types.BatteryReading, error)
	ListLocations() ([]string, error)
	InsertEnvironmental(r types.EnvironmentalReading) error
	InsertBattery(r types.BatteryReading) error
	EnvironmentalOverview() (types.Overview, error)
	BatteryOverview() (types.Overview, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) SensorRepository {
	return &repositoryImpl{db: db}
}

// withLocationFilter appends an optional location filter and the stable
// ordering clause to one of the embedded range queries.
func withLocationFilter(base string, locations []string, args []any) (string, []any) {
	var b strings.Builder
	b.WriteString(base)
	if len(locations) > 0 {
		b.WriteString(" AND location IN (")
		for i, loc := range locations {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, loc)
		}
		b.WriteString(")")
	}
	b.WriteString(" ORDER BY ts ASC")
	return b.String(), args
}

func (r *repositoryImpl) FetchEnvironmental(start time.Time, end time.Time, locations []string) ([]types.EnvironmentalReading, error) {
	args := []any{start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano)}
	query, args := withLocationFilter(getEnvironmentalSQL, locations, args)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close environmental rows", "error", err)
		}
	}()
	var out []types.EnvironmentalReading
	for rows.Next() {
		var rec types.EnvironmentalReading
		var ts string
		if err := rows.Scan(&rec.Location, &rec.MAC, &ts, &rec.Temperature, &rec.Humidity); err != nil {
			return nil, err
		}
		t, err := parseStoredTimestamp(ts)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) FetchBattery(start time.Time, end time.Time, locations []string) ([]types.BatteryReading, error) {
	args := []any{start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano)}
	query, args := withLocationFilter(getBatterySQL, locations, args)
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close battery rows", "error", err)
		}
	}()
	var out []types.BatteryReading
	for rows.Next() {
		var rec types.BatteryReading
		var ts string
		if err := rows.Scan(&rec.Location, &rec.MAC, &ts, &rec.Voltage, &rec.Percentage, &rec.DischargeRate); err != nil {
			return nil, err
		}
		t, err := parseStoredTimestamp(ts)
		if err != nil {
			return nil, err
		}
		rec.Timestamp = t
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) ListLocations() ([]string, error) {
	rows, err := r.db.Query(listLocationsSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close locations rows", "error", err)
		}
	}()
	var out []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) InsertEnvironmental(rec types.EnvironmentalReading) error {
	if rec.Humidity < 0 || rec.Humidity > 100 {
		return fmt.Errorf("humidity out of range: %f (must be 0-100)", rec.Humidity)
	}
	tsStr := rec.Timestamp.UTC().Format(time.RFC3339Nano)
	_, err := r.db.Exec(insertEnvironmentalSQL, rec.Location, rec.MAC, tsStr, rec.Temperature, rec.Humidity)
	if err != nil {
		return fmt.Errorf("insert environmental reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) InsertBattery(rec types.BatteryReading) error {
	if rec.Percentage != nil && (*rec.Percentage < 0 || *rec.Percentage > 100) {
		return fmt.Errorf("percentage out of range: %f (must be 0-100)", *rec.Percentage)
	}
	tsStr := rec.Timestamp.UTC().Format(time.RFC3339Nano)
	var voltage, percentage, dischargeRate any
	if rec.Voltage != nil {
		voltage = *rec.Voltage
	}
	if rec.Percentage != nil {
		percentage = *rec.Percentage
	}
	if rec.DischargeRate != nil {
		dischargeRate = *rec.DischargeRate
	}
	_, err := r.db.Exec(insertBatterySQL, rec.Location, rec.MAC, tsStr, voltage, percentage, dischargeRate)
	if err != nil {
		return fmt.Errorf("insert battery reading: %w", err)
	}
	return nil
}

func (r *repositoryImpl) EnvironmentalOverview() (types.Overview, error) {
	return r.overview(overviewEnvironmentalSQL)
}

func (r *repositoryImpl) BatteryOverview() (types.Overview, error) {
	return r.overview(overviewBatterySQL)
}

func (r *repositoryImpl) overview(query string) (types.Overview, error) {
	var ov types.Overview
	var earliest, latest sql.NullString
	if err := r.db.QueryRow(query).Scan(&ov.RecordCount, &ov.LocationCount, &earliest, &latest); err != nil {
		return types.Overview{}, err
	}
	if earliest.Valid {
		t, err := parseStoredTimestamp(earliest.String)
		if err != nil {
			return types.Overview{}, err
		}
		ov.EarliestRecord = &t
	}
	if latest.Valid {
		t, err := parseStoredTimestamp(latest.String)
		if err != nil {
			return types.Overview{}, err
		}
		ov.LatestRecord = &t
	}
	return ov, nil
}

func parseStoredTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, ts)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: RFC3339Nano: %w; RFC3339: %w", ts, err, err2)
		}
	}
	return t, nil
}
