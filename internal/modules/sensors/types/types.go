package types

import "time"

// EnvironmentalReading is a single temperature/humidity sample. Timestamps are
// stored in UTC; Location is the grouping key and MAC identifies the device.
// Readings are immutable once ingested.
type EnvironmentalReading struct {
	Location    string    `json:"location"`
	MAC         string    `json:"mac"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

// BatteryReading is a single battery status sample. The metric fields are
// pointers because devices do not always report all three.
type BatteryReading struct {
	Location      string    `json:"location"`
	MAC           string    `json:"mac"`
	Timestamp     time.Time `json:"timestamp"`
	Voltage       *float64  `json:"voltage,omitempty"`
	Percentage    *float64  `json:"percentage,omitempty"`
	DischargeRate *float64  `json:"dischargerate,omitempty"`
}

// Sensor is one entry of the sensor registry (sensors.json).
type Sensor struct {
	Type     string `json:"type"`
	MAC      string `json:"mac"`
	Location string `json:"location"`
}

// Overview summarizes one reading table: how much data is stored and where.
type Overview struct {
	RecordCount    int        `json:"recordCount"`
	LocationCount  int        `json:"locationCount"`
	EarliestRecord *time.Time `json:"earliestRecord,omitempty"`
	LatestRecord   *time.Time `json:"latestRecord,omitempty"`
}
