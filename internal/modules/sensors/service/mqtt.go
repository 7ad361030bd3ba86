package service

import (
	"fmt"
	"time"

	"sensorhub-server/internal/metrics"
	"sensorhub-server/internal/modules/sensors/types"
	"sensorhub-server/internal/mqtt"
)

// RegisterMQTT attaches the ingestion handlers. The sensor registry resolves
// MAC addresses to locations; readings from unregistered sensors are dropped.
func (s *Service) RegisterMQTT(subscriber mqtt.MQTTSubscriber) {
	subscriber.SetEnvironmentalHandler(s.ingestEnvironmental)
	subscriber.SetBatteryHandler(s.ingestBattery)
}

func (s *Service) ingestEnvironmental(msg mqtt.EnvironmentalMessage) error {
	if s.registry == nil {
		metrics.IngestErrors.WithLabelValues("environmental").Inc()
		return fmt.Errorf("no sensor registry loaded")
	}
	location, ok := s.registry.Location("temp_humidity", msg.MAC)
	if !ok {
		metrics.IngestErrors.WithLabelValues("environmental").Inc()
		s.logger.Warn("reading from unregistered sensor", "mac", msg.MAC, "kind", "temp_humidity")
		return fmt.Errorf("unregistered sensor %q", msg.MAC)
	}

	ts := time.Now().UTC()
	if msg.Timestamp != nil {
		ts = msg.Timestamp.UTC()
	}

	rec := types.EnvironmentalReading{
		Location:    location,
		MAC:         msg.MAC,
		Timestamp:   ts,
		Temperature: *msg.Temperature,
		Humidity:    *msg.Humidity,
	}
	if err := s.repo.InsertEnvironmental(rec); err != nil {
		metrics.IngestErrors.WithLabelValues("environmental").Inc()
		s.logger.Error("failed to insert environmental reading",
			"location", location,
			"mac", msg.MAC,
			"error", err,
		)
		return err
	}

	metrics.IngestedReadings.WithLabelValues("environmental").Inc()
	s.logger.Debug("stored environmental reading", "location", location, "mac", msg.MAC, "ts", ts)
	return nil
}

func (s *Service) ingestBattery(msg mqtt.BatteryMessage) error {
	if s.registry == nil {
		metrics.IngestErrors.WithLabelValues("battery").Inc()
		return fmt.Errorf("no sensor registry loaded")
	}
	location, ok := s.registry.Location("nano_cell_battery", msg.MAC)
	if !ok {
		metrics.IngestErrors.WithLabelValues("battery").Inc()
		s.logger.Warn("reading from unregistered sensor", "mac", msg.MAC, "kind", "nano_cell_battery")
		return fmt.Errorf("unregistered sensor %q", msg.MAC)
	}

	ts := time.Now().UTC()
	if msg.Timestamp != nil {
		ts = msg.Timestamp.UTC()
	}

	rec := types.BatteryReading{
		Location:      location,
		MAC:           msg.MAC,
		Timestamp:     ts,
		Voltage:       msg.Voltage,
		Percentage:    msg.Percentage,
		DischargeRate: msg.DischargeRate,
	}
	if err := s.repo.InsertBattery(rec); err != nil {
		metrics.IngestErrors.WithLabelValues("battery").Inc()
		s.logger.Error("failed to insert battery reading",
			"location", location,
			"mac", msg.MAC,
			"error", err,
		)
		return err
	}

	metrics.IngestedReadings.WithLabelValues("battery").Inc()
	s.logger.Debug("stored battery reading", "location", location, "mac", msg.MAC, "ts", ts)
	return nil
}
