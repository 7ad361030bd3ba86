package controller

import (
	"net/http"

	"sensorhub-server/internal/modules/sensors/stats"
	"sensorhub-server/internal/utils"
)

// seriesResponse is the envelope for the two series endpoints. Strategy is
// the resolved aggregation strategy, not necessarily the one requested.
type seriesResponse struct {
	Series    any    `json:"series"`
	Strategy  string `json:"strategy"`
	Count     int    `json:"count"`
	RawCount  int    `json:"rawCount"`
	FromCache bool   `json:"fromCache"`
}

func (c *sensorsControllerImpl) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := c.service.Locations()
	if err != nil {
		c.logger.Error("list locations failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []string{}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (c *sensorsControllerImpl) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := c.service.Overview()
	if err != nil {
		c.logger.Error("overview failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load overview")
		return
	}
	utils.WriteJSON(w, http.StatusOK, overview)
}

func (c *sensorsControllerImpl) handleTimezone(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, c.service.Converter().CurrentInfo())
}

func (c *sensorsControllerImpl) handleEnvironmental(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := c.service.QueryEnvironmental(r.Context(), q)
	if err != nil {
		c.logger.Error("environmental query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "query failed")
		return
	}

	utils.WriteJSON(w, http.StatusOK, seriesResponse{
		Series:    result.Series,
		Strategy:  string(result.Strategy),
		Count:     len(result.Series),
		RawCount:  result.RawCount,
		FromCache: result.FromCache,
	})
}

func (c *sensorsControllerImpl) handleBattery(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := c.service.QueryBattery(r.Context(), q)
	if err != nil {
		c.logger.Error("battery query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "query failed")
		return
	}

	utils.WriteJSON(w, http.StatusOK, seriesResponse{
		Series:    result.Series,
		Strategy:  string(result.Strategy),
		Count:     len(result.Series),
		RawCount:  result.RawCount,
		FromCache: result.FromCache,
	})
}

func (c *sensorsControllerImpl) handleEnvironmentalStatistics(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields, groupByLocation, aggregated, err := parseStatsParams(r, []string{stats.FieldTemperature, stats.FieldHumidity})
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := c.service.EnvironmentalStatistics(r.Context(), q, fields, groupByLocation, aggregated)
	if err != nil {
		c.logger.Error("environmental statistics failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "statistics failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"statistics": summaries})
}

func (c *sensorsControllerImpl) handleBatteryStatistics(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	fields, groupByLocation, aggregated, err := parseStatsParams(r, []string{stats.FieldVoltage, stats.FieldPercentage, stats.FieldDischargeRate})
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := c.service.BatteryStatistics(r.Context(), q, fields, groupByLocation, aggregated)
	if err != nil {
		c.logger.Error("battery statistics failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "statistics failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"statistics": summaries})
}

func (c *sensorsControllerImpl) handleComfort(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	comfort, err := c.service.ComfortIndex(r.Context(), q)
	if err != nil {
		c.logger.Error("comfort index failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "comfort index failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, comfort)
}

func (c *sensorsControllerImpl) handleBatteryHealth(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	health, err := c.service.BatteryHealth(r.Context(), q)
	if err != nil {
		c.logger.Error("battery health failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "battery health failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, health)
}

func (c *sensorsControllerImpl) handleEnvironmentalTrend(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	field, groupByLocation, err := parseTrendParams(r, stats.FieldTemperature)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	trends, err := c.service.EnvironmentalTrend(r.Context(), q, field, groupByLocation)
	if err != nil {
		c.logger.Error("environmental trend failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "trend analysis failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"trends": trends})
}

func (c *sensorsControllerImpl) handleBatteryTrend(w http.ResponseWriter, r *http.Request) {
	q, err := parseSeriesQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	field, groupByLocation, err := parseTrendParams(r, stats.FieldPercentage)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	trends, err := c.service.BatteryTrend(r.Context(), q, field, groupByLocation)
	if err != nil {
		c.logger.Error("battery trend failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "trend analysis failed")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"trends": trends})
}

func (c *sensorsControllerImpl) handleSensors(w http.ResponseWriter, r *http.Request) {
	registry := c.service.Registry()
	if registry == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "sensor registry not configured")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"sensors": registry.Sensors()})
}

func (c *sensorsControllerImpl) handleSensorsReload(w http.ResponseWriter, r *http.Request) {
	registry := c.service.Registry()
	if registry == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "sensor registry not configured")
		return
	}
	if err := registry.Reload(); err != nil {
		c.logger.Error("sensor registry reload failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	c.logger.Info("sensor registry reloaded", "count", len(registry.Sensors()))
	utils.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "sensors": len(registry.Sensors())})
}
