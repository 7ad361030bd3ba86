package controller

import (
	"log/slog"
	"net/http"

	"sensorhub-server/internal/modules/sensors/service"
)

type SensorsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type sensorsControllerImpl struct {
	service *service.Service
	logger  *slog.Logger
}

func NewSensorsController(svc *service.Service, logger *slog.Logger) SensorsController {
	return &sensorsControllerImpl{service: svc, logger: logger}
}

func (c *sensorsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/locations", c.handleLocations)
	mux.HandleFunc("GET /api/v1/overview", c.handleOverview)
	mux.HandleFunc("GET /api/v1/timezone", c.handleTimezone)

	mux.HandleFunc("GET /api/v1/environmental", c.handleEnvironmental)
	mux.HandleFunc("GET /api/v1/environmental/statistics", c.handleEnvironmentalStatistics)
	mux.HandleFunc("GET /api/v1/environmental/comfort", c.handleComfort)
	mux.HandleFunc("GET /api/v1/environmental/trend", c.handleEnvironmentalTrend)

	mux.HandleFunc("GET /api/v1/battery", c.handleBattery)
	mux.HandleFunc("GET /api/v1/battery/statistics", c.handleBatteryStatistics)
	mux.HandleFunc("GET /api/v1/battery/health", c.handleBatteryHealth)
	mux.HandleFunc("GET /api/v1/battery/trend", c.handleBatteryTrend)

	mux.HandleFunc("GET /api/v1/sensors", c.handleSensors)
	mux.HandleFunc("POST /api/v1/sensors/reload", c.handleSensorsReload)
}
