package sensors

import (
	"database/sql"
	"net/http"

	"sensorhub-server/internal/modules/sensors/cache"
	"sensorhub-server/internal/modules/sensors/controller"
	"sensorhub-server/internal/modules/sensors/repository"
	"sensorhub-server/internal/modules/sensors/service"
	"sensorhub-server/internal/modules/sensors/timezone"
	"sensorhub-server/internal/sensorcfg"

	"log/slog"
)

// RegisterFeature wires the sensors module into the mux and returns the
// service so the caller can attach MQTT ingestion.
func RegisterFeature(
	mux *http.ServeMux,
	db *sql.DB,
	converter *timezone.Converter,
	queryCache *cache.QueryCache,
	registry *sensorcfg.Registry,
	logger *slog.Logger,
) *service.Service {
	repo := repository.NewRepository(db)
	svc := service.NewService(repo, converter, queryCache, registry, logger)
	sensorsController := controller.NewSensorsController(svc, logger)
	sensorsController.RegisterRoutes(mux)
	return svc
}
