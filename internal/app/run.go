package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"sensorhub-server/internal/config"
	db "sensorhub-server/internal/db"
	httpapi "sensorhub-server/internal/httpapi"
	"sensorhub-server/internal/migrate"
	sensors "sensorhub-server/internal/modules/sensors"
	"sensorhub-server/internal/modules/sensors/cache"
	"sensorhub-server/internal/modules/sensors/timezone"
	"sensorhub-server/internal/mqtt"
	"sensorhub-server/internal/sensorcfg"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"timezone", cfg.Timezone,
		"sensorsConfig", cfg.SensorsConfigPath,
		"dbDriver", cfg.Driver,
		"dbPath", cfg.Path,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
		"cacheEnabled", cfg.CacheEnabled,
		"redisAddr", cfg.RedisAddr,
		"cacheTTL", cfg.CacheTTL,
	)
	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(dbConn); err != nil {
		return err
	}

	var ok int
	err = dbConn.QueryRow(`SELECT 1`).Scan(&ok)
	if err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	slog.Info("database connection successful")

	converter, err := timezone.New(cfg.Timezone)
	if err != nil {
		return err
	}

	registry, err := sensorcfg.Load(cfg.SensorsConfigPath)
	if err != nil {
		slog.Warn("sensor registry unavailable (mqtt ingestion disabled)", "path", cfg.SensorsConfigPath, "error", err)
		registry = nil
	}

	var queryCache *cache.QueryCache
	if cfg.CacheEnabled {
		cacheCtx, cacheCancel := context.WithTimeout(ctx, 5*time.Second)
		queryCache, err = cache.New(cacheCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		cacheCancel()
		if err != nil {
			slog.Warn("redis unavailable (continuing without query cache)", "addr", cfg.RedisAddr, "error", err)
			queryCache = nil
		} else {
			defer func() {
				if closeErr := queryCache.Close(); closeErr != nil {
					slog.Error("cache close", "error", closeErr)
				}
			}()
		}
	}

	mux := httpapi.NewMux(dbConn)
	svc := sensors.RegisterFeature(mux, dbConn, converter, queryCache, registry, slog.Default())

	// Set MQTT handlers before Connect so OnConnectHandler can subscribe immediately.
	// The broker may send queued messages right after CONNACK; we must be subscribed
	// before that to receive them.
	var mqttSubscriber *mqtt.Subscriber
	if cfg.MQTTEnabled {
		mqttSubscriber, err = mqtt.NewSubscriber(cfg, slog.Default())
		if err != nil {
			return err
		}
		svc.RegisterMQTT(mqttSubscriber)

		// Use a short timeout for initial MQTT connect so we don't block startup
		// when the broker is down (e.g. E2E).
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = mqttSubscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if mqttSubscriber != nil {
		slog.Info("mqtt disconnecting")
		mqttSubscriber.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
