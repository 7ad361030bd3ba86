package config

import (
	"log/slog"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "TIMEZONE", "SENSORS_CONFIG_PATH",
		"DB_DRIVER", "DB_DSN", "SQLITE_PATH", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
		"MQTT_ENABLED", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC",
		"CACHE_ENABLED", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.Timezone != "Pacific/Auckland" {
		t.Errorf("Timezone = %q, want %q", got.Timezone, "Pacific/Auckland")
	}
	if got.MQTTEnabled {
		t.Error("MQTTEnabled = true, want false")
	}
	if got.MQTTPort != 1883 {
		t.Errorf("MQTTPort = %d, want 1883", got.MQTTPort)
	}
	if got.MQTTTopic != "sensors/#" {
		t.Errorf("MQTTTopic = %q, want %q", got.MQTTTopic, "sensors/#")
	}
	if got.CacheEnabled {
		t.Error("CacheEnabled = true, want false")
	}
	if got.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want %q", got.RedisAddr, "localhost:6379")
	}
	if got.CacheTTL != 2*time.Minute {
		t.Errorf("CacheTTL = %v, want 2m", got.CacheTTL)
	}
}

func TestLoadFromEnv_AppEnv_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		appEnv string
	}{
		{name: "staging", appEnv: "staging"},
		{name: "uppercase invalid", appEnv: "DEV"}, // note: code does not lower-case APP_ENV
		{name: "random", appEnv: "whatever"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", tt.appEnv)

			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("HTTP_ADDR", "  :9090  ")
	t.Setenv("TIMEZONE", "Europe/Warsaw")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("MQTT_PORT", "8883")
	t.Setenv("CACHE_ENABLED", "1")
	t.Setenv("CACHE_TTL", "45s")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.AppEnv != "prod" {
		t.Errorf("AppEnv = %q, want prod", got.AppEnv)
	}
	if got.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", got.HTTPAddr)
	}
	if got.Timezone != "Europe/Warsaw" {
		t.Errorf("Timezone = %q, want Europe/Warsaw", got.Timezone)
	}
	if !got.MQTTEnabled {
		t.Error("MQTTEnabled = false, want true")
	}
	if got.MQTTPort != 8883 {
		t.Errorf("MQTTPort = %d, want 8883", got.MQTTPort)
	}
	if !got.CacheEnabled {
		t.Error("CacheEnabled = false, want true")
	}
	if got.CacheTTL != 45*time.Second {
		t.Errorf("CacheTTL = %v, want 45s", got.CacheTTL)
	}
}

func TestLoadFromEnv_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "mqtt port", key: "MQTT_PORT", value: "not-a-port"},
		{name: "redis db", key: "REDIS_DB", value: "two"},
		{name: "cache ttl", key: "CACHE_TTL", value: "5 minutes"},
		{name: "mqtt enabled", key: "MQTT_ENABLED", value: "yeah"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv()
			if err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "empty string", in: ""},
		{name: "garbage", in: "nope"},
		{name: "numeric", in: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err == nil {
				t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", tt.in)
			}
			// For invalid inputs, function returns LevelInfo along with an error.
			if got != slog.LevelInfo {
				t.Errorf("parseLogLevel(%q) = %v, want %v on error", tt.in, got, slog.LevelInfo)
			}
		})
	}
}
