// Package cache stores aggregated query results in Redis, keyed by a
// fingerprint of the query parameters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"sensorhub-server/internal/modules/sensors/types"
)

const (
	environmentalKeyPrefix = "query:env:"
	batteryKeyPrefix       = "query:battery:"

	DefaultTTL = 2 * time.Minute
)

type QueryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection before returning.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*QueryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			return nil, errors.Join(fmt.Errorf("connect to redis: %w", err), closeErr)
		}
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &QueryCache{client: client, ttl: ttl}, nil
}

// Fingerprint derives a stable cache key from the query parameters.
// Location order does not matter.
func Fingerprint(start, end time.Time, locations []string, strategy string) string {
	sorted := make([]string, len(locations))
	copy(sorted, locations)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(start.UTC().Format(time.RFC3339Nano))
	b.WriteString("|")
	b.WriteString(end.UTC().Format(time.RFC3339Nano))
	b.WriteString("|")
	b.WriteString(strings.Join(sorted, ","))
	b.WriteString("|")
	b.WriteString(strategy)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (c *QueryCache) GetEnvironmental(ctx context.Context, fingerprint string) ([]types.EnvironmentalReading, bool, error) {
	data, err := c.client.Get(ctx, environmentalKeyPrefix+fingerprint).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var series []types.EnvironmentalReading
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return series, true, nil
}

func (c *QueryCache) PutEnvironmental(ctx context.Context, fingerprint string, series []types.EnvironmentalReading) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, environmentalKeyPrefix+fingerprint, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *QueryCache) GetBattery(ctx context.Context, fingerprint string) ([]types.BatteryReading, bool, error) {
	data, err := c.client.Get(ctx, batteryKeyPrefix+fingerprint).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var series []types.BatteryReading
	if err := json.Unmarshal(data, &series); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return series, true, nil
}

func (c *QueryCache) PutBattery(ctx context.Context, fingerprint string, series []types.BatteryReading) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, batteryKeyPrefix+fingerprint, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *QueryCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *QueryCache) Close() error {
	return c.client.Close()
}
