// Package sensorcfg maps sensor MAC addresses to installed locations.
// The mapping lives in a JSON file that can be reloaded without a restart.
package sensorcfg

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"sensorhub-server/internal/modules/sensors/types"
)

// File layout:
//
//	{
//	  "temp_humidity": {"aa:bb:cc:dd:ee:01": "lounge"},
//	  "nano_cell_battery": {"aa:bb:cc:dd:ee:01": "lounge"}
//	}
type fileFormat map[string]map[string]string

type Registry struct {
	mu      sync.RWMutex
	path    string
	sensors fileFormat
}

func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the config file and swaps the mapping atomically.
// On error the previous mapping stays in effect.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read sensor config %s: %w", r.path, err)
	}
	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse sensor config %s: %w", r.path, err)
	}
	normalized := make(fileFormat, len(parsed))
	for sensorType, macs := range parsed {
		normalized[sensorType] = make(map[string]string, len(macs))
		for mac, location := range macs {
			normalized[sensorType][strings.ToLower(mac)] = location
		}
	}
	r.mu.Lock()
	r.sensors = normalized
	r.mu.Unlock()
	return nil
}

// Location resolves a MAC address for the given sensor type.
// MAC comparison is case-insensitive.
func (r *Registry) Location(sensorType, mac string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	macs, ok := r.sensors[sensorType]
	if !ok {
		return "", false
	}
	location, ok := macs[strings.ToLower(mac)]
	return location, ok
}

// Sensors returns the full registry as a flat list, sorted by type then MAC.
func (r *Registry) Sensors() []types.Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.Sensor
	for sensorType, macs := range r.sensors {
		for mac, location := range macs {
			out = append(out, types.Sensor{Type: sensorType, MAC: mac, Location: location})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].MAC < out[j].MAC
	})
	return out
}
