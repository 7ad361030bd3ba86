package sensorcfg

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfig = `{
  "temp_humidity": {
    "AA:BB:CC:DD:EE:01": "lounge",
    "aa:bb:cc:dd:ee:02": "bedroom"
  },
  "nano_cell_battery": {
    "aa:bb:cc:dd:ee:01": "lounge"
  }
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensors.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, testConfig)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	loc, ok := reg.Location("temp_humidity", "aa:bb:cc:dd:ee:02")
	if !ok || loc != "bedroom" {
		t.Errorf("Location(temp_humidity, ee:02): got %q, %v; want bedroom, true", loc, ok)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeConfig(t, "{not json")
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load: expected error for invalid JSON")
	}
}

func TestLocation_CaseInsensitiveMAC(t *testing.T) {
	path := writeConfig(t, testConfig)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Config stores AA:BB:... uppercase; lookup mixed case should match.
	loc, ok := reg.Location("temp_humidity", "Aa:Bb:Cc:Dd:Ee:01")
	if !ok || loc != "lounge" {
		t.Errorf("Location mixed-case MAC: got %q, %v; want lounge, true", loc, ok)
	}
}

func TestLocation_Unknown(t *testing.T) {
	path := writeConfig(t, testConfig)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := reg.Location("temp_humidity", "ff:ff:ff:ff:ff:ff"); ok {
		t.Error("Location: unknown MAC should not resolve")
	}
	if _, ok := reg.Location("unknown_type", "aa:bb:cc:dd:ee:01"); ok {
		t.Error("Location: unknown sensor type should not resolve")
	}
}

func TestReload(t *testing.T) {
	path := writeConfig(t, testConfig)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	updated := `{"temp_humidity": {"aa:bb:cc:dd:ee:01": "kitchen"}}`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := reg.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	loc, ok := reg.Location("temp_humidity", "aa:bb:cc:dd:ee:01")
	if !ok || loc != "kitchen" {
		t.Errorf("after reload: got %q, %v; want kitchen, true", loc, ok)
	}
	if _, ok := reg.Location("temp_humidity", "aa:bb:cc:dd:ee:02"); ok {
		t.Error("after reload: removed MAC should not resolve")
	}
}

func TestReload_KeepsOldMappingOnError(t *testing.T) {
	path := writeConfig(t, testConfig)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := reg.Reload(); err == nil {
		t.Fatal("Reload: expected error for broken config")
	}

	loc, ok := reg.Location("temp_humidity", "aa:bb:cc:dd:ee:02")
	if !ok || loc != "bedroom" {
		t.Errorf("old mapping lost after failed reload: got %q, %v", loc, ok)
	}
}

func TestSensors_SortedAndLowercased(t *testing.T) {
	path := writeConfig(t, testConfig)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	sensors := reg.Sensors()
	if len(sensors) != 3 {
		t.Fatalf("Sensors: got %d entries, want 3", len(sensors))
	}
	// nano_cell_battery sorts before temp_humidity.
	if sensors[0].Type != "nano_cell_battery" || sensors[0].Location != "lounge" {
		t.Errorf("first entry: got %+v", sensors[0])
	}
	if sensors[1].MAC != "aa:bb:cc:dd:ee:01" || sensors[2].MAC != "aa:bb:cc:dd:ee:02" {
		t.Errorf("temp_humidity entries out of order: %+v, %+v", sensors[1], sensors[2])
	}
	for _, s := range sensors {
		if s.MAC != "aa:bb:cc:dd:ee:01" && s.MAC != "aa:bb:cc:dd:ee:02" {
			t.Errorf("unexpected MAC %q, want lowercase normalized", s.MAC)
		}
	}
}
