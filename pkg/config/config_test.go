package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	r, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r.Int("EPICS_CA_CONN_TMO", -1) != 30 {
		t.Errorf("EPICS_CA_CONN_TMO = %d, want 30", r.Int("EPICS_CA_CONN_TMO", -1))
	}
	if !r.Bool("EPICS_CA_AUTO_ADDR_LIST", false) {
		t.Error("EPICS_CA_AUTO_ADDR_LIST default should be true")
	}
	if r.String("CA_MONITOR_NOTIFIER_IMPL", "") != "multi-worker,16" {
		t.Errorf("CA_MONITOR_NOTIFIER_IMPL = %q", r.String("CA_MONITOR_NOTIFIER_IMPL", ""))
	}
}

func TestLoadOverridesBeatDefaults(t *testing.T) {
	r, err := Load("", Properties{"EPICS_CA_CONN_TMO": "5"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r.Int("EPICS_CA_CONN_TMO", -1) != 5 {
		t.Errorf("EPICS_CA_CONN_TMO = %d, want 5", r.Int("EPICS_CA_CONN_TMO", -1))
	}
}

func TestLoadYAMLOverlayBeatsDefaultsButNotOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ca.yaml")
	contents := "EPICS_CA_CONN_TMO: 9\nEPICS_CA_BEACON_PERIOD: 3\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	r, err := Load(path, Properties{"EPICS_CA_BEACON_PERIOD": "1"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if r.Int("EPICS_CA_CONN_TMO", -1) != 9 {
		t.Errorf("EPICS_CA_CONN_TMO = %d, want 9 from file overlay", r.Int("EPICS_CA_CONN_TMO", -1))
	}
	if r.Int("EPICS_CA_BEACON_PERIOD", -1) != 1 {
		t.Errorf("EPICS_CA_BEACON_PERIOD = %d, want 1 from explicit override", r.Int("EPICS_CA_BEACON_PERIOD", -1))
	}
}

func TestStringListSplitsOnWhitespace(t *testing.T) {
	r, err := Load("", Properties{"EPICS_CA_ADDR_LIST": "10.0.0.1 10.0.0.2:5999"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := r.StringList("EPICS_CA_ADDR_LIST")
	if len(got) != 2 || got[0] != "10.0.0.1" || got[1] != "10.0.0.2:5999" {
		t.Errorf("StringList() = %v", got)
	}
}
