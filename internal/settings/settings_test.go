package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() on missing file should not error: %v", err)
	}
	want := Defaults()
	if s != want {
		t.Errorf("Load(missing) = %+v, want defaults %+v", s, want)
	}
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	body := "bus_request_timeout: 2s\nfacade_base_url: \"http://facade:9000\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.BusRequestTimeout != 2*time.Second {
		t.Errorf("BusRequestTimeout = %v, want 2s", s.BusRequestTimeout)
	}
	if s.FacadeBaseURL != "http://facade:9000" {
		t.Errorf("FacadeBaseURL = %q", s.FacadeBaseURL)
	}
	// Untouched fields keep their defaults.
	if s.NetconfConnectTimeout != Defaults().NetconfConnectTimeout {
		t.Errorf("NetconfConnectTimeout = %v, want default", s.NetconfConnectTimeout)
	}
}

func TestLoadOverlaysLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", s.LogLevel)
	}
}

func TestDefaultsLogLevelIsInfo(t *testing.T) {
	if Defaults().LogLevel != "info" {
		t.Errorf("Defaults().LogLevel = %q, want info", Defaults().LogLevel)
	}
}

func TestLoadInvalidYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: : :"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
