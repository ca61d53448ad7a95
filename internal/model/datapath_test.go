package model

import (
	"path/filepath"
	"testing"
)

func TestDatapathLabelMapAllocatesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdn.txt")

	m, err := LoadDatapathLabelMap(path)
	if err != nil {
		t.Fatalf("LoadDatapathLabelMap: %v", err)
	}

	label1, err := m.Label(0x1)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if label1 != "S0" {
		t.Errorf("first label = %q, want S0", label1)
	}

	// Same dpid returns the same label, no duplicate append.
	again, err := m.Label(0x1)
	if err != nil || again != label1 {
		t.Errorf("Label(dpid) second call = (%q, %v), want (%q, nil)", again, err, label1)
	}

	label2, err := m.Label(0x2)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if label2 != "S1" {
		t.Errorf("second label = %q, want S1", label2)
	}
	m.Close()

	// Reload from disk and confirm both the mapping and the allocation
	// cursor survive a restart.
	reloaded, err := LoadDatapathLabelMap(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer reloaded.Close()

	if got, _ := reloaded.Label(0x1); got != "S0" {
		t.Errorf("reloaded Label(0x1) = %q, want S0", got)
	}
	label3, err := reloaded.Label(0x3)
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if label3 != "S2" {
		t.Errorf("new datapath after reload = %q, want S2 (continuing from nextSeq)", label3)
	}
}

func TestDatapathLabelMapRenamePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdn.txt")
	m, err := LoadDatapathLabelMap(path)
	if err != nil {
		t.Fatalf("LoadDatapathLabelMap: %v", err)
	}
	if _, err := m.Label(0x1); err != nil {
		t.Fatalf("Label: %v", err)
	}

	changed, err := m.Rename("S0", "S0new")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if !changed {
		t.Fatal("expected Rename to report a change")
	}
	if got, _ := m.Label(0x1); got != "S0new" {
		t.Errorf("Label(0x1) after rename = %q, want S0new", got)
	}
	m.Close()

	reloaded, err := LoadDatapathLabelMap(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer reloaded.Close()
	if got, _ := reloaded.Label(0x1); got != "S0new" {
		t.Errorf("reloaded Label(0x1) = %q, want S0new to survive restart", got)
	}
}

func TestDatapathLabelMapRenameUnknownLabelReturnsFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdn.txt")
	m, err := LoadDatapathLabelMap(path)
	if err != nil {
		t.Fatalf("LoadDatapathLabelMap: %v", err)
	}
	defer m.Close()

	changed, err := m.Rename("ghost", "ghost2")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if changed {
		t.Error("expected no change for an unknown label")
	}
}
