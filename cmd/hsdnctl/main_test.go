package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestQueueCmdPostsJoinedWordsToFacade(t *testing.T) {
	var gotPath string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	settingsPath := filepath.Join(t.TempDir(), "settings.yaml")
	contents := "facade_base_url: \"" + srv.URL + "\"\n"
	if err := os.WriteFile(settingsPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cmd := newQueueCmd()
	cmd.SetArgs([]string{"--settings", settingsPath, "policy", "new", "disable", "r1", "eth0"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if gotPath != "/queue" {
		t.Errorf("path = %q, want /queue", gotPath)
	}
	if gotBody != "policy new disable r1 eth0" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestQueueCmdRequiresAtLeastOneWord(t *testing.T) {
	cmd := newQueueCmd()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Error("expected an error with no command words")
	}
}
