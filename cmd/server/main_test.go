package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != Version {
		t.Errorf("got %q, want %q", out.String(), Version)
	}
}

func TestDashboardCommandWithBoltCache(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CACHE_BACKEND", "bolt")
	t.Setenv("CACHE_DATA_DIR", dir+"/cache")
	t.Setenv("DATABASE_PATH", dir+"/sightings.db")
	t.Setenv("LOG_LEVEL", "error")

	cmd := dashboardCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), `"visitors_this_hour": 0`) {
		t.Errorf("unexpected output: %s", out.String())
	}
	if !strings.Contains(out.String(), `"top_3_manufacturers": []`) {
		t.Errorf("empty manufacturer list expected: %s", out.String())
	}
}
