package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quarterhour-export/internal/config"
)

const fixture = `# dayKey;slot;pod;measType;value
20240101;01;PODX;0;0.0
20240101;01;PODX;1;12.5
20240101;01;PODA;0;9.0
20240101;01;PODA;1;3.0
20240102;96;PODA;0;4.25
`

func setupMemoryRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.csv")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("QUARTORARIE_SOURCE", config.SourceMemory)
	t.Setenv("QUARTORARIE_FIXTURE", path)
	t.Setenv("QUARTORARIE_OUTPUT_DIR", dir)
	t.Setenv("QUARTORARIE_CONFIG", "")
	return dir
}

func TestRunWritesGrid(t *testing.T) {
	dir := setupMemoryRun(t)
	logger := log.New(io.Discard, "", 0)
	var stderr bytes.Buffer

	code := run(context.Background(), []string{"energy", "plant", "20240101", "20240103"}, logger, &stderr)
	if code != config.ExitOK {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, "plant_energy.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 1+2*96 {
		t.Fatalf("expected %d lines, got %d", 1+2*96, len(lines))
	}
	if lines[0] != "MEASYM_MEASDD_MEASTYPE;PODA;PODX;" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "2024-01-01 00:00;9.0_0;12.5_1;" {
		t.Fatalf("first row = %q", lines[1])
	}
	if lines[2] != "2024-01-01 00:15;;;" {
		t.Fatalf("second row = %q", lines[2])
	}
	if lines[192] != "2024-01-02 23:45;4.25_0;;" {
		t.Fatalf("last row = %q", lines[192])
	}
}

func TestRunReplacesExistingFile(t *testing.T) {
	dir := setupMemoryRun(t)
	target := filepath.Join(dir, "plant_energy.csv")
	if err := os.WriteFile(target, []byte("stale\n"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}
	code := run(context.Background(), []string{"energy", "plant", "20240101", "20240102"}, log.New(io.Discard, "", 0), io.Discard)
	if code != config.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.Contains(string(data), "stale") {
		t.Fatalf("stale content kept")
	}
}

func TestRunExitCodes(t *testing.T) {
	setupMemoryRun(t)
	logger := log.New(io.Discard, "", 0)

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"usage", []string{"energy", "plant", "20240101"}, config.ExitUsage},
		{"bad date", []string{"energy", "plant", "2024-01-01", "20240102"}, config.ExitDateFormat},
		{"no columns", []string{"energy", "plant", "20240110", "20240112"}, config.ExitNoData},
		{"empty range", []string{"energy", "plant", "20240105", "20240105"}, config.ExitNoData},
	}
	for _, tc := range cases {
		if got := run(context.Background(), tc.args, logger, io.Discard); got != tc.want {
			t.Fatalf("%s: exit code = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestRunMissingConfiguration(t *testing.T) {
	t.Setenv("QUARTORARIE_SOURCE", config.SourceMongo)
	t.Setenv("QUARTORARIE_MONGODB_URI", "")
	t.Setenv("QUARTORARIE_MONGODB_HOST", "")
	t.Setenv("QUARTORARIE_MONGODB_DATABASE", "")
	t.Setenv("QUARTORARIE_CONFIG", "")
	code := run(context.Background(), []string{"energy", "plant", "20240101", "20240102"}, log.New(io.Discard, "", 0), io.Discard)
	if code != config.ExitConfiguration {
		t.Fatalf("exit code = %d, want %d", code, config.ExitConfiguration)
	}
}
