package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cellrun.cfg")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestDefaultMatchesDataModelKnobs(t *testing.T) {
	cfg := Default()
	if cfg.Quantum != time.Millisecond {
		t.Fatalf("default quantum: got %v want 1ms", cfg.Quantum)
	}
	if cfg.MaxCyclesPerFrame != 100_000 {
		t.Fatalf("default max_cycles_per_frame: got %d want 100000", cfg.MaxCyclesPerFrame)
	}
	if cfg.FrameInterval() != time.Second/60 {
		t.Fatalf("default frame interval: got %v want 1/60s", cfg.FrameInterval())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
# cellrun configuration
quantum 2ms
max_cycles_per_frame 50000
frame_rate 30
workers 4
spu_count 4
logfile "/tmp/cellrun.log"
loglevel debug
debugconsole
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Quantum != 2*time.Millisecond {
		t.Fatalf("quantum: got %v want 2ms", cfg.Quantum)
	}
	if cfg.MaxCyclesPerFrame != 50_000 {
		t.Fatalf("max_cycles_per_frame: got %d", cfg.MaxCyclesPerFrame)
	}
	if cfg.FrameRate != 30 {
		t.Fatalf("frame_rate: got %d", cfg.FrameRate)
	}
	if cfg.Workers != 4 || cfg.SPUCount != 4 {
		t.Fatalf("workers/spu_count: got %d/%d", cfg.Workers, cfg.SPUCount)
	}
	if cfg.LogPath != "/tmp/cellrun.log" {
		t.Fatalf("logfile: got %q", cfg.LogPath)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("loglevel: got %v", cfg.LogLevel)
	}
	if !cfg.DebugConsole {
		t.Fatalf("expected debugconsole to be enabled")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := writeTempConfig(t, "bogus_setting 1\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestLoadRejectsMalformedInteger(t *testing.T) {
	path := writeTempConfig(t, "workers four\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed integer")
	}
}

func TestLoadIgnoresCommentsAndBlankLines(t *testing.T) {
	path := writeTempConfig(t, "\n   \n# just a comment\nworkers 3 # trailing comment\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 3 {
		t.Fatalf("workers: got %d want 3", cfg.Workers)
	}
}
