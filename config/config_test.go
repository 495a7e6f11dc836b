package config

import (
	"os"
	"path/filepath"
	"testing"
)

func withTempCwd(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	withTempCwd(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.Port)
	}

	if _, err := os.Stat(filepath.Join(Dir, FileName)); err != nil {
		t.Fatalf("expected Load to have written the config file: %v", err)
	}
}

func TestLoadReadsExistingFile(t *testing.T) {
	withTempCwd(t)

	if err := Save(Config{Port: 9000}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Port)
	}
}
