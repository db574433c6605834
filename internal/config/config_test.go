package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, k := range []string{"PORT", "LOG_LEVEL", "DATA_DIR", "DOWNLOAD_DIR", "MAX_CONCURRENT", "FETCH_TIMEOUT", "MAX_BODY_SIZE", "MAX_BATCH_SIZE", "VIEWER_COMMAND"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "46644" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8", cfg.MaxConcurrent)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	if cfg.MaxBodyBytes != 64<<20 {
		t.Errorf("MaxBodyBytes = %d", cfg.MaxBodyBytes)
	}
	if cfg.DownloadDir != "./downloads" || cfg.DataDir != "./data" {
		t.Errorf("dirs = %q %q", cfg.DownloadDir, cfg.DataDir)
	}
	if cfg.ViewerCommand != "" {
		t.Errorf("ViewerCommand = %q, want empty", cfg.ViewerCommand)
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "PORT=9000\nLOG_LEVEL=debug\nMAX_CONCURRENT=2\nFETCH_TIMEOUT=5s\nMAX_BODY_SIZE=1 MB\nDOWNLOAD_DIR=/srv/zup\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", envFile)
	for _, k := range []string{"PORT", "LOG_LEVEL", "MAX_CONCURRENT", "FETCH_TIMEOUT", "MAX_BODY_SIZE", "DOWNLOAD_DIR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9000" || cfg.MaxConcurrent != 2 || cfg.DownloadDir != "/srv/zup" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.FetchTimeout != 5*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	if cfg.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d", cfg.MaxBodyBytes)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	t.Setenv("MAX_BODY_SIZE", "lots")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for bad MAX_BODY_SIZE")
	}

	t.Setenv("MAX_BODY_SIZE", "1 MB")
	t.Setenv("MAX_CONCURRENT", "0")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for MAX_CONCURRENT=0")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
