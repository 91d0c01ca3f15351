package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "10000" {
		t.Fatalf("port = %q, want 10000", cfg.Port)
	}
	if cfg.Delivery.CeilingBytes() != 50*1024*1024 {
		t.Fatalf("ceiling = %d", cfg.Delivery.CeilingBytes())
	}
	if cfg.Delivery.TargetBytes() != 51380224 {
		t.Fatalf("target = %d, want 51380224", cfg.Delivery.TargetBytes())
	}
	if !slices.Equal(cfg.Quality.Ladder, []int{144, 240, 360, 480, 720, 1080}) {
		t.Fatalf("ladder = %v", cfg.Quality.Ladder)
	}
	if cfg.Quality.Timeout != 60*time.Second || cfg.Download.Timeout != 180*time.Second {
		t.Fatalf("timeouts = %v / %v", cfg.Quality.Timeout, cfg.Download.Timeout)
	}
	if cfg.Transcode.AudioKbps != 64 {
		t.Fatalf("audio kbps = %d", cfg.Transcode.AudioKbps)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level from file not applied: %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("OWNER_ID", "42")
	t.Setenv("SUDO_USERS", "7,8")
	t.Setenv("GOYTBOT_DELIVERY_MARGIN_MB", "2")
	t.Setenv("GOYTBOT_BATCH_ITEM_PAUSE", "500ms")

	cfg, err := Load(writeConfig(t, "port: \"8080\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.OwnerID != 42 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if !slices.Equal(cfg.Telegram.SudoUsers, []int64{7, 8}) {
		t.Fatalf("sudo users = %v", cfg.Telegram.SudoUsers)
	}
	if cfg.Delivery.MarginMB != 2 {
		t.Fatalf("margin = %v", cfg.Delivery.MarginMB)
	}
	if cfg.Batch.ItemPause != 500*time.Millisecond {
		t.Fatalf("item pause = %v", cfg.Batch.ItemPause)
	}
	if err := cfg.ValidateBot(); err != nil {
		t.Fatalf("ValidateBot: %v", err)
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"margin larger than limit", "delivery:\n  size_limit_mb: 10\n  margin_mb: 10\n"},
		{"unknown driver", "store:\n  driver: mysql\n"},
		{"pgx without dsn", "store:\n  driver: pgx\n"},
		{"bad ladder", "quality:\n  ladder: [0, 360]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateBotReportsMissing(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateBot(); err == nil {
		t.Fatal("expected missing token/owner error")
	}
}

func TestLoadSudoUsersList(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []int64
	}{
		{name: "spaces", env: "7, 8", want: []int64{7, 8}},
		{name: "malformed id skipped", env: "7,x", want: []int64{7}},
		{name: "blank entries", env: " 7,, 9 ,", want: []int64{7, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SUDO_USERS", tt.env)

			cfg, err := Load(writeConfig(t, "port: \"8080\"\n"))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !slices.Equal(cfg.Telegram.SudoUsers, tt.want) {
				t.Fatalf("sudo users = %v, want %v", cfg.Telegram.SudoUsers, tt.want)
			}
		})
	}
}
