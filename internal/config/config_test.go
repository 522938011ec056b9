package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Fatalf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.Game.TickRate != DefaultTickRate {
		t.Fatalf("TickRate = %d, want %d", cfg.Game.TickRate, DefaultTickRate)
	}
	if cfg.Game.MaxAmmo != DefaultMaxAmmo {
		t.Fatalf("MaxAmmo = %d, want %d", cfg.Game.MaxAmmo, DefaultMaxAmmo)
	}
	if cfg.Logging.Compress != DefaultLogCompress {
		t.Fatalf("Logging.Compress = %v, want %v", cfg.Logging.Compress, DefaultLogCompress)
	}
}

func TestLoadHonoursEnvironmentOverrides(t *testing.T) {
	t.Setenv("SKIRMISH_ADDR", ":9999")
	t.Setenv("SKIRMISH_TICK_RATE", "60")
	t.Setenv("SKIRMISH_MAX_AMMO", "5")
	t.Setenv("SKIRMISH_RESPAWN_DELAY", "1500ms")
	t.Setenv("SKIRMISH_LOG_COMPRESS", "false")
	t.Setenv("SKIRMISH_JOIN_RATE_LIMIT", "0")
	t.Setenv("SKIRMISH_JOIN_RATE_WINDOW", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("Addr = %q, want :9999", cfg.Addr)
	}
	if cfg.Game.TickRate != 60 {
		t.Fatalf("TickRate = %d, want 60", cfg.Game.TickRate)
	}
	if cfg.Game.MaxAmmo != 5 {
		t.Fatalf("MaxAmmo = %d, want 5", cfg.Game.MaxAmmo)
	}
	if cfg.Game.RespawnDelay != 1500*time.Millisecond {
		t.Fatalf("RespawnDelay = %v, want 1.5s", cfg.Game.RespawnDelay)
	}
	if cfg.Logging.Compress {
		t.Fatal("Logging.Compress = true, want false")
	}
	if cfg.JoinRateLimit != 0 {
		t.Fatalf("JoinRateLimit = %d, want 0 (disabled)", cfg.JoinRateLimit)
	}
	if cfg.JoinRateWindow != 30*time.Second {
		t.Fatalf("JoinRateWindow = %v, want 30s", cfg.JoinRateWindow)
	}
}

func TestLoadCollectsInvalidOverrides(t *testing.T) {
	t.Setenv("SKIRMISH_TICK_RATE", "zero")
	t.Setenv("SKIRMISH_MAX_FRAME_BYTES", "-1")

	_, err := Load()
	if err == nil {
		t.Fatal("Load accepted invalid overrides")
	}
	message := err.Error()
	if !strings.Contains(message, "SKIRMISH_TICK_RATE") {
		t.Fatalf("error %q does not mention SKIRMISH_TICK_RATE", message)
	}
	if !strings.Contains(message, "SKIRMISH_MAX_FRAME_BYTES") {
		t.Fatalf("error %q does not mention SKIRMISH_MAX_FRAME_BYTES", message)
	}
}

func TestLoadReadsTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.toml")
	contents := `
addr = ":7777"

[game]
arena_width = 1024.0
arena_height = 768.0
tick_rate = 20
bullet_lifetime = "2s"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("SKIRMISH_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != ":7777" {
		t.Fatalf("Addr = %q, want :7777", cfg.Addr)
	}
	if cfg.Game.ArenaWidth != 1024 || cfg.Game.ArenaHeight != 768 {
		t.Fatalf("arena = %vx%v, want 1024x768", cfg.Game.ArenaWidth, cfg.Game.ArenaHeight)
	}
	if cfg.Game.BulletLifetime != 2*time.Second {
		t.Fatalf("BulletLifetime = %v, want 2s", cfg.Game.BulletLifetime)
	}
}

func TestLoadEnvironmentBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.toml")
	if err := os.WriteFile(path, []byte("addr = \":7777\"\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("SKIRMISH_CONFIG", path)
	t.Setenv("SKIRMISH_ADDR", ":6666")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != ":6666" {
		t.Fatalf("Addr = %q, want env override :6666", cfg.Addr)
	}
}

func TestTickIntervalDerivesFromRate(t *testing.T) {
	g := Game{TickRate: 30}
	want := time.Second / 30
	if got := g.TickInterval(); got != want {
		t.Fatalf("TickInterval = %v, want %v", got, want)
	}
	zero := Game{}
	if got := zero.TickInterval(); got != time.Second/DefaultTickRate {
		t.Fatalf("TickInterval fallback = %v, want %v", got, time.Second/DefaultTickRate)
	}
}
