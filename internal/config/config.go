package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// DefaultAddr is the default TCP address the game server listens on.
	DefaultAddr = ":5555"
	// DefaultOpsAddr is the default HTTP address for the ops surface and the
	// WebSocket gateway.
	DefaultOpsAddr = ":8080"
	// DefaultMaxFrameBytes limits inbound wire frame size.
	DefaultMaxFrameBytes int64 = 64 << 10
	// DefaultMaxClients bounds concurrent connections. Zero disables the limit.
	DefaultMaxClients = 64
	// DefaultAcceptPollInterval bounds how long the accept loop blocks before
	// re-checking the shutdown flag.
	DefaultAcceptPollInterval = 100 * time.Millisecond
	// DefaultWriteTimeout bounds a single snapshot write so one stalled peer
	// cannot hold a writer goroutine indefinitely.
	DefaultWriteTimeout = 2 * time.Second
	// DefaultOutboundQueueSize is the per-connection snapshot queue depth.
	DefaultOutboundQueueSize = 32
	// DefaultJoinRateLimit caps handshakes per sliding window. Zero disables
	// the limiter.
	DefaultJoinRateLimit = 30
	// DefaultJoinRateWindow is the sliding window for the join limiter.
	DefaultJoinRateWindow = 10 * time.Second

	// DefaultLogLevel controls verbosity for server logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "arena.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Arena gameplay defaults. Every value can be overridden through the
// environment or the optional TOML file.
const (
	DefaultArenaWidth      = 800.0
	DefaultArenaHeight     = 600.0
	DefaultPlayerRadius    = 20.0
	DefaultBulletRadius    = 5.0
	DefaultBoxRadius       = 10.0
	DefaultPlayerSpeed     = 200.0
	DefaultBulletSpeed     = 400.0
	DefaultBulletLifetime  = 3 * time.Second
	DefaultBoxLifetime     = 10 * time.Second
	DefaultBoxIntervalMin  = 5 * time.Second
	DefaultBoxIntervalMax  = 10 * time.Second
	DefaultTickRate        = 30
	DefaultRespawnDelay    = 3 * time.Second
	DefaultMaxAmmo         = 10
)

// Game captures the simulation tunables shared by the entity model and the
// tick scheduler.
type Game struct {
	ArenaWidth     float64
	ArenaHeight    float64
	PlayerRadius   float64
	BulletRadius   float64
	BoxRadius      float64
	PlayerSpeed    float64
	BulletSpeed    float64
	BulletLifetime time.Duration
	BoxLifetime    time.Duration
	BoxIntervalMin time.Duration
	BoxIntervalMax time.Duration
	TickRate       int
	RespawnDelay   time.Duration
	MaxAmmo        int
}

// TickInterval derives the fixed simulation step from the tick rate.
func (g Game) TickInterval() time.Duration {
	if g.TickRate <= 0 {
		return time.Second / DefaultTickRate
	}
	return time.Duration(float64(time.Second) / float64(g.TickRate))
}

// Logging captures structured logging configuration options.
type Logging struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config captures all runtime tunables for the arena server.
type Config struct {
	Addr               string
	OpsAddr            string
	MaxFrameBytes      int64
	MaxClients         int
	AcceptPollInterval time.Duration
	WriteTimeout       time.Duration
	OutboundQueueSize  int
	JoinRateLimit      int
	JoinRateWindow     time.Duration
	Game               Game
	Logging            Logging
}

// fileConfig mirrors the optional TOML override file. Only fields present in
// the file are applied, so zero values mean "keep the default".
type fileConfig struct {
	Addr    string `toml:"addr"`
	OpsAddr string `toml:"ops_addr"`

	Game struct {
		ArenaWidth     float64 `toml:"arena_width"`
		ArenaHeight    float64 `toml:"arena_height"`
		PlayerRadius   float64 `toml:"player_radius"`
		BulletRadius   float64 `toml:"bullet_radius"`
		BoxRadius      float64 `toml:"box_radius"`
		PlayerSpeed    float64 `toml:"player_speed"`
		BulletSpeed    float64 `toml:"bullet_speed"`
		BulletLifetime string  `toml:"bullet_lifetime"`
		BoxLifetime    string  `toml:"box_lifetime"`
		BoxIntervalMin string  `toml:"box_interval_min"`
		BoxIntervalMax string  `toml:"box_interval_max"`
		TickRate       int     `toml:"tick_rate"`
		RespawnDelay   string  `toml:"respawn_delay"`
		MaxAmmo        int     `toml:"max_ammo"`
	} `toml:"game"`

	Logging struct {
		Level string `toml:"level"`
		Path  string `toml:"path"`
	} `toml:"logging"`
}

// Load reads the server configuration from the optional TOML file named by
// SKIRMISH_CONFIG and then from environment variables, applying sane defaults
// and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:               DefaultAddr,
		OpsAddr:            DefaultOpsAddr,
		MaxFrameBytes:      DefaultMaxFrameBytes,
		MaxClients:         DefaultMaxClients,
		AcceptPollInterval: DefaultAcceptPollInterval,
		WriteTimeout:       DefaultWriteTimeout,
		OutboundQueueSize:  DefaultOutboundQueueSize,
		JoinRateLimit:      DefaultJoinRateLimit,
		JoinRateWindow:     DefaultJoinRateWindow,
		Game: Game{
			ArenaWidth:     DefaultArenaWidth,
			ArenaHeight:    DefaultArenaHeight,
			PlayerRadius:   DefaultPlayerRadius,
			BulletRadius:   DefaultBulletRadius,
			BoxRadius:      DefaultBoxRadius,
			PlayerSpeed:    DefaultPlayerSpeed,
			BulletSpeed:    DefaultBulletSpeed,
			BulletLifetime: DefaultBulletLifetime,
			BoxLifetime:    DefaultBoxLifetime,
			BoxIntervalMin: DefaultBoxIntervalMin,
			BoxIntervalMax: DefaultBoxIntervalMax,
			TickRate:       DefaultTickRate,
			RespawnDelay:   DefaultRespawnDelay,
			MaxAmmo:        DefaultMaxAmmo,
		},
		Logging: Logging{
			Level:      DefaultLogLevel,
			Path:       DefaultLogPath,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if path := strings.TrimSpace(os.Getenv("SKIRMISH_CONFIG")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			problems = append(problems, err.Error())
		}
	}

	cfg.Addr = getString("SKIRMISH_ADDR", cfg.Addr)
	cfg.OpsAddr = getString("SKIRMISH_OPS_ADDR", cfg.OpsAddr)
	cfg.Logging.Level = getString("SKIRMISH_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Path = getString("SKIRMISH_LOG_PATH", cfg.Logging.Path)

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_MAX_FRAME_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_MAX_FRAME_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxFrameBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_MAX_CLIENTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_WRITE_TIMEOUT")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_WRITE_TIMEOUT must be a positive duration, got %q", raw))
		} else {
			cfg.WriteTimeout = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_QUEUE_SIZE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_QUEUE_SIZE must be a positive integer, got %q", raw))
		} else {
			cfg.OutboundQueueSize = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_JOIN_RATE_LIMIT")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_JOIN_RATE_LIMIT must be a non-negative integer, got %q", raw))
		} else {
			cfg.JoinRateLimit = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_JOIN_RATE_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_JOIN_RATE_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.JoinRateWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_TICK_RATE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_TICK_RATE must be a positive integer, got %q", raw))
		} else {
			cfg.Game.TickRate = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_MAX_AMMO")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_MAX_AMMO must be a positive integer, got %q", raw))
		} else {
			cfg.Game.MaxAmmo = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_RESPAWN_DELAY")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_RESPAWN_DELAY must be a positive duration, got %q", raw))
		} else {
			cfg.Game.RespawnDelay = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SKIRMISH_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SKIRMISH_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("SKIRMISH_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	problems = append(problems, validateGame(cfg.Game)...)

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// applyFile overlays values from a TOML file onto the configuration.
func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("SKIRMISH_CONFIG: %v", err)
	}
	var file fileConfig
	if err := toml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("SKIRMISH_CONFIG: parse %s: %v", path, err)
	}

	if file.Addr != "" {
		cfg.Addr = file.Addr
	}
	if file.OpsAddr != "" {
		cfg.OpsAddr = file.OpsAddr
	}
	if file.Logging.Level != "" {
		cfg.Logging.Level = file.Logging.Level
	}
	if file.Logging.Path != "" {
		cfg.Logging.Path = file.Logging.Path
	}

	g := &cfg.Game
	if file.Game.ArenaWidth > 0 {
		g.ArenaWidth = file.Game.ArenaWidth
	}
	if file.Game.ArenaHeight > 0 {
		g.ArenaHeight = file.Game.ArenaHeight
	}
	if file.Game.PlayerRadius > 0 {
		g.PlayerRadius = file.Game.PlayerRadius
	}
	if file.Game.BulletRadius > 0 {
		g.BulletRadius = file.Game.BulletRadius
	}
	if file.Game.BoxRadius > 0 {
		g.BoxRadius = file.Game.BoxRadius
	}
	if file.Game.PlayerSpeed > 0 {
		g.PlayerSpeed = file.Game.PlayerSpeed
	}
	if file.Game.BulletSpeed > 0 {
		g.BulletSpeed = file.Game.BulletSpeed
	}
	if file.Game.TickRate > 0 {
		g.TickRate = file.Game.TickRate
	}
	if file.Game.MaxAmmo > 0 {
		g.MaxAmmo = file.Game.MaxAmmo
	}

	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{file.Game.BulletLifetime, "game.bullet_lifetime", &g.BulletLifetime},
		{file.Game.BoxLifetime, "game.box_lifetime", &g.BoxLifetime},
		{file.Game.BoxIntervalMin, "game.box_interval_min", &g.BoxIntervalMin},
		{file.Game.BoxIntervalMax, "game.box_interval_max", &g.BoxIntervalMax},
		{file.Game.RespawnDelay, "game.respawn_delay", &g.RespawnDelay},
	}
	for _, entry := range durations {
		if entry.raw == "" {
			continue
		}
		duration, err := time.ParseDuration(entry.raw)
		if err != nil || duration <= 0 {
			return fmt.Errorf("SKIRMISH_CONFIG: %s must be a positive duration, got %q", entry.name, entry.raw)
		}
		*entry.dst = duration
	}
	return nil
}

// validateGame checks cross-field gameplay constraints.
func validateGame(g Game) []string {
	var problems []string
	if g.ArenaWidth <= 2*g.PlayerRadius || g.ArenaHeight <= 2*g.PlayerRadius {
		problems = append(problems, "arena dimensions must exceed the player diameter")
	}
	if g.PlayerRadius <= 0 || g.BulletRadius <= 0 || g.BoxRadius <= 0 {
		problems = append(problems, "entity radii must be positive")
	}
	if g.PlayerSpeed <= 0 || g.BulletSpeed <= 0 {
		problems = append(problems, "movement speeds must be positive")
	}
	if g.BoxIntervalMin > g.BoxIntervalMax {
		problems = append(problems, "game.box_interval_min must not exceed game.box_interval_max")
	}
	return problems
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
