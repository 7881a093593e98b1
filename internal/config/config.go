// Package config loads pf-mines settings: built-in defaults, then an optional
// HCL file, then flags and environment applied by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/MJE43/pf-mines/internal/games"
	"github.com/MJE43/pf-mines/internal/ledger"
)

// Config represents the complete service configuration
type Config struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Game    *GameSettings    `hcl:"game,block"`
	Archive *ArchiveSettings `hcl:"archive,block"`
	Ledger  *LedgerSettings  `hcl:"ledger,block"`
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address   string `hcl:"address,optional"`
	Port      int    `hcl:"port,optional"`
	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
}

// GameSettings controls new games and registry eviction. Durations use
// time.ParseDuration syntax.
type GameSettings struct {
	DefaultGridSize  int    `hcl:"default_grid_size,optional"`
	DefaultMineCount int    `hcl:"default_mine_count,optional"`
	IdleTimeout      string `hcl:"idle_timeout,optional"`
	SweepInterval    string `hcl:"sweep_interval,optional"`
}

// ArchiveSettings locates the SQLite archive. An empty path disables it.
type ArchiveSettings struct {
	Path string `hcl:"path,optional"`
}

// LedgerSettings selects the commitment ledger backend.
type LedgerSettings struct {
	Backend       string `hcl:"backend,optional"`
	BoltPath      string `hcl:"bolt_path,optional"`
	RedisAddr     string `hcl:"redis_addr,optional"`
	RedisPassword string `hcl:"redis_password,optional"`
	RedisDB       int    `hcl:"redis_db,optional"`
	Timeout       string `hcl:"timeout,optional"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Game == nil {
		c.Game = &GameSettings{}
	}
	if c.Archive == nil {
		c.Archive = &ArchiveSettings{}
	}
	if c.Ledger == nil {
		c.Ledger = &LedgerSettings{}
	}

	if c.Server.Address == "" {
		c.Server.Address = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "text"
	}
	if c.Game.DefaultGridSize == 0 {
		c.Game.DefaultGridSize = games.DefaultGridSize
	}
	if c.Game.DefaultMineCount == 0 {
		c.Game.DefaultMineCount = games.DefaultMineCount
	}
	if c.Game.IdleTimeout == "" {
		c.Game.IdleTimeout = "30m"
	}
	if c.Game.SweepInterval == "" {
		c.Game.SweepInterval = "1m"
	}
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = ledger.BackendNone
	}
	if c.Ledger.BoltPath == "" {
		c.Ledger.BoltPath = "pf-mines-ledger.db"
	}
	if c.Ledger.RedisAddr == "" {
		c.Ledger.RedisAddr = "localhost:6379"
	}
	if c.Ledger.Timeout == "" {
		c.Ledger.Timeout = "5s"
	}
}

// Load reads filename if it exists and fills in defaults for anything it
// leaves out. A missing file is not an error.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Server.LogLevel)
	}
	switch c.Server.LogFormat {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid log format: %q", c.Server.LogFormat)
	}

	if err := games.ValidateBoard(c.Game.DefaultGridSize, c.Game.DefaultMineCount); err != nil {
		return fmt.Errorf("invalid default board: %w", err)
	}
	for name, value := range map[string]string{
		"game.idle_timeout":   c.Game.IdleTimeout,
		"game.sweep_interval": c.Game.SweepInterval,
		"ledger.timeout":      c.Ledger.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	switch c.Ledger.Backend {
	case ledger.BackendNone:
	case ledger.BackendBolt:
		if c.Ledger.BoltPath == "" {
			return errors.New("ledger.bolt_path is required for the bolt backend")
		}
	case ledger.BackendRedis:
		if c.Ledger.RedisAddr == "" {
			return errors.New("ledger.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown ledger backend: %q", c.Ledger.Backend)
	}
	return nil
}

// ListenAddress returns host:port for the HTTP server.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// IdleTimeout is how long an untouched game stays in the registry.
func (c *Config) IdleTimeout() time.Duration { return mustDuration(c.Game.IdleTimeout) }

// SweepInterval is how often the registry looks for idle games.
func (c *Config) SweepInterval() time.Duration { return mustDuration(c.Game.SweepInterval) }

// LedgerTimeout bounds each ledger write.
func (c *Config) LedgerTimeout() time.Duration { return mustDuration(c.Ledger.Timeout) }

// LedgerConfig converts the ledger block for ledger.Open.
func (c *Config) LedgerConfig() ledger.Config {
	return ledger.Config{
		Backend:       c.Ledger.Backend,
		BoltPath:      c.Ledger.BoltPath,
		RedisAddr:     c.Ledger.RedisAddr,
		RedisPassword: c.Ledger.RedisPassword,
		RedisDB:       c.Ledger.RedisDB,
	}
}

// mustDuration is only called after Validate has accepted the value.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("config: unvalidated duration %q", s))
	}
	return d
}
