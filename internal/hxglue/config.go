package hxglue

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. HXGLUE_SERVER_ORIGIN.
const EnvPrefix = "HXGLUE_"

type Config struct {
	Server struct {
		Port    int    `yaml:"port" env:"PORT"`
		Origin  string `yaml:"origin" env:"ORIGIN"`
		MaxBody string `yaml:"maxBody" env:"MAX_BODY"`
		Timeout string `yaml:"timeout" env:"TIMEOUT"`
	} `yaml:"server" envPrefix:"SERVER_"`

	Swap struct {
		ScriptPath    string `yaml:"scriptPath" env:"SCRIPT_PATH"`
		Inject        bool   `yaml:"inject" env:"INJECT"`
		RewriteStatus bool   `yaml:"rewriteStatus" env:"REWRITE_STATUS"`
		Helpers       bool   `yaml:"helpers" env:"HELPERS"`
	} `yaml:"swap" envPrefix:"SWAP_"`

	Format struct {
		Location string `yaml:"location" env:"LOCATION"`
	} `yaml:"format" envPrefix:"FORMAT_"`

	Journal struct {
		Path string `yaml:"path" env:"PATH"`
		Max  string `yaml:"max" env:"MAX"`
	} `yaml:"journal" envPrefix:"JOURNAL_"`

	Logging struct {
		Level      string `yaml:"level" env:"LEVEL"`
		StatsEvery string `yaml:"statsEvery" env:"STATS_EVERY"`
	} `yaml:"logging" envPrefix:"LOGGING_"`

	// compiled
	maxBodyBytes    int64
	timeoutDur      time.Duration
	location        *time.Location
	journalMaxBytes int64
	level           zapcore.Level
	statsEveryDur   time.Duration
}

// DefaultConfig returns the settings used for keys absent from both the
// file and the environment.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Port = 8080
	cfg.Server.MaxBody = "10mb"
	cfg.Server.Timeout = "30s"
	cfg.Swap.ScriptPath = "/public/hxglue.js"
	cfg.Swap.Inject = true
	cfg.Swap.Helpers = true
	cfg.Journal.Path = "./data/journal"
	cfg.Journal.Max = "16mb"
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads the YAML file at path (skipped when path is empty),
// applies HXGLUE_* environment overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}

	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) compile() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: out of range: %d", c.Server.Port)
	}

	if c.Server.Origin == "" {
		return errors.New("server.origin is required")
	}
	u, err := url.Parse(c.Server.Origin)
	if err != nil {
		return fmt.Errorf("server.origin: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.origin: unsupported scheme %q", u.Scheme)
	}
	c.Server.Origin = strings.TrimRight(c.Server.Origin, "/")

	if c.maxBodyBytes, err = parseBytes(c.Server.MaxBody); err != nil {
		return fmt.Errorf("server.maxBody: %w", err)
	}
	if c.timeoutDur, err = time.ParseDuration(c.Server.Timeout); err != nil {
		return fmt.Errorf("server.timeout: %w", err)
	}

	if !strings.HasPrefix(c.Swap.ScriptPath, "/") {
		return fmt.Errorf("swap.scriptPath: must start with /, got %q", c.Swap.ScriptPath)
	}
	if strings.HasPrefix(c.Swap.ScriptPath, adminPrefix+"/") {
		return fmt.Errorf("swap.scriptPath: %s is reserved", adminPrefix)
	}

	c.location = time.Local
	if c.Format.Location != "" {
		if c.location, err = time.LoadLocation(c.Format.Location); err != nil {
			return fmt.Errorf("format.location: %w", err)
		}
	}

	if c.Journal.Path == "" {
		return errors.New("journal.path is required")
	}
	if c.journalMaxBytes, err = parseBytes(c.Journal.Max); err != nil {
		return fmt.Errorf("journal.max: %w", err)
	}

	if c.level, err = zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if c.Logging.StatsEvery != "" {
		if c.statsEveryDur, err = time.ParseDuration(c.Logging.StatsEvery); err != nil {
			return fmt.Errorf("logging.statsEvery: %w", err)
		}
	}
	return nil
}

// Level is the configured minimum log level.
func (c Config) Level() zapcore.Level { return c.level }

// Location is the zone the format helpers render in.
func (c Config) Location() *time.Location { return c.location }
