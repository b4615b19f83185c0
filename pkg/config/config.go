// Package config loads numberhub settings from a config file, NUMBERHUB_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lemonberrylabs/numberhub/pkg/stdlib"
)

// EnvPrefix is prepended to every environment variable, e.g.
// NUMBERHUB_SERVER_PORT for server.port.
const EnvPrefix = "NUMBERHUB"

// Config is the full runtime configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Calc    CalcConfig    `mapstructure:"calc"`
	Store   StoreConfig   `mapstructure:"store"`
	Rates   RatesConfig   `mapstructure:"rates"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds listener settings.
type ServerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the REST listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCAddr returns the gRPC listen address.
func (s ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// CalcConfig holds evaluator defaults.
type CalcConfig struct {
	Precision int    `mapstructure:"precision"`
	AngleMode string `mapstructure:"angle_mode"`
}

// Angle parses AngleMode.
func (c CalcConfig) Angle() (stdlib.AngleMode, error) {
	return stdlib.ParseAngleMode(c.AngleMode)
}

// StoreConfig selects the usage repository.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// RatesConfig points at the exchange rate file and its disk cache.
type RatesConfig struct {
	File  string `mapstructure:"file"`
	Cache string `mapstructure:"cache"`
}

// LoggingConfig controls the default slog logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8787)
	v.SetDefault("server.grpc_port", 8788)
	v.SetDefault("calc.precision", 10)
	v.SetDefault("calc.angle_mode", "rad")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.path", defaultDataPath("numberhub.db"))
	v.SetDefault("rates.file", "")
	v.SetDefault("rates.cache", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".local", "share", "numberhub", name)
}

// BindFlags binds the flags that exist in fs to their keys. Flags that are
// not defined are skipped so that subcommands can share one binding table.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"server.host":      "host",
		"server.port":      "port",
		"server.grpc_port": "grpc-port",
		"calc.precision":   "precision",
		"calc.angle_mode":  "angle",
		"store.driver":     "store",
		"store.path":       "store-path",
		"rates.file":       "rates-file",
		"rates.cache":      "rates-cache",
		"logging.level":    "log-level",
		"logging.format":   "log-format",
	}
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// Load reads cfgFile (or config.yaml from $HOME/.config/numberhub and the
// working directory when cfgFile is empty), overlays the environment and
// returns the validated result. A missing default config file is fine; a
// missing explicit one is not.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "numberhub"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port out of range: %d", c.Server.GRPCPort)
	}
	if c.Calc.Precision < 0 || c.Calc.Precision > 1000 {
		return fmt.Errorf("calc.precision must be between 0 and 1000, got %d", c.Calc.Precision)
	}
	if _, err := c.Calc.Angle(); err != nil {
		return fmt.Errorf("calc.angle_mode: %w", err)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid store.driver: %s", c.Store.Driver)
	}
	if _, err := c.Logging.slogLevel(); err != nil {
		return err
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

func (l LoggingConfig) slogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", l.Level)
}

// NewLogger builds a logger writing to w: console selects the text
// handler, json the JSON handler.
func (l LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.slogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch l.Format {
	case "console", "":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", l.Format)
	}
	return slog.New(handler), nil
}
