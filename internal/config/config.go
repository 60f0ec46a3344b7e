package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/fetcher"
	"codeberg.org/mutker/followerctl/internal/metrics"
	"codeberg.org/mutker/followerctl/internal/pid"
	"codeberg.org/mutker/followerctl/internal/store"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = string(LogLevelInfo)

	configName = "followerctl"
	envPrefix  = "FOLLOWERCTL"
)

type Config struct {
	// Interval between passes; zero runs a single pass and exits.
	Interval     time.Duration `mapstructure:"interval"`
	LogLevel     string        `mapstructure:"log_level"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	PIDFile      string        `mapstructure:"pid_file"`
	Store        StoreConfig   `mapstructure:"store"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
	Entities     []Entity      `mapstructure:"entities"`
}

type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	RedisURL  string `mapstructure:"redis_url"`
	BackupDir string `mapstructure:"backup_dir"`
}

type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

// Load reads flags from args, then the config file and FOLLOWERCTL_* environment.
// Flags win over environment, environment over the file.
func Load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	configFile := fs.String("config", "", "Path to the config file")
	fs.Duration("interval", 0, "Interval between passes (0 runs once)")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.String("store-driver", store.DriverSQLite, "State store driver (sqlite, redis, memory)")
	fs.String("store-path", "", "Path of the sqlite state database")
	fs.Bool("metrics", false, "Export Prometheus metrics to a textfile")
	fs.String("metrics-textfile", "", "Path of the Prometheus textfile")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := *configFile
	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath("/etc/followerctl")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "followerctl"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	bindings := map[string]string{
		"interval":         "interval",
		"log_level":        "log-level",
		"store.driver":     "store-driver",
		"store.path":       "store-path",
		"metrics.enabled":  "metrics",
		"metrics.textfile": "metrics-textfile",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", "0s")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("fetch_timeout", fetcher.DefaultTimeout.String())
	v.SetDefault("user_agent", fetcher.DefaultUserAgent)
	v.SetDefault("pid_file", pid.DefaultPath())
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.path", store.DefaultPath())
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.backup_dir", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "")
}

// Validate checks everything that can be checked without touching the network or the store.
func (c *Config) Validate() error {
	errFactory := errors.New()

	level, ok := LogLevel(c.LogLevel).Canonical()
	if !ok {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	c.LogLevel = string(level)
	if c.Interval < 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval.String())
	}
	if c.FetchTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "fetch_timeout must be positive")
	}
	if err := c.StoreConfig().Validate(); err != nil {
		return err
	}
	if err := c.MetricsConfig().Validate(); err != nil {
		return err
	}

	if len(c.Entities) == 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "no entities configured")
	}

	seen := make(map[string]bool, len(c.Entities))
	for i := range c.Entities {
		e := &c.Entities[i]
		if err := e.resolve(); err != nil {
			return err
		}
		if seen[e.Key] {
			return errFactory.WithData(errors.ErrDuplicateEntity, fmt.Sprintf("key %q", e.Key))
		}
		seen[e.Key] = true
	}

	return nil
}

func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:    c.Store.Driver,
		Path:      c.Store.Path,
		RedisURL:  c.Store.RedisURL,
		BackupDir: c.Store.BackupDir,
	}
}

func (c *Config) MetricsConfig() metrics.Config {
	return metrics.Config{
		Enabled:      c.Metrics.Enabled,
		TextfilePath: c.Metrics.Textfile,
	}
}
