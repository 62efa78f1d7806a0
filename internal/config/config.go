package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/loykin/appshell/internal/logger"
)

// DefaultPort is the local port the backend server listens on.
const DefaultPort = 4466

// UpdateConfig identifies the fixed upstream project checked for releases.
type UpdateConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Owner   string `toml:"owner" mapstructure:"owner"`
	Repo    string `toml:"repo" mapstructure:"repo"`
	Token   string `toml:"token" mapstructure:"token"`
}

// Config is the top-level application configuration, loadable from TOML.
type Config struct {
	ResourcesDir string `toml:"resources_dir" mapstructure:"resources_dir"`
	StaticDir    string `toml:"static_dir" mapstructure:"static_dir"`
	Port         int    `toml:"port" mapstructure:"port"`
	Headless     bool   `toml:"headless" mapstructure:"headless"`
	DisableGPU   bool   `toml:"disable_gpu" mapstructure:"disable_gpu"`

	// StoreDSN selects the persisted state backend: a sqlite path (default)
	// or a postgres:// DSN.
	StoreDSN string `toml:"store_dsn" mapstructure:"store_dsn"`

	// HTTPAddr is the headless-mode surface serving /events, /metrics and
	// /healthz to the browser UI.
	HTTPAddr string `toml:"http_addr" mapstructure:"http_addr"`

	LogLevel string `toml:"log_level" mapstructure:"log_level"`
	LogColor bool   `toml:"log_color" mapstructure:"log_color"`

	Update UpdateConfig  `toml:"update" mapstructure:"update"`
	Log    logger.Config `toml:"log" mapstructure:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ResourcesDir: "resources",
		Port:         DefaultPort,
		StoreDSN:     "appshell.db",
		HTTPAddr:     "127.0.0.1:4467",
		LogLevel:     "info",
		LogColor:     true,
		Update: UpdateConfig{
			Enabled: true,
			Owner:   "loykin",
			Repo:    "appshell",
		},
		Log: logger.Config{Dir: "logs"},
	}
}

// LoadFromTOML reads a TOML config file over the defaults.
func LoadFromTOML(path string) (Config, error) {
	cfg := Default()
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	return cfg, nil
}
