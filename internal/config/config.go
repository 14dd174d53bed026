// Package config loads sidestack's settings from a YAML file, SIDESTACK_*
// environment variables and command-line overrides, in increasing priority.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/lotas/sidestack/internal/bridge"
	"github.com/lotas/sidestack/internal/tabops"
)

// Host kinds accepted by the host key.
const (
	HostWebSocket = "ws"
	HostCDP       = "cdp"
	HostFirefox   = "firefox"
	HostDemo      = "demo"
)

// EnvPrefix prefixes environment overrides: SIDESTACK_PORT, SIDESTACK_CDP_URL...
const EnvPrefix = "SIDESTACK"

// DefaultPort is where the bridge listens for the extension.
const DefaultPort = 19292

// Config is the resolved configuration.
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	CDPURL         string        `mapstructure:"cdp_url"`
	FirefoxProfile string        `mapstructure:"firefox_profile"`
	DBPath         string        `mapstructure:"db_path"`
	LogDir         string        `mapstructure:"log_dir"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Window         int           `mapstructure:"window"`
	GroupIgnore    []string      `mapstructure:"group_ignore"`
}

// fileConfig is the on-disk shape written by WriteDefault.
type fileConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	CDPURL         string   `yaml:"cdp_url"`
	FirefoxProfile string   `yaml:"firefox_profile"`
	DBPath         string   `yaml:"db_path"`
	LogDir         string   `yaml:"log_dir"`
	RequestTimeout string   `yaml:"request_timeout"`
	Window         int      `yaml:"window"`
	GroupIgnore    []string `yaml:"group_ignore"`
}

// Default returns the built-in configuration. Empty paths resolve to the
// storage and log defaults at startup.
func Default() Config {
	return Config{
		Host:           HostWebSocket,
		Port:           DefaultPort,
		CDPURL:         "ws://127.0.0.1:9222",
		RequestTimeout: bridge.DefaultTimeout,
	}
}

// DefaultPath returns ~/.config/sidestack/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sidestack", "config.yaml"), nil
}

// Load reads the config file at path, or DefaultPath when path is empty.
// A missing default file is not an error; a missing explicit file is.
// overrides are applied last, keyed like the file (e.g. "port").
func Load(path string, overrides map[string]any) (Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	cfg := Default()
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("cdp_url", cfg.CDPURL)
	v.SetDefault("firefox_profile", cfg.FirefoxProfile)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("log_dir", cfg.LogDir)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("window", cfg.Window)
	v.SetDefault("group_ignore", []string{})

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if explicit {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.LogDir = expandHome(cfg.LogDir)
	cfg.FirefoxProfile = expandHome(cfg.FirefoxProfile)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Host {
	case HostWebSocket, HostCDP, HostFirefox, HostDemo:
	default:
		return fmt.Errorf("unsupported host %q (want ws, cdp, firefox or demo)", c.Host)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Host == HostCDP && c.CDPURL == "" {
		return fmt.Errorf("cdp_url is required for host cdp")
	}
	if _, err := c.Ignore(); err != nil {
		return err
	}
	return nil
}

// Ignore compiles the group_ignore host patterns. Patterns use '.' as the
// separator, so "*.google.com" matches one subdomain level.
func (c Config) Ignore() ([]glob.Glob, error) {
	patterns := make([]string, 0, len(c.GroupIgnore))
	for _, p := range c.GroupIgnore {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return tabops.CompileIgnore(patterns)
}

// WriteDefault writes the default config to path, or DefaultPath when path
// is empty, and returns the path written.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = p
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	d := Default()
	data, err := yaml.Marshal(fileConfig{
		Host:           d.Host,
		Port:           d.Port,
		CDPURL:         d.CDPURL,
		RequestTimeout: d.RequestTimeout.String(),
		GroupIgnore:    []string{},
	})
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}
