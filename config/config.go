package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk gridcmd configuration.
type Config struct {
	Workbook WorkbookConfig `yaml:"workbook,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Remote   RemoteConfig   `yaml:"remote,omitempty"`
	Dataset  DatasetConfig  `yaml:"dataset,omitempty"`
}

type WorkbookConfig struct {
	Sheet string `yaml:"sheet,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn, error
}

type ServerConfig struct {
	Addr  string `yaml:"addr,omitempty"`
	Token string `yaml:"token,omitempty"`
}

// RemoteConfig points the CLI at a running gridcmd server.
type RemoteConfig struct {
	URL    string `yaml:"url,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

type DatasetConfig struct {
	KeyHeader string `yaml:"key_header,omitempty"`
	Seed      uint64 `yaml:"seed,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info"},
		Server:   ServerConfig{Addr: ":8080"},
		Remote:   RemoteConfig{URL: "http://localhost:8080"},
		Dataset:  DatasetConfig{KeyHeader: "Project Name"},
	}
}

func dir() (string, error) {
	if v := os.Getenv("GRIDCMD_CONFIG_DIR"); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "gridcmd"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gridcmd"), nil
}

// Path returns the location of the config file.
func Path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// Load reads the config file over Default and applies environment overrides.
// A missing file is not an error.
func Load() (Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadFile is Load without environment overrides. Use it before Save so
// values from the environment are not written to disk.
func LoadFile() (Config, error) {
	cfg := Default()
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", p, err)
		}
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GRIDCMD_API_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("GRIDCMD_API_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("GRIDCMD_SHEET"); v != "" {
		c.Workbook.Sheet = v
	}
}

// Save writes the config to disk atomically using a temp file + rename.
func Save(cfg Config) error {
	p, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	// Remove dest first for Windows compat (os.Rename fails if dest exists on Windows).
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// ErrUnknownKey is returned by Set for a key that is not a config field.
var ErrUnknownKey = errors.New("unknown config key")

// Keys lists the dotted keys accepted by Set.
func Keys() []string {
	return []string{
		"workbook.sheet", "log.level", "server.addr", "server.token",
		"remote.url", "remote.api_key", "dataset.key_header", "dataset.seed",
	}
}

// Set assigns a dotted key such as "server.addr".
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "workbook.sheet":
		c.Workbook.Sheet = value
	case "log.level":
		switch value {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", value)
		}
		c.Log.Level = value
	case "server.addr":
		c.Server.Addr = value
	case "server.token":
		c.Server.Token = value
	case "remote.url":
		c.Remote.URL = value
	case "remote.api_key":
		c.Remote.APIKey = value
	case "dataset.key_header":
		c.Dataset.KeyHeader = value
	case "dataset.seed":
		var seed uint64
		if _, err := fmt.Sscan(value, &seed); err != nil {
			return fmt.Errorf("invalid seed %q: %w", value, err)
		}
		c.Dataset.Seed = seed
	default:
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return nil
}
