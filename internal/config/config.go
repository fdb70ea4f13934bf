// Package config loads daemon settings with defaults and boundary
// clamping. The core consumes configuration as an explicit struct; it
// never reads global state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	MinRefreshIntervalSeconds = 30
	MaxRefreshIntervalSeconds = 300

	MinDebounceMillis = 50
	MaxDebounceMillis = 5000
)

type Config struct {
	RefreshIntervalSeconds int      `json:"refresh_interval_seconds"`
	DebounceMillis         int      `json:"debounce_millis"`
	HTTPTimeoutSeconds     int      `json:"http_timeout_seconds"`
	LogDirs                []string `json:"log_dirs,omitempty"`
	HistoryDBPath          string   `json:"history_db_path,omitempty"`
	Verbose                bool     `json:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		RefreshIntervalSeconds: 60,
		DebounceMillis:         300,
		HTTPTimeoutSeconds:     15,
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "claudeusage")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "claudeusage")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading settings: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("config: parsing settings %s: %w", path, err)
	}

	return cfg.Clamped(), nil
}

// Clamped enforces the boundary rules: refresh interval 30-300s,
// debounce 50-5000ms, positive HTTP timeout.
func (c Config) Clamped() Config {
	if c.RefreshIntervalSeconds < MinRefreshIntervalSeconds {
		c.RefreshIntervalSeconds = MinRefreshIntervalSeconds
	}
	if c.RefreshIntervalSeconds > MaxRefreshIntervalSeconds {
		c.RefreshIntervalSeconds = MaxRefreshIntervalSeconds
	}
	if c.DebounceMillis < MinDebounceMillis {
		c.DebounceMillis = MinDebounceMillis
	}
	if c.DebounceMillis > MaxDebounceMillis {
		c.DebounceMillis = MaxDebounceMillis
	}
	if c.HTTPTimeoutSeconds <= 0 {
		c.HTTPTimeoutSeconds = DefaultConfig().HTTPTimeoutSeconds
	}
	return c
}

// saveMu guards read-modify-write cycles on the settings file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: creating settings dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling settings: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing settings: %w", err)
	}
	return nil
}
