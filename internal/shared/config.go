package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Session  SessionConfig  `toml:"session"`
	Studio   StudioConfig   `toml:"studio"`
	Database DatabaseConfig `toml:"database"`
}

// ServerConfig contains the backend endpoints and client pacing settings.
type ServerConfig struct {
	BaseURL   string  `toml:"base_url"`   // REST base, e.g. http://localhost:8000
	SocketURL string  `toml:"socket_url"` // realtime channel, e.g. ws://localhost:8000/ws
	RateLimit float64 `toml:"rate_limit"` // REST requests per second
}

// SessionConfig controls where the credential store lives.
type SessionConfig struct {
	Path string `toml:"path"`
}

// StudioConfig contains TUI and generation-tracking settings.
type StudioConfig struct {
	LogPath             string `toml:"log_path"`
	StallTimeoutMinutes int    `toml:"stall_timeout_minutes"` // 0 disables the generation stall watchdog
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	MaxOpenConns int `toml:"max_open_conns"`
	MaxIdleConns int `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
