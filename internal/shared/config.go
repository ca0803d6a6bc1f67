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
	Credentials CredentialsConfig `toml:"credentials"`
	API         APIConfig         `toml:"api"`
	Export      ExportConfig      `toml:"export"`
	Import      ImportConfig      `toml:"import"`
}

// CredentialsConfig contains per-account credentials.
type CredentialsConfig struct {
	Source AccountConfig `toml:"source"`
	Target AccountConfig `toml:"target"`
}

// AccountConfig identifies one account and the profile on it to operate on.
// An empty profile means the account's primary profile.
type AccountConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
	Profile  string `toml:"profile"`
}

// APIConfig contains remote API settings.
type APIConfig struct {
	BaseURL  string  `toml:"base_url"`
	ReadRate float64 `toml:"read_rate"`
	PageSize int     `toml:"page_size"`
}

// ExportConfig contains snapshot directory settings.
type ExportConfig struct {
	Dir string `toml:"dir"`
}

// ImportConfig contains write-side tuning knobs.
type ImportConfig struct {
	Workers      int `toml:"workers"`
	WriteDelayMS int `toml:"write_delay_ms"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
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
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
