// Package config loads daemon configuration from a TOML file, with a
// JSON fallback in the CODEGEN_CONFIG environment variable for editor
// integrations that spawn the daemon directly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"codegen/types"
)

// EnvVar is the environment variable checked for inline JSON config.
const EnvVar = "CODEGEN_CONFIG"

type Config struct {
	NsID     int    `toml:"ns_id" json:"ns_id"`
	LogLevel string `toml:"log_level" json:"log_level"`

	// UseStreamingTools enables the structured generation path on models
	// that support it.
	UseStreamingTools bool `toml:"use_streaming_tools" json:"use_streaming_tools"`

	Primary types.ModelConfig `toml:"primary" json:"primary"`

	// Alternatives are generated alongside the primary; the user cycles
	// through the results.
	Alternatives []types.ModelConfig `toml:"alternatives" json:"alternatives"`
}

// Default returns the config used when nothing else is provided.
func Default() Config {
	return Config{
		LogLevel: "info",
		Primary: types.ModelConfig{
			URL:       "http://localhost:8000",
			MaxTokens: 2048,
		},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "codegen", "config.toml")
}

// Load reads the config file at path. When path is empty the environment
// variable and then the default path are consulted; absence of both
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if env := os.Getenv(EnvVar); env != "" {
			if err := json.Unmarshal([]byte(env), &cfg); err != nil {
				return cfg, fmt.Errorf("invalid %s: %w", EnvVar, err)
			}
			return cfg, nil
		}
		path = DefaultPath()
		if path == "" {
			return cfg, nil
		}
		if _, err := os.Stat(path); err != nil {
			return cfg, nil
		}
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// GenerationConfig projects the engine-relevant settings.
func (c Config) GenerationConfig() types.GenerationConfig {
	return types.GenerationConfig{UseStreamingTools: c.UseStreamingTools}
}
