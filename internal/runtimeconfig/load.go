package runtimeconfig

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// LoadFile reads a TOML file layered over DefaultConfig and validates the
// result. Keys absent from the file keep their defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("content config: read %s: %w", path, err)
	}
	return Load(data)
}

// Load decodes TOML bytes over DefaultConfig and validates the result.
func Load(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("content config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	return toml.Marshal(cfg)
}
