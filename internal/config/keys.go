package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// APIKey resolves the Anthropic API key, preferring the environment over
// the config file. Only needed for live runs; dry runs never call it.
func (c *Config) APIKey() (string, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, nil
	}

	if key := os.ExpandEnv(c.Anthropic.APIKey); key != "" && !strings.HasPrefix(key, "${") {
		return key, nil
	}

	return "", ErrNoAPIKey
}

// MaskAPIKey returns a display-safe version of an API key: the "sk-ant-"
// prefix and the last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}
