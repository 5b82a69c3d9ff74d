package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned when a required secret (API key) is not
// configured. It is raised before any network client is constructed.
var ErrMissingCredential = errors.New("missing credential")

// DefaultDotEnvPath is the secrets file read at start-up when present.
const DefaultDotEnvPath = ".env"

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment.
// Variables that are already set are left alone. A missing file is not an
// error: the .env file is optional.
func LoadDotEnv(path string, log *slog.Logger) error {
	if path == "" {
		path = DefaultDotEnvPath
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("config: no .env file found", slog.String("path", path))
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	log.Debug("config: loaded .env file", slog.String("path", path))
	return nil
}

// EnvOr returns the value of the named environment variable, or fallback if
// the variable is unset or empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func EnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// EnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func EnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// EnvBool reports whether the named environment variable is "true" or "1".
func EnvBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1"
}
