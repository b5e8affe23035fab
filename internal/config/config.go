// Package config loads exporter configuration from the environment, with
// optional .env file support.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the exporter needs at startup. Credentials come
// from the environment only; the remaining knobs can also be set via flags.
type Config struct {
	Username     string
	Password     string
	DevicesFile  string
	ListenAddr   string
	PollInterval time.Duration
	LogLevel     string
	LogFormat    string
}

// Load reads configuration from a .env file (if present) and the
// environment. VUE_USERNAME and VUE_PASSWORD are required.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Username:     os.Getenv("VUE_USERNAME"),
		Password:     os.Getenv("VUE_PASSWORD"),
		DevicesFile:  os.Getenv("VUE_DEVICES_FILE"),
		ListenAddr:   envOr("LISTEN_ADDR", ":9948"),
		PollInterval: time.Minute,
		LogLevel:     envOr("LOG_LEVEL", "info"),
		LogFormat:    envOr("LOG_FORMAT", "text"),
	}

	if raw := os.Getenv("VUE_DEBUG"); raw != "" {
		if debug, err := strconv.ParseBool(raw); err == nil && debug {
			cfg.LogLevel = "debug"
		}
	}

	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q", raw)
		}
		cfg.PollInterval = parsed
	}

	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("VUE_USERNAME and VUE_PASSWORD must be set")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type devicesFile struct {
	Devices map[string]string `json:"devices"`
}

// DeviceNameOverrides loads the optional device-name overrides file: a JSON
// object mapping device gids to display names, under a top-level "devices"
// key. Returns nil when no file is configured.
func (c *Config) DeviceNameOverrides() (map[string]string, error) {
	if c.DevicesFile == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(c.DevicesFile)
	if err != nil {
		return nil, fmt.Errorf("read devices file: %w", err)
	}

	var parsed devicesFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse devices file %s: %w", c.DevicesFile, err)
	}
	return parsed.Devices, nil
}
