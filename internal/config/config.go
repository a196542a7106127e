// Package config loads process settings from an optional .env file and the
// environment. Real environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GameServiceURL string
	ListenAddr     string
	PollInterval   time.Duration
	HTTPTimeout    time.Duration // 0 leaves game service calls bounded only by their context
	LogDev         bool
}

func Default() Config {
	return Config{
		GameServiceURL: "http://localhost:3001",
		ListenAddr:     ":8080",
		PollInterval:   1200 * time.Millisecond,
	}
}

// Load reads the given dotenv files, or ./.env if it exists when none are
// named, then applies the environment on top.
func Load(files ...string) (Config, error) {
	optional := len(files) == 0
	if optional {
		files = []string{".env"}
	}

	dotenv := make(map[string]string)
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: read %s: %w", f, err)
		}
		maps.Copy(dotenv, vals)
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	cfg := Default()
	if v, ok := lookup("GAME_SERVICE_URL"); ok {
		u, err := url.Parse(v)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Config{}, fmt.Errorf("config: GAME_SERVICE_URL: not an http(s) url: %q", v)
		}
		cfg.GameServiceURL = v
	}
	if v, ok := lookup("LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := lookup("POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: POLL_INTERVAL: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("config: POLL_INTERVAL must be positive, got %s", d)
		}
		cfg.PollInterval = d
	}
	if v, ok := lookup("HTTP_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: HTTP_TIMEOUT: %w", err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("config: HTTP_TIMEOUT must not be negative, got %s", d)
		}
		cfg.HTTPTimeout = d
	}
	if v, ok := lookup("LOG_DEV"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: LOG_DEV: %w", err)
		}
		cfg.LogDev = b
	}
	return cfg, nil
}
