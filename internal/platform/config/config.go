package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL           = "http://localhost:5000/api/v1"
	DefaultPortalAddr       = "127.0.0.1:8080"
	DefaultRefreshTimeout   = 10 * time.Second
	DefaultBootstrapTimeout = 15 * time.Second
)

// Client captures the settings shared by the CLI and the local portal.
type Client struct {
	APIURL           string
	PortalAddr       string
	ProfilePath      string
	RefreshTimeout   time.Duration
	BootstrapTimeout time.Duration
	LogLevel         slog.Level
}

// Load reads an optional .env from the working directory and then builds the
// config from the environment.
func Load() (Client, error) {
	// a missing .env is the normal case outside development
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Client config from environment variables with development
// defaults.
func FromEnv() (Client, error) {
	cfg := Client{
		APIURL:           getEnv("JOBLINKER_API_URL", DefaultAPIURL),
		PortalAddr:       getEnv("JOBLINKER_PORTAL_ADDR", DefaultPortalAddr),
		ProfilePath:      getEnv("JOBLINKER_PROFILE", defaultProfilePath()),
		RefreshTimeout:   DefaultRefreshTimeout,
		BootstrapTimeout: DefaultBootstrapTimeout,
	}

	var err error
	if cfg.RefreshTimeout, err = durationEnv("JOBLINKER_REFRESH_TIMEOUT", DefaultRefreshTimeout); err != nil {
		return Client{}, err
	}
	if cfg.BootstrapTimeout, err = durationEnv("JOBLINKER_BOOTSTRAP_TIMEOUT", DefaultBootstrapTimeout); err != nil {
		return Client{}, err
	}
	if cfg.LogLevel, err = ParseLevel(getEnv("JOBLINKER_LOG_LEVEL", "info")); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid JOBLINKER_LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return d, nil
}

func defaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".joblinker", "cookies.json")
	}
	return filepath.Join(dir, "joblinker", "cookies.json")
}
