// Package config loads and validates the audio cache's process-wide settings
// from the environment. Call LoadEnvFile before Load to pull in a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything a running instance needs: auth, storage locations,
// eviction watermarks, and upstream credentials.
type Config struct {
	APIKey string

	// DataSource is the SQLite DSN (file path, or ":memory:") for the
	// Metadata Store.
	DataSource   string
	DBMaxOpenConns int

	CacheDir          string
	CacheLimitBytes   int64
	CacheTargetBytes  int64
	OpusBitrateKbps   int
	ExtractorBinary   string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string

	Port           int
	ShutdownGrace  time.Duration
}

// Load reads Config from the environment. Required values that are absent or
// malformed cause a fatal diagnostic (os.Exit via the caller, see cmd/audiocache).
func Load() (*Config, error) {
	c := &Config{
		APIKey:              os.Getenv("API_KEY"),
		DataSource:          os.Getenv("DATA_SOURCE"),
		DBMaxOpenConns:      getEnvInt("DB_MAX_OPEN_CONNS", 10),
		CacheDir:            getEnv("CACHE_DIR", "./cache"),
		CacheLimitBytes:     getEnvInt64("CACHE_LIMIT_BYTES", 3*1024*1024*1024),
		CacheTargetBytes:    getEnvInt64("CACHE_TARGET_BYTES", 2560*1024*1024),
		OpusBitrateKbps:     getEnvInt("OPUS_BITRATE_KBPS", 96),
		ExtractorBinary:     getEnv("EXTRACTOR_BINARY", "yt-dlp"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyRefreshToken: os.Getenv("SPOTIFY_REFRESH_TOKEN"),
		Port:                getEnvInt("PORT", 4000),
		ShutdownGrace:       getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
	}

	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "API_KEY")
	}
	if c.DataSource == "" {
		missing = append(missing, "DATA_SOURCE")
	}
	if c.SpotifyClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.SpotifyClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if c.SpotifyRefreshToken == "" {
		missing = append(missing, "SPOTIFY_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variable(s): %v", missing)
	}
	if c.DBMaxOpenConns <= 0 {
		return nil, fmt.Errorf("config: DB_MAX_OPEN_CONNS must be > 0")
	}
	if c.CacheLimitBytes <= 0 || c.CacheTargetBytes <= 0 {
		return nil, fmt.Errorf("config: cache size watermarks must be > 0")
	}
	if c.CacheTargetBytes > c.CacheLimitBytes {
		return nil, fmt.Errorf("config: CACHE_TARGET_BYTES must be <= CACHE_LIMIT_BYTES")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return nil, fmt.Errorf("config: PORT out of range: %d", c.Port)
	}
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
