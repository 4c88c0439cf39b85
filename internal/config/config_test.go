package config

import (
	"os"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	os.Clearenv()
	os.Setenv("API_KEY", "secret")
	os.Setenv("DATA_SOURCE", ":memory:")
	os.Setenv("SPOTIFY_CLIENT_ID", "id")
	os.Setenv("SPOTIFY_CLIENT_SECRET", "shh")
	os.Setenv("SPOTIFY_REFRESH_TOKEN", "token")
}

func TestLoad_defaults(t *testing.T) {
	setRequired(t)
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Port != 4000 {
		t.Errorf("Port = %d, want 4000", c.Port)
	}
	if c.CacheLimitBytes != 3*1024*1024*1024 {
		t.Errorf("CacheLimitBytes = %d", c.CacheLimitBytes)
	}
	if c.OpusBitrateKbps != 96 {
		t.Errorf("OpusBitrateKbps = %d", c.OpusBitrateKbps)
	}
	if c.ExtractorBinary != "yt-dlp" {
		t.Errorf("ExtractorBinary = %q, want yt-dlp", c.ExtractorBinary)
	}
}

func TestLoad_missingRequired(t *testing.T) {
	os.Clearenv()
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing required vars")
	}
}

func TestLoad_targetAboveLimit(t *testing.T) {
	setRequired(t)
	os.Setenv("CACHE_LIMIT_BYTES", "100")
	os.Setenv("CACHE_TARGET_BYTES", "200")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when target exceeds limit")
	}
}

func TestLoad_badPort(t *testing.T) {
	setRequired(t)
	os.Setenv("PORT", "99999")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
