package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.Burst = 10
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 0
	cfg.RateLimiting.WebSocket.Burst = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"empty ffmpeg path", func(c *Config) { c.Relay.FFmpegPath = "" }},
		{"zero idle grace", func(c *Config) { c.Relay.IdleGrace = 0 }},
		{"zero stop grace", func(c *Config) { c.Relay.StopGrace = 0 }},
		{"zero chunk size", func(c *Config) { c.Relay.ReadChunkSize = 0 }},
		{"zero viewer buffer", func(c *Config) { c.Relay.ViewerBuffer = 0 }},
		{"relative base path", func(c *Config) { c.Relay.PublicBasePath = "ws/streams/" }},
		{"base path without trailing slash", func(c *Config) { c.Relay.PublicBasePath = "/ws/streams" }},
		{"pong not after ping", func(c *Config) { c.WebSocket.PongTimeout = c.WebSocket.PingInterval }},
		{"zero diagnostics timeout", func(c *Config) { c.Diagnostics.Timeout = 0 }},
		{"too many hops", func(c *Config) { c.Diagnostics.TracerouteMaxHops = 100 }},
		{"no internet targets", func(c *Config) { c.Diagnostics.InternetTargets = nil }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"redis without address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true; c.Auth.JWTSecret = "" }},
		{"http rps must be > 0", func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 }},
		{"http burst must be > 0", func(c *Config) { c.RateLimiting.HTTP.Burst = 0 }},
		{"http max concurrent must be >= 0", func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 }},
		{"ws connections per minute must be > 0", func(c *Config) { c.RateLimiting.WebSocket.ConnectionsPerMinute = 0 }},
		{"ws burst must be > 0", func(c *Config) { c.RateLimiting.WebSocket.Burst = 0 }},
		{"sample rate above one", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.SampleRate = 1.5 }},
		{"zero event records", func(c *Config) { c.Events.MaxRecords = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Relay.IdleGrace != 5*time.Second {
		t.Fatalf("idle grace = %v, want 5s", cfg.Relay.IdleGrace)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("relay:\n  idle_grace: 10s\n  audio_enabled: false\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CAMRELAY_SERVER_ADDRESS", ":9999")
	t.Setenv("CAMRELAY_FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Relay.IdleGrace != 10*time.Second {
		t.Errorf("idle grace = %v, want 10s", cfg.Relay.IdleGrace)
	}
	if cfg.Relay.AudioEnabled {
		t.Errorf("audio should be disabled by file")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Server.Address != ":9999" {
		t.Errorf("server address = %q, want :9999", cfg.Server.Address)
	}
	if cfg.Relay.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("ffmpeg path = %q", cfg.Relay.FFmpegPath)
	}
	if cfg.Relay.StopGrace != 2*time.Second {
		t.Errorf("unset fields should keep defaults, stop grace = %v", cfg.Relay.StopGrace)
	}
}

func TestLoad_InvalidFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("relay:\n  idle_grace: 0s\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected invalid configuration error")
	}
}
