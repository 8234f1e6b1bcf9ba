package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Relay struct {
		FFmpegPath     string        `yaml:"ffmpeg_path"`
		IdleGrace      time.Duration `yaml:"idle_grace"`
		StopGrace      time.Duration `yaml:"stop_grace"`
		ReadChunkSize  int           `yaml:"read_chunk_size"`
		ViewerBuffer   int           `yaml:"viewer_buffer"`
		AudioEnabled   bool          `yaml:"audio_enabled"`
		VideoBitrate   string        `yaml:"video_bitrate"`
		FrameRate      int           `yaml:"frame_rate"`
		StderrLines    int           `yaml:"stderr_lines"`
		PublicBasePath string        `yaml:"public_base_path"`
	} `yaml:"relay"`

	WebSocket struct {
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		ReadLimit      int64         `yaml:"read_limit"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"websocket"`

	Diagnostics struct {
		Timeout           time.Duration `yaml:"timeout"`
		ProbeTimeout      time.Duration `yaml:"probe_timeout"`
		PingTimeout       time.Duration `yaml:"ping_timeout"`
		TracerouteTimeout time.Duration `yaml:"traceroute_timeout"`
		TracerouteMaxHops int           `yaml:"traceroute_max_hops"`
		InternetTargets   []string      `yaml:"internet_targets"`
	} `yaml:"diagnostics"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled           bool          `yaml:"enabled"`
		Address           string        `yaml:"address"`
		Password          string        `yaml:"password"`
		DB                int           `yaml:"db"`
		PoolSize          int           `yaml:"pool_size"`
		ConnectAttempts   int           `yaml:"connect_attempts"`
		ConnectRetryDelay time.Duration `yaml:"connect_retry_delay"`
	} `yaml:"redis"`

	Auth struct {
		Enabled        bool          `yaml:"enabled"`
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int `yaml:"connections_per_minute"`
			Burst                int `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Events struct {
		MaxRecords      int           `yaml:"max_records"`
		BreakerFailures int           `yaml:"breaker_failures"`
		BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
		PersistTimeout  time.Duration `yaml:"persist_timeout"`
	} `yaml:"events"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be >= 0")
	}

	// Relay
	if c.Relay.FFmpegPath == "" {
		return fmt.Errorf("relay.ffmpeg_path must not be empty")
	}
	if c.Relay.IdleGrace <= 0 {
		return fmt.Errorf("relay.idle_grace must be > 0")
	}
	if c.Relay.StopGrace <= 0 {
		return fmt.Errorf("relay.stop_grace must be > 0")
	}
	if c.Relay.ReadChunkSize <= 0 {
		return fmt.Errorf("relay.read_chunk_size must be > 0")
	}
	if c.Relay.ViewerBuffer <= 0 {
		return fmt.Errorf("relay.viewer_buffer must be > 0")
	}
	if c.Relay.FrameRate <= 0 {
		return fmt.Errorf("relay.frame_rate must be > 0")
	}
	if c.Relay.VideoBitrate == "" {
		return fmt.Errorf("relay.video_bitrate must not be empty")
	}
	if !strings.HasPrefix(c.Relay.PublicBasePath, "/") || !strings.HasSuffix(c.Relay.PublicBasePath, "/") {
		return fmt.Errorf("relay.public_base_path must start and end with /")
	}

	// WebSocket
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket.ping_interval must be > 0")
	}
	if c.WebSocket.PongTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket.pong_timeout must be > websocket.ping_interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket.write_timeout must be > 0")
	}
	if c.WebSocket.ReadLimit <= 0 {
		return fmt.Errorf("websocket.read_limit must be > 0")
	}

	// Diagnostics
	if c.Diagnostics.Timeout <= 0 {
		return fmt.Errorf("diagnostics.timeout must be > 0")
	}
	if c.Diagnostics.ProbeTimeout <= 0 || c.Diagnostics.PingTimeout <= 0 || c.Diagnostics.TracerouteTimeout <= 0 {
		return fmt.Errorf("diagnostics probe timeouts must be > 0")
	}
	if c.Diagnostics.TracerouteMaxHops <= 0 || c.Diagnostics.TracerouteMaxHops > 64 {
		return fmt.Errorf("diagnostics.traceroute_max_hops must be in 1..64")
	}
	if len(c.Diagnostics.InternetTargets) == 0 {
		return fmt.Errorf("diagnostics.internet_targets must not be empty")
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && !strings.HasPrefix(c.Monitoring.MetricsPath, "/") {
		return fmt.Errorf("monitoring.metrics_path must start with / when prometheus_enabled=true")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.ConnectAttempts < 0 {
			return fmt.Errorf("redis.connect_attempts must be >= 0")
		}
	}

	// Auth
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
		}
		if c.Auth.AccessTokenTTL <= 0 {
			return fmt.Errorf("auth.access_token_ttl must be > 0 when auth.enabled=true")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in [0, 1]")
		}
	}

	// Events
	if c.Events.MaxRecords <= 0 {
		return fmt.Errorf("events.max_records must be > 0")
	}
	if c.Events.BreakerFailures <= 0 {
		return fmt.Errorf("events.breaker_failures must be > 0")
	}
	if c.Events.BreakerCooldown <= 0 {
		return fmt.Errorf("events.breaker_cooldown must be > 0")
	}
	if c.Events.PersistTimeout <= 0 {
		return fmt.Errorf("events.persist_timeout must be > 0")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	// Zero keeps long-lived viewer connections from being cut by the server.
	cfg.Server.WriteTimeout = 0
	cfg.Server.ShutdownTimeout = 15 * time.Second

	cfg.Relay.FFmpegPath = "ffmpeg"
	cfg.Relay.IdleGrace = 5 * time.Second
	cfg.Relay.StopGrace = 2 * time.Second
	cfg.Relay.ReadChunkSize = 64 * 1024
	cfg.Relay.ViewerBuffer = 64
	cfg.Relay.AudioEnabled = true
	cfg.Relay.VideoBitrate = "1000k"
	cfg.Relay.FrameRate = 25
	cfg.Relay.StderrLines = 20
	cfg.Relay.PublicBasePath = "/ws/streams/"

	cfg.WebSocket.PingInterval = 30 * time.Second
	cfg.WebSocket.PongTimeout = 60 * time.Second
	cfg.WebSocket.WriteTimeout = 10 * time.Second
	cfg.WebSocket.ReadLimit = 4096
	cfg.WebSocket.AllowedOrigins = []string{"*"}

	cfg.Diagnostics.Timeout = 30 * time.Second
	cfg.Diagnostics.ProbeTimeout = 3 * time.Second
	cfg.Diagnostics.PingTimeout = 5 * time.Second
	cfg.Diagnostics.TracerouteTimeout = 10 * time.Second
	cfg.Diagnostics.TracerouteMaxHops = 5
	cfg.Diagnostics.InternetTargets = []string{"1.1.1.1:53", "8.8.8.8:53"}

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.ConnectAttempts = 3
	cfg.Redis.ConnectRetryDelay = 500 * time.Millisecond

	cfg.Auth.Enabled = false
	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 12 * time.Hour

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 20
	cfg.RateLimiting.HTTP.Burst = 40
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 30
	cfg.RateLimiting.WebSocket.Burst = 10

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Events.MaxRecords = 500
	cfg.Events.BreakerFailures = 5
	cfg.Events.BreakerCooldown = 30 * time.Second
	cfg.Events.PersistTimeout = 2 * time.Second

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CAMRELAY_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if path := os.Getenv("CAMRELAY_FFMPEG_PATH"); path != "" {
		c.Relay.FFmpegPath = path
	}
	if grace := os.Getenv("CAMRELAY_IDLE_GRACE"); grace != "" {
		if d, err := time.ParseDuration(grace); err == nil {
			c.Relay.IdleGrace = d
		}
	}
	if audio := os.Getenv("CAMRELAY_AUDIO_ENABLED"); audio != "" {
		if enabled, err := strconv.ParseBool(audio); err == nil {
			c.Relay.AudioEnabled = enabled
		}
	}
	if level := os.Getenv("CAMRELAY_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if addr := os.Getenv("CAMRELAY_REDIS_ADDRESS"); addr != "" {
		c.Redis.Enabled = true
		c.Redis.Address = addr
	}
	if password := os.Getenv("CAMRELAY_REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if secret := os.Getenv("CAMRELAY_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if url := os.Getenv("CAMRELAY_JAEGER_URL"); url != "" {
		c.Tracing.Enabled = true
		c.Tracing.JaegerURL = url
	}
}
