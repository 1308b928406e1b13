package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Channel ChannelConfig
	Backend BackendConfig
	Poll    PollConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ChannelConfig controls the realtime channel transport.
type ChannelConfig struct {
	URL                   string
	ReconnectBaseInterval time.Duration
	MaxReconnectAttempts  int
	PingInterval          time.Duration
}

// BackendConfig points the API clients at the generation backend.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PollConfig controls the backup status poll.
type PollConfig struct {
	Interval time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("channel.url", "CHANNEL_URL")
	_ = viper.BindEnv("channel.reconnect_base_ms", "CHANNEL_RECONNECT_BASE_MS")
	_ = viper.BindEnv("channel.max_reconnect_attempts", "CHANNEL_MAX_RECONNECT_ATTEMPTS")
	_ = viper.BindEnv("channel.ping_interval_ms", "CHANNEL_PING_INTERVAL_MS")
	_ = viper.BindEnv("backend.base_url", "BACKEND_BASE_URL")
	_ = viper.BindEnv("backend.timeout", "BACKEND_TIMEOUT")
	_ = viper.BindEnv("poll.interval_ms", "POLL_INTERVAL_MS")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Channel defaults. The websocket URL differs between the desktop
	// shell and a browser dev session, so it stays configuration.
	viper.SetDefault("channel.url", "ws://localhost:8000/ws/progress")
	viper.SetDefault("channel.reconnect_base_ms", 1000)
	viper.SetDefault("channel.max_reconnect_attempts", 10)
	viper.SetDefault("channel.ping_interval_ms", 30000)

	// Backend defaults
	viper.SetDefault("backend.base_url", "http://localhost:8000")
	viper.SetDefault("backend.timeout", 120)

	// Backup poll defaults
	viper.SetDefault("poll.interval_ms", 5000)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Channel: ChannelConfig{
			URL:                   viper.GetString("channel.url"),
			ReconnectBaseInterval: time.Duration(viper.GetInt("channel.reconnect_base_ms")) * time.Millisecond,
			MaxReconnectAttempts:  viper.GetInt("channel.max_reconnect_attempts"),
			PingInterval:          time.Duration(viper.GetInt("channel.ping_interval_ms")) * time.Millisecond,
		},
		Backend: BackendConfig{
			BaseURL: viper.GetString("backend.base_url"),
			Timeout: time.Duration(viper.GetInt("backend.timeout")) * time.Second,
		},
		Poll: PollConfig{
			Interval: time.Duration(viper.GetInt("poll.interval_ms")) * time.Millisecond,
		},
	}

	return cfg, nil
}
