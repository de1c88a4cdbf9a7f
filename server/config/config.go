package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Auth        AuthConfig
	Presence    PresenceConfig
	Authorizer  AuthorizerConfig
	Broadcaster BroadcasterConfig
	Analytics   AnalyticsConfig
	Transport   TransportConfig
	Log         LogConfig
}

type ServerConfig struct {
	HTTPAddress string `mapstructure:"httpAddress"`
	GRPCAddress string `mapstructure:"grpcAddress"`
}

type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	Fixtures string `mapstructure:"fixtures"`
}

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwtSecret"`
	ChannelKey        string        `mapstructure:"channelKey"`
	ChannelSecret     string        `mapstructure:"channelSecret"`
	PresenterTokenTTL time.Duration `mapstructure:"presenterTokenTTL"`
	SecureCookies     bool          `mapstructure:"secureCookies"`
}

type PresenceConfig struct {
	LivenessWindow time.Duration `mapstructure:"livenessWindow"`
}

type AuthorizerConfig struct {
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

type BroadcasterConfig struct {
	StrictBounds bool `mapstructure:"strictBounds"`
}

type AnalyticsConfig struct {
	QueueSize int `mapstructure:"queueSize"`
	Workers   int `mapstructure:"workers"`
}

type TransportConfig struct {
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	AllowedOrigins []string      `mapstructure:"allowedOrigins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const defaultJWTSecret = "default-secret-key-change-me"

// Load reads <fileName>.yaml from the working directory, then LIVEDECK_*
// environment variables. Every key has a default.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.httpAddress", ":8080")
	v.SetDefault("server.grpcAddress", ":50051")
	v.SetDefault("database.path", "./livedeck.db")
	v.SetDefault("database.fixtures", "presentations.yml")
	v.SetDefault("auth.jwtSecret", defaultJWTSecret)
	v.SetDefault("auth.channelKey", "livedeck")
	v.SetDefault("auth.channelSecret", defaultJWTSecret)
	v.SetDefault("auth.presenterTokenTTL", "12h")
	v.SetDefault("auth.secureCookies", false)
	v.SetDefault("presence.livenessWindow", "45s")
	v.SetDefault("authorizer.cacheTTL", "60s")
	v.SetDefault("broadcaster.strictBounds", false)
	v.SetDefault("analytics.queueSize", 1024)
	v.SetDefault("analytics.workers", 2)
	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("transport.allowedOrigins", []string{})
	v.SetDefault("log.level", "info")

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LIVEDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		logger.Warn("Config file not found. relying on defaults and env vars", slog.String("name", fileName))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == defaultJWTSecret {
		logger.Warn("Using the default JWT secret; set auth.jwtSecret")
	}
	return &cfg, nil
}
