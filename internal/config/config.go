package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	// Server
	Port           string   `envconfig:"PORT" default:"8008" validate:"required,numeric"`
	Env            string   `envconfig:"ENV" default:"development" validate:"oneof=development production test"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	// Storage
	DBPath string `envconfig:"DB_PATH" default:"chat.db" validate:"required"`

	// Tokens
	JWTSecret     string        `envconfig:"JWT_SECRET" default:"development-insecure-secret-change-me" validate:"required,min=16"`
	JWTIssuer     string        `envconfig:"JWT_ISSUER" default:"realtime-chat-api" validate:"required"`
	JWTAudience   string        `envconfig:"JWT_AUDIENCE" default:"realtime-chat-clients" validate:"required"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h" validate:"gt=0"`
	TokenCacheTTL time.Duration `envconfig:"TOKEN_CACHE_TTL" default:"5m" validate:"gte=0"`

	// Realtime
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s" validate:"gt=0"`
	SendQueueSize     int           `envconfig:"SEND_QUEUE_SIZE" default:"64" validate:"gt=0"`
	ReadLimit         int64         `envconfig:"READ_LIMIT" default:"4096" validate:"gt=0"`
	WriteWait         time.Duration `envconfig:"WRITE_WAIT" default:"5s" validate:"gt=0"`
	DefaultRoom       string        `envconfig:"DEFAULT_ROOM" default:"global"`
	EchoSelf          bool          `envconfig:"ECHO_SELF" default:"true"`
	HistoryLimit      int           `envconfig:"HISTORY_LIMIT" default:"50" validate:"gt=0"`
	HistoryMaxLimit   int           `envconfig:"HISTORY_MAX_LIMIT" default:"200" validate:"gtefield=HistoryLimit"`

	// Presence mirror (disabled when RedisAddr is empty)
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
	PresenceTTL   time.Duration `envconfig:"PRESENCE_TTL" default:"2m" validate:"gt=0"`
	NodeID        string        `envconfig:"NODE_ID" default:"node-1"`
}

var validate = validator.New()

// Load reads an optional .env file, then the environment, and validates the result.
// Files listed in envFiles are tried in order; a missing file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// AllowsAnyOrigin reports whether the origin allow-list is the wildcard.
func (c Config) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return len(c.AllowedOrigins) == 0
}

// RedisEnabled reports whether the Redis presence mirror should be started.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}
