package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	URL             string        `mapstructure:"url"`
	FilePath        string        `mapstructure:"file_path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration `mapstructure:"ttl"`
}

// RealtimeConfig tunes the websocket gateway and the message pipeline.
type RealtimeConfig struct {
	RequireMembership  bool          `mapstructure:"require_membership"`
	MessageMaxLength   int           `mapstructure:"message_max_length"`
	SendBuffer         int           `mapstructure:"send_buffer"`
	MaxFrameSize       int64         `mapstructure:"max_frame_size"`
	PongWait           time.Duration `mapstructure:"pong_wait"`
	WriteWait          time.Duration `mapstructure:"write_wait"`
	EventsPerSecond    float64       `mapstructure:"events_per_second"`
	EventBurst         int           `mapstructure:"event_burst"`
	SequenceGapTimeout time.Duration `mapstructure:"sequence_gap_timeout"`
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads .env.local or .env into the process environment, then builds the
// configuration from defaults, an optional config.yaml and environment
// variables.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.file_path", "./data/concord.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 7*24*time.Hour)

	v.SetDefault("realtime.require_membership", false)
	v.SetDefault("realtime.message_max_length", 2000)
	v.SetDefault("realtime.send_buffer", 256)
	v.SetDefault("realtime.max_frame_size", 64*1024)
	v.SetDefault("realtime.pong_wait", 60*time.Second)
	v.SetDefault("realtime.write_wait", 10*time.Second)
	v.SetDefault("realtime.events_per_second", 10.0)
	v.SetDefault("realtime.event_burst", 20)
	v.SetDefault("realtime.sequence_gap_timeout", 2*time.Second)

	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("server.host", "HOST")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.allowed_origins", "ALLOWED_ORIGINS")
	v.BindEnv("server.shutdown_timeout", "SHUTDOWN_TIMEOUT")

	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	v.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	v.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	v.BindEnv("database.log_level", "DB_LOG_LEVEL")

	v.BindEnv("redis.url", "REDIS_URL")

	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("jwt.ttl", "JWT_TTL")

	v.BindEnv("realtime.require_membership", "REQUIRE_MEMBERSHIP")
	v.BindEnv("realtime.message_max_length", "MESSAGE_MAX_LENGTH")
	v.BindEnv("realtime.send_buffer", "WS_SEND_BUFFER")
	v.BindEnv("realtime.max_frame_size", "WS_MAX_FRAME_SIZE")
	v.BindEnv("realtime.pong_wait", "WS_PONG_WAIT")
	v.BindEnv("realtime.write_wait", "WS_WRITE_WAIT")
	v.BindEnv("realtime.events_per_second", "WS_EVENTS_PER_SECOND")
	v.BindEnv("realtime.event_burst", "WS_EVENT_BURST")
	v.BindEnv("realtime.sequence_gap_timeout", "SEQUENCE_GAP_TIMEOUT")

	v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")

	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.pretty", "LOG_PRETTY")
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}

	switch c.Database.Driver {
	case "postgres", "mysql":
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is not set")
		}
	case "sqlite":
		if c.Database.FilePath == "" && c.Database.URL == "" {
			return errors.New("DB_FILE_PATH is not set")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Realtime.MessageMaxLength <= 0 {
		return errors.New("MESSAGE_MAX_LENGTH must be positive")
	}
	if c.Realtime.SendBuffer <= 0 {
		return errors.New("WS_SEND_BUFFER must be positive")
	}
	if c.Realtime.MaxFrameSize <= 0 {
		return errors.New("WS_MAX_FRAME_SIZE must be positive")
	}
	// Pings go out at nine tenths of the pong wait.
	if c.Realtime.PongWait < time.Second {
		return errors.New("WS_PONG_WAIT must be at least 1s")
	}
	if c.Realtime.WriteWait <= 0 {
		return errors.New("WS_WRITE_WAIT must be positive")
	}
	if c.Realtime.EventsPerSecond <= 0 || c.Realtime.EventBurst <= 0 {
		return errors.New("websocket event rate must be positive")
	}
	if c.Realtime.SequenceGapTimeout <= 0 {
		return errors.New("SEQUENCE_GAP_TIMEOUT must be positive")
	}
	return nil
}
