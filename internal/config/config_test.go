package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/concord")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.TTL)
	assert.False(t, cfg.Realtime.RequireMembership)
	assert.Equal(t, 2000, cfg.Realtime.MessageMaxLength)
	assert.Equal(t, 2*time.Second, cfg.Realtime.SequenceGapTimeout)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_FILE_PATH", "/tmp/concord.db")
	t.Setenv("PORT", "9090")
	t.Setenv("REQUIRE_MEMBERSHIP", "true")
	t.Setenv("MESSAGE_MAX_LENGTH", "500")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("JWT_TTL", "1h")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/concord.db", cfg.Database.FilePath)
	assert.True(t, cfg.Realtime.RequireMembership)
	assert.Equal(t, 500, cfg.Realtime.MessageMaxLength)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/concord")

	_, err := load(viper.New())
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: "sqlite", FilePath: "x.db"},
			JWT:      JWTConfig{Secret: "s", TTL: time.Hour},
			Realtime: RealtimeConfig{
				MessageMaxLength:   10,
				SendBuffer:         1,
				MaxFrameSize:       1024,
				PongWait:           time.Minute,
				WriteWait:          time.Second,
				EventsPerSecond:    1,
				EventBurst:         1,
				SequenceGapTimeout: time.Second,
			},
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Database.Driver = "oracle"
	assert.ErrorContains(t, cfg.Validate(), "unsupported database driver")

	cfg = valid()
	cfg.Database = DatabaseConfig{Driver: "postgres"}
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg = valid()
	cfg.Realtime.MessageMaxLength = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Realtime.PongWait = 0
	assert.ErrorContains(t, cfg.Validate(), "WS_PONG_WAIT")

	cfg = valid()
	cfg.Realtime.PongWait = time.Nanosecond
	assert.ErrorContains(t, cfg.Validate(), "WS_PONG_WAIT")

	cfg = valid()
	cfg.Realtime.WriteWait = 0
	assert.ErrorContains(t, cfg.Validate(), "WS_WRITE_WAIT")

	cfg = valid()
	cfg.Realtime.MaxFrameSize = 0
	assert.ErrorContains(t, cfg.Validate(), "WS_MAX_FRAME_SIZE")
}

func TestLoad_RejectsZeroPongWait(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/concord")
	t.Setenv("WS_PONG_WAIT", "0s")

	_, err := load(viper.New())
	assert.ErrorContains(t, err, "WS_PONG_WAIT")
}
