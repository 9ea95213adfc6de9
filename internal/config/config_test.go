package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_USER_IDS", "111, 222")
	t.Setenv("USE_MOCK_DB", "true")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, []int64{111, 222}, cfg.AdminUserIDs)
	assert.True(t, cfg.UseMockDB)
	assert.False(t, cfg.WebhookMode)
	assert.Equal(t, SessionStoreMemory, cfg.SessionStore)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 9000, cfg.ClickHousePort)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "America/Sao_Paulo", cfg.Timezone)
	assert.False(t, cfg.AnalyticsEnabled())
	assert.True(t, cfg.IsAdmin(222))
	assert.False(t, cfg.IsAdmin(333))
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("CLICKHOUSE_HOST", "ch.local")
	t.Setenv("CLICKHOUSE_PORT", "9440")
	t.Setenv("DB_MAX_CONNS", "25")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, SessionStoreRedis, cfg.SessionStore)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, 9440, cfg.ClickHousePort)
	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.True(t, cfg.AnalyticsEnabled())
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "missing token", env: map[string]string{"TELEGRAM_BOT_TOKEN": ""}, want: "TELEGRAM_BOT_TOKEN"},
		{name: "missing admins", env: map[string]string{"ADMIN_USER_IDS": ""}, want: "ADMIN_USER_IDS is required"},
		{name: "bad admin id", env: map[string]string{"ADMIN_USER_IDS": "12,abc"}, want: "invalid user ID"},
		{name: "webhook without url", env: map[string]string{"WEBHOOK_MODE": "true"}, want: "WEBHOOK_URL"},
		{name: "no database", env: map[string]string{"USE_MOCK_DB": "false"}, want: "DATABASE_URL"},
		{name: "redis without url", env: map[string]string{"SESSION_STORE": "redis"}, want: "REDIS_URL"},
		{name: "unknown store", env: map[string]string{"SESSION_STORE": "disk"}, want: "SESSION_STORE"},
		{name: "bad timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}, want: "TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Location(t *testing.T) {
	c := &Config{Timezone: "America/Sao_Paulo"}
	assert.Equal(t, "America/Sao_Paulo", c.Location().String())

	c.Timezone = "nowhere"
	assert.Equal(t, time.UTC, c.Location())
}
