package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("ADMIN_CHAT_ID", "42")
	t.Setenv("POS_BASE_URL", "https://pos.example.com/resto/api")
	t.Setenv("POS_LOGIN", "admin")
	t.Setenv("POS_PASSWORD", "secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.OpsAddr)
	assert.Equal(t, int64(42), cfg.AdminChatID)
	assert.Equal(t, 60*time.Second, cfg.POSTimeout)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL)
	assert.Equal(t, "23:00", cfg.ReportTime)
	assert.Equal(t, 15, cfg.AlertThresholdPct)
	assert.Equal(t, 7, cfg.RollingDays)
	assert.Equal(t, "Europe/Moscow", cfg.Timezone)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresBotToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOT_TOKEN", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsMalformedReportTime(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEFAULT_REPORT_TIME", "25:99")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownTimezone(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TZ", "Nowhere/City")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/City"}
	assert.Equal(t, time.Local, cfg.Location())
}
