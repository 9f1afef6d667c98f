package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crnapay/crnapay-stack/common/messaging"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8095, cfg.Server.Port)
	assert.True(t, cfg.Consumer.Enabled)
	assert.Equal(t, messaging.ConsumerBudgetMonitor, cfg.Consumer.Name)
	assert.Equal(t, "@monthly", cfg.Reset.Schedule)
	assert.Equal(t, "budget:pause:", cfg.Guard.KeyPrefix)

	js := cfg.Consumer.JetStream()
	assert.Equal(t, messaging.SubjectBudgetAlerts, js.FilterSubject)
	assert.Equal(t, 10, js.MaxDeliver)
	assert.Equal(t, 10*time.Second, js.NakDelay)
}

func TestLoad_RequiresRedis(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BUDGET_REDIS_ENABLED", "false")

	_, err := Load("")
	assert.ErrorContains(t, err, "redis.enabled")
}

func TestLoad_BadTimeZone(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BUDGET_RESET_TIME_ZONE", "Mars/Olympus_Mons")

	_, err := Load("")
	assert.ErrorContains(t, err, "reset.time_zone")
}
