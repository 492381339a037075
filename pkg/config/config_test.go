package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CALENDAR_SOURCE", "static")
	t.Setenv("LIVEKIT_USE_MOCK", "true")
}

func TestLoadDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Scheduler.ConcurrencyLimit)
	assert.Equal(t, 9222, cfg.Scheduler.BasePort)
	assert.Equal(t, time.Minute, cfg.Scheduler.LeadTime)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.DiscoveryWindow)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.CyclePause)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.ProbeInterval)
	assert.Equal(t, 3, cfg.Server.StartAttempts)
	assert.Equal(t, 5*time.Second, cfg.Server.RestartDelay)
	assert.Equal(t, 3, cfg.Server.InitAttempts)
	assert.Equal(t, 2*time.Second, cfg.Server.InitDelay)
	assert.Equal(t, "memory", cfg.Failure.Backend)
	assert.False(t, cfg.Database.Enabled)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 720*time.Hour, cfg.Database.Retention)
	assert.Empty(t, cfg.Server.APIToken)
	assert.Equal(t, "0.0.0.0:8080", cfg.GetServerAddr())
}

func TestLoadOverrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("MAX_CONCURRENT_MEETINGS", "4")
	t.Setenv("BASE_PORT", "10000")
	t.Setenv("CYCLE_PAUSE", "5s")
	t.Setenv("MONITORED_CALENDARS", "a@example.com,b@example.com")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("STATUS_API_TOKEN", "s3cret")
	t.Setenv("DB_HISTORY_RETENTION", "0s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Scheduler.ConcurrencyLimit)
	assert.Equal(t, 10000, cfg.Scheduler.BasePort)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.CyclePause)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Calendar.CalendarIDs)
	assert.Contains(t, cfg.GetDatabaseDSN(), "host=db.internal")
	assert.Equal(t, "cache.internal:6379", cfg.GetRedisAddr())
	assert.Equal(t, "s3cret", cfg.Server.APIToken)
	assert.Zero(t, cfg.Database.Retention)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"zero concurrency", map[string]string{"MAX_CONCURRENT_MEETINGS": "0"}},
		{"port range overflow", map[string]string{"BASE_PORT": "65530", "MAX_CONCURRENT_MEETINGS": "10"}},
		{"zero probe interval", map[string]string{"PROBE_INTERVAL": "0s"}},
		{"unknown environment", map[string]string{"ENVIRONMENT": "qa"}},
		{"google without subject", map[string]string{"CALENDAR_SOURCE": "google"}},
		{"livekit without keys", map[string]string{"LIVEKIT_USE_MOCK": "false"}},
		{"unknown failure backend", map[string]string{"FAILURE_BACKEND": "etcd"}},
		{"negative retention", map[string]string{"DB_HISTORY_RETENTION": "-1h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
