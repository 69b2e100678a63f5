package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "8080", cfg.App.Port)
				assert.Equal(t, 30, cfg.Monitor.DefaultRefreshSeconds)
				assert.Equal(t, []int{10, 30, 60, 300}, cfg.Monitor.AllowedRefreshSeconds)
				assert.Equal(t, 120, cfg.Monitor.SLAWarningMinutes)
				assert.Equal(t, 95.0, cfg.Monitor.HealthCriticalPct)
				assert.Equal(t, 5, cfg.Monitor.AlertBufferSize)
				assert.Empty(t, cfg.Kafka.Brokers)
			},
		},
		{
			name: "custom monitor settings",
			env: map[string]string{
				"MONITOR_REFRESH_SECONDS": "60",
				"MONITOR_WATCH_QUEUES":    "q-1, q-2",
				"KAFKA_BROKERS":           "k1:9092,k2:9092",
				"SLA_WARNING_MINUTES":     "45",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60, cfg.Monitor.DefaultRefreshSeconds)
				assert.Equal(t, []string{"q-1", "q-2"}, cfg.Monitor.WatchQueueIDs)
				assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
				assert.Equal(t, 45, cfg.Monitor.SLAWarningMinutes)
			},
		},
		{
			name:    "refresh interval outside allowed set",
			env:     map[string]string{"MONITOR_REFRESH_SECONDS": "15"},
			wantErr: true,
		},
		{
			name:    "thresholds not descending",
			env:     map[string]string{"HEALTH_WARNING_PCT": "96"},
			wantErr: true,
		},
		{
			name:    "invalid redis db",
			env:     map[string]string{"REDIS_DB": "abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestMonitorConfigIntervalAllowed(t *testing.T) {
	m := Defaults()
	assert.True(t, m.IntervalAllowed(10))
	assert.True(t, m.IntervalAllowed(300))
	assert.False(t, m.IntervalAllowed(20))
	require.NoError(t, m.Validate())
}
