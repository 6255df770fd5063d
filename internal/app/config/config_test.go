package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsTest())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, LockBackendMemory, cfg.Locking.Backend)
	assert.Equal(t, 30*time.Second, cfg.Locking.TTL)
	assert.Equal(t, 60*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 10485760, cfg.Extraction.MaxDocumentBytes)
	assert.Equal(t, 0.7, cfg.Reconcile.ReviewThreshold)
	assert.Equal(t, 720*time.Hour, cfg.Worker.ReviewRequestTTL)

	rules := cfg.ScoringRules()
	assert.Equal(t, 7.5, rules.Thresholds.Low)
	assert.Equal(t, 5.0, rules.Thresholds.Medium)
	assert.Equal(t, 0.25, rules.OverallWeight)
	assert.NoError(t, rules.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOW_RISK_THRESHOLD", "8")
	t.Setenv("MEDIUM_RISK_THRESHOLD", "4.5")
	t.Setenv("REVIEW_THRESHOLD", "0.8")
	t.Setenv("DATABASE_URL_TEST", ":memory:")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8.0, cfg.ScoringRules().Thresholds.Low)
	assert.Equal(t, 4.5, cfg.ScoringRules().Thresholds.Medium)
	assert.Equal(t, 0.8, cfg.Reconcile.ReviewThreshold)
	assert.Equal(t, ":memory:", cfg.GetDatabaseURL())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown lock backend", map[string]string{"LOCK_BACKEND": "zookeeper"}},
		{"redis locks without redis", map[string]string{"LOCK_BACKEND": "redis"}},
		{"overlapping risk bands", map[string]string{"LOW_RISK_THRESHOLD": "4", "MEDIUM_RISK_THRESHOLD": "6"}},
		{"review threshold above one", map[string]string{"REVIEW_THRESHOLD": "1.5"}},
		{"zero document size", map[string]string{"MAX_DOCUMENT_BYTES": "0"}},
		{"bad worker interval", map[string]string{"WORKER_INTERVAL": "soon"}},
		{"production without database", map[string]string{"ENVIRONMENT": "production"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "test")
			t.Setenv("DATABASE_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
