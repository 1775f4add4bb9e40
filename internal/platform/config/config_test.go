package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sequential", cfg.Blocklist.AuditMode)
	assert.Equal(t, 8, cfg.Blocklist.MatchConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.StoreTimeout)
	assert.Equal(t, []string{"ADMIN", "MANAGER"}, cfg.Blocklist.AllowedRoles)
	assert.Equal(t, PolicyConfig{MaxRequests: 10, WindowSeconds: 900}, cfg.RateLimit.Policies["verify"])
	assert.Len(t, cfg.RateLimit.Policies, len(DefaultPolicies))
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SENDERGUARD_SERVER_ADDR", ":9090")
	t.Setenv("SENDERGUARD_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SENDERGUARD_BLOCKLIST_MATCHCONCURRENCY", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Blocklist.MatchConcurrency)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Blocklist: BlocklistConfig{AuditMode: "sequential", MatchConcurrency: 1},
			RateLimit: RateLimitConfig{Policies: map[string]PolicyConfig{"api": {MaxRequests: 1, WindowSeconds: 1}}},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown audit mode rejected", func(t *testing.T) {
		cfg := valid()
		cfg.Blocklist.AuditMode = "eventual"
		assert.Error(t, cfg.Validate())
	})

	t.Run("transactional mode needs postgres", func(t *testing.T) {
		cfg := valid()
		cfg.Blocklist.AuditMode = "transactional"
		assert.Error(t, cfg.Validate())
		cfg.Postgres.DSN = "postgres://localhost/senderguard"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("non-positive policy rejected", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimit.Policies["bad"] = PolicyConfig{MaxRequests: 0, WindowSeconds: 60}
		assert.Error(t, cfg.Validate())
	})
}
