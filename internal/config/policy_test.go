package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestLoadPolicy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := LoadPolicy(nil)
		assert.Equal(t, DefaultPolicy(), p)
		assert.Equal(t, 90, p.AutoClassifyThreshold)
		assert.Equal(t, 70, p.ProposeThreshold)
		assert.InDelta(t, 0.05, p.RecurringTolerance, 1e-9)
		assert.Equal(t, 2, p.PendingRetryBudget)
	})

	t.Run("overrides", func(t *testing.T) {
		v := viper.New()
		v.Set("policy.auto_classify_threshold", 95)
		v.Set("policy.spike_threshold", 0.8)

		p := LoadPolicy(v)
		assert.Equal(t, 95, p.AutoClassifyThreshold)
		assert.InDelta(t, 0.8, p.SpikeThreshold, 1e-9)
		assert.Equal(t, 70, p.ProposeThreshold)
	})
}

func TestExpandPathEnvVar(t *testing.T) {
	t.Setenv("PHI_TEST_DIR", "/tmp/phi")
	assert.Equal(t, "/tmp/phi/phi.db", ExpandPath("$PHI_TEST_DIR/phi.db"))
	assert.Equal(t, "", ExpandPath(""))
}
