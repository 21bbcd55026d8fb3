package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, int64(32768), cfg.ReadLimit)
	assert.Equal(t, 32, cfg.SendBuffer)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.True(t, cfg.EvictDuplicates)
	assert.Equal(t, "127.0.0.1:3000", cfg.Addr())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SIGNALING_HOST", "0.0.0.0")
	t.Setenv("SIGNALING_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
}
