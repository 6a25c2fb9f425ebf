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

	assert.Equal(t, "4000", cfg.ServerPort)
	assert.Equal(t, 80, cfg.CarSpeedKmh)
	assert.Equal(t, 3, cfg.ReserveMaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.DistanceCacheTTL)
	assert.Equal(t, 10*time.Second, cfg.BoardPollInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CAR_SPEED_KMH", "100")
	t.Setenv("RESERVE_MAX_RETRIES", "5")
	t.Setenv("BOARD_POLL_INTERVAL", "30s")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 100, cfg.CarSpeedKmh)
	assert.Equal(t, 5, cfg.ReserveMaxRetries)
	assert.Equal(t, 30*time.Second, cfg.BoardPollInterval)
	assert.True(t, cfg.Debug)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CAR_SPEED_KMH", "fast")
	t.Setenv("BOARD_POLL_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.CarSpeedKmh)
	assert.Equal(t, 10*time.Second, cfg.BoardPollInterval)
}
