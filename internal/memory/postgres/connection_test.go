package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pumpshort/internal/memory/postgres"
)

func TestDefaultConfig(t *testing.T) {
	cfg := postgres.DefaultConfig()

	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.False(t, cfg.Enabled)
}

func TestNewManagerDisabled(t *testing.T) {
	m, err := postgres.NewManager(postgres.Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, m.IsEnabled())
	assert.Nil(t, m.Repository())
	assert.Nil(t, m.DB())

	health := m.Health().Check(context.Background())
	assert.True(t, health.Healthy)
	require.Len(t, health.Errors, 1)
	assert.Contains(t, health.Errors[0], "disabled")
}

func TestNewManagerMissingDSN(t *testing.T) {
	_, err := postgres.NewManager(postgres.Config{Enabled: true})
	assert.ErrorContains(t, err, "DSN is required")
}

func TestManagerCloseDisabledIsNoop(t *testing.T) {
	m, err := postgres.NewManager(postgres.Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, m.Close())
}
