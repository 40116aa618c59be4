package db

import (
	"testing"
	"time"

	"github.com/mpas/sequencer/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	cfg := &config.Config{
		Service: config.ServiceConfig{Name: "sequencer"},
		Database: config.DatabaseConfig{
			Host:        "db.plant.local",
			Port:        5433,
			Database:    "mpas",
			User:        "planner",
			Password:    "secret",
			SSLMode:     "disable",
			MaxConns:    12,
			MinConns:    3,
			MaxIdleTime: 10 * time.Minute,
			MaxLifetime: time.Hour,
		},
	}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(3), pc.MinConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 10*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "db.plant.local", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "planner", pc.ConnConfig.User)
	assert.Equal(t, "UTC", pc.ConnConfig.RuntimeParams["timezone"])
	assert.Equal(t, "sequencer", pc.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfig_BadURL(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{SSLMode: "not-a-mode", Host: "h", Port: 1}}
	_, err := PoolConfig(cfg)
	assert.Error(t, err)
}
