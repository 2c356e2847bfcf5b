package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "postgres://notebook@localhost/notebook")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("LOCK_TTL", "2h")
	t.Setenv("SESSION_IDLE_TIMEOUT", "45m")
	t.Setenv("REDIS_DB", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://notebook@localhost/notebook", cfg.DBDSN)
	assert.Equal(t, LockBackendRedis, cfg.LockBackend)
	assert.Equal(t, 2*time.Hour, cfg.LockTTL)
	assert.Equal(t, 45*time.Minute, cfg.SessionIdleTimeout)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "@every 1m", cfg.SessionSweepCron)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "driver", key: "DB_DRIVER", value: "mysql"},
		{name: "lock backend", key: "LOCK_BACKEND", value: "etcd"},
		{name: "duration", key: "LOCK_TTL", value: "soon"},
		{name: "redis db", key: "REDIS_DB", value: "first"},
		{name: "log level", key: "LOG_LEVEL", value: "loud"},
		{name: "revision cache", key: "REVISION_CACHE", value: "memcached"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestGetDb_Sqlite(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()
	cfg.DBDSN = "file::memory:"

	db, err := GetDb(cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	require.NoError(t, sqlDB.Close())
}
