// Package config loads the notebook server settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"

	RevisionCacheNone  = "none"
	RevisionCacheRedis = "redis"
)

// Config holds the runtime settings of the notebook server.
type Config struct {
	DBDriver            string
	DBDSN               string
	LockBackend         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	LockTTL             time.Duration
	RevisionCompression string
	RevisionCache       string
	RevisionCacheTTL    time.Duration
	SessionIdleTimeout  time.Duration
	SessionSweepCron    string
	AutosaveMaxAge      time.Duration
	AutosaveSweepCron   string
	OpenPermissions     bool
	HTTPPort            string
	LogLevel            string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.DBDriver = DriverSqlite
	c.DBDSN = "notebook.db"
	c.LockBackend = LockBackendMemory
	c.RedisAddr = "localhost:6379"
	c.LockTTL = 0
	c.RevisionCompression = "gzip"
	c.RevisionCache = RevisionCacheNone
	c.RevisionCacheTTL = time.Hour
	c.SessionIdleTimeout = 30 * time.Minute
	c.SessionSweepCron = "@every 1m"
	c.AutosaveMaxAge = 24 * time.Hour
	c.AutosaveSweepCron = "@every 1h"
	c.HTTPPort = "8030"
	c.LogLevel = "info"
}

// LoadConfig applies the defaults and overlays the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.DBDSN = getEnv("DB_DSN", cfg.DBDSN)
	cfg.LockBackend = getEnv("LOCK_BACKEND", cfg.LockBackend)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RevisionCompression = getEnv("REVISION_COMPRESSION", cfg.RevisionCompression)
	cfg.RevisionCache = getEnv("REVISION_CACHE", cfg.RevisionCache)
	cfg.SessionSweepCron = getEnv("SESSION_SWEEP_CRON", cfg.SessionSweepCron)
	cfg.AutosaveSweepCron = getEnv("AUTOSAVE_SWEEP_CRON", cfg.AutosaveSweepCron)
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.OpenPermissions, err = getEnvBool("OPEN_PERMISSIONS", cfg.OpenPermissions); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getEnvDuration("LOCK_TTL", cfg.LockTTL); err != nil {
		return nil, err
	}
	if cfg.RevisionCacheTTL, err = getEnvDuration("REVISION_CACHE_TTL", cfg.RevisionCacheTTL); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout); err != nil {
		return nil, err
	}
	if cfg.AutosaveMaxAge, err = getEnvDuration("AUTOSAVE_MAX_AGE", cfg.AutosaveMaxAge); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSqlite, DriverPostgres:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.LockBackend {
	case LockBackendMemory, LockBackendRedis:
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}

	switch c.RevisionCache {
	case RevisionCacheNone, RevisionCacheRedis:
	default:
		return fmt.Errorf("unknown REVISION_CACHE %q", c.RevisionCache)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return nil
}

// SetupLogging applies the configured log level.
func (c *Config) SetupLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// GetDb opens the configured database.
func GetDb(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DBDSN)
	case DriverSqlite:
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver == DriverSqlite {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logrus.Infof("connected to %s database", cfg.DBDriver)

	return db, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
