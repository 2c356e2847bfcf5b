package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"time"

	"github.com/emrgen/notebook/internal/cache"
	"github.com/emrgen/notebook/internal/compress"
	"github.com/emrgen/notebook/internal/config"
	"github.com/emrgen/notebook/internal/jobs"
	"github.com/emrgen/notebook/internal/lock"
	"github.com/emrgen/notebook/internal/permission"
	"github.com/emrgen/notebook/internal/revision"
	"github.com/emrgen/notebook/internal/service"
	"github.com/emrgen/notebook/internal/session"
	"github.com/emrgen/notebook/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Server exposes the edit services over HTTP.
type Server struct {
	edit     *service.EditService
	records  *service.RecordService
	sessions *session.Registry
}

// NewServer creates a new server
func NewServer(edit *service.EditService, records *service.RecordService, sessions *session.Registry) *Server {
	return &Server{
		edit:     edit,
		records:  records,
		sessions: sessions,
	}
}

// Handler returns the HTTP handler with routes, logging and CORS.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), RequestTimeMiddleware())
	s.SetupRoutes(router)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", HeaderUserID, HeaderSessionID},
		AllowCredentials: true,
	})

	return c.Handler(router)
}

// NewLockRegistry creates the configured lock backend.
func NewLockRegistry(ctx context.Context, cfg *config.Config) (lock.Registry, func() error, error) {
	switch cfg.LockBackend {
	case config.LockBackendRedis:
		registry, err := lock.NewRedisRegistryFromAddr(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL)
		if err != nil {
			return nil, nil, err
		}
		return registry, registry.Close, nil
	case config.LockBackendMemory:
		return lock.NewMemoryRegistry(), func() error { return nil }, nil
	}

	return nil, nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
}

// Start wires the services from cfg and serves until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
	defer stop()

	db, err := config.GetDb(cfg)
	if err != nil {
		return err
	}

	recordStore := store.NewGormStore(db)
	if err := recordStore.Migrate(); err != nil {
		return err
	}

	locks, closeLocks, err := NewLockRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLocks(); err != nil {
			logrus.Errorf("error closing lock registry: %v", err)
		}
	}()

	compressor, err := compress.New(cfg.RevisionCompression)
	if err != nil {
		return err
	}
	archiver := revision.NewArchiver(compressor)
	if cfg.RevisionCache == config.RevisionCacheRedis {
		rc, err := cache.NewRedisRevisionCacheFromAddr(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RevisionCacheTTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		archiver.WithCache(rc)
	}

	var permissions permission.Checker = permission.NewGrants()
	if cfg.OpenPermissions {
		permissions = permission.AllowAll{}
	}

	sessions := session.NewRegistry()
	recordMutex := lock.NewKeyedMutex()
	edit := service.NewEditService(recordStore, locks, recordMutex, archiver, permissions)
	records := service.NewRecordService(recordStore, locks, recordMutex, archiver, permissions)

	executor := jobs.NewTaskExecutor(
		jobs.NewSessionExpiryTask(cfg.SessionSweepCron, cfg.SessionIdleTimeout, sessions, edit),
		jobs.NewAutosaveCleanupTask(cfg.AutosaveSweepCron, cfg.AutosaveMaxAge, edit),
	)
	if err := executor.Start(); err != nil {
		return err
	}
	defer executor.Stop()

	if logrus.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	httpPort := ":" + cfg.HTTPPort
	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		return err
	}

	restServer := &http.Server{
		Handler:           NewServer(edit, records, sessions).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.Info("starting notebook api on: ", httpPort)
		if err := restServer.Serve(rl); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logrus.Infof("notebook api stopped")
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logrus.Infof("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return restServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
