package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mysbind/userhub/internal/config"
	"mysbind/userhub/internal/handler"
	"mysbind/userhub/internal/identity"
	"mysbind/userhub/internal/model"
	"mysbind/userhub/internal/mys"
	"mysbind/userhub/internal/repository"
	"mysbind/userhub/internal/service"
	"mysbind/userhub/pkg/crypto"
	jwtpkg "mysbind/userhub/pkg/jwt"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Initialize logger
	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 3. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Initialize state store (Redis or in-memory)
	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		stateStore = repository.NewRedisStateStore(redisClient, cfg.Database.Redis.KeyPrefix)
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 6. Initialize repositories
	noteUserRepo := repository.NewPGNoteUserRepository(db)
	cookieRepo := repository.NewPGCookieRepository(db)

	// 7. Cookie collaborator
	box, err := crypto.NewBox(cfg.Mys.CookieSecret)
	if err != nil {
		logger.Fatal("invalid mys.cookie_secret", zap.Error(err))
	}
	checker := mys.NewHTTPChecker(cfg.Mys.HealthEndpoint, cfg.Mys.HealthTimeout)
	source := mys.NewSource(cookieRepo, stateStore, checker, box, cfg.Mys.ProfileTTL, logger)

	// 8. Identity core
	games := identity.ParseGames(cfg.Games)
	registry := identity.NewRegistry(noteUserRepo, source, games, logger)
	sweeper := identity.NewSweeper(source, cfg.Sweep.Concurrency, logger)
	logger.Info("identity registry initialized", zap.Any("games", registry.Games()))

	// 9. Services and handlers
	noteUserService := service.NewNoteUserService(registry, sweeper, source, logger)
	noteUserHandler := handler.NewNoteUserHandler(noteUserService)
	adminHandler := handler.NewAdminHandler(noteUserService)

	jwtManager := jwtpkg.NewManager(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL)

	// 10. Setup router
	router := handler.SetupRouter(cfg, logger, jwtManager, noteUserHandler, adminHandler)

	// 11. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 12. Periodic cookie sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if cfg.Sweep.Interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSweepLoop(sweepCtx, noteUserService, cfg.Sweep.Interval, logger)
		}()
	}

	// 13. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 14. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	wg.Wait()
	logger.Info("server exited gracefully")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

func runSweepLoop(ctx context.Context, svc service.NoteUserService, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("cookie sweep scheduled", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.SweepAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduled cookie sweep failed", zap.Error(err))
			}
		}
	}
}
