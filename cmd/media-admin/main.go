package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meridian-im/media-admin-api/internal/handler"
	"github.com/meridian-im/media-admin-api/internal/middleware"
	"github.com/meridian-im/media-admin-api/internal/repository"
	"github.com/meridian-im/media-admin-api/internal/service"
	"github.com/meridian-im/media-admin-api/pkg/cache"
	"github.com/meridian-im/media-admin-api/pkg/config"
	"github.com/meridian-im/media-admin-api/pkg/database"
	"github.com/meridian-im/media-admin-api/pkg/jobs"
	"github.com/meridian-im/media-admin-api/pkg/logger"
	corsmiddleware "github.com/meridian-im/media-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/meridian-im/media-admin-api/pkg/middleware/requestid"
	"github.com/meridian-im/media-admin-api/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	mediaStore, err := storage.NewMediaStore(cfg.Media.StoragePath)
	if err != nil {
		logr.Sugar().Fatalw("failed to open media store", "error", err)
	}

	mediaRepo := repository.NewMediaRepository(db, cfg.ServerName)
	roomMediaRepo := repository.NewRoomMediaRepository(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var cacheRepo *repository.CacheRepository
	if cfg.Media.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, room media caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close()
		}
	}

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT, logr)

	var roomCache service.RoomMediaCache
	if cacheRepo != nil {
		roomCache = cacheRepo
	}
	resolverSvc := service.NewResolverService(roomMediaRepo, roomCache, metricsSvc, logr, cfg.ServerName, cfg.Media.RoomMediaCacheTTL)
	quarantineSvc := service.NewQuarantineService(mediaRepo, resolverSvc, userRepo, auditRepo, metricsSvc, logr)
	mediaSvc := service.NewMediaService(mediaRepo, userRepo, logr)
	purgeSvc := service.NewPurgeService(mediaRepo, mediaStore, auditRepo, metricsSvc, logr, service.PurgeConfig{
		Concurrency:   cfg.Purge.Concurrency,
		BatchDeadline: cfg.Purge.BatchDeadline,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	handler.RegisterRoutes(r, cfg.APIPrefix,
		handler.NewMediaHandler(resolverSvc, mediaSvc, purgeSvc),
		handler.NewQuarantineHandler(quarantineSvc),
		handler.NewPurgeHandler(purgeSvc, cfg.ServerName),
		handler.NewAuditHandler(auditRepo),
		middleware.JWT(authSvc), middleware.RequireAdmin())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sweeper *jobs.Sweeper
	if cfg.Purge.SweepEnabled {
		sweeper = jobs.NewSweeper("remote-cache-retention", func(ctx context.Context) error {
			beforeTS := time.Now().Add(-cfg.Purge.RemoteCacheMaxAge).UnixMilli()
			result, err := purgeSvc.PurgeRemoteCache(ctx, beforeTS, "@system:"+cfg.ServerName)
			if err != nil {
				return err
			}
			logr.Sugar().Infow("retention sweep finished", "deleted", len(result.DeletedMedia), "candidates", result.Total)
			return nil
		}, jobs.SweeperConfig{
			Interval:    cfg.Purge.SweepInterval,
			PassTimeout: cfg.Purge.BatchDeadline,
			Logger:      logr,
		})
		sweeper.Start(ctx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "server_name", cfg.ServerName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
