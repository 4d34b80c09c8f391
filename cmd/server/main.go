package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/File-Sharing-BondBridg/Share-Service/internal/access"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/api"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/api/handlers"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/configuration"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/logging"
	natsroutes "github.com/File-Sharing-BondBridg/Share-Service/internal/nats"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/ratelimit"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/scan"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/services"
	"github.com/File-Sharing-BondBridg/Share-Service/internal/store"
)

func main() {
	cfg, err := configuration.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	rdb, err := store.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer rdb.Close()
	metaStore := store.New(rdb, logger)

	objects, err := services.NewObjectStore(
		cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey,
		cfg.MinIO.BucketName, cfg.MinIO.UseSSL, logger)
	if err != nil {
		logger.Fatal("minio connection failed", zap.Error(err))
	}

	bus, err := services.ConnectNATS(cfg.NATSURL, logger)
	if err != nil {
		logger.Fatal("nats connection failed", zap.Error(err))
	}
	defer bus.Close()

	limiter := ratelimit.New(metaStore, logger)

	svc := access.NewService(access.Config{
		BaseURL:        cfg.Server.BaseURL,
		MaxFileSize:    cfg.Share.MaxFileSize,
		FileTTL:        cfg.Share.FileTTL,
		TokenTTL:       cfg.Share.TokenTTL,
		UploadURLTTL:   cfg.Share.UploadURLTTL,
		DownloadURLTTL: cfg.Share.DownloadURLTTL,
		ThrottleWindow: cfg.Share.ThrottleWindow,
		ThrottleMax:    cfg.Share.ThrottleMax,
	}, metaStore, objects, limiter, bus, logger)

	metrics := api.NewMetrics()

	scanner := scan.NewScanner(objects, metaStore, bus, cfg.ClamAVURL, logger)
	processor := scan.NewProcessor(objects, metaStore, metrics.InfectedDetected, logger)
	for _, route := range natsroutes.Routes(scanner, processor) {
		if _, err := bus.Subscribe(route.Subject, route.Durable, route.Handler); err != nil {
			logger.Fatal("subscription failed", zap.String("subject", route.Subject), zap.Error(err))
		}
	}

	if cfg.Env == configuration.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(api.RequestLogger(logger))
	r.Use(gin.Recovery())

	h := handlers.NewShareHandler(svc, logger, handlers.Counters{
		SharesCreated:    metrics.SharesCreated,
		DownloadsGranted: metrics.DownloadsGranted,
		RateLimitDenials: metrics.RateLimitDenials,
	})
	health := handlers.Health(map[string]handlers.HealthChecker{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"minio": objects.CheckConnection,
		"nats": func(context.Context) error {
			if !bus.Connected() {
				return errors.New("nats disconnected")
			}
			return nil
		},
	})
	api.RegisterRoutes(r, h, health, metrics, cfg.Server.AllowedOrigin)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
}
