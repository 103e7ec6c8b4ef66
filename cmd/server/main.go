// Package main runs the video upload and transcription HTTP server with WebSocket progress and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/videoscribe/config"
	"github.com/aura-webinar/videoscribe/internal/auth"
	"github.com/aura-webinar/videoscribe/internal/cache"
	"github.com/aura-webinar/videoscribe/internal/metadata"
	"github.com/aura-webinar/videoscribe/internal/metrics"
	"github.com/aura-webinar/videoscribe/internal/middleware"
	"github.com/aura-webinar/videoscribe/internal/realtime"
	"github.com/aura-webinar/videoscribe/internal/transcription"
	"github.com/aura-webinar/videoscribe/internal/videos"
	"github.com/aura-webinar/videoscribe/pkg/redis"
	"github.com/aura-webinar/videoscribe/pkg/response"
	"github.com/aura-webinar/videoscribe/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		Bucket:               cfg.AWS.Bucket,
		Endpoint:             cfg.AWS.Endpoint,
		PublicBucket:         cfg.AWS.PublicBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	cacheTTL := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	var (
		videoCache cache.Cache
		userRepo   auth.Repository
		hub        *realtime.Hub
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		videoCache = cache.NewRedis(rdb.Client, cacheTTL, logger)
		userRepo = auth.NewRedisRepository(rdb.Client)
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	} else {
		logger.Warn("REDIS_ADDR not set: cache, users and progress events are process-local")
		videoCache = cache.NewMemory(cfg.Cache.MaxEntries, cacheTTL)
		userRepo = auth.NewMemoryRepository()
		hub = realtime.NewHub(logger, nil, nil)
	}

	if cfg.Transcription.APIKey == "" {
		logger.Warn("TRANSCRIPTION_API_KEY not set: uploaded videos will end in status error")
	}
	transcriber := transcription.NewAssemblyAI(transcription.Config{
		APIKey:        cfg.Transcription.APIKey,
		BaseURL:       cfg.Transcription.BaseURL,
		Language:      cfg.Transcription.Language,
		SpeakerLabels: cfg.Transcription.SpeakerLabel,
		PollInterval:  time.Duration(cfg.Transcription.PollSeconds) * time.Second,
	}, nil, logger)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(userRepo, jwtService, logger)

	// Videos
	metaStore := metadata.NewStore(s3Client, logger)
	reconciler := videos.NewReconciler(s3Client, metaStore, videoCache, metrics.DefaultMetrics, logger)
	pipeline := videos.NewPipeline(s3Client, metaStore, transcriber, videoCache, metrics.DefaultMetrics, logger)
	pipeline.SetMaxBytes(cfg.Upload.MaxBytes)
	pipeline.SetNotifier(hub)

	// Transcriptions outlive their upload request; they stop only at shutdown.
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	videoHandler := videos.NewHandler(bgCtx, reconciler, pipeline, metaStore, videoCache, logger)

	jwtValidate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.MaxMultipartMemory = 32 << 20

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	videoHandler.RegisterRoutes(router, middleware.JWT(jwtService))

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("bucket", cfg.AWS.Bucket))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// Videos still transcribing stay in processing.
	bgCancel()
	videoHandler.Wait()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
