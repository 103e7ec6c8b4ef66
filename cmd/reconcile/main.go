// Package main runs one reconciliation pass over the bucket and prints the resulting video list as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/videoscribe/config"
	"github.com/aura-webinar/videoscribe/internal/cache"
	"github.com/aura-webinar/videoscribe/internal/metadata"
	"github.com/aura-webinar/videoscribe/internal/metrics"
	"github.com/aura-webinar/videoscribe/internal/models"
	"github.com/aura-webinar/videoscribe/internal/videos"
	"github.com/aura-webinar/videoscribe/pkg/redis"
	"github.com/aura-webinar/videoscribe/pkg/storage"
)

func main() {
	strict := flag.Bool("strict", false, "exit non-zero instead of falling back to cached records when storage fails")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

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

	// A shared Redis cache lets this pass see records of uploads still in flight on the servers.
	var videoCache cache.Cache = cache.NewMemory(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		videoCache = cache.NewRedis(rdb.Client, time.Duration(cfg.Cache.TTLMinutes)*time.Minute, logger)
	}

	reconciler := videos.NewReconciler(s3Client, metadata.NewStore(s3Client, logger), videoCache, metrics.DefaultMetrics, logger)

	var list []models.VideoRecord
	if *strict {
		list, err = reconciler.Reconcile(ctx)
		if err != nil {
			logger.Fatal("reconcile", zap.Error(err))
		}
	} else {
		res := reconciler.List(ctx)
		if res.Degraded {
			logger.Warn("storage unavailable, printed records come from the cache")
		}
		list = res.Videos
	}
	if list == nil {
		list = []models.VideoRecord{}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		logger.Fatal("encode", zap.Error(err))
	}
	logger.Info("reconcile finished", zap.Int("videos", len(list)))
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = []string{"stderr"}
	logger, _ := config.Build()
	return logger
}
