package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"readaloud/internal/app"
	"readaloud/internal/config"
	"readaloud/internal/server"
	"readaloud/internal/util"
	"readaloud/pkg/queue"
	"readaloud/pkg/storage"
	"readaloud/pkg/store"
	"readaloud/pkg/tts"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to the configuration file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	util.InitLogger(cfg.LogLevel)

	application, err := buildApp(cfg)
	if err != nil {
		slog.Error("init application", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(server.Config{
		App:                         application,
		RedisAddr:                   cfg.RedisAddr,
		RedisPassword:               cfg.RedisPassword,
		RegisterRateLimitPerMinute:  cfg.RegisterRateLimitPerMinute,
		TokenRateLimitPerMinute:     cfg.LoginRateLimitPerMinute,
		SynthesisRateLimitPerMinute: cfg.SynthesisRateLimitPerMinute,
		MaxUploadBytes:              cfg.MaxUploadBytes,
	})
	if err != nil {
		slog.Error("init server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers := cfg.QueueWorkers
	if workers <= 0 {
		workers = 2
	}
	application.StartWorker(ctx, workers)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

func buildApp(cfg config.FileConfig) (*app.App, error) {
	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	media, err := storage.NewMediaStore(cfg.MediaRoot)
	if err != nil {
		return nil, err
	}

	leeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		return nil, err
	}

	appCfg := app.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		SecretKey:     cfg.SecretKey,
		SessionTTL:    cfg.SessionTTL(),
		JWTIssuer:     cfg.JWTIssuer,
		JWTAudience:   cfg.JWTAudience,
		JWTLeeway:     leeway,
		DocPrefix:     cfg.DocPath,
		ImagePrefix:   cfg.ImgPath,
		AudioPrefix:   cfg.AudioPath,
		ChunkSize:     cfg.ChunkSize,
		Store:         st,
		Media:         media,
	}

	if cfg.MinioEndpoint != "" {
		archive, err := storage.NewMinioArchive(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		appCfg.Archive = archive
		slog.Info("audio archive enabled", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)
	}

	if cfg.RedisAddr != "" {
		stream := cfg.QueueStream
		if stream == "" {
			stream = "synthesis_jobs"
		}
		jobs, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   stream,
			Group:    cfg.QueueGroup,
		})
		if err != nil {
			return nil, err
		}
		appCfg.Jobs = jobs
	}

	if cfg.LocalTTSCommand != "" {
		opts := []tts.LocalOption{}
		if cfg.LocalTTSVoiceFlag != "" {
			opts = append(opts, tts.WithVoiceFlag(cfg.LocalTTSVoiceFlag))
		}
		if cfg.ChunkSize > 0 {
			opts = append(opts, tts.WithChunkSize(cfg.ChunkSize))
		}
		local, err := tts.NewLocalEngine(cfg.LocalTTSCommand, cfg.LocalTTSArgs, opts...)
		if err != nil {
			return nil, err
		}
		appCfg.LocalEngine = local
		slog.Info("local synthesis engine enabled", "command", cfg.LocalTTSCommand)
	}

	if cfg.SpeechAPIURL != "" {
		cloud, err := tts.NewCloudClient(cfg.SpeechAPIURL, tts.Credentials{
			AccessKeyID:     cfg.SpeechAccessKeyID,
			SecretAccessKey: cfg.SpeechSecretAccessKey,
			Region:          cfg.SpeechRegion,
		})
		if err != nil {
			return nil, err
		}
		appCfg.CloudClient = cloud
		slog.Info("cloud synthesis engine enabled", "url", cfg.SpeechAPIURL)
	}

	return app.New(appCfg)
}
