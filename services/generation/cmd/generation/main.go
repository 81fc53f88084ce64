package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"creatorlab/internal/doclock"
	"creatorlab/internal/servicetoken"
	"creatorlab/internal/util"
	"creatorlab/services/generation/internal/app"
	"creatorlab/services/generation/internal/config"
	"creatorlab/services/generation/internal/server"
)

const janitorInterval = time.Hour

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	internalVerifyKeys, err := servicetoken.ParseVerifyPublicKeys(cfg.InternalJWTVerifyPublicKeys)
	if err != nil {
		log.Fatalf("failed to parse internal jwt verify public keys: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	locker, err := doclock.NewLocker(redisClient, "", 5*time.Minute)
	if err != nil {
		log.Fatalf("failed to init document locker: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:            cfg.DatabaseURL,
		Locker:                 locker,
		RedisAddr:              cfg.RedisAddr,
		RedisPassword:          cfg.RedisPassword,
		QueueStream:            cfg.QueueStream,
		QueueGroup:             cfg.QueueGroup,
		QueueMaxRetries:        cfg.QueueMaxRetries,
		QueueRetryDelaySeconds: cfg.QueueRetryDelaySeconds,
		Provider:               cfg.Provider,
		ProviderBaseURL:        cfg.ProviderBaseURL,
		ProviderAPIKey:         cfg.ProviderAPIKey,
		Model:                  cfg.Model,
		PricePerKTokens:        cfg.PricePerKTokens,
		CacheTTLHours:          cfg.CacheTTLHours,
		MinioEndpoint:          cfg.MinioEndpoint,
		MinioAccessKey:         cfg.MinioAccessKey,
		MinioSecretKey:         cfg.MinioSecretKey,
		MinioBucket:            cfg.MinioBucket,
		MinioUseSSL:            cfg.MinioUseSSL,
		AMQPURL:                cfg.AMQPURL,
		AMQPExchange:           cfg.AMQPExchange,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                         appCore,
		InternalJWTKeyID:            cfg.InternalJWTKeyID,
		InternalJWTPublicKeyPath:    cfg.InternalJWTPublicKeyPath,
		InternalJWTVerifyPublicKeys: internalVerifyKeys,
		RedisAddr:                   cfg.RedisAddr,
		RedisPassword:               cfg.RedisPassword,
		RateLimitPerMinute:          cfg.RateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("generation server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		appCore.StartWorkers(gctx, cfg.QueueConcurrency)
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				appCore.CleanupCheckpoints()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}
