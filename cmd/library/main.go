package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"libraryapi/internal/app"
	"libraryapi/internal/config"
	"libraryapi/internal/notify"
	"libraryapi/internal/ratelimit"
	"libraryapi/internal/scheduler"
	"libraryapi/internal/server"
	"libraryapi/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		DatabaseDriver: cfg.DatabaseDriver,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	}

	srvCfg := server.Config{App: appCore, TrustedProxies: trusted}
	if cfg.WriteRateLimitPerMinute > 0 {
		limiter, err := ratelimit.NewFixedWindowLimiter(redisClient, "library:ratelimit:write", cfg.WriteRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		srvCfg.WriteLimiter = limiter
	}
	httpServer, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	var gateway notify.Gateway = notify.LogGateway{Logger: logger}
	var worker *notify.StreamWorker
	if cfg.NotifyRedisStream != "" {
		streamGateway, err := notify.NewRedisStreamGateway(redisClient, cfg.NotifyRedisStream, 0)
		if err != nil {
			log.Fatalf("failed to init notify stream: %v", err)
		}
		if cfg.NotifyWorker {
			worker, err = notify.NewStreamWorker(redisClient, notify.StreamWorkerConfig{Stream: cfg.NotifyRedisStream}, gateway)
			if err != nil {
				log.Fatalf("failed to init notify worker: %v", err)
			}
		}
		gateway = streamGateway
	}
	reminders, err := scheduler.NewReminderJob(gateway, cfg.ReminderEmail, cfg.ReminderCron)
	if err != nil {
		log.Fatalf("failed to init reminder job: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("library server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return reminders.Run(gctx) })
	if worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("library server stopped")
}
