package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/config"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/integrations"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/mail"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/metrics"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/server"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/store"
	"github.com/eaglebraz48/zolarus-proxy-sub000/internal/sweep"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	envFile := pflag.StringP("env", "e", "", "path to .env file")
	port := pflag.StringP("port", "p", "", "override HTTP port")
	logLevel := pflag.StringP("log", "l", "", "override log level")
	pflag.Parse()

	// Load environment variables from .env file
	var envErr error
	if *envFile != "" {
		envErr = godotenv.Load(*envFile)
	} else {
		envErr = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := newLogger(cfg)
	slog.SetDefault(log)

	if envErr != nil {
		log.Warn(".env file not found, using environment variables or defaults")
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("sweeper starting", "instance_id", cfg.InstanceID)

	m := metrics.New()

	db, err := integrations.InitDB(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient := integrations.InitRedis(ctx, cfg, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	pool, err := mail.NewPool(ctx, mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		From:     cfg.SMTPFrom,
		Password: cfg.SMTPPassword,
		PoolSize: cfg.SMTPPoolSize,
	}, log)
	if err != nil {
		log.Error("failed to initialize SMTP pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var limiter *rate.Limiter
	if cfg.SendRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSecond), cfg.SendRatePerSecond)
	}

	sweeper := sweep.New(
		store.NewReminderStore(db),
		store.NewProfileStore(db),
		mail.NewSMTPMailer(pool, cfg.SMTPFrom, log),
		m,
		log,
		sweep.Options{
			Lookback:   cfg.Lookback,
			Lookahead:  cfg.Lookahead,
			BatchLimit: cfg.SweepBatchLimit,
			Limiter:    limiter,
		},
	)

	go metrics.LogPeriodically(ctx, m, time.Duration(cfg.MetricsIntervalSeconds)*time.Second, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(sweeper, m, cfg, log, redisClient).Router(),
	}

	go func() {
		log.Info("trigger server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("trigger server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	log.Info("shut down complete")
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, ok := logLevelMap[cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	if cfg.LogFormat == "text" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
