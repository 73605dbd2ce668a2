package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"f451comms/internal/config"
	"f451comms/internal/domain/dispatch"
	"f451comms/internal/infra/chat"
	"f451comms/internal/infra/email"
	"f451comms/internal/infra/ratelimit"
	"f451comms/internal/infra/sms"
	"f451comms/internal/infra/social"
	"f451comms/internal/router"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if level, err := dispatch.ParseLogLevel(cfg.Main.LogLevel); err == nil {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Channel registry: each enabled channel gets its adapter; channels with
	// missing credentials are skipped, not fatal.
	registry := dispatch.NewRegistry(cfg.ChannelAliases())

	if cfg.Mailgun.Enabled() {
		p, err := email.NewMailgunProvider(cfg.Mailgun.PrivAPIKey, cfg.Mailgun.FromDomain, cfg.Mailgun.FromName)
		if err != nil {
			slog.Error("failed to initialize mailgun channel", "error", err)
			os.Exit(1)
		}
		mustRegister(registry, p, cfg.Mailgun.Defaults())
	}
	if cfg.Slack.Enabled() {
		p, err := chat.NewSlackProvider(cfg.Slack.AuthToken, cfg.Slack.FromSlack)
		if err != nil {
			slog.Error("failed to initialize slack channel", "error", err)
			os.Exit(1)
		}
		mustRegister(registry, p, cfg.Slack.Defaults())
	}
	if cfg.Twilio.Enabled() {
		p, err := sms.NewTwilioProvider(cfg.Twilio.AcctSID, cfg.Twilio.AuthToken, cfg.Twilio.FromPhone)
		if err != nil {
			slog.Error("failed to initialize twilio channel", "error", err)
			os.Exit(1)
		}
		mustRegister(registry, p, cfg.Twilio.Defaults())
	}
	if cfg.Twitter.Enabled() {
		p, err := social.NewTwitterProvider(cfg.Twitter.UserKey, cfg.Twitter.UserSecret, cfg.Twitter.AuthToken, cfg.Twitter.AuthSecret)
		if err != nil {
			slog.Error("failed to initialize twitter channel", "error", err)
			os.Exit(1)
		}
		mustRegister(registry, p, cfg.Twitter.Defaults())
	}

	if len(registry.Channels()) == 0 {
		slog.Error("no communication channels configured")
		os.Exit(1)
	}
	slog.Info("channel registry initialized", "channels", registry.Channels())

	// Per-channel dispatch throttle (optional, requires Redis)
	var throttle dispatch.Throttle
	if cfg.Redis.Address != "" && cfg.ChannelRateLimit.MaxPerHour > 0 {
		channelThrottle := ratelimit.NewRedisChannelThrottle(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.ChannelRateLimit.MaxPerHour,
		)
		defer channelThrottle.Close()
		throttle = channelThrottle
		slog.Info("channel throttle initialized", "max_per_hour", cfg.ChannelRateLimit.MaxPerHour)
	}

	// Dispatcher
	dispatcher := dispatch.NewDispatcher(registry, dispatch.Options{
		DefaultChannels: cfg.DefaultChannels(),
		SuppressErrors:  cfg.Main.SuppressErrors,
		Throttle:        throttle,
	})

	// Handler
	dispatchHandler := dispatch.NewHandler(dispatcher)

	// Router
	r := router.New(cfg, dispatchHandler, registry)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

func mustRegister(registry *dispatch.Registry, p dispatch.Provider, defaults map[string]string) {
	if err := registry.Register(p, defaults); err != nil {
		slog.Error("failed to register channel", "channel", p.Channel(), "error", err)
		os.Exit(1)
	}
}
