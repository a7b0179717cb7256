package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"goodies-platform/config"
	"goodies-platform/internal/app"
	"goodies-platform/internal/handler"
	"goodies-platform/internal/middleware"
	"goodies-platform/internal/server"
	"goodies-platform/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, l)
	if err != nil {
		l.Errorf("Failed to build application: %v", err)
		return
	}
	defer a.Close()

	for _, name := range a.Providers.Names() {
		l.Info(ctx, "webhook provider enabled", zap.String("provider", name))
	}

	if err := a.Settings.Sync(ctx); err != nil {
		l.Warn(ctx, "runtime settings sync failed, using local values", zap.Error(err))
	}
	go a.Settings.Watch(ctx)

	a.Receipts.Start()
	a.Sink.Start()
	go a.Sweeper.Run(ctx)

	var totals server.ChannelSubscriber
	if a.Subscriber != nil {
		totals = a.Subscriber
	}
	var limiter middleware.AdminTokenLimiter
	if a.RateLimiter != nil {
		limiter = a.RateLimiter
	}
	if !a.AdminAuth.Enabled() {
		l.Warn(ctx, "admin API disabled: ADMIN_JWT_SECRET or ADMIN_KEY_HASH not set")
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Webhook: handler.NewWebhookHandler(a.Webhooks, l),
		Admin:   handler.NewAdminHandler(a.AdminAuth, a.Settings, a.Replay, a.Reconciler, a.Totals(), l),
		Live:    server.NewLiveHandler(a.Donations, totals, l),
	}, server.Dependencies{
		AdminAuth:   a.AdminAuth,
		Settings:    a.Settings,
		RateLimiter: limiter,
		HealthCheck: a.HealthCheck,
	})

	if err := srv.Start(func(shutdownCtx context.Context) {
		cancel()
		if err := a.Receipts.Stop(shutdownCtx); err != nil {
			l.Warn(shutdownCtx, "receipt queue not drained", zap.Error(err))
		}
		if err := a.Sink.Stop(shutdownCtx); err != nil {
			l.Warn(shutdownCtx, "failure alerts not drained", zap.Error(err))
		}
	}); err != nil {
		l.Errorf("Server exited with error: %v", err)
	}
}
