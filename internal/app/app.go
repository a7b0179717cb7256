// Package app builds the object graph shared by the API server and the
// operator CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goodies-platform/config"
	"goodies-platform/internal/domain/settings"
	"goodies-platform/internal/mailer"
	"goodies-platform/internal/payments"
	"goodies-platform/internal/payments/paypal"
	"goodies-platform/internal/payments/stripe"
	"goodies-platform/internal/redis"
	"goodies-platform/internal/repository"
	"goodies-platform/internal/repository/memory"
	"goodies-platform/internal/services"
	"goodies-platform/internal/storage"
	"goodies-platform/pkg/database"
	"goodies-platform/pkg/logger"
)

type App struct {
	Config *config.Config
	Log    *logger.Logger

	// DB is nil with the memory driver; Redis is nil when disabled.
	DB    *sql.DB
	Redis *goredis.Client

	Providers *payments.Registry
	Ledger    repository.LedgerRepository
	Donations repository.DonationStore
	Failures  repository.FailureRepository

	Reconciler *services.Reconciler
	Webhooks   *services.WebhookService
	Replay     *services.ReplayService
	Settings   *services.SettingsService
	AdminAuth  *services.AdminAuthService
	Receipts   *services.ReceiptDispatcher
	Sink       *services.FanoutSink
	Sweeper    *services.LedgerSweeper

	Publisher   *redis.Publisher
	Subscriber  *redis.Subscriber
	RateLimiter *redis.RateLimiter
}

// Build connects storage and wires services. Redis and the S3 archive are
// optional: when they are not configured the features they back are off.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = client
		a.Publisher = redis.NewPublisher(client)
		a.Subscriber = redis.NewSubscriber(client)
		a.RateLimiter = redis.NewRateLimiter(client, redis.DefaultRateLimitConfig())
	}

	a.Providers = payments.NewRegistry(buildProviders(cfg)...)
	a.Reconciler = services.NewReconciler(a.Donations)

	var (
		alerts  services.AlertPublisher
		archive services.PayloadArchive
		store   services.SettingsStore
	)
	if a.Publisher != nil {
		alerts = a.Publisher
		store = redis.NewSettingsStore(a.Redis)
	}
	totals := a.Totals()
	if cfg.Archive.Bucket != "" {
		arc, err := storage.NewArchive(ctx, cfg.Archive)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("payload archive: %w", err)
		}
		archive = arc
	}

	a.Receipts = services.NewReceiptDispatcher(mailer.NewSMTPMailer(cfg.SMTP), services.DispatcherConfig{
		Workers:     cfg.Notifier.Workers,
		QueueSize:   cfg.Notifier.QueueSize,
		SendTimeout: cfg.Notifier.SendTimeout,
	}, log)

	a.Sink = services.NewFanoutSink(a.Failures, alerts, archive, services.SinkConfig{
		Timeout:   cfg.Notifier.SinkTimeout,
		QueueSize: cfg.Notifier.QueueSize,
	}, log)
	a.Webhooks = services.NewWebhookService(a.Providers, a.Ledger, a.Reconciler, a.Sink, a.Receipts, totals, log)
	a.Replay = services.NewReplayService(a.Failures, a.Providers, a.Reconciler, totals, log)
	a.Settings = services.NewSettingsService(settings.Runtime{Maintenance: cfg.Maintenance, UpdatedAt: time.Now().UTC()}, store, log)
	a.AdminAuth = services.NewAdminAuthService(cfg.Admin.JWTSecret, cfg.Admin.KeyHash, cfg.Admin.TokenTTL)
	a.Sweeper = services.NewLedgerSweeper(a.Ledger, cfg.Ledger.Retention, cfg.Ledger.SweepInterval, log)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case "memory":
		store := memory.NewStore()
		if path := a.Config.Database.SeedFile; path != "" {
			n, err := SeedCampaigns(path, store)
			if err != nil {
				return err
			}
			a.Log.Info(ctx, "seeded memory campaigns", zap.Int("count", n), zap.String("file", path))
		}
		a.Ledger = memory.NewLedger()
		a.Donations = store
		a.Failures = memory.NewFailures()
		a.Log.Warn(ctx, "using in-memory storage; state is lost on restart and not shared between instances")
		return nil
	default:
		db, err := database.Connect(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		a.DB = db
		a.Ledger = repository.NewLedgerRepository(db)
		a.Donations = repository.NewDonationStore(db)
		a.Failures = repository.NewFailureRepository(db)
		return nil
	}
}

func buildProviders(cfg *config.Config) []payments.Provider {
	var out []payments.Provider
	if cfg.Stripe.WebhookSecret != "" {
		out = append(out, stripe.New(cfg.Stripe.WebhookSecret, cfg.Stripe.Tolerance))
	}
	if cfg.PayPal.Enabled() {
		out = append(out, paypal.New(paypal.Config{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			WebhookID:    cfg.PayPal.WebhookID,
			APIBase:      cfg.PayPal.APIBase,
		}))
	}
	return out
}

// RequireDB fails for commands that need shared storage.
func (a *App) RequireDB() error {
	if a.DB == nil {
		return errors.New("this command needs DB_DRIVER=postgres")
	}
	return nil
}

func (a *App) HealthCheck(ctx context.Context) error {
	if a.DB != nil {
		if err := database.HealthCheck(ctx, a.DB); err != nil {
			return err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn(context.Background(), "closing redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn(context.Background(), "closing database", zap.Error(err))
		}
	}
}

// Totals is the live totals publisher, or nil without redis.
func (a *App) Totals() services.TotalsPublisher {
	if a.Publisher == nil {
		return nil
	}
	return a.Publisher
}
