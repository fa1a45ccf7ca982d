package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/auth"
	"github.com/dmitrymomot/nutrilabel/internal/billing"
	"github.com/dmitrymomot/nutrilabel/internal/config"
	"github.com/dmitrymomot/nutrilabel/internal/db/migrations"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/httpapi"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/internal/notify"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/internal/resource"
	"github.com/dmitrymomot/nutrilabel/internal/sweeper"
	"github.com/dmitrymomot/nutrilabel/internal/usage"
	"github.com/dmitrymomot/nutrilabel/pkg/httpserver"
	"github.com/dmitrymomot/nutrilabel/pkg/jwt"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
	"github.com/dmitrymomot/nutrilabel/pkg/pg"
	"github.com/dmitrymomot/nutrilabel/pkg/qrcode"
	"github.com/dmitrymomot/nutrilabel/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("api stopped", logger.Error(err))
		os.Exit(1)
	}
}

// stores groups the persistence backends selected by APP_STORAGE.
type stores struct {
	accounts account.Store
	records  billing.RecordStore
	methods  billing.MethodStore
	usage    usage.Ledger
	items    resource.Store
	locker   sweeper.Locker
	checks   []httpserver.Check
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	opts := []logger.Option{
		logger.WithEnvironment(cfg.App.Env, cfg.App.Name),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	}
	if cfg.App.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
		opts = append(opts, logger.WithLevel(lvl))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	st, catalog, cleanup, err := setupStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	gw, err := setupGateway(cfg, log)
	if err != nil {
		return err
	}
	notifier, err := setupNotifier(cfg, log)
	if err != nil {
		return err
	}

	hasher := auth.NewHasher(0)
	invoices := billing.NewLedger(st.records)
	lc := lifecycle.New(lifecycle.Deps{
		Accounts:  st.accounts,
		Plans:     catalog,
		Gateway:   gw,
		Invoices:  invoices,
		Methods:   st.methods,
		Passwords: hasher,
	},
		lifecycle.WithCancellationGrace(cfg.Lifecycle.CancellationGrace),
		lifecycle.WithNotifier(notifier),
		lifecycle.WithLogger(log),
	)

	tokens, err := jwt.New(cfg.JWT.Secret, jwt.WithIssuer(cfg.JWT.Issuer), jwt.WithTTL(cfg.JWT.TTL))
	if err != nil {
		return err
	}
	tracker := usage.NewTracker(catalog, st.usage, st.items)

	router := httpapi.NewRouter(httpapi.Deps{
		Auth:      auth.NewService(st.accounts, lc, hasher, tokens, log),
		Lifecycle: lc,
		Plans:     catalog,
		Usage:     tracker,
		Resources: resource.NewService(st.accounts, st.items, tracker, st.usage,
			qrcode.NewRenderer(qrcode.Medium), resource.WithLogger(log)),
		Invoices: invoices,
		Methods:  st.methods,
		Tokens:   tokens,
		Logger:   log,
		Checks:   st.checks,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.New(cfg.HTTP, log).Run(ctx, router)
	})
	if cfg.Sweeper.Enabled {
		sw := sweeper.New(st.accounts, lc, st.locker,
			sweeper.WithInterval(cfg.Sweeper.Interval),
			sweeper.WithBatchSize(cfg.Sweeper.BatchSize),
			sweeper.WithLockTTL(cfg.Sweeper.LockTTL),
			sweeper.WithLogger(log),
		)
		g.Go(func() error { return sw.Run(ctx) })
	}
	return g.Wait()
}

func setupStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (stores, *plan.Catalog, func(), error) {
	yamlPlans := plan.YAMLSource{Path: cfg.Catalog.File}

	if cfg.App.Storage == "memory" {
		log.WarnContext(ctx, "using in-memory storage, data is lost on restart")
		catalog, err := plan.Load(ctx, yamlPlans)
		if err != nil {
			return stores{}, nil, nil, err
		}
		return stores{
			accounts: account.NewMemoryStore(),
			records:  billing.NewMemoryRecordStore(),
			methods:  billing.NewMemoryMethodStore(),
			usage:    usage.NewMemoryLedger(),
			items:    resource.NewMemoryStore(),
			locker:   &sweeper.LocalLocker{},
		}, catalog, func() {}, nil
	}

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return stores{}, nil, nil, err
	}
	if err := pg.Migrate(ctx, pool, migrations.FS, cfg.Postgres, log); err != nil {
		pool.Close()
		return stores{}, nil, nil, err
	}
	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return stores{}, nil, nil, err
	}
	cleanup := func() {
		if err := rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			log.Error("close redis", logger.Error(err))
		}
		pool.Close()
	}

	db := pg.NewDB(pool)
	planStore := plan.NewPostgresStore(db)
	var source plan.Source = yamlPlans
	if cfg.Catalog.Source == "postgres" {
		seed, err := yamlPlans.Plans(ctx)
		if err != nil {
			cleanup()
			return stores{}, nil, nil, err
		}
		if err := planStore.Seed(ctx, seed); err != nil {
			cleanup()
			return stores{}, nil, nil, err
		}
		source = planStore
	}
	catalog, err := plan.Load(ctx, source)
	if err != nil {
		cleanup()
		return stores{}, nil, nil, err
	}

	return stores{
		accounts: account.NewPostgresStore(db),
		records:  billing.NewPostgresRecordStore(db),
		methods:  billing.NewPostgresMethodStore(db),
		usage:    usage.NewPostgresLedger(db),
		items:    resource.NewPostgresStore(db),
		locker:   sweeper.NewRedisLocker(redis.NewLocker(rdb, cfg.App.Name+":lock:")),
		checks: []httpserver.Check{
			{Name: "postgres", Fn: pg.Healthcheck(pool)},
			{Name: "redis", Fn: redis.Healthcheck(rdb)},
		},
	}, catalog, cleanup, nil
}

func setupGateway(cfg config.Config, log *slog.Logger) (gateway.Gateway, error) {
	var next gateway.Gateway
	switch cfg.Gateway.Provider {
	case "stripe":
		s, err := gateway.NewStripe(gateway.StripeConfig{
			SecretKey:         cfg.Gateway.StripeSecretKey,
			MaxNetworkRetries: cfg.Gateway.MaxNetworkRetries,
		})
		if err != nil {
			return nil, err
		}
		next = s
	default:
		log.Warn("using the in-memory payment gateway")
		next = gateway.NewMemory()
	}
	return gateway.NewResilient(next, gateway.ResilientConfig{
		CallTimeout: cfg.Gateway.CallTimeout,
		Failures:    cfg.Gateway.BreakerFailures,
		OpenFor:     cfg.Gateway.BreakerOpenFor,
		Interval:    cfg.Gateway.BreakerInterval,
	}, log), nil
}

func setupNotifier(cfg config.Config, log *slog.Logger) (notify.Notifier, error) {
	if cfg.Mail.PostmarkServerToken == "" {
		return notify.NewLogNotifier(log), nil
	}
	return notify.NewPostmark(notify.PostmarkConfig{
		ServerToken:   cfg.Mail.PostmarkServerToken,
		AccountToken:  cfg.Mail.PostmarkAccountToken,
		From:          cfg.Mail.From,
		MessageStream: cfg.Mail.MessageStream,
	})
}
