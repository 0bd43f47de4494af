package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/miyf-books/api/controllers"
	"github.com/angelmondragon/miyf-books/api/routes"
	"github.com/angelmondragon/miyf-books/internal/auditlog"
	"github.com/angelmondragon/miyf-books/internal/cashinhand"
	"github.com/angelmondragon/miyf-books/internal/files"
	"github.com/angelmondragon/miyf-books/internal/notifications"
	"github.com/angelmondragon/miyf-books/internal/receipts"
	"github.com/angelmondragon/miyf-books/internal/repo"
	"github.com/angelmondragon/miyf-books/internal/transactions"
	"github.com/angelmondragon/miyf-books/internal/users"
	"github.com/angelmondragon/miyf-books/pkg/config"
	"github.com/angelmondragon/miyf-books/pkg/db"
	"github.com/angelmondragon/miyf-books/pkg/drive"
	"github.com/angelmondragon/miyf-books/pkg/logger"
	"github.com/angelmondragon/miyf-books/pkg/metrics"
	"github.com/angelmondragon/miyf-books/pkg/migrate"
	"github.com/angelmondragon/miyf-books/pkg/pubsub"
	"github.com/angelmondragon/miyf-books/pkg/redis"
	"github.com/angelmondragon/miyf-books/pkg/rowstore"
	"github.com/angelmondragon/miyf-books/pkg/sheets"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	// amounts are numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "error releasing resources", errs)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	readiness := map[string]controllers.Pinger{}

	backend, err := openBackend(ctx, cfg, logg, &closers)
	requireResource(ctx, logg, "row store", err)
	readiness["store"] = backend

	storeOpts := []rowstore.Option{
		rowstore.WithObserver(metrics.NewRowStoreMetrics(registry)),
		rowstore.WithLockWait(cfg.Store.LockWait),
	}

	var idempotencyStore redis.IdempotencyStore
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, cfg.StoreScope())
		requireResource(ctx, logg, "redis", err)
		closers = append(closers, redisClient.Close)
		readiness["redis"] = redisClient

		index, err := redis.NewKeyIndex(redisClient, cfg.Store.IndexTTL)
		requireResource(ctx, logg, "redis key index", err)
		locker, err := redis.NewSheetLocker(redisClient, cfg.Store.LockTTL)
		requireResource(ctx, logg, "redis sheet locker", err)

		storeOpts = append(storeOpts, rowstore.WithIndex(index), rowstore.WithLocker(locker))
		idempotencyStore = redisClient
	} else {
		logg.Warn(ctx, "redis not configured; using in-process key index and locks")
	}

	base := repo.NewBase(backend, storeOpts...).WithLogger(logg)

	auditRepo, err := auditlog.NewRepository(base)
	requireResource(ctx, logg, "audit log repository", err)
	auditService, err := auditlog.NewService(auditRepo)
	requireResource(ctx, logg, "audit log service", err)

	userRepo, err := users.NewRepository(base)
	requireResource(ctx, logg, "users repository", err)
	userService, err := users.NewService(userRepo, auditService, logg, cfg.Access.SuperAdmins)
	requireResource(ctx, logg, "users service", err)

	notifier := notifications.NewLogNotifier(logg)
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.PubSub, logg)
		requireResource(ctx, logg, "pubsub", err)
		closers = append(closers, psClient.Close)
		readiness["pubsub"] = psClient
		notifier, err = notifications.NewPubSubNotifier(psClient, logg)
		requireResource(ctx, logg, "pubsub notifier", err)
	}

	txRepo, err := transactions.NewRepository(base, cfg.Sheets.TransactionSheet)
	requireResource(ctx, logg, "transactions repository", err)
	requireResource(ctx, logg, "transaction sheet", txRepo.Ensure(ctx))
	transactionService, err := transactions.NewService(txRepo, auditService, notifier, logg)
	requireResource(ctx, logg, "transactions service", err)

	cashRepo, err := cashinhand.NewRepository(base)
	requireResource(ctx, logg, "cash in hand repository", err)
	cashService, err := cashinhand.NewService(cashRepo, auditService, logg)
	requireResource(ctx, logg, "cash in hand service", err)

	fileService := files.Disabled(cfg.Uploads.MaxBytes())
	if cfg.Drive.FolderID != "" {
		driveCfg := cfg.Drive
		driveCfg.ServiceEmail, driveCfg.PrivateKey = cfg.DriveCredentials()
		driveClient, err := drive.NewClient(ctx, driveCfg, logg)
		requireResource(ctx, logg, "drive", err)
		readiness["drive"] = driveClient
		fileService, err = files.NewService(driveClient, cfg.Uploads.MaxBytes(), logg)
		requireResource(ctx, logg, "files service", err)
	} else {
		logg.Warn(ctx, "drive folder not configured; uploads are disabled")
	}

	receiptRepo, err := receipts.NewRepository(base)
	requireResource(ctx, logg, "receipts repository", err)
	receiptService, err := receipts.NewService(receiptRepo, transactionService, fileService, auditService, logg)
	requireResource(ctx, logg, "receipts service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"addr":  addr,
		"store": cfg.Store.Driver,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			readiness,
			registry,
			httpMetrics,
			idempotencyStore,
			userService,
			transactionService,
			cashService,
			receiptService,
			fileService,
			auditService,
		),
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

// openBackend builds the row store selected by MIYF_STORE_DRIVER.
func openBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger, closers *[]func() error) (rowstore.Backend, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSheets:
		return sheets.New(ctx, cfg.Sheets)
	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, client.Close)
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			return nil, err
		}
		return db.NewRowBackend(client)
	case config.StoreDriverMemory:
		logg.Warn(ctx, "using in-memory row store; data is lost on restart")
		return rowstore.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
