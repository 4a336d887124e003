// Package main initializes and starts the LinkVault HTTP server, setting up
// configuration, logging, the database, blob storage, services, the
// retention sweeper and handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/linkvault/internal/blob"
	"github.com/atinyakov/linkvault/internal/config"
	"github.com/atinyakov/linkvault/internal/db"
	"github.com/atinyakov/linkvault/internal/logger"
	"github.com/atinyakov/linkvault/internal/metrics"
	"github.com/atinyakov/linkvault/internal/repository"
	"github.com/atinyakov/linkvault/internal/retention"
	"github.com/atinyakov/linkvault/internal/server/handler/http"
	"github.com/atinyakov/linkvault/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// vaultStore is what both repository implementations provide.
type vaultStore interface {
	service.VaultRepository
	service.AuthRepository
	retention.Repository
}

type postgresStore struct {
	*repository.PostgresVaultRepository
	*repository.PostgresAuthRepository
}

func main() {
	// Parse .env, command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log
	zap.ReplaceGlobals(zapLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, options.DatabaseDSN, zapLogger)
	defer closeStore()

	blobs, err := openBlobs(ctx, options)
	if err != nil {
		zapLogger.Fatal("cannot init blob storage", zap.Error(err))
	}

	m := metrics.New()

	// Initialize business-logic services.
	vaultService := service.NewVaultService(store, blobs,
		service.WithMetrics(m),
		service.WithLogger(zapLogger.Named("vault")),
	)
	if options.JWTSecret == "" {
		zapLogger.Warn("JWT_SECRET is not set, bearer tokens will not resolve")
	}
	identityService := service.NewIdentityService(store, []byte(options.JWTSecret))

	// Reclaim blobs of closed items in the background.
	sweeper := retention.New(retention.Config{
		Repo:           store,
		Blobs:          blobs,
		Interval:       options.SweepInterval.Duration,
		StorageTimeout: options.StorageTimeout.Duration,
		Logger:         zapLogger.Named("retention"),
		Metrics:        m,
	})
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Build the router with middleware and routes.
	vaultHandler := &http.VaultHandler{
		VaultService:  vaultService,
		PublicBaseURL: options.PublicBaseURL,
		Logger:        zapLogger,
	}
	router := http.NewRouter(vaultHandler, identityService, m.Handler(), zapLogger)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSCert != "" {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore connects to PostgreSQL and migrates it, or falls back to the
// in-memory repository when no DSN is configured.
func openStore(ctx context.Context, dsn string, log *zap.Logger) (vaultStore, func()) {
	if dsn == "" {
		log.Warn("DATABASE_DSN is not set, using in-memory storage; data is lost on restart")
		return repository.NewMemoryRepository(), func() {}
	}

	postgresDB, err := db.InitPostgres(dsn)
	if err != nil {
		log.Fatal("cannot init database", zap.Error(err))
	}
	if err := db.RunMigrations(ctx, postgresDB); err != nil {
		log.Fatal("cannot migrate database", zap.Error(err))
	}

	store := postgresStore{
		PostgresVaultRepository: repository.NewPostgresVaultRepository(postgresDB),
		PostgresAuthRepository:  repository.NewPostgresAuthRepository(postgresDB),
	}
	return store, func() { _ = postgresDB.Close() }
}

func openBlobs(ctx context.Context, o *config.Options) (blob.Store, error) {
	switch o.BlobBackend {
	case config.BlobS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			Bucket:    o.S3Bucket,
			Region:    o.S3Region,
			Endpoint:  o.S3Endpoint,
			AccessKey: o.S3AccessKey,
			SecretKey: o.S3SecretKey,
		})
	default:
		return blob.NewFileStore(o.UploadDir)
	}
}
