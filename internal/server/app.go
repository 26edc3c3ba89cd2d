// Package server initializes and runs the gophauth server: storage, the
// session service, the refresh token janitor, the gRPC endpoint and the
// metrics endpoint. It handles graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	rdb      redis.UniversalClient
	sessions *services.SessionService
	janitor  *services.Janitor
	metrics  *metrics.Metrics
}

// openDB is a seam for tests.
var openDB = func(ctx context.Context, dsn string) (*sql.DB, error) {
	return repomanager.Open(ctx, dsn, repomanager.DefaultOpenOptions)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	// a missing secret stops startup before anything is opened
	signer, err := auth.NewSigner([]byte(c.SecretKey), c.AccessTokenTTL, c.ResetCodeTTL)
	if err != nil {
		return nil, fmt.Errorf("token signer: %w", err)
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	rm, err := app.repositoryManager(ctx)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}

	hasher := cryptox.NewArgon2Hasher(cryptox.Params{
		Time:    c.HashIterations,
		Memory:  c.HashMemoryKiB,
		Threads: c.HashThreads,
		SaltLen: cryptox.DefaultParams.SaltLen,
		KeyLen:  cryptox.DefaultParams.KeyLen,
	})

	app.metrics = metrics.New()
	app.sessions = services.NewSessionService(dbx.NewSQLDB(db, nil), rm, signer, hasher, c,
		services.WithObserver(app.metrics))
	app.janitor = services.NewJanitor(rm.RefreshTokens(db), c.PurgeInterval, logger.With("module", "janitor"))

	return app, nil
}

func (app *App) repositoryManager(ctx context.Context) (repomanager.RepositoryManager, error) {
	if app.config.RefreshStore != config.RefreshStoreRedis {
		return repomanager.NewPostgresRepositoryManager(), nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddress})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.rdb = rdb

	return repomanager.NewRedisRepositoryManager(rdb, app.config.RedisPrefix), nil
}

// ready reports whether the backing stores answer.
func (app *App) ready(ctx context.Context) error {
	if err := app.db.PingContext(ctx); err != nil {
		return err
	}
	if app.rdb != nil {
		return app.rdb.Ping(ctx).Err()
	}
	return nil
}

func (app *App) close(ctx context.Context) {
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error(ctx, "closing redis", logging.ErrorAttrs(err)...)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", logging.ErrorAttrs(err)...)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.GRPCAddress, app.logger, app.sessions, gs.WithRequestObserver(app.metrics))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server", logging.ErrorAttrs(err)...)
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {

	if app.config.MetricsAddress == "" {
		app.logger.Info(ctx, "metrics server disabled")
		return
	}

	s := metrics.NewServer(app.config.MetricsAddress, app.metrics, app.ready, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "metrics server", logging.ErrorAttrs(err)...)
		cancelFunc()
	}
}

// Run serves until a signal arrives or ctx is cancelled, then waits up to
// the shutdown timeout for the servers to stop and closes storage.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startMetricsServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.janitor.Run(ctx)
	}()

	<-ctx.Done()

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(app.config.ShutdownTimeout):
		app.logger.Warn(ctx, "shutdown timed out", "timeout", app.config.ShutdownTimeout)
	}

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
}
