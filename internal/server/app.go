// Package server wires the credential engine together: storage, migrations,
// the notification dispatcher, error reporting and the gRPC endpoint, and
// handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/credkeeper/internal/cryptox"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/notify"
	"github.com/dmitrijs2005/credkeeper/internal/server/observability"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/thejerf/abtime"

	gs "github.com/dmitrijs2005/credkeeper/internal/server/grpc"
)

// sqlOpen is a seam so tests can avoid a real database.
var sqlOpen = sql.Open

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	dispatcher *notify.Dispatcher
	auth       *services.AuthService
	sessions   *services.SessionService
}

// OpenStore connects to PostgreSQL through pgx and applies pending
// migrations.
func OpenStore(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations error: %w", err)
	}

	return db, m, nil
}

// NewGateway picks the notification backend named in the config.
func NewGateway(ctx context.Context, c *config.Config, clock abtime.AbstractTime, l logging.Logger) (notify.Gateway, error) {
	switch c.NotifyBackend {
	case "", "log":
		return notify.NewLogGateway(l), nil
	case "s3":
		return notify.NewS3Outbox(ctx, c, clock)
	}
	return nil, fmt.Errorf("unknown notification backend %q", c.NotifyBackend)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger(os.Stdout, level, "credkeeper")

	if err := observability.InitSentry(c.SentryDSN, c.Environment); err != nil {
		return nil, fmt.Errorf("sentry init error: %w", err)
	}

	db, m, err := OpenStore(ctx, c)
	if err != nil {
		return nil, err
	}

	clock := abtime.NewRealTime()

	gateway, err := NewGateway(ctx, c, clock, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dispatcher := notify.NewDispatcher(gateway, c.NotifyQueueSize, logger, clock)

	auth := services.NewAuthService(db, m, c, dispatcher, logger,
		services.WithClock(clock),
		services.WithHasher(cryptox.NewBcryptHasher(c.BcryptCost)),
	)
	sessions := services.NewSessionService(db, m, c, clock, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		dispatcher: dispatcher,
		auth:       auth,
		sessions:   sessions,
	}, nil
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

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.auth, app.sessions)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// serveThenDrain runs dispatch in the background and serve in the
// foreground. The dispatcher is stopped only once serve has returned, so
// requests finishing during a graceful stop can still enqueue notifications.
func serveThenDrain(ctx context.Context, serve func(context.Context), dispatch func(context.Context)) {
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatch(dispatchCtx)
	}()

	serve(ctx)

	stopDispatch()
	<-done
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	serveThenDrain(ctx, func(ctx context.Context) {
		app.startGRPCServer(ctx, cancelFunc)
	}, app.dispatcher.Run)

	if n := app.dispatcher.Dropped(); n > 0 {
		app.logger.Warn(ctx, "notifications dropped", "count", n)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	observability.FlushSentry()

	app.logger.Info(ctx, "App stopped")
}
