// Package server wires the auth service together: storage, token codec,
// mail delivery and the HTTP surface. It also owns graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/contactsapi/internal/logging"
	"github.com/dmitrijs2005/contactsapi/internal/server/auth"
	"github.com/dmitrijs2005/contactsapi/internal/server/config"
	"github.com/dmitrijs2005/contactsapi/internal/server/httpserver"
	"github.com/dmitrijs2005/contactsapi/internal/server/metrics"
	"github.com/dmitrijs2005/contactsapi/internal/server/notify"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contactsapi/internal/server/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	dispatcher *notify.Dispatcher
	server     *httpserver.Server
}

// openStore returns the repository manager for c. An empty DSN selects the
// in-memory store and a nil *sql.DB.
func openStore(ctx context.Context, c *config.Config) (*sql.DB, repomanager.RepositoryManager, error) {
	if c.DatabaseDSN == "" {
		return nil, repomanager.NewMemoryRepositoryManager(), nil
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return db, rm, nil
}

func newNotifier(c *config.Config, logger logging.Logger) (notify.Notifier, error) {
	if c.Mail.Host == "" {
		return notify.NewLogNotifier(logger.With("module", "mail")), nil
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     c.Mail.Host,
		Port:     c.Mail.Port,
		Username: c.Mail.Username,
		Password: c.Mail.Password,
		From:     c.Mail.From,
		FromName: c.Mail.FromName,
	})
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.LogLevel)
	logger.Info(ctx, "configuration loaded", "config", c)

	db, rm, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	notifier, err := newNotifier(c, logger)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("mail init error: %w", err)
	}

	mx := metrics.New()
	dispatcher := notify.NewDispatcher(notifier, logger.With("module", "dispatcher"), mx, notify.DispatcherOptions{
		Workers:     c.Mail.Workers,
		QueueSize:   c.Mail.QueueSize,
		SendTimeout: c.Mail.SendTimeout,
	})

	codec := auth.NewCodec([]byte(c.SecretKey), c.Issuer)
	hasher := auth.NewBcryptHasher(c.BcryptCost)

	sessions, err := services.NewSessionService(db, rm, codec, hasher, c, logger, mx)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("session init error: %w", err)
	}
	verifications := services.NewVerificationService(db, rm, codec, dispatcher, c, logger, mx)
	accounts := services.NewAccountService(db, rm, hasher, verifications, logger)
	avatars := services.NewAvatarService(db, rm, c, logger)

	router := httpserver.NewRouter(httpserver.Options{
		Sessions:      sessions,
		Verifications: verifications,
		Accounts:      accounts,
		Avatars:       avatars,
		Health:        rm.Accounts(db),
		Logger:        logger,
		Metrics:       mx,
		PublicURL:     c.PublicURL,
	})

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		dispatcher: dispatcher,
		server:     httpserver.NewServer(c.HTTPAddr, router, logger, c.ShutdownTimeout),
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until ctx is cancelled or a termination signal arrives. Queued
// mail is flushed before the database is closed.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(ctx, cancelFunc)

	app.dispatcher.Start(context.WithoutCancel(ctx))

	var (
		wg     sync.WaitGroup
		runErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server failed", "error", err)
			runErr = err
			cancelFunc()
		}
	}()

	wg.Wait()

	app.dispatcher.Close()
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close failed", "error", err)
		}
	}

	app.logger.Info(ctx, "App stopped")
	return runErr
}
