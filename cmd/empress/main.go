package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/toasterrepairman/empress/internal/artwork"
	"github.com/toasterrepairman/empress/internal/config"
	"github.com/toasterrepairman/empress/internal/dispatch"
	"github.com/toasterrepairman/empress/internal/domain"
	"github.com/toasterrepairman/empress/internal/mpris"
	"github.com/toasterrepairman/empress/internal/poller"
	"github.com/toasterrepairman/empress/internal/present"
	"github.com/toasterrepairman/empress/internal/reconcile"
)

// AppOptions is the full dependency graph, exported so tests can validate it
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		config.Load,
		newDBusClient,
		newResolver,
		domain.NewPreferenceStore,
		artwork.NewHTTPFetcher,
		artwork.NewDisplayBounds,
		newTracker,
		newPresenter,
		newDispatcher,
		newPoller,
		newReconciler,
	),
	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		AppOptions,
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a new zap logger instance
func newLogger() (*zap.Logger, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

func newDBusClient(logger *zap.Logger) (mpris.DBusClient, error) {
	conn, err := mpris.NewStdDBusClient()
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to session bus")
	return conn, nil
}

func newResolver(logger *zap.Logger, conn mpris.DBusClient) domain.Resolver {
	return mpris.NewFinder(logger, conn)
}

func newPresenter(logger *zap.Logger) domain.Presenter {
	return present.NewLogPresenter(logger)
}

func newTracker(logger *zap.Logger, fetcher *artwork.HTTPFetcher, bounds *artwork.DisplayBounds, cfg *config.Config) *artwork.Tracker {
	return artwork.NewTracker(logger, fetcher, bounds, cfg.ArtRetryInterval())
}

func newDispatcher(logger *zap.Logger, resolver domain.Resolver, prefs *domain.PreferenceStore, cfg *config.Config) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(logger, resolver, prefs, cfg.CommandTick())
}

func newPoller(logger *zap.Logger, resolver domain.Resolver, prefs *domain.PreferenceStore, cfg *config.Config) *poller.Poller {
	return poller.NewPoller(logger, resolver, prefs, cfg.PollInterval())
}

func newReconciler(
	logger *zap.Logger,
	presenter domain.Presenter,
	resolver domain.Resolver,
	tracker *artwork.Tracker,
	p *poller.Poller,
	cfg *config.Config,
) *reconcile.Reconciler {
	return reconcile.NewReconciler(logger, presenter, resolver, tracker, p.Snapshots(),
		cfg.ReconcileInterval(), cfg.ArtRetryInterval(), cfg.ChoicesRefreshInterval(),
		cfg.History.Capacity)
}

// registerHooks starts the three long-lived loops and tears them down on
// shutdown. Cancelling the shared context stops the dispatcher and poller;
// the poller closes its snapshot stream, which ends the reconciler's drain.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	conn mpris.DBusClient,
	d *dispatch.Dispatcher,
	p *poller.Poller,
	r *reconcile.Reconciler,
) {
	loopCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Empress core starting")
			go d.Run(loopCtx)
			go p.Run(loopCtx)
			go r.Run(loopCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Empress core shutting down")
			cancel()
			if err := conn.Close(); err != nil {
				logger.Warn("Failed to close D-Bus connection", zap.Error(err))
			}
			return nil
		},
	})
}
