package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/config"
	"github.com/zxia545/sample-book-questions-gen-and-eval/internal/devicepool"
	"github.com/zxia545/sample-book-questions-gen-and-eval/pkg/logger"
)

// App bundles the shared run state: config, logger, root context and the
// device lease pool. The pool is the one structure shared for mutation
// across model lanes; everything else is read-only after construction.
type App struct {
	config *config.Config
	ctx    context.Context
	cancel context.CancelFunc
	pool   *devicepool.Pool

	Logger *zap.Logger
}

// OptionFunc customizes the App during construction.
type OptionFunc func(app *App) error

func WithLogger(l *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = l
		return nil
	}
}

func WithDevicePool(tokens []devicepool.Token) OptionFunc {
	return func(app *App) error {
		app.pool = devicepool.New(tokens)
		return nil
	}
}

func NewApp(cfg *config.Config, options ...OptionFunc) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			cancel()
			return nil, err
		}
	}

	if app.Logger == nil {
		l, err := logger.NewLogger(cfg)
		if err != nil {
			cancel()
			return nil, err
		}
		app.Logger = l
	}

	if app.pool == nil {
		tokens := make([]devicepool.Token, 0, len(cfg.GPUIDs))
		for _, id := range cfg.GPUIDs {
			tokens = append(tokens, devicepool.Token(id))
		}
		app.pool = devicepool.New(tokens)
	}

	return app, nil
}

func (app *App) Close() {
	app.cancel()
	_ = app.Logger.Sync()
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) Pool() *devicepool.Pool {
	return app.pool
}
