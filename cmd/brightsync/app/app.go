// Package app provides the application context and dependency management
// for the brightsync CLI. It centralizes configuration, logging and the
// store runner.
package app

import (
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/brightsync"
	"github.com/agentstation/brightsync/internal/sources/fulfillment"
	"github.com/agentstation/brightsync/internal/transport"
	"github.com/agentstation/brightsync/pkg/errors"
)

// App represents the brightsync application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// extra options for the runner, set by tests
	runnerOpts []brightsync.Option

	// Runner instance (lazy-initialized, singleton)
	mu     sync.Mutex
	runner *brightsync.Runner
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig(os.Getenv(EnvPrefix + "_CONFIG"))
	if err != nil {
		return nil, err
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Runner returns the store runner, creating it on first use.
func (a *App) Runner() (*brightsync.Runner, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runner != nil {
		return a.runner, nil
	}
	r, err := brightsync.New(append(a.runnerOptions(), a.runnerOpts...)...)
	if err != nil {
		return nil, err
	}
	a.runner = r
	return r, nil
}

// runnerOptions maps the configuration onto runner options.
func (a *App) runnerOptions() []brightsync.Option {
	c := a.config
	opts := []brightsync.Option{
		brightsync.WithDataDir(c.DataDir),
		brightsync.WithLockDir(c.LockDir),
		brightsync.WithParallelism(c.Parallelism),
		brightsync.WithMaxAttempts(c.MaxAttempts),
		brightsync.WithPageSize(c.PageSize),
		brightsync.WithHTTPTimeout(c.HTTPTimeout),
	}
	if c.HasFulfillment() {
		client := fulfillment.New(c.FulfillmentURL, c.FulfillmentKey, c.FulfillmentSecret, transport.WithTimeout(c.HTTPTimeout))
		opts = append(opts, brightsync.WithFulfillment(client))
	}
	return opts
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if config == nil {
			return &errors.ValidationError{Field: "config", Message: "cannot be nil"}
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithRunnerOptions appends options used when the runner is created.
func WithRunnerOptions(opts ...brightsync.Option) Option {
	return func(a *App) error {
		a.runnerOpts = append(a.runnerOpts, opts...)
		return nil
	}
}
