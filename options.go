package brightsync

import (
	"os"
	"path/filepath"
	"time"

	"github.com/agentstation/utc"

	"github.com/agentstation/brightsync/internal/sources/storefront"
	"github.com/agentstation/brightsync/internal/transport"
	"github.com/agentstation/brightsync/pkg/catalog"
	"github.com/agentstation/brightsync/pkg/config"
	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/docstore"
	"github.com/agentstation/brightsync/pkg/errors"
	"github.com/agentstation/brightsync/pkg/push"
)

// CatalogFactory creates the catalog client of a store.
type CatalogFactory func(store *config.Store) catalog.Client

// Option is a function that configures a Runner
type Option func(*options) error

// options holds the Runner configuration
type options struct {
	docs        docstore.Store
	dataDir     string
	lockDir     string
	catalogs    CatalogFactory
	fulfillment push.Fulfillment
	now         func() utc.Time
	parallelism int
	maxAttempts int
	pageSize    int
	httpTimeout time.Duration
}

func defaultOptions() *options {
	return &options{
		lockDir:     filepath.Join(os.TempDir(), "brightsync-locks"),
		now:         utc.Now,
		parallelism: constants.MaxConcurrentStores,
		maxAttempts: constants.DefaultMaxAttempts,
		pageSize:    constants.CatalogPageSize,
		httpTimeout: constants.DefaultHTTPTimeout,
	}
}

func (o *options) apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	if o.docs == nil {
		if o.dataDir == "" {
			return &errors.ValidationError{Field: "data_dir", Message: "a document store or data directory is required"}
		}
		o.docs = docstore.NewOS(o.dataDir)
	}
	if o.catalogs == nil {
		pageSize, timeout := o.pageSize, o.httpTimeout
		o.catalogs = func(store *config.Store) catalog.Client {
			return storefront.New(store,
				storefront.WithPageSize(pageSize),
				storefront.WithTransport(transport.WithTimeout(timeout)),
			)
		}
	}
	return nil
}

// WithDocStore sets the document store holding configuration and state
func WithDocStore(docs docstore.Store) Option {
	return func(o *options) error {
		o.docs = docs
		return nil
	}
}

// WithDataDir stores documents on the local file system under dir
func WithDataDir(dir string) Option {
	return func(o *options) error {
		o.dataDir = dir
		return nil
	}
}

// WithLockDir sets the directory holding the per-store run locks
func WithLockDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return &errors.ValidationError{Field: "lock_dir", Message: "cannot be empty"}
		}
		o.lockDir = dir
		return nil
	}
}

// WithCatalogFactory replaces the storefront HTTP client
func WithCatalogFactory(fn CatalogFactory) Option {
	return func(o *options) error {
		o.catalogs = fn
		return nil
	}
}

// WithFulfillment sets the fulfillment platform client used by Push and Rerun
func WithFulfillment(f push.Fulfillment) Option {
	return func(o *options) error {
		o.fulfillment = f
		return nil
	}
}

// WithClock overrides the clock
func WithClock(now func() utc.Time) Option {
	return func(o *options) error {
		if now == nil {
			return &errors.ValidationError{Field: "clock", Message: "cannot be nil"}
		}
		o.now = now
		return nil
	}
}

// WithParallelism bounds how many stores run at once in RunAll
func WithParallelism(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.NewValidationError("parallelism", n, "must be at least 1")
		}
		o.parallelism = n
		return nil
	}
}

// WithMaxAttempts sets how often a queued variant is retried before it is dead-lettered
func WithMaxAttempts(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.NewValidationError("max_attempts", n, "must be at least 1")
		}
		o.maxAttempts = n
		return nil
	}
}

// WithPageSize sets the storefront listing page size
func WithPageSize(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.NewValidationError("page_size", n, "must be at least 1")
		}
		o.pageSize = n
		return nil
	}
}

// WithHTTPTimeout sets the storefront request timeout
func WithHTTPTimeout(d time.Duration) Option {
	return func(o *options) error {
		o.httpTimeout = d
		return nil
	}
}
