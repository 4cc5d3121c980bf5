package reconciler

import (
	"github.com/agentstation/utc"

	"github.com/agentstation/brightsync/pkg/errors"
)

// options configures an Engine.
type options struct {
	now             func() utc.Time
	imageBase       string
	uncachedActive  *bool
	includeInactive *bool
}

func defaultOptions() *options {
	return &options{
		now: utc.Now,
	}
}

// Option is a function that configures an Engine.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// newOptions returns engine options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithClock sets the clock used to compute the sync horizon.
func WithClock(now func() utc.Time) Option {
	return func(o *options) error {
		if now == nil {
			return &errors.ValidationError{
				Field:   "clock",
				Message: "cannot be nil",
			}
		}
		o.now = now
		return nil
	}
}

// WithImageBase sets the base URL relative image paths are resolved
// against. It defaults to the store's storefront URL.
func WithImageBase(base string) Option {
	return func(o *options) error {
		o.imageBase = base
		return nil
	}
}

// WithUncachedActive overrides the store's include_uncached_active setting.
func WithUncachedActive(enabled bool) Option {
	return func(o *options) error {
		o.uncachedActive = &enabled
		return nil
	}
}

// WithIncludeInactive overrides the store's include_inactive setting.
func WithIncludeInactive(enabled bool) Option {
	return func(o *options) error {
		o.includeInactive = &enabled
		return nil
	}
}
