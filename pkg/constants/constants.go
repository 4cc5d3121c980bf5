// Package constants provides shared constants used throughout the brightsync codebase.
// This includes timeouts, limits, file permissions and the document store layout
// that must stay consistent between the scanner, the sync engine and the pusher.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to remote APIs
	DefaultHTTPTimeout = 30 * time.Second

	// StoreRunTimeout bounds a single store's scan or sync run
	StoreRunTimeout = 30 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 2 * time.Hour

	// RetryBackoff is the base backoff duration for retries
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the maximum number of attempts for a retryable HTTP request
	MaxRetries = 3

	// MaxConcurrentStores is the default number of stores processed in parallel
	MaxConcurrentStores = 4

	// CatalogPageSize is the number of records requested per catalog page
	CatalogPageSize = 500

	// MaxCatalogPages guards against a remote that never returns an empty page
	MaxCatalogPages = 10000

	// DefaultMaxAttempts is how many times a queued item is retried before it is dead-lettered
	DefaultMaxAttempts = 5
)

// Store configuration defaults
const (
	// DefaultInclusionDays is the look-back window for updated products
	DefaultInclusionDays = 90

	// DefaultSKUSeparator splits a final SKU into parent and variant parts
	DefaultSKUSeparator = "-"

	// DefaultOptionPosition is used for options without an explicit position
	DefaultOptionPosition = 999
)

// Document store folders and names
const (
	CacheFolder          = "cache"
	ConflictReportFolder = "conflict_reports"
	SyncReadyFolder      = "sync_ready"
	StoreConfigFolder    = "store_configs"
	GlobalConfigFolder   = "global_config"
	MissingFolder        = "missing_products"

	// ConflictFlagsFile is the global store → flag entry mapping inside CacheFolder
	ConflictFlagsFile = "conflict_flags.json"

	// VendorTagMapFile is the global vendor → tag mapping inside GlobalConfigFolder
	VendorTagMapFile = "vendor_tag_map.json"

	// StoreConfigSuffix is appended to the store key for store configuration files
	StoreConfigSuffix = "_config.json"
)

// Storefront API
const (
	// StorefrontAPIPrefix is the versioned path prefix of the storefront API
	StorefrontAPIPrefix = "/api/v2.6.1"
)
