package app

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/brightsync/pkg/constants"
	"github.com/agentstation/brightsync/pkg/errors"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "BRIGHTSYNC"

// Config holds the application configuration loaded from flags,
// environment variables, .env files and the config file.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Document store and locks
	DataDir string
	LockDir string

	// Runs
	Parallelism int
	MaxAttempts int
	PageSize    int
	HTTPTimeout time.Duration

	// Fulfillment platform
	FulfillmentURL    string
	FulfillmentKey    string
	FulfillmentSecret string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration in order of precedence:
// 1. Command-line flags (applied later by UpdateFromFlags)
// 2. BRIGHTSYNC_* environment variables
// 3. .env files
// 4. Config file (configFile, or .brightsync.yaml in $HOME or the working directory)
// 5. Defaults
func LoadConfig(configFile string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".brightsync")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit config file must exist; the search locations are optional.
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.WrapParse("yaml", configFile, err)
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		DataDir: v.GetString("data_dir"),
		LockDir: v.GetString("lock_dir"),

		Parallelism: v.GetInt("parallelism"),
		MaxAttempts: v.GetInt("max_attempts"),
		PageSize:    v.GetInt("page_size"),
		HTTPTimeout: v.GetDuration("http_timeout"),

		FulfillmentURL:    v.GetString("fulfillment_url"),
		FulfillmentKey:    v.GetString("fulfillment_key"),
		FulfillmentSecret: v.GetString("fulfillment_secret"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("lock_dir", filepath.Join(os.TempDir(), "brightsync-locks"))
	v.SetDefault("parallelism", constants.MaxConcurrentStores)
	v.SetDefault("max_attempts", constants.DefaultMaxAttempts)
	v.SetDefault("page_size", constants.CatalogPageSize)
	v.SetDefault("http_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// Validate checks the numeric settings.
func (c *Config) Validate() error {
	switch {
	case c.Parallelism < 1:
		return errors.NewValidationError("parallelism", c.Parallelism, "must be at least 1")
	case c.MaxAttempts < 1:
		return errors.NewValidationError("max_attempts", c.MaxAttempts, "must be at least 1")
	case c.PageSize < 1:
		return errors.NewValidationError("page_size", c.PageSize, "must be at least 1")
	case c.HTTPTimeout <= 0:
		return errors.NewValidationError("http_timeout", c.HTTPTimeout, "must be positive")
	}
	return nil
}

// HasFulfillment reports whether fulfillment credentials are configured.
func (c *Config) HasFulfillment() bool {
	return c.FulfillmentKey != "" && c.FulfillmentSecret != ""
}

// UpdateFromFlags applies parsed command flags, which take precedence over
// the config file and environment.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel, dataDir string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if dataDir != "" {
		c.DataDir = dataDir
	}
}

// loadEnvFiles loads .env then .env.local. Existing variables win.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}
