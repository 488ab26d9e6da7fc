// Package constants provides shared constants for the venture-calc application.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// DefaultCurrency is the ISO code used when rendering money values
	DefaultCurrency = "USD"
)

// Iterative solver limits
const (
	// IRRMaxIterations bounds the bisection search for the internal rate of return
	IRRMaxIterations = 200

	// IRRTolerance is the NPV tolerance at which the IRR search stops
	IRRTolerance = 1e-7

	// IRRLowerBound and IRRUpperBound bracket the IRR search in percent per period
	IRRLowerBound = -99.0
	IRRUpperBound = 10000.0
)

// Unit economics thresholds
const (
	// HealthyLTVToCAC is the LTV:CAC ratio at or above which unit economics are healthy
	HealthyLTVToCAC = 3.0

	// MarginalLTVToCAC is the LTV:CAC ratio at or above which unit economics are marginal
	MarginalLTVToCAC = 1.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "VENTURECALC"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxBodySizeBytes is the default maximum request body size (256 KB)
	DefaultMaxBodySizeBytes int64 = 256 * 1024

	// DefaultRateLimitRequests is the number of calculations a client may run per window
	DefaultRateLimitRequests = 60

	// DefaultRateLimitWindow is the refill window for the calculation rate limiter
	DefaultRateLimitWindow = "1m"
)

// Storage and cache defaults
const (
	// DefaultStorePath is the default SQLite database path
	DefaultStorePath = "venture-calc.db"

	// CacheBackendMemory keeps calculation results in process memory
	CacheBackendMemory = "memory"

	// CacheBackendRedis keeps calculation results in Redis
	CacheBackendRedis = "redis"

	// CacheBackendNone disables result caching
	CacheBackendNone = "none"

	// DefaultCacheTTL is the default lifetime of a cached calculation result
	DefaultCacheTTL = "1h"

	// DefaultRedisAddress is the default Redis address
	DefaultRedisAddress = "localhost:6379"
)
