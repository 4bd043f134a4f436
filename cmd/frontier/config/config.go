// Package config implements the frontier service config.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/HatiCode/frontier/pkg/readiness"
)

// DefaultSeries tracks the map and share producers.
const DefaultSeries = "map=smithers:map_timestamps,share=smithers:share_timestamps"

// Config holds all frontier configuration.
type Config struct {
	Listen     string
	GRPCListen string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	PebblePath    string

	SeriesSpec string
	SeriesFile string
	Series     []readiness.Series

	Margin       int
	Interval     time.Duration
	QueryTimeout time.Duration
	MaxBackoff   time.Duration

	Output       string
	OTLPEndpoint string
	LogFormat    string
	LogLevel     string
}

// Parse parses command-line arguments and environment variables into a
// Config. Environment variables, optionally loaded from a .env file, are used
// as fallbacks when flags are not provided. The returned error wraps
// readiness.ErrConfiguration for invalid series settings.
func Parse(args []string) (*Config, error) {
	loadEnvFile()

	cfg := &Config{}
	fs := flag.NewFlagSet("frontier", flag.ContinueOnError)

	// Servers
	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8083"), "HTTP listen address (empty disables)")
	fs.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ""), "gRPC health listen address (empty disables)")

	// Storage
	fs.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "redis"), "Series store: redis, memory, sqlite or pebble")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	fs.StringVar(&cfg.SQLitePath, "sqlite-path", getEnv("SQLITE_PATH", "frontier.db"), "SQLite database file")
	fs.StringVar(&cfg.PebblePath, "pebble-path", getEnv("PEBBLE_PATH", "frontier-pebble"), "Pebble database directory")

	// Series
	fs.StringVar(&cfg.SeriesSpec, "series", getEnv("SERIES", DefaultSeries), "Tracked series as name=key pairs, comma separated")
	fs.StringVar(&cfg.SeriesFile, "series-file", getEnv("SERIES_FILE", ""), "YAML file listing tracked series (overrides -series)")
	fs.IntVar(&cfg.Margin, "margin", getEnvInt("MARGIN", readiness.DefaultMargin), "Most recent entries excluded per series")

	// Timing
	fs.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 20*time.Second), "Poll interval")
	fs.DurationVar(&cfg.QueryTimeout, "query-timeout", getEnvDuration("QUERY_TIMEOUT", 5*time.Second), "Per-query store timeout (0 disables)")
	fs.DurationVar(&cfg.MaxBackoff, "max-backoff", getEnvDuration("MAX_BACKOFF", 0), "Upper bound for the delay after consecutive store failures (0 keeps the fixed interval)")

	// Output
	fs.StringVar(&cfg.Output, "output", getEnv("OUTPUT", "stdout"), "Ready set output: stdout or none")
	fs.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", getEnv("OTLP_ENDPOINT", ""), "OTLP/HTTP trace endpoint URL (empty disables tracing)")

	// Logging
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load resolves the tracked series from SeriesFile or SeriesSpec and
// validates the result.
func (c *Config) Load() error {
	var (
		series []readiness.Series
		err    error
	)
	if c.SeriesFile != "" {
		series, err = ReadSeriesFile(c.SeriesFile)
	} else {
		series, err = ParseSeries(c.SeriesSpec)
	}
	if err != nil {
		return err
	}
	c.Series = series

	return c.Validate()
}

// Validate reports configuration that would prevent the poll loop from
// running. Series errors wrap readiness.ErrConfiguration.
func (c *Config) Validate() error {
	if err := readiness.ValidateSeries(c.Series); err != nil {
		return err
	}

	var errs []error
	if c.Margin < 0 {
		errs = append(errs, fmt.Errorf("%w: margin must be >= 0, got %d", readiness.ErrConfiguration, c.Margin))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %v", c.Interval))
	}
	if c.QueryTimeout < 0 {
		errs = append(errs, fmt.Errorf("query timeout must be >= 0, got %v", c.QueryTimeout))
	}
	if c.MaxBackoff < 0 {
		errs = append(errs, fmt.Errorf("max backoff must be >= 0, got %v", c.MaxBackoff))
	}
	switch c.Storage {
	case "redis", "memory", "sqlite", "pebble":
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	switch c.Output {
	case "stdout", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown output %q", c.Output))
	}
	return errors.Join(errs...)
}

// ParseSeries parses "name=key,name=key". A bare entry uses the same string
// for name and key.
func ParseSeries(spec string) ([]readiness.Series, error) {
	var series []readiness.Series
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, key, found := strings.Cut(part, "=")
		if !found {
			key = name
		}
		name, key = strings.TrimSpace(name), strings.TrimSpace(key)
		if name == "" || key == "" {
			return nil, fmt.Errorf("%w: malformed series %q", readiness.ErrConfiguration, part)
		}
		series = append(series, readiness.Series{Name: name, Key: key})
	}
	return series, nil
}

type seriesFile struct {
	Series []readiness.Series `yaml:"series"`
}

// ReadSeriesFile loads tracked series from a YAML document of the form:
//
//	series:
//	  - name: map
//	    key: smithers:map_timestamps
func ReadSeriesFile(path string) ([]readiness.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series file: %w", err)
	}
	defer file.Close()

	var doc seriesFile
	if err := yaml.NewDecoder(file).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode series file %s: %v", readiness.ErrConfiguration, path, err)
	}
	return doc.Series, nil
}

// loadEnvFile loads FRONTIER_ENV_FILE (default ".env") into the environment
// without overriding variables that are already set. A missing file is fine.
func loadEnvFile() {
	path := getEnv("FRONTIER_ENV_FILE", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", path, err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
