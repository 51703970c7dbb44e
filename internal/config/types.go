package config

import (
	"time"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
)

// DefaultBaseURL is the public Hacker News API root.
const DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// Config is the complete harness configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Logging    logger.Config    `yaml:"logging"`
	Probe      ProbeConfig      `yaml:"probe"`
	Load       LoadConfig       `yaml:"load"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Mock       MockConfig       `yaml:"mock"`
}

// APIConfig configures the API client and its transport. An empty BaseURL
// lets the client apply its own environment/default resolution.
type APIConfig struct {
	BaseURL string        `env:"HACKERNEWS_BASE_URL" validate:"omitempty,url" yaml:"base_url"`
	Retries int           `env:"HN_RETRIES"          validate:"gte=0,lte=10"  yaml:"retries"`
	Backoff time.Duration `env:"HN_BACKOFF"          validate:"gte=0"         yaml:"backoff"`
	Timeout time.Duration `env:"HN_TIMEOUT"          validate:"gt=0"          yaml:"timeout"`
}

// ProbeConfig configures the parallel item prober.
type ProbeConfig struct {
	Workers       int     `env:"HN_PROBE_WORKERS" validate:"gte=1,lte=64" yaml:"workers"`
	RatePerSecond float64 `env:"HN_PROBE_RATE"    validate:"gte=0"        yaml:"rate_per_second"`
}

// LoadConfig configures the load-generation driver.
type LoadConfig struct {
	Users            int           `env:"HN_LOAD_USERS"     validate:"gte=1"              yaml:"users"`
	Duration         time.Duration `env:"HN_LOAD_DURATION"  validate:"gt=0"               yaml:"duration"`
	WaitMin          time.Duration `validate:"gte=0"                                      yaml:"wait_min"`
	WaitMax          time.Duration `validate:"gtefield=WaitMin"                           yaml:"wait_max"`
	TopStoriesWeight int           `validate:"gte=0"                                      yaml:"topstories_weight"`
	ItemWeight       int           `validate:"gte=0"                                      yaml:"item_weight"`
	SeedWindow       int           `validate:"gte=1"                                      yaml:"seed_window"`
	StatsCSV         string        `env:"HN_LOAD_STATS_CSV" validate:"required"           yaml:"stats_csv"`
}

// ThresholdsConfig holds the performance gate limits.
type ThresholdsConfig struct {
	P95         time.Duration `env:"HN_P95_LIMIT"       validate:"gt=0"        yaml:"p95"`
	FailureRate float64       `env:"HN_FAIL_RATE_LIMIT" validate:"gte=0,lte=1" yaml:"failure_rate"`
}

// MockConfig configures the fake upstream server.
type MockConfig struct {
	Port     int    `env:"HN_MOCK_PORT"     validate:"gte=1,lte=65535" yaml:"port"`
	Fixtures string `env:"HN_MOCK_FIXTURES"                            yaml:"fixtures"`
}

// Defaults returns the documented default configuration.
func Defaults() Config {
	return Config{
		API: APIConfig{
			Retries: 3,
			Backoff: 500 * time.Millisecond,
			Timeout: 5 * time.Second,
		},
		Logging: logger.Config{
			Level:  logger.DefaultLevel,
			Format: logger.DefaultFormat,
		},
		Probe: ProbeConfig{Workers: 4},
		Load: LoadConfig{
			Users:            10,
			Duration:         time.Minute,
			WaitMin:          200 * time.Millisecond,
			WaitMax:          800 * time.Millisecond,
			TopStoriesWeight: 3,
			ItemWeight:       1,
			SeedWindow:       100,
			StatsCSV:         "perf_stats.csv",
		},
		Thresholds: ThresholdsConfig{
			P95:         800 * time.Millisecond,
			FailureRate: 0.05,
		},
		Mock: MockConfig{Port: 8081},
	}
}
