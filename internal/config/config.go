// Package config loads pinger configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/update-pinger/pkg/detector"
	"github.com/Sternrassler/update-pinger/pkg/fanout"
	"github.com/Sternrassler/update-pinger/pkg/kv"
	"github.com/Sternrassler/update-pinger/pkg/logging"
	"github.com/Sternrassler/update-pinger/pkg/pagination"
	"github.com/Sternrassler/update-pinger/pkg/pinger"
	"github.com/Sternrassler/update-pinger/pkg/xmlrpc"
)

// Detector kinds.
const (
	DetectorNone   = "none"
	DetectorGitHub = "github"
	DetectorPages  = "pages"
)

// Config holds all configuration values for the pinger.
type Config struct {
	Port      string
	LogLevel  string
	LogPretty bool
	AuthToken string

	Store kv.Options

	SiteName  string
	SiteURL   string
	FeedURL   string
	Endpoints []string

	SubrequestBudget int
	Concurrency      int
	PingTimeout      time.Duration
	RunDeadline      time.Duration
	UserAgent        string

	ScheduleInterval time.Duration

	Detector      string
	GitHubRepo    string
	GitHubBranch  string
	GitHubToken   string
	PagesAccount  string
	PagesProject  string
	PagesAPIToken string
}

// Load reads configuration from the environment, applying defaults.
// It does not validate; call Validate before use.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		AuthToken: os.Getenv("AUTH_TOKEN"),

		Store: kv.Options{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", kv.BackendRedis)),
			RedisAddr:   getEnv("REDIS_URL", "localhost:6379"),
			DynamoTable: os.Getenv("DYNAMODB_TABLE"),
			AWSRegion:   os.Getenv("AWS_REGION"),
			SQLitePath:  getEnv("SQLITE_PATH", "pinger.db"),
		},

		SiteName:  os.Getenv("SITE_NAME"),
		SiteURL:   os.Getenv("SITE_URL"),
		FeedURL:   os.Getenv("FEED_URL"),
		Endpoints: pinger.ParseEndpoints(os.Getenv("PING_ENDPOINTS")),

		UserAgent: getEnv("USER_AGENT", fanout.DefaultConfig().UserAgent),

		Detector:      strings.ToLower(getEnv("DETECTOR", DetectorNone)),
		GitHubRepo:    os.Getenv("GITHUB_REPO"),
		GitHubBranch:  getEnv("GITHUB_BRANCH", "main"),
		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		PagesAccount:  os.Getenv("PAGES_ACCOUNT_ID"),
		PagesProject:  os.Getenv("PAGES_PROJECT"),
		PagesAPIToken: os.Getenv("PAGES_API_TOKEN"),
	}

	var err error
	if cfg.LogPretty, err = getEnvBool("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.SubrequestBudget, err = getEnvInt("SUBREQUEST_BUDGET", pagination.DefaultBudget); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = getEnvInt("PING_CONCURRENCY", fanout.MaxConcurrency); err != nil {
		return nil, err
	}
	if cfg.PingTimeout, err = getEnvDuration("PING_TIMEOUT", fanout.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.RunDeadline, err = getEnvDuration("RUN_DEADLINE", 0); err != nil {
		return nil, err
	}
	if cfg.ScheduleInterval, err = getEnvDuration("SCHEDULE_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case kv.BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case kv.BackendDynamoDB:
		if c.Store.DynamoTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
		}
	case kv.BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case kv.BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Detector {
	case DetectorNone:
	case DetectorGitHub:
		if c.GitHubRepo == "" {
			return fmt.Errorf("GITHUB_REPO is required for the github detector")
		}
	case DetectorPages:
		if c.PagesAccount == "" || c.PagesProject == "" {
			return fmt.Errorf("PAGES_ACCOUNT_ID and PAGES_PROJECT are required for the pages detector")
		}
	default:
		return fmt.Errorf("unknown DETECTOR %q", c.Detector)
	}

	if c.PingTimeout <= 0 {
		return fmt.Errorf("PING_TIMEOUT must be positive, got %s", c.PingTimeout)
	}
	if c.RunDeadline < 0 || c.ScheduleInterval < 0 {
		return fmt.Errorf("RUN_DEADLINE and SCHEDULE_INTERVAL must not be negative")
	}
	return nil
}

// Logging returns the logging configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(strings.ToLower(c.LogLevel))
	cfg.Pretty = c.LogPretty
	return cfg
}

// Pinger returns the orchestrator configuration.
func (c *Config) Pinger() pinger.Config {
	return pinger.Config{
		Site:             xmlrpc.Site{Name: c.SiteName, URL: c.SiteURL, FeedURL: c.FeedURL},
		Endpoints:        c.Endpoints,
		SubrequestBudget: c.SubrequestBudget,
		Concurrency:      c.Concurrency,
		Timeout:          c.PingTimeout,
		RunDeadline:      c.RunDeadline,
		UserAgent:        c.UserAgent,
	}
}

// NewDetector builds the configured change detector, or nil for DetectorNone.
func (c *Config) NewDetector() (detector.Detector, error) {
	switch c.Detector {
	case DetectorGitHub:
		d, err := detector.NewGitHubBranch(c.GitHubRepo, c.GitHubBranch, c.GitHubToken)
		if err != nil {
			return nil, err
		}
		return d, nil
	case DetectorPages:
		d, err := detector.NewPagesDeployments(c.PagesAccount, c.PagesProject, c.PagesAPIToken)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// getEnvDuration accepts Go durations ("10s") or plain milliseconds ("10000").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
