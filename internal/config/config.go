// Package config loads the environment-driven configuration every
// long-running process shares (spec §6 "Configuration (environment)") and
// sets up structured logging (spec §5 Ambient Stack).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default values for optional settings (spec §4.4 "≈20", §7 stall
// timeouts).
const (
	DefaultMaxActiveTasks        = 20
	DefaultStallSubmittedSeconds = 120
	DefaultStallInProgressSeconds = 600
	DefaultStallWarningSeconds   = 180
	DefaultHealthStaleSeconds    = 120
	DefaultMaxDepth              = 2
	DefaultUserAgent             = "distracrawl/1.0 (+https://github.com/mohamedmostafam0/distracrawl)"
)

// Topics names the five pub/sub channels every worker publishes or
// subscribes to (spec §6 External Interfaces).
type Topics struct {
	JobSubmission string
	CrawlTask     string
	IndexTask     string
	ProgressEvent string
	HealthEvent   string
}

// Subscriptions names the matching pull subscriptions for each topic a
// component consumes.
type Subscriptions struct {
	JobSubmission string
	CrawlTask     string
	IndexTask     string
	ProgressEvent string
	HealthEvent   string
}

// Config is the full set of environment-driven settings shared by
// cmd/master, cmd/crawler, cmd/indexer, and cmd/aggregator.
type Config struct {
	ProjectID string
	Topics    Topics
	Subs      Subscriptions

	BucketName string

	ElasticsearchURL      string
	ElasticsearchIndex    string
	ElasticsearchUsername string
	ElasticsearchPassword string

	MaxDepthDefault int
	UserAgent       string
	Hostname        string

	MaxActiveTasks         int
	StallSubmittedSeconds  int
	StallInProgressSeconds int
	StallWarningSeconds    int
	HealthStaleSeconds     int

	AggregatorAddr string

	LogLevel slog.Level
}

// Load reads .env (if present, ignored if absent) then required and
// optional environment variables into a Config. It returns an error
// rather than exiting so callers can log and exit non-zero themselves
// (spec §7 "Startup-fatal": log and exit before accepting work).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Topics: Topics{
			JobSubmission: getenvDefault("TOPIC_JOB_SUBMISSION", "job-submission"),
			CrawlTask:     getenvDefault("TOPIC_CRAWL_TASK", "crawl-task"),
			IndexTask:     getenvDefault("TOPIC_INDEX_TASK", "index-task"),
			ProgressEvent: getenvDefault("TOPIC_PROGRESS_EVENT", "progress-event"),
			HealthEvent:   getenvDefault("TOPIC_HEALTH_EVENT", "health-event"),
		},
		Subs: Subscriptions{
			JobSubmission: getenvDefault("SUBSCRIPTION_JOB_SUBMISSION", "job-submission-sub"),
			CrawlTask:     getenvDefault("SUBSCRIPTION_CRAWL_TASK", "crawl-task-sub"),
			IndexTask:     getenvDefault("SUBSCRIPTION_INDEX_TASK", "index-task-sub"),
			ProgressEvent: getenvDefault("SUBSCRIPTION_PROGRESS_EVENT", "progress-event-sub"),
			HealthEvent:   getenvDefault("SUBSCRIPTION_HEALTH_EVENT", "health-event-sub"),
		},
		ElasticsearchIndex:    getenvDefault("ES_INDEX_NAME", "crawled_pages"),
		ElasticsearchUsername: os.Getenv("ES_USERNAME"),
		ElasticsearchPassword: os.Getenv("ES_PASSWORD"),
		UserAgent:             getenvDefault("CRAWLER_USER_AGENT", DefaultUserAgent),
		Hostname:              os.Getenv("HOSTNAME_OVERRIDE"),
	}

	var err error
	if cfg.ProjectID, err = required("GCP_PROJECT_ID"); err != nil {
		return nil, err
	}
	if cfg.BucketName, err = required("GCS_BUCKET_NAME"); err != nil {
		return nil, err
	}

	cfg.ElasticsearchURL = resolveElasticsearchURL()
	if cfg.ElasticsearchURL == "" {
		return nil, fmt.Errorf("config: ES_URL or ES_HOST must be set")
	}

	cfg.MaxDepthDefault = envInt("MAX_DEPTH_DEFAULT", DefaultMaxDepth)
	cfg.MaxActiveTasks = envInt("MAX_ACTIVE_TASKS", DefaultMaxActiveTasks)
	cfg.StallSubmittedSeconds = envInt("STALL_SUBMITTED_SECONDS", DefaultStallSubmittedSeconds)
	cfg.StallInProgressSeconds = envInt("STALL_IN_PROGRESS_SECONDS", DefaultStallInProgressSeconds)
	cfg.StallWarningSeconds = envInt("STALL_WARNING_SECONDS", DefaultStallWarningSeconds)
	cfg.HealthStaleSeconds = envInt("HEALTH_STALE_SECONDS", DefaultHealthStaleSeconds)
	cfg.AggregatorAddr = getenvDefault("AGGREGATOR_ADDR", ":8080")

	if cfg.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.Hostname = h
		} else {
			cfg.Hostname = "unknown"
		}
	}

	cfg.LogLevel = parseLevel(os.Getenv("LOG_LEVEL"))

	return cfg, nil
}

func resolveElasticsearchURL() string {
	if url := os.Getenv("ES_URL"); url != "" {
		return url
	}
	host := os.Getenv("ES_HOST")
	if host == "" {
		return ""
	}
	port := getenvDefault("ES_PORT", "9200")
	return fmt.Sprintf("http://%s:%s", host, port)
}

func required(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: required environment variable %s is not set", key)
	}
	return v, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseLevel(raw string) slog.Level {
	switch raw {
	case "debug", "DEBUG":
		return slog.LevelDebug
	case "warn", "WARN":
		return slog.LevelWarn
	case "error", "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs the process-wide slog default: a text handler on
// stderr tagged with component and hostname, generalizing the original
// nodes' "%(hostname)s - %(levelname)s" log prefix.
func SetupLogger(cfg *Config, component string) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler).With(
		"component", component,
		"hostname", cfg.Hostname,
	)
	slog.SetDefault(logger)
}

// Fatal logs msg at error level with args and exits the process
// non-zero, the "Startup-fatal" policy of spec §7.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}

// Duration helpers used by components that convert a seconds-count
// config field to a time.Duration.
func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }
