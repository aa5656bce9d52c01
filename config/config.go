package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Crawl     CrawlConfig
	Analysis  AnalysisConfig
	Resolver  ResolverConfig
	Store     StoreConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Webhook   WebhookConfig
}

// ResolverConfig controls domain → landing URL resolution.
type ResolverConfig struct {
	// EscalationDelays is the staged start delay for each engine tier
	// (HTTP probe, then browser).
	EscalationDelays []time.Duration // default: [0s, 3s]

	// HTTPTimeout is the deadline for the HTTP probe engine.
	HTTPTimeout time.Duration // default: 10s

	// CandidateTimeout bounds the resolution of one candidate URL.
	CandidateTimeout time.Duration // default: 90s

	// MemoryTTL is how long the winning engine is remembered per domain.
	MemoryTTL time.Duration // default: 24h
}

// CacheConfig controls the site differences cache of the API.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached sites.
	MaxEntries int // default: 1000

	// TTL is how long a cached entry stays fresh.
	TTL time.Duration // default: 10m
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// MaxUploadBytes caps multipart screenshot uploads.
	MaxUploadBytes int64 // default: 32 MiB
}

// BrowserConfig controls the Rod browser instances.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity of the resolution browser.
	MaxPages int // default: 4

	// DefaultProxy is the proxy URL for all sessions.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects the stealth evasions into every page.
	Stealth bool // default: true

	// WindowWidth and WindowHeight fix the viewport so screenshots of the
	// three sessions share dimensions.
	WindowWidth  int // default: 1366
	WindowHeight int // default: 768

	// PageLoadTimeout bounds a single navigation.
	PageLoadTimeout time.Duration // default: 60s
}

// CrawlConfig controls the classification crawl.
type CrawlConfig struct {
	// DataPath is the root directory of per-site artifacts.
	DataPath string // default: "data"

	// SiteListPath is the newline-separated list of domains.
	SiteListPath string

	// TotalActions is the number of actions collected per site.
	TotalActions int // default: 50

	// ClickstreamLength is the maximum number of clicks per clickstream.
	ClickstreamLength int // default: 5

	// WaitTime is the pause after a navigation or click.
	WaitTime time.Duration // default: 5s

	// GetAttempts is the number of navigation attempts per URL.
	GetAttempts int // default: 3

	// SiteTimeout abandons a site crawl.
	SiteTimeout time.Duration // default: 1h

	// KillGrace is how long an abandoned crawl may take to wind down.
	KillGrace time.Duration // default: 1m

	// Treatment is the cookie treatment of the experimental session:
	// "none", "third-party", "all" or "class:<Class>,<Class>".
	Treatment string // default: "third-party"

	// CookieDatabase is the cookie classification dataset (CSV or JSONL).
	CookieDatabase string

	// Seed seeds clickstream generation; 0 picks a random seed.
	Seed uint64
}

// AnalysisConfig controls the comparison of captured artifacts.
type AnalysisConfig struct {
	// ChunkSize is the screenshot tile size in pixels.
	ChunkSize int // default: 40

	// Shards is the number of partitions the site list is split into.
	Shards int // default: 25

	// Workers bounds concurrent site comparisons within a shard.
	Workers int // default: 4

	// OutputPath is where differences/<shard>.json is written.
	OutputPath string // default: "analysis"
}

// StoreConfig controls the SQLite database.
type StoreConfig struct {
	Path string // default: "cookiediff.db"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// WebhookConfig controls shard notifications.
type WebhookConfig struct {
	// URL receives shard.completed / shard.failed events. Empty disables.
	URL string

	// Secret signs payloads with HMAC-SHA256.
	Secret string

	// Timeout bounds one delivery attempt.
	Timeout time.Duration // default: 10s
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           envOr("COOKIEDIFF_HOST", "0.0.0.0"),
			Port:           envIntOr("COOKIEDIFF_PORT", 8080),
			Mode:           envOr("COOKIEDIFF_MODE", "release"),
			MaxUploadBytes: int64(envIntOr("COOKIEDIFF_MAX_UPLOAD_BYTES", 32<<20)),
		},
		Browser: BrowserConfig{
			Headless:        envBoolOr("COOKIEDIFF_HEADLESS", true),
			MaxPages:        envIntOr("COOKIEDIFF_MAX_PAGES", 4),
			DefaultProxy:    os.Getenv("COOKIEDIFF_PROXY"),
			NoSandbox:       envBoolOr("COOKIEDIFF_NO_SANDBOX", false),
			BrowserBin:      os.Getenv("COOKIEDIFF_BROWSER_BIN"),
			Stealth:         envBoolOr("COOKIEDIFF_STEALTH", true),
			WindowWidth:     envIntOr("COOKIEDIFF_WINDOW_WIDTH", 1366),
			WindowHeight:    envIntOr("COOKIEDIFF_WINDOW_HEIGHT", 768),
			PageLoadTimeout: envDurationOr("COOKIEDIFF_PAGE_LOAD_TIMEOUT", 60*time.Second),
		},
		Crawl: CrawlConfig{
			DataPath:          envOr("COOKIEDIFF_DATA_PATH", "data"),
			SiteListPath:      os.Getenv("COOKIEDIFF_SITE_LIST"),
			TotalActions:      envIntOr("COOKIEDIFF_TOTAL_ACTIONS", 50),
			ClickstreamLength: envIntOr("COOKIEDIFF_CLICKSTREAM_LENGTH", 5),
			WaitTime:          envDurationOr("COOKIEDIFF_WAIT_TIME", 5*time.Second),
			GetAttempts:       envIntOr("COOKIEDIFF_GET_ATTEMPTS", 3),
			SiteTimeout:       envDurationOr("COOKIEDIFF_SITE_TIMEOUT", time.Hour),
			KillGrace:         envDurationOr("COOKIEDIFF_KILL_GRACE", time.Minute),
			Treatment:         envOr("COOKIEDIFF_TREATMENT", "third-party"),
			CookieDatabase:    os.Getenv("COOKIEDIFF_COOKIE_DATABASE"),
			Seed:              uint64(envIntOr("COOKIEDIFF_SEED", 0)),
		},
		Analysis: AnalysisConfig{
			ChunkSize:  envIntOr("COOKIEDIFF_CHUNK_SIZE", 40),
			Shards:     envIntOr("COOKIEDIFF_SHARDS", 25),
			Workers:    envIntOr("COOKIEDIFF_ANALYSIS_WORKERS", 4),
			OutputPath: envOr("COOKIEDIFF_ANALYSIS_PATH", "analysis"),
		},
		Resolver: ResolverConfig{
			EscalationDelays: envDurationSliceOr("COOKIEDIFF_ESCALATION_DELAYS", []time.Duration{0, 3 * time.Second}),
			HTTPTimeout:      envDurationOr("COOKIEDIFF_HTTP_TIMEOUT", 10*time.Second),
			CandidateTimeout: envDurationOr("COOKIEDIFF_CANDIDATE_TIMEOUT", 90*time.Second),
			MemoryTTL:        envDurationOr("COOKIEDIFF_MEMORY_TTL", 24*time.Hour),
		},
		Store: StoreConfig{
			Path: envOr("COOKIEDIFF_DB", "cookiediff.db"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("COOKIEDIFF_AUTH_ENABLED", true),
			APIKeys: envSliceOr("COOKIEDIFF_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("COOKIEDIFF_RATE_RPS", 5.0),
			Burst:             envIntOr("COOKIEDIFF_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("COOKIEDIFF_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("COOKIEDIFF_CACHE_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("COOKIEDIFF_LOG_LEVEL", "info"),
			Format: envOr("COOKIEDIFF_LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			URL:     os.Getenv("COOKIEDIFF_WEBHOOK_URL"),
			Secret:  os.Getenv("COOKIEDIFF_WEBHOOK_SECRET"),
			Timeout: envDurationOr("COOKIEDIFF_WEBHOOK_TIMEOUT", 10*time.Second),
		},
	}
}

// ShardIndex returns the shard this process handles: COOKIEDIFF_SHARD,
// then SLURM_ARRAY_TASK_ID, then 0.
func ShardIndex() int {
	if v := os.Getenv("COOKIEDIFF_SHARD"); v != "" {
		return envIntOr("COOKIEDIFF_SHARD", 0)
	}
	return envIntOr("SLURM_ARRAY_TASK_ID", 0)
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
