// Package config centralises runtime configuration for lensvault services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment where lensvault operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// TransportSettings controls the politeness contract of the HTTP layer.
type TransportSettings struct {
	MinRequestDelay    time.Duration `yaml:"minRequestDelay"`
	ConnectionTimeout  time.Duration `yaml:"connectionTimeout"`
	FailedRequestDelay time.Duration `yaml:"failedRequestDelay"`
	MaxRequestRetries  int           `yaml:"maxRequestRetries"`
	UserAgent          string        `yaml:"userAgent"`
}

// CacheSettings sizes the payload TTL cache. A zero TTL disables caching; a
// zero GC interval disables the background sweep (entries still expire lazily).
type CacheSettings struct {
	TTL        time.Duration `yaml:"ttl"`
	GCInterval time.Duration `yaml:"gcInterval"`
}

// EndpointSettings names the upstream URL bases consulted during resolution.
type EndpointSettings struct {
	LensBase            string `yaml:"lensBase"`
	ProfileBase         string `yaml:"profileBase"`
	CreatorList         string `yaml:"creatorList"`
	Search              string `yaml:"search"`
	CategoryBase        string `yaml:"categoryBase"`
	UnlockBase          string `yaml:"unlockBase"`
	ArchiveAvailability string `yaml:"archiveAvailability"`
}

// ArchiveSettings bounds snapshot resolution to the structurally compatible
// window of the upstream page format. Timestamps use the archive's
// YYYYMMDDhhmmss convention (the target may be a prefix).
type ArchiveSettings struct {
	Timestamp    string `yaml:"timestamp"`
	MinThreshold string `yaml:"minThreshold"`
	MaxThreshold string `yaml:"maxThreshold"`
}

// TelemetrySettings configures the OpenTelemetry exporters.
type TelemetrySettings struct {
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// DatabaseSettings configures the optional Postgres record store.
type DatabaseSettings struct {
	DSN string `yaml:"dsn"`
}

// Settings contains the lensvault configuration tree loaded from defaults and overrides.
type Settings struct {
	Environment Environment       `yaml:"environment"`
	Transport   TransportSettings `yaml:"transport"`
	Cache       CacheSettings     `yaml:"cache"`
	Endpoints   EndpointSettings  `yaml:"endpoints"`
	Archive     ArchiveSettings   `yaml:"archive"`
	Telemetry   TelemetrySettings `yaml:"telemetry"`
	Database    DatabaseSettings  `yaml:"database"`
	Locales     []string          `yaml:"locales"`
	Categories  []string          `yaml:"categories"`
}

// Default returns the default lensvault configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Transport: TransportSettings{
			MinRequestDelay:    time.Second,
			ConnectionTimeout:  10 * time.Second,
			FailedRequestDelay: 3 * time.Second,
			MaxRequestRetries:  2,
			UserAgent:          "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		Cache: CacheSettings{
			TTL:        time.Hour,
			GCInterval: 15 * time.Minute,
		},
		Endpoints: EndpointSettings{
			LensBase:            "https://lens.snapchat.com/",
			ProfileBase:         "https://www.snapchat.com/add/",
			CreatorList:         "https://lensstudio.snapchat.com/v1/creator/lenses/",
			Search:              "https://www.snapchat.com/explore/",
			CategoryBase:        "https://www.snapchat.com/",
			UnlockBase:          "https://www.snapchat.com/unlock/?type=SNAPCODE&uuid=",
			ArchiveAvailability: "https://archive.org/wayback/available",
		},
		Archive: ArchiveSettings{
			Timestamp:    "20220601",
			MinThreshold: "20201001000000",
			MaxThreshold: "20230630235959",
		},
		Telemetry: TelemetrySettings{OTLPEndpoint: "", ServiceName: "lensvault"},
		Database:  DatabaseSettings{DSN: ""},
		Locales: []string{
			"en-US", "en-GB", "de-DE", "fr-FR", "es-ES", "it-IT", "pt-BR", "ja-JP",
		},
		Categories: []string{
			"default", "trending", "face", "world", "music",
		},
	}
}

// FromEnv loads configuration values from environment variables, overriding defaults.
func FromEnv() Settings {
	cfg := Default()
	if env := strings.TrimSpace(os.Getenv("LENSVAULT_ENV")); env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_MIN_REQUEST_DELAY")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Transport.MinRequestDelay = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_CONNECTION_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Transport.ConnectionTimeout = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_FAILED_REQUEST_DELAY")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Transport.FailedRequestDelay = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_MAX_REQUEST_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Transport.MaxRequestRetries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_USER_AGENT")); v != "" {
		cfg.Transport.UserAgent = v
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_CACHE_TTL")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_CACHE_GC_INTERVAL")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.Cache.GCInterval = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_DATABASE_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("LENSVAULT_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	return cfg
}

// FromFile loads a YAML configuration file layered over the defaults.
func FromFile(path string) (Settings, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration file when present, falling back to
// environment-derived defaults. The boolean reports whether the file was used.
func LoadOrDefault(path string) (Settings, bool, error) {
	if strings.TrimSpace(path) == "" {
		return FromEnv(), false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FromEnv(), false, nil
		}
		return FromEnv(), false, err
	}
	cfg, err := FromFile(path)
	if err != nil {
		return cfg, false, err
	}
	return cfg, true, nil
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base.clone()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithMinRequestDelay overrides the per-host pacing interval.
func WithMinRequestDelay(delay time.Duration) Option {
	return func(s *Settings) {
		if delay >= 0 {
			s.Transport.MinRequestDelay = delay
		}
	}
}

// WithConnectionTimeout overrides the per-attempt HTTP timeout.
func WithConnectionTimeout(timeout time.Duration) Option {
	return func(s *Settings) {
		if timeout > 0 {
			s.Transport.ConnectionTimeout = timeout
		}
	}
}

// WithFailedRequestDelay overrides the sleep between retry attempts.
func WithFailedRequestDelay(delay time.Duration) Option {
	return func(s *Settings) {
		if delay >= 0 {
			s.Transport.FailedRequestDelay = delay
		}
	}
}

// WithMaxRequestRetries overrides the additional attempt budget.
func WithMaxRequestRetries(retries int) Option {
	return func(s *Settings) {
		if retries >= 0 {
			s.Transport.MaxRequestRetries = retries
		}
	}
}

// WithCacheTTL overrides the payload cache lifetime. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Settings) {
		if ttl >= 0 {
			s.Cache.TTL = ttl
		}
	}
}

// WithCacheGCInterval overrides the background sweep period. Zero disables it.
func WithCacheGCInterval(interval time.Duration) Option {
	return func(s *Settings) {
		if interval >= 0 {
			s.Cache.GCInterval = interval
		}
	}
}

// WithUserAgent overrides the browser User-Agent sent upstream.
func WithUserAgent(agent string) Option {
	agent = strings.TrimSpace(agent)
	return func(s *Settings) {
		if agent != "" {
			s.Transport.UserAgent = agent
		}
	}
}

// WithLocales overrides the locale rotation list for listing endpoints.
func WithLocales(locales ...string) Option {
	cleaned := make([]string, 0, len(locales))
	for _, locale := range locales {
		if trimmed := strings.TrimSpace(locale); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return func(s *Settings) {
		if len(cleaned) > 0 {
			s.Locales = cleaned
		}
	}
}

// WithEndpoints replaces the upstream endpoint bases wholesale; empty fields
// keep their current values.
func WithEndpoints(endpoints EndpointSettings) Option {
	return func(s *Settings) {
		if v := strings.TrimSpace(endpoints.LensBase); v != "" {
			s.Endpoints.LensBase = v
		}
		if v := strings.TrimSpace(endpoints.ProfileBase); v != "" {
			s.Endpoints.ProfileBase = v
		}
		if v := strings.TrimSpace(endpoints.CreatorList); v != "" {
			s.Endpoints.CreatorList = v
		}
		if v := strings.TrimSpace(endpoints.Search); v != "" {
			s.Endpoints.Search = v
		}
		if v := strings.TrimSpace(endpoints.CategoryBase); v != "" {
			s.Endpoints.CategoryBase = v
		}
		if v := strings.TrimSpace(endpoints.UnlockBase); v != "" {
			s.Endpoints.UnlockBase = v
		}
		if v := strings.TrimSpace(endpoints.ArchiveAvailability); v != "" {
			s.Endpoints.ArchiveAvailability = v
		}
	}
}

// WithArchiveWindow overrides the snapshot target timestamp and validity window.
func WithArchiveWindow(timestamp, minThreshold, maxThreshold string) Option {
	return func(s *Settings) {
		if v := strings.TrimSpace(timestamp); v != "" {
			s.Archive.Timestamp = v
		}
		if v := strings.TrimSpace(minThreshold); v != "" {
			s.Archive.MinThreshold = v
		}
		if v := strings.TrimSpace(maxThreshold); v != "" {
			s.Archive.MaxThreshold = v
		}
	}
}

// WithDatabaseDSN configures the optional Postgres record store.
func WithDatabaseDSN(dsn string) Option {
	dsn = strings.TrimSpace(dsn)
	return func(s *Settings) {
		s.Database.DSN = dsn
	}
}

func (s Settings) clone() Settings {
	out := s
	out.Locales = append([]string(nil), s.Locales...)
	out.Categories = append([]string(nil), s.Categories...)
	return out
}
