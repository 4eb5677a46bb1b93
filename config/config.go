// Package config holds the harvester's typed configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-harvest/logging"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Backend selects the persistence gateway implementation.
type Backend string

// Supported persistence backends.
const (
	BackendFile      Backend = "file"
	BackendS3        Backend = "s3"
	BackendMongo     Backend = "mongo"
	BackendFirestore Backend = "firestore"
	BackendRedis     Backend = "redis"
	BackendPostgres  Backend = "postgres"
)

// Backends lists every supported backend in display order.
var Backends = []Backend{BackendFile, BackendS3, BackendMongo, BackendFirestore, BackendRedis, BackendPostgres}

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Backends {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: unknown persistence backend %q", ErrInvalidConfig, name)
}

// Config holds harvester configuration.
type Config struct {
	APIKey      string `yaml:"api_key"`
	ProxyURL    string `yaml:"proxy_url"`
	Concurrency int    `yaml:"concurrency"`
	RetryFailed bool   `yaml:"retry_failed"`
	KeepHeaders bool   `yaml:"keep_headers"`
	RenderPage  bool   `yaml:"render_page"`

	RetryBackoff time.Duration `yaml:"retry_backoff"`
	Timeout      time.Duration `yaml:"timeout"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`

	ContactInfo     string `yaml:"contact_info"`
	IPCheckURL      string `yaml:"ip_check_url"`
	IdentifierField string `yaml:"identifier_field"`
	DedupeMaxSize   int    `yaml:"dedupe_max_size"`

	AlertBeeps    int           `yaml:"alert_beeps"`
	AlertInterval time.Duration `yaml:"alert_interval"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogPretty   bool   `yaml:"log_pretty"`

	Storage   StorageConfig   `yaml:"storage"`
	Extractor ExtractorConfig `yaml:"extractor"`
}

// Extractor kinds.
const (
	ExtractorArtist   = "artist"
	ExtractorSelector = "selector"
)

// ExtractorConfig selects how responses become records.
type ExtractorConfig struct {
	Kind string `yaml:"kind"`

	// Item and Fields configure the selector extractor.
	Item   string        `yaml:"item"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig maps one CSS selector to an output field.
type FieldConfig struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr"`
}

// StorageConfig holds per-backend connection settings.
type StorageConfig struct {
	Backend Backend `yaml:"backend"`

	// file
	Dir string `yaml:"dir"`

	// s3
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`

	// mongo
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	// firestore
	FirestoreProject string `yaml:"firestore_project"`

	// redis
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`

	// postgres
	PostgresDSN string `yaml:"postgres_dsn"`
}

// DefaultConfig returns the defaults. APIKey is deliberately empty.
func DefaultConfig() *Config {
	return &Config{
		ProxyURL:        "https://api.scraperapi.com/",
		Concurrency:     10,
		RetryFailed:     false,
		KeepHeaders:     false,
		RenderPage:      false,
		RetryBackoff:    8 * time.Second,
		Timeout:         60 * time.Second,
		InitialDelay:    0,
		MaxDelay:        8 * time.Second,
		ContactInfo:     "Research purpose explicitly. Webmaster: ",
		IPCheckURL:      "https://api.ipify.org/?format=json",
		IdentifierField: "url",
		DedupeMaxSize:   100000,
		AlertBeeps:      4,
		AlertInterval:   1500 * time.Millisecond,
		LogLevel:        "info",
		Storage: StorageConfig{
			Backend:       BackendFile,
			Dir:           ".",
			MongoDatabase: "harvest",
			RedisPrefix:   "harvest",
		},
		Extractor: ExtractorConfig{Kind: ExtractorArtist},
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return invalid("proxy API key is required (SCRAPERAPI_KEY)")
	}
	if c.ProxyURL == "" {
		return invalid("proxy URL cannot be empty")
	}
	parsed, err := url.Parse(c.ProxyURL)
	if err != nil {
		return invalid("proxy URL: %v", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return invalid("proxy URL must include scheme and host")
	}
	if c.Concurrency <= 0 {
		return invalid("concurrency must be positive")
	}
	if c.RetryBackoff < 0 {
		return invalid("retry backoff cannot be negative")
	}
	if c.Timeout <= 0 {
		return invalid("timeout must be positive")
	}
	if c.InitialDelay < 0 {
		return invalid("initial delay cannot be negative")
	}
	if c.MaxDelay <= 0 {
		return invalid("max delay must be positive")
	}
	if c.IdentifierField == "" {
		return invalid("identifier field cannot be empty")
	}
	if c.DedupeMaxSize <= 0 {
		return invalid("dedupe max size must be positive")
	}
	if c.AlertBeeps < 0 {
		return invalid("alert beeps cannot be negative")
	}
	if c.AlertInterval < 0 {
		return invalid("alert interval cannot be negative")
	}
	if !logging.ValidLevel(c.LogLevel) {
		return invalid("unknown log level %q", c.LogLevel)
	}
	if err := c.Extractor.Validate(); err != nil {
		return err
	}
	return c.Storage.Validate()
}

// Validate checks the extractor kind and its settings.
func (e *ExtractorConfig) Validate() error {
	switch e.Kind {
	case ExtractorArtist:
		return nil
	case ExtractorSelector:
		if e.Item == "" {
			return invalid("selector extractor requires an item selector")
		}
		if len(e.Fields) == 0 {
			return invalid("selector extractor requires at least one field")
		}
		for i, f := range e.Fields {
			if f.Name == "" {
				return invalid("selector extractor field %d has no name", i)
			}
		}
		return nil
	default:
		return invalid("unknown extractor %q", e.Kind)
	}
}

// Validate checks that the selected backend has what it needs.
func (s *StorageConfig) Validate() error {
	backend, err := ParseBackend(string(s.Backend))
	if err != nil {
		return err
	}
	switch backend {
	case BackendFile:
		if s.Dir == "" {
			return invalid("file backend requires a directory (FILE_DIR)")
		}
	case BackendS3:
		if s.S3Bucket == "" {
			return invalid("s3 backend requires a bucket (S3_BUCKET)")
		}
	case BackendMongo:
		if s.MongoURI == "" {
			return invalid("mongo backend requires a URI (MONGO_URI)")
		}
		if s.MongoDatabase == "" {
			return invalid("mongo backend requires a database (MONGO_DATABASE)")
		}
	case BackendFirestore:
		if s.FirestoreProject == "" {
			return invalid("firestore backend requires a project (FIRESTORE_PROJECT_ID)")
		}
	case BackendRedis:
		if s.RedisURL == "" {
			return invalid("redis backend requires a URL (REDIS_URL)")
		}
	case BackendPostgres:
		if s.PostgresDSN == "" {
			return invalid("postgres backend requires a DSN (PG_DSN)")
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}
