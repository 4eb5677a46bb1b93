package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads the given .env files (default ".env") without overriding
// variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of key when it is set and non-empty.
func EnvString(key string) (string, bool) {
	return envString(os.LookupEnv, key)
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	return envInt(os.LookupEnv, key)
}

// EnvBool parses key with strconv.ParseBool. Unparseable values are an error.
func EnvBool(key string) (bool, bool, error) {
	return envBool(os.LookupEnv, key)
}

// EnvDuration parses key as a Go duration ("8s") or a bare millisecond count ("8000").
func EnvDuration(key string) (time.Duration, bool, error) {
	return envDuration(os.LookupEnv, key)
}

func envString(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func envInt(lookup LookupFunc, key string) (int, bool, error) {
	v, ok := envString(lookup, key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %q is not an integer", ErrInvalidConfig, key, v)
	}
	return n, true, nil
}

func envBool(lookup LookupFunc, key string) (bool, bool, error) {
	v, ok := envString(lookup, key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("%w: %s: %q is not a boolean", ErrInvalidConfig, key, v)
	}
	return b, true, nil
}

func envDuration(lookup LookupFunc, key string) (time.Duration, bool, error) {
	v, ok := envString(lookup, key)
	if !ok {
		return 0, false, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, true, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s: %q is not a duration", ErrInvalidConfig, key, v)
	}
	return d, true, nil
}

// ApplyEnv overlays environment variables onto c.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"SCRAPERAPI_KEY", &c.APIKey},
		{"PROXY_URL", &c.ProxyURL},
		{"CONTACT_INFO", &c.ContactInfo},
		{"IDENTIFIER_FIELD", &c.IdentifierField},
		{"METRICS_ADDR", &c.MetricsAddr},
		{"LOG_LEVEL", &c.LogLevel},
		{"FILE_DIR", &c.Storage.Dir},
		{"S3_BUCKET", &c.Storage.S3Bucket},
		{"S3_PREFIX", &c.Storage.S3Prefix},
		{"S3_REGION", &c.Storage.S3Region},
		{"S3_ENDPOINT", &c.Storage.S3Endpoint},
		{"MONGO_URI", &c.Storage.MongoURI},
		{"MONGO_DATABASE", &c.Storage.MongoDatabase},
		{"FIRESTORE_PROJECT_ID", &c.Storage.FirestoreProject},
		{"REDIS_URL", &c.Storage.RedisURL},
		{"REDIS_PREFIX", &c.Storage.RedisPrefix},
		{"PG_DSN", &c.Storage.PostgresDSN},
		{"EXTRACTOR", &c.Extractor.Kind},
	}
	for _, s := range strs {
		if v, ok := envString(lookup, s.key); ok {
			*s.dst = v
		}
	}

	// IP_CHECK_URL may be set to the empty string to disable the preflight.
	if v, ok := lookup("IP_CHECK_URL"); ok {
		c.IPCheckURL = strings.TrimSpace(v)
	}

	if v, ok := envString(lookup, "IO_SERVICE"); ok {
		backend, err := ParseBackend(v)
		if err != nil {
			return fmt.Errorf("IO_SERVICE: %w", err)
		}
		c.Storage.Backend = backend
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"REQUEST_COUNT", &c.Concurrency},
		{"DEDUPE_MAX_SIZE", &c.DedupeMaxSize},
		{"ALERT_BEEPS", &c.AlertBeeps},
	}
	for _, i := range ints {
		v, ok, err := envInt(lookup, i.key)
		if err != nil {
			return err
		}
		if ok {
			*i.dst = v
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"RETRY_FAILED", &c.RetryFailed},
		{"KEEP_HEADERS", &c.KeepHeaders},
		{"RENDER_PAGE", &c.RenderPage},
		{"LOG_PRETTY", &c.LogPretty},
		{"S3_PATH_STYLE", &c.Storage.S3PathStyle},
	}
	for _, b := range bools {
		v, ok, err := envBool(lookup, b.key)
		if err != nil {
			return err
		}
		if ok {
			*b.dst = v
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"RETRY_BACKOFF", &c.RetryBackoff},
		{"REQUEST_TIMEOUT", &c.Timeout},
		{"INITIAL_DELAY", &c.InitialDelay},
		{"MAX_DELAY", &c.MaxDelay},
		{"ALERT_INTERVAL", &c.AlertInterval},
	}
	for _, d := range durations {
		v, ok, err := envDuration(lookup, d.key)
		if err != nil {
			return err
		}
		if ok {
			*d.dst = v
		}
	}

	return nil
}
