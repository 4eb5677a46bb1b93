// Package store persists the four harvest collections (input, output, error,
// error-fatal) behind one Gateway interface with a backend per storage kind.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-harvest/config"
	"github.com/aluiziolira/go-harvest/models"
)

var (
	// ErrInputNotSet is returned by Load when the input collection is empty or missing.
	ErrInputNotSet = errors.New("input not set")

	// ErrEmptySource is returned by SetInput when given no records.
	ErrEmptySource = errors.New("source is empty")
)

// Collection names shared by every backend.
const (
	CollectionInput      = "input"
	CollectionOutput     = "output"
	CollectionError      = "error"
	CollectionErrorFatal = "error-fatal"
)

// Seed is what a backend hands to the work-set resolver.
type Seed struct {
	Input  []string
	Output []string
}

// Gateway is the persistence boundary of a harvesting session. Appends are
// keyed by record identifier so repeating a call after a crash does not
// duplicate output.
type Gateway interface {
	Load(ctx context.Context) (Seed, error)
	AppendOutput(ctx context.Context, records []models.Record) error
	AppendError(ctx context.Context, entry models.ErrorEntry) error
	AppendFatalError(ctx context.Context, entry models.ErrorEntry) error
	SetInput(ctx context.Context, records []models.Record) error
	Close() error
}

// PersistenceError wraps a backend failure with the operation that caused it.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func wrap(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Backend: backend, Op: op, Err: err}
}

// Open connects the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config) (Gateway, error) {
	field := cfg.IdentifierField
	s := cfg.Storage
	switch s.Backend {
	case config.BackendFile:
		return NewFileGateway(s.Dir, field)
	case config.BackendS3:
		return NewS3Gateway(ctx, s, field)
	case config.BackendMongo:
		return NewMongoGateway(ctx, s.MongoURI, s.MongoDatabase, field)
	case config.BackendFirestore:
		return NewFirestoreGateway(ctx, s.FirestoreProject, field)
	case config.BackendRedis:
		return NewRedisGateway(s.RedisURL, s.RedisPrefix, field)
	case config.BackendPostgres:
		return NewPostgresGateway(ctx, s.PostgresDSN, field)
	default:
		return nil, fmt.Errorf("%w: unknown persistence backend %q", config.ErrInvalidConfig, s.Backend)
	}
}

// dedupe keeps the first occurrence of each non-empty identifier.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// outputKeys returns one storage key per output record: the identifier and
// the record's ordinal among the records of the batch sharing it. Every record
// extracted from one response is kept, and appending the same batch again
// maps onto the same keys. Records without an identifier get random keys.
func outputKeys(records []models.Record, field string) []string {
	ordinals := make(map[string]int)
	keys := make([]string, len(records))
	for i, rec := range records {
		id := rec.Identifier(field)
		if id == "" {
			keys[i] = uuid.NewString()
			continue
		}
		n := ordinals[id]
		ordinals[id] = n + 1
		keys[i] = id + "#" + strconv.Itoa(n)
	}
	return keys
}

// recordKey returns the record identifier, or a random key for records
// without one so they are still stored.
func recordKey(rec models.Record, field string) string {
	if id := rec.Identifier(field); id != "" {
		return id
	}
	return uuid.NewString()
}
