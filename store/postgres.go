package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aluiziolira/go-harvest/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS harvest_input (
	identifier TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS harvest_output (
	record_key TEXT PRIMARY KEY,
	identifier TEXT NOT NULL,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS harvest_output_identifier ON harvest_output (identifier);
CREATE TABLE IF NOT EXISTS harvest_error (
	id        BIGSERIAL PRIMARY KEY,
	target    TEXT NOT NULL DEFAULT '',
	message   TEXT NOT NULL,
	logged_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS harvest_error_fatal (
	id        BIGSERIAL PRIMARY KEY,
	target    TEXT NOT NULL DEFAULT '',
	message   TEXT NOT NULL,
	logged_at TIMESTAMPTZ NOT NULL
);`

var postgresTables = map[string]string{
	CollectionInput:      "harvest_input",
	CollectionOutput:     "harvest_output",
	CollectionError:      "harvest_error",
	CollectionErrorFatal: "harvest_error_fatal",
}

// PostgresGateway stores record documents as jsonb rows. Input rows are keyed
// by identifier, output rows by output key with the identifier alongside.
type PostgresGateway struct {
	pool  *pgxpool.Pool
	field string

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresGateway connects a pool to dsn.
func NewPostgresGateway(ctx context.Context, dsn, field string) (*PostgresGateway, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, wrap("postgres", "connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrap("postgres", "ping", err)
	}
	return &PostgresGateway{pool: pool, field: field}, nil
}

func (g *PostgresGateway) ensureSchema(ctx context.Context) error {
	g.schemaOnce.Do(func() {
		_, g.schemaErr = g.pool.Exec(ctx, postgresSchema)
	})
	return g.schemaErr
}

func (g *PostgresGateway) identifiers(ctx context.Context, collection string) ([]string, error) {
	rows, err := g.pool.Query(ctx, "SELECT identifier FROM "+postgresTables[collection]+" WHERE identifier <> '' ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return dedupe(ids), nil
}

// Load implements Gateway.
func (g *PostgresGateway) Load(ctx context.Context) (Seed, error) {
	if err := g.ensureSchema(ctx); err != nil {
		return Seed{}, wrap("postgres", "ensure schema", err)
	}
	var n int64
	if err := g.pool.QueryRow(ctx, "SELECT COUNT(*) FROM harvest_input").Scan(&n); err != nil {
		return Seed{}, wrap("postgres", "count input", err)
	}
	if n == 0 {
		return Seed{}, ErrInputNotSet
	}
	input, err := g.identifiers(ctx, CollectionInput)
	if err != nil {
		return Seed{}, wrap("postgres", "load input", err)
	}
	output, err := g.identifiers(ctx, CollectionOutput)
	if err != nil {
		return Seed{}, wrap("postgres", "load output", err)
	}
	return Seed{Input: input, Output: output}, nil
}

// execBatch runs one queued statement per record inside a transaction.
func (g *PostgresGateway) execBatch(ctx context.Context, records []models.Record, queue func(batch *pgx.Batch, i int, doc []byte)) error {
	if err := g.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		queue(batch, i, doc)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch exec %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return tx.Commit(ctx)
}

// AppendOutput implements Gateway. Every record becomes one row; rows already
// stored under the same output key are left untouched.
func (g *PostgresGateway) AppendOutput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	keys := outputKeys(records, g.field)
	const query = "INSERT INTO harvest_output (record_key, identifier, doc) VALUES ($1, $2, $3) ON CONFLICT (record_key) DO NOTHING"
	return wrap("postgres", "append output", g.execBatch(ctx, records, func(batch *pgx.Batch, i int, doc []byte) {
		batch.Queue(query, keys[i], records[i].Identifier(g.field), doc)
	}))
}

func (g *PostgresGateway) insertLog(ctx context.Context, collection string, entry models.ErrorEntry) error {
	if err := g.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	_, err := g.pool.Exec(ctx,
		"INSERT INTO "+postgresTables[collection]+" (target, message, logged_at) VALUES ($1, $2, $3)",
		entry.Target, entry.Message, entry.Timestamp)
	return err
}

// AppendError implements Gateway.
func (g *PostgresGateway) AppendError(ctx context.Context, entry models.ErrorEntry) error {
	return wrap("postgres", "append error", g.insertLog(ctx, CollectionError, entry))
}

// AppendFatalError implements Gateway.
func (g *PostgresGateway) AppendFatalError(ctx context.Context, entry models.ErrorEntry) error {
	return wrap("postgres", "append fatal error", g.insertLog(ctx, CollectionErrorFatal, entry))
}

// SetInput implements Gateway. Existing identifiers get the new document.
func (g *PostgresGateway) SetInput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return ErrEmptySource
	}
	const query = "INSERT INTO harvest_input (identifier, doc) VALUES ($1, $2) ON CONFLICT (identifier) DO UPDATE SET doc = EXCLUDED.doc"
	return wrap("postgres", "set input", g.execBatch(ctx, records, func(batch *pgx.Batch, i int, doc []byte) {
		batch.Queue(query, recordKey(records[i], g.field), doc)
	}))
}

// Close releases the pool.
func (g *PostgresGateway) Close() error {
	g.pool.Close()
	return nil
}
