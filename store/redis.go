package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aluiziolira/go-harvest/models"
)

// DefaultRedisPrefix namespaces every key the gateway touches.
const DefaultRedisPrefix = "harvest"

// redisOutputIDs names the set of identifiers present in output.
const redisOutputIDs = "output-ids"

// RedisGateway stores input as a hash keyed by identifier, output as a hash
// keyed by output key plus a set of output identifiers, and the error logs as
// lists, all under one key prefix.
type RedisGateway struct {
	client *goredis.Client
	prefix string
	field  string
}

// NewRedisGateway parses url (redis://[:password@]host:port[/db]).
func NewRedisGateway(url, prefix, field string) (*RedisGateway, error) {
	if url == "" {
		return nil, wrap("redis", "open", errors.New("URL is required"))
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, wrap("redis", "open", fmt.Errorf("invalid URL: %w", err))
	}
	return NewRedisGatewayWithClient(goredis.NewClient(opts), prefix, field), nil
}

// NewRedisGatewayWithClient wraps an existing client.
func NewRedisGatewayWithClient(client *goredis.Client, prefix, field string) *RedisGateway {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisGateway{client: client, prefix: prefix, field: field}
}

// Key returns the redis key of a collection.
func (g *RedisGateway) Key(collection string) string {
	return g.prefix + ":" + collection
}

// Load implements Gateway.
func (g *RedisGateway) Load(ctx context.Context) (Seed, error) {
	n, err := g.client.HLen(ctx, g.Key(CollectionInput)).Result()
	if err != nil {
		return Seed{}, wrap("redis", "count input", err)
	}
	if n == 0 {
		return Seed{}, ErrInputNotSet
	}
	input, err := g.client.HKeys(ctx, g.Key(CollectionInput)).Result()
	if err != nil {
		return Seed{}, wrap("redis", "load input", err)
	}
	output, err := g.client.SMembers(ctx, g.Key(redisOutputIDs)).Result()
	if err != nil {
		return Seed{}, wrap("redis", "load output", err)
	}
	return Seed{Input: dedupe(input), Output: dedupe(output)}, nil
}

func encodeRecords(records []models.Record) ([][]byte, error) {
	encoded := make([][]byte, len(records))
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode record: %w", err)
		}
		encoded[i] = data
	}
	return encoded, nil
}

// AppendOutput implements Gateway. Every record gets its own hash field;
// fields already present are kept as is.
func (g *RedisGateway) AppendOutput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	encoded, err := encodeRecords(records)
	if err != nil {
		return wrap("redis", "append output", err)
	}
	keys := outputKeys(records, g.field)
	hash, ids := g.Key(CollectionOutput), g.Key(redisOutputIDs)
	_, err = g.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, rec := range records {
			pipe.HSetNX(ctx, hash, keys[i], encoded[i])
			if id := rec.Identifier(g.field); id != "" {
				pipe.SAdd(ctx, ids, id)
			}
		}
		return nil
	})
	return wrap("redis", "append output", err)
}

func (g *RedisGateway) pushLog(ctx context.Context, collection string, entry models.ErrorEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return g.client.RPush(ctx, g.Key(collection), data).Err()
}

// AppendError implements Gateway.
func (g *RedisGateway) AppendError(ctx context.Context, entry models.ErrorEntry) error {
	return wrap("redis", "append error", g.pushLog(ctx, CollectionError, entry))
}

// AppendFatalError implements Gateway.
func (g *RedisGateway) AppendFatalError(ctx context.Context, entry models.ErrorEntry) error {
	return wrap("redis", "append fatal error", g.pushLog(ctx, CollectionErrorFatal, entry))
}

// SetInput implements Gateway.
func (g *RedisGateway) SetInput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return ErrEmptySource
	}
	encoded, err := encodeRecords(records)
	if err != nil {
		return wrap("redis", "set input", err)
	}
	key := g.Key(CollectionInput)
	_, err = g.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, rec := range records {
			pipe.HSet(ctx, key, recordKey(rec, g.field), encoded[i])
		}
		return nil
	})
	return wrap("redis", "set input", err)
}

// Close releases the client.
func (g *RedisGateway) Close() error {
	return g.client.Close()
}
