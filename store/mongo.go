package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aluiziolira/go-harvest/models"
)

// MongoGateway maps the four collections onto MongoDB collections of the same name.
type MongoGateway struct {
	client *mongo.Client
	db     *mongo.Database
	field  string
}

// NewMongoGateway connects to uri and pings the server.
func NewMongoGateway(ctx context.Context, uri, database, field string) (*MongoGateway, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, wrap("mongo", "connect", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, wrap("mongo", "ping", err)
	}
	return &MongoGateway{client: client, db: client.Database(database), field: field}, nil
}

func (g *MongoGateway) collection(name string) *mongo.Collection {
	return g.db.Collection(name)
}

func (g *MongoGateway) distinct(ctx context.Context, name string) ([]string, error) {
	values, err := g.collection(name).Distinct(ctx, g.field, bson.D{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return dedupe(ids), nil
}

// Load implements Gateway.
func (g *MongoGateway) Load(ctx context.Context) (Seed, error) {
	n, err := g.collection(CollectionInput).CountDocuments(ctx, bson.D{})
	if err != nil {
		return Seed{}, wrap("mongo", "count input", err)
	}
	if n == 0 {
		return Seed{}, ErrInputNotSet
	}
	input, err := g.distinct(ctx, CollectionInput)
	if err != nil {
		return Seed{}, wrap("mongo", "distinct input", err)
	}
	output, err := g.distinct(ctx, CollectionOutput)
	if err != nil {
		return Seed{}, wrap("mongo", "distinct output", err)
	}
	return Seed{Input: input, Output: output}, nil
}

// appendAll upserts every record under its output key as the document _id,
// so each record of a response is its own document.
func (g *MongoGateway) appendAll(ctx context.Context, name string, records []models.Record) error {
	keys := outputKeys(records, g.field)
	writes := make([]mongo.WriteModel, 0, len(records))
	for i, rec := range records {
		doc := make(bson.M, len(rec)+1)
		for k, v := range rec {
			doc[k] = v
		}
		doc["_id"] = keys[i]
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: keys[i]}}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := g.collection(name).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

// upsertAll writes records keyed by identifier; records without one are inserted.
func (g *MongoGateway) upsertAll(ctx context.Context, name string, records []models.Record) error {
	writes := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		doc := map[string]any(rec)
		id := rec.Identifier(g.field)
		if id == "" {
			writes = append(writes, mongo.NewInsertOneModel().SetDocument(doc))
			continue
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: g.field, Value: id}}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	_, err := g.collection(name).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

// AppendOutput implements Gateway.
func (g *MongoGateway) AppendOutput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	return wrap("mongo", "append output", g.appendAll(ctx, CollectionOutput, records))
}

// AppendError implements Gateway.
func (g *MongoGateway) AppendError(ctx context.Context, entry models.ErrorEntry) error {
	_, err := g.collection(CollectionError).InsertOne(ctx, entry)
	return wrap("mongo", "append error", err)
}

// AppendFatalError implements Gateway.
func (g *MongoGateway) AppendFatalError(ctx context.Context, entry models.ErrorEntry) error {
	_, err := g.collection(CollectionErrorFatal).InsertOne(ctx, entry)
	return wrap("mongo", "append fatal error", err)
}

// SetInput implements Gateway.
func (g *MongoGateway) SetInput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return ErrEmptySource
	}
	return wrap("mongo", "set input", g.upsertAll(ctx, CollectionInput, records))
}

// Close disconnects the client.
func (g *MongoGateway) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo disconnect: %w", err)
	}
	return nil
}
