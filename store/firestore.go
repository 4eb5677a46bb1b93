package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/aluiziolira/go-harvest/models"
)

// FirestoreGateway maps the four collections onto Firestore collections.
// Input documents get stable ids derived from their identifier, output
// documents from their output key.
type FirestoreGateway struct {
	client *firestore.Client
	field  string
}

// NewFirestoreGateway opens a client for projectID using application default
// credentials, or the emulator when FIRESTORE_EMULATOR_HOST is set.
func NewFirestoreGateway(ctx context.Context, projectID, field string) (*FirestoreGateway, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, wrap("firestore", "connect", err)
	}
	return &FirestoreGateway{client: client, field: field}, nil
}

// documentID maps an identifier to a valid, stable document id.
func documentID(identifier string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(identifier)).String()
}

func (g *FirestoreGateway) identifiers(ctx context.Context, name string) ([]string, error) {
	docs, err := g.client.Collection(name).Select(g.field).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if s, ok := doc.Data()[g.field].(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// Load implements Gateway.
func (g *FirestoreGateway) Load(ctx context.Context) (Seed, error) {
	input, err := g.identifiers(ctx, CollectionInput)
	if err != nil {
		return Seed{}, wrap("firestore", "load input", err)
	}
	if len(input) == 0 {
		return Seed{}, ErrInputNotSet
	}
	output, err := g.identifiers(ctx, CollectionOutput)
	if err != nil {
		return Seed{}, wrap("firestore", "load output", err)
	}
	return Seed{Input: dedupe(input), Output: dedupe(output)}, nil
}

// setAll writes records[i] to the document named by ids[i], or to a new
// document when ids[i] is empty.
func (g *FirestoreGateway) setAll(ctx context.Context, name string, records []models.Record, ids []string) error {
	coll := g.client.Collection(name)
	bw := g.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		ref := coll.NewDoc()
		if id := ids[i]; id != "" {
			// A bulk writer rejects two writes to one document.
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ref = coll.Doc(documentID(id))
		}
		job, err := bw.Set(ref, map[string]any(rec))
		if err != nil {
			bw.End()
			return err
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}
	}
	return nil
}

// AppendOutput implements Gateway.
func (g *FirestoreGateway) AppendOutput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	return wrap("firestore", "append output", g.setAll(ctx, CollectionOutput, records, outputKeys(records, g.field)))
}

// AppendError implements Gateway.
func (g *FirestoreGateway) AppendError(ctx context.Context, entry models.ErrorEntry) error {
	_, _, err := g.client.Collection(CollectionError).Add(ctx, entry)
	return wrap("firestore", "append error", err)
}

// AppendFatalError implements Gateway.
func (g *FirestoreGateway) AppendFatalError(ctx context.Context, entry models.ErrorEntry) error {
	_, _, err := g.client.Collection(CollectionErrorFatal).Add(ctx, entry)
	return wrap("firestore", "append fatal error", err)
}

// SetInput implements Gateway.
func (g *FirestoreGateway) SetInput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return ErrEmptySource
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.Identifier(g.field)
	}
	return wrap("firestore", "set input", g.setAll(ctx, CollectionInput, records, ids))
}

// Close releases the client.
func (g *FirestoreGateway) Close() error {
	return g.client.Close()
}
