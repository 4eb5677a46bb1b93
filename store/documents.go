package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-harvest/models"
)

// blobStore reads and replaces whole named documents.
type blobStore interface {
	// Get returns ok=false when the document does not exist.
	Get(ctx context.Context, name string) (data []byte, ok bool, err error)
	Put(ctx context.Context, name string, data []byte) error
}

// documentGateway keeps each collection as one JSON array document, rewritten
// in full on every append.
type documentGateway struct {
	backend string
	blobs   blobStore
	field   string

	mu        sync.Mutex
	output     []models.Record
	outputKeys map[string]struct{}
	outLoaded  bool
	logs      map[string][]models.ErrorEntry
}

func newDocumentGateway(backend string, blobs blobStore, field string) *documentGateway {
	return &documentGateway{
		backend: backend,
		blobs:   blobs,
		field:   field,
		logs:    make(map[string][]models.ErrorEntry),
	}
}

func documentName(collection string) string {
	return collection + ".json"
}

func (g *documentGateway) readRecords(ctx context.Context, collection string) ([]models.Record, bool, error) {
	data, ok, err := g.blobs.Get(ctx, documentName(collection))
	if err != nil || !ok {
		return nil, ok, err
	}
	var records []models.Record
	if len(data) == 0 {
		return nil, true, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w", documentName(collection), err)
	}
	return records, true, nil
}

func (g *documentGateway) write(ctx context.Context, collection string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", documentName(collection), err)
	}
	return g.blobs.Put(ctx, documentName(collection), data)
}

func (g *documentGateway) ids(records []models.Record) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Identifier(g.field))
	}
	return dedupe(ids)
}

// loadOutputLocked reads output once, creating an empty document when missing.
func (g *documentGateway) loadOutputLocked(ctx context.Context) error {
	if g.outLoaded {
		return nil
	}
	records, ok, err := g.readRecords(ctx, CollectionOutput)
	if err != nil {
		return err
	}
	if !ok {
		if err := g.write(ctx, CollectionOutput, []models.Record{}); err != nil {
			return err
		}
	}
	g.output = records
	g.outputKeys = make(map[string]struct{}, len(records))
	for _, key := range outputKeys(records, g.field) {
		g.outputKeys[key] = struct{}{}
	}
	g.outLoaded = true
	return nil
}

func (g *documentGateway) loadLogLocked(ctx context.Context, collection string) ([]models.ErrorEntry, error) {
	if entries, ok := g.logs[collection]; ok {
		return entries, nil
	}
	data, ok, err := g.blobs.Get(ctx, documentName(collection))
	if err != nil {
		return nil, err
	}
	entries := []models.ErrorEntry{}
	if !ok {
		if err := g.write(ctx, collection, entries); err != nil {
			return nil, err
		}
	} else if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode %s: %w", documentName(collection), err)
		}
	}
	g.logs[collection] = entries
	return entries, nil
}

func (g *documentGateway) Load(ctx context.Context) (Seed, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	input, ok, err := g.readRecords(ctx, CollectionInput)
	if err != nil {
		return Seed{}, wrap(g.backend, "load input", err)
	}
	if !ok || len(input) == 0 {
		return Seed{}, ErrInputNotSet
	}
	if err := g.loadOutputLocked(ctx); err != nil {
		return Seed{}, wrap(g.backend, "load output", err)
	}
	for _, collection := range []string{CollectionError, CollectionErrorFatal} {
		if _, err := g.loadLogLocked(ctx, collection); err != nil {
			return Seed{}, wrap(g.backend, "load "+collection, err)
		}
	}
	return Seed{Input: g.ids(input), Output: g.ids(g.output)}, nil
}

// AppendOutput appends every record of the batch. Records already stored
// under the same output key are skipped.
func (g *documentGateway) AppendOutput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.loadOutputLocked(ctx); err != nil {
		return wrap(g.backend, "append output", err)
	}
	next := append([]models.Record(nil), g.output...)
	keys := outputKeys(records, g.field)
	added := make([]string, 0, len(records))
	for i, rec := range records {
		if _, dup := g.outputKeys[keys[i]]; dup {
			continue
		}
		next = append(next, rec)
		added = append(added, keys[i])
	}
	if len(added) == 0 {
		return nil
	}
	if err := g.write(ctx, CollectionOutput, next); err != nil {
		return wrap(g.backend, "append output", err)
	}
	g.output = next
	for _, key := range added {
		g.outputKeys[key] = struct{}{}
	}
	return nil
}

func (g *documentGateway) appendLog(ctx context.Context, collection string, entry models.ErrorEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := g.loadLogLocked(ctx, collection)
	if err != nil {
		return wrap(g.backend, "append "+collection, err)
	}
	next := append(append([]models.ErrorEntry(nil), entries...), entry)
	if err := g.write(ctx, collection, next); err != nil {
		return wrap(g.backend, "append "+collection, err)
	}
	g.logs[collection] = next
	return nil
}

func (g *documentGateway) AppendError(ctx context.Context, entry models.ErrorEntry) error {
	return g.appendLog(ctx, CollectionError, entry)
}

func (g *documentGateway) AppendFatalError(ctx context.Context, entry models.ErrorEntry) error {
	return g.appendLog(ctx, CollectionErrorFatal, entry)
}

// SetInput merges records into the input document by identifier.
func (g *documentGateway) SetInput(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return ErrEmptySource
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, _, err := g.readRecords(ctx, CollectionInput)
	if err != nil {
		return wrap(g.backend, "set input", err)
	}
	index := make(map[string]int, len(existing))
	for i, rec := range existing {
		if id := rec.Identifier(g.field); id != "" {
			index[id] = i
		}
	}
	merged := append([]models.Record(nil), existing...)
	for _, rec := range records {
		id := rec.Identifier(g.field)
		if i, ok := index[id]; ok && id != "" {
			merged[i] = rec
			continue
		}
		if id != "" {
			index[id] = len(merged)
		}
		merged = append(merged, rec)
	}
	if err := g.write(ctx, CollectionInput, merged); err != nil {
		return wrap(g.backend, "set input", err)
	}
	return nil
}

func (g *documentGateway) Close() error {
	return nil
}
