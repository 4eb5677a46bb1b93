package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/aluiziolira/go-harvest/models"
	"github.com/aluiziolira/go-harvest/parser"
	"github.com/aluiziolira/go-harvest/pipeline"
	"github.com/aluiziolira/go-harvest/store"
)

// artistFetcher answers every target with a payload of perPage results.
func artistFetcher(perPage int) FetcherFunc {
	return func(_ context.Context, target string) (*models.Response, error) {
		results := make([]map[string]any, perPage)
		for i := range results {
			results[i] = map[string]any{"id": i + 1, "name": fmt.Sprintf("%s artist %d", target, i+1)}
		}
		body, err := json.Marshal(map[string]any{"results": results})
		if err != nil {
			return nil, err
		}
		return &models.Response{Target: target, StatusCode: 200, Body: body}, nil
	}
}

func TestRunPersistsEveryRecordOfAResponse(t *testing.T) {
	const perPage = 3
	ctx := context.Background()
	dir := t.TempDir()
	gw, err := store.NewFileGateway(dir, "url")
	if err != nil {
		t.Fatalf("NewFileGateway: %v", err)
	}
	input := []models.Record{{"url": "t1"}, {"url": "t2"}, {"url": "t3"}}
	if err := gw.SetInput(ctx, input); err != nil {
		t.Fatalf("SetInput: %v", err)
	}

	seed, err := gw.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pending, err := pipeline.Resolve(seed.Input, seed.Output)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	s := newTestScraper(t, testConfig(2), artistFetcher(perPage), parser.NewArtistExtractor(), gw)
	report, err := s.Run(ctx, pending)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := perPage * len(input)
	if report.RecordsWritten != want {
		t.Fatalf("RecordsWritten = %d, want %d", report.RecordsWritten, want)
	}

	data, err := os.ReadFile(gw.Path(store.CollectionOutput))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var output []models.Record
	if err := json.Unmarshal(data, &output); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(output) != want {
		t.Fatalf("persisted %d records, want %d", len(output), want)
	}
	perTarget := make(map[string]int)
	for _, rec := range output {
		perTarget[rec.Identifier("url")]++
	}
	for _, rec := range input {
		if n := perTarget[rec.Identifier("url")]; n != perPage {
			t.Fatalf("target %s has %d records, want %d", rec.Identifier("url"), n, perPage)
		}
	}

	// The next session finds nothing left to fetch.
	next, err := store.NewFileGateway(dir, "url")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	seed, err = next.Load(ctx)
	if err != nil {
		t.Fatalf("Load after run: %v", err)
	}
	pending, err = pipeline.Resolve(seed.Input, seed.Output)
	if err != nil {
		t.Fatalf("Resolve after run: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after run = %v, want none", pending)
	}
}
