//go:build integration

package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get %s endpoint: %v", req.Image, err)
	}
	return endpoint
}

func TestPostgresGateway_Integration(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "harvest",
			"POSTGRES_PASSWORD": "harvest",
			"POSTGRES_DB":       "harvest",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})

	dsn := fmt.Sprintf("postgres://harvest:harvest@%s/harvest?sslmode=disable", addr)
	g, err := NewPostgresGateway(context.Background(), dsn, "url")
	if err != nil {
		t.Fatalf("NewPostgresGateway: %v", err)
	}
	defer g.Close()

	testGatewayContract(t, g, func(t *testing.T) int {
		var n int
		if err := g.pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM harvest_output").Scan(&n); err != nil {
			t.Fatalf("count output: %v", err)
		}
		return n
	})
}

func TestMongoGateway_Integration(t *testing.T) {
	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	})

	g, err := NewMongoGateway(context.Background(), "mongodb://"+addr, "harvest_test", "url")
	if err != nil {
		t.Fatalf("NewMongoGateway: %v", err)
	}
	defer g.Close()

	testGatewayContract(t, g, func(t *testing.T) int {
		n, err := g.collection(CollectionOutput).CountDocuments(context.Background(), bson.D{})
		if err != nil {
			t.Fatalf("count output: %v", err)
		}
		return int(n)
	})
}

func TestFirestoreGateway_Integration(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	g, err := NewFirestoreGateway(context.Background(), "harvest-test", "url")
	if err != nil {
		t.Fatalf("NewFirestoreGateway: %v", err)
	}
	defer g.Close()

	testGatewayContract(t, g, func(t *testing.T) int {
		docs, err := g.client.Collection(CollectionOutput).Documents(context.Background()).GetAll()
		if err != nil {
			t.Fatalf("list output: %v", err)
		}
		return len(docs)
	})
}
