//go:build integration

package publish

import (
	"context"
	"testing"

	"github.com/Sternrassler/rickmorty-client/internal/testutil"
	"github.com/Sternrassler/rickmorty-client/pkg/client"
	"github.com/Sternrassler/rickmorty-client/pkg/pagination"
	"github.com/Sternrassler/rickmorty-client/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		rdb.Close()
		redisContainer.Terminate(ctx)
	}

	return rdb, cleanup
}

func TestPublisher_Integration_FollowsController(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPI(testutil.Characters(30), 20)
	defer mock.Close()

	cfg := client.DefaultConfig()
	cfg.BaseURL = mock.CharacterURL()
	cfg.RateLimit = ratelimit.Config{}
	gw, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer gw.Close()

	ctx := context.Background()
	pub := NewRedisPublisher(rdb, DefaultConfig(), zerolog.Nop())
	ctrl := pagination.NewController(gw, pagination.WithLogger(zerolog.Nop()))
	ctrl.Subscribe(pub.Listener(ctx))

	if err := ctrl.LoadFirstPage(ctx); err != nil {
		t.Fatalf("LoadFirstPage failed: %v", err)
	}

	doc, err := pub.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Count != 20 || doc.Next != mock.PageURL(2) {
		t.Errorf("Unexpected first document: count=%d next=%q", doc.Count, doc.Next)
	}

	if err := ctrl.LoadNextPage(ctx); err != nil {
		t.Fatalf("LoadNextPage failed: %v", err)
	}

	doc, err = pub.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Count != 30 || doc.Next != "" {
		t.Errorf("Unexpected final document: count=%d next=%q", doc.Count, doc.Next)
	}
	if doc.Version != ctrl.Snapshot().Version {
		t.Errorf("Version = %d, want %d", doc.Version, ctrl.Snapshot().Version)
	}
}
