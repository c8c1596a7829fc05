package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Sternrassler/rickmorty-client/internal/testutil"
	"github.com/Sternrassler/rickmorty-client/pkg/model"
	"github.com/Sternrassler/rickmorty-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis connects to a local Redis and skips when none is running.
// The integration tests use testcontainers-go instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisPublisher_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisPublisher should panic with nil redis client")
		}
	}()
	NewRedisPublisher(nil, DefaultConfig(), zerolog.Nop())
}

func TestNewRedisPublisher_Keys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	tests := []struct {
		name        string
		prefix      string
		wantKey     string
		wantChannel string
	}{
		{"default prefix", "", "rickmorty:snapshot", "rickmorty:changes"},
		{"custom prefix", "app:list", "app:list:snapshot", "app:list:changes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewRedisPublisher(client, Config{KeyPrefix: tt.prefix}, zerolog.Nop())
			if p.SnapshotKey() != tt.wantKey {
				t.Errorf("SnapshotKey() = %q, want %q", p.SnapshotKey(), tt.wantKey)
			}
			if p.Channel() != tt.wantChannel {
				t.Errorf("Channel() = %q, want %q", p.Channel(), tt.wantChannel)
			}
		})
	}
}

func TestNewDocument(t *testing.T) {
	at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	snap := pagination.Snapshot{
		Characters: []model.Character{testutil.Rick(), testutil.Morty()},
		NextURL:    "https://rickandmortyapi.com/api/character?page=2",
		Version:    3,
	}

	doc := NewDocument(snap, at)

	if doc.Count != 2 {
		t.Errorf("Count = %d, want 2", doc.Count)
	}
	if doc.Next != snap.NextURL {
		t.Errorf("Next = %q, want %q", doc.Next, snap.NextURL)
	}
	if doc.Version != 3 {
		t.Errorf("Version = %d, want 3", doc.Version)
	}
	if len(doc.Characters) != 2 || doc.Characters[1] != (Entry{ID: 2, Name: "Morty Smith"}) {
		t.Errorf("Unexpected entries: %+v", doc.Characters)
	}
	if doc.PublishedAt.Location() != time.UTC {
		t.Errorf("PublishedAt should be UTC, got %v", doc.PublishedAt.Location())
	}
}

func TestNewDocument_EmptySnapshot(t *testing.T) {
	doc := NewDocument(pagination.Snapshot{}, time.Now())

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := decoded["next"]; ok {
		t.Error("Expected next to be omitted on the last page")
	}
	if chars, ok := decoded["characters"].([]any); !ok || len(chars) != 0 {
		t.Errorf("Expected empty characters array, got %v", decoded["characters"])
	}
}

func TestRedisPublisher_PublishAndLoad(t *testing.T) {
	client := setupTestRedis(t)
	p := NewRedisPublisher(client, DefaultConfig(), zerolog.Nop())
	ctx := context.Background()

	if _, err := p.Load(ctx); err != ErrNoSnapshot {
		t.Fatalf("Expected ErrNoSnapshot before publishing, got %v", err)
	}

	sub := client.Subscribe(ctx, p.Channel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	snap := pagination.Snapshot{
		Characters: []model.Character{testutil.Rick()},
		NextURL:    "https://rickandmortyapi.com/api/character?page=2",
		Version:    1,
	}
	if err := p.Publish(ctx, snap); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	doc, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if doc.Count != 1 || doc.Characters[0].Name != "Rick Sanchez" {
		t.Errorf("Unexpected document: %+v", doc)
	}

	select {
	case msg := <-sub.Channel():
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("Decode event failed: %v", err)
		}
		if event.Count != 1 || event.Version != 1 {
			t.Errorf("Unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected change event")
	}
}

func TestRedisPublisher_TTL(t *testing.T) {
	client := setupTestRedis(t)
	p := NewRedisPublisher(client, Config{KeyPrefix: "ttl-test", TTL: time.Minute}, zerolog.Nop())
	ctx := context.Background()

	if err := p.Publish(ctx, pagination.Snapshot{Version: 1}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	ttl, err := client.TTL(ctx, p.SnapshotKey()).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
}

func TestRedisPublisher_ListenerSwallowsErrors(t *testing.T) {
	// Nothing listens on this port; Publish fails and the listener must not panic.
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	p := NewRedisPublisher(client, DefaultConfig(), zerolog.Nop())
	listener := p.Listener(context.Background())
	listener(pagination.Snapshot{Version: 1})
}
