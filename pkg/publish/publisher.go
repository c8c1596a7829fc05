// Package publish mirrors pagination snapshots to Redis so consumers outside
// the process can read the current list and subscribe to change events.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/rickmorty-client/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoSnapshot indicates nothing has been published under the key prefix yet.
var ErrNoSnapshot = errors.New("no snapshot published")

var publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rickmorty_publish_total",
	Help: "Snapshot publications to Redis by result",
}, []string{"result"})

// Config holds publisher configuration.
type Config struct {
	// KeyPrefix namespaces the snapshot key and change channel.
	KeyPrefix string

	// TTL of the snapshot key. Zero keeps it until overwritten.
	TTL time.Duration
}

// DefaultConfig returns the default publisher configuration.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "rickmorty",
	}
}

// Entry is the summary of one character inside a published document.
type Entry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Document is the JSON value stored under the snapshot key.
type Document struct {
	Count       int       `json:"count"`
	Next        string    `json:"next,omitempty"`
	Version     uint64    `json:"version"`
	Characters  []Entry   `json:"characters"`
	PublishedAt time.Time `json:"published_at"`
}

// Event is the JSON message sent on the change channel.
type Event struct {
	Count   int    `json:"count"`
	Next    string `json:"next,omitempty"`
	Version uint64 `json:"version"`
}

// RedisPublisher writes snapshots to Redis.
type RedisPublisher struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// NewRedisPublisher creates a publisher. It panics if redisClient is nil.
func NewRedisPublisher(redisClient *redis.Client, cfg Config, logger zerolog.Logger) *RedisPublisher {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &RedisPublisher{
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}
}

// SnapshotKey is the key holding the latest Document.
func (p *RedisPublisher) SnapshotKey() string {
	return p.config.KeyPrefix + ":snapshot"
}

// Channel is the pub/sub channel change events are sent on.
func (p *RedisPublisher) Channel() string {
	return p.config.KeyPrefix + ":changes"
}

// Publish stores snap and announces the change in one transaction.
func (p *RedisPublisher) Publish(ctx context.Context, snap pagination.Snapshot) error {
	doc := NewDocument(snap, time.Now())

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	event, err := json.Marshal(Event{Count: doc.Count, Next: doc.Next, Version: doc.Version})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pipe := p.redis.TxPipeline()
	pipe.Set(ctx, p.SnapshotKey(), data, p.config.TTL)
	pipe.Publish(ctx, p.Channel(), event)
	if _, err := pipe.Exec(ctx); err != nil {
		publishTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("publish snapshot to redis: %w", err)
	}

	publishTotal.WithLabelValues("success").Inc()
	p.logger.Debug().
		Str("key", p.SnapshotKey()).
		Int("count", doc.Count).
		Uint64("version", doc.Version).
		Msg("Snapshot published")

	return nil
}

// Load reads the latest published Document.
func (p *RedisPublisher) Load(ctx context.Context) (*Document, error) {
	data, err := p.redis.Get(ctx, p.SnapshotKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &doc, nil
}

// Listener adapts the publisher to pagination.Controller.Subscribe.
// Publish failures are logged and never reach the controller.
func (p *RedisPublisher) Listener(ctx context.Context) pagination.Listener {
	return func(snap pagination.Snapshot) {
		if err := p.Publish(ctx, snap); err != nil {
			p.logger.Warn().Err(err).Uint64("version", snap.Version).Msg("Failed to publish snapshot")
		}
	}
}

// NewDocument summarizes snap as it is stored in Redis.
func NewDocument(snap pagination.Snapshot, at time.Time) Document {
	entries := make([]Entry, len(snap.Characters))
	for i, ch := range snap.Characters {
		entries[i] = Entry{ID: ch.ID, Name: ch.Name}
	}
	return Document{
		Count:       snap.Len(),
		Next:        snap.NextURL,
		Version:     snap.Version,
		Characters:  entries,
		PublishedAt: at.UTC(),
	}
}
