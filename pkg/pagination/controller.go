package pagination

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/rickmorty-client/pkg/client"
	"github.com/Sternrassler/rickmorty-client/pkg/logging"
	"github.com/Sternrassler/rickmorty-client/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for pagination.
var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rickmorty_pagination_loads_total",
		Help: "Page loads by operation and result (success, error, noop, stale)",
	}, []string{"op", "result"})

	charactersLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rickmorty_pagination_characters",
		Help: "Number of characters accumulated by the most recently updated controller",
	})
)

const (
	opFirst = "first"
	opNext  = "next"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger failures are reported to.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

type subscription struct {
	id       uint64
	listener Listener
}

// Controller accumulates pages fetched through a client.Gateway.
type Controller struct {
	gateway client.Gateway
	logger  zerolog.Logger
	group   singleflight.Group

	flightMu sync.Mutex
	flights  map[string]*flight

	mu         sync.Mutex
	characters []model.Character
	nextURL    string
	generation uint64
	version    uint64

	subMu      sync.Mutex
	subs       []subscription
	nextSubID  uint64
	queued     uint64
	pending    *Snapshot
	delivering bool
}

// flight is the fetch context shared by every caller waiting on one key. It is
// cancelled when the last of them gives up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewController creates a Controller with an empty list and no cursor.
func NewController(gateway client.Gateway, opts ...Option) *Controller {
	c := &Controller{
		gateway:    gateway,
		logger:     logging.NewLogger(logging.ComponentPagination),
		flights:    make(map[string]*flight),
		characters: []model.Character{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadFirstPage fetches the default endpoint and replaces the list and cursor
// with the result. On failure the state is unchanged.
func (c *Controller) LoadFirstPage(ctx context.Context) error {
	err := c.load(ctx, opFirst, func(fctx context.Context) (Snapshot, bool, error) {
		page, err := client.Fetch[model.Page](fctx, c.gateway, "")
		if err != nil {
			c.report(opFirst, "", err)
			return Snapshot{}, false, err
		}
		return c.replacePage(page), true, nil
	})
	if err != nil {
		return fmt.Errorf("load first page: %w", err)
	}
	return nil
}

// LoadNextPage fetches the stored cursor and appends the result. Without a
// cursor it returns nil immediately and makes no request. On failure the state
// is unchanged and the call can simply be repeated.
func (c *Controller) LoadNextPage(ctx context.Context) error {
	c.mu.Lock()
	cursor, gen := c.nextURL, c.generation
	c.mu.Unlock()

	if cursor == "" {
		loadsTotal.WithLabelValues(opNext, "noop").Inc()
		return nil
	}

	key := fmt.Sprintf("%s:%d:%s", opNext, gen, cursor)
	err := c.load(ctx, key, func(fctx context.Context) (Snapshot, bool, error) {
		page, err := client.Fetch[model.Page](fctx, c.gateway, cursor)
		if err != nil {
			c.report(opNext, cursor, err)
			return Snapshot{}, false, err
		}
		snap, ok := c.appendPage(gen, cursor, page)
		return snap, ok, nil
	})
	if err != nil {
		return fmt.Errorf("load next page: %w", err)
	}
	return nil
}

// load runs apply once for all concurrent callers of key and waits for it or
// for ctx, whichever ends first. The fetch itself is only cancelled once every
// waiting caller has gone. Listeners are notified after the key is released,
// so they may start a load with the same key.
func (c *Controller) load(ctx context.Context, key string, apply func(context.Context) (Snapshot, bool, error)) error {
	f := c.join(ctx, key)
	defer c.leave(key, f)

	ch := c.group.DoChan(key, func() (any, error) {
		snap, changed, err := apply(f.ctx)
		if err != nil {
			return nil, err
		}
		c.group.Forget(key)
		if changed {
			c.publish(snap)
		}
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) join(ctx context.Context, key string) *flight {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

func (c *Controller) leave(key string, f *flight) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	// An abandoned fetch may still be running; later callers start afresh.
	c.group.Forget(key)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Character looks up an accumulated character by id.
func (c *Controller) Character(id int) (model.Character, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.characters {
		if ch.ID == id {
			return ch, true
		}
	}
	return model.Character{}, false
}

// Subscribe registers l for state changes and returns a function that removes it.
// Listeners run in subscription order after the mutation is complete.
func (c *Controller) Subscribe(l Listener) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subs = append(c.subs, subscription{id: id, listener: l})
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Controller) replacePage(page model.Page) Snapshot {
	results := page.Characters()

	c.mu.Lock()
	c.generation++
	c.characters = append(make([]model.Character, 0, len(results)), results...)
	c.nextURL = page.NextURL()
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	loadsTotal.WithLabelValues(opFirst, "success").Inc()
	charactersLoaded.Set(float64(snap.Len()))
	c.logger.Info().
		Int("count", snap.Len()).
		Str("next", snap.NextURL).
		Msg("First page loaded")

	return snap
}

func (c *Controller) appendPage(gen uint64, cursor string, page model.Page) (Snapshot, bool) {
	c.mu.Lock()
	if c.generation != gen || c.nextURL != cursor {
		c.mu.Unlock()
		loadsTotal.WithLabelValues(opNext, "stale").Inc()
		c.logger.Debug().
			Str("url", cursor).
			Msg("Discarding stale page result")
		return Snapshot{}, false
	}
	c.characters = append(c.characters, page.Characters()...)
	c.nextURL = page.NextURL()
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()

	loadsTotal.WithLabelValues(opNext, "success").Inc()
	charactersLoaded.Set(float64(snap.Len()))

	event := c.logger.Debug()
	if !snap.HasNext() {
		event = c.logger.Info()
	}
	event.
		Int("count", snap.Len()).
		Str("next", snap.NextURL).
		Msg("Next page loaded")

	return snap, true
}

// snapshotLocked must be called with c.mu held.
func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Characters: append(make([]model.Character, 0, len(c.characters)), c.characters...),
		NextURL:    c.nextURL,
		Version:    c.version,
	}
}

// publish hands snap to every listener unless a newer state was already
// queued. Only one goroutine delivers at a time; a snapshot published while
// listeners are running, including from inside a listener, is delivered after
// the current round, so callbacks never nest and versions never go backwards.
// No controller lock is held while a listener runs.
func (c *Controller) publish(snap Snapshot) {
	c.subMu.Lock()
	if snap.Version <= c.queued {
		c.subMu.Unlock()
		return
	}
	c.queued = snap.Version
	c.pending = &snap
	if c.delivering {
		c.subMu.Unlock()
		return
	}
	c.delivering = true

	for c.pending != nil {
		next := *c.pending
		c.pending = nil
		subs := c.subs
		c.subMu.Unlock()

		for _, s := range subs {
			s.listener(next)
		}

		c.subMu.Lock()
	}
	c.delivering = false
	c.subMu.Unlock()
}

func (c *Controller) report(op, url string, err error) {
	loadsTotal.WithLabelValues(op, "error").Inc()
	c.logger.Error().
		Err(err).
		Str("op", op).
		Str("url", url).
		Str("kind", string(client.KindOf(err))).
		Msg("Page load failed")
}
