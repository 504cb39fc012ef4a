// Package live keeps read projections of the store up to date by re-running
// them whenever a table they depend on changes.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kalambet/ambridge/internal/events"
)

// FetchFunc computes the current value of a projection.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Query is a live projection over one or more tables. All fetches run on the
// goroutine executing Run, so published values follow commit order: a
// subscriber may miss intermediate values but never sees an older value after
// a newer one.
type Query[T any] struct {
	name   string
	bus    *events.Bus
	tables []string
	fetch  FetchFunc[T]
	logger *slog.Logger

	mu     sync.Mutex
	value  T
	loaded bool
	subs   map[uuid.UUID]chan T
	ready  chan struct{}
}

// Option configures a Query or Hooks.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger that reports failed refetches.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewQuery creates a projection named name that refetches on changes to tables.
func NewQuery[T any](name string, bus *events.Bus, fetch FetchFunc[T], tables []string, opts ...Option) *Query[T] {
	o := buildOptions(opts)
	return &Query[T]{
		name:   name,
		bus:    bus,
		tables: tables,
		fetch:  fetch,
		logger: o.logger,
		subs:   make(map[uuid.UUID]chan T),
		ready:  make(chan struct{}),
	}
}

// Name returns the projection's name.
func (q *Query[T]) Name() string { return q.name }

// Current returns the latest value. loaded is false until the first fetch
// succeeds, which distinguishes "loading" from an empty result.
func (q *Query[T]) Current() (value T, loaded bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.value, q.loaded
}

// Wait blocks until the first value is available or ctx is done.
func (q *Query[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-q.ready:
		v, _ := q.Current()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Subscribe returns a channel that receives every new value. The channel holds
// only the newest undelivered value; if one is already loaded it is delivered
// immediately. Call cancel to stop receiving and close the channel.
func (q *Query[T]) Subscribe() (values <-chan T, cancel func()) {
	ch := make(chan T, 1)
	id := uuid.New()

	q.mu.Lock()
	q.subs[id] = ch
	if q.loaded {
		ch <- q.value
	}
	q.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subs, id)
			q.mu.Unlock()
			close(ch)
		})
	}
}

// Run fetches the initial value and then refetches after every relevant
// change until ctx is cancelled.
func (q *Query[T]) Run(ctx context.Context) error {
	sub := q.bus.Subscribe(q.tables...)
	defer sub.Unsubscribe()

	q.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C:
			if !ok {
				return nil
			}
			// Changes that piled up during the last fetch are answered by a
			// single refetch.
			drain(sub.C)
			q.refresh(ctx)
		}
	}
}

func drain(c <-chan events.Change) {
	for {
		select {
		case _, ok := <-c:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (q *Query[T]) refresh(ctx context.Context) {
	v, err := q.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			q.logger.Warn("live query refresh failed", "query", q.name, "error", err)
		}
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.value = v
	if !q.loaded {
		q.loaded = true
		close(q.ready)
	}
	for _, ch := range q.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
