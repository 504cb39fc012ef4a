// Package events delivers table-level change notifications from the store to
// its readers.
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Op identifies the kind of mutation that produced a Change.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
)

// Change describes a committed mutation of one table.
type Change struct {
	Table string
	Op    Op
	Keys  []string
}

// Subscription receives changes for the tables it was registered with.
// C is closed by Unsubscribe.
type Subscription struct {
	ID     uuid.UUID
	C      <-chan Change
	ch     chan Change
	tables map[string]bool
	bus    *Bus
}

// Unsubscribe detaches the subscription and closes C.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s)
}

// Bus fans out changes to subscribers keyed by table name.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription
	buffer int
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger that reports coalesced changes.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates a Bus whose subscriber channels hold up to buffer pending
// changes. A buffer below 1 is raised to 1.
func NewBus(buffer int, opts ...Option) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	b := &Bus{
		subs:   make(map[uuid.UUID]*Subscription),
		buffer: buffer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers interest in the given tables. With no tables the
// subscription receives every change.
func (b *Bus) Subscribe(tables ...string) *Subscription {
	ch := make(chan Change, b.buffer)
	sub := &Subscription{
		ID:     uuid.New(),
		C:      ch,
		ch:     ch,
		tables: make(map[string]bool, len(tables)),
		bus:    b,
	}
	for _, t := range tables {
		sub.tables[t] = true
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub
}

// Publish delivers c to every matching subscriber without blocking. When a
// subscriber's buffer is full the change is dropped for it; a change already
// pending in that buffer guarantees the subscriber will observe the table
// again after this commit.
func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if len(sub.tables) > 0 && !sub.tables[c.Table] {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			b.logger.Debug("change coalesced", "subscription", sub.ID, "table", c.Table)
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.ID]; !ok {
		return
	}
	delete(b.subs, s.ID)
	close(s.ch)
}
