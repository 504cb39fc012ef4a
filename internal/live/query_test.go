package live

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/ambridge/internal/events"
	"github.com/kalambet/ambridge/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// start runs q in the background and stops it when the test ends.
func start[T any](t *testing.T, q *Query[T]) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor[T any](t *testing.T, values <-chan T, match func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-values:
			if match(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for value")
		}
	}
}

func TestQueryLoadingDistinctFromEmpty(t *testing.T) {
	bus := events.NewBus(4)
	release := make(chan struct{})
	q := NewQuery("ids", bus, func(ctx context.Context) ([]string, error) {
		<-release
		return []string{}, nil
	}, []string{"t"})
	start(t, q)

	if _, loaded := q.Current(); loaded {
		t.Fatal("Current reported loaded before the first fetch finished")
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := q.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v == nil || len(v) != 0 {
		t.Errorf("value = %#v, want empty slice", v)
	}
	if _, loaded := q.Current(); !loaded {
		t.Error("Current not loaded after Wait")
	}
}

func TestQueryKeepsLastValueOnError(t *testing.T) {
	bus := events.NewBus(4)
	var calls atomic.Int32
	q := NewQuery("n", bus, func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 7, nil
		}
		return 0, errors.New("boom")
	}, []string{"t"})
	start(t, q)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	bus.Publish(events.Change{Table: "t", Op: events.OpPut})
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 2 {
		t.Fatal("query did not refetch after change")
	}

	if v, _ := q.Current(); v != 7 {
		t.Errorf("Current = %d, want last good value 7", v)
	}
}

func TestQueryIgnoresOtherTables(t *testing.T) {
	bus := events.NewBus(4)
	var calls atomic.Int32
	q := NewQuery("n", bus, func(ctx context.Context) (int32, error) {
		return calls.Add(1), nil
	}, []string{"watched"})
	start(t, q)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Wait(ctx)

	bus.Publish(events.Change{Table: "other", Op: events.OpPut})
	time.Sleep(50 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}
}

// TestQueryNeverReorders writes an increasing counter and checks that every
// subscriber observes a strictly increasing sequence ending at the last write.
func TestQueryNeverReorders(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	q := NewQuery("counter", s.Bus(), func(ctx context.Context) (int, error) {
		e, ok, err := s.Config().Get(ctx, "counter")
		if err != nil || !ok {
			return 0, err
		}
		return strconv.Atoi(string(e.Value))
	}, []string{storage.TableConfig})
	values, cancel := q.Subscribe()
	defer cancel()
	start(t, q)

	const n = 100
	for i := 1; i <= n; i++ {
		if err := s.Config().Put(ctx, storage.ConfigEntry{Key: "counter", Value: []byte(strconv.Itoa(i))}); err != nil {
			t.Fatalf("Put(%d): %v", i, err)
		}
	}

	last := -1
	deadline := time.After(3 * time.Second)
	for last != n {
		select {
		case v := <-values:
			if v < last {
				t.Fatalf("observed %d after %d", v, last)
			}
			last = v
		case <-deadline:
			t.Fatalf("last observed value = %d, want %d", last, n)
		}
	}
}

func TestSubscribeDeliversCurrentValue(t *testing.T) {
	bus := events.NewBus(4)
	q := NewQuery("s", bus, func(ctx context.Context) (string, error) { return "hello", nil }, []string{"t"})
	start(t, q)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Wait(ctx)

	values, stop := q.Subscribe()
	select {
	case v := <-values:
		if v != "hello" {
			t.Errorf("first value = %q, want %q", v, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("no value delivered on subscribe")
	}

	stop()
	stop()
	if _, ok := <-values; ok {
		t.Error("channel still open after cancel")
	}
}

func TestWithLoggerReportsFailedRefetch(t *testing.T) {
	var logs syncBuffer
	bus := events.NewBus(4)
	var calls atomic.Int32
	q := NewQuery("n", bus, func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 1, nil
		}
		return 0, errors.New("disk gone")
	}, []string{"t"}, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	start(t, q)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := q.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	bus.Publish(events.Change{Table: "t", Op: events.OpPut})
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(logs.String(), "disk gone") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !strings.Contains(logs.String(), "live query refresh failed") {
		t.Errorf("logs = %q, want a refresh failure", logs.String())
	}
}

// syncBuffer is a bytes.Buffer safe for a logger writing from another goroutine.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
