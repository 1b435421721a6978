package recommend

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reelfeed/reelfeed/internal/model"
)

// memStore is an in-memory storage.Storage for engine and dismissal tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) SizeBytes(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, v := range m.data {
		n += int64(len(k) + len(v))
	}
	return n, nil
}

func (m *memStore) Close() error { return nil }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDismissals(ttl time.Duration) (*DismissalStore, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	return NewDismissalStore(newMemStore(), ttl, nil, clk.Now), clk
}

func TestDismissIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d, clk := newTestDismissals(time.Hour)

	if err := d.Dismiss(ctx, model.MediaMovie, 603); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	first := d.load(ctx).Items[0].DismissedAt

	clk.Advance(10 * time.Minute)
	if err := d.Dismiss(ctx, model.MediaMovie, 603); err != nil {
		t.Fatalf("re-dismiss: %v", err)
	}

	items := d.load(ctx).Items
	if len(items) != 1 {
		t.Fatalf("expected 1 dismissal, got %d", len(items))
	}
	if !items[0].DismissedAt.Equal(first) {
		t.Error("re-dismissing must keep the original timestamp")
	}
}

func TestDismissalExpires(t *testing.T) {
	ctx := context.Background()
	d, clk := newTestDismissals(time.Hour)

	d.Dismiss(ctx, model.MediaTV, 1396)
	if !d.IsDismissed(ctx, model.MediaTV, 1396) {
		t.Fatal("fresh dismissal should be active")
	}

	clk.Advance(time.Hour + time.Millisecond)
	if d.IsDismissed(ctx, model.MediaTV, 1396) {
		t.Error("dismissal past its TTL should not be active")
	}
}

func TestActiveSetFiltersExpired(t *testing.T) {
	ctx := context.Background()
	d, clk := newTestDismissals(time.Hour)

	d.Dismiss(ctx, model.MediaMovie, 1)
	clk.Advance(2 * time.Hour)
	d.Dismiss(ctx, model.MediaMovie, 2)

	active := d.ActiveSet(ctx)
	if active["movie-1"] {
		t.Error("expired dismissal leaked into the active set")
	}
	if !active["movie-2"] {
		t.Error("live dismissal missing from the active set")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	d, clk := newTestDismissals(time.Hour)

	d.Dismiss(ctx, model.MediaMovie, 1)
	d.Dismiss(ctx, model.MediaMovie, 2)
	clk.Advance(2 * time.Hour)
	d.Dismiss(ctx, model.MediaMovie, 3)

	if removed := d.Sweep(ctx); removed != 2 {
		t.Errorf("expected 2 swept, got %d", removed)
	}
	if removed := d.Sweep(ctx); removed != 0 {
		t.Errorf("second sweep should remove nothing, got %d", removed)
	}

	items := d.load(ctx).Items
	if len(items) != 1 || items[0].ExternalID != 3 {
		t.Errorf("only the live dismissal should remain, got %v", items)
	}
}

func TestCorruptDismissalListResets(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	clk := &fakeClock{t: time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)}
	d := NewDismissalStore(st, time.Hour, nil, clk.Now)

	st.Set(ctx, dismissalsKey, []byte("not json"))
	if d.IsDismissed(ctx, model.MediaMovie, 603) {
		t.Error("corrupt list should read as empty")
	}
	if _, ok, _ := st.Get(ctx, dismissalsKey); ok {
		t.Error("corrupt list should be removed from storage")
	}
}
