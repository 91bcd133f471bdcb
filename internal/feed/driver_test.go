package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"main/internal/book"
	"main/internal/model"
	"main/pkg/exception"
)

type scriptedSource struct {
	mu  sync.Mutex
	seq uint64
}

func (s *scriptedSource) Next(now time.Time) (model.MarketTick, []model.BookLevel, []model.BookLevel, []model.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	price := model.Price(100 * model.UnitMicros)
	return model.MarketTick{
		Seq:    s.seq,
		Symbol: "BTC/USDT",
		Price:  price,
		Bid:    price - 1,
		Ask:    price + 1,
		TsNano: now.UnixNano(),
	}, nil, nil, nil
}

func (s *scriptedSource) count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewDriverRejectsBadWiring(t *testing.T) {
	store, _ := book.New(4, 4)
	src := &scriptedSource{}

	if _, err := NewDriver(nil, store, time.Millisecond, nil); err != exception.ErrConfigInvalid {
		t.Fatalf("nil source: got %v", err)
	}
	if _, err := NewDriver(src, nil, time.Millisecond, nil); err != exception.ErrConfigInvalid {
		t.Fatalf("nil store: got %v", err)
	}
	if _, err := NewDriver(src, store, 0, nil); err != exception.ErrConfigInvalid {
		t.Fatalf("zero period: got %v", err)
	}
}

func TestDriverRunsHandlersInOrder(t *testing.T) {
	store, _ := book.New(4, 4)
	src := &scriptedSource{}

	var mu sync.Mutex
	var calls []string
	record := func(label string) Handler {
		return func(snap book.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, label)
		}
	}

	d, err := NewDriver(src, store, time.Millisecond, nil, record("engine"), record("ledger"), record("bus"))
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	waitFor(t, "three ticks", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) >= 9
	})

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i+2 < len(calls); i += 3 {
		if calls[i] != "engine" || calls[i+1] != "ledger" || calls[i+2] != "bus" {
			t.Fatalf("handler order broke at tick %d: %v", i/3, calls[i:i+3])
		}
	}
}

func TestDriverPublishesToStore(t *testing.T) {
	store, _ := book.New(4, 4)
	src := &scriptedSource{}

	d, _ := NewDriver(src, store, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	waitFor(t, "store snapshot", func() bool {
		return store.Snapshot().Tick.Seq > 0
	})
}

func TestDriverStopDrainsAndRestarts(t *testing.T) {
	store, _ := book.New(4, 4)
	src := &scriptedSource{}

	d, _ := NewDriver(src, store, time.Millisecond, nil)
	ctx := context.Background()

	d.Start(ctx)
	d.Start(ctx) // second start is a no-op
	waitFor(t, "first ticks", func() bool { return src.count() >= 3 })

	d.Stop()
	frozen := src.count()
	time.Sleep(20 * time.Millisecond)
	if src.count() != frozen {
		t.Fatalf("ticks continued after stop: %d then %d", frozen, src.count())
	}

	// last snapshot stays readable while stopped
	if store.Snapshot().Tick.Seq == 0 {
		t.Fatalf("stop cleared the last snapshot")
	}

	d.Start(ctx)
	waitFor(t, "ticks after restart", func() bool { return src.count() > frozen })
	d.Stop()
}
