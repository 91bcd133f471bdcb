package feed

import (
	"context"
	"sync"
	"time"

	"main/internal/book"
	"main/internal/model"
	"main/internal/obs"
	"main/pkg/exception"

	"github.com/yanun0323/pkg/sys"
)

// Source produces the next market tick. Called from the driver
// goroutine only.
type Source interface {
	Next(now time.Time) (model.MarketTick, []model.BookLevel, []model.BookLevel, []model.Trade)
}

// Handler consumes each published snapshot. Handlers run in
// registration order inside the tick, so downstream consumers always
// see the book state the engine just evaluated.
type Handler func(book.Snapshot)

// Driver pulls one tick per period from the source, swaps the book and
// fans the snapshot out to handlers.
type Driver struct {
	source   Source
	store    *book.Store
	period   time.Duration
	metrics  *obs.Metrics
	handlers []Handler

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewDriver wires a source into the store and handler chain.
func NewDriver(source Source, store *book.Store, period time.Duration, metrics *obs.Metrics, handlers ...Handler) (*Driver, error) {
	if source == nil || store == nil || period <= 0 {
		return nil, exception.ErrConfigInvalid
	}
	return &Driver{
		source:   source,
		store:    store,
		period:   period,
		metrics:  metrics,
		handlers: handlers,
	}, nil
}

// Start launches the tick loop. Calling Start on a running driver is a
// no-op; a stopped driver can be started again.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stop != nil {
		return
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(ctx, d.stop, d.done)
}

// Stop halts the loop and waits for any in-flight tick to finish. The
// last published snapshot stays readable from the store.
func (d *Driver) Stop() {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (d *Driver) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case <-stop:
			return
		case now := <-ticker.C:
			d.step(now)
		}
	}
}

func (d *Driver) step(now time.Time) {
	tick, bids, asks, trades := d.source.Next(now)
	snap := d.store.Apply(tick, bids, asks, trades)

	started := time.Now()
	for _, handler := range d.handlers {
		handler(snap)
	}
	d.metrics.IncTick()
	d.metrics.ObserveTick(time.Since(started))
}
