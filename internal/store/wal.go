package store

import (
	"context"
	"sync"
	"time"

	"github.com/blockstack/gaia-gateway/internal/logger"
)

// walEntry is one pending asynchronous device-root write (spec §4.4.3:
// sync=0 callers get an immediate reply while the write is retried in the
// background).
type walEntry struct {
	ds   *Datastore
	id   string
	body []byte
}

// WAL is a small in-memory write-ahead queue for sync=0 device-root
// writes. It is not durable across process restarts — spec §5 forbids
// the gateway from keeping authoritative datastore state of its own, so
// a crash before a queued entry drains simply drops it, exactly as if
// the write had never been accepted by any driver.
type WAL struct {
	store *Store

	mu    sync.Mutex
	queue []walEntry
	cond  *sync.Cond

	once sync.Once
}

func newWAL(s *Store) *WAL {
	w := &WAL{store: s}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// enqueue schedules body to be written to ds.Drivers in the background,
// starting the drain worker on first use.
func (w *WAL) enqueue(ds *Datastore, id string, body []byte) {
	w.once.Do(func() { go w.drain() })

	w.mu.Lock()
	w.queue = append(w.queue, walEntry{ds: ds, id: id, body: body})
	w.mu.Unlock()
	w.cond.Signal()
}

// drain runs for the lifetime of the process, writing queued entries to
// their drivers with the store's configured retry budget. It never
// exits; the store's background goroutine is reaped when the process
// shuts down.
func (w *WAL) drain() {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 {
			w.cond.Wait()
		}
		entry := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, err := writeToDrivers(ctx, w.store.registry, entry.ds.Drivers, entry.id, entry.body, w.store.opts)
		cancel()
		if err != nil {
			logger.Warnf("async device root write failed for %s: %v", entry.id, err)
		}
	}
}

// Depth returns the number of entries currently queued, for diagnostics.
func (w *WAL) Depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}
