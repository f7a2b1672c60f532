package store

import (
	"log/slog"
	"sync"

	"campuschat/contract"
)

// watcher is one live subscription: a dedicated goroutine re-evaluates the
// snapshot on every kick and hands it to the callback. The kick channel
// has capacity one, so bursts of writes coalesce into a single recompute
// of the latest state, and callbacks for one watcher never overlap.
type watcher struct {
	kick     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func (w *watcher) poke() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *watcher) close() {
	w.stopOnce.Do(func() { close(w.stop) })
}

type watcherRegistry struct {
	mu         sync.Mutex
	log        *slog.Logger
	collection map[string][]*watcher // keyed by collection name
	ordered    map[string][]*watcher // keyed by collection:parent:sub
}

func newWatcherRegistry(log *slog.Logger) *watcherRegistry {
	return &watcherRegistry{
		log:        log,
		collection: make(map[string][]*watcher),
		ordered:    make(map[string][]*watcher),
	}
}

func (r *watcherRegistry) addCollection(collection string, fn func([]contract.Document), snapshot func() ([]contract.Document, error)) func() {
	return r.add(r.collection, collection, fn, snapshot)
}

func (r *watcherRegistry) addOrdered(collection, parentID, sub string, fn func([]contract.Document), snapshot func() ([]contract.Document, error)) func() {
	return r.add(r.ordered, orderedKey(collection, parentID, sub), fn, snapshot)
}

func (r *watcherRegistry) add(bucket map[string][]*watcher, key string, fn func([]contract.Document), snapshot func() ([]contract.Document, error)) func() {
	w := &watcher{
		kick: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}

	r.mu.Lock()
	bucket[key] = append(bucket[key], w)
	r.mu.Unlock()

	go r.run(w, fn, snapshot)
	w.poke() // initial snapshot, like a fresh listener attach

	return func() {
		r.mu.Lock()
		list := bucket[key]
		for i, cand := range list {
			if cand == w {
				bucket[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
		r.mu.Unlock()
		w.close()
	}
}

func (r *watcherRegistry) run(w *watcher, fn func([]contract.Document), snapshot func() ([]contract.Document, error)) {
	for {
		select {
		case <-w.stop:
			return
		case <-w.kick:
		}
		// Re-check after waking up: Unsubscribe must win a race with a
		// pending kick so no snapshot starts after teardown.
		select {
		case <-w.stop:
			return
		default:
		}
		docs, err := snapshot()
		if err != nil {
			r.log.Error("Snapshot evaluation failed", "error", err)
			continue
		}
		fn(docs)
	}
}

func (r *watcherRegistry) notifyCollection(collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.collection[collection] {
		w.poke()
	}
}

func (r *watcherRegistry) notifyOrdered(collection, parentID, sub string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.ordered[orderedKey(collection, parentID, sub)] {
		w.poke()
	}
}

func orderedKey(collection, parentID, sub string) string {
	return collection + ":" + parentID + ":" + sub
}
