package directory

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"campuschat/domain"
	"campuschat/errors"
	"campuschat/store"
)

type profileStub struct {
	profiles map[string]domain.Profile
}

func (s profileStub) Get(_ context.Context, uid string) (domain.Profile, error) {
	p, ok := s.profiles[uid]
	if !ok {
		return domain.Profile{}, errors.ErrNotFound
	}
	return p, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return store.New(db, slog.Default())
}

type snapshotSink struct {
	mu     sync.Mutex
	latest *Snapshot
}

func (s *snapshotSink) push(snap Snapshot) {
	s.mu.Lock()
	s.latest = &snap
	s.mu.Unlock()
}

func (s *snapshotSink) get() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Snapshot{}, false
	}
	return *s.latest, true
}

func seedRoom(t *testing.T, docs *store.Store, id string, fields map[string]any) {
	t.Helper()
	require.NoError(t, docs.Set(context.Background(), store.Rooms, id, fields, false))
}

func TestDirectory_Partition(t *testing.T) {
	req := require.New(t)
	docs := openTestStore(t)

	seedRoom(t, docs, "alice_bob", map[string]any{
		"type": "direct", "participants": []string{"alice", "bob"},
	})
	seedRoom(t, docs, "g-live", map[string]any{
		"type": "group", "participants": []string{"alice", "carol"},
		"name":      "Study group",
		"expiresAt": store.Millis(time.Now().Add(time.Hour)),
	})
	seedRoom(t, docs, "g-dead", map[string]any{
		"type": "group", "participants": []string{"alice"},
		"name":      "Yesterday's party",
		"expiresAt": store.Millis(time.Now().Add(-time.Hour)),
	})
	// Not alice's room at all.
	seedRoom(t, docs, "bob_carol", map[string]any{
		"type": "direct", "participants": []string{"bob", "carol"},
	})

	dir := New(docs, profileStub{profiles: map[string]domain.Profile{
		"bob": {UID: "bob", Name: "Bob", PhotoURL: "https://cdn.test/bob.png"},
	}}, slog.Default())
	defer dir.Stop()

	var sink snapshotSink
	dir.Start("alice", sink.push)

	req.Eventually(func() bool {
		snap, ok := sink.get()
		return ok && len(snap.Contacts) == 1 && len(snap.Channels) == 1
	}, 2*time.Second, 10*time.Millisecond)

	snap, _ := sink.get()
	req.Equal("alice_bob", snap.Contacts[0].RoomID)
	req.Equal("Bob", snap.Contacts[0].Name)
	req.Equal("https://cdn.test/bob.png", snap.Contacts[0].PhotoURL)
	req.Equal("Start a conversation", snap.Contacts[0].LastMsg)

	req.Equal("g-live", snap.Channels[0].RoomID)
	req.Equal("Study group", snap.Channels[0].Name)
	req.Equal("Temporary group", snap.Channels[0].Topic)
}

func TestDirectory_EnrichmentDegradesToDefaults(t *testing.T) {
	req := require.New(t)
	docs := openTestStore(t)

	seedRoom(t, docs, "alice_ghost", map[string]any{
		"type": "direct", "participants": []string{"alice", "ghost"},
	})

	// Nothing is known about the counterpart.
	dir := New(docs, profileStub{}, slog.Default())
	defer dir.Stop()

	var sink snapshotSink
	dir.Start("alice", sink.push)

	req.Eventually(func() bool {
		snap, ok := sink.get()
		return ok && len(snap.Contacts) == 1
	}, 2*time.Second, 10*time.Millisecond)

	snap, _ := sink.get()
	req.Equal(domain.DefaultDisplayName, snap.Contacts[0].Name)
	req.Equal(domain.DefaultAvatarURL, snap.Contacts[0].PhotoURL)
}

func TestDirectory_ReactsToRoomChanges(t *testing.T) {
	req := require.New(t)
	docs := openTestStore(t)

	dir := New(docs, profileStub{}, slog.Default())
	defer dir.Stop()

	var sink snapshotSink
	dir.Start("alice", sink.push)

	req.Eventually(func() bool {
		snap, ok := sink.get()
		return ok && len(snap.Contacts) == 0 && len(snap.Channels) == 0
	}, 2*time.Second, 10*time.Millisecond)

	seedRoom(t, docs, "alice_bob", map[string]any{
		"type": "direct", "participants": []string{"alice", "bob"},
	})

	req.Eventually(func() bool {
		snap, ok := sink.get()
		return ok && len(snap.Contacts) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDirectory_TimerDeletesExpiredRoom(t *testing.T) {
	req := require.New(t)
	docs := openTestStore(t)

	seedRoom(t, docs, "g-brief", map[string]any{
		"type": "group", "participants": []string{"alice"},
		"name":      "Blink and you miss it",
		"expiresAt": store.Millis(time.Now().Add(150 * time.Millisecond)),
	})

	dir := New(docs, profileStub{}, slog.Default())
	defer dir.Stop()

	var sink snapshotSink
	dir.Start("alice", sink.push)

	// Visible at first, then deleted by the scheduled timer.
	req.Eventually(func() bool {
		snap, ok := sink.get()
		return ok && len(snap.Channels) == 1
	}, 2*time.Second, 10*time.Millisecond)

	req.Eventually(func() bool {
		_, err := docs.Get(context.Background(), store.Rooms, "g-brief")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	req.Eventually(func() bool {
		snap, ok := sink.get()
		return ok && len(snap.Channels) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDirectory_StopDrainsPendingTimers(t *testing.T) {
	req := require.New(t)
	docs := openTestStore(t)

	seedRoom(t, docs, "g-pending", map[string]any{
		"type": "group", "participants": []string{"alice"},
		"expiresAt": store.Millis(time.Now().Add(200 * time.Millisecond)),
	})

	dir := New(docs, profileStub{}, slog.Default())

	var sink snapshotSink
	dir.Start("alice", sink.push)

	req.Eventually(func() bool {
		snap, ok := sink.get()
		return ok && len(snap.Channels) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Stop before the deadline: the armed deletion must never fire.
	dir.Stop()
	time.Sleep(400 * time.Millisecond)

	_, err := docs.Get(context.Background(), store.Rooms, "g-pending")
	req.NoError(err)
}

func TestTimerRegistry(t *testing.T) {
	t.Run("should fire once at the deadline", func(t *testing.T) {
		req := require.New(t)
		var mu sync.Mutex
		var fired []string

		r := NewTimerRegistry(func(id string) {
			mu.Lock()
			fired = append(fired, id)
			mu.Unlock()
		})
		now := time.Now()
		r.Reconcile(map[string]time.Time{"r1": now.Add(50 * time.Millisecond)}, now)
		req.Equal(1, r.Pending())

		req.Eventually(func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(fired) == 1 && fired[0] == "r1"
		}, time.Second, 5*time.Millisecond)
		req.Zero(r.Pending())
	})

	t.Run("should cancel timers for rooms gone from the snapshot", func(t *testing.T) {
		req := require.New(t)
		fired := make(chan string, 1)

		r := NewTimerRegistry(func(id string) { fired <- id })
		now := time.Now()
		r.Reconcile(map[string]time.Time{"r1": now.Add(100 * time.Millisecond)}, now)
		r.Reconcile(map[string]time.Time{}, now)
		req.Zero(r.Pending())

		select {
		case id := <-fired:
			req.Failf("unexpected fire", "timer for %s fired after cancellation", id)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("should leave an existing timer untouched on reconcile", func(t *testing.T) {
		req := require.New(t)
		fired := make(chan string, 2)

		r := NewTimerRegistry(func(id string) { fired <- id })
		now := time.Now()
		deadlines := map[string]time.Time{"r1": now.Add(50 * time.Millisecond)}
		r.Reconcile(deadlines, now)
		r.Reconcile(deadlines, now)
		req.Equal(1, r.Pending())

		select {
		case <-fired:
		case <-time.After(time.Second):
			req.Fail("timer never fired")
		}
		select {
		case <-fired:
			req.Fail("timer fired twice")
		case <-time.After(150 * time.Millisecond):
		}
	})

	t.Run("should fire an already-due deadline after zero delay", func(t *testing.T) {
		req := require.New(t)
		fired := make(chan string, 1)

		r := NewTimerRegistry(func(id string) { fired <- id })
		now := time.Now()
		r.Reconcile(map[string]time.Time{"r1": now.Add(-time.Minute)}, now)

		select {
		case id := <-fired:
			req.Equal("r1", id)
		case <-time.After(time.Second):
			req.Fail("overdue timer never fired")
		}
	})

	t.Run("should never fire after drain", func(t *testing.T) {
		req := require.New(t)
		fired := make(chan string, 1)

		r := NewTimerRegistry(func(id string) { fired <- id })
		now := time.Now()
		r.Reconcile(map[string]time.Time{"r1": now.Add(50 * time.Millisecond)}, now)
		r.Drain()
		req.Zero(r.Pending())

		// Reconcile after drain is rejected too.
		r.Reconcile(map[string]time.Time{"r2": now.Add(10 * time.Millisecond)}, now)
		req.Zero(r.Pending())

		select {
		case id := <-fired:
			req.Failf("unexpected fire", "timer for %s fired after drain", id)
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func TestSweepWorker(t *testing.T) {
	req := require.New(t)
	docs := openTestStore(t)

	seedRoom(t, docs, "g-dead", map[string]any{
		"type": "group", "participants": []string{"alice"},
		"expiresAt": store.Millis(time.Now().Add(-time.Minute)),
	})
	seedRoom(t, docs, "g-live", map[string]any{
		"type": "group", "participants": []string{"alice"},
		"expiresAt": store.Millis(time.Now().Add(time.Hour)),
	})
	seedRoom(t, docs, "alice_bob", map[string]any{
		"type": "direct", "participants": []string{"alice", "bob"},
	})

	w := NewSweepWorker(docs, "alice", 20*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	req.Eventually(func() bool {
		_, err := docs.Get(context.Background(), store.Rooms, "g-dead")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	// The live group and the direct room survive the sweep.
	_, err := docs.Get(context.Background(), store.Rooms, "g-live")
	req.NoError(err)
	_, err = docs.Get(context.Background(), store.Rooms, "alice_bob")
	req.NoError(err)

	cancel()
	select {
	case err := <-done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		req.Fail("sweep worker did not stop on cancel")
	}
}
