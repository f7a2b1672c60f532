package store

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"campuschat/contract"
	"campuschat/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, slog.Default())
}

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	t.Run("should return ErrNotFound for a missing document", func(t *testing.T) {
		req := require.New(t)
		_, err := s.Get(ctx, "chatroom", "nope")
		req.ErrorIs(err, errors.ErrNotFound)
	})

	t.Run("should round trip a document", func(t *testing.T) {
		req := require.New(t)
		err := s.Set(ctx, "users", "u1", map[string]any{"Name": "Alice", "year": "3"}, false)
		req.NoError(err)

		doc, err := s.Get(ctx, "users", "u1")
		req.NoError(err)
		req.Equal("u1", doc.ID)
		req.Equal("Alice", FieldString(doc.Fields, "Name"))
		req.Equal("3", FieldString(doc.Fields, "year"))
	})

	t.Run("should overlay fields on merge and keep the rest", func(t *testing.T) {
		req := require.New(t)
		req.NoError(s.Set(ctx, "users", "u2", map[string]any{"Name": "Bob", "bio": "hi"}, false))
		req.NoError(s.Set(ctx, "users", "u2", map[string]any{"bio": "hello"}, true))

		doc, err := s.Get(ctx, "users", "u2")
		req.NoError(err)
		req.Equal("Bob", FieldString(doc.Fields, "Name"))
		req.Equal("hello", FieldString(doc.Fields, "bio"))
	})

	t.Run("should treat merge on a missing document as a create", func(t *testing.T) {
		req := require.New(t)
		req.NoError(s.Set(ctx, "users", "u3", map[string]any{"Name": "Carol"}, true))

		doc, err := s.Get(ctx, "users", "u3")
		req.NoError(err)
		req.Equal("Carol", FieldString(doc.Fields, "Name"))
	})
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := openTestStore(t)

	// Deleting something that never existed must not error, the expiry
	// timer and the sweep race for the same room.
	req.NoError(s.Delete(ctx, "chatroom", "ghost"))

	req.NoError(s.Set(ctx, "chatroom", "r1", map[string]any{"type": "group"}, false))
	req.NoError(s.Delete(ctx, "chatroom", "r1"))

	_, err := s.Get(ctx, "chatroom", "r1")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestStore_Query(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := openTestStore(t)

	req.NoError(s.Set(ctx, "chatroom", "r1", map[string]any{
		"type": "direct", "participants": []string{"alice", "bob"},
	}, false))
	req.NoError(s.Set(ctx, "chatroom", "r2", map[string]any{
		"type": "group", "participants": []string{"bob", "carol"},
	}, false))

	docs, err := s.Query(ctx, "chatroom", ArrayContains{Field: "participants", Value: "alice"})
	req.NoError(err)
	req.Len(docs, 1)
	req.Equal("r1", docs[0].ID)

	docs, err = s.Query(ctx, "chatroom", ArrayContains{Field: "participants", Value: "bob"})
	req.NoError(err)
	req.Len(docs, 2)

	docs, err = s.Query(ctx, "chatroom", All{})
	req.NoError(err)
	req.Len(docs, 2)
}

func TestStore_Add(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := openTestStore(t)

	before := time.Now().Add(-time.Second)
	id, err := s.Add(ctx, "chatroom", "r1", "messages", map[string]any{
		"senderUid": "alice", "text": "hello",
	})
	req.NoError(err)
	req.NotEmpty(id)

	docs, err := s.readOrdered("chatroom", "r1", "messages")
	req.NoError(err)
	req.Len(docs, 1)
	req.Equal(id, docs[0].ID)
	req.Equal("hello", FieldString(docs[0].Fields, "text"))

	// createdAt is stamped by the store clock.
	at := FieldTime(docs[0].Fields, "createdAt")
	req.True(at.After(before))
}

func TestStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := openTestStore(t)

	req.NoError(s.Set(ctx, "chatroom", "r1", map[string]any{
		"participants": []string{"alice", "bob"},
	}, false))

	var mu sync.Mutex
	var latest []contract.Document
	snapshot := func() []contract.Document {
		mu.Lock()
		defer mu.Unlock()
		return latest
	}

	unsubscribe := s.Subscribe("chatroom", ArrayContains{Field: "participants", Value: "alice"}, func(docs []contract.Document) {
		mu.Lock()
		latest = docs
		mu.Unlock()
	})
	defer unsubscribe()

	// Initial snapshot arrives without any further write.
	req.Eventually(func() bool { return len(snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	// A new matching room shows up in the next delivery.
	req.NoError(s.Set(ctx, "chatroom", "r2", map[string]any{
		"participants": []string{"alice", "carol"},
	}, false))
	req.Eventually(func() bool { return len(snapshot()) == 2 }, time.Second, 10*time.Millisecond)

	// A delete shrinks the snapshot.
	req.NoError(s.Delete(ctx, "chatroom", "r1"))
	req.Eventually(func() bool {
		docs := snapshot()
		return len(docs) == 1 && docs[0].ID == "r2"
	}, time.Second, 10*time.Millisecond)
}

func TestStore_SubscribeStopsAfterUnsubscribe(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := openTestStore(t)

	var mu sync.Mutex
	deliveries := 0

	unsubscribe := s.Subscribe("chatroom", All{}, func([]contract.Document) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	})

	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deliveries >= 1
	}, time.Second, 10*time.Millisecond)

	unsubscribe()
	mu.Lock()
	seen := deliveries
	mu.Unlock()

	req.NoError(s.Set(ctx, "chatroom", "r1", map[string]any{"type": "group"}, false))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	req.Equal(seen, deliveries)
}

func TestStore_SubscribeOrdered(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := openTestStore(t)

	var mu sync.Mutex
	var latest []contract.Document
	snapshot := func() []contract.Document {
		mu.Lock()
		defer mu.Unlock()
		return latest
	}

	unsubscribe := s.SubscribeOrdered("chatroom", "r1", "messages", func(docs []contract.Document) {
		mu.Lock()
		latest = docs
		mu.Unlock()
	})
	defer unsubscribe()

	for _, text := range []string{"first", "second", "third"} {
		_, err := s.Add(ctx, "chatroom", "r1", "messages", map[string]any{
			"senderUid": "alice", "text": text,
		})
		req.NoError(err)
	}

	req.Eventually(func() bool { return len(snapshot()) == 3 }, time.Second, 10*time.Millisecond)

	docs := snapshot()
	req.Equal("first", FieldString(docs[0].Fields, "text"))
	req.Equal("second", FieldString(docs[1].Fields, "text"))
	req.Equal("third", FieldString(docs[2].Fields, "text"))

	// Creation order is non-decreasing across the snapshot.
	for i := 1; i < len(docs); i++ {
		prev := FieldTime(docs[i-1].Fields, "createdAt")
		curr := FieldTime(docs[i].Fields, "createdAt")
		req.False(curr.Before(prev))
	}
}

func TestFields(t *testing.T) {
	req := require.New(t)

	t.Run("AsMillis accepts both in-process and decoded forms", func(t *testing.T) {
		for _, v := range []any{int64(1500), float64(1500), 1500} {
			ms, ok := AsMillis(v)
			req.True(ok)
			req.EqualValues(1500, ms)
		}
		_, ok := AsMillis("1500")
		req.False(ok)
	})

	t.Run("FieldTime returns zero for absent fields", func(t *testing.T) {
		req.True(FieldTime(map[string]any{}, "createdAt").IsZero())
	})

	t.Run("FieldStrings decodes JSON arrays", func(t *testing.T) {
		fields := map[string]any{"participants": []any{"alice", "bob"}}
		req.Equal([]string{"alice", "bob"}, FieldStrings(fields, "participants"))
	})
}
