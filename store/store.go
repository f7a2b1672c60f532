// Package store implements the document-store surface the chat core is
// written against: collections of JSON documents in BadgerDB, append-only
// sub-collections with store-assigned timestamps, and live subscriptions
// that deliver the full matching snapshot on every change.
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"campuschat/contract"
	"campuschat/errors"
)

// Key layout:
//
//	doc:{collection}:{id}                          top-level document
//	sub:{collection}:{parent}:{sub}:{nanos19}:{id} sub-collection entry
//
// The 19-digit zero-padded nanosecond component makes a plain prefix scan
// return sub-collection entries in creation order; the trailing uuid
// disambiguates two appends landing on the same nanosecond.
type Store struct {
	db       *badger.DB
	log      *slog.Logger
	watchers *watcherRegistry
	now      func() time.Time
}

func New(db *badger.DB, log *slog.Logger) *Store {
	return &Store{
		db:       db,
		log:      log,
		watchers: newWatcherRegistry(log),
		now:      time.Now,
	}
}

func docKey(collection, id string) []byte {
	return []byte(fmt.Sprintf("doc:%s:%s", collection, id))
}

func subKey(collection, parentID, sub string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("sub:%s:%s:%s:%019d:%s", collection, parentID, sub, at.UnixNano(), id))
}

func subPrefix(collection, parentID, sub string) []byte {
	return []byte(fmt.Sprintf("sub:%s:%s:%s:", collection, parentID, sub))
}

func (s *Store) Get(ctx context.Context, collection, id string) (contract.Document, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return contract.Document{}, errors.ErrNotFound
	}
	if err != nil {
		return contract.Document{}, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return decodeDocument(id, raw)
}

// Set writes a document. With merge, the supplied fields are overlaid on
// the existing ones (absent document behaves like an empty one), which is
// how callers initialize-or-update deterministic-id rooms.
func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := docKey(collection, id)
		out := fields
		if merge {
			existing := map[string]any{}
			item, err := txn.Get(key)
			switch {
			case err == nil:
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &existing)
				}); err != nil {
					return err
				}
			case !stderrors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			for k, v := range fields {
				existing[k] = v
			}
			out = existing
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return err
		}
		return txn.Set(key, raw)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	s.watchers.notifyCollection(collection)
	return nil
}

// Add appends to a parent's sub-collection and stamps createdAt with the
// store clock. Returns the generated entry id.
func (s *Store) Add(ctx context.Context, collection, parentID, sub string, fields map[string]any) (string, error) {
	id := uuid.New().String()
	at := s.now().UTC()

	entry := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		entry[k] = v
	}
	if _, ok := entry["createdAt"]; !ok {
		entry["createdAt"] = Millis(at)
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(subKey(collection, parentID, sub, at, id), raw)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	s.watchers.notifyOrdered(collection, parentID, sub)
	return id, nil
}

// Delete removes a document. A missing document is not an error: expiry
// timers and the sweep race to delete the same room by design.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(collection, id))
	})
	if err != nil && !stderrors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	s.watchers.notifyCollection(collection)
	return nil
}

// Query scans a collection and returns the documents accepted by filter.
func (s *Store) Query(ctx context.Context, collection string, filter contract.Filter) ([]contract.Document, error) {
	prefix := []byte(fmt.Sprintf("doc:%s:", collection))
	var docs []contract.Document
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				doc, err := decodeDocument(id, val)
				if err != nil {
					return err
				}
				if filter == nil || filter.Matches(doc) {
					docs = append(docs, doc)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return docs, nil
}

// Subscribe registers a live query over a collection. The callback
// receives the full matching set immediately and again after every write
// or delete in the collection; deliveries for one subscription are serial.
func (s *Store) Subscribe(collection string, filter contract.Filter, fn func([]contract.Document)) func() {
	return s.watchers.addCollection(collection, fn, func() ([]contract.Document, error) {
		return s.Query(context.Background(), collection, filter)
	})
}

// SubscribeOrdered registers a live view over a parent's sub-collection,
// delivered ascending by creation time on every append.
func (s *Store) SubscribeOrdered(collection, parentID, sub string, fn func([]contract.Document)) func() {
	return s.watchers.addOrdered(collection, parentID, sub, fn, func() ([]contract.Document, error) {
		return s.readOrdered(collection, parentID, sub)
	})
}

func (s *Store) readOrdered(collection, parentID, sub string) ([]contract.Document, error) {
	prefix := subPrefix(collection, parentID, sub)
	var docs []contract.Document
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			// Entry id is the suffix after the padded timestamp.
			key := string(item.Key()[len(prefix):])
			id := key
			if len(key) > 20 {
				id = key[20:]
			}
			err := item.Value(func(val []byte) error {
				doc, err := decodeDocument(id, val)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
	return docs, nil
}

func decodeDocument(id string, raw []byte) (contract.Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return contract.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return contract.Document{ID: id, Fields: fields}, nil
}
