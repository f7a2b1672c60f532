//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"campuschat/domain"
)

// Filter selects documents out of a collection snapshot. Implementations
// live in the store package (ArrayContains, FieldEquals, ByID).
type Filter interface {
	Matches(doc Document) bool
}

// Document is a schemaless record addressed by collection and id.
// Timestamps travel as epoch milliseconds inside Fields.
type Document struct {
	ID     string
	Fields map[string]any
}

// DocumentStore is the collaborator surface the core needs from the
// hosted document database: point reads/writes, append-only
// sub-collections with server-assigned timestamps, live snapshot
// subscriptions, and tolerated not-found deletes.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error
	Add(ctx context.Context, collection, parentID, sub string, fields map[string]any) (string, error)
	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
	// Subscribe delivers the full matching set on every change in the
	// collection until the returned function is called. Callbacks for one
	// subscription never overlap.
	Subscribe(collection string, filter Filter, fn func([]Document)) (unsubscribe func())
	// SubscribeOrdered delivers a parent's sub-collection ascending by
	// creation time on every append.
	SubscribeOrdered(collection, parentID, sub string, fn func([]Document)) (unsubscribe func())
}

// IdentityProvider authenticates credentials and reports sign-in/out
// transitions. The nil identity on the change stream means signed out.
type IdentityProvider interface {
	SignIn(ctx context.Context, email, password string) (domain.Identity, error)
	SignUp(ctx context.Context, email, password string) (domain.Identity, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn func(*domain.Identity)) (unsubscribe func())
}

// BlobStore holds uploaded binary content (profile avatars).
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte) error
	GetURL(path string) (string, error)
}

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// for logging and supervision, so workers don't have to name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
