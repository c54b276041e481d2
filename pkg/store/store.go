package store

import (
	"context"
	"fmt"
	"strings"
)

const (
	KeyNotFoundError     = "document not found"
	ConditionFailedError = "document did not match expected values"
)

// ErrKeyNotFound reported when a document key does not exist in a collection
type ErrKeyNotFound struct {
	Collection string
	Key        string
}

func (e *ErrKeyNotFound) Error() string {
	return fmt.Sprintf("%s: %s/%s", KeyNotFoundError, e.Collection, e.Key)
}

// ErrConditionFailed reported by UpdateIf when the document no longer
// carries the expected field values
type ErrConditionFailed struct {
	Collection string
	Key        string
}

func (e *ErrConditionFailed) Error() string {
	return fmt.Sprintf("%s: %s/%s", ConditionFailedError, e.Collection, e.Key)
}

// IsKeyNotFound will return true when err reports a missing document
func IsKeyNotFound(err error) bool {
	_, ok := err.(*ErrKeyNotFound)
	return ok
}

// IsConditionFailed will return true when err reports a failed write precondition
func IsConditionFailed(err error) bool {
	_, ok := err.(*ErrConditionFailed)
	return ok
}

// Document is a schemaless record stored under a key in a collection
type Document = map[string]interface{}

// Change kinds delivered by a subscription feed
const (
	Added    = "added"
	Modified = "modified"
	Removed  = "removed"
)

// Change describe one document mutation observed by a subscription
type Change struct {
	Kind string
	Key  string
	Doc  Document
}

// Subscription is a live change feed on one collection.
// Changes is closed after Cancel, never before.
type Subscription interface {
	Changes() <-chan Change
	Cancel()
}

// Store is the document store consumed by the chat core.
// Collections are addressed by path: a bare name ("rooms") or a
// name scoped under a parent key ("messages/<roomID>").
//
// Update merges fields into an existing document; a nil field value
// deletes that field. Upsert merges like Update but creates the
// document when absent, atomically: two concurrent upserts on a fresh
// key must both land their fields. UpdateIf additionally requires the stored
// document to still carry every field value in expect, compared
// atomically with the write, and reports ErrConditionFailed when it
// does not. Adapters that cannot compare-and-write atomically must
// not be used with this core: the room join guard depends on it.
type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	// Set creates or replaces a document. An empty key asks the store
	// to generate one; the stored key is returned either way.
	Set(ctx context.Context, collection, key string, doc Document) (string, error)
	Update(ctx context.Context, collection, key string, fields Document) error
	Upsert(ctx context.Context, collection, key string, fields Document) error
	UpdateIf(ctx context.Context, collection, key string, fields Document, expect Document) error
	// Delete is idempotent: removing an absent key is not an error.
	Delete(ctx context.Context, collection, key string) error
	ListKeys(ctx context.Context, collection string) ([]string, error)
	Subscribe(ctx context.Context, collection string) (Subscription, error)
}

// SplitCollection will split a collection path into its name and
// optional parent key
func SplitCollection(collection string) (name, parent string) {
	i := strings.IndexByte(collection, '/')
	if i < 0 {
		return collection, ""
	}
	return collection[:i], collection[i+1:]
}

// ScopedCollection will build a collection path scoped under a parent key
func ScopedCollection(name, parent string) string {
	return name + "/" + parent
}
