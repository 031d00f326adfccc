// Package docstore is the narrow view of the document store the sync engine needs:
// full collection scans, single document reads and writes, and write batches.
package docstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Document is a schema-less record. Data holds whatever the writer put there;
// callers are expected to decode it into a typed value before use.
type Document struct {
	ID         string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

type Store interface {
	// All returns every document of the collection ordered by document ID.
	All(ctx context.Context, collection string) ([]Document, error)
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection string, id string) (*Document, error)
	// Set replaces the whole document.
	Set(ctx context.Context, collection string, id string, data map[string]any) error
	// NewID allocates a fresh document ID without writing anything.
	NewID(collection string) string
	Batch() Batch
}

// Batch accumulates writes that are applied atomically by Commit.
type Batch interface {
	Set(collection string, id string, data map[string]any)
	// Merge only touches the supplied fields; a nil value stores null.
	Merge(collection string, id string, data map[string]any)
	Len() int
	Commit(ctx context.Context) error
}
