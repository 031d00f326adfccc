package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used for local runs and tests.
// It records the size of every committed batch.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]*Document
	commits     []int

	// CommitHook, when set, runs before a batch is applied; an error aborts the commit.
	CommitHook func(ops int) error
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[string]map[string]*Document{},
		now:         time.Now,
	}
}

func (s *MemoryStore) All(_ context.Context, collection string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make([]Document, 0, len(s.collections[collection]))
	for _, d := range s.collections[collection] {
		docs = append(docs, copyDocument(d))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) Get(_ context.Context, collection string, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	doc := copyDocument(d)
	return &doc, nil
}

func (s *MemoryStore) Set(_ context.Context, collection string, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(collection, id, data, false)
	return nil
}

func (s *MemoryStore) NewID(string) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

func (s *MemoryStore) Batch() Batch {
	return &memoryBatch{store: s}
}

// Commits returns the number of operations of every committed batch, in order.
func (s *MemoryStore) Commits() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.commits...)
}

// Count returns the number of documents in the collection.
func (s *MemoryStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[collection])
}

// write must be called with mu held.
func (s *MemoryStore) write(collection string, id string, data map[string]any, merge bool) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = map[string]*Document{}
		s.collections[collection] = coll
	}
	now := s.now()
	existing, ok := coll[id]
	if !ok {
		coll[id] = &Document{ID: id, Data: copyData(data), CreateTime: now, UpdateTime: now}
		return
	}
	if merge {
		for k, v := range data {
			existing.Data[k] = v
		}
	} else {
		existing.Data = copyData(data)
	}
	existing.UpdateTime = now
}

type memoryOp struct {
	collection string
	id         string
	data       map[string]any
	merge      bool
}

type memoryBatch struct {
	store *MemoryStore
	ops   []memoryOp
}

func (b *memoryBatch) Set(collection string, id string, data map[string]any) {
	b.ops = append(b.ops, memoryOp{collection: collection, id: id, data: copyData(data)})
}

func (b *memoryBatch) Merge(collection string, id string, data map[string]any) {
	b.ops = append(b.ops, memoryOp{collection: collection, id: id, data: copyData(data), merge: true})
}

func (b *memoryBatch) Len() int {
	return len(b.ops)
}

func (b *memoryBatch) Commit(context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}
	if hook := b.store.CommitHook; hook != nil {
		if err := hook(len(b.ops)); err != nil {
			return err
		}
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		b.store.write(op.collection, op.id, op.data, op.merge)
	}
	b.store.commits = append(b.store.commits, len(b.ops))
	b.ops = nil
	return nil
}

func copyDocument(d *Document) Document {
	return Document{ID: d.ID, Data: copyData(d.Data), CreateTime: d.CreateTime, UpdateTime: d.UpdateTime}
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
