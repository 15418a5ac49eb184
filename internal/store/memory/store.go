package memory

import (
	"context"
	"sort"
	"sync"

	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/store"
)

// Store is an in-memory document store used in local mode and in
// tests. Semantics mirror the production adapter: flat dotted field
// paths, atomic per-document updates, no cross-document atomicity.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
	}
}

func (s *Store) Apply(ctx context.Context, collection, id string, update store.Update, upsert bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]map[string]any)
		s.collections[collection] = coll
	}

	doc, exists := coll[id]
	if !exists {
		if !upsert {
			// matches the store contract: updates without upsert
			// silently match nothing
			return nil
		}
		doc = make(map[string]any)
		coll[id] = doc
	}

	applyUpdate(doc, update)
	return nil
}

func (s *Store) ApplyMulti(ctx context.Context, collection string, ids []string, update store.Update) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	if coll == nil {
		return 0, nil
	}

	matched := 0
	for _, id := range ids {
		if doc, exists := coll[id]; exists {
			applyUpdate(doc, update)
			matched++
		}
	}
	return matched, nil
}

func (s *Store) FindOne(ctx context.Context, collection, id string, fields []string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.collections[collection][id]
	if !exists {
		return store.Document{}, ierr.NewErrorf("document %s/%s not found", collection, id).
			Mark(ierr.ErrNotFound)
	}
	return copyDocument(id, doc).Project(fields), nil
}

func (s *Store) Find(ctx context.Context, collection string, fields []string) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	docs := make([]store.Document, 0, len(coll))
	for id, doc := range coll {
		docs = append(docs, copyDocument(id, doc).Project(fields))
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.collections[collection][id]
	return exists, nil
}

// Clear removes all documents. Test helper.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = make(map[string]map[string]map[string]any)
}

func applyUpdate(doc map[string]any, update store.Update) {
	for path, delta := range update.Inc {
		current, _ := doc[path].(float64)
		doc[path] = current + delta
	}
	for path, value := range update.Set {
		doc[path] = value
	}
	for path, members := range update.AddToSet {
		set, _ := doc[path].([]string)
		for _, m := range members {
			found := false
			for _, existing := range set {
				if existing == m {
					found = true
					break
				}
			}
			if !found {
				set = append(set, m)
			}
		}
		doc[path] = set
	}
}

func copyDocument(id string, doc map[string]any) store.Document {
	fields := make(map[string]any, len(doc))
	for path, v := range doc {
		if set, ok := v.([]string); ok {
			fields[path] = append([]string(nil), set...)
			continue
		}
		fields[path] = v
	}
	return store.Document{ID: id, Fields: fields}
}
