package memstore

import (
	"context"
	"fmt"
	"sync"

	contractx "github.com/campora/assistant/assistant/contract"
)

// Store is an in-memory DocumentStore for tests and local runs. Documents
// are returned as copies, and FindByField preserves insertion order so
// query results are deterministic.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	docs  map[string]map[string]any
	order []string
}

var _ contractx.DocumentStore = (*Store)(nil)

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Put inserts or replaces a document.
func (s *Store) Put(name, key string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[name]
	if !ok {
		col = &collection{docs: make(map[string]map[string]any)}
		s.collections[name] = col
	}
	if _, exists := col.docs[key]; !exists {
		col.order = append(col.order, key)
	}
	col.docs[key] = cloneDoc(doc)
}

func (s *Store) Get(_ context.Context, name, key string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", contractx.ErrDocNotFound, name, key)
	}
	doc, ok := col.docs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", contractx.ErrDocNotFound, name, key)
	}
	return cloneDoc(doc), nil
}

func (s *Store) FindByField(_ context.Context, name, field, value string, limit int) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, nil
	}

	var out []map[string]any
	for _, key := range col.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		doc := col.docs[key]
		if field != "" {
			fv, _ := doc[field].(string)
			if fv != value {
				continue
			}
		}
		out = append(out, cloneDoc(doc))
	}
	return out, nil
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
