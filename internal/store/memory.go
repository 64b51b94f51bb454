package store

import (
	"context"
	"reflect"
	"sort"
	"sync"
)

// Memory is an in-process Store. Contents vanish on restart.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]map[string]Document)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, ref Ref) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		return nil, ErrNotFound
	}
	return NormalizeDocument(doc)
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, ref Ref, doc Document, merge bool) error {
	norm, err := NormalizeDocument(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.docs[ref.Collection][ref.ID]
	if !merge || !ok {
		m.put(ref, norm)
		return nil
	}
	for k, v := range norm {
		existing[k] = v
	}
	return nil
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, ref Ref, doc Document) error {
	norm, err := NormalizeDocument(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[ref.Collection][ref.ID]; ok {
		return ErrAlreadyExists
	}
	m.put(ref, norm)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, ref Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[ref.Collection], ref.ID)
	return nil
}

// List implements Store. Entries are ordered by id.
func (m *Memory) List(_ context.Context, collection string, opts ListOptions) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.docs[collection]))
	for id := range m.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		doc, err := NormalizeDocument(m.docs[collection][id])
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{ID: id, Data: doc})
	}
	return out, nil
}

// ArrayUnion implements Store.
func (m *Memory) ArrayUnion(_ context.Context, ref Ref, field string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		m.put(ref, Document{field: []any{norm}})
		return nil
	}
	arr := doc.Array(field)
	for _, el := range arr {
		if reflect.DeepEqual(el, norm) {
			return nil
		}
	}
	doc[field] = append(arr, norm)
	return nil
}

// ArrayRemove implements Store.
func (m *Memory) ArrayRemove(_ context.Context, ref Ref, field string, value any) error {
	norm, err := Normalize(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[ref.Collection][ref.ID]
	if !ok {
		return ErrNotFound
	}
	arr := doc.Array(field)
	next := make([]any, 0, len(arr))
	for _, el := range arr {
		if !reflect.DeepEqual(el, norm) {
			next = append(next, el)
		}
	}
	doc[field] = next
	return nil
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *Memory) Close() error { return nil }

func (m *Memory) put(ref Ref, doc Document) {
	coll, ok := m.docs[ref.Collection]
	if !ok {
		coll = make(map[string]Document)
		m.docs[ref.Collection] = coll
	}
	coll[ref.ID] = doc
}
