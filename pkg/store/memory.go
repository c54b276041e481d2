package store

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// NewMemory will create an empty in-memory document store.
// It implements the full Store contract, including atomic UpdateIf
// and ordered change delivery, and backs the test suites.
func NewMemory() *Memory {
	return &Memory{
		collections: map[string]map[string]Document{},
		subscribers: map[string][]*memorySubscription{},
	}
}

// Memory is a mutex-guarded map-backed document store
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
	subscribers map[string][]*memorySubscription
}

func cloneDocument(doc Document) Document {
	clone := Document{}
	for k, v := range doc {
		clone[k] = v
	}
	return clone
}

// Get a document by collection path and key
func (m *Memory) Get(ctx context.Context, collection, key string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][key]
	if !ok {
		return nil, &ErrKeyNotFound{Collection: collection, Key: key}
	}
	return cloneDocument(doc), nil
}

// Set will create or replace a document, generating a key when none given
func (m *Memory) Set(ctx context.Context, collection, key string, doc Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == "" {
		key = uuid.New().String()
	}
	docs, ok := m.collections[collection]
	if !ok {
		docs = map[string]Document{}
		m.collections[collection] = docs
	}
	_, existed := docs[key]
	docs[key] = cloneDocument(doc)
	kind := Added
	if existed {
		kind = Modified
	}
	m.notify(collection, Change{Kind: kind, Key: key, Doc: cloneDocument(doc)})
	return key, nil
}

// Update will merge fields into an existing document.
// A nil field value deletes that field.
func (m *Memory) Update(ctx context.Context, collection, key string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.merge(collection, key, fields, nil)
}

// Upsert will merge fields into a document, creating it when absent.
// The create-or-merge decision rides the store mutex, so concurrent
// upserts on a fresh key all land their fields.
func (m *Memory) Upsert(ctx context.Context, collection, key string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		docs = map[string]Document{}
		m.collections[collection] = docs
	}
	doc, existed := docs[key]
	if !existed {
		doc = Document{}
		docs[key] = doc
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	kind := Modified
	if !existed {
		kind = Added
	}
	m.notify(collection, Change{Kind: kind, Key: key, Doc: cloneDocument(doc)})
	return nil
}

// UpdateIf will merge fields only when the stored document still
// carries every field value in expect, compared atomically with
// the write
func (m *Memory) UpdateIf(ctx context.Context, collection, key string, fields Document, expect Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.merge(collection, key, fields, expect)
}

func (m *Memory) merge(collection, key string, fields Document, expect Document) error {
	doc, ok := m.collections[collection][key]
	if !ok {
		return &ErrKeyNotFound{Collection: collection, Key: key}
	}
	for k, v := range expect {
		if !reflect.DeepEqual(doc[k], v) {
			return &ErrConditionFailed{Collection: collection, Key: key}
		}
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	m.notify(collection, Change{Kind: Modified, Key: key, Doc: cloneDocument(doc)})
	return nil
}

// Delete a document; removing an absent key is a no-op
func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.collections[collection][key]
	if !ok {
		return nil
	}
	delete(m.collections[collection], key)
	m.notify(collection, Change{Kind: Removed, Key: key, Doc: cloneDocument(doc)})
	return nil
}

// ListKeys will return every key in a collection, sorted
func (m *Memory) ListKeys(ctx context.Context, collection string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for key := range m.collections[collection] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Subscribe will open a change feed on a collection, reporting
// mutations that happen after the call
func (m *Memory) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &memorySubscription{
		out:  make(chan Change),
		done: make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)
	sub.detach = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subscribers[collection]
		for i, s := range subs {
			if s == sub {
				m.subscribers[collection] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	m.subscribers[collection] = append(m.subscribers[collection], sub)
	go sub.pump()
	return sub, nil
}

func (m *Memory) notify(collection string, change Change) {
	for _, sub := range m.subscribers[collection] {
		sub.enqueue(change)
	}
}

// memorySubscription delivers changes in publication order through a
// queue drained by a single pump goroutine, so a slow consumer never
// blocks the store lock
type memorySubscription struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Change
	closed bool
	out    chan Change
	done   chan struct{}
	once   sync.Once
	detach func()
}

func (s *memorySubscription) Changes() <-chan Change {
	return s.out
}

// Cancel will detach the feed; no change is delivered afterwards
func (s *memorySubscription) Cancel() {
	s.once.Do(func() {
		s.detach()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
		s.cond.Broadcast()
	})
}

func (s *memorySubscription) enqueue(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, change)
	s.cond.Signal()
}

func (s *memorySubscription) pump() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.out)
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		select {
		case s.out <- next:
		case <-s.done:
			close(s.out)
			return
		}
	}
}
