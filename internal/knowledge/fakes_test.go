package knowledge

import (
	"context"
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// In-memory DocumentStore fake
// ---------------------------------------------------------------------------

// memStore is an in-memory DocumentStore used by the engine tests. Documents
// are kept in insertion order per tenant so ranking enumeration is stable.
type memStore struct {
	mu   sync.Mutex
	docs map[string][]*Document // tenantID → ordered documents
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string][]*Document)}
}

func (m *memStore) Create(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	m.docs[doc.TenantID] = append(m.docs[doc.TenantID], &cp)
	return nil
}

func (m *memStore) Update(_ context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range m.docs[doc.TenantID] {
		if d.ID == doc.ID {
			cp := *doc
			m.docs[doc.TenantID][i] = &cp
			return nil
		}
	}
	return fmt.Errorf("memstore: update %s: %w", doc.ID, ErrNotFound)
}

func (m *memStore) Delete(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.docs[tenantID]
	for i, d := range docs {
		if d.ID == id {
			m.docs[tenantID] = append(docs[:i], docs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("memstore: delete %s: %w", id, ErrNotFound)
}

func (m *memStore) Get(_ context.Context, tenantID, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs[tenantID] {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("memstore: get %s: %w", id, ErrNotFound)
}

func (m *memStore) GetMany(_ context.Context, tenantID string, ids []string) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := make(map[string]*Document, len(m.docs[tenantID]))
	for _, d := range m.docs[tenantID] {
		byID[d.ID] = d
	}
	var out []*Document
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) List(ctx context.Context, tenantID string, page, pageSize int, f Filters) ([]*Document, int, error) {
	all, err := m.All(ctx, tenantID, f)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *memStore) All(_ context.Context, tenantID string, f Filters) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Document
	for _, d := range m.docs[tenantID] {
		if f.Matches(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) CountBy(_ context.Context, tenantID string, field GroupField) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, d := range m.docs[tenantID] {
		switch field {
		case GroupByType:
			counts[string(d.Type)]++
		case GroupByCategory:
			if d.Category == "" {
				counts[CategoryUncategorized]++
			} else {
				counts[d.Category]++
			}
		}
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// Embedder fake
// ---------------------------------------------------------------------------

// fakeEmbedder returns a canned vector per exact text, a fallback for
// anything else, or a forced error.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	if f.fallback != nil {
		return f.fallback, nil
	}
	return []float32{1, 0, 0}, nil
}

// ---------------------------------------------------------------------------
// Publisher fake
// ---------------------------------------------------------------------------

// capturePublisher records every published event.
type capturePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (c *capturePublisher) Publish(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capturePublisher) byType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// CandidateIndex fake
// ---------------------------------------------------------------------------

// fakeIndex returns a canned candidate id list or a forced error, and
// records Index/Remove calls.
type fakeIndex struct {
	mu         sync.Mutex
	candidates []string
	err        error
	indexed    []string
	removed    []string
}

func (f *fakeIndex) Index(_ context.Context, doc *Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, doc.ID)
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, _, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeIndex) Candidates(_ context.Context, _ string, _ []float32, _ int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}
