package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/callvox/kbengine/internal/knowledge"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testDoc builds a fully populated document for store tests.
func testDoc(tenantID, id string) *knowledge.Document {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &knowledge.Document{
		ID:        id,
		TenantID:  tenantID,
		Title:     "Refund Policy",
		Content:   "We refund within 30 days.",
		Type:      knowledge.TypePolicy,
		Category:  "billing",
		Tags:      []string{"refunds", "money"},
		Embedding: []float32{0.1, -0.5, 2.25},
		Metadata:  map[string]any{"author": "ops", "revision": "3"},
		Source:    "handbook",
		Language:  "en",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func Test_Store_CreateGetRoundtrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	want := testDoc("t1", "doc-1")
	if err := s.Create(ctx, want); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "t1", "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Title != want.Title || got.Content != want.Content {
		t.Errorf("text fields: got %q/%q", got.Title, got.Content)
	}
	if got.Type != knowledge.TypePolicy || got.Category != "billing" {
		t.Errorf("type/category: got %s/%s", got.Type, got.Category)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "refunds" || got.Tags[1] != "money" {
		t.Errorf("tags: got %v", got.Tags)
	}
	if len(got.Embedding) != 3 || got.Embedding[2] != 2.25 {
		t.Errorf("embedding: got %v", got.Embedding)
	}
	if got.Metadata["author"] != "ops" {
		t.Errorf("metadata: got %v", got.Metadata)
	}
	if got.Source != "handbook" || got.Language != "en" {
		t.Errorf("source/language: got %q/%q", got.Source, got.Language)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("timestamps: got %v/%v, want %v", got.CreatedAt, got.UpdatedAt, want.CreatedAt)
	}
}

func Test_Store_GetNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "t1", "missing"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func Test_Store_TenantIsolation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDoc("tenant-a", "doc-1")
	if err := s.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.Get(ctx, "tenant-b", "doc-1"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("cross-tenant get: want ErrNotFound, got %v", err)
	}

	stolen := testDoc("tenant-b", "doc-1")
	if err := s.Update(ctx, stolen); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("cross-tenant update: want ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "tenant-b", "doc-1"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("cross-tenant delete: want ErrNotFound, got %v", err)
	}

	// Owner still sees the original.
	got, err := s.Get(ctx, "tenant-a", "doc-1")
	if err != nil || got.Title != "Refund Policy" {
		t.Errorf("owner access broken: %v, %v", got, err)
	}

	docs, err := s.All(ctx, "tenant-b", knowledge.Filters{})
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("tenant-b enumeration must be empty, got %d", len(docs))
	}
}

func Test_Store_UpdateOverwrites(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDoc("t1", "doc-1")
	if err := s.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	doc.Content = "New content"
	doc.Embedding = []float32{9, 9}
	doc.Tags = []string{"changed"}
	doc.UpdatedAt = doc.UpdatedAt.Add(time.Second)
	if err := s.Update(ctx, doc); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(ctx, "t1", "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "New content" || len(got.Embedding) != 2 {
		t.Errorf("update not applied: %q / %v", got.Content, got.Embedding)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "changed" {
		t.Errorf("tags not replaced: %v", got.Tags)
	}
}

func Test_Store_DeleteRemoves(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testDoc("t1", "doc-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Delete(ctx, "t1", "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "t1", "doc-1"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("want ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "t1", "doc-1"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("double delete: want ErrNotFound, got %v", err)
	}
}

// seedCorpus inserts a small mixed corpus for list/filter/count tests.
func seedCorpus(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Now().UTC()

	mk := func(id string, docType knowledge.DocumentType, category string, tags ...string) {
		doc := testDoc("t1", id)
		doc.Type = docType
		doc.Category = category
		doc.Tags = tags
		doc.CreatedAt = base
		doc.UpdatedAt = base
		if err := s.Create(ctx, doc); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	mk("d1", knowledge.TypeFAQ, "billing", "money")
	mk("d2", knowledge.TypeFAQ, "", "shared")
	mk("d3", knowledge.TypeScript, "sales", "calls", "shared")
	mk("d4", knowledge.TypePolicy, "billing")
}

func Test_Store_ListFiltersAndPagination(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedCorpus(t, s)

	docs, total, err := s.List(ctx, "t1", 1, 10, knowledge.Filters{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 || len(docs) != 4 {
		t.Errorf("unfiltered: want 4/4, got %d/%d", total, len(docs))
	}

	docs, total, err = s.List(ctx, "t1", 1, 10, knowledge.Filters{Type: knowledge.TypeFAQ})
	if err != nil {
		t.Fatalf("list type: %v", err)
	}
	if total != 2 || len(docs) != 2 {
		t.Errorf("type filter: want 2/2, got %d/%d", total, len(docs))
	}

	docs, total, err = s.List(ctx, "t1", 1, 10, knowledge.Filters{Category: "billing"})
	if err != nil {
		t.Fatalf("list category: %v", err)
	}
	if total != 2 || len(docs) != 2 {
		t.Errorf("category filter: want 2/2, got %d/%d", total, len(docs))
	}

	docs, total, err = s.List(ctx, "t1", 1, 10, knowledge.Filters{Tags: []string{"shared"}})
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if total != 2 || len(docs) != 2 {
		t.Errorf("tag filter: want 2/2, got %d/%d", total, len(docs))
	}

	// Page beyond the corpus is empty but keeps the total.
	docs, total, err = s.List(ctx, "t1", 3, 2, knowledge.Filters{})
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if total != 4 || len(docs) != 0 {
		t.Errorf("page past end: want 4/0, got %d/%d", total, len(docs))
	}
}

func Test_Store_AllKeepsInsertionOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedCorpus(t, s)

	docs, err := s.All(ctx, "t1", knowledge.Filters{})
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	want := []string{"d1", "d2", "d3", "d4"}
	if len(docs) != len(want) {
		t.Fatalf("want %d docs, got %d", len(want), len(docs))
	}
	for i, id := range want {
		if docs[i].ID != id {
			t.Errorf("order[%d]: want %s, got %s", i, id, docs[i].ID)
		}
	}
}

func Test_Store_CountBy(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedCorpus(t, s)

	byType, err := s.CountBy(ctx, "t1", knowledge.GroupByType)
	if err != nil {
		t.Fatalf("count by type: %v", err)
	}
	if byType["faq"] != 2 || byType["script"] != 1 || byType["policy"] != 1 {
		t.Errorf("by type: %v", byType)
	}

	sum := 0
	for _, n := range byType {
		sum += n
	}
	if sum != 4 {
		t.Errorf("by-type counts must sum to corpus size, got %d", sum)
	}

	byCategory, err := s.CountBy(ctx, "t1", knowledge.GroupByCategory)
	if err != nil {
		t.Fatalf("count by category: %v", err)
	}
	if byCategory["billing"] != 2 || byCategory["sales"] != 1 {
		t.Errorf("by category: %v", byCategory)
	}
	if byCategory[knowledge.CategoryUncategorized] != 1 {
		t.Errorf("missing category must fold into sentinel: %v", byCategory)
	}
}

func Test_Store_GetManyPreservesOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedCorpus(t, s)

	docs, err := s.GetMany(ctx, "t1", []string{"d3", "missing", "d1"})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "d3" || docs[1].ID != "d1" {
		t.Errorf("want [d3 d1], got %v", ids(docs))
	}

	docs, err = s.GetMany(ctx, "t1", nil)
	if err != nil || len(docs) != 0 {
		t.Errorf("empty ids: want no docs, got %v (%v)", ids(docs), err)
	}
}

func ids(docs []*knowledge.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func Test_Store_RejectsUnknownType(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDoc("t1", "doc-1")
	doc.Type = knowledge.DocumentType("poem")
	if err := s.Create(ctx, doc); err == nil {
		t.Error("want CHECK constraint failure for unknown type")
	}
}

func Test_Store_EmptyOptionalFields(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := &knowledge.Document{
		ID: "bare", TenantID: "t1", Title: "t", Content: "c",
		Type: knowledge.TypeDocument, Embedding: []float32{1},
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "t1", "bare")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Tags != nil || got.Metadata != nil {
		t.Errorf("empty tags/metadata should decode to nil, got %v / %v", got.Tags, got.Metadata)
	}
}

func Test_Store_ConcurrentWritesLastWriterWins(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	doc := testDoc("t1", "doc-1")
	if err := s.Create(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			d := testDoc("t1", "doc-1")
			d.Content = fmt.Sprintf("version %d", i)
			done <- s.Update(ctx, d)
		}(i)
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent update: %v", err)
		}
	}

	got, err := s.Get(ctx, "t1", "doc-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content == doc.Content {
		t.Errorf("one of the writers should have won, got original content")
	}
}
