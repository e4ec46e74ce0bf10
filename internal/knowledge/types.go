// Package knowledge implements the tenant-scoped knowledge retrieval engine:
// document lifecycle with embedding maintenance, cosine similarity search
// with lexical reranking, prompt context assembly, and corpus statistics.
// Persistence, embedding, and event delivery are injected collaborators so
// the engine itself stays stateless between calls.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DocumentType is the closed enumeration of knowledge document kinds.
// The type influences ranking via a fixed prior (see typePriors).
type DocumentType string

const (
	// TypeDocument is a generic free-form document.
	TypeDocument DocumentType = "document"
	// TypeFAQ is a question/answer entry. FAQs rank highest among equals.
	TypeFAQ DocumentType = "faq"
	// TypeScript is a call script followed by the voice agent.
	TypeScript DocumentType = "script"
	// TypePolicy is a company policy statement.
	TypePolicy DocumentType = "policy"
	// TypeProcedure is a step-by-step operating procedure.
	TypeProcedure DocumentType = "procedure"
	// TypeProductInfo describes a product or offering.
	TypeProductInfo DocumentType = "product_info"
	// TypeCompanyInfo describes the company itself.
	TypeCompanyInfo DocumentType = "company_info"
)

// typePriors maps every DocumentType to the fixed score bonus applied during
// ranking. The table is exhaustive over the enumeration; ParseDocumentType
// rejects anything not present here, so lookups never miss.
var typePriors = map[DocumentType]float64{
	TypeFAQ:         0.3,
	TypeScript:      0.2,
	TypePolicy:      0.1,
	TypeDocument:    0.05,
	TypeProcedure:   0,
	TypeProductInfo: 0,
	TypeCompanyInfo: 0,
}

// ParseDocumentType validates s against the closed enumeration and returns
// the corresponding DocumentType. Unknown values fail with ErrInvalidInput
// rather than silently defaulting.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := typePriors[t]; !ok {
		return "", fmt.Errorf("knowledge: unknown document type %q: %w", s, ErrInvalidInput)
	}
	return t, nil
}

// Prior returns the fixed ranking bonus for this document type.
func (t DocumentType) Prior() float64 { return typePriors[t] }

// CategoryUncategorized is the sentinel label under which documents without
// a category are grouped in per-category statistics.
const CategoryUncategorized = "uncategorized"

// Document is a unit of tenant-scoped knowledge. The embedding is always
// derived from the current Content; any content change recomputes it before
// the write is considered complete.
type Document struct {
	// ID is the opaque unique identifier, immutable after creation.
	ID string `json:"id"`
	// TenantID is the owning account. Every operation is scoped by it.
	TenantID string `json:"tenantId"`
	// Title is a short required label.
	Title string `json:"title"`
	// Content is the long-form text and the source of truth for Embedding.
	Content string `json:"content"`
	// Type is one of the closed DocumentType enumeration.
	Type DocumentType `json:"type"`
	// Category is an optional free-text grouping label.
	Category string `json:"category,omitempty"`
	// Tags is a deduplicated set of labels. Order is not significant.
	Tags []string `json:"tags,omitempty"`
	// Embedding is the vector derived from Content. Present on every
	// successfully persisted document.
	Embedding []float32 `json:"-"`
	// Metadata is an open key/value bag, opaque to the engine.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Source is an optional origin descriptor (URL, file name, import batch).
	Source string `json:"source,omitempty"`
	// Language is an optional ISO language hint.
	Language string `json:"language,omitempty"`
	// CreatedAt is when the document was first persisted.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is when the document was last written.
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateRequest carries the caller-supplied fields for CreateDocument.
type CreateRequest struct {
	// Title is required.
	Title string `json:"title"`
	// Content is required and drives the embedding.
	Content string `json:"content"`
	// Type must be a member of the DocumentType enumeration.
	Type string `json:"type"`
	// Category is optional.
	Category string `json:"category,omitempty"`
	// Tags is optional; duplicates are dropped.
	Tags []string `json:"tags,omitempty"`
	// Metadata is optional and stored verbatim.
	Metadata map[string]any `json:"metadata,omitempty"`
	// Source is optional.
	Source string `json:"source,omitempty"`
	// Language is optional.
	Language string `json:"language,omitempty"`
}

// UpdatePatch carries the mutable fields for UpdateDocument. Nil pointers
// (and nil slices/maps) leave the corresponding field unchanged. The
// embedding is recomputed only when Content actually changes.
type UpdatePatch struct {
	// Title replaces the title when non-nil.
	Title *string `json:"title,omitempty"`
	// Content replaces the content when non-nil and triggers re-embedding
	// if the new value differs from the stored one.
	Content *string `json:"content,omitempty"`
	// Category replaces the category when non-nil ("" clears it).
	Category *string `json:"category,omitempty"`
	// Tags replaces the tag set when non-nil.
	Tags []string `json:"tags,omitempty"`
	// Metadata replaces the metadata bag when non-nil.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Filters narrows document enumeration. Zero values mean "no restriction".
type Filters struct {
	// Type restricts to a single document type when non-empty.
	Type DocumentType
	// Category restricts to an exact category when non-empty.
	Category string
	// Tags restricts to documents carrying at least one of the given tags.
	Tags []string
}

// Matches reports whether d satisfies every restriction in f. Used for
// in-memory refiltering of index candidates; the SQL store applies the same
// predicate in its WHERE clause.
func (f Filters) Matches(d *Document) bool {
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	if f.Category != "" && d.Category != f.Category {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, want := range f.Tags {
			for _, have := range d.Tags {
				if have == want {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SearchQuery carries the parameters of a similarity search.
type SearchQuery struct {
	// Query is the free-text query. Required.
	Query string `json:"query"`
	// Type optionally restricts results to one document type.
	Type string `json:"type,omitempty"`
	// Category optionally restricts results to one category.
	Category string `json:"category,omitempty"`
	// Tags optionally restricts results to documents with any of these tags.
	Tags []string `json:"tags,omitempty"`
	// Limit is the maximum number of results (default 5, capped at 20).
	Limit int `json:"limit,omitempty"`
	// Threshold is the minimum cosine similarity required for a document to
	// be ranked. Nil applies the default of 0.7. Values are clamped to [0,1].
	Threshold *float64 `json:"threshold,omitempty"`
}

// RankedResult pairs a document with its raw similarity and blended
// relevance score.
type RankedResult struct {
	// Document is the matched document.
	Document *Document `json:"document"`
	// Similarity is the raw cosine similarity to the query embedding.
	Similarity float64 `json:"similarity"`
	// RelevanceScore is Similarity blended with lexical and type bonuses,
	// clamped to [0,1]. Results are ordered by this value, descending.
	RelevanceScore float64 `json:"relevanceScore"`
}

// Stats summarises a tenant's corpus.
type Stats struct {
	// TotalDocuments is the number of documents in the tenant's corpus.
	TotalDocuments int `json:"totalDocuments"`
	// DocumentsByType counts documents per DocumentType. Values sum to
	// TotalDocuments.
	DocumentsByType map[string]int `json:"documentsByType"`
	// DocumentsByCategory counts documents per category; documents without
	// a category are grouped under CategoryUncategorized.
	DocumentsByCategory map[string]int `json:"documentsByCategory"`
	// TotalTags is the cardinality of the union of all tag sets.
	TotalTags int `json:"totalTags"`
	// AverageContentLength is the mean content length in characters,
	// rounded to the nearest integer. Zero for an empty corpus.
	AverageContentLength int `json:"averageContentLength"`
	// LastUpdated is the most recent UpdatedAt in the corpus, or the time
	// of the stats call when the corpus is empty.
	LastUpdated time.Time `json:"lastUpdated"`
}

// GroupField selects the column for DocumentStore.CountBy. A closed
// enumeration keeps grouping out of the SQL-injection surface.
type GroupField int

const (
	// GroupByType groups document counts by DocumentType.
	GroupByType GroupField = iota
	// GroupByCategory groups document counts by category, folding missing
	// categories into CategoryUncategorized.
	GroupByCategory
)

// DocumentStore persists tenant-scoped knowledge documents. Every method
// takes the tenant id; there is no global query path. Implementations must
// be safe for concurrent use and must serialize writes to the same document
// (last writer wins).
type DocumentStore interface {
	// Create persists a new document. The caller assigns ID, timestamps,
	// and embedding before the call.
	Create(ctx context.Context, doc *Document) error
	// Update overwrites the stored document with doc. Fails with
	// ErrNotFound if doc.ID does not exist under doc.TenantID.
	Update(ctx context.Context, doc *Document) error
	// Delete removes the document. Fails with ErrNotFound if id does not
	// exist under tenantID.
	Delete(ctx context.Context, tenantID, id string) error
	// Get returns the document, or ErrNotFound.
	Get(ctx context.Context, tenantID, id string) (*Document, error)
	// GetMany returns the documents for the given ids in the given order,
	// silently skipping ids that do not exist under tenantID.
	GetMany(ctx context.Context, tenantID string, ids []string) ([]*Document, error)
	// List returns one page of documents matching f plus the total count
	// across all pages. page is 1-based.
	List(ctx context.Context, tenantID string, page, pageSize int, f Filters) ([]*Document, int, error)
	// All returns every document of the tenant matching f, in stable
	// creation order. This is the ranking enumeration path.
	All(ctx context.Context, tenantID string, f Filters) ([]*Document, error)
	// CountBy returns a value→count mapping for the given group field.
	CountBy(ctx context.Context, tenantID string, field GroupField) (map[string]int, error)
}

// Embedder converts text into a fixed-length vector. Implementations must be
// deterministic: identical text must reproduce a vector whose cosine
// similarity with itself is exactly 1.0, stable across calls. Safe for
// concurrent use.
type Embedder interface {
	// Embed returns the embedding for text, or an error. The engine issues
	// exactly one call per create/update/search; it never batches.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CandidateIndex is an optional approximate-nearest-neighbour structure that
/// pre-selects candidate document ids for ranking. It is a pure optimisation:
// the engine falls back to a full corpus scan when the index is absent or
// errors, and always re-scores candidates with the full ranking formula.
type CandidateIndex interface {
	// Index adds or replaces the document's embedding in the index.
	Index(ctx context.Context, doc *Document) error
	// Remove deletes the document from the index.
	Remove(ctx context.Context, tenantID, id string) error
	// Candidates returns up to limit document ids for the tenant, ordered
	// by descending vector similarity to embedding.
	Candidates(ctx context.Context, tenantID string, embedding []float32, limit int) ([]string, error)
}
