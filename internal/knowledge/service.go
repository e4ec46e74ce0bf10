package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// minCandidateLimit is the floor for how many ids are requested from the
// candidate index per search. Over-fetching leaves headroom for candidates
// that the filters or the similarity threshold subsequently reject.
const minCandidateLimit = 50

// Config holds the optional collaborators for a Service.
type Config struct {
	// Publisher receives lifecycle and search events. Defaults to
	// NopPublisher.
	Publisher Publisher
	// Index is an optional ANN candidate pre-selector for search. When nil
	// (or on index error) search scans the full tenant corpus.
	Index CandidateIndex
	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// Service is the knowledge retrieval engine. It is stateless between calls;
// all state lives in the DocumentStore. Safe for concurrent use as long as
// its collaborators are.
type Service struct {
	// store persists documents.
	store DocumentStore
	// embedder converts text to vectors. The embed call is the only
	// suspension point within create/update.
	embedder Embedder
	// publisher receives fire-and-forget events.
	publisher Publisher
	// index optionally pre-selects search candidates.
	index CandidateIndex
	// log is the structured logger for this service instance.
	log *slog.Logger
}

// NewService constructs a Service from its collaborators. store and embedder
// are required; everything in cfg is optional.
func NewService(store DocumentStore, embedder Embedder, cfg *Config) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("knowledge: store must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("knowledge: embedder must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	s := &Service{
		store:     store,
		embedder:  embedder,
		publisher: cfg.Publisher,
		index:     cfg.Index,
		log:       cfg.Logger,
	}
	if s.publisher == nil {
		s.publisher = NopPublisher{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// CreateDocument validates req, embeds its content, and persists a new
// document for the tenant. If embedding generation fails the whole create is
// rejected with ErrInvalidInput and nothing is persisted.
func (s *Service) CreateDocument(ctx context.Context, tenantID string, req CreateRequest) (*Document, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("knowledge: tenant id is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("knowledge: title is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("knowledge: content is required: %w", ErrInvalidInput)
	}
	docType, err := ParseDocumentType(req.Type)
	if err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, req.Content)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed content: %w: %w", ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	doc := &Document{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Title:     req.Title,
		Content:   req.Content,
		Type:      docType,
		Category:  req.Category,
		Tags:      normalizeTags(req.Tags),
		Embedding: embedding,
		Metadata:  req.Metadata,
		Source:    req.Source,
		Language:  req.Language,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("knowledge: create document: %w", err)
	}

	s.indexDocument(ctx, doc)
	s.publisher.Publish(ctx, Event{
		Type:       EventCreated,
		TenantID:   tenantID,
		DocumentID: doc.ID,
		At:         now,
	})

	return doc, nil
}

// UpdateDocument applies patch to an existing document. The embedding is
// recomputed only when the patch actually changes the content; if that
// recomputation fails, nothing is persisted. Returns ErrNotFound when id
// does not belong to the tenant.
func (s *Service) UpdateDocument(ctx context.Context, tenantID, id string, patch UpdatePatch) (*Document, error) {
	doc, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("knowledge: update document: %w", err)
	}

	contentChanged := false
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, fmt.Errorf("knowledge: title must not be empty: %w", ErrInvalidInput)
		}
		doc.Title = *patch.Title
	}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return nil, fmt.Errorf("knowledge: content must not be empty: %w", ErrInvalidInput)
		}
		contentChanged = *patch.Content != doc.Content
		doc.Content = *patch.Content
	}
	if patch.Category != nil {
		doc.Category = *patch.Category
	}
	if patch.Tags != nil {
		doc.Tags = normalizeTags(patch.Tags)
	}
	if patch.Metadata != nil {
		doc.Metadata = patch.Metadata
	}

	if contentChanged {
		embedding, err := s.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("knowledge: re-embed content: %w: %w", ErrInvalidInput, err)
		}
		doc.Embedding = embedding
	}

	doc.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("knowledge: update document: %w", err)
	}

	if contentChanged {
		s.indexDocument(ctx, doc)
	}
	s.publisher.Publish(ctx, Event{
		Type:       EventUpdated,
		TenantID:   tenantID,
		DocumentID: doc.ID,
		At:         doc.UpdatedAt,
	})

	return doc, nil
}

// DeleteDocument removes the document irrecoverably. Returns ErrNotFound
// when id does not belong to the tenant.
func (s *Service) DeleteDocument(ctx context.Context, tenantID, id string) error {
	if err := s.store.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("knowledge: delete document: %w", err)
	}

	if s.index != nil {
		if err := s.index.Remove(ctx, tenantID, id); err != nil {
			s.log.Warn("knowledge: index remove failed",
				slog.String("tenant_id", tenantID),
				slog.String("document_id", id),
				slog.Any("error", err),
			)
		}
	}

	s.publisher.Publish(ctx, Event{
		Type:       EventDeleted,
		TenantID:   tenantID,
		DocumentID: id,
		At:         time.Now().UTC(),
	})
	return nil
}

// GetDocument returns a single document, or ErrNotFound.
func (s *Service) GetDocument(ctx context.Context, tenantID, id string) (*Document, error) {
	doc, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("knowledge: get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns one page of the tenant's documents matching f plus
// the total count. page defaults to 1, pageSize to 20.
func (s *Service) ListDocuments(ctx context.Context, tenantID string, page, pageSize int, f Filters) ([]*Document, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	docs, total, err := s.store.List(ctx, tenantID, page, pageSize, f)
	if err != nil {
		return nil, 0, fmt.Errorf("knowledge: list documents: %w", err)
	}
	return docs, total, nil
}

// Search embeds the query and ranks the tenant's corpus against it.
// Documents below the similarity threshold never appear in the output, and
// every returned relevance score lies in [0, 1]. A failed query embedding
// surfaces as ErrSearchFailed — there is no lexical-only fallback.
func (s *Service) Search(ctx context.Context, tenantID string, q SearchQuery) ([]RankedResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("knowledge: tenant id is required: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, fmt.Errorf("knowledge: query is required: %w", ErrInvalidInput)
	}

	filters := Filters{Category: q.Category, Tags: q.Tags}
	if q.Type != "" {
		docType, err := ParseDocumentType(q.Type)
		if err != nil {
			return nil, err
		}
		filters.Type = docType
	}

	limit := normalizeLimit(q.Limit, DefaultSearchLimit)
	threshold := normalizeThreshold(q.Threshold, DefaultSearchThreshold)

	queryEmbedding, err := s.embedder.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w: %w", ErrSearchFailed, err)
	}

	docs, err := s.candidates(ctx, tenantID, queryEmbedding, filters, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search: %w", err)
	}

	results := rank(q.Query, queryEmbedding, docs, threshold, limit)

	s.publisher.Publish(ctx, Event{
		Type:     EventSearched,
		TenantID: tenantID,
		Query:    q.Query,
		Results:  len(results),
		At:       time.Now().UTC(),
	})

	return results, nil
}

// candidates returns the documents to rank. With no index configured this is
// the full filtered corpus in creation order. With an index it is the ANN
// candidate set, refiltered in memory; any index error falls back to the
// full scan so the observable ranking contract is preserved.
func (s *Service) candidates(ctx context.Context, tenantID string, queryEmbedding []float32, f Filters, limit int) ([]*Document, error) {
	if s.index == nil {
		return s.store.All(ctx, tenantID, f)
	}

	candidateLimit := limit * 4
	if candidateLimit < minCandidateLimit {
		candidateLimit = minCandidateLimit
	}

	ids, err := s.index.Candidates(ctx, tenantID, queryEmbedding, candidateLimit)
	if err != nil {
		s.log.Warn("knowledge: candidate index unavailable, falling back to full scan",
			slog.String("tenant_id", tenantID),
			slog.Any("error", err),
		)
		return s.store.All(ctx, tenantID, f)
	}

	docs, err := s.store.GetMany(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	filtered := docs[:0]
	for _, doc := range docs {
		if f.Matches(doc) {
			filtered = append(filtered, doc)
		}
	}
	return filtered, nil
}

// indexDocument mirrors the document into the candidate index. Index
// failures are logged and otherwise ignored: the store remains the source of
// truth and search falls back to the full scan.
func (s *Service) indexDocument(ctx context.Context, doc *Document) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, doc); err != nil {
		s.log.Warn("knowledge: index upsert failed",
			slog.String("tenant_id", doc.TenantID),
			slog.String("document_id", doc.ID),
			slog.Any("error", err),
		)
	}
}

// normalizeTags trims whitespace, drops empties, and removes duplicates
// while preserving first-seen order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
