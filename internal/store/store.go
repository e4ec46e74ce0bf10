// Package store provides the SQLite-backed document store for the knowledge
// engine. Every query is scoped by tenant id — there is no global access
// path, so cross-tenant reads are impossible by construction. Embeddings are
// persisted as little-endian float32 blobs; tags and metadata as JSON.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/callvox/kbengine/internal/knowledge"
)

// SQLiteStore implements knowledge.DocumentStore on a local SQLite database.
// Writes are serialized on a single connection, which gives last-writer-wins
// semantics for concurrent updates to the same document.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

var _ knowledge.DocumentStore = (*SQLiteStore)(nil)

// DefaultDBPath returns the default path for the knowledge database,
// ~/.kbengine/knowledge.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".kbengine")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "knowledge.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the
// schema migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist. The doc_type
// CHECK mirrors the closed DocumentType enumeration so an unknown type is
// rejected at the storage layer as well.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT    PRIMARY KEY,
    tenant_id   TEXT    NOT NULL,
    title       TEXT    NOT NULL,
    content     TEXT    NOT NULL,
    doc_type    TEXT    NOT NULL CHECK(doc_type IN
                  ('document','faq','script','policy','procedure','product_info','company_info')),
    category    TEXT    NOT NULL DEFAULT '',
    tags        TEXT    NOT NULL DEFAULT '[]',  -- JSON array of strings
    embedding   BLOB,                           -- little-endian float32 vector
    metadata    TEXT    NOT NULL DEFAULT '{}',  -- JSON object
    source      TEXT    NOT NULL DEFAULT '',
    language    TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,               -- Unix nanoseconds
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_tenant
    ON documents (tenant_id);
CREATE INDEX IF NOT EXISTS idx_documents_tenant_type
    ON documents (tenant_id, doc_type);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// docColumns is the SELECT column list matching scanDocument.
const docColumns = `id, tenant_id, title, content, doc_type, category, tags,
	embedding, metadata, source, language, created_at, updated_at`

// Create persists a new document.
func (s *SQLiteStore) Create(ctx context.Context, doc *knowledge.Document) error {
	tags, metadata, err := encodeJSONFields(doc)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO documents
    (id, tenant_id, title, content, doc_type, category, tags, embedding,
     metadata, source, language, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, q,
		doc.ID, doc.TenantID, doc.Title, doc.Content, string(doc.Type),
		doc.Category, tags, encodeVector(doc.Embedding), metadata,
		doc.Source, doc.Language, doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: create %s: %w", doc.ID, err)
	}
	return nil
}

// Update overwrites the stored row. Returns knowledge.ErrNotFound when the
// id does not exist under the document's tenant.
func (s *SQLiteStore) Update(ctx context.Context, doc *knowledge.Document) error {
	tags, metadata, err := encodeJSONFields(doc)
	if err != nil {
		return err
	}

	const q = `
UPDATE documents
SET    title = ?, content = ?, category = ?, tags = ?, embedding = ?,
       metadata = ?, source = ?, language = ?, updated_at = ?
WHERE  id = ? AND tenant_id = ?`

	res, err := s.db.ExecContext(ctx, q,
		doc.Title, doc.Content, doc.Category, tags, encodeVector(doc.Embedding),
		metadata, doc.Source, doc.Language, doc.UpdatedAt.UnixNano(),
		doc.ID, doc.TenantID,
	)
	if err != nil {
		return fmt.Errorf("store: update %s: %w", doc.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update %s: %w", doc.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("store: update %s: %w", doc.ID, knowledge.ErrNotFound)
	}
	return nil
}

// Delete removes the document. Returns knowledge.ErrNotFound when the id
// does not exist under tenantID.
func (s *SQLiteStore) Delete(ctx context.Context, tenantID, id string) error {
	const q = `DELETE FROM documents WHERE id = ? AND tenant_id = ?`
	res, err := s.db.ExecContext(ctx, q, id, tenantID)
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: delete %s: %w", id, knowledge.ErrNotFound)
	}
	return nil
}

// Get returns a single document, or knowledge.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, tenantID, id string) (*knowledge.Document, error) {
	q := `SELECT ` + docColumns + ` FROM documents WHERE id = ? AND tenant_id = ?`
	row := s.db.QueryRowContext(ctx, q, id, tenantID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get %s: %w", id, knowledge.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return doc, nil
}

// GetMany returns the documents for ids in the given order, skipping ids
// that do not exist under tenantID.
func (s *SQLiteStore) GetMany(ctx context.Context, tenantID string, ids []string) ([]*knowledge.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	q := `SELECT ` + docColumns + ` FROM documents WHERE tenant_id = ? AND id IN (` + placeholders + `)`

	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get many: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*knowledge.Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: get many scan: %w", err)
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get many rows: %w", err)
	}

	// Preserve the caller's candidate ordering.
	out := make([]*knowledge.Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// List returns one page of documents matching f, newest first, plus the
// total match count across all pages. page is 1-based.
func (s *SQLiteStore) List(ctx context.Context, tenantID string, page, pageSize int, f knowledge.Filters) ([]*knowledge.Document, int, error) {
	where, args := filterClause(tenantID, f)

	var total int
	countQ := `SELECT COUNT(*) FROM documents WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: list count: %w", err)
	}

	q := `SELECT ` + docColumns + ` FROM documents WHERE ` + where +
		` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list: %w", err)
	}
	return docs, total, nil
}

// All returns every document of the tenant matching f in insertion order.
// This is the enumeration the ranker scans, so the order must be stable.
func (s *SQLiteStore) All(ctx context.Context, tenantID string, f knowledge.Filters) ([]*knowledge.Document, error) {
	where, args := filterClause(tenantID, f)
	q := `SELECT ` + docColumns + ` FROM documents WHERE ` + where + ` ORDER BY rowid ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: all: %w", err)
	}
	defer rows.Close()

	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("store: all: %w", err)
	}
	return docs, nil
}

// CountBy returns a value→count mapping grouped by the given field. Missing
// categories are folded into knowledge.CategoryUncategorized at the SQL
// level so no document is dropped from the mapping.
func (s *SQLiteStore) CountBy(ctx context.Context, tenantID string, field knowledge.GroupField) (map[string]int, error) {
	var q string
	var args []any
	switch field {
	case knowledge.GroupByType:
		q = `SELECT doc_type, COUNT(*) FROM documents WHERE tenant_id = ? GROUP BY doc_type`
		args = []any{tenantID}
	case knowledge.GroupByCategory:
		q = `SELECT COALESCE(NULLIF(category, ''), ?) AS cat, COUNT(*)
		     FROM documents WHERE tenant_id = ? GROUP BY cat`
		args = []any{knowledge.CategoryUncategorized, tenantID}
	default:
		return nil, fmt.Errorf("store: count by: unknown group field %d", field)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: count by: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var value string
		var n int
		if err := rows.Scan(&value, &n); err != nil {
			return nil, fmt.Errorf("store: count by scan: %w", err)
		}
		counts[value] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: count by rows: %w", err)
	}
	return counts, nil
}

// Ping verifies the database connection. Used by the readiness probe.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Name identifies this dependency in readiness responses.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// filterClause builds the WHERE clause and arguments for a tenant-scoped,
// filtered enumeration. The tenant predicate is always present. Tag
// filtering matches documents carrying at least one of the requested tags
// via SQLite's json_each.
func filterClause(tenantID string, f knowledge.Filters) (string, []any) {
	var b strings.Builder
	b.WriteString("tenant_id = ?")
	args := []any{tenantID}

	if f.Type != "" {
		b.WriteString(" AND doc_type = ?")
		args = append(args, string(f.Type))
	}
	if f.Category != "" {
		b.WriteString(" AND category = ?")
		args = append(args, f.Category)
	}
	if len(f.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Tags)), ",")
		b.WriteString(" AND EXISTS (SELECT 1 FROM json_each(documents.tags) WHERE json_each.value IN (" + placeholders + "))")
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
	}
	return b.String(), args
}

// scanner abstracts *sql.Row and *sql.Rows for scanDocument.
type scanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one row in docColumns order into a Document.
func scanDocument(row scanner) (*knowledge.Document, error) {
	var (
		doc       knowledge.Document
		docType   string
		tagsJSON  string
		embedding []byte
		metaJSON  string
		createdNs int64
		updatedNs int64
	)
	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.Title, &doc.Content, &docType,
		&doc.Category, &tagsJSON, &embedding, &metaJSON,
		&doc.Source, &doc.Language, &createdNs, &updatedNs,
	)
	if err != nil {
		return nil, err
	}

	doc.Type = knowledge.DocumentType(docType)
	doc.Embedding = decodeVector(embedding)
	doc.CreatedAt = time.Unix(0, createdNs).UTC()
	doc.UpdatedAt = time.Unix(0, updatedNs).UTC()

	if tagsJSON != "" && tagsJSON != "[]" {
		if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &doc, nil
}

// collectDocuments drains rows into a slice.
func collectDocuments(rows *sql.Rows) ([]*knowledge.Document, error) {
	var docs []*knowledge.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// encodeJSONFields serialises the tags and metadata columns. nil maps to an
// empty JSON array/object so the columns are always valid JSON.
func encodeJSONFields(doc *knowledge.Document) (tags, metadata string, err error) {
	t := doc.Tags
	if t == nil {
		t = []string{}
	}
	tagsB, err := json.Marshal(t)
	if err != nil {
		return "", "", fmt.Errorf("store: encode tags: %w", err)
	}

	m := doc.Metadata
	if m == nil {
		m = map[string]any{}
	}
	metaB, err := json.Marshal(m)
	if err != nil {
		return "", "", fmt.Errorf("store: encode metadata: %w", err)
	}
	return string(tagsB), string(metaB), nil
}
