package knowledge

import (
	"context"
	"fmt"
	"strings"
)

const (
	// DefaultContextLimit is the number of documents rendered into prompt
	// context when the caller does not supply a limit.
	DefaultContextLimit = 3
	// contextThreshold is the similarity floor for context assembly. Looser
	// than the search default: prompt augmentation prefers recall over
	// precision.
	contextThreshold = 0.6
)

// BuildContext renders the top-ranked documents for query into a text block
// suitable for LLM prompt injection. Each document becomes a labeled block
// (title, type, full content); blocks are separated by a blank line and
// appear in ranked order.
//
// When no document clears the internal threshold the result is the empty
// string — callers must treat that as "no context", not as an error.
func (s *Service) BuildContext(ctx context.Context, tenantID, query string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	threshold := contextThreshold

	results, err := s.Search(ctx, tenantID, SearchQuery{
		Query:     query,
		Limit:     limit,
		Threshold: &threshold,
	})
	if err != nil {
		return "", fmt.Errorf("knowledge: build context: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}

	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Title: %s\n", res.Document.Title)
		fmt.Fprintf(&b, "Type: %s\n", res.Document.Type)
		fmt.Fprintf(&b, "Content: %s", res.Document.Content)
	}
	return b.String(), nil
}
