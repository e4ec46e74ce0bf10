package knowledge

import (
	"context"
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// Stats computes the tenant's corpus statistics. Per-type and per-category
// counts come from the store's grouped counts; tag union, average content
// length, and the last-updated timestamp come from a corpus scan. For an
// empty corpus the averages are zero and LastUpdated is the call time.
func (s *Service) Stats(ctx context.Context, tenantID string) (*Stats, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("knowledge: tenant id is required: %w", ErrInvalidInput)
	}

	byType, err := s.store.CountBy(ctx, tenantID, GroupByType)
	if err != nil {
		return nil, fmt.Errorf("knowledge: stats by type: %w", err)
	}
	byCategory, err := s.store.CountBy(ctx, tenantID, GroupByCategory)
	if err != nil {
		return nil, fmt.Errorf("knowledge: stats by category: %w", err)
	}

	docs, err := s.store.All(ctx, tenantID, Filters{})
	if err != nil {
		return nil, fmt.Errorf("knowledge: stats scan: %w", err)
	}

	stats := &Stats{
		TotalDocuments:      len(docs),
		DocumentsByType:     byType,
		DocumentsByCategory: byCategory,
	}

	if len(docs) == 0 {
		stats.LastUpdated = time.Now().UTC()
		return stats, nil
	}

	tagUnion := make(map[string]struct{})
	totalChars := 0
	var lastUpdated time.Time
	for _, doc := range docs {
		for _, tag := range doc.Tags {
			tagUnion[tag] = struct{}{}
		}
		totalChars += utf8.RuneCountInString(doc.Content)
		if doc.UpdatedAt.After(lastUpdated) {
			lastUpdated = doc.UpdatedAt
		}
	}

	stats.TotalTags = len(tagUnion)
	stats.AverageContentLength = int(math.Round(float64(totalChars) / float64(len(docs))))
	stats.LastUpdated = lastUpdated
	return stats, nil
}
