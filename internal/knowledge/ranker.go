package knowledge

import (
	"math"
	"sort"
	"strings"
)

// Ranking constants. Similarity is the base score; the bonuses below reward
// lexical matches and privileged document types, and the final score is
// clamped to maxRelevanceScore. No floor clamp is needed because similarity
// is already at or above the (non-negative) threshold when a bonus applies.
const (
	// DefaultSearchThreshold is the minimum cosine similarity for Search
	// when the caller does not supply one.
	DefaultSearchThreshold = 0.7
	// DefaultSearchLimit is the result count for Search when the caller
	// does not supply one.
	DefaultSearchLimit = 5
	// MaxSearchLimit caps the caller-supplied result count.
	MaxSearchLimit = 20

	// titleMatchBonus is added when the lower-cased title contains the
	// lower-cased query as a substring.
	titleMatchBonus = 0.2
	// contentOccurrenceBonus is added per non-overlapping case-insensitive
	// occurrence of the query inside the content.
	contentOccurrenceBonus = 0.1
	// contentBonusCap bounds the total content occurrence bonus.
	contentBonusCap = 0.3
	// maxRelevanceScore is the ceiling for the blended score.
	maxRelevanceScore = 1.0
)

// rank scores docs against the query and returns the surviving results,
// ordered by descending relevance. The algorithm is a linear scan:
//
//  1. documents without an embedding are skipped (defensive; the lifecycle
//     invariant means this should not occur),
//  2. documents with cosine similarity below threshold are dropped,
//  3. the relevance score blends similarity with a title-match bonus, a
//     capped content-occurrence bonus, and the document type prior,
//  4. the sort is stable so ties keep the enumeration order of docs.
//
// The caller is responsible for filter restriction and for clamping
// threshold and limit.
func rank(query string, queryEmbedding []float32, docs []*Document, threshold float64, limit int) []RankedResult {
	loweredQuery := strings.ToLower(query)

	results := make([]RankedResult, 0, len(docs))
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			continue
		}

		similarity := Cosine(queryEmbedding, doc.Embedding)
		if similarity < threshold {
			continue
		}

		score := similarity

		if strings.Contains(strings.ToLower(doc.Title), loweredQuery) {
			score += titleMatchBonus
		}

		// strings.Count counts non-overlapping occurrences.
		occurrences := strings.Count(strings.ToLower(doc.Content), loweredQuery)
		score += math.Min(contentBonusCap, contentOccurrenceBonus*float64(occurrences))

		score += doc.Type.Prior()

		if score > maxRelevanceScore {
			score = maxRelevanceScore
		}

		results = append(results, RankedResult{
			Document:       doc,
			Similarity:     similarity,
			RelevanceScore: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// normalizeLimit clamps a caller-supplied result limit into [1, MaxSearchLimit],
// substituting fallback when the caller passed zero or a negative value.
func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		limit = fallback
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return limit
}

// normalizeThreshold resolves the effective similarity threshold: nil means
// fallback, and out-of-range values are clamped into [0, 1].
func normalizeThreshold(t *float64, fallback float64) float64 {
	if t == nil {
		return fallback
	}
	v := *t
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
