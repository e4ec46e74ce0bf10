package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// defaultLocalDimensions is the vector size of the local hashed embedder.
// Large enough to keep hash collisions rare for knowledge-base sized corpora.
const defaultLocalDimensions = 256

// LocalEmbedder is a deterministic, vocabulary-free text vectorizer: tokens
// are FNV-1a hashed into a fixed number of buckets, weighted by term
// frequency and L2-normalized. Identical text always produces an identical
// vector, so self cosine similarity is exactly 1.0. It needs no network, no
// model files, and no corpus preparation, which makes it the default backend.
type LocalEmbedder struct {
	dimensions   int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewLocalEmbedder constructs a LocalEmbedder with the given vector size.
// A non-positive dimensions falls back to the default.
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = defaultLocalDimensions
	}
	return &LocalEmbedder{
		dimensions:   dimensions,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Dimensions returns the length of the vectors this embedder produces.
func (e *LocalEmbedder) Dimensions() int { return e.dimensions }

// Embed converts text into its hashed bag-of-words vector. The result for
// text with no usable tokens is the zero vector.
func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, e.dimensions)

	tokens := e.tokenize(text)
	for _, tok := range tokens {
		vec[e.bucket(tok)]++
	}
	if len(tokens) > 0 {
		total := float64(len(tokens))
		for i := range vec {
			vec[i] /= total
		}
	}

	// L2 normalize.
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}

	out := make([]float32, e.dimensions)
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}

// bucket maps a token to its vector index via FNV-1a.
func (e *LocalEmbedder) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dimensions))
}

func (e *LocalEmbedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
