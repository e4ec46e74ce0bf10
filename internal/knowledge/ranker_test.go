package knowledge

import (
	"math"
	"testing"
)

// rankDoc builds a minimal document for ranker tests.
func rankDoc(id, title, content string, docType DocumentType, embedding []float32) *Document {
	return &Document{
		ID:        id,
		TenantID:  "t1",
		Title:     title,
		Content:   content,
		Type:      docType,
		Embedding: embedding,
	}
}

func Test_Rank_TitleMatchBonus(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	// similarity 1/sqrt(10) keeps the blended score well below the clamp.
	docEmb := []float32{1, 3}
	sim := Cosine(query, docEmb)

	docs := []*Document{
		rankDoc("a", "Billing overview", "nothing relevant here", TypeProcedure, docEmb),
		rankDoc("b", "Refund policy overview", "nothing relevant here", TypeProcedure, docEmb),
	}

	results := rank("refund", query, docs, 0, 10)
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}
	// The title match must rank first, exactly one bonus apart.
	if results[0].Document.ID != "b" {
		t.Fatalf("want title match first, got %s", results[0].Document.ID)
	}
	if got, want := results[0].RelevanceScore, sim+0.2; math.Abs(got-want) > 1e-9 {
		t.Errorf("title bonus: want %v, got %v", want, got)
	}
	if got, want := results[1].RelevanceScore, sim; math.Abs(got-want) > 1e-9 {
		t.Errorf("no bonus: want %v, got %v", want, got)
	}
}

func Test_Rank_ContentOccurrenceBonusCapped(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	docEmb := []float32{1, 3}
	sim := Cosine(query, docEmb)

	cases := []struct {
		name    string
		content string
		want    float64
	}{
		{"one occurrence", "refund once", sim + 0.1},
		{"two occurrences", "refund and refund", sim + 0.2},
		{"capped at three", "refund refund refund refund refund", sim + 0.3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			docs := []*Document{rankDoc("a", "no match", tc.content, TypeProcedure, docEmb)}
			results := rank("refund", query, docs, 0, 10)
			if len(results) != 1 {
				t.Fatalf("want 1 result, got %d", len(results))
			}
			if got := results[0].RelevanceScore; math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("want %v, got %v", tc.want, got)
			}
		})
	}
}

func Test_Rank_TypePriors(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	docEmb := []float32{1, 3}
	sim := Cosine(query, docEmb)

	cases := []struct {
		docType DocumentType
		prior   float64
	}{
		{TypeFAQ, 0.3},
		{TypeScript, 0.2},
		{TypePolicy, 0.1},
		{TypeDocument, 0.05},
		{TypeProcedure, 0},
		{TypeProductInfo, 0},
		{TypeCompanyInfo, 0},
	}

	for _, tc := range cases {
		docs := []*Document{rankDoc("a", "no match", "no match", tc.docType, docEmb)}
		results := rank("refund", query, docs, 0, 10)
		if len(results) != 1 {
			t.Fatalf("%s: want 1 result, got %d", tc.docType, len(results))
		}
		if got, want := results[0].RelevanceScore, sim+tc.prior; math.Abs(got-want) > 1e-9 {
			t.Errorf("%s: want %v, got %v", tc.docType, want, got)
		}
	}
}

func Test_Rank_ScoreClampedToOne(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	// similarity 1.0 plus every bonus must clamp rather than exceed 1.
	docs := []*Document{
		rankDoc("a", "Refund FAQ", "refund refund refund refund", TypeFAQ, []float32{1, 0}),
	}

	results := rank("refund", query, docs, 0, 10)
	if len(results) != 1 {
		t.Fatalf("want 1 result, got %d", len(results))
	}
	if got := results[0].RelevanceScore; got != 1.0 {
		t.Errorf("clamp: want 1.0, got %v", got)
	}
	if got := results[0].Similarity; math.Abs(got-1.0) > 1e-12 {
		t.Errorf("similarity preserved: want 1.0, got %v", got)
	}
}

func Test_Rank_ThresholdExcludes(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	docs := []*Document{
		rankDoc("close", "a", "b", TypeProcedure, []float32{1, 0.1}),
		rankDoc("far", "a", "b", TypeProcedure, []float32{0.1, 1}),
	}

	results := rank("q", query, docs, 0.7, 10)
	if len(results) != 1 {
		t.Fatalf("want 1 result above threshold, got %d", len(results))
	}
	if results[0].Document.ID != "close" {
		t.Errorf("want %q, got %q", "close", results[0].Document.ID)
	}
}

func Test_Rank_SkipsMissingEmbedding(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	docs := []*Document{
		rankDoc("no-embedding", "a", "b", TypeProcedure, nil),
		rankDoc("ok", "a", "b", TypeProcedure, []float32{1, 0}),
	}

	results := rank("q", query, docs, 0, 10)
	if len(results) != 1 || results[0].Document.ID != "ok" {
		t.Fatalf("want only the embedded document, got %v", results)
	}
}

func Test_Rank_StableTieOrder(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	emb := []float32{1, 1}
	docs := []*Document{
		rankDoc("first", "same", "same", TypeProcedure, emb),
		rankDoc("second", "same", "same", TypeProcedure, emb),
		rankDoc("third", "same", "same", TypeProcedure, emb),
	}

	results := rank("q", query, docs, 0, 10)
	if len(results) != 3 {
		t.Fatalf("want 3 results, got %d", len(results))
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].Document.ID != want {
			t.Errorf("tie order[%d]: want %s, got %s", i, want, results[i].Document.ID)
		}
	}
}

func Test_Rank_SortedDescendingAndTruncated(t *testing.T) {
	t.Parallel()

	query := []float32{1, 0}
	docs := []*Document{
		rankDoc("low", "x", "x", TypeProcedure, []float32{1, 2}),
		rankDoc("high", "x", "x", TypeProcedure, []float32{1, 0.1}),
		rankDoc("mid", "x", "x", TypeProcedure, []float32{1, 1}),
	}

	results := rank("q", query, docs, 0, 2)
	if len(results) != 2 {
		t.Fatalf("want 2 results after truncation, got %d", len(results))
	}
	if results[0].Document.ID != "high" || results[1].Document.ID != "mid" {
		t.Errorf("ordering: want [high mid], got [%s %s]",
			results[0].Document.ID, results[1].Document.ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].RelevanceScore > results[i-1].RelevanceScore {
			t.Errorf("results not descending at %d", i)
		}
	}
	for _, r := range results {
		if r.RelevanceScore < 0 || r.RelevanceScore > 1 {
			t.Errorf("score out of [0,1]: %v", r.RelevanceScore)
		}
	}
}

func Test_NormalizeLimit(t *testing.T) {
	t.Parallel()

	if got := normalizeLimit(0, DefaultSearchLimit); got != DefaultSearchLimit {
		t.Errorf("zero limit: want %d, got %d", DefaultSearchLimit, got)
	}
	if got := normalizeLimit(-3, DefaultSearchLimit); got != DefaultSearchLimit {
		t.Errorf("negative limit: want %d, got %d", DefaultSearchLimit, got)
	}
	if got := normalizeLimit(7, DefaultSearchLimit); got != 7 {
		t.Errorf("explicit limit: want 7, got %d", got)
	}
	if got := normalizeLimit(100, DefaultSearchLimit); got != MaxSearchLimit {
		t.Errorf("cap: want %d, got %d", MaxSearchLimit, got)
	}
}

func Test_NormalizeThreshold(t *testing.T) {
	t.Parallel()

	if got := normalizeThreshold(nil, DefaultSearchThreshold); got != DefaultSearchThreshold {
		t.Errorf("nil threshold: want %v, got %v", DefaultSearchThreshold, got)
	}

	zero := 0.0
	if got := normalizeThreshold(&zero, DefaultSearchThreshold); got != 0 {
		t.Errorf("explicit zero: want 0, got %v", got)
	}

	over := 1.5
	if got := normalizeThreshold(&over, DefaultSearchThreshold); got != 1 {
		t.Errorf("over range: want 1, got %v", got)
	}

	under := -0.5
	if got := normalizeThreshold(&under, DefaultSearchThreshold); got != 0 {
		t.Errorf("under range: want 0, got %v", got)
	}
}
