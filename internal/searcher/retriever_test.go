package searcher

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/groundbot/retrieval/internal/indexer/index"
	"github.com/groundbot/retrieval/internal/indexer/persist"
	"github.com/groundbot/retrieval/pkg/config"
)

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{DefaultLimit: 5, MaxResults: 100, OvershootFactor: 3}
}

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		PassageWindowChars:  350,
		PassageOverlapChars: 60,
		SnippetMaxChars:     220,
		EnableRerank:        true,
		RerankMaxBonus:      0.25,
		RerankDistanceCap:   10,
	}
}

func buildCorpus() *index.Index {
	ix := index.New()
	ix.AddText("d1", "The quick brown fox jumps over the lazy dog. Foxes are quick and clever animals.",
		index.DocumentMeta{Source: "inline", Title: "About Foxes", Tags: []string{"animals", "wild"}})
	ix.AddText("d2", "Dogs are loyal companions. A lazy dog sleeps most of the day.",
		index.DocumentMeta{Source: "inline", Title: "About Dogs", Tags: []string{"animals", "pets"}})
	ix.AddText("d3", "Quantum computing uses qubits instead of classical bits.",
		index.DocumentMeta{Source: "inline", Title: "Quantum Primer", Tags: []string{"tech"}})
	return ix
}

func newTestRetriever() *Retriever {
	return New(buildCorpus(), testSearchConfig(), testRetrievalConfig())
}

func TestSearchRanksRelevantFirst(t *testing.T) {
	r := newTestRetriever()
	hits := r.Search("quick fox", 10)
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].DocID != "d1" {
		t.Errorf("top hit = %s, want d1", hits[0].DocID)
	}
	for _, h := range hits {
		if h.DocID == "d3" {
			t.Error("unrelated document matched")
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	r := newTestRetriever()
	if hits := r.Search("", 10); hits != nil {
		t.Errorf("empty query returned %v", hits)
	}
	if hits := r.Search("!!! ...", 10); hits != nil {
		t.Errorf("punctuation query returned %v", hits)
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	r := New(index.New(), testSearchConfig(), testRetrievalConfig())
	if hits := r.Search("anything", 10); hits != nil {
		t.Errorf("empty corpus returned %v", hits)
	}
}

func TestRetrieveReturnsPassages(t *testing.T) {
	r := newTestRetriever()
	ps := r.Retrieve("lazy dog", 2, nil, true)
	if len(ps) == 0 {
		t.Fatal("no passages")
	}
	if len(ps) > 2 {
		t.Errorf("k not honored: %d passages", len(ps))
	}
	for _, p := range ps {
		if !strings.Contains(strings.ToLower(p.Text), "dog") {
			t.Errorf("passage misses the query term: %q", p.Text)
		}
		if p.Start < 0 || p.End < p.Start {
			t.Errorf("bad offsets: [%d, %d)", p.Start, p.End)
		}
		if p.Snippet == "" {
			t.Error("empty snippet")
		}
	}
	for i := 1; i < len(ps); i++ {
		if ps[i].Score > ps[i-1].Score {
			t.Error("passages not sorted by score")
		}
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	r := newTestRetriever()
	if ps := r.Retrieve("", 5, nil, true); ps != nil {
		t.Errorf("empty query returned %v", ps)
	}
}

func TestRetrieveDefaultK(t *testing.T) {
	r := newTestRetriever()
	ps := r.Retrieve("dog", 0, nil, false)
	if len(ps) > testSearchConfig().DefaultLimit {
		t.Errorf("default limit not applied: %d", len(ps))
	}
	if len(ps) == 0 {
		t.Error("no passages for matching query")
	}
}

func TestRetrieveTitleFilter(t *testing.T) {
	r := newTestRetriever()
	ps := r.Retrieve("lazy dog", 5, &Filters{TitleContains: "foxes"}, false)
	if len(ps) != 1 || ps[0].DocID != "d1" {
		t.Fatalf("title filter: got %v", ps)
	}
	if ps := r.Retrieve("lazy dog", 5, &Filters{TitleContains: "nonexistent"}, false); ps != nil {
		t.Errorf("impossible title filter returned %v", ps)
	}
}

func TestRetrieveRequireTagsAND(t *testing.T) {
	r := newTestRetriever()
	ps := r.Retrieve("lazy dog", 5, &Filters{RequireTags: []string{"animals", "wild"}}, false)
	if len(ps) != 1 || ps[0].DocID != "d1" {
		t.Fatalf("tag filter: got %v", ps)
	}
	// Single shared tag matches both dog documents.
	ps = r.Retrieve("lazy dog", 5, &Filters{RequireTags: []string{"animals"}}, false)
	if len(ps) != 2 {
		t.Errorf("shared tag: got %d passages, want 2", len(ps))
	}
	// Tags are matched case-insensitively.
	ps = r.Retrieve("lazy dog", 5, &Filters{RequireTags: []string{"ANIMALS", "Wild"}}, false)
	if len(ps) != 1 || ps[0].DocID != "d1" {
		t.Errorf("case-insensitive tags: got %v", ps)
	}
}

func TestRetrieveRerankNeverLowersScore(t *testing.T) {
	r := newTestRetriever()
	base := r.Retrieve("quick fox", 5, nil, false)
	reranked := r.Retrieve("quick fox", 5, nil, true)
	if len(base) != len(reranked) {
		t.Fatalf("result count changed: %d vs %d", len(base), len(reranked))
	}
	baseByID := make(map[string]float64, len(base))
	for _, p := range base {
		baseByID[p.DocID] = p.Score
	}
	for _, p := range reranked {
		if p.Score < baseByID[p.DocID] {
			t.Errorf("rerank lowered %s: %v -> %v", p.DocID, baseByID[p.DocID], p.Score)
		}
	}
}

func TestRetrieveSnippetBounded(t *testing.T) {
	ix := index.New()
	long := strings.Repeat("searchable content with many words repeated over and over ", 30)
	ix.AddText("big", long, index.DocumentMeta{Source: "inline"})
	r := New(ix, testSearchConfig(), testRetrievalConfig())

	ps := r.Retrieve("searchable", 1, nil, false)
	if len(ps) != 1 {
		t.Fatal("no passage")
	}
	max := testRetrievalConfig().SnippetMaxChars + len("…")
	if len(ps[0].Snippet) > max {
		t.Errorf("snippet %d bytes, max %d", len(ps[0].Snippet), max)
	}
	if len(ps[0].Text) > testRetrievalConfig().PassageWindowChars {
		t.Errorf("passage %d chars, window %d", len(ps[0].Text), testRetrievalConfig().PassageWindowChars)
	}
}

func TestRetrieveTexts(t *testing.T) {
	r := newTestRetriever()
	texts := r.RetrieveTexts("lazy dog", 2, nil)
	if len(texts) == 0 {
		t.Fatal("no texts")
	}
	for _, txt := range texts {
		if txt == "" {
			t.Error("empty passage text")
		}
	}
}

func TestSearchSurvivesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	orig := buildCorpus()
	if err := persist.Save(orig, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := persist.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	before := New(orig, testSearchConfig(), testRetrievalConfig())
	after := New(loaded, testSearchConfig(), testRetrievalConfig())
	for _, q := range []string{"quick fox", "lazy dog", "qubits", "dog sleeps all day"} {
		a := before.Search(q, 10)
		b := after.Search(q, 10)
		if len(a) != len(b) {
			t.Fatalf("query %q: %d vs %d results", q, len(a), len(b))
		}
		for i := range a {
			if a[i].DocID != b[i].DocID {
				t.Errorf("query %q rank %d: %s vs %s", q, i, a[i].DocID, b[i].DocID)
			}
			if math.Abs(a[i].Score-b[i].Score) > 1e-9 {
				t.Errorf("query %q rank %d: score %v vs %v", q, i, a[i].Score, b[i].Score)
			}
		}
	}
}

func TestRetrieveCarriesMetadata(t *testing.T) {
	r := newTestRetriever()
	ps := r.Retrieve("qubits", 1, nil, false)
	if len(ps) != 1 {
		t.Fatal("no passage")
	}
	p := ps[0]
	if p.DocID != "d3" || p.Title != "Quantum Primer" || p.Source != "inline" {
		t.Errorf("metadata lost: %+v", p)
	}
	if len(p.Tags) != 1 || p.Tags[0] != "tech" {
		t.Errorf("tags lost: %v", p.Tags)
	}
}
