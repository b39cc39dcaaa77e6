package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/groundbot/retrieval/internal/indexer/index"
	"github.com/groundbot/retrieval/internal/searcher"
	"github.com/groundbot/retrieval/pkg/config"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ix := index.New()
	ix.AddText("d1", "The quick brown fox jumps over the lazy dog.",
		index.DocumentMeta{Source: "inline", Title: "Foxes", Tags: []string{"animals"}})
	ix.AddText("d2", "Dogs are loyal and a lazy dog sleeps all day.",
		index.DocumentMeta{Source: "inline", Title: "Dogs", Tags: []string{"animals", "pets"}})

	searchCfg := config.SearchConfig{DefaultLimit: 5, MaxResults: 10, OvershootFactor: 3}
	retrievalCfg := config.RetrievalConfig{
		PassageWindowChars:  350,
		PassageOverlapChars: 60,
		SnippetMaxChars:     220,
		EnableRerank:        true,
		RerankMaxBonus:      0.25,
		RerankDistanceCap:   10,
	}
	r := searcher.New(ix, searchCfg, retrievalCfg)
	h := New(r, nil, searchCfg, retrievalCfg, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/retrieve", h.Retrieve)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, rawURL string, out any) int {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp.StatusCode
}

func TestSearchEndpoint(t *testing.T) {
	srv := newServer(t)
	var out searchResponse
	code := getJSON(t, srv.URL+"/api/v1/search?q=lazy+dog", &out)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if out.Total != 2 || len(out.Results) != 2 {
		t.Errorf("total = %d, results = %d", out.Total, len(out.Results))
	}
}

func TestSearchEmptyQueryIsOK(t *testing.T) {
	srv := newServer(t)
	var out searchResponse
	code := getJSON(t, srv.URL+"/api/v1/search?q=", &out)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if out.Total != 0 || out.Results == nil {
		t.Errorf("empty query should yield an empty list: %+v", out)
	}
}

func TestSearchLimitClamped(t *testing.T) {
	srv := newServer(t)
	var out searchResponse
	getJSON(t, srv.URL+"/api/v1/search?q=dog&limit=99999", &out)
	if len(out.Results) > 10 {
		t.Errorf("limit not clamped to max: %d", len(out.Results))
	}
}

func TestRetrieveEndpoint(t *testing.T) {
	srv := newServer(t)
	var out retrieveResponse
	code := getJSON(t, srv.URL+"/api/v1/retrieve?q=lazy+dog&k=1", &out)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if out.Total != 1 || len(out.Passages) != 1 {
		t.Fatalf("total = %d, passages = %d", out.Total, len(out.Passages))
	}
	p := out.Passages[0]
	if p.Text == "" || p.Snippet == "" || p.Score <= 0 {
		t.Errorf("incomplete passage: %+v", p)
	}
}

func TestRetrieveFilters(t *testing.T) {
	srv := newServer(t)
	var out retrieveResponse
	q := url.Values{}
	q.Set("q", "lazy dog")
	q.Set("require_tags", "animals,pets")
	getJSON(t, srv.URL+"/api/v1/retrieve?"+q.Encode(), &out)
	if out.Total != 1 || out.Passages[0].DocID != "d2" {
		t.Errorf("tag filter: %+v", out)
	}

	q.Set("require_tags", "")
	q.Set("title_contains", "foxes")
	out = retrieveResponse{}
	getJSON(t, srv.URL+"/api/v1/retrieve?"+q.Encode(), &out)
	if out.Total != 1 || out.Passages[0].DocID != "d1" {
		t.Errorf("title filter: %+v", out)
	}
}

func TestRetrieveEmptyQueryIsOK(t *testing.T) {
	srv := newServer(t)
	var out retrieveResponse
	code := getJSON(t, srv.URL+"/api/v1/retrieve?q=", &out)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if out.Total != 0 || out.Passages == nil {
		t.Errorf("want empty list, got %+v", out)
	}
}

func TestRetrieveRerankParam(t *testing.T) {
	srv := newServer(t)
	var plain, reranked retrieveResponse
	getJSON(t, srv.URL+"/api/v1/retrieve?q=lazy+dog&rerank=0", &plain)
	getJSON(t, srv.URL+"/api/v1/retrieve?q=lazy+dog&rerank=1", &reranked)
	if len(plain.Passages) != len(reranked.Passages) {
		t.Fatalf("result counts differ: %d vs %d", len(plain.Passages), len(reranked.Passages))
	}
	base := make(map[string]float64)
	for _, p := range plain.Passages {
		base[p.DocID] = p.Score
	}
	for _, p := range reranked.Passages {
		if p.Score < base[p.DocID] {
			t.Errorf("rerank lowered score for %s", p.DocID)
		}
	}
}

func TestCacheEndpointsWithoutRedis(t *testing.T) {
	srv := newServer(t)
	var stats struct {
		Enabled bool `json:"enabled"`
	}
	if code := getJSON(t, srv.URL+"/api/v1/cache/stats", &stats); code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	if stats.Enabled {
		t.Error("cache reported enabled with no redis")
	}

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("invalidate status = %d", resp.StatusCode)
	}
}
