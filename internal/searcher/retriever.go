// Package searcher turns queries into ranked documents and focused
// passages. It reads the index through its concurrent accessors and never
// mutates it.
package searcher

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/groundbot/retrieval/internal/indexer/index"
	"github.com/groundbot/retrieval/internal/indexer/tokenizer"
	"github.com/groundbot/retrieval/internal/searcher/passage"
	"github.com/groundbot/retrieval/internal/searcher/ranker"
	"github.com/groundbot/retrieval/pkg/config"
	"github.com/groundbot/retrieval/pkg/logger"
)

// Passage is one retrieval result: a scored window of a document's text
// with enough context to cite it.
type Passage struct {
	DocID   string   `json:"doc_id"`
	Source  string   `json:"source"`
	Title   string   `json:"title,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Score   float64  `json:"score"`
	Start   int      `json:"start"`
	End     int      `json:"end"`
	Text    string   `json:"text"`
	Snippet string   `json:"snippet"`
}

// Filters narrow retrieval to documents matching all conditions.
type Filters struct {
	TitleContains string   `json:"title_contains,omitempty"`
	RequireTags   []string `json:"require_tags,omitempty"`
}

// Retriever runs document search and passage extraction over an index.
type Retriever struct {
	idx       *index.Index
	searchCfg config.SearchConfig
	cfg       config.RetrievalConfig
	logger    *slog.Logger
}

// New builds a retriever over idx with the given tuning.
func New(idx *index.Index, searchCfg config.SearchConfig, cfg config.RetrievalConfig) *Retriever {
	return &Retriever{
		idx:       idx,
		searchCfg: searchCfg,
		cfg:       cfg,
		logger:    logger.WithComponent("searcher"),
	}
}

// Search returns the top-k documents for query by TF-IDF score. An empty
// query or empty corpus yields no results.
func (r *Retriever) Search(query string, k int) []ranker.ScoredDoc {
	toks := tokenizer.Tokenize(query)
	total := r.idx.DocCount()
	if len(toks) == 0 || total == 0 {
		return nil
	}

	queryTF := tokenizer.Counts(toks)
	postings := make(map[string]map[string]int, len(queryTF))
	for term := range queryTF {
		if p := r.idx.Postings(term); p != nil {
			postings[term] = p
		}
	}
	return ranker.Rank(postings, queryTF, ranker.Params{TotalDocs: total}, r.idx.DocLength, k)
}

// Retrieve returns up to k passages for query. Candidate documents are
// oversampled beyond k so that filtering and reranking still leave enough
// results, then each surviving document contributes one passage.
func (r *Retriever) Retrieve(query string, k int, filters *Filters, rerank bool) []Passage {
	if k <= 0 {
		k = r.searchCfg.DefaultLimit
	}
	qTokens := tokenizer.Tokenize(query)
	if len(qTokens) == 0 || r.idx.DocCount() == 0 {
		return nil
	}

	overshoot := k * r.searchCfg.OvershootFactor
	if overshoot < k {
		overshoot = k
	}
	hits := r.Search(query, overshoot)

	window := passage.Window{
		Chars:   r.cfg.PassageWindowChars,
		Overlap: r.cfg.PassageOverlapChars,
	}
	out := make([]Passage, 0, len(hits))
	for _, h := range hits {
		doc, ok := r.idx.Doc(h.DocID)
		if !ok {
			continue
		}
		if filters != nil && !matches(doc.Meta, filters) {
			continue
		}
		start, end, text := passage.Extract(doc.Text, qTokens, window)
		score := h.Score
		if rerank {
			score += passage.ProximityBonus(text, qTokens, r.cfg.RerankMaxBonus, r.cfg.RerankDistanceCap)
		}
		out = append(out, Passage{
			DocID:   h.DocID,
			Source:  doc.Meta.Source,
			Title:   doc.Meta.Title,
			Tags:    doc.Meta.Tags,
			Score:   score,
			Start:   start,
			End:     end,
			Text:    text,
			Snippet: passage.Snippet(text, r.cfg.SnippetMaxChars),
		})
	}
	if len(out) == 0 {
		return nil
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	if len(out) > k {
		out = out[:k]
	}
	r.logger.Debug("retrieve complete", "query_terms", len(qTokens), "passages", len(out))
	return out
}

// RetrieveTexts returns only the passage texts, using the configured
// rerank default.
func (r *Retriever) RetrieveTexts(query string, k int, filters *Filters) []string {
	ps := r.Retrieve(query, k, filters, r.cfg.EnableRerank)
	texts := make([]string, len(ps))
	for i, p := range ps {
		texts[i] = p.Text
	}
	return texts
}

// matches applies the filter conditions: case-insensitive title substring
// and a required-tags superset check, both of which must hold.
func matches(meta index.DocumentMeta, f *Filters) bool {
	if want := strings.ToLower(strings.TrimSpace(f.TitleContains)); want != "" {
		if !strings.Contains(strings.ToLower(meta.Title), want) {
			return false
		}
	}
	if len(f.RequireTags) > 0 {
		have := make(map[string]bool, len(meta.Tags))
		for _, t := range meta.Tags {
			have[strings.ToLower(t)] = true
		}
		for _, t := range f.RequireTags {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if !have[t] {
				return false
			}
		}
	}
	return true
}
