// Package ranker scores candidate documents with a length-normalised
// TF-IDF sum. Scoring is pure: it operates on postings snapshots handed in
// by the caller and never touches the index directly.
package ranker

import (
	"math"
	"sort"
)

// ScoredDoc is one ranked result.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Params carries the corpus statistics scoring depends on.
type Params struct {
	TotalDocs int
}

// Rank scores every document that shares at least one term with the query
// and returns up to limit results, best first. Both sides use log-damped
// term frequency, so a term repeated in the query counts more than once but
// sublinearly. Ties are broken by ascending doc id so results are
// deterministic; documents whose score is zero or below are excluded.
// limit <= 0 means unlimited.
func Rank(postingsPerTerm map[string]map[string]int, queryTF map[string]int, params Params, docLen func(string) int, limit int) []ScoredDoc {
	if len(postingsPerTerm) == 0 || len(queryTF) == 0 || params.TotalDocs == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for term, postings := range postingsPerTerm {
		qtf := queryTF[term]
		if qtf == 0 || len(postings) == 0 {
			continue
		}
		idf := computeIDF(params.TotalDocs, len(postings))
		wq := (1 + math.Log(float64(qtf))) * idf
		for docID, tf := range postings {
			if tf <= 0 {
				continue
			}
			wd := (1 + math.Log(float64(tf))) * idf
			scores[docID] += wq * wd
		}
	}

	out := make([]ScoredDoc, 0, len(scores))
	for docID, s := range scores {
		n := docLen(docID)
		if n < 1 {
			n = 1
		}
		s /= math.Sqrt(float64(n))
		if s <= 0 {
			continue
		}
		out = append(out, ScoredDoc{DocID: docID, Score: s})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// computeIDF is the smoothed inverse document frequency. The +1 terms keep
// it positive even when a term appears in every document.
func computeIDF(totalDocs, docFreq int) float64 {
	return math.Log(float64(totalDocs+1)/float64(docFreq+1)) + 1
}
