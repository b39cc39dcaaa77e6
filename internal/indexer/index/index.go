// Package index implements the in-memory document store, inverted index,
// and document-frequency table. All structures live behind one
// reader/writer lock: reads run concurrently, writes are exclusive, and the
// df table is updated together with the postings so the two never diverge.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/groundbot/retrieval/internal/indexer/tokenizer"
)

// Index is the single-corpus inverted index.
type Index struct {
	mu   sync.RWMutex
	docs map[string]*DocumentRecord
	inv  map[string]map[string]int
	df   map[string]int
}

// New returns an empty index.
func New() *Index {
	return &Index{
		docs: make(map[string]*DocumentRecord),
		inv:  make(map[string]map[string]int),
		df:   make(map[string]int),
	}
}

// AddText indexes text under docID. An existing document with the same id
// is fully removed first, so re-ingestion is idempotent and never
// double-counts. Text that yields no tokens stores nothing: zero-length
// documents would skew length normalisation.
func (ix *Index) AddText(docID, text string, meta DocumentMeta) {
	if strings.TrimSpace(text) == "" {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.docs[docID]; exists {
		ix.removeLocked(docID)
	}

	toks := tokenizer.Tokenize(text)
	if len(toks) == 0 {
		return
	}

	for term, cnt := range tokenizer.Counts(toks) {
		bucket, ok := ix.inv[term]
		if !ok {
			bucket = make(map[string]int)
			ix.inv[term] = bucket
		}
		bucket[docID] = cnt
		ix.df[term] = len(bucket)
	}

	meta.DocID = docID
	ix.docs[docID] = &DocumentRecord{
		Meta:   meta,
		Text:   text,
		Length: len(toks),
	}
}

// Remove deletes a document and every posting that references it. Terms
// whose postings become empty are dropped from both inv and df, so no
// dangling entries remain. Removing an unknown id is a no-op.
func (ix *Index) Remove(docID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(docID)
}

func (ix *Index) removeLocked(docID string) {
	rec, ok := ix.docs[docID]
	if !ok {
		return
	}
	for term := range tokenizer.Counts(tokenizer.Tokenize(rec.Text)) {
		bucket, ok := ix.inv[term]
		if !ok {
			continue
		}
		delete(bucket, docID)
		if len(bucket) == 0 {
			delete(ix.inv, term)
			delete(ix.df, term)
		} else {
			ix.df[term] = len(bucket)
		}
	}
	delete(ix.docs, docID)
}

// DocCount returns the number of stored documents.
func (ix *Index) DocCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// TermCount returns the vocabulary size.
func (ix *Index) TermCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.inv)
}

// Doc returns a copy of the record for docID.
func (ix *Index) Doc(docID string) (DocumentRecord, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.docs[docID]
	if !ok {
		return DocumentRecord{}, false
	}
	return *rec, true
}

// DocLength returns the token count of docID, or 0 when unknown.
func (ix *Index) DocLength(docID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if rec, ok := ix.docs[docID]; ok {
		return rec.Length
	}
	return 0
}

// DF returns the document frequency of a term.
func (ix *Index) DF(term string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.df[term]
}

// Postings returns a copy of the doc→tf postings for a term, or nil when
// the term is not indexed.
func (ix *Index) Postings(term string) map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	bucket, ok := ix.inv[term]
	if !ok {
		return nil
	}
	out := make(map[string]int, len(bucket))
	for docID, tf := range bucket {
		out[docID] = tf
	}
	return out
}

// DocIDs returns all document ids in lexical order.
func (ix *Index) DocIDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ids := make([]string, 0, len(ix.docs))
	for id := range ix.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot deep-copies the index state for serialisation.
func (ix *Index) Snapshot() State {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	st := State{
		Docs: make(map[string]DocumentRecord, len(ix.docs)),
		Inv:  make(map[string]map[string]int, len(ix.inv)),
		DF:   make(map[string]int, len(ix.df)),
	}
	for id, rec := range ix.docs {
		st.Docs[id] = *rec
	}
	for term, bucket := range ix.inv {
		cp := make(map[string]int, len(bucket))
		for docID, tf := range bucket {
			cp[docID] = tf
		}
		st.Inv[term] = cp
	}
	for term, n := range ix.df {
		st.DF[term] = n
	}
	return st
}

// FromState rebuilds an index from persisted state. The df table is
// recomputed from the postings and document lengths are re-derived when
// absent, so partially stale files still load into a consistent index.
func FromState(st State) *Index {
	ix := New()
	for id, rec := range st.Docs {
		r := rec
		if r.Length == 0 {
			r.Length = len(tokenizer.Tokenize(r.Text))
		}
		r.Meta.DocID = id
		ix.docs[id] = &r
	}
	for term, bucket := range st.Inv {
		if len(bucket) == 0 {
			continue
		}
		cp := make(map[string]int, len(bucket))
		for docID, tf := range bucket {
			cp[docID] = tf
		}
		ix.inv[term] = cp
		ix.df[term] = len(cp)
	}
	return ix
}
