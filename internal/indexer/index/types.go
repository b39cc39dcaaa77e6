package index

// DocumentMeta describes a document's origin. It is immutable once created
// and replaced wholesale when the same doc id is re-ingested. ModTime and
// Hash are only set for file-backed documents and drive the unchanged-file
// skip during folder builds.
type DocumentMeta struct {
	DocID   string   `json:"doc_id"`
	Source  string   `json:"source"`
	Title   string   `json:"title,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	ModTime int64    `json:"mtime,omitempty"`
	Hash    string   `json:"hash,omitempty"`
}

// DocumentRecord couples a document's raw text with its meta and token
// count. The inverted index never stores text, only postings derived from
// it; the text lives here for passage extraction.
type DocumentRecord struct {
	Meta   DocumentMeta `json:"meta"`
	Text   string       `json:"text"`
	Length int          `json:"len"`
}

// State is a deep copy of the index's internal structures, used by the
// persistence layer. Docs maps doc id to record, Inv maps term to per-doc
// term frequency, DF maps term to distinct-document count.
type State struct {
	Docs map[string]DocumentRecord
	Inv  map[string]map[string]int
	DF   map[string]int
}
