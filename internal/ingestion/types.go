// Package ingestion defines the write-side API types shared by the HTTP
// handler and its validator.
package ingestion

// IngestRequest is the body of POST /api/v1/documents. DocID is optional;
// the server generates one when absent.
type IngestRequest struct {
	DocID  string   `json:"doc_id,omitempty"`
	Text   string   `json:"text"`
	Title  string   `json:"title,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Source string   `json:"source,omitempty"`
}

// IngestResponse acknowledges an accepted document.
type IngestResponse struct {
	DocID  string `json:"doc_id"`
	Status string `json:"status"`
}
