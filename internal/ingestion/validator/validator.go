// Package validator checks ingest requests before they reach the engine,
// collecting every field problem into one error so clients can fix a bad
// request in a single round trip.
package validator

import (
	"fmt"
	"sort"
	"strings"
)

const (
	maxDocIDLength = 512
	maxTitleLength = 1024
	maxTextLength  = 1 << 20
	maxTags        = 64
	maxTagLength   = 128
)

// ValidationError maps field names to what is wrong with them.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, f := range names {
		parts[i] = fmt.Sprintf("%s: %s", f, e.Fields[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateIngestRequest checks the ingest fields. Text must contain
// something other than whitespace because whitespace-only documents index
// no terms.
func ValidateIngestRequest(docID, text, title string, tags []string) error {
	fields := make(map[string]string)

	if strings.TrimSpace(text) == "" {
		fields["text"] = "must not be empty"
	} else if len(text) > maxTextLength {
		fields["text"] = fmt.Sprintf("must not exceed %d bytes", maxTextLength)
	}
	if len(docID) > maxDocIDLength {
		fields["doc_id"] = fmt.Sprintf("must not exceed %d characters", maxDocIDLength)
	}
	if len(title) > maxTitleLength {
		fields["title"] = fmt.Sprintf("must not exceed %d characters", maxTitleLength)
	}
	if len(tags) > maxTags {
		fields["tags"] = fmt.Sprintf("must not exceed %d tags", maxTags)
	} else {
		for i, t := range tags {
			if strings.TrimSpace(t) == "" {
				fields["tags"] = fmt.Sprintf("tag %d is empty", i)
				break
			}
			if len(t) > maxTagLength {
				fields["tags"] = fmt.Sprintf("tag %d exceeds %d characters", i, maxTagLength)
				break
			}
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
