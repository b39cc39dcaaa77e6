package validator

import (
	"strings"
	"testing"
)

func TestValidRequest(t *testing.T) {
	if err := ValidateIngestRequest("doc-1", "some document text", "A Title", []string{"tag1", "tag2"}); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	if err := ValidateIngestRequest("", "text only", "", nil); err != nil {
		t.Errorf("minimal request rejected: %v", err)
	}
}

func TestEmptyTextRejected(t *testing.T) {
	for _, text := range []string{"", "   ", "\t\n"} {
		err := ValidateIngestRequest("", text, "", nil)
		if err == nil {
			t.Errorf("text %q accepted", text)
			continue
		}
		verr, ok := err.(*ValidationError)
		if !ok {
			t.Fatalf("error type = %T", err)
		}
		if _, present := verr.Fields["text"]; !present {
			t.Errorf("text field not flagged: %v", verr.Fields)
		}
	}
}

func TestOversizedFieldsRejected(t *testing.T) {
	err := ValidateIngestRequest(
		strings.Repeat("i", maxDocIDLength+1),
		strings.Repeat("t", maxTextLength+1),
		strings.Repeat("x", maxTitleLength+1),
		nil,
	)
	if err == nil {
		t.Fatal("oversized request accepted")
	}
	verr := err.(*ValidationError)
	for _, f := range []string{"doc_id", "text", "title"} {
		if _, ok := verr.Fields[f]; !ok {
			t.Errorf("field %s not flagged: %v", f, verr.Fields)
		}
	}
}

func TestBadTagsRejected(t *testing.T) {
	if err := ValidateIngestRequest("", "text", "", []string{"ok", "  "}); err == nil {
		t.Error("blank tag accepted")
	}
	if err := ValidateIngestRequest("", "text", "", []string{strings.Repeat("t", maxTagLength+1)}); err == nil {
		t.Error("oversized tag accepted")
	}
	many := make([]string, maxTags+1)
	for i := range many {
		many[i] = "tag"
	}
	if err := ValidateIngestRequest("", "text", "", many); err == nil {
		t.Error("too many tags accepted")
	}
}

func TestErrorMessageListsFields(t *testing.T) {
	err := ValidateIngestRequest("", "", strings.Repeat("x", maxTitleLength+1), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "text") || !strings.Contains(msg, "title") {
		t.Errorf("message missing fields: %q", msg)
	}
}
