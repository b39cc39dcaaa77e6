package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/groundbot/retrieval/internal/indexer/index"
	apperrors "github.com/groundbot/retrieval/pkg/errors"
)

func buildIndex() *index.Index {
	ix := index.New()
	ix.AddText("d1", "atomic rename keeps readers safe", index.DocumentMeta{Source: "inline", Title: "persistence", Tags: []string{"io"}})
	ix.AddText("d2", "the inverted index maps terms to documents", index.DocumentMeta{Source: "inline"})
	return ix
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	orig := buildIndex()
	if err := Save(orig, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.DocCount() != orig.DocCount() {
		t.Errorf("DocCount = %d, want %d", loaded.DocCount(), orig.DocCount())
	}
	if loaded.DF("index") != orig.DF("index") {
		t.Errorf("df(index) = %d, want %d", loaded.DF("index"), orig.DF("index"))
	}
	rec, ok := loaded.Doc("d1")
	if !ok {
		t.Fatal("d1 missing after load")
	}
	if rec.Meta.Title != "persistence" || len(rec.Meta.Tags) != 1 {
		t.Errorf("meta lost: %+v", rec.Meta)
	}
	if rec.Length != 5 {
		t.Errorf("len = %d, want 5", rec.Length)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	if err := Save(buildIndex(), path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Error("temp file left behind")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "index.json")
	if err := Save(buildIndex(), path); err != nil {
		t.Fatalf("Save into missing dir: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("index file not created: %v", err)
	}
}

func TestLoadMissingFileIsEmptyIndex(t *testing.T) {
	ix, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if ix.DocCount() != 0 {
		t.Errorf("DocCount = %d, want 0", ix.DocCount())
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatal("Load of corrupt file succeeded")
	}
	if !errors.Is(err, apperrors.ErrCorruptIndex) {
		t.Errorf("error = %v, want ErrCorruptIndex", err)
	}
}

func TestLoadIgnoresPersistedNDocs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	raw := map[string]any{
		"n_docs": 42,
		"docs": map[string]any{
			"d1": map[string]any{"text": "one document", "meta": map[string]any{"source": "inline"}},
		},
		"inv": map[string]any{"one": map[string]int{"d1": 1}, "document": map[string]int{"d1": 1}},
		"df":  map[string]int{"one": 1, "document": 1},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	ix, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ix.DocCount() != 1 {
		t.Errorf("DocCount = %d, want 1 (stored n_docs must be ignored)", ix.DocCount())
	}
}

func TestCacheHitReturnsSameIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := Save(buildIndex(), path); err != nil {
		t.Fatal(err)
	}

	c := NewCache()
	first, err := c.Load(path)
	if err != nil {
		t.Fatalf("first Load: %v", err)
	}
	second, err := c.Load(path)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if first != second {
		t.Error("unchanged file reparsed")
	}
}

func TestCacheInvalidateForcesReparse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := Save(buildIndex(), path); err != nil {
		t.Fatal(err)
	}

	c := NewCache()
	first, _ := c.Load(path)
	c.Invalidate(path)
	second, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load after Invalidate: %v", err)
	}
	if first == second {
		t.Error("Invalidate did not drop the entry")
	}
}

func TestCacheDetectsModifiedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := Save(buildIndex(), path); err != nil {
		t.Fatal(err)
	}

	c := NewCache()
	first, _ := c.Load(path)

	bigger := buildIndex()
	bigger.AddText("d3", "a third document appears", index.DocumentMeta{Source: "inline"})
	if err := Save(bigger, path); err != nil {
		t.Fatal(err)
	}
	// Coarse mtime resolution on some filesystems; size changed anyway,
	// but nudge the clock to be safe.
	past := time.Now().Add(-time.Hour)
	_ = os.Chtimes(path, past, past)

	second, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load after rewrite: %v", err)
	}
	if first == second {
		t.Error("modified file served from cache")
	}
	if second.DocCount() != 3 {
		t.Errorf("DocCount = %d, want 3", second.DocCount())
	}
}

func TestCacheMissingFileNotCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	c := NewCache()

	empty, err := c.Load(path)
	if err != nil || empty.DocCount() != 0 {
		t.Fatalf("Load missing = (%v, %v)", empty, err)
	}

	if err := Save(buildIndex(), path); err != nil {
		t.Fatal(err)
	}
	loaded, err := c.Load(path)
	if err != nil {
		t.Fatalf("Load after create: %v", err)
	}
	if loaded.DocCount() == 0 {
		t.Error("file created after a miss was not picked up")
	}
}
