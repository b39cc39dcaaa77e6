// Package persist serialises the index to a single JSON file and loads it
// back. Writes go to a temp file that is fsynced and renamed into place, so
// readers never observe a partially written index.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/groundbot/retrieval/internal/indexer/index"
	apperrors "github.com/groundbot/retrieval/pkg/errors"
)

// fileIndex is the on-disk interchange format. Field names match the
// original corpus files so existing indexes round-trip.
type fileIndex struct {
	NDocs   int                       `json:"n_docs"`
	Docs    map[string]docEntry       `json:"docs"`
	Inv     map[string]map[string]int `json:"inv"`
	DF      map[string]int            `json:"df"`
	SavedAt int64                     `json:"saved_at,omitempty"`
}

type docEntry struct {
	Text string             `json:"text"`
	Len  int                `json:"len,omitempty"`
	Meta index.DocumentMeta `json:"meta"`
}

// Save writes the index to path atomically.
func Save(ix *index.Index, path string) error {
	st := ix.Snapshot()
	out := fileIndex{
		NDocs:   len(st.Docs),
		Docs:    make(map[string]docEntry, len(st.Docs)),
		Inv:     st.Inv,
		DF:      st.DF,
		SavedAt: time.Now().Unix(),
	}
	for id, rec := range st.Docs {
		out.Docs[id] = docEntry{
			Text: rec.Text,
			Len:  rec.Length,
			Meta: rec.Meta,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

// Load reads an index from path. A missing file is a normal cold start and
// returns a fresh empty index; a file that exists but cannot be parsed is a
// fatal ErrCorruptIndex. The document count is recomputed from the loaded
// documents rather than trusted from the file.
func Load(path string) (*index.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return index.New(), nil
		}
		return nil, fmt.Errorf("reading index file %s: %w", path, err)
	}

	var in fileIndex
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptIndex, http.StatusInternalServerError,
			"parsing index file %s: %v", path, err)
	}

	st := index.State{
		Docs: make(map[string]index.DocumentRecord, len(in.Docs)),
		Inv:  in.Inv,
		DF:   in.DF,
	}
	for id, d := range in.Docs {
		st.Docs[id] = index.DocumentRecord{
			Meta:   d.Meta,
			Text:   d.Text,
			Length: d.Len,
		}
	}
	return index.FromState(st), nil
}
