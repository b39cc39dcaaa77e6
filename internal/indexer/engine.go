// Package indexer owns the ingestion side of the system: adding inline
// text, ingesting files with change detection, bulk folder builds, and
// persisting the index through the load cache.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/groundbot/retrieval/internal/indexer/index"
	"github.com/groundbot/retrieval/internal/indexer/persist"
	"github.com/groundbot/retrieval/pkg/config"
	"github.com/groundbot/retrieval/pkg/logger"
)

// Engine wraps the index with file and folder ingestion plus persistence.
// It is safe for concurrent use; all index mutation goes through the
// index's own lock.
type Engine struct {
	idx    *index.Index
	cfg    config.IndexConfig
	cache  *persist.Cache
	logger *slog.Logger
}

// FileOptions override the defaults applied when ingesting a single file.
type FileOptions struct {
	DocID string
	Title string
	Tags  []string
}

// NewEngine loads the index at cfg.Path (an empty index when the file does
// not exist yet) and returns an engine around it.
func NewEngine(cfg config.IndexConfig, cache *persist.Cache) (*Engine, error) {
	if cache == nil {
		cache = persist.NewCache()
	}
	ix, err := cache.Load(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	return &Engine{
		idx:    ix,
		cfg:    cfg,
		cache:  cache,
		logger: logger.WithComponent("indexer"),
	}, nil
}

// Index exposes the underlying index for the search side.
func (e *Engine) Index() *index.Index {
	return e.idx
}

// DocCount returns the number of indexed documents.
func (e *Engine) DocCount() int {
	return e.idx.DocCount()
}

// IngestText indexes raw text. An empty docID gets a generated one; the
// assigned id is returned either way.
func (e *Engine) IngestText(docID, text string, meta index.DocumentMeta) string {
	if docID == "" {
		docID = uuid.NewString()
	}
	if meta.Source == "" {
		meta.Source = "inline"
	}
	e.idx.AddText(docID, text, meta)
	e.logger.Debug("ingested text", "doc_id", docID, "chars", len(text))
	return docID
}

// IngestFile reads path and indexes its contents. When the same path was
// ingested before and neither its content hash nor its mtime changed, the
// existing document is left untouched and the call is a cheap no-op.
func (e *Engine) IngestFile(path string, opts FileOptions) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("reading file %s: %w", abs, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stating file %s: %w", abs, err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	modTime := fi.ModTime().UnixNano()

	docID := opts.DocID
	if docID == "" {
		docID = abs
	}
	if rec, ok := e.idx.Doc(docID); ok {
		if rec.Meta.Hash == hash && rec.Meta.ModTime == modTime {
			e.logger.Debug("file unchanged, skipping", "doc_id", docID, "path", abs)
			return docID, nil
		}
	}

	title := opts.Title
	if title == "" {
		title = filepath.Base(abs)
	}
	e.idx.AddText(docID, string(data), index.DocumentMeta{
		Source:  abs,
		Title:   title,
		Tags:    opts.Tags,
		ModTime: modTime,
		Hash:    hash,
	})
	e.logger.Debug("ingested file", "doc_id", docID, "path", abs, "bytes", len(data))
	return docID, nil
}

// BuildFromFolder walks root and ingests every file matching the include
// globs and no exclude glob. Unreadable or oversized files are logged and
// skipped; a single bad file never aborts the build. Returns the number of
// files ingested (including unchanged skips).
func (e *Engine) BuildFromFolder(ctx context.Context, root string, include, exclude []string, recursive bool) (int, error) {
	if len(include) == 0 {
		include = e.cfg.IncludeGlobs
	}
	if len(exclude) == 0 {
		exclude = e.cfg.ExcludeGlobs
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, fmt.Errorf("resolving folder %s: %w", root, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	workers := e.cfg.BuildWorkers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	var ingested atomic.Int64
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			e.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive && path != absRoot {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matchesGlobs(rel, include) {
			return nil
		}
		if matchesGlobs(rel, exclude) {
			return nil
		}
		if e.cfg.MaxFileSize > 0 {
			if fi, err := d.Info(); err == nil && fi.Size() > e.cfg.MaxFileSize {
				e.logger.Warn("skipping oversized file", "path", path, "size", fi.Size())
				return nil
			}
		}

		p := path
		g.Go(func() error {
			if _, err := e.IngestFile(p, FileOptions{}); err != nil {
				e.logger.Warn("skipping file", "path", p, "error", err)
				return nil
			}
			ingested.Add(1)
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return int(ingested.Load()), err
	}
	if walkErr != nil {
		return int(ingested.Load()), walkErr
	}
	e.logger.Info("folder build complete", "root", absRoot, "ingested", ingested.Load())
	return int(ingested.Load()), nil
}

// matchesGlobs reports whether the slash-separated relative path matches
// any pattern, either against the full path or its basename so that plain
// patterns like "*.md" apply at every depth.
func matchesGlobs(rel string, patterns []string) bool {
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pat, base); err == nil && ok {
			return true
		}
	}
	return false
}

// Remove deletes a document from the index. Unknown ids are a no-op.
func (e *Engine) Remove(docID string) {
	e.idx.Remove(docID)
	e.logger.Debug("removed document", "doc_id", docID)
}

// Save persists the index to the configured path and invalidates the load
// cache entry so a subsequent Load reparses the fresh file.
func (e *Engine) Save() error {
	if err := persist.Save(e.idx, e.cfg.Path); err != nil {
		return err
	}
	e.cache.Invalidate(e.cfg.Path)
	e.logger.Info("index saved", "path", e.cfg.Path, "docs", e.idx.DocCount())
	return nil
}

// InvalidateCache drops the load-cache entry for the configured index path.
func (e *Engine) InvalidateCache() {
	e.cache.Invalidate(e.cfg.Path)
}
