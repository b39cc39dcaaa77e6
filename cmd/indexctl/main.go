// Command indexctl manages an index file from the command line: bulk
// folder builds, ad-hoc searches, passage retrieval, and stats.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/groundbot/retrieval/internal/indexer"
	"github.com/groundbot/retrieval/internal/searcher"
	"github.com/groundbot/retrieval/pkg/config"
	"github.com/groundbot/retrieval/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "retrieve":
		err = runRetrieve(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "indexctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: indexctl <command> [flags]

commands:
  build     ingest a folder of documents and save the index
  search    rank documents for a query
  retrieve  extract top passages for a query
  stats     print index statistics`)
}

func newEngine(indexPath string) (*indexer.Engine, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	logger.Setup("warn", "text")
	if indexPath != "" {
		cfg.Index.Path = indexPath
	}
	return indexer.NewEngine(cfg.Index, nil)
}

func runBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	root := fs.String("root", ".", "folder to ingest")
	out := fs.String("index", "data/index.json", "index file path")
	include := fs.String("include", "", "comma-separated include globs (default *.txt,*.md)")
	exclude := fs.String("exclude", "", "comma-separated exclude globs")
	recursive := fs.Bool("recursive", true, "descend into subfolders")
	fs.Parse(args)

	eng, err := newEngine(*out)
	if err != nil {
		return err
	}
	n, err := eng.BuildFromFolder(context.Background(), *root, splitList(*include), splitList(*exclude), *recursive)
	if err != nil {
		return err
	}
	if err := eng.Save(); err != nil {
		return err
	}
	fmt.Printf("ingested %d files, %d documents indexed, saved to %s\n", n, eng.DocCount(), *out)
	return nil
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	indexPath := fs.String("index", "data/index.json", "index file path")
	query := fs.String("q", "", "query string")
	k := fs.Int("k", 5, "number of results")
	fs.Parse(args)

	eng, err := newEngine(*indexPath)
	if err != nil {
		return err
	}
	cfg, _ := config.Load("")
	r := searcher.New(eng.Index(), cfg.Search, cfg.Retrieval)
	for _, hit := range r.Search(*query, *k) {
		fmt.Printf("%.4f  %s\n", hit.Score, hit.DocID)
	}
	return nil
}

func runRetrieve(args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	indexPath := fs.String("index", "data/index.json", "index file path")
	query := fs.String("q", "", "query string")
	k := fs.Int("k", 5, "number of passages")
	titleContains := fs.String("title-contains", "", "case-insensitive title substring filter")
	requireTags := fs.String("require-tags", "", "comma-separated tags that must all be present")
	rerank := fs.Bool("rerank", true, "rerank passages by term proximity")
	fs.Parse(args)

	eng, err := newEngine(*indexPath)
	if err != nil {
		return err
	}
	cfg, _ := config.Load("")
	r := searcher.New(eng.Index(), cfg.Search, cfg.Retrieval)

	var filters *searcher.Filters
	tags := splitList(*requireTags)
	if *titleContains != "" || len(tags) > 0 {
		filters = &searcher.Filters{TitleContains: *titleContains, RequireTags: tags}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Retrieve(*query, *k, filters, *rerank))
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	indexPath := fs.String("index", "data/index.json", "index file path")
	fs.Parse(args)

	eng, err := newEngine(*indexPath)
	if err != nil {
		return err
	}
	fmt.Printf("documents: %d\nterms:     %d\n", eng.DocCount(), eng.Index().TermCount())
	return nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
