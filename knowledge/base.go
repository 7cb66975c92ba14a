package knowledge

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/logging"
)

// VectorDB stores document chunks and finds the closest ones to a query.
type VectorDB interface {
	Upsert(ctx context.Context, docs []Document) error
	// Search returns at most limit hits whose metadata matches every filter.
	Search(ctx context.Context, query string, limit int, filters map[string]string) ([]core.SearchResult, error)
	Count(ctx context.Context) (int, error)
	// Drop removes every document.
	Drop(ctx context.Context) error
}

// Source is a file or directory to load, with metadata attached to every
// chunk read from it.
type Source struct {
	Path     string            `yaml:"path" json:"path"`
	Metadata map[string]string `yaml:"metadata" json:"metadata,omitempty"`
}

// LoadOptions controls Base.Load.
type LoadOptions struct {
	// Recreate drops existing documents first.
	Recreate bool
	// Upsert loads even when the database already holds documents.
	Upsert bool
}

// Options configures a Base.
type Options struct {
	Sources []Source
	Reader  Reader
	// Extensions restricts directory walks. Defaults to .txt, .md and .pdf.
	Extensions []string
	// NumDocuments is the default search limit.
	NumDocuments int
	Logger       logging.Logger
}

// Base is a searchable knowledge base backed by a VectorDB.
type Base struct {
	db      VectorDB
	sources []Source
	reader  Reader
	exts    map[string]bool
	limit   int
	logger  logging.Logger
}

var _ core.KnowledgeSearcher = (*Base)(nil)

// New creates a knowledge base.
func New(db VectorDB, optFns ...func(o *Options)) *Base {
	opts := Options{
		Reader:       AutoReader{},
		Extensions:   []string{".txt", ".md", ".pdf"},
		NumDocuments: 5,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Base{
		db:      db,
		sources: opts.Sources,
		reader:  opts.Reader,
		exts:    exts,
		limit:   opts.NumDocuments,
		logger:  opts.Logger,
	}
}

// Load reads every source into the database and returns the number of chunks
// written. Without Recreate or Upsert a non-empty database is left as is.
func (b *Base) Load(ctx context.Context, opts LoadOptions) (int, error) {
	if opts.Recreate {
		if err := b.db.Drop(ctx); err != nil {
			return 0, fmt.Errorf("drop knowledge: %w", err)
		}
	} else if !opts.Upsert {
		n, err := b.db.Count(ctx)
		if err != nil {
			return 0, err
		}

		if n > 0 {
			b.logger.Info("knowledge.load.skipped", "documents", n)
			return 0, nil
		}
	}

	total := 0

	for _, src := range b.sources {
		docs, err := b.readSource(ctx, src)
		if err != nil {
			return total, err
		}

		if len(docs) == 0 {
			continue
		}

		if err := b.db.Upsert(ctx, docs); err != nil {
			return total, fmt.Errorf("upsert %s: %w", src.Path, err)
		}

		total += len(docs)
		b.logger.Info("knowledge.source.loaded", "path", src.Path, "chunks", len(docs))
	}

	return total, nil
}

// LoadDocuments upserts already built documents.
func (b *Base) LoadDocuments(ctx context.Context, docs ...Document) error {
	return b.db.Upsert(ctx, docs)
}

func (b *Base) readSource(ctx context.Context, src Source) ([]Document, error) {
	info, err := os.Stat(src.Path)
	if err != nil {
		return nil, fmt.Errorf("knowledge source: %w", err)
	}

	var paths []string

	if info.IsDir() {
		err := filepath.WalkDir(src.Path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && b.exts[strings.ToLower(filepath.Ext(p))] {
				paths = append(paths, p)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", src.Path, err)
		}

		sort.Strings(paths)
	} else {
		paths = []string{src.Path}
	}

	var docs []Document

	for _, p := range paths {
		read, err := b.reader.Read(ctx, p)
		if err != nil {
			return nil, err
		}

		for i := range read {
			if read[i].Metadata == nil {
				read[i].Metadata = map[string]string{}
			}

			maps.Copy(read[i].Metadata, src.Metadata)
		}

		docs = append(docs, read...)
	}

	return docs, nil
}

// Search returns the chunks closest to query. A limit <= 0 uses the base
// default.
func (b *Base) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("knowledge search query is empty")
	}

	if limit <= 0 {
		limit = b.limit
	}

	res, err := b.db.Search(ctx, query, limit, filters)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}

	b.logger.Debug("knowledge.search", "query", query, "hits", len(res), "filters", filters)

	return res, nil
}

// SearchKnowledge implements core.KnowledgeSearcher.
func (b *Base) SearchKnowledge(ctx context.Context, query string, limit int, filters map[string]string) ([]core.SearchResult, error) {
	return b.Search(ctx, query, limit, filters)
}

// Count returns the number of stored chunks.
func (b *Base) Count(ctx context.Context) (int, error) { return b.db.Count(ctx) }
