// Package chromem implements knowledge.VectorDB on chromem-go, an embedded
// vector database with optional on-disk persistence.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"runtime"
	"strings"
	"sync"
	"unicode"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/knowledge"
	"github.com/Yaaesthetic/agno/logging"
)

// Options configures a DB.
type Options struct {
	// Collection name. Defaults to "knowledge".
	Collection string
	// PersistPath enables persistence in that directory.
	PersistPath string
	Compress    bool
	// Embedder computes document and query vectors. Defaults to
	// HashEmbedding(256).
	Embedder chromemgo.EmbeddingFunc
	Logger   logging.Logger
}

// DB is a chromem backed knowledge.VectorDB.
type DB struct {
	mu     sync.RWMutex
	db     *chromemgo.DB
	col    *chromemgo.Collection
	name   string
	embed  chromemgo.EmbeddingFunc
	logger logging.Logger
}

var _ knowledge.VectorDB = (*DB)(nil)

// New opens (or creates) the collection.
func New(optFns ...func(o *Options)) (*DB, error) {
	opts := Options{Collection: "knowledge", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Embedder == nil {
		opts.Embedder = HashEmbedding(256)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	var (
		db  *chromemgo.DB
		err error
	)

	if opts.PersistPath != "" {
		if err := os.MkdirAll(opts.PersistPath, 0o755); err != nil {
			return nil, fmt.Errorf("create persist directory: %w", err)
		}

		db, err = chromemgo.NewPersistentDB(opts.PersistPath, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("open vector db %s: %w", opts.PersistPath, err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	col, err := db.GetOrCreateCollection(opts.Collection, nil, opts.Embedder)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", opts.Collection, err)
	}

	opts.Logger.Info("vectordb.open", "collection", opts.Collection, "persist_path", opts.PersistPath, "documents", col.Count())

	return &DB{db: db, col: col, name: opts.Collection, embed: opts.Embedder, logger: opts.Logger}, nil
}

// Upsert implements knowledge.VectorDB. Documents with an existing id are
// replaced.
func (d *DB) Upsert(ctx context.Context, docs []knowledge.Document) error {
	batch := make([]chromemgo.Document, 0, len(docs))

	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}

		id := doc.ID
		if id == "" {
			id = core.NewID()
		}

		md := make(map[string]string, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			md[k] = v
		}

		if doc.Name != "" {
			md["name"] = doc.Name
		}

		batch = append(batch, chromemgo.Document{ID: id, Content: doc.Content, Metadata: md})
	}

	if len(batch) == 0 {
		return nil
	}

	d.mu.RLock()
	col := d.col
	d.mu.RUnlock()

	if err := col.AddDocuments(ctx, batch, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}

	return nil
}

// Search implements knowledge.VectorDB.
func (d *DB) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]core.SearchResult, error) {
	d.mu.RLock()
	col := d.col
	d.mu.RUnlock()

	n := col.Count()
	if n == 0 || limit <= 0 {
		return []core.SearchResult{}, nil
	}

	if limit > n {
		limit = n
	}

	var where map[string]string
	if len(filters) > 0 {
		where = filters
	}

	res, err := col.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", d.name, err)
	}

	out := make([]core.SearchResult, 0, len(res))
	for _, r := range res {
		out = append(out, core.SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: r.Metadata,
		})
	}

	return out, nil
}

// Count implements knowledge.VectorDB.
func (d *DB) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.col.Count(), nil
}

// Drop implements knowledge.VectorDB.
func (d *DB) Drop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.db.DeleteCollection(d.name); err != nil {
		return fmt.Errorf("delete collection %q: %w", d.name, err)
	}

	col, err := d.db.GetOrCreateCollection(d.name, nil, d.embed)
	if err != nil {
		return fmt.Errorf("recreate collection %q: %w", d.name, err)
	}

	d.col = col
	d.logger.Info("vectordb.drop", "collection", d.name)

	return nil
}

// HashEmbedding returns a deterministic bag-of-words embedding: every
// lower-cased word is hashed into one of dim buckets and the vector is
// normalised. It needs no network and keeps lexical overlap meaningful, which
// suits tests and offline demos.
func HashEmbedding(dim int) chromemgo.EmbeddingFunc {
	if dim <= 0 {
		dim = 256
	}

	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dim)

		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})

		for _, w := range words {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			vec[h.Sum32()%uint32(dim)]++
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}

		if norm == 0 {
			vec[0] = 1
			return vec, nil
		}

		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}

		return vec, nil
	}
}

// Embedder kinds accepted by NewEmbedder.
const (
	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"
	EmbedderOllama = "ollama"
)

// NewEmbedder builds an embedding function by kind. Model and baseURL are
// optional.
func NewEmbedder(kind, model, apiKey, baseURL string) (chromemgo.EmbeddingFunc, error) {
	switch kind {
	case "", EmbedderHash:
		return HashEmbedding(256), nil
	case EmbedderOpenAI:
		if apiKey == "" {
			return nil, errors.New("openai embedder needs an api key")
		}

		if model == "" {
			model = string(chromemgo.EmbeddingModelOpenAI3Small)
		}

		return chromemgo.NewEmbeddingFuncOpenAI(apiKey, chromemgo.EmbeddingModelOpenAI(model)), nil
	case EmbedderOllama:
		if model == "" {
			model = "nomic-embed-text"
		}

		return chromemgo.NewEmbeddingFuncOllama(model, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", kind)
	}
}
