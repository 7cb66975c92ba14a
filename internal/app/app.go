// Package app wires a config.Config into live models, stores, knowledge
// bases, agents and teams behind a runner.Runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/Yaaesthetic/agno/agent"
	"github.com/Yaaesthetic/agno/config"
	"github.com/Yaaesthetic/agno/knowledge"
	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/metrics"
	"github.com/Yaaesthetic/agno/model"
	"github.com/Yaaesthetic/agno/runner"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/storage"
	"github.com/Yaaesthetic/agno/storage/redisstore"
	"github.com/Yaaesthetic/agno/storage/sqlstore"
	"github.com/Yaaesthetic/agno/team"
	"github.com/Yaaesthetic/agno/tool/shopping"
	"github.com/Yaaesthetic/agno/vectordb/chromem"
)

// Options adjusts Build.
type Options struct {
	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer
	// Models replace configured models by name; tests inject scripted models.
	Models map[string]model.Model
	// Logger replaces the logger built from the config.
	Logger logging.Logger
}

// App is everything built from one config.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Metrics   *metrics.Metrics
	Models    map[string]model.Model
	Storage   storage.Store
	SQL       *sqlstore.Store
	MemoryDB  memory.DB
	Knowledge map[string]*knowledge.Base
	Shopping  *shopping.Toolkit
	Persister state.Persister
	Runner    *runner.Runner

	members map[string]team.Member
	closers []func() error
	// saveMu orders snapshot and write so an older snapshot never
	// overwrites a newer one.
	saveMu sync.Mutex
}

// Build constructs the application. Close releases what it opened.
func Build(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (a *App, err error) {
	opts := Options{LogOutput: os.Stderr}
	for _, fn := range optFns {
		fn(&opts)
	}

	a = &App{
		Config:    cfg,
		Metrics:   metrics.New(),
		Models:    map[string]model.Model{},
		Knowledge: map[string]*knowledge.Base{},
		members:   map[string]team.Member{},
	}

	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Logger = opts.Logger
	if a.Logger == nil {
		if a.Logger, err = NewLogger(cfg.Logging, opts.LogOutput); err != nil {
			return nil, err
		}
	}

	for name, mc := range cfg.Models {
		if m, ok := opts.Models[name]; ok {
			a.Models[name] = m
			continue
		}

		m, err := NewModel(ctx, mc, name)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}

		a.Models[name] = m
	}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	if err := a.openShopping(ctx); err != nil {
		return nil, err
	}

	for name, kc := range cfg.Knowledge {
		base, err := a.openKnowledge(kc)
		if err != nil {
			return nil, fmt.Errorf("knowledge %s: %w", name, err)
		}

		a.Knowledge[name] = base
	}

	for _, name := range cfg.Runnable() {
		if _, err := a.member(name); err != nil {
			return nil, err
		}
	}

	runnables := make(map[string]runner.Runnable, len(a.members))
	for name, m := range a.members {
		runnables[name] = m
	}

	a.Runner = runner.New(runnables, func(o *runner.Options) {
		o.Logger = a.Logger
		o.Metrics = a.Metrics
		o.AfterRun = append(o.AfterRun, a.saveShopping)
	})

	a.Logger.Info("app.ready", "runnables", len(runnables), "knowledge_bases", len(a.Knowledge), "storage", a.Storage != nil)

	return a, nil
}

// NewLogger builds the configured logger.
func NewLogger(cfg config.LoggingConfig, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:   level,
		Format:  cfg.Format,
		Backend: cfg.Backend,
		Output:  out,
	}), nil
}

func (a *App) openStorage(ctx context.Context) error {
	db := a.Config.Database
	if db == nil {
		a.MemoryDB = memory.NewInMemoryDB()
		return nil
	}

	dialect, err := sqlstore.ParseDialect(db.Driver)
	if err != nil {
		return err
	}

	s, err := sqlstore.Open(ctx, dialect, db.DSN(), func(o *sqlstore.Options) {
		o.Table = db.Table
		o.Schema = db.Schema
		o.Logger = a.Logger
	})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	a.closers = append(a.closers, s.Close)
	a.SQL = s
	a.Storage = s
	a.MemoryDB = s

	return nil
}

func (a *App) openShopping(ctx context.Context) error {
	store := state.NewStore[shopping.Product](func(o *state.Options) {
		o.Logger = a.Logger
		o.Observer = a.Metrics
	})

	a.Shopping = shopping.NewToolkit(store)

	sc := a.Config.State

	if err := a.openPersister(ctx, sc); err != nil {
		return fmt.Errorf("state: %w", err)
	}

	if a.Persister != nil {
		ok, err := state.Load(ctx, a.Persister, sc.Name, store)
		if err != nil {
			return fmt.Errorf("state: %w", err)
		}

		a.Logger.Info("app.state.loaded", "name", sc.Name, "backend", sc.Backend, "found", ok)
	}

	// configured lists exist from startup; saved content is kept
	for _, ref := range sc.Sessions {
		store.InitSession(ref.User, ref.Session)
	}

	return nil
}

func (a *App) openPersister(ctx context.Context, sc config.StateConfig) error {
	switch sc.Backend {
	case config.StateSQL:
		a.Persister = a.SQL
	case config.StateRedis:
		rs, err := redisstore.New(ctx, redisstore.Config{
			Address:  sc.Redis.Address,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
			TTL:      sc.Redis.TTL,
			Logger:   a.Logger,
		})
		if err != nil {
			return err
		}

		a.closers = append(a.closers, rs.Close)
		a.Persister = rs
	}

	return nil
}

func (a *App) saveShopping(ctx context.Context, _ string, _ *agent.RunResponse) error {
	if a.Persister == nil {
		return nil
	}

	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	return state.Save(ctx, a.Persister, a.Config.State.Name, a.Shopping.Store())
}

func (a *App) openKnowledge(kc *config.KnowledgeConfig) (*knowledge.Base, error) {
	embed, err := chromem.NewEmbedder(kc.Embedder.Kind, kc.Embedder.Model, kc.Embedder.APIKey, kc.Embedder.BaseURL)
	if err != nil {
		return nil, err
	}

	db, err := chromem.New(func(o *chromem.Options) {
		o.Collection = kc.Collection
		o.PersistPath = kc.PersistPath
		o.Compress = kc.Compress
		o.Embedder = embed
		o.Logger = a.Logger
	})
	if err != nil {
		return nil, err
	}

	sources := make([]knowledge.Source, len(kc.Sources))
	for i, s := range kc.Sources {
		sources[i] = knowledge.Source{Path: s.Path, Metadata: s.Metadata}
	}

	return knowledge.New(db, func(o *knowledge.Options) {
		o.Sources = sources
		o.Reader = knowledge.AutoReader{Chunking: knowledge.Chunking{Size: kc.ChunkSize, Overlap: kc.ChunkOverlap}}
		o.NumDocuments = kc.NumDocuments
		o.Logger = a.Logger

		if len(kc.Extensions) > 0 {
			o.Extensions = kc.Extensions
		}
	}), nil
}

// LoadKnowledge loads every knowledge base. Bases with recreate set, or all
// of them when recreate is true, are dropped and reloaded.
func (a *App) LoadKnowledge(ctx context.Context, recreate bool) (map[string]int, error) {
	names := make([]string, 0, len(a.Knowledge))
	for n := range a.Knowledge {
		names = append(names, n)
	}

	sort.Strings(names)

	loaded := make(map[string]int, len(names))

	for _, n := range names {
		count, err := a.Knowledge[n].Load(ctx, knowledge.LoadOptions{Recreate: recreate || a.Config.Knowledge[n].Recreate})
		if err != nil {
			return loaded, fmt.Errorf("knowledge %s: %w", n, err)
		}

		loaded[n] = count
	}

	return loaded, nil
}

// Close releases databases and clients.
func (a *App) Close() error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}
