// Package sqlstore is a database/sql backend for run history, user memories,
// session summaries and state snapshots. It speaks SQLite, PostgreSQL and
// MySQL; every table name is derived from one configurable prefix.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Yaaesthetic/agno/logging"
	"github.com/Yaaesthetic/agno/memory"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/storage"
)

// Dialect names a supported SQL flavour.
type Dialect string

// Supported dialects.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// ParseDialect accepts the dialect names and their common driver aliases.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", s)
	}
}

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == SQLite {
		return "sqlite3"
	}

	return string(d)
}

// DefaultTable is the table prefix used when none is configured.
const DefaultTable = "agno"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures a Store.
type Options struct {
	// Table prefixes every table: <table>_runs, <table>_memories,
	// <table>_summaries and <table>_state.
	Table string
	// Schema qualifies the tables on PostgreSQL and is created if missing.
	Schema string
	Logger logging.Logger
}

// Store implements storage.Store, memory.DB and state.Persister.
type Store struct {
	db      *sql.DB
	dialect Dialect
	opts    Options
	owned   bool
	logger  logging.Logger
}

var (
	_ storage.Store   = (*Store)(nil)
	_ memory.DB       = (*Store)(nil)
	_ state.Persister = (*Store)(nil)
)

// Open connects to dsn and prepares the tables. SQLite runs on a single
// connection since it allows one writer at a time.
func Open(ctx context.Context, dialect Dialect, dsn string, optFns ...func(o *Options)) (*Store, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialect == SQLite {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s, err := New(ctx, db, dialect, optFns...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	s.owned = true

	return s, nil
}

// New wraps an existing connection pool. Close leaves db open.
func New(ctx context.Context, db *sql.DB, dialect Dialect, optFns ...func(o *Options)) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if _, err := ParseDialect(string(dialect)); err != nil {
		return nil, err
	}

	opts := Options{Table: DefaultTable, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if !identRe.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table prefix %q", opts.Table)
	}

	if opts.Schema != "" {
		if dialect != Postgres {
			return nil, fmt.Errorf("schema is only supported on postgres")
		}

		if !identRe.MatchString(opts.Schema) {
			return nil, fmt.Errorf("invalid schema %q", opts.Schema)
		}
	}

	s := &Store{db: db, dialect: dialect, opts: opts, logger: opts.Logger}

	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the store dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close implements storage.Store.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}

	return s.db.Close()
}

func (s *Store) table(name string) string {
	t := s.opts.Table + "_" + name
	if s.opts.Schema != "" {
		return s.opts.Schema + "." + t
	}

	return t
}

func (s *Store) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var stmts []string

	if s.opts.Schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+s.opts.Schema)
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS, so its indexes are declared inline.
	inline := func(def string) string {
		if s.dialect == MySQL {
			return ",\n    " + def
		}

		return ""
	}

	p := s.opts.Table

	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    session_id VARCHAR(255) NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    owner VARCHAR(255) NOT NULL,
    mode VARCHAR(16) NOT NULL,
    input TEXT,
    output TEXT,
    tool_calls TEXT,
    seq INTEGER NOT NULL,
    created_at BIGINT NOT NULL%s%s
)`, s.table("runs"),
			inline(fmt.Sprintf("INDEX idx_%s_runs_session (session_id, seq)", p)),
			inline(fmt.Sprintf("INDEX idx_%s_runs_user (user_id)", p))),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    memory TEXT NOT NULL,
    topics TEXT,
    seq INTEGER NOT NULL,
    created_at BIGINT NOT NULL%s
)`, s.table("memories"), inline(fmt.Sprintf("INDEX idx_%s_memories_user (user_id, seq)", p))),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    user_id VARCHAR(255) NOT NULL,
    session_id VARCHAR(255) NOT NULL,
    summary TEXT NOT NULL,
    topics TEXT,
    updated_at BIGINT NOT NULL,
    PRIMARY KEY (user_id, session_id)
)`, s.table("summaries")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name VARCHAR(255) NOT NULL PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at BIGINT NOT NULL
)`, s.table("state")),
	)

	if s.dialect != MySQL {
		stmts = append(stmts,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_runs_session ON %s(session_id, seq)", p, s.table("runs")),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_runs_user ON %s(user_id)", p, s.table("runs")),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_memories_user ON %s(user_id, seq)", p, s.table("memories")),
		)
	}

	// one statement per Exec for SQLite
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	s.logger.Debug("sqlstore.schema.ready", "dialect", string(s.dialect), "table", p)

	return nil
}

// upsert builds an insert that overwrites cols on a key conflict.
func (s *Store) upsert(table string, cols, keys, update []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), marks)

	sets := make([]string, len(update))

	if s.dialect == MySQL {
		for i, c := range update {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}

		return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}

	for i, c := range update {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}

	return q + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(sets, ", "))
}

// rebind rewrites ? placeholders to $n on PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)

	n := 1

	for _, c := range query {
		if c == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++

			continue
		}

		b.WriteRune(c)
	}

	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, e execer, query string, args ...any) (sql.Result, error) {
	return e.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, e execer, query string, args ...any) *sql.Row {
	return e.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, table, column, key string) (int64, error) {
	var seq sql.NullInt64

	q := fmt.Sprintf("SELECT MAX(seq) FROM %s WHERE %s = ?", table, column)
	if err := s.queryRow(ctx, tx, q, key).Scan(&seq); err != nil {
		return 0, err
	}

	return seq.Int64 + 1, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}

	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time { return time.Unix(0, n).UTC() }
