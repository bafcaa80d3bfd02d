package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Register Postgres SQL driver.
	_ "github.com/lib/pq"
	// Register SQLite SQL driver.
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour spoken by a SQL backend.
type Dialect string

// Supported dialects; the values double as database/sql driver names.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DefaultSQLiteDSN is used when a SQLite backend is created with an empty DSN.
const DefaultSQLiteDSN = "marketcache.db"

// SQL persists cache records in a single cache_entries table on SQLite or
// Postgres. Timestamps are stored as unix milliseconds so both dialects
// compare them identically.
type SQL struct {
	opener

	dialect Dialect
	dsn     string
	db      *sql.DB
	ownsDB  bool
}

// NewSQLite creates a SQLite-backed store. dsn can be a file path
// (e.g. /var/lib/marketcache/cache.db) or a SQLite DSN. Nothing is opened
// until Init.
func NewSQLite(dsn string) *SQL {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	return &SQL{dialect: DialectSQLite, dsn: dsn, ownsDB: true}
}

// NewPostgres creates a Postgres-backed store. Nothing is opened until Init.
func NewPostgres(dsn string) *SQL {
	return &SQL{dialect: DialectPostgres, dsn: strings.TrimSpace(dsn), ownsDB: true}
}

// NewSQLFromDB wraps an existing connection pool. Init still pings it and
// creates the schema; Close leaves the pool open.
func NewSQLFromDB(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{dialect: dialect, db: db}
}

// Dialect returns the configured SQL dialect.
func (s *SQL) Dialect() Dialect {
	return s.dialect
}

// Init opens the pool, verifies connectivity and ensures the schema exists.
func (s *SQL) Init(ctx context.Context) error {
	return s.open(func() error {
		if err := s.connect(ctx); err != nil {
			if s.ownsDB && s.db != nil {
				_ = s.db.Close()
				s.db = nil
			}
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil
	})
}

func (s *SQL) connect(ctx context.Context) error {
	if s.db == nil {
		if s.dialect == DialectPostgres && s.dsn == "" {
			return errors.New("postgres dsn is required")
		}
		db, err := sql.Open(string(s.dialect), s.dsn)
		if err != nil {
			return fmt.Errorf("open %s store: %w", s.dialect, err)
		}
		if s.dialect == DialectSQLite {
			db.SetMaxOpenConns(1) // single writer; avoids SQLITE_BUSY
		}
		s.db = db
	}

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s store: %w", s.dialect, err)
	}
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize %s store schema: %w", s.dialect, err)
		}
	}
	return nil
}

func (s *SQL) schema() []string {
	if s.dialect == DialectPostgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value BYTEA NOT NULL,
	created_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL
)`,
			`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`,
	}
}

// Get loads the record stored under key.
func (s *SQL) Get(ctx context.Context, key string) (Record, bool, error) {
	if err := s.ready(); err != nil {
		return Record{}, false, err
	}
	q := s.bind(`SELECT value, created_at, expires_at FROM cache_entries WHERE key = ?`)

	var (
		value              []byte
		createdAt, expires int64
	)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&value, &createdAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	return Record{
		Key:       key,
		Value:     value,
		CreatedAt: time.UnixMilli(createdAt),
		ExpiresAt: time.UnixMilli(expires),
	}, true, nil
}

// Put upserts rec in a single statement so readers never observe a partial
// overwrite.
func (s *SQL) Put(ctx context.Context, rec Record) error {
	if err := s.ready(); err != nil {
		return err
	}
	q := s.bind(`
INSERT INTO cache_entries(key, value, created_at, expires_at)
VALUES(?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	value = excluded.value,
	created_at = excluded.created_at,
	expires_at = excluded.expires_at`)

	value := rec.Value
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, q, rec.Key, value, rec.CreatedAt.UnixMilli(), rec.ExpiresAt.UnixMilli()); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *SQL) Delete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	q := s.bind(`DELETE FROM cache_entries WHERE key = ?`)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// DeleteAll truncates the table.
func (s *SQL) DeleteAll(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("delete all cache entries: %w", err)
	}
	return nil
}

// Keys returns every stored key in ascending order.
func (s *SQL) Keys(ctx context.Context) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache keys: %w", err)
	}
	return keys, nil
}

// List returns every record ordered by key.
func (s *SQL) List(ctx context.Context) ([]Record, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, created_at, expires_at FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			rec                Record
			createdAt, expires int64
		)
		if err := rows.Scan(&rec.Key, &rec.Value, &createdAt, &expires); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		rec.ExpiresAt = time.UnixMilli(expires)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache entries: %w", err)
	}
	return out, nil
}

// Close releases the connection pool when this backend opened it.
func (s *SQL) Close() error {
	if s == nil || s.db == nil || !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// bind rewrites ? placeholders to $n for Postgres.
func (s *SQL) bind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var (
		b      strings.Builder
		argNum = 1
	)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", argNum)
			argNum++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
