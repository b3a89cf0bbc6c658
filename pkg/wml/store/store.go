// Package store persists compiled template descriptions.
//
// Artifacts are keyed by module name and carry the BLAKE2b hash of the
// template source they were compiled from, so a cached artifact is only
// reused while its source is unchanged. Payloads may be zstd compressed.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/klauspost/compress/zstd"
	_ "github.com/lib/pq" // PostgreSQL driver
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO required)

	werrors "github.com/sambeau/wml/pkg/wml/errors"
)

// ErrNotFound is returned when no artifact is stored for a module.
var ErrNotFound = errors.New("artifact not found")

// Config selects the database.
type Config struct {
	Driver   string // sqlite (default), postgres or mysql
	DSN      string // file path for sqlite, connection string otherwise
	Compress bool   // zstd-compress payloads
}

// Artifact is one stored description.
type Artifact struct {
	Module     string
	SourceHash string
	Data       []byte
	Size       int // uncompressed size
	Compressed bool
	UpdatedAt  time.Time
}

// Store is a database of artifacts. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	dialect  dialect
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

type dialect struct {
	driver string
	blob   string
	dollar bool // $1 placeholders
}

var dialects = map[string]dialect{
	"sqlite":   {driver: "sqlite", blob: "BLOB"},
	"postgres": {driver: "postgres", blob: "BYTEA", dollar: true},
	"mysql":    {driver: "mysql", blob: "LONGBLOB"},
}

// Hash returns the hex BLAKE2b-256 digest of source.
func Hash(source []byte) string {
	sum := blake2b.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Open connects to the store and creates its schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	name := cfg.Driver
	if name == "" || name == "sqlite3" {
		name = "sqlite"
	}
	if name == "postgresql" {
		name = "postgres"
	}
	d, ok := dialects[name]
	if !ok {
		return nil, werrors.New("STORE-0001", map[string]any{"Driver": cfg.Driver})
	}

	dsn := cfg.DSN
	if d.driver == "sqlite" {
		if dsn == "" {
			dsn = ":memory:"
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, werrors.Wrap("STORE-0001", err, map[string]any{"Driver": name})
			}
			// WAL mode for better concurrency
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, werrors.Wrap("STORE-0001", err, map[string]any{"Driver": name})
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, werrors.Wrap("STORE-0001", err, map[string]any{"Driver": name})
	}
	if d.driver == "sqlite" {
		// one connection keeps an in-memory database alive and serializes writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	s := &Store{db: db, dialect: d, compress: cfg.Compress}
	if s.enc, err = zstd.NewWriter(nil); err != nil {
		db.Close()
		return nil, err
	}
	if s.dec, err = zstd.NewReader(nil); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.createSchema(ctx); err != nil {
		s.Close()
		return nil, werrors.Wrap("STORE-0002", err, map[string]any{"Op": "schema"})
	}
	return s, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	schema := `CREATE TABLE IF NOT EXISTS wml_artifacts (
		module VARCHAR(255) NOT NULL PRIMARY KEY,
		source_hash VARCHAR(64) NOT NULL,
		data ` + s.dialect.blob + ` NOT NULL,
		size INTEGER NOT NULL,
		compressed INTEGER NOT NULL,
		updated_at BIGINT NOT NULL
	)`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// q rewrites ? placeholders for the dialect.
func (s *Store) q(query string) string {
	if !s.dialect.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Put stores data for module, replacing any earlier artifact.
func (s *Store) Put(ctx context.Context, module, sourceHash string, data []byte) error {
	payload, compressed := data, 0
	if s.compress {
		payload = s.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
		compressed = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return werrors.Wrap("STORE-0002", err, map[string]any{"Op": "put"})
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM wml_artifacts WHERE module = ?`), module); err != nil {
		return werrors.Wrap("STORE-0002", err, map[string]any{"Op": "put"})
	}
	_, err = tx.ExecContext(ctx,
		s.q(`INSERT INTO wml_artifacts (module, source_hash, data, size, compressed, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		module, sourceHash, payload, len(data), compressed, time.Now().UnixMilli())
	if err != nil {
		return werrors.Wrap("STORE-0002", err, map[string]any{"Op": "put"})
	}
	if err := tx.Commit(); err != nil {
		return werrors.Wrap("STORE-0002", err, map[string]any{"Op": "put"})
	}
	return nil
}

// Get returns the artifact of module, decompressed.
func (s *Store) Get(ctx context.Context, module string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT source_hash, data, size, compressed, updated_at FROM wml_artifacts WHERE module = ?`), module)
	a := &Artifact{Module: module}
	var compressed int
	var updated int64
	if err := row.Scan(&a.SourceHash, &a.Data, &a.Size, &compressed, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, werrors.Wrap("STORE-0002", err, map[string]any{"Op": "get"})
	}
	a.UpdatedAt = time.UnixMilli(updated)
	if compressed == 1 {
		a.Compressed = true
		data, err := s.dec.DecodeAll(a.Data, make([]byte, 0, a.Size))
		if err != nil {
			return nil, werrors.Wrap("STORE-0003", err, map[string]any{"Module": module})
		}
		a.Data = data
	}
	if len(a.Data) != a.Size {
		return nil, werrors.Wrap("STORE-0003",
			fmt.Errorf("size %d, want %d", len(a.Data), a.Size), map[string]any{"Module": module})
	}
	return a, nil
}

// Lookup returns the artifact of module only when it was compiled from
// source with the given hash.
func (s *Store) Lookup(ctx context.Context, module, sourceHash string) ([]byte, bool, error) {
	a, err := s.Get(ctx, module)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if a.SourceHash != sourceHash {
		return nil, false, nil
	}
	return a.Data, true, nil
}

// Delete removes the artifact of module.
func (s *Store) Delete(ctx context.Context, module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM wml_artifacts WHERE module = ?`), module); err != nil {
		return werrors.Wrap("STORE-0002", err, map[string]any{"Op": "delete"})
	}
	return nil
}

// Modules lists the stored module names in order.
func (s *Store) Modules(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT module FROM wml_artifacts ORDER BY module`)
	if err != nil {
		return nil, werrors.Wrap("STORE-0002", err, map[string]any{"Op": "list"})
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, werrors.Wrap("STORE-0002", err, map[string]any{"Op": "list"})
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close releases the database and the codecs.
func (s *Store) Close() error {
	if s.enc != nil {
		s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	return s.db.Close()
}
