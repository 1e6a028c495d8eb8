// Package sqlite is a backend that keeps entries in a SQLite table through the
// pure-Go modernc.org/sqlite driver. An empty path or ":memory:" gives a
// private in-memory database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/cachekit/backend"
	"github.com/unkn0wn-root/cachekit/internal/wire"
)

const defaultTable = "cachekit_entries"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	Path            string           // "" or ":memory:" => in-memory
	Table           string           // "" => cachekit_entries
	CleanupInterval time.Duration    // 0 => 1m; negative disables the sweep
	Clock           func() time.Time // nil => time.Now
}

type SQLite struct {
	db    *sql.DB
	table string
	now   func() time.Time
	every time.Duration

	connMu    sync.Mutex
	connected bool

	mu sync.Mutex // serializes counter and add transactions

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var (
	_ backend.Backend     = (*SQLite)(nil)
	_ backend.Incrementer = (*SQLite)(nil)
	_ backend.Decrementer = (*SQLite)(nil)
	_ backend.Adder       = (*SQLite)(nil)
)

func New(cfg Config) (*SQLite, error) {
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("sqlite backend: invalid table name %q", table)
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &SQLite{db: db, table: table, now: cfg.Clock, every: cfg.CleanupInterval}
	if s.now == nil {
		s.now = time.Now
	}
	if s.every == 0 {
		s.every = time.Minute
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

func (s *SQLite) Name() string { return "sqlite" }

// Connect prepares the schema and starts the expiry sweep. Later calls are
// no-ops once it has succeeded.
func (s *SQLite) Connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.connected {
		return nil
	}
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at)`, s.table, s.table),
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	s.connected = true
	if s.every > 0 {
		s.wg.Add(1)
		go s.run()
	}
	return nil
}

func (s *SQLite) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_ = s.Cleanup(s.ctx)
		}
	}
}

// Cleanup deletes expired rows.
func (s *SQLite) Cleanup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at != 0 AND expires_at <= ?`, s.table),
		s.now().UnixNano())
	return err
}

func (s *SQLite) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixNano()
}

func (s *SQLite) live(exp int64) bool {
	return exp == 0 || exp > s.now().UnixNano()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		v   []byte
		exp int64
	)
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE key = ?`, s.table), key,
	).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !s.live(exp) {
		_, _ = s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ? AND expires_at = ?`, s.table), key, exp)
		return nil, false, nil
	}
	if v == nil {
		v = []byte{}
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`, s.table),
		key, value, s.expiry(ttl))
	if err != nil {
		return false, err
	}
	return true, nil
}

// Add inserts key, or replaces it only when the existing row has expired.
func (s *SQLite) Add(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if value == nil {
		value = []byte{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %[1]s (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		WHERE %[1]s.expires_at != 0 AND %[1]s.expires_at <= ?`, s.table),
		key, value, s.expiry(ttl), s.now().UnixNano())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, s.table), key)
	return err
}

func (s *SQLite) Flush(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table))
	return err
}

func (s *SQLite) Increment(ctx context.Context, key string, delta int64) (int64, bool, error) {
	return s.add(ctx, key, delta)
}

func (s *SQLite) Decrement(ctx context.Context, key string, delta int64) (int64, bool, error) {
	return s.add(ctx, key, -delta)
}

func (s *SQLite) add(ctx context.Context, key string, delta int64) (n int64, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		v   []byte
		exp int64
	)
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value, expires_at FROM %s WHERE key = ?`, s.table), key,
	).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, tx.Rollback()
	}
	if err != nil {
		return 0, false, err
	}
	if !s.live(exp) {
		return 0, false, tx.Rollback()
	}
	cur, perr := wire.ParseInt(v)
	if perr != nil {
		return 0, true, errors.Join(backend.ErrNotInteger, tx.Rollback())
	}
	n, perr = backend.AddInt(cur, delta)
	if perr != nil {
		return 0, true, errors.Join(perr, tx.Rollback())
	}
	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET value = ? WHERE key = ?`, s.table), wire.EncodeInt(n), key,
	); err != nil {
		return 0, true, err
	}
	if err = tx.Commit(); err != nil {
		return 0, true, err
	}
	return n, true, nil
}

// Close stops the sweep and closes the database. Safe to call more than once.
func (s *SQLite) Close(context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
