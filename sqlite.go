package cached

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// expiresLayout formats expiry timestamps as fixed-width UTC strings,
// so SQL string comparison orders them chronologically.
const expiresLayout = "2006-01-02 15:04:05.000"

// SQLite is the durable backend: a single-file transactional store
// whose entries survive process restarts. Expired rows are swept lazily
// on regular traffic, never by a background timer. Concurrency is left
// to the storage engine (WAL journal plus the database/sql pool); the
// cache layer adds no lock around operations.
type SQLite struct {
	db  *sql.DB
	cfg config

	mu          sync.Mutex
	lastCleanup time.Time
}

var _ Cache = (*SQLite)(nil)

// NewSQLite opens or creates the store at path. An empty path falls
// back to WithPath, then to cached.sqlite under the user cache
// directory. Open or schema failures surface immediately as
// ErrStorageUnavailable. The new store runs one cleanup pass before
// returning.
func NewSQLite(path string, opts ...Option) (*SQLite, error) {
	cfg := applyOptions(opts)
	if path != "" {
		cfg.path = path
	}
	if cfg.path == "" {
		p, err := defaultPath()
		if err != nil {
			return nil, errors.Mark(err, ErrStorageUnavailable)
		}
		cfg.path = p
	}

	db, err := sql.Open("sqlite", cfg.path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "cached: open %s", cfg.path), ErrStorageUnavailable)
	}
	if cfg.path == ":memory:" {
		// Every pool connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}

	// Favor throughput over surviving a full power loss mid-write: WAL
	// with NORMAL sync, incremental vacuum, bounded page cache, mmap
	// where the platform allows it.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA auto_vacuum = INCREMENTAL",
		"PRAGMA cache_size = -8192",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Mark(errors.Wrapf(err, "cached: %s", pragma), ErrStorageUnavailable)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cached (
		key TEXT PRIMARY KEY NOT NULL,
		data BLOB NOT NULL,
		expires TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrap(err, "cached: create table"), ErrStorageUnavailable)
	}

	c := &SQLite{db: db, cfg: cfg, lastCleanup: time.Now()}
	if err := c.CleanUp(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func defaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "cached")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "cached: create data dir")
	}
	return filepath.Join(dir, "cached.sqlite"), nil
}

func nowString() string {
	return time.Now().UTC().Format(expiresLayout)
}

func (c *SQLite) Get(ctx context.Context, key any, opts ...CallOption) (bool, any, error) {
	k, err := c.cfg.resolveKey(key, opts)
	if err != nil {
		return false, nil, err
	}
	c.checkCleanUp(ctx)

	var data []byte
	err = c.db.QueryRowContext(ctx,
		`SELECT data FROM cached WHERE key = ? AND expires > ?`, k, nowString(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, errors.Wrap(err, "cached: get")
	}
	return true, data, nil
}

func (c *SQLite) Set(ctx context.Context, key, val any, ttl time.Duration, opts ...CallOption) error {
	k, err := c.cfg.resolveKey(key, opts)
	if err != nil {
		return err
	}
	data, err := c.cfg.serializer.Marshal(val)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "cached: marshal value"), ErrSerialization)
	}
	c.checkCleanUp(ctx)

	expires := time.Now().UTC().Add(ttl).Format(expiresLayout)
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cached (key, data, expires) VALUES (?, ?, ?)`,
		k, data, expires,
	)
	return errors.Wrap(err, "cached: set")
}

func (c *SQLite) Remove(ctx context.Context, key any, opts ...CallOption) (bool, error) {
	k, err := c.cfg.resolveKey(key, opts)
	if err != nil {
		return false, err
	}
	c.checkCleanUp(ctx)

	res, err := c.db.ExecContext(ctx, `DELETE FROM cached WHERE key = ?`, k)
	if err != nil {
		return false, errors.Wrap(err, "cached: remove")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "cached: remove")
	}
	return n > 0, nil
}

// Clear unconditionally deletes every row, expired or not.
func (c *SQLite) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cached`)
	return errors.Wrap(err, "cached: clear")
}

// CleanUp deletes every expired row and resets the cleanup clock.
// Running it twice in a row removes nothing the second time and never
// touches a live row.
func (c *SQLite) CleanUp(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cached WHERE expires <= ?`, nowString()); err != nil {
		return errors.Wrap(err, "cached: clean up")
	}
	c.mu.Lock()
	c.lastCleanup = time.Now()
	c.mu.Unlock()
	return nil
}

// NeedsCleanup reports whether the cleanup interval has elapsed since
// the last sweep.
func (c *SQLite) NeedsCleanup() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCleanup.Add(c.cfg.cleanupInterval).Before(time.Now())
}

// CheckCleanUp runs a sweep if one is due and reports whether it was.
// Every Get, Set and Remove calls it first, amortizing expiry cleanup
// across regular traffic.
func (c *SQLite) CheckCleanUp(ctx context.Context) bool {
	if !c.NeedsCleanup() {
		return false
	}
	_ = c.CleanUp(ctx)
	return true
}

func (c *SQLite) checkCleanUp(ctx context.Context) {
	_ = c.CheckCleanUp(ctx)
}

// Version reads the persisted schema-version marker. A freshly created
// store reports 0. The marker is independent of row data and reserved
// for future migrations.
func (c *SQLite) Version(ctx context.Context) (int, error) {
	var v int
	if err := c.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, errors.Wrap(err, "cached: read version")
	}
	return v, nil
}

// SetVersion writes the schema-version marker.
func (c *SQLite) SetVersion(ctx context.Context, v int) error {
	_, err := c.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v))
	return errors.Wrap(err, "cached: set version")
}

// Close releases the database handle.
func (c *SQLite) Close() error {
	return c.db.Close()
}

func (c *SQLite) serializer() Serializer {
	return c.cfg.serializer
}
