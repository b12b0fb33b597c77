package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DatabaseName of the sqlite cache inside cache directory.
const DatabaseName = "vbook-cache.sqlite"

const schema = `CREATE TABLE IF NOT EXISTS pages (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	modified INTEGER NOT NULL
)`

// SQLite keeps all entries in a single database file.
type SQLite struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// NewSQLite opens (creating when necessary) cache database in existing
// writable directory dir.
func NewSQLite(dir string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := checkDir(dir); err != nil {
		return nil, err
	}
	conn, err := sqlite.OpenConn(filepath.Join(dir, DatabaseName), sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache database: %w", err)
	}
	if err := sqlitex.ExecuteTransient(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare cache database: %w", err)
	}
	return &SQLite{conn: conn, log: log}, nil
}

func (c *SQLite) Get(key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		data  []byte
		found bool
	)
	err := sqlitex.Execute(c.conn, `SELECT data FROM pages WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("unable to read cache entry: %w", err)
	}
	return data, found, nil
}

func (c *SQLite) Set(key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	err := sqlitex.Execute(c.conn,
		`INSERT INTO pages (key, data, modified) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, modified = excluded.modified`,
		&sqlitex.ExecOptions{Args: []any{key, data, time.Now().UnixNano()}})
	if err != nil {
		return fmt.Errorf("unable to store cache entry: %w", err)
	}
	c.log.Debug("Cache entry stored", zap.String("key", key), zap.Int("size", len(data)))
	return nil
}

func (c *SQLite) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := sqlitex.Execute(c.conn, `DELETE FROM pages WHERE key = ?`, &sqlitex.ExecOptions{Args: []any{key}}); err != nil {
		return fmt.Errorf("unable to delete cache entry: %w", err)
	}
	return nil
}

func (c *SQLite) Has(key string) bool {
	_, ok := c.ModTime(key)
	return ok
}

func (c *SQLite) ModTime(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		modified time.Time
		found    bool
	)
	err := sqlitex.Execute(c.conn, `SELECT modified FROM pages WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			modified = time.Unix(0, stmt.ColumnInt64(0))
			found = true
			return nil
		},
	})
	if err != nil {
		c.log.Debug("Unable to query cache entry", zap.String("key", key), zap.Error(err))
		return time.Time{}, false
	}
	return modified, found
}

func (c *SQLite) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := sqlitex.ExecuteTransient(c.conn, `DELETE FROM pages`, nil); err != nil {
		return fmt.Errorf("unable to clear cache: %w", err)
	}
	return nil
}

func (c *SQLite) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
