// Package calculations provides a persistent cache for expensive statistical
// results. Entries are msgpack blobs with expiration timestamps; expired rows
// are treated as misses and overwritten on the next store.
package calculations

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// TTLs per cached calculation kind.
const (
	TTLCovariance = 24 * time.Hour
)

// Cache provides cache operations backed by the cache database.
type Cache struct {
	db *sql.DB
}

// NewCache creates a calculation cache.
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db}
}

// EnsureSchema creates the calculations table if it does not exist.
func (c *Cache) EnsureSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS calculations (
			kind       TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       BLOB NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (kind, key)
		)
	`
	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create calculations schema: %w", err)
	}
	return nil
}

// HashSymbols creates a deterministic cache key from a symbol list. Symbols
// are sorted so the key is order-independent. The asOf date is part of the
// key so entries computed before a price sync are not served afterwards.
func HashSymbols(symbols []string, window int, asOf string) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)

	keyData := fmt.Sprintf("%s|%d|%s", strings.Join(sorted, ","), window, asOf)
	h := sha256.Sum256([]byte(keyData))
	return hex.EncodeToString(h[:16])
}

// Store saves a value with expiration = now + ttl.
func (c *Cache) Store(kind, key string, value interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	expiresAt := time.Now().Add(ttl).Unix()
	_, err = c.db.Exec(`
		INSERT OR REPLACE INTO calculations (kind, key, data, expires_at)
		VALUES (?, ?, ?, ?)
	`, kind, key, data, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s/%s: %w", kind, key, err)
	}

	return nil
}

// Get loads a fresh cache entry into dest. Returns false on miss or expiry.
func (c *Cache) Get(kind, key string, dest interface{}) (bool, error) {
	var data []byte
	var expiresAt int64

	err := c.db.QueryRow(`
		SELECT data, expires_at
		FROM calculations
		WHERE kind = ? AND key = ?
	`, kind, key).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry %s/%s: %w", kind, key, err)
	}

	if time.Now().Unix() >= expiresAt {
		return false, nil
	}

	if err := msgpack.Unmarshal(data, dest); err != nil {
		// Corrupt entry, treat as miss so the caller recalculates.
		return false, nil
	}

	return true, nil
}

// Cleanup removes expired entries.
func (c *Cache) Cleanup() (int64, error) {
	res, err := c.db.Exec(`DELETE FROM calculations WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up cache: %w", err)
	}
	return res.RowsAffected()
}
