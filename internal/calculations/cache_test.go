package calculations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnlync/asset-forecast-api/internal/database"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    "file:" + t.Name() + "?mode=memory&cache=shared",
		Profile: database.ProfileCache,
		Name:    "cache-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := NewCache(db.Conn())
	require.NoError(t, c.EnsureSchema())
	return c
}

type covPayload struct {
	Symbols []string    `msgpack:"symbols"`
	Cov     [][]float64 `msgpack:"cov"`
}

func TestStoreAndGet(t *testing.T) {
	c := newTestCache(t)

	in := covPayload{
		Symbols: []string{"AAPL", "MSFT"},
		Cov:     [][]float64{{0.01, 0.002}, {0.002, 0.02}},
	}
	require.NoError(t, c.Store("covariance", "abc", in, time.Minute))

	var out covPayload
	hit, err := c.Get("covariance", "abc", &out)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, in, out)
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	var out covPayload
	hit, err := c.Get("covariance", "missing", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Store("covariance", "old", covPayload{}, -time.Second))

	var out covPayload
	hit, err := c.Get("covariance", "old", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	removed, err := c.Cleanup()
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}

func TestHashSymbolsOrderIndependent(t *testing.T) {
	a := HashSymbols([]string{"MSFT", "AAPL", "GOOGL"}, 30, "2026-08-28")
	b := HashSymbols([]string{"AAPL", "GOOGL", "MSFT"}, 30, "2026-08-28")
	assert.Equal(t, a, b)

	c := HashSymbols([]string{"AAPL", "GOOGL", "MSFT"}, 60, "2026-08-28")
	assert.NotEqual(t, a, c)
}

func TestHashSymbolsVariesWithDate(t *testing.T) {
	// New price data must land on a new key so yesterday's covariance is not
	// reused within its TTL.
	a := HashSymbols([]string{"AAPL", "MSFT"}, 30, "2026-08-27")
	b := HashSymbols([]string{"AAPL", "MSFT"}, 30, "2026-08-28")
	assert.NotEqual(t, a, b)
}
