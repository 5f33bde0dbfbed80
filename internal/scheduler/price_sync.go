package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pnlync/asset-forecast-api/internal/clients/yahoo"
	"github.com/pnlync/asset-forecast-api/internal/history"
)

// PriceSyncJob refreshes daily price history for the configured symbols.
type PriceSyncJob struct {
	client  *yahoo.Client
	store   *history.DB
	symbols []string
	log     zerolog.Logger
}

// NewPriceSyncJob creates a price sync job
func NewPriceSyncJob(client *yahoo.Client, store *history.DB, symbols []string, log zerolog.Logger) *PriceSyncJob {
	return &PriceSyncJob{
		client:  client,
		store:   store,
		symbols: symbols,
		log:     log.With().Str("job", "price_sync").Logger(),
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run fetches and upserts history for every configured symbol.
// A symbol that fails does not block the others.
func (j *PriceSyncJob) Run() error {
	var failed int
	for _, symbol := range j.symbols {
		prices, err := j.client.GetDailyHistory(symbol, "1y")
		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Price fetch failed")
			failed++
			continue
		}

		if err := j.store.UpsertDailyPrices(symbol, prices); err != nil {
			j.log.Error().Err(err).Str("symbol", symbol).Msg("Price upsert failed")
			failed++
			continue
		}

		j.log.Info().
			Str("symbol", symbol).
			Int("rows", len(prices)).
			Msg("Price history synced")
	}

	if failed > 0 {
		return fmt.Errorf("price sync: %d of %d symbols failed", failed, len(j.symbols))
	}
	return nil
}
