package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/pnlync/asset-forecast-api/internal/calculations"
)

// CacheCleanupJob removes expired rows from the calculation cache.
type CacheCleanupJob struct {
	cache *calculations.Cache
	log   zerolog.Logger
}

// NewCacheCleanupJob creates a cache cleanup job
func NewCacheCleanupJob(cache *calculations.Cache, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache: cache,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Run deletes expired cache entries
func (j *CacheCleanupJob) Run() error {
	removed, err := j.cache.Cleanup()
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Expired cache entries removed")
	}
	return nil
}
