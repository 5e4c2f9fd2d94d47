package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/screener/pkg/logger"
)

// DuplicateRemover drops superseded cache files
type DuplicateRemover interface {
	RemoveDuplicates() (int, error)
}

// CacheCleanupJob removes overlapping bar cache files
type CacheCleanupJob struct {
	cache    DuplicateRemover
	schedule string
	logger   *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache DuplicateRemover, schedule string, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		cache:    cache,
		schedule: schedule,
		logger:   log.WithComponent("cache-cleanup"),
	}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule
func (j *CacheCleanupJob) Schedule() string {
	return j.schedule
}

// Run executes the cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	removed, err := j.cache.RemoveDuplicates()
	if err != nil {
		return fmt.Errorf("remove duplicate caches: %w", err)
	}

	j.logger.WithField("removed", removed).Info("Cache cleanup completed")
	return nil
}
