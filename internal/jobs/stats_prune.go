package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"clipbot/internal/services"
)

// statsPruneSpec runs the prune at midnight UTC, when the daily counter
// key rolls over
const statsPruneSpec = "0 0 * * *"

// StatsPruneJob deletes daily stat documents older than the retention
// window. Counters for the current day live under a date-keyed document,
// so nothing needs an explicit reset; old documents just age out.
type StatsPruneJob struct {
	stats     *services.StatsService
	retention time.Duration
	schedule  cron.Schedule
}

func NewStatsPruneJob(stats *services.StatsService, retention time.Duration) (*StatsPruneJob, error) {
	schedule, err := cron.ParseStandard(statsPruneSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid prune schedule: %w", err)
	}
	return &StatsPruneJob{
		stats:     stats,
		retention: retention,
		schedule:  schedule,
	}, nil
}

// Run prunes aged-out daily stats once
func (j *StatsPruneJob) Run(ctx context.Context) error {
	deleted, err := j.stats.Prune(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("stats prune: %w", err)
	}
	if deleted > 0 {
		log.Printf("🧹 [STATS] Pruned %d daily stat documents older than %s", deleted, j.retention)
	}
	return nil
}

// GetNextRunTime returns the next midnight UTC
func (j *StatsPruneJob) GetNextRunTime() time.Time {
	return j.schedule.Next(time.Now().UTC())
}
