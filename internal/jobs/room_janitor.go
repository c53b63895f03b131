package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"clipbot/internal/services"
)

// RoomJanitorJob frees rooms stuck in the busy state. A crash between
// lease and release leaves a room busy forever; this sweep is the
// backstop that returns such rooms to the pool.
type RoomJanitorJob struct {
	rooms      *services.RoomService
	audit      *services.AuditService
	stuckAfter time.Duration
	interval   time.Duration
}

// NewRoomJanitorJob creates the janitor. stuckAfter is how long a room may
// stay busy before it counts as abandoned; interval is the sweep cadence.
func NewRoomJanitorJob(rooms *services.RoomService, audit *services.AuditService, stuckAfter, interval time.Duration) *RoomJanitorJob {
	return &RoomJanitorJob{
		rooms:      rooms,
		audit:      audit,
		stuckAfter: stuckAfter,
		interval:   interval,
	}
}

// Run sweeps the pool once
func (j *RoomJanitorJob) Run(ctx context.Context) error {
	freed, err := j.rooms.ReleaseStale(ctx, j.stuckAfter)
	if err != nil {
		return fmt.Errorf("stale room sweep: %w", err)
	}

	if freed > 0 {
		log.Printf("🧹 [ROOM-POOL] Janitor recovered %d stuck rooms", freed)
		if j.audit != nil {
			j.audit.Report(ctx, fmt.Sprintf("🧹 Janitor recovered %d rooms stuck busy for over %s", freed, j.stuckAfter))
		}
	}
	return nil
}

// GetNextRunTime returns the next sweep time
func (j *RoomJanitorJob) GetNextRunTime() time.Time {
	return time.Now().Add(j.interval)
}
