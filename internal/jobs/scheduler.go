package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one recurring upkeep task for the bot: a stale-room sweep, a stats
// prune. Run performs a single pass; GetNextRunTime says when the pass after
// the current one is due.
type Job interface {
	Run(ctx context.Context) error
	GetNextRunTime() time.Time
}

// JobScheduler drives the upkeep jobs on one-shot timers. A job is
// rescheduled only after its pass finishes, so a slow sweep never overlaps
// with the next one.
type JobScheduler struct {
	jobs    map[string]Job
	timers  map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewJobScheduler creates an empty scheduler
func NewJobScheduler() *JobScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobScheduler{
		jobs:   make(map[string]Job),
		timers: make(map[string]*time.Timer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds an upkeep job under the given name
func (s *JobScheduler) Register(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = job
	log.Printf("✅ [SCHEDULER] Upkeep job registered: %s", name)
}

// Start arms a timer for every registered job. Idempotent.
func (s *JobScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true

	log.Printf("🚀 [SCHEDULER] Arming %d upkeep jobs", len(s.jobs))
	for name, job := range s.jobs {
		s.armTimer(name, job)
	}
	return nil
}

// armTimer sets the one-shot timer for a job's next pass. Caller holds mu.
func (s *JobScheduler) armTimer(name string, job Job) {
	nextRun := job.GetNextRunTime()
	wait := time.Until(nextRun)

	log.Printf("⏰ [SCHEDULER] %s: next pass at %s (in %v)",
		name, nextRun.Format(time.RFC3339), wait)

	s.timers[name] = time.AfterFunc(wait, func() {
		s.runPass(name, job)
	})
}

// runPass executes one pass of a job and arms the next one
func (s *JobScheduler) runPass(name string, job Job) {
	s.wg.Add(1)
	defer s.wg.Done()

	started := time.Now()
	if err := job.Run(s.ctx); err != nil {
		log.Printf("❌ [SCHEDULER] %s: pass failed after %v: %v", name, time.Since(started), err)
	} else {
		log.Printf("✅ [SCHEDULER] %s: pass done in %v", name, time.Since(started))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.armTimer(name, job)
	}
}

// Stop disarms all timers, cancels the job context and waits for any pass
// still in flight
func (s *JobScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false

	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[string]*time.Timer)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	log.Println("🛑 [SCHEDULER] All upkeep jobs stopped")
}

// RunNow runs one pass of the named job immediately, outside its schedule
func (s *JobScheduler) RunNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		log.Printf("⚠️  [SCHEDULER] No upkeep job named %q", name)
		return nil
	}
	return job.Run(s.ctx)
}
