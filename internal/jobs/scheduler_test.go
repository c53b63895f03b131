package jobs

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	runs int
	next time.Time
}

func (j *stubJob) Run(ctx context.Context) error {
	j.runs++
	return nil
}

func (j *stubJob) GetNextRunTime() time.Time {
	return j.next
}

func TestSchedulerRunNow(t *testing.T) {
	s := NewJobScheduler()
	job := &stubJob{next: time.Now().Add(time.Hour)}
	s.Register("stub", job)

	if err := s.RunNow("stub"); err != nil {
		t.Fatal(err)
	}
	if job.runs != 1 {
		t.Errorf("expected 1 run, got %d", job.runs)
	}

	// Unknown jobs are a no-op, not an error
	if err := s.RunNow("missing"); err != nil {
		t.Errorf("unexpected error for missing job: %v", err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewJobScheduler()
	s.Register("stub", &stubJob{next: time.Now().Add(time.Hour)})

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	// Starting twice must be harmless
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	s.Stop()
}

func TestStatsPruneNextRunIsMidnightUTC(t *testing.T) {
	job, err := NewStatsPruneJob(nil, 30*24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	next := job.GetNextRunTime().UTC()
	if next.Hour() != 0 || next.Minute() != 0 {
		t.Errorf("expected midnight UTC, got %s", next.Format(time.RFC3339))
	}
	if !next.After(time.Now().UTC()) {
		t.Error("next run must be in the future")
	}
}

func TestRoomJanitorNextRunUsesInterval(t *testing.T) {
	job := NewRoomJanitorJob(nil, nil, 6*time.Hour, 24*time.Hour)

	next := job.GetNextRunTime()
	until := time.Until(next)
	if until < 23*time.Hour || until > 25*time.Hour {
		t.Errorf("expected next run about 24h away, got %v", until)
	}
}
