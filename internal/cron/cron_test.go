package cron

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestEvery_RejectsNonPositiveInterval(t *testing.T) {
	s := NewService()
	if err := s.Every(0, "bad", func() {}); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := s.Every(-time.Second, "bad", func() {}); err == nil {
		t.Error("expected error for negative interval")
	}
}

func TestEvery_RunsJob(t *testing.T) {
	s := NewService()
	var runs atomic.Int64

	if err := s.Every(10*time.Millisecond, "tick", func() {
		runs.Add(1)
	}); err != nil {
		t.Fatalf("Every: %v", err)
	}

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestJobPanicDoesNotKillScheduler(t *testing.T) {
	s := NewService()
	var ok atomic.Bool

	_ = s.Every(5*time.Millisecond, "panicky", func() {
		panic("boom")
	})
	_ = s.Every(5*time.Millisecond, "steady", func() {
		ok.Store(true)
	})

	s.Start()
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for !ok.Load() {
		select {
		case <-deadline:
			t.Fatal("steady job starved by panicking sibling")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestJobsListsNames(t *testing.T) {
	s := NewService()
	_ = s.Every(time.Minute, "session-sweep", func() {})
	jobs := s.Jobs()
	if len(jobs) != 1 || jobs[0] != "session-sweep" {
		t.Errorf("Jobs() = %v", jobs)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	s := NewService()
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
