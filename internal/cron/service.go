// Package cron schedules the gateway's periodic maintenance work, such as
// the session-store eviction sweep.
package cron

import (
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

type Service struct {
	mu      sync.Mutex
	cron    *rcron.Cron
	names   []string
	started bool
}

func NewService() *Service {
	return &Service{
		cron: rcron.New(),
	}
}

// Every registers fn to run on a fixed interval. Panics inside fn are
// caught and logged so one bad run never kills the scheduler.
func (s *Service) Every(interval time.Duration, name string, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("cron: interval for %q must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[cron] job %s panicked: %v", name, r)
			}
		}()
		fn()
	})
	if err != nil {
		return fmt.Errorf("cron: schedule %q: %w", name, err)
	}

	s.names = append(s.names, name)
	log.Printf("[cron] scheduled %s every %s", name, interval)
	return nil
}

func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
	log.Printf("[cron] started with %d job(s)", len(s.names))
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.started = false
	log.Printf("[cron] stopped")
}

func (s *Service) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}
