package producer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Scheduler ticks the producer on a fixed cadence, independently per
// monitored type. Different types run with true parallelism relative to each
// other; within one type the producer's single-flight guard drops overlapping
// ticks.
type Scheduler struct {
	producer *Producer
	types    []int
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	triggers map[int]chan struct{}
}

// NewScheduler creates a Scheduler for the given types.
func NewScheduler(producer *Producer, types []int, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	triggers := make(map[int]chan struct{}, len(types))
	for _, typeID := range types {
		triggers[typeID] = make(chan struct{}, 1)
	}
	return &Scheduler{
		producer: producer,
		types:    types,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
		triggers: triggers,
	}
}

// Start launches one ticking loop per type.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	for _, typeID := range s.types {
		s.wg.Add(1)
		go s.loop(runCtx, typeID)
	}

	s.logger.Info("scheduler started", "types", s.types, "interval", s.interval)
	return nil
}

// Stop stops all loops, waiting for in-flight ticks to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger requests an immediate tick for the type, in addition to the fixed
// cadence. Used after start/reset so the first batch does not wait a full
// interval. Unknown types are ignored.
func (s *Scheduler) Trigger(typeID int) {
	ch, ok := s.triggers[typeID]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
		// Already triggered
	}
}

func (s *Scheduler) loop(ctx context.Context, typeID int) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	trigger := s.triggers[typeID]

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.producer.OnTick(ctx, typeID)
		case <-trigger:
			s.producer.OnTick(ctx, typeID)
		}
	}
}
