package services

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically reclaims slots held by scheduled rides whose window
// passed without anyone starting them.
type Sweeper struct {
	rides    RideService
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(rides RideService, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		rides:    rides,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Call Stop to terminate it.
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Sweeper started", "interval", s.interval)

	for {
		select {
		case <-s.stop:
			s.logger.Info("Sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.rides.ReclaimExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("Sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Sweep reclaimed rides", "count", count)
	}
}

// Stop terminates the loop and waits for the current sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
