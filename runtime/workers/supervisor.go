// Package workers hosts the long-running background tasks of the chat
// core and the supervisor that keeps them alive.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"campuschat/contract"
	"campuschat/errors"
)

const defaultRestartDelay = 200 * time.Millisecond

// Supervisor runs each worker in its own goroutine, recovers panics,
// restarts crashed workers after a delay, and shuts everything down when
// the parent context is cancelled. One failing worker never takes the
// supervisor down with it.
type Supervisor struct {
	Cancel       context.CancelFunc
	wg           sync.WaitGroup
	log          *slog.Logger
	restartDelay time.Duration
	workers      []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartDelay time.Duration) *Supervisor {
	if restartDelay <= 0 {
		restartDelay = defaultRestartDelay
	}
	return &Supervisor{log: log, restartDelay: restartDelay}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run supervises every added worker until the parent context cancels or
// Stop is called, then waits for all goroutines to drain.
func (s *Supervisor) Run(ctx context.Context) {
	supervised, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervised, worker)
	}
	s.wg.Wait()
}

// Start launches one worker under supervision. A clean return retires
// the worker; an error or panic restarts it after the configured delay.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info("Worker stopped", "name", name)
				return
			}

			err := runShielded(ctx, worker)

			switch {
			case err == nil:
				s.log.Info("Worker finished", "name", name)
				return
			case ctx.Err() != nil:
				s.log.Info("Worker stopped (context canceled)", "name", name)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartDelay):
			}
		}
	}()
}

// runShielded converts a worker panic into an error so the supervision
// loop can treat both failure modes the same way.
func runShielded(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrWorkerPanic
		}
	}()
	return worker.Run(ctx)
}

func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
