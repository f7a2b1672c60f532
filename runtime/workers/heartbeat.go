package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker samples the process's own CPU, memory and OS status at
// a fixed interval and logs them, giving operators a pulse without any
// external monitoring stack.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := selfStats(proc)
			if err != nil {
				w.log.Error("Failed to collect self stats", "error", err)
				continue
			}
			w.log.Info("Heartbeat", "pid", os.Getpid(), "status", status, "cpuPercent", cpu, "rssBytes", rss)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64, string, error) {
	mem, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return mem.RSS, cpu, status, nil
}
