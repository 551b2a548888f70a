package workers

import (
	"context"
	"log/slog"
	"proctor/observability"
	"time"
)

// StatsWorker refreshes the monitor snapshot served to the operator console.
type StatsWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewStatsWorker(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *StatsWorker {
	return &StatsWorker{log: log, monitor: monitor, interval: interval}
}

func (w *StatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats refresh")
			return nil
		case <-ticker.C:
			stats := w.monitor.Refresh()
			w.log.Debug("Stats refreshed",
				"connected", stats.ConnectedParticipants,
				"violations", stats.ViolationsRecorded,
				"alloc_mb", stats.AllocMemMb,
			)
		}
	}
}
