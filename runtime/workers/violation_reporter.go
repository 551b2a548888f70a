package workers

import (
	"context"
	"log/slog"
	"proctor/contract"
	"proctor/detection"
	"proctor/domain"
)

// ViolationReporterWorker forwards locally detected violations to the
// server, in detection order, unless an active permission suppresses them.
type ViolationReporterWorker struct {
	log    *slog.Logger
	events <-chan domain.ViolationEvent
	gate   *detection.PermissionGate
	link   contract.ParticipantLink
}

func NewViolationReporterWorker(
	log *slog.Logger,
	events <-chan domain.ViolationEvent,
	gate *detection.PermissionGate,
	link contract.ParticipantLink,
) *ViolationReporterWorker {
	return &ViolationReporterWorker{log: log, events: events, gate: gate, link: link}
}

func (w *ViolationReporterWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping violation reporter")
			return ctx.Err()
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Violation channel is closed")
				return nil
			}
			if !w.gate.Allow(evt.Type) {
				w.log.Debug("Violation suppressed by permission", "type", evt.Type)
				continue
			}
			if err := w.link.SendViolationReport(evt); err != nil {
				// not buffered: a detection while offline is lost
				w.log.Warn("Violation not reported", "type", evt.Type, "error", err)
			}
		}
	}
}
