package workers

import (
	"context"
	"fmt"
	"log/slog"
	"proctor/detection"
	"proctor/domain"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

type ProcessInfo struct {
	PID  int32
	Name string
}

// ProcessLister abstracts the OS process table.
type ProcessLister interface {
	List() ([]ProcessInfo, error)
	Kill(pid int32) error
}

// SystemProcesses reads the real process table through gopsutil.
type SystemProcesses struct{}

func (SystemProcesses) List() ([]ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	infos := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			// the process exited between listing and reading
			continue
		}
		infos = append(infos, ProcessInfo{PID: p.Pid, Name: name})
	}
	return infos, nil
}

func (SystemProcesses) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// ProcessMonitorWorker scans running processes against the exam blocklist
// and emits one application_blocked event per offending process.
type ProcessMonitorWorker struct {
	log      *slog.Logger
	lister   ProcessLister
	events   chan<- domain.ViolationEvent
	interval time.Duration
	kill     bool

	mu        sync.RWMutex
	blocklist *detection.Blocklist
	reported  map[int32]struct{}
}

func NewProcessMonitorWorker(
	log *slog.Logger,
	lister ProcessLister,
	blocklist *detection.Blocklist,
	events chan<- domain.ViolationEvent,
	interval time.Duration,
	kill bool,
) *ProcessMonitorWorker {
	return &ProcessMonitorWorker{
		log:       log,
		lister:    lister,
		blocklist: blocklist,
		events:    events,
		interval:  interval,
		kill:      kill,
		reported:  make(map[int32]struct{}),
	}
}

// SetBlocklist swaps the rules pushed by CONFIG_UPDATE. Already reported
// processes are evaluated again.
func (w *ProcessMonitorWorker) SetBlocklist(b *detection.Blocklist) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocklist = b
	w.reported = make(map[int32]struct{})
}

func (w *ProcessMonitorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping process monitor")
			return nil
		case <-ticker.C:
			if err := w.Scan(ctx); err != nil {
				w.log.Error("Process scan failed", "error", err)
			}
		}
	}
}

// Scan runs one pass over the process table.
func (w *ProcessMonitorWorker) Scan(ctx context.Context) error {
	procs, err := w.lister.List()
	if err != nil {
		return err
	}

	w.mu.Lock()
	blocklist := w.blocklist
	alive := make(map[int32]struct{}, len(procs))
	var offending []ProcessInfo
	for _, p := range procs {
		alive[p.PID] = struct{}{}
		if blocklist == nil {
			continue
		}
		if _, seen := w.reported[p.PID]; seen {
			continue
		}
		if _, ok := blocklist.Match(p.Name); ok {
			w.reported[p.PID] = struct{}{}
			offending = append(offending, p)
		}
	}
	// forget pids that are gone so a reused pid is checked again
	for pid := range w.reported {
		if _, ok := alive[pid]; !ok {
			delete(w.reported, pid)
		}
	}
	w.mu.Unlock()

	for _, p := range offending {
		verdict, _ := blocklist.Match(p.Name)
		desc := fmt.Sprintf("Aplikasi terlarang terdeteksi: %s", p.Name)
		if verdict.NotAllowed {
			desc = fmt.Sprintf("Aplikasi tidak diizinkan: %s", p.Name)
		}
		if w.kill {
			if err := w.lister.Kill(p.PID); err != nil {
				w.log.Warn("Failed to terminate process", "pid", p.PID, "name", p.Name, "error", err)
			} else {
				desc += " (dihentikan)"
			}
		}
		w.log.Warn("Blocked application detected", "pid", p.PID, "name", p.Name, "pattern", verdict.Pattern)

		select {
		case <-ctx.Done():
			return nil
		case w.events <- domain.ViolationEvent{
			Type:        domain.ApplicationBlocked,
			Severity:    domain.SeverityHigh,
			Description: desc,
			Timestamp:   time.Now().UTC(),
		}:
		}
	}
	return nil
}
