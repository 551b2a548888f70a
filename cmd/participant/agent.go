package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"proctor/detection"
	"proctor/domain"
	"proctor/protocol"
	"proctor/runtime/workers"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gookit/color"
)

// link is what the agent needs from the connection.
type link interface {
	Send(msg protocol.Message) error
	SendPermissionRequest(requestType string, durationMinutes int, reason string) error
	SendViolationReport(evt domain.ViolationEvent) error
	Stop()
}

// agent reacts to server messages on the participant machine.
type agent struct {
	log     *slog.Logger
	link    link
	monitor *workers.ProcessMonitorWorker
	gate    *detection.PermissionGate
	out     io.Writer
	// quit ends the whole agent once the server refuses the registration
	quit func()

	mu       sync.Mutex
	locked   bool
	rejected bool
}

func newAgent(log *slog.Logger, link link, monitor *workers.ProcessMonitorWorker, gate *detection.PermissionGate, out io.Writer, quit func()) *agent {
	return &agent{log: log, link: link, monitor: monitor, gate: gate, out: out, quit: quit}
}

func (a *agent) Rejected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rejected
}

func (a *agent) Locked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locked
}

func (a *agent) onRegisterAck(msg protocol.Message) {
	if msg.Data.String("status") == "registered" {
		a.log.Info("Registered", "exam_session_id", msg.Data.Int("exam_session_id", 0))
		fmt.Fprintln(a.out, color.Green.Sprint("Terhubung ke server pengawas."))
		return
	}
	reason := msg.Data.String("message")
	a.log.Error("Registration rejected", "message", reason)
	fmt.Fprintln(a.out, color.Red.Sprintf("Registrasi ditolak: %s", reason))
	a.mu.Lock()
	a.rejected = true
	a.mu.Unlock()
	a.link.Stop()
	if a.quit != nil {
		a.quit()
	}
}

func (a *agent) onConfigUpdate(msg protocol.Message) {
	blocklist, err := detection.NewBlocklist(
		msg.Data.Strings("blocked_applications"),
		msg.Data.Strings("allowed_applications"),
	)
	if err != nil {
		a.log.Error("Invalid application rules", "error", err)
		return
	}
	a.monitor.SetBlocklist(blocklist)
	a.log.Info("Exam rules applied",
		"blocked", len(msg.Data.Strings("blocked_applications")),
		"allowed", len(msg.Data.Strings("allowed_applications")),
	)
}

func (a *agent) onWarning(msg protocol.Message) {
	if msg.Data.Bool("flag") {
		fmt.Fprintln(a.out, color.Magenta.Sprint(msg.Data.String("message")))
		return
	}
	fmt.Fprintln(a.out, color.Yellow.Sprintf("[%d] %s", msg.Data.Int("warning_count", 0), msg.Data.String("message")))
}

func (a *agent) onLock(msg protocol.Message) {
	a.setLocked(true)
	fmt.Fprintln(a.out, color.Red.Sprintf("LAYAR DIKUNCI (%s). Hubungi pengawas.", msg.Data.StringOr("reason", "manual")))
}

func (a *agent) onEmergencyLock(protocol.Message) {
	a.setLocked(true)
	fmt.Fprintln(a.out, color.Red.Sprint("PENGUNCIAN DARURAT. Hentikan pekerjaan Anda."))
}

func (a *agent) onUnlock(protocol.Message) {
	a.setLocked(false)
	fmt.Fprintln(a.out, color.Green.Sprint("Layar dibuka kembali."))
}

func (a *agent) onPermissionResponse(msg protocol.Message) {
	if !msg.Data.Bool("approved") {
		fmt.Fprintln(a.out, color.Yellow.Sprint("Permintaan izin ditolak."))
		return
	}
	expiresAt, ok := msg.Data.Time("expires_at")
	if !ok {
		a.log.Warn("Approved permission without expiry", "request_id", msg.Data.String("request_id"))
		return
	}
	a.gate.Activate(expiresAt)
	fmt.Fprintln(a.out, color.Cyan.Sprintf("Izin disetujui sampai %s.", expiresAt.Local().Format("15:04:05")))
}

func (a *agent) onPermissionExpired() {
	fmt.Fprintln(a.out, color.Cyan.Sprint("Waktu izin habis, pemantauan wajah aktif kembali."))
}

func (a *agent) onPing(protocol.Message) {
	if err := a.link.Send(protocol.New(protocol.Pong, nil, "")); err != nil {
		a.log.Debug("Pong not sent", "error", err)
	}
}

// watchTermination reports the first interrupt or terminate signal as a
// termination attempt, then shuts the agent down. The report goes out while
// the transport is still open.
func (a *agent) watchTermination(ctx context.Context, signals <-chan os.Signal) {
	select {
	case <-ctx.Done():
	case sig := <-signals:
		a.log.Warn("Termination requested", "signal", sig.String())
		a.reportTermination()
		if a.quit != nil {
			a.quit()
		}
	}
}

func (a *agent) reportTermination() {
	err := a.link.SendViolationReport(domain.ViolationEvent{
		Type:        domain.ProcessTerminationAttempt,
		Severity:    domain.SeverityCritical,
		Description: "Percobaan menutup aplikasi peserta",
		Timestamp:   time.Now(),
	})
	if err != nil {
		a.log.Warn("Termination attempt not reported", "error", err)
	}
	fmt.Fprintln(a.out, color.Red.Sprint("Anda tidak diizinkan menutup aplikasi ini selama ujian berlangsung. Percobaan ini dicatat."))
}

func (a *agent) setLocked(locked bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.locked = locked
}

// ConsoleWorker turns typed commands into permission requests:
//
//	izin <minutes> [reason]
type ConsoleWorker struct {
	log   *slog.Logger
	link  link
	in    io.Reader
	out   io.Writer
	lines chan string
	once  sync.Once
}

func NewConsoleWorker(log *slog.Logger, link link, in io.Reader, out io.Writer) *ConsoleWorker {
	return &ConsoleWorker{log: log, link: link, in: in, out: out, lines: make(chan string)}
}

// Run returns nil when the input is closed.
func (w *ConsoleWorker) Run(ctx context.Context) error {
	// the reader cannot be interrupted, so it lives as long as the input
	w.once.Do(func() {
		go func() {
			defer close(w.lines)
			scanner := bufio.NewScanner(w.in)
			for scanner.Scan() {
				w.lines <- scanner.Text()
			}
		}()
	})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-w.lines:
			if !ok {
				return nil
			}
			w.handle(line)
		}
	}
}

func (w *ConsoleWorker) handle(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	if fields[0] != "izin" || len(fields) < 2 {
		fmt.Fprintln(w.out, "Perintah: izin <menit> [alasan]")
		return
	}
	minutes, err := strconv.Atoi(fields[1])
	if err != nil || minutes < 1 {
		fmt.Fprintln(w.out, "Durasi izin harus berupa angka menit.")
		return
	}
	reason := strings.Join(fields[2:], " ")
	if err := w.link.SendPermissionRequest(domain.DefaultRequestType, minutes, reason); err != nil {
		w.log.Warn("Permission request not sent", "error", err)
		fmt.Fprintln(w.out, color.Red.Sprint("Permintaan izin gagal dikirim, coba lagi."))
		return
	}
	fmt.Fprintln(w.out, "Permintaan izin dikirim, menunggu pengawas.")
}
