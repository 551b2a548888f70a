package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"proctor/client"
	"proctor/detection"
	"proctor/domain"
	"proctor/protocol"
	"proctor/runtime/workers"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK       = 0
	exitRuntime  = 1
	exitConfig   = 2
	exitRejected = 3
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Participant agent terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := loadConfig()
	if err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel).With("participant_id", config.ParticipantID)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Identity pre-check, nothing to report yet so a signal just aborts it
	if !config.SkipValidation {
		checkCtx, cancelSignal := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		checkCtx, cancel := context.WithTimeout(checkCtx, 10*time.Second)
		v, err := client.ValidateIdentity(checkCtx, &http.Client{Timeout: 10 * time.Second}, config.HTTPBase(), config.ParticipantID, config.Name)
		cancel()
		cancelSignal()
		if err != nil {
			return exitRuntime, fmt.Errorf("server unreachable: %w", err)
		}
		if !v.Valid {
			fmt.Fprintln(os.Stdout, color.Red.Sprint(v.Message))
			return exitRejected, nil
		}
		fmt.Fprintln(os.Stdout, color.Green.Sprintf("Selamat datang, %s.", v.Participant.Name))
	}

	// 3. Connection
	conn := client.New(client.Config{
		ServerURL: config.ServerURL,
		Identity: client.Identity{
			ParticipantID: config.ParticipantID,
			Name:          config.Name,
			ComputerIP:    config.ComputerIP,
			ComputerName:  config.ComputerName,
		},
		ReconnectInterval: config.ReconnectInterval,
	}, logger)

	// 4. Detection pipeline: process monitor -> gate -> reporter -> server
	events := make(chan domain.ViolationEvent, config.EventBuffer)
	monitor := workers.NewProcessMonitorWorker(logger, workers.SystemProcesses{}, nil, events, config.ProcessScanInterval, config.KillBlocked)

	var a *agent
	gate := detection.NewPermissionGate(func() { a.onPermissionExpired() })
	defer gate.Stop()
	a = newAgent(logger, conn, monitor, gate, os.Stdout, stop)

	conn.Handle(protocol.RegisterAck, a.onRegisterAck).
		Handle(protocol.ConfigUpdate, a.onConfigUpdate).
		Handle(protocol.Warning, a.onWarning).
		Handle(protocol.Lock, a.onLock).
		Handle(protocol.Unlock, a.onUnlock).
		Handle(protocol.EmergencyLock, a.onEmergencyLock).
		Handle(protocol.PermissionResponse, a.onPermissionResponse).
		Handle(protocol.Ping, a.onPing)

	// Closing the agent during the exam is itself a violation
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go a.watchTermination(ctx, signals)

	stats, err := workers.ProcessSelfStats()
	if err != nil {
		return exitRuntime, fmt.Errorf("process stats unavailable: %w", err)
	}

	// 5. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		conn,
		workers.NewHeartbeatWorker(logger, conn, config.HeartbeatInterval, stats),
		monitor,
		workers.NewViolationReporterWorker(logger, events, gate, conn),
		NewConsoleWorker(logger, conn, os.Stdin, os.Stdout),
	)

	logger.Info("Participant agent started", "server", config.ServerURL)
	sup.Run(ctx)

	if a.Rejected() {
		return exitRejected, nil
	}
	logger.Info("Participant agent stopped")
	return exitOK, nil
}
