package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"proctor/auth"
	"proctor/infrastructure/storage"
	"proctor/infrastructure/web"
	"proctor/internal"
	"proctor/observability"
	"proctor/runtime"
	"proctor/runtime/workers"
	"proctor/services"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Proctor terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	rules, err := config.ExamRules()
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & runtime
	participants := storage.NewParticipantRepository(db, logger)
	exams := storage.NewExamSessionRepository(db, logger)
	violations := storage.NewViolationRepository(db, logger)
	permissions := storage.NewPermissionRepository(db, logger)
	operators := storage.NewOperatorRepository(db)

	registry := runtime.NewRegistry(logger)
	monitor := observability.NewMonitor(logger, registry.Count)

	// 4. Services
	escalation := services.NewEscalationService(
		participants, violations, exams, permissions,
		registry, monitor, logger,
		rules.Escalation, config.AutoEscalation,
	)
	permissionService := services.NewPermissionService(permissions, exams, registry, monitor, logger)
	examService := services.NewExamService(exams, participants, violations, registry, escalation, logger, rules)
	registration := services.NewRegistrationService(participants, exams, logger)

	tokens := auth.NewTokens(config.AuthSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(operators, tokens, logger)
	if config.OperatorUsername != "" {
		if err := authService.EnsureOperator(config.OperatorUsername, config.OperatorPassword); err != nil {
			return exitConfig, fmt.Errorf("operator bootstrap failed: %w", err)
		}
	}

	dispatcher := services.NewMessageHandlers(registration, escalation, permissionService, examService, registry, monitor, logger).
		Bind(runtime.NewDispatcher(logger))

	server := web.NewServer(config.Web(), web.Deps{
		Registry:     registry,
		Dispatcher:   dispatcher,
		Registration: registration,
		Escalation:   escalation,
		Permissions:  permissionService,
		Exams:        examService,
		Auth:         authService,
		Tokens:       tokens,
		Monitor:      monitor,
	}, logger)

	// 5. Debug inspector
	if config.DebugEnabled || logger.Enabled(ctx, slog.LevelDebug) {
		debug := internal.StartDebugServer(logger, db, config.DebugPort, "/inspect", nil, monitor.AsMap)
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		defer func() { _ = debug.Close() }()
	}

	// 6. Background workers
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewStatsWorker(logger, monitor, config.StatsInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 7. HTTP + WebSocket server
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting proctor server", "host", config.Host, "port", config.Port, "auto_escalation", config.AutoEscalation, "at", time.Now().UTC())
		if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
			return
		}
		errChan <- nil
	}()

	// 8. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		err = <-errChan
	case err = <-errChan:
	}
	if err != nil {
		code = exitRuntime
	}

	// 9. Final Cleanup
	stop()
	sup.Stop()
	<-supDone
	logger.Info("Program stopped cleanly")
	return code, err
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
