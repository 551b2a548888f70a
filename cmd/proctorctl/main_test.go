package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"proctor/infrastructure/storage"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// adminStub answers like the admin API and records what it was asked.
type adminStub struct {
	auth   string
	bodies map[string]map[string]any
}

func (s *adminStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	s.bodies = make(map[string]map[string]any)
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	record := func(r *http.Request) {
		s.auth = r.Header.Get("Authorization")
		var body map[string]any
		if json.NewDecoder(r.Body).Decode(&body) == nil {
			s.bodies[r.Method+" "+r.URL.Path] = body
		}
	}
	mux.HandleFunc("POST /admin/login", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusOK, map[string]string{"token": "tok-123"})
	})
	mux.HandleFunc("GET /admin/participants", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if s.auth != "Bearer tok-123" {
			reply(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		reply(w, http.StatusOK, []map[string]any{{
			"id": "P1", "name": "Budi Santoso", "state": "ACTIVE", "lock_state": "UNLOCKED",
			"integrity_score": 87.5, "warning_count": 1, "violation_count": 1, "connected": true,
		}})
	})
	mux.HandleFunc("PUT /admin/escalation", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusOK, map[string]any{"auto_escalation": false, "warnings_before_flag": 3, "warnings_before_lock": 5})
	})
	mux.HandleFunc("POST /admin/config", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusOK, map[string]any{"reached": 2, "rules": map[string]any{"warnings_before_lock": 4}})
	})
	mux.HandleFunc("POST /admin/permissions/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusConflict, map[string]string{"error": "permission request is not pending"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(srv *httptest.Server, env map[string]string, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	getenv := func(k string) string {
		if k == "PROCTOR_ADDR" {
			return srv.URL
		}
		return env[k]
	}
	code := run(context.Background(), args, &stdout, &stderr, getenv)
	return code, stdout.String(), stderr.String()
}

func TestRun_LoginPrintsToken(t *testing.T) {
	req := require.New(t)
	stub := &adminStub{}
	srv := stub.server(t)

	code, out, _ := runCLI(srv, nil, "login", "-u", "pengawas", "--password", "ComplexPass123!")

	req.Equal(exitOK, code)
	req.Equal("tok-123\n", out)
	req.Equal(map[string]any{"username": "pengawas", "password": "ComplexPass123!"}, stub.bodies["POST /admin/login"])
}

func TestRun_ParticipantsUsesTokenFromEnvironment(t *testing.T) {
	req := require.New(t)
	stub := &adminStub{}
	srv := stub.server(t)

	code, out, _ := runCLI(srv, map[string]string{"PROCTOR_TOKEN": "tok-123"}, "participants")

	req.Equal(exitOK, code)
	req.Equal("Bearer tok-123", stub.auth)
	req.Contains(out, "Budi Santoso")
	req.Contains(out, "87.5")
}

func TestRun_Unauthorized(t *testing.T) {
	req := require.New(t)
	srv := (&adminStub{}).server(t)

	code, _, errOut := runCLI(srv, nil, "participants")

	req.Equal(exitRuntime, code)
	req.Contains(errOut, "missing bearer token")
}

func TestRun_ConfigOnlySendsChangedThresholds(t *testing.T) {
	req := require.New(t)
	stub := &adminStub{}
	srv := stub.server(t)

	code, out, _ := runCLI(srv, nil, "--token", "tok-123", "config", "--blocked", "discord,anydesk", "--lock", "4")

	req.Equal(exitOK, code)
	req.Contains(out, "rules pushed to 2 participants")
	body := stub.bodies["POST /admin/config"]
	req.Equal([]any{"discord", "anydesk"}, body["blocked_applications"])
	req.Equal(float64(4), body["warnings_before_lock"])
	req.NotContains(body, "warnings_before_flag")
}

func TestRun_EscalationSwitch(t *testing.T) {
	req := require.New(t)
	stub := &adminStub{}
	srv := stub.server(t)

	code, out, _ := runCLI(srv, nil, "escalation", "off")

	req.Equal(exitOK, code)
	req.Equal(map[string]any{"auto_escalation": false}, stub.bodies["PUT /admin/escalation"])
	req.Contains(out, "lock after 5")
}

func TestRun_ServerErrorIsReported(t *testing.T) {
	req := require.New(t)
	srv := (&adminStub{}).server(t)

	code, _, errOut := runCLI(srv, nil, "approve", "req-1")

	req.Equal(exitRuntime, code)
	req.Contains(errOut, "not pending")
}

func TestRun_UsageErrors(t *testing.T) {
	req := require.New(t)
	srv := (&adminStub{}).server(t)

	code, _, errOut := runCLI(srv, nil)
	req.Equal(exitUsage, code)
	req.Contains(errOut, "usage: proctorctl")

	code, _, errOut = runCLI(srv, nil, "dance")
	req.Equal(exitUsage, code)
	req.Contains(errOut, `unknown command "dance"`)

	code, _, _ = runCLI(srv, nil, "lock")
	req.Equal(exitUsage, code)

	code, _, _ = runCLI(srv, nil, "inspect")
	req.Equal(exitUsage, code)
}

func TestInspect_PrintsDecodedRecords(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	defer db.Close()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	_, err = storage.NewParticipantRepository(db, log).RegisterParticipant("P1", "Budi Santoso", 1, time.Now())
	req.NoError(err)

	var out bytes.Buffer
	req.NoError(inspect(db, "participant:", &out))

	req.Contains(out.String(), "participant:P1")
	req.Contains(out.String(), "name=Budi Santoso")
}
