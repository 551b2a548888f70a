package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// api speaks to the admin endpoints of a proctor server.
type api struct {
	base  string
	token string
	http  *http.Client
}

func newAPI(base, token string) *api {
	return &api{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (a *api) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type participant struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	ComputerIP     string         `json:"computer_ip"`
	State          string         `json:"state"`
	Lock           string         `json:"lock_state"`
	IntegrityScore float64        `json:"integrity_score"`
	WarningCount   int            `json:"warning_count"`
	ViolationCount int            `json:"violation_count"`
	Connected      bool           `json:"connected"`
	LastSeen       *time.Time     `json:"last_seen"`
	Status         map[string]any `json:"status"`
}

type violation struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	Type          string    `json:"violation_type"`
	Severity      string    `json:"severity"`
	Description   string    `json:"description"`
	Timestamp     time.Time `json:"timestamp"`
}

type permission struct {
	ID              string     `json:"id"`
	ParticipantID   string     `json:"participant_id"`
	RequestType     string     `json:"request_type"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason"`
	DurationMinutes int        `json:"duration_minutes"`
	RequestedAt     time.Time  `json:"requested_at"`
	ExpiresAt       *time.Time `json:"expires_at"`
	Active          bool       `json:"active"`
}

type exam struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

type escalation struct {
	AutoEscalation bool `json:"auto_escalation"`
	FlagThreshold  int  `json:"warnings_before_flag"`
	LockThreshold  int  `json:"warnings_before_lock"`
}
