package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Validation is the answer of GET /validate_participant/{id}.
type Validation struct {
	Valid       bool   `json:"valid"`
	Message     string `json:"message,omitempty"`
	Participant *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"participant,omitempty"`
}

// ValidateIdentity pre-checks the participant before the persistent
// connection is opened. baseURL is the HTTP base of the server.
func ValidateIdentity(ctx context.Context, httpClient *http.Client, baseURL, participantID, name string) (Validation, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint := fmt.Sprintf("%s/validate_participant/%s?name=%s",
		strings.TrimRight(baseURL, "/"), url.PathEscape(participantID), url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Validation{}, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Validation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Validation{}, fmt.Errorf("validate participant: unexpected status %d", resp.StatusCode)
	}
	var v Validation
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Validation{}, fmt.Errorf("validate participant: %w", err)
	}
	return v, nil
}
