// Package flows provides the HTTP client for the flow simulation backend.
package flows

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// Environment is the simulated workspace environment.
type Environment struct {
	DateFormat string   `json:"date_format"`
	TimeFormat string   `json:"time_format"`
	Timezone   string   `json:"timezone"`
	Languages  []string `json:"languages"`
}

// FlowRef identifies the flow being simulated.
type FlowRef struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// Trigger starts a simulation.
type Trigger struct {
	Type        string          `json:"type"`
	Environment Environment     `json:"environment"`
	Contact     domain.Contact  `json:"contact"`
	Flow        FlowRef         `json:"flow"`
	Params      json.RawMessage `json:"params"`
	TriggeredOn string          `json:"triggered_on"`
}

// StartRequest is the body of a start call.
type StartRequest struct {
	Contact domain.Contact `json:"contact"`
	Trigger Trigger        `json:"trigger"`
}

// Resume continues a waiting session.
type Resume struct {
	Type      string         `json:"type"`
	Msg       domain.Msg     `json:"msg"`
	ResumedOn string         `json:"resumed_on"`
	Contact   domain.Contact `json:"contact"`
}

// ResumeRequest is the body of a resume call.
type ResumeRequest struct {
	Session *domain.Session `json:"session"`
	Resume  Resume          `json:"resume"`
}

// RunContext is the simulator's response.
type RunContext struct {
	Events  []domain.Event             `json:"events"`
	Session *domain.Session            `json:"session"`
	Context map[string]json.RawMessage `json:"context,omitempty"`
}

// APIError is a non-2xx simulator response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("simulator returned status %d: %s", e.Status, e.Message)
}

// Simulator is the simulation backend.
type Simulator interface {
	Simulate(ctx context.Context, flowUUID string, body interface{}) (*RunContext, error)
}

// Client is an HTTP client for the simulation endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Ensure Client implements Simulator.
var _ Simulator = (*Client)(nil)

// NewClient creates a new simulator client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Simulate posts body to the flow's simulate endpoint.
func (c *Client) Simulate(ctx context.Context, flowUUID string, body interface{}) (*RunContext, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v2/flows/%s/simulate", c.baseURL, url.PathEscape(flowUUID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call simulator: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(respBody)}
	}

	var rc RunContext
	if err := json.Unmarshal(respBody, &rc); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &rc, nil
}

func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}
