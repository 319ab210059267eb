// Package supervisor provides the HTTP client for the supervisor API.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Wire status values.
const (
	StatusApproved     = "is_approved"
	StatusDisapproved  = "is_disapproved"
	StatusInProgress   = "in_progress"
	StatusUnclassified = "unclassified"
)

// ConversationQuery is the wire query of a conversation page. Dates are
// YYYY-MM-DD.
type ConversationQuery struct {
	Page   int
	Start  string
	End    string
	Status []string
	Search string
}

// Conversation is a conversation as the API returns it.
type Conversation struct {
	UUID        string  `json:"uuid"`
	URN         string  `json:"urn"`
	ContactName string  `json:"contact_name"`
	Status      string  `json:"status"`
	Start       string  `json:"start"`
	End         *string `json:"end"`
	LastMessage string  `json:"last_message"`
}

// ConversationList is one page of conversations.
type ConversationList struct {
	Count   int            `json:"count"`
	Next    *string        `json:"next"`
	Results []Conversation `json:"results"`
}

// APIError is a non-2xx supervisor response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supervisor returned status %d: %s", e.Status, e.Body)
}

// API is the supervisor backend.
type API interface {
	ListConversations(ctx context.Context, q ConversationQuery) (*ConversationList, error)
	ListTraces(ctx context.Context, urn string) ([]json.RawMessage, error)
}

// Client is an HTTP client for the supervisor API.
type Client struct {
	baseURL     string
	token       string
	projectUUID string
	httpClient  *http.Client
}

// Ensure Client implements API.
var _ API = (*Client)(nil)

// NewClient creates a new supervisor client.
func NewClient(baseURL, token, projectUUID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		token:       token,
		projectUUID: projectUUID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListConversations fetches one page of conversations.
func (c *Client) ListConversations(ctx context.Context, q ConversationQuery) (*ConversationList, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Start != "" {
		params.Set("start", q.Start)
	}
	if q.End != "" {
		params.Set("end", q.End)
	}
	if len(q.Status) > 0 {
		params.Set("status", strings.Join(q.Status, ","))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}

	endpoint := fmt.Sprintf("%s/api/%s/supervisor/conversations", c.baseURL, url.PathEscape(c.projectUUID))
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var list ConversationList
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListTraces fetches the raw trace messages of a conversation.
func (c *Client) ListTraces(ctx context.Context, urn string) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/%s/supervisor/conversations/%s/traces",
		c.baseURL, url.PathEscape(c.projectUUID), url.PathEscape(urn))

	var body json.RawMessage
	if err := c.get(ctx, endpoint, &body); err != nil {
		return nil, err
	}

	// The endpoint answers with a bare list or a paginated envelope.
	var traces []json.RawMessage
	if err := json.Unmarshal(body, &traces); err == nil {
		return traces, nil
	}
	var page struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode traces: %w", err)
	}
	return page.Results, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call supervisor: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
