package supervisor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListConversationsBuildsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/p1/supervisor/conversations" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("start") != "2024-01-31" || q.Get("status") != "is_approved,in_progress" || q.Get("search") != "ana" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Fatalf("unexpected authorization: %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"count":1,"next":null,"results":[{"uuid":"c1","urn":"tel:1","contact_name":"Ana","status":"is_approved","start":"2024-01-31T10:00:00Z"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok", "p1", time.Second)
	list, err := client.ListConversations(context.Background(), ConversationQuery{
		Page:   2,
		Start:  "2024-01-31",
		Status: []string{StatusApproved, StatusInProgress},
		Search: "ana",
	})
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if list.Count != 1 || len(list.Results) != 1 || list.Results[0].ContactName != "Ana" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestListTracesAcceptsBothShapes(t *testing.T) {
	bodies := []string{
		`[{"trace":{}},{"trace":{}}]`,
		`{"results":[{"trace":{}},{"trace":{}}]}`,
	}
	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.EscapedPath() != "/api/p1/supervisor/conversations/tel:55%2F1/traces" {
				t.Fatalf("unexpected path: %s", r.URL.EscapedPath())
			}
			w.Write([]byte(body))
		}))

		client := NewClient(server.URL, "", "p1", time.Second)
		traces, err := client.ListTraces(context.Background(), "tel:55/1")
		server.Close()
		if err != nil {
			t.Fatalf("ListTraces failed: %v", err)
		}
		if len(traces) != 2 {
			t.Fatalf("expected 2 traces, got %d", len(traces))
		}
	}
}

func TestSupervisorAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", "p1", time.Second)
	_, err := client.ListConversations(context.Background(), ConversationQuery{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden || apiErr.Body != "denied" {
		t.Fatalf("unexpected error: %v", err)
	}
}
