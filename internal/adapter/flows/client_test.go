package flows

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

func TestSimulatePostsToFlowEndpoint(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/flows/f1/simulate" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"events":[{"type":"msg_created","step_uuid":"s1","msg":{"text":"Hi","quick_replies":["a"]},"custom":1}],
			"session":{"runs":[{"path":[{"uuid":"s1","node_uuid":"n1","exit_uuid":"e1"}],"status":"waiting"}],"wait":{"hint":{"type":"digits","count":1}},"extra":"kept"},
			"context":{"contact":{"name":"x"}}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "Token abc", time.Second)
	rc, err := client.Simulate(context.Background(), "f1", StartRequest{
		Contact: domain.Contact{UUID: "c1", URNs: []string{"tel:123"}},
		Trigger: Trigger{Type: "manual", Flow: FlowRef{UUID: "f1", Name: "Test"}},
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if gotAuth != "Token abc" {
		t.Fatalf("unexpected authorization: %q", gotAuth)
	}
	trigger, _ := gotBody["trigger"].(map[string]interface{})
	if trigger["type"] != "manual" {
		t.Fatalf("unexpected trigger: %+v", gotBody)
	}

	if len(rc.Events) != 1 || rc.Events[0].Type != domain.EventTypeMsgCreated {
		t.Fatalf("unexpected events: %+v", rc.Events)
	}
	if _, ok := rc.Events[0].Extra["custom"]; !ok {
		t.Fatalf("expected unknown event field to be kept")
	}
	if rc.Session == nil || len(rc.Session.Runs) != 1 || rc.Session.Runs[0].Status != domain.RunStatusWaiting {
		t.Fatalf("unexpected session: %+v", rc.Session)
	}
	if rc.Session.Wait == nil || rc.Session.Wait.Hint == nil || rc.Session.Wait.Hint.Count != 1 {
		t.Fatalf("unexpected wait: %+v", rc.Session.Wait)
	}

	// The session round-trips verbatim, unknown fields included.
	echoed, err := json.Marshal(rc.Session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	var roundTrip map[string]interface{}
	json.Unmarshal(echoed, &roundTrip)
	if roundTrip["extra"] != "kept" {
		t.Fatalf("expected raw session to be echoed, got %s", echoed)
	}
}

func TestSimulateAPIError(t *testing.T) {
	cases := []struct {
		status  int
		body    string
		message string
	}{
		{http.StatusBadRequest, `{"error":"flow is inactive"}`, "flow is inactive"},
		{http.StatusInternalServerError, "boom", "boom"},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		client := NewClient(server.URL, "", time.Second)
		_, err := client.Simulate(context.Background(), "f1", ResumeRequest{})
		server.Close()

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != tc.status || apiErr.Message != tc.message {
			t.Fatalf("unexpected error: %+v", apiErr)
		}
	}
}

func TestSimulateHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, "", time.Minute)
	if _, err := client.Simulate(ctx, "f1", ResumeRequest{}); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
