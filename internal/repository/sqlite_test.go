package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestSQLiteStorePreviewLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	preview := &domain.Preview{
		PreviewID: "prv_1",
		FlowUUID:  "f1",
		FlowName:  "Welcome",
		Contact:   json.RawMessage(`{"uuid":"c1"}`),
	}
	if err := store.CreatePreview(ctx, preview); err != nil {
		t.Fatalf("CreatePreview failed: %v", err)
	}
	if preview.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	got, err := store.GetPreview(ctx, "prv_1")
	if err != nil {
		t.Fatalf("GetPreview failed: %v", err)
	}
	if got == nil || got.FlowName != "Welcome" || string(got.Contact) != `{"uuid":"c1"}` {
		t.Fatalf("unexpected preview: %+v", got)
	}
	if got.State != nil {
		t.Fatalf("expected empty state, got %s", got.State)
	}

	if err := store.UpdatePreviewState(ctx, "prv_1", []byte(`{"active":true}`)); err != nil {
		t.Fatalf("UpdatePreviewState failed: %v", err)
	}
	got, _ = store.GetPreview(ctx, "prv_1")
	if string(got.State) != `{"active":true}` {
		t.Fatalf("unexpected state: %s", got.State)
	}

	if err := store.UpdatePreviewState(ctx, "missing", []byte(`{}`)); err == nil {
		t.Fatalf("expected error for unknown preview")
	}

	missing, err := store.GetPreview(ctx, "missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil preview, got %+v (%v)", missing, err)
	}

	previews, err := store.ListPreviews(ctx, 10)
	if err != nil {
		t.Fatalf("ListPreviews failed: %v", err)
	}
	if len(previews) != 1 {
		t.Fatalf("expected 1 preview, got %d", len(previews))
	}
}

func TestSQLiteStorePreviewEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreatePreview(ctx, &domain.Preview{PreviewID: "prv_1", FlowUUID: "f1"}); err != nil {
		t.Fatalf("CreatePreview failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		event := &domain.TimelineEvent{
			EventID:   "evt_" + string(rune('a'+i)),
			PreviewID: "prv_1",
			Seq:       i,
			Ts:        time.Now().UnixMilli(),
			Type:      domain.EventTypeMsgCreated,
			Payload:   json.RawMessage(`{"type":"msg_created"}`),
		}
		if err := store.AppendPreviewEvent(ctx, event); err != nil {
			t.Fatalf("AppendPreviewEvent failed: %v", err)
		}
	}

	// Sequence numbers are unique per preview.
	dup := &domain.TimelineEvent{EventID: "evt_dup", PreviewID: "prv_1", Seq: 2, Type: domain.EventTypeInfo}
	if err := store.AppendPreviewEvent(ctx, dup); err == nil {
		t.Fatalf("expected duplicate seq to fail")
	}

	events, err := store.GetPreviewEvents(ctx, "prv_1", 1, 0)
	if err != nil {
		t.Fatalf("GetPreviewEvents failed: %v", err)
	}
	if len(events) != 2 || events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected events: %+v", events)
	}

	events, _ = store.GetPreviewEvents(ctx, "prv_1", 0, 1)
	if len(events) != 1 || events[0].Seq != 1 {
		t.Fatalf("unexpected limited events: %+v", events)
	}
}

func TestSQLiteStoreTraceLogsAndAnomalies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	logs := []domain.TraceLog{
		{LogID: "log_1", PreviewID: "prv_1", Ts: 10, Kind: "model_invocation_input", Summary: "Invoking model", Category: "invoking_model", Icon: "neurology"},
		{LogID: "log_2", PreviewID: "prv_1", Ts: 20, Summary: "Delegating to agent", Category: "delegating_to_agent", Icon: "login", AgentName: "Billing", Raw: json.RawMessage(`{"a":1}`)},
		{LogID: "log_3", PreviewID: "prv_2", Ts: 30, Summary: "Thinking", Category: "thinking", Icon: "lightbulb"},
	}
	for i := range logs {
		if err := store.CreateTraceLog(ctx, &logs[i]); err != nil {
			t.Fatalf("CreateTraceLog failed: %v", err)
		}
	}

	got, err := store.GetTraceLogs(ctx, "prv_1", 0, 0)
	if err != nil {
		t.Fatalf("GetTraceLogs failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(got))
	}
	if got[1].AgentName != "Billing" || string(got[1].Raw) != `{"a":1}` {
		t.Fatalf("unexpected log: %+v", got[1])
	}

	got, _ = store.GetTraceLogs(ctx, "prv_1", 10, 0)
	if len(got) != 1 || got[0].LogID != "log_2" {
		t.Fatalf("unexpected logs after ts: %+v", got)
	}

	anomaly := &domain.TraceAnomaly{AnomalyID: "anm_1", Message: "No matching trace rules found", Trace: `{"trace":{}}`, CreatedAt: time.Now()}
	if err := store.CreateTraceAnomaly(ctx, anomaly); err != nil {
		t.Fatalf("CreateTraceAnomaly failed: %v", err)
	}
	anomalies, err := store.ListTraceAnomalies(ctx, 10)
	if err != nil {
		t.Fatalf("ListTraceAnomalies failed: %v", err)
	}
	if len(anomalies) != 1 || anomalies[0].Trace != `{"trace":{}}` {
		t.Fatalf("unexpected anomalies: %+v", anomalies)
	}
}
