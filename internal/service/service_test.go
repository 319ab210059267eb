package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/errortrack"
	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/flows"
	"github.com/xiaot623/gogo/agentbuilder/internal/config"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
	"github.com/xiaot623/gogo/agentbuilder/internal/hub"
	"github.com/xiaot623/gogo/agentbuilder/tests/helpers"
)

type stubSimulator struct {
	mu        sync.Mutex
	responses []*flows.RunContext
	err       error
	calls     int
}

func (s *stubSimulator) Simulate(ctx context.Context, flowUUID string, body interface{}) (*flows.RunContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &flows.RunContext{}, nil
	}
	rc := s.responses[0]
	s.responses = s.responses[1:]
	return rc, nil
}

type published struct {
	previewID string
	msgType   string
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(previewID, msgType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, published{previewID: previewID, msgType: msgType})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.messages {
		out = append(out, m.msgType)
	}
	return out
}

func noWait(ctx context.Context, d time.Duration) error { return ctx.Err() }

func waitingSession() *domain.Session {
	return &domain.Session{
		Status: "waiting",
		Runs: []domain.Run{{
			Status: domain.RunStatusWaiting,
			Path:   []domain.PathStep{{UUID: "s1", NodeUUID: "n1", ExitUUID: "e1"}},
		}},
	}
}

func newTestService(t *testing.T, sim flows.Simulator, rec errortrack.Reporter) (*Service, *recordingPublisher) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	pub := &recordingPublisher{}
	svc := New(db, sim, pub, config.Default(), nil, rec, nil).WithWaiter(noWait)
	return svc, pub
}

func TestCreatePreviewStartsAndPersists(t *testing.T) {
	ctx := context.Background()
	sim := &stubSimulator{responses: []*flows.RunContext{{
		Events: []domain.Event{
			{Type: domain.EventTypeMsgCreated, StepUUID: "s1", Msg: &domain.Msg{Text: "Hi", QuickReplies: []string{"Yes"}}},
		},
		Session: waitingSession(),
	}}}
	svc, pub := newTestService(t, sim, nil)

	p, state, err := svc.CreatePreview(ctx, CreatePreviewRequest{ContentBaseUUID: "0123456789abcdef", FlowUUID: "f1", FlowName: "Welcome"})
	if err != nil {
		t.Fatalf("CreatePreview failed: %v", err)
	}
	if len(p.PreviewID) != len("prv_")+8 {
		t.Fatalf("unexpected preview id: %s", p.PreviewID)
	}
	if !state.Active || len(state.Events) != 1 || state.DrawerType != domain.DrawerTypeQuickReplies {
		t.Fatalf("unexpected state: %+v", state)
	}

	events, err := svc.GetEvents(ctx, p.PreviewID, 0, 0)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Seq != 1 || events[0].Type != domain.EventTypeMsgCreated {
		t.Fatalf("unexpected events: %+v", events)
	}

	stored, err := svc.store.GetPreview(ctx, p.PreviewID)
	if err != nil || stored == nil {
		t.Fatalf("GetPreview failed: %v", err)
	}
	var persisted domain.PreviewState
	if err := json.Unmarshal(stored.State, &persisted); err != nil {
		t.Fatalf("stored state is not JSON: %v", err)
	}
	if !persisted.Active {
		t.Fatalf("expected persisted state to be active")
	}

	types := pub.types()
	if len(types) != 2 || types[0] != hub.TypeEvent || types[1] != hub.TypeState {
		t.Fatalf("unexpected published messages: %v", types)
	}

	activity, err := svc.GetActivity(ctx, p.PreviewID)
	if err != nil {
		t.Fatalf("GetActivity failed: %v", err)
	}
	if activity.Nodes["n1"] != 1 {
		t.Fatalf("unexpected activity: %+v", activity)
	}
}

func TestCreatePreviewStartFailure(t *testing.T) {
	ctx := context.Background()
	sim := &stubSimulator{err: &flows.APIError{Status: 500, Message: "down"}}
	svc, _ := newTestService(t, sim, nil)

	p, state, err := svc.CreatePreview(ctx, CreatePreviewRequest{FlowUUID: "f1"})
	var apiErr *flows.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if state.Sprinting {
		t.Fatalf("expected sprinting to be reset")
	}

	// The preview survives the failure and can be restarted.
	sim.mu.Lock()
	sim.err = nil
	sim.mu.Unlock()
	if _, err := svc.StartPreview(ctx, p.PreviewID, "", nil); err != nil {
		t.Fatalf("StartPreview failed: %v", err)
	}
}

func TestCreatePreviewRequiresFlow(t *testing.T) {
	svc, _ := newTestService(t, &stubSimulator{}, nil)
	if _, _, err := svc.CreatePreview(context.Background(), CreatePreviewRequest{}); err == nil {
		t.Fatalf("expected error without flow_uuid")
	}
}

func TestResumeUnknownPreview(t *testing.T) {
	svc, _ := newTestService(t, &stubSimulator{}, nil)
	if _, err := svc.Resume(context.Background(), "prv_missing", "hi"); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("expected ErrPreviewNotFound, got %v", err)
	}
	if _, err := svc.GetState(context.Background(), "prv_missing"); !errors.Is(err, ErrPreviewNotFound) {
		t.Fatalf("expected ErrPreviewNotFound, got %v", err)
	}
}

func TestResumeAppendsReply(t *testing.T) {
	ctx := context.Background()
	sim := &stubSimulator{responses: []*flows.RunContext{
		{Events: []domain.Event{{Type: domain.EventTypeMsgCreated, StepUUID: "s1", Msg: &domain.Msg{Text: "Name?"}}}, Session: waitingSession()},
		{Session: waitingSession()},
	}}
	svc, _ := newTestService(t, sim, nil)

	p, _, err := svc.CreatePreview(ctx, CreatePreviewRequest{FlowUUID: "f1"})
	if err != nil {
		t.Fatalf("CreatePreview failed: %v", err)
	}
	state, err := svc.Resume(ctx, p.PreviewID, "Ana")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if len(state.Events) != 2 || state.Events[1].Msg == nil || state.Events[1].Msg.Text != "Ana" {
		t.Fatalf("unexpected events: %+v", state.Events)
	}

	events, _ := svc.GetEvents(ctx, p.PreviewID, 1, 0)
	if len(events) != 1 || events[0].Seq != 2 {
		t.Fatalf("unexpected stored events: %+v", events)
	}
}

func TestGetStateFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &stubSimulator{}, nil)

	if err := svc.store.CreatePreview(ctx, &domain.Preview{PreviewID: "prv_old", FlowUUID: "f1", State: json.RawMessage(`{"flow_uuid":"f1","active":true}`)}); err != nil {
		t.Fatalf("CreatePreview failed: %v", err)
	}
	state, err := svc.GetState(ctx, "prv_old")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if !state.Active || state.FlowUUID != "f1" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestIngestTraceThreadsAgentPerPreview(t *testing.T) {
	ctx := context.Background()
	rec := &errortrack.Recorder{}
	svc, pub := newTestService(t, &stubSimulator{}, rec)

	delegate := json.RawMessage(`{"trace":{"trace":{"orchestrationTrace":{"invocationInput":{"agentCollaboratorInvocationInput":{"agentCollaboratorName":"sales"}}}}}}`)
	think := json.RawMessage(`{"trace":{"trace":{"orchestrationTrace":{"rationale":{"text":"..."}}}}}`)

	if _, _, err := svc.IngestTrace(ctx, "prv_a", delegate); err != nil {
		t.Fatalf("IngestTrace failed: %v", err)
	}
	entry, c, err := svc.IngestTrace(ctx, "prv_a", think)
	if err != nil {
		t.Fatalf("IngestTrace failed: %v", err)
	}
	if entry == nil || entry.AgentName != "sales" || c.CurrentAgent != "sales" {
		t.Fatalf("unexpected log: %+v", entry)
	}

	// Another preview has its own thread.
	other, _, _ := svc.IngestTrace(ctx, "prv_b", think)
	if other == nil || other.AgentName != "" {
		t.Fatalf("expected no agent on other preview, got %+v", other)
	}

	logs, err := svc.GetLogs(ctx, "prv_a", 0, 0)
	if err != nil {
		t.Fatalf("GetLogs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if len(pub.types()) != 3 {
		t.Fatalf("expected 3 published logs, got %v", pub.types())
	}

	entry, c, err = svc.IngestTrace(ctx, "prv_a", json.RawMessage(`{"trace":{"trace":{}}}`))
	if err != nil || entry != nil || c.Matched {
		t.Fatalf("expected unmatched trace, got %+v %v", entry, err)
	}
	if len(rec.Exceptions) != 1 {
		t.Fatalf("expected one reported anomaly, got %d", len(rec.Exceptions))
	}

	if _, _, err := svc.IngestTrace(ctx, "prv_a", json.RawMessage(`[`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestClassifyProfiles(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &stubSimulator{}, &errortrack.Recorder{})

	raw := json.RawMessage(`{"trace":{"trace":{"orchestrationTrace":{"observation":{"finalResponse":{"text":"bye"}}}}}}`)
	c, err := svc.Classify(ctx, "supervisor", raw, "sales")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !c.Matched || c.AgentName != "sales" {
		t.Fatalf("unexpected classification: %+v", c)
	}

	if _, err := svc.Classify(ctx, "nope", raw, ""); !errors.Is(err, ErrUnknownProfile) {
		t.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
}

func TestSupervisorDisabled(t *testing.T) {
	svc, _ := newTestService(t, &stubSimulator{}, nil)
	if _, err := svc.ListConversations(context.Background(), domain.ConversationFilter{}); !errors.Is(err, ErrSupervisorDisabled) {
		t.Fatalf("expected ErrSupervisorDisabled, got %v", err)
	}
}
