package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/errortrack"
	api "github.com/xiaot623/gogo/agentbuilder/internal/adapter/supervisor"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
	"github.com/xiaot623/gogo/agentbuilder/internal/trace"
)

type fakeAPI struct {
	queries []api.ConversationQuery
	block   chan struct{}
	started chan struct{}
	list    *api.ConversationList
	traces  []json.RawMessage
	err     error
}

func (f *fakeAPI) ListConversations(ctx context.Context, q api.ConversationQuery) (*api.ConversationList, error) {
	f.queries = append(f.queries, q)
	if f.block != nil && len(f.queries) == 1 {
		close(f.started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.block:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.list == nil {
		return &api.ConversationList{}, nil
	}
	return f.list, nil
}

func (f *fakeAPI) ListTraces(ctx context.Context, urn string) ([]json.RawMessage, error) {
	return f.traces, f.err
}

func newLoader(f *fakeAPI, rec *errortrack.Recorder) *Loader {
	return NewLoader(f, trace.NewClassifier(trace.SupervisorProfile(), rec))
}

func TestToQueryMapsDatesAndStatus(t *testing.T) {
	q, err := ToQuery(domain.ConversationFilter{
		Page:   3,
		Start:  "05/02/2024",
		End:    "29/02/2024",
		Status: []domain.ConversationStatus{domain.ConversationStatusOptimizedResolution, domain.ConversationStatusOtherConclusion},
		Search: "joe",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, "2024-02-05", q.Start)
	assert.Equal(t, "2024-02-29", q.End)
	assert.Equal(t, []string{"is_approved", "is_disapproved"}, q.Status)
	assert.Equal(t, "joe", q.Search)

	_, err = ToQuery(domain.ConversationFilter{Start: "2024-02-05"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = ToQuery(domain.ConversationFilter{Status: []domain.ConversationStatus{"bogus"}})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestFromWire(t *testing.T) {
	end := "2024-02-05T11:00:00Z"
	c := FromWire(api.Conversation{
		UUID:        "c1",
		URN:         "tel:1",
		ContactName: "Ana",
		Status:      "in_progress",
		Start:       "2024-02-05T10:00:00Z",
		End:         &end,
	})
	assert.Equal(t, domain.ConversationStatusInProgress, c.Status)
	assert.Equal(t, "Ana", c.Username)
	assert.Equal(t, 10, c.StartedAt.Hour())
	require.NotNil(t, c.EndedAt)
	assert.Equal(t, 11, c.EndedAt.Hour())

	assert.Equal(t, domain.ConversationStatusUnclassified, FromWire(api.Conversation{Status: "weird"}).Status)
	assert.Nil(t, FromWire(api.Conversation{}).EndedAt)
}

func TestConversationsPage(t *testing.T) {
	next := "http://x/?page=2"
	f := &fakeAPI{list: &api.ConversationList{
		Count:   2,
		Next:    &next,
		Results: []api.Conversation{{UUID: "a", Status: "is_approved"}, {UUID: "b", Status: "is_disapproved"}},
	}}
	page, err := newLoader(f, &errortrack.Recorder{}).Conversations(context.Background(), domain.ConversationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.True(t, page.HasMore)
	require.Len(t, page.Conversations, 2)
	assert.Equal(t, domain.ConversationStatusOptimizedResolution, page.Conversations[0].Status)
	assert.Equal(t, domain.ConversationStatusOtherConclusion, page.Conversations[1].Status)
}

func TestConversationsCancelsInFlightLoad(t *testing.T) {
	f := &fakeAPI{block: make(chan struct{}), started: make(chan struct{})}
	l := newLoader(f, &errortrack.Recorder{})

	first := make(chan error, 1)
	go func() {
		_, err := l.Conversations(context.Background(), domain.ConversationFilter{Page: 1})
		first <- err
	}()
	<-f.started

	_, err := l.Conversations(context.Background(), domain.ConversationFilter{Page: 2})
	require.NoError(t, err)

	select {
	case err := <-first:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(time.Second):
		t.Fatalf("first load was not cancelled")
	}
}

func TestLogsClassifiesWithSupervisorProfile(t *testing.T) {
	rec := &errortrack.Recorder{}
	f := &fakeAPI{traces: []json.RawMessage{
		json.RawMessage(`{"trace":{"trace":{"orchestrationTrace":{"invocationInput":{"agentCollaboratorInvocationInput":{"agentCollaboratorName":"sales"}}}}}}`),
		json.RawMessage(`{"trace":{"trace":{"orchestrationTrace":{"rationale":{"text":"..."}}}}}`),
		json.RawMessage(`{"trace":{"trace":{}}}`),
		json.RawMessage(`not json`),
	}}

	logs, err := newLoader(f, rec).Logs(context.Background(), "tel:1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "sales", logs[0].AgentName)
	assert.Equal(t, "sales", logs[1].AgentName)
	assert.Equal(t, trace.CategoryThinking, logs[1].Category)
	assert.Equal(t, trace.SupervisorProfile().Lookup(trace.SlotRationale).Icon, logs[1].Icon)
	assert.Len(t, rec.Exceptions, 1)
}
