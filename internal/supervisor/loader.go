// Package supervisor serves the supervisor view: paged conversations and the
// classified trace log of each one.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	api "github.com/xiaot623/gogo/agentbuilder/internal/adapter/supervisor"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
	"github.com/xiaot623/gogo/agentbuilder/internal/trace"
)

const (
	consoleDateLayout = "02/01/2006"
	wireDateLayout    = "2006-01-02"
)

var toWireStatus = map[domain.ConversationStatus]string{
	domain.ConversationStatusOptimizedResolution: api.StatusApproved,
	domain.ConversationStatusOtherConclusion:     api.StatusDisapproved,
	domain.ConversationStatusInProgress:          api.StatusInProgress,
	domain.ConversationStatusUnclassified:        api.StatusUnclassified,
}

var fromWireStatus = map[string]domain.ConversationStatus{
	api.StatusApproved:     domain.ConversationStatusOptimizedResolution,
	api.StatusDisapproved:  domain.ConversationStatusOtherConclusion,
	api.StatusInProgress:   domain.ConversationStatusInProgress,
	api.StatusUnclassified: domain.ConversationStatusUnclassified,
}

// ErrInvalidFilter is returned for a filter that cannot be sent upstream.
var ErrInvalidFilter = errors.New("invalid conversation filter")

// Loader loads conversation pages. Starting a load cancels the one in flight,
// whose caller gets context.Canceled.
type Loader struct {
	api        api.API
	classifier *trace.Classifier

	mu       sync.Mutex
	cancel   context.CancelFunc
	inflight uint64
}

// NewLoader creates a loader. classifier should use the supervisor profile.
func NewLoader(client api.API, classifier *trace.Classifier) *Loader {
	return &Loader{api: client, classifier: classifier}
}

// Conversations loads one page of conversations matching filter.
func (l *Loader) Conversations(ctx context.Context, filter domain.ConversationFilter) (*domain.ConversationPage, error) {
	query, err := ToQuery(filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel
	l.inflight++
	id := l.inflight
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		if l.inflight == id {
			l.cancel = nil
		}
		l.mu.Unlock()
		cancel()
	}()

	list, err := l.api.ListConversations(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	page := &domain.ConversationPage{
		Conversations: make([]domain.Conversation, 0, len(list.Results)),
		Count:         list.Count,
		Page:          query.Page,
		HasMore:       list.Next != nil && *list.Next != "",
	}
	if page.Page == 0 {
		page.Page = 1
	}
	for _, c := range list.Results {
		page.Conversations = append(page.Conversations, FromWire(c))
	}
	return page, nil
}

// Logs fetches the traces of a conversation and classifies them in order.
func (l *Loader) Logs(ctx context.Context, urn string) ([]domain.TraceLog, error) {
	raws, err := l.api.ListTraces(ctx, urn)
	if err != nil {
		return nil, fmt.Errorf("failed to load traces: %w", err)
	}

	thread := trace.NewThread(l.classifier)
	logs := make([]domain.TraceLog, 0, len(raws))
	for _, raw := range raws {
		rec, err := trace.Decode(raw)
		if err != nil {
			log.Printf("WARN: skipping undecodable trace of %s: %v", urn, err)
			continue
		}
		c := thread.Classify(ctx, rec)
		if !c.Matched {
			continue
		}
		logs = append(logs, domain.TraceLog{
			LogID:     "log_" + uuid.New().String()[:8],
			PreviewID: urn,
			Ts:        time.Now().UnixMilli(),
			Kind:      string(c.Kind),
			Summary:   c.Summary,
			Category:  c.Category,
			Icon:      c.Icon,
			AgentName: c.AgentName,
			Raw:       rec.Raw,
		})
	}
	return logs, nil
}

// ToQuery maps a console filter to the wire query.
func ToQuery(filter domain.ConversationFilter) (api.ConversationQuery, error) {
	q := api.ConversationQuery{Page: filter.Page, Search: filter.Search}

	var err error
	if q.Start, err = wireDate(filter.Start); err != nil {
		return q, fmt.Errorf("%w: start date: %v", ErrInvalidFilter, err)
	}
	if q.End, err = wireDate(filter.End); err != nil {
		return q, fmt.Errorf("%w: end date: %v", ErrInvalidFilter, err)
	}

	for _, s := range filter.Status {
		wire, ok := toWireStatus[s]
		if !ok {
			return q, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, s)
		}
		q.Status = append(q.Status, wire)
	}
	return q, nil
}

func wireDate(console string) (string, error) {
	if console == "" {
		return "", nil
	}
	t, err := time.Parse(consoleDateLayout, console)
	if err != nil {
		return "", err
	}
	return t.Format(wireDateLayout), nil
}

// FromWire maps an API conversation to its console shape.
func FromWire(c api.Conversation) domain.Conversation {
	out := domain.Conversation{
		ID:          c.UUID,
		URN:         c.URN,
		Username:    c.ContactName,
		Status:      fromWireStatus[c.Status],
		LastMessage: c.LastMessage,
	}
	if out.Status == "" {
		out.Status = domain.ConversationStatusUnclassified
	}
	if t, err := time.Parse(time.RFC3339, c.Start); err == nil {
		out.StartedAt = t
	}
	if c.End != nil {
		if t, err := time.Parse(time.RFC3339, *c.End); err == nil {
			out.EndedAt = &t
		}
	}
	return out
}
