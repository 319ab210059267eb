package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
	"github.com/xiaot623/gogo/agentbuilder/internal/hub"
	"github.com/xiaot623/gogo/agentbuilder/internal/preview"
)

// persistTimeout bounds the store writes made from engine callbacks.
const persistTimeout = 5 * time.Second

// CreatePreviewRequest opens a preview of a flow.
type CreatePreviewRequest struct {
	ContentBaseUUID string          `json:"content_base_uuid"`
	FlowUUID        string          `json:"flow_uuid"`
	FlowName        string          `json:"flow_name"`
	Language        string          `json:"language,omitempty"`
	Params          json.RawMessage `json:"params,omitempty"`
}

// CreatePreview registers a preview with a fresh contact and starts the flow.
// The preview stays registered when the start fails so the caller can retry.
func (s *Service) CreatePreview(ctx context.Context, req CreatePreviewRequest) (*domain.Preview, domain.PreviewState, error) {
	if req.FlowUUID == "" {
		return nil, domain.PreviewState{}, fmt.Errorf("flow_uuid is required")
	}

	previewID := "prv_" + uuid.New().String()[:8]
	sess := &session{}
	opts := s.engineOptions
	opts.OnEvent = func(ev domain.Event) { s.onEvent(previewID, sess, ev) }
	opts.OnSettle = func(state domain.PreviewState) { s.onSettle(previewID, state) }
	sess.engine = preview.New(opts)

	contentBase := req.ContentBaseUUID
	if contentBase == "" {
		contentBase = uuid.New().String()
	}
	contact := sess.engine.Init(contentBase)
	contactJSON, err := json.Marshal(contact)
	if err != nil {
		return nil, domain.PreviewState{}, fmt.Errorf("failed to marshal contact: %w", err)
	}

	p := &domain.Preview{
		PreviewID:       previewID,
		ContentBaseUUID: req.ContentBaseUUID,
		FlowUUID:        req.FlowUUID,
		FlowName:        req.FlowName,
		Contact:         contactJSON,
		CreatedAt:       time.Now(),
	}
	if err := s.store.CreatePreview(ctx, p); err != nil {
		return nil, domain.PreviewState{}, fmt.Errorf("failed to create preview: %w", err)
	}

	s.mu.Lock()
	s.sessions[previewID] = sess
	s.mu.Unlock()

	// The drain outlives the request: a client hanging up must not cut the
	// timeline short.
	_, err = sess.engine.Start(context.WithoutCancel(ctx), preview.StartParams{
		LanguageID: req.Language,
		FlowUUID:   req.FlowUUID,
		FlowName:   req.FlowName,
		FlowParams: req.Params,
	})
	state := sess.engine.State()
	if err != nil {
		return p, state, err
	}
	log.Printf("INFO: preview started: preview_id=%s flow=%s", previewID, req.FlowUUID)
	return p, state, nil
}

// StartPreview restarts the flow of an existing preview from scratch.
func (s *Service) StartPreview(ctx context.Context, previewID string, language string, params json.RawMessage) (domain.PreviewState, error) {
	sess, ok := s.session(previewID)
	if !ok {
		return domain.PreviewState{}, ErrPreviewNotFound
	}
	current := sess.engine.State()
	_, err := sess.engine.Start(context.WithoutCancel(ctx), preview.StartParams{
		LanguageID: language,
		FlowUUID:   current.FlowUUID,
		FlowName:   current.FlowName,
		FlowParams: params,
	})
	return sess.engine.State(), err
}

// Resume sends the simulated user's reply.
func (s *Service) Resume(ctx context.Context, previewID, text string) (domain.PreviewState, error) {
	sess, ok := s.session(previewID)
	if !ok {
		return domain.PreviewState{}, ErrPreviewNotFound
	}
	if err := sess.engine.Resume(context.WithoutCancel(ctx), text); err != nil {
		return sess.engine.State(), err
	}
	return sess.engine.State(), nil
}

// GetState returns the live state of a preview, or the last settled state
// persisted for it.
func (s *Service) GetState(ctx context.Context, previewID string) (domain.PreviewState, error) {
	if sess, ok := s.session(previewID); ok {
		return sess.engine.State(), nil
	}

	p, err := s.store.GetPreview(ctx, previewID)
	if err != nil {
		return domain.PreviewState{}, fmt.Errorf("failed to get preview: %w", err)
	}
	if p == nil {
		return domain.PreviewState{}, ErrPreviewNotFound
	}

	state := domain.PreviewState{
		FlowUUID:     p.FlowUUID,
		FlowName:     p.FlowName,
		Events:       []domain.Event{},
		QuickReplies: []string{},
		Phase:        domain.PreviewPhaseIdle,
	}
	if len(p.State) > 0 {
		if err := json.Unmarshal(p.State, &state); err != nil {
			return domain.PreviewState{}, fmt.Errorf("failed to decode preview state: %w", err)
		}
	}
	return state, nil
}

// GetActivity returns the flow-graph annotation of a preview.
func (s *Service) GetActivity(ctx context.Context, previewID string) (*domain.Activity, error) {
	state, err := s.GetState(ctx, previewID)
	if err != nil {
		return nil, err
	}
	if state.Activity == nil {
		return &domain.Activity{
			Segments:       map[string]int{},
			Nodes:          map[string]int{},
			RecentMessages: domain.RecentMessages{},
		}, nil
	}
	return state.Activity, nil
}

// GetEvents returns the persisted timeline of a preview.
func (s *Service) GetEvents(ctx context.Context, previewID string, afterSeq, limit int) ([]domain.TimelineEvent, error) {
	if err := s.ensurePreview(ctx, previewID); err != nil {
		return nil, err
	}
	return s.store.GetPreviewEvents(ctx, previewID, afterSeq, limit)
}

// ListPreviews lists recent previews.
func (s *Service) ListPreviews(ctx context.Context, limit int) ([]domain.Preview, error) {
	return s.store.ListPreviews(ctx, limit)
}

func (s *Service) ensurePreview(ctx context.Context, previewID string) error {
	if _, ok := s.session(previewID); ok {
		return nil
	}
	p, err := s.store.GetPreview(ctx, previewID)
	if err != nil {
		return fmt.Errorf("failed to get preview: %w", err)
	}
	if p == nil {
		return ErrPreviewNotFound
	}
	return nil
}

func (s *Service) onEvent(previewID string, sess *session, ev domain.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("ERROR: failed to marshal preview event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	event := &domain.TimelineEvent{
		EventID:   "evt_" + uuid.New().String()[:8],
		PreviewID: previewID,
		Seq:       sess.nextSeq(),
		Ts:        time.Now().UnixMilli(),
		Type:      ev.Type,
		Payload:   payload,
	}
	if err := s.store.AppendPreviewEvent(ctx, event); err != nil {
		log.Printf("ERROR: failed to store preview event: %v", err)
	}
	s.publish(previewID, hub.TypeEvent, ev)
}

func (s *Service) onSettle(previewID string, state domain.PreviewState) {
	data, err := json.Marshal(state)
	if err != nil {
		log.Printf("ERROR: failed to marshal preview state: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.UpdatePreviewState(ctx, previewID, data); err != nil {
		log.Printf("ERROR: failed to store preview state: %v", err)
	}
	s.publish(previewID, hub.TypeState, state)
}

func (s *Service) publish(previewID, msgType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(previewID, msgType, data); err != nil {
		log.Printf("WARN: failed to publish %s for %s: %v", msgType, previewID, err)
	}
}
