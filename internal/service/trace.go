package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/tracestream"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
	"github.com/xiaot623/gogo/agentbuilder/internal/hub"
	"github.com/xiaot623/gogo/agentbuilder/internal/trace"
)

// IngestTrace classifies one trace message of a preview in arrival order.
// Matched traces are stored and published; a trace no rule matches is
// reported and yields a nil log.
func (s *Service) IngestTrace(ctx context.Context, previewID string, raw json.RawMessage) (*domain.TraceLog, trace.Classification, error) {
	rec, err := trace.Decode(raw)
	if err != nil {
		return nil, trace.Classification{}, err
	}
	th, err := s.thread(previewID)
	if err != nil {
		return nil, trace.Classification{}, err
	}

	c := th.Classify(ctx, rec)
	if !c.Matched {
		return nil, c, nil
	}

	entry := &domain.TraceLog{
		LogID:     "log_" + uuid.New().String()[:8],
		PreviewID: previewID,
		Ts:        time.Now().UnixMilli(),
		Kind:      string(c.Kind),
		Summary:   c.Summary,
		Category:  c.Category,
		Icon:      c.Icon,
		AgentName: c.AgentName,
		Raw:       rec.Raw,
	}
	if err := s.store.CreateTraceLog(ctx, entry); err != nil {
		return nil, c, fmt.Errorf("failed to store trace log: %w", err)
	}
	s.publish(previewID, hub.TypeLog, entry)
	return entry, c, nil
}

// HandleTraceFrame is the trace stream handler.
func (s *Service) HandleTraceFrame(ctx context.Context, frame tracestream.Frame) error {
	if frame.PreviewID == "" {
		log.Printf("WARN: dropping trace without preview_id")
		return nil
	}
	_, _, err := s.IngestTrace(ctx, frame.PreviewID, frame.Trace)
	return err
}

// GetLogs returns the classified traces of a preview.
func (s *Service) GetLogs(ctx context.Context, previewID string, afterTs int64, limit int) ([]domain.TraceLog, error) {
	return s.store.GetTraceLogs(ctx, previewID, afterTs, limit)
}

// Classify classifies a single trace with the named profile. It keeps no
// state; the caller passes the agent currently in control.
func (s *Service) Classify(ctx context.Context, profileName string, raw json.RawMessage, currentAgent string) (trace.Classification, error) {
	if profileName == "" {
		profileName = trace.ProfilePreview
	}
	profile, ok := s.profiles.Get(profileName)
	if !ok {
		return trace.Classification{}, ErrUnknownProfile
	}
	rec, err := trace.Decode(raw)
	if err != nil {
		return trace.Classification{}, err
	}
	return trace.NewClassifier(profile, s.reporter).Classify(ctx, rec, currentAgent), nil
}

// ListAnomalies lists recently reported traces no rule matched.
func (s *Service) ListAnomalies(ctx context.Context, limit int) ([]domain.TraceAnomaly, error) {
	return s.store.ListTraceAnomalies(ctx, limit)
}
