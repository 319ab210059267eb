// Package store defines the storage interface and its SQLite implementation.
package store

import (
	"context"

	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Preview operations
	CreatePreview(ctx context.Context, preview *domain.Preview) error
	GetPreview(ctx context.Context, previewID string) (*domain.Preview, error)
	UpdatePreviewState(ctx context.Context, previewID string, state []byte) error
	ListPreviews(ctx context.Context, limit int) ([]domain.Preview, error)

	// Timeline operations
	AppendPreviewEvent(ctx context.Context, event *domain.TimelineEvent) error
	GetPreviewEvents(ctx context.Context, previewID string, afterSeq int, limit int) ([]domain.TimelineEvent, error)

	// Trace log operations
	CreateTraceLog(ctx context.Context, log *domain.TraceLog) error
	GetTraceLogs(ctx context.Context, previewID string, afterTs int64, limit int) ([]domain.TraceLog, error)

	// Anomaly operations
	CreateTraceAnomaly(ctx context.Context, anomaly *domain.TraceAnomaly) error
	ListTraceAnomalies(ctx context.Context, limit int) ([]domain.TraceAnomaly, error)

	// Lifecycle
	Close() error
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
