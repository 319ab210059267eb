// Package errortrack reports non-fatal anomalies to an error-tracking backend.
package errortrack

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// Exception is a captured, non-fatal anomaly.
type Exception struct {
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Reporter receives captured exceptions. Implementations must not block the caller.
type Reporter interface {
	CaptureException(ctx context.Context, exc Exception)
}

// LogReporter writes exceptions to the process log.
type LogReporter struct{}

// CaptureException implements Reporter.
func (LogReporter) CaptureException(_ context.Context, exc Exception) {
	log.Printf("ERROR: captured exception: %s trace=%s", exc.Message, exc.Trace)
}

// AnomalyStore persists anomalies.
type AnomalyStore interface {
	CreateTraceAnomaly(ctx context.Context, anomaly *domain.TraceAnomaly) error
}

// StoreReporter persists exceptions asynchronously.
type StoreReporter struct {
	store   AnomalyStore
	timeout time.Duration
}

// NewStoreReporter creates a reporter backed by store.
func NewStoreReporter(store AnomalyStore) *StoreReporter {
	return &StoreReporter{store: store, timeout: 5 * time.Second}
}

// CaptureException implements Reporter.
func (r *StoreReporter) CaptureException(_ context.Context, exc Exception) {
	anomaly := &domain.TraceAnomaly{
		AnomalyID: "anm_" + uuid.New().String()[:8],
		Message:   exc.Message,
		Trace:     exc.Trace,
		CreatedAt: time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.store.CreateTraceAnomaly(ctx, anomaly); err != nil {
			log.Printf("WARN: failed to persist trace anomaly: %v", err)
		}
	}()
}

// Multi fans an exception out to several reporters.
type Multi []Reporter

// CaptureException implements Reporter.
func (m Multi) CaptureException(ctx context.Context, exc Exception) {
	for _, r := range m {
		if r != nil {
			r.CaptureException(ctx, exc)
		}
	}
}

// Recorder keeps captured exceptions in memory. Useful in tests.
type Recorder struct {
	Exceptions []Exception
}

// CaptureException implements Reporter.
func (r *Recorder) CaptureException(_ context.Context, exc Exception) {
	r.Exceptions = append(r.Exceptions, exc)
}
