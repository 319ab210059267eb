package errortrack

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

type fakeAnomalyStore struct {
	mu    sync.Mutex
	saved []*domain.TraceAnomaly
}

func (f *fakeAnomalyStore) CreateTraceAnomaly(_ context.Context, anomaly *domain.TraceAnomaly) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, anomaly)
	return nil
}

func (f *fakeAnomalyStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestStoreReporterPersistsAsync(t *testing.T) {
	store := &fakeAnomalyStore{}
	r := NewStoreReporter(store)

	r.CaptureException(context.Background(), Exception{Message: "No matching trace rules found", Trace: `{"type":"x"}`})

	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "No matching trace rules found", store.saved[0].Message)
	assert.Equal(t, `{"type":"x"}`, store.saved[0].Trace)
	assert.NotEmpty(t, store.saved[0].AnomalyID)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, nil, b, LogReporter{}}.CaptureException(context.Background(), Exception{Message: "boom"})

	assert.Len(t, a.Exceptions, 1)
	assert.Len(t, b.Exceptions, 1)
}
