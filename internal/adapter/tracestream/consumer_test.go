package tracestream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"trace_update","preview_id":"prv_1","trace":{"trace":{}}}`))
	require.NoError(t, err)
	assert.Equal(t, "prv_1", frame.PreviewID)
	assert.Contains(t, string(frame.Trace), `"trace_update"`)

	_, err = DecodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestConsumerReconnectsAndDelivers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connections int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := atomic.AddInt32(&connections, 1)
		conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"preview_id":"prv_1","trace":{}}`))
		if n == 1 {
			// Drop the first connection to force a reconnect.
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	received := make(chan Frame, 4)
	consumer := NewConsumer("ws"+strings.TrimPrefix(server.URL, "http"), func(ctx context.Context, frame Frame) error {
		received <- frame
		return nil
	}).WithBackoff(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case frame := <-received:
			assert.Equal(t, "prv_1", frame.PreviewID)
		case <-time.After(2 * time.Second):
			t.Fatalf("frame %d not delivered", i)
		}
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&connections), int32(2))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("consumer did not stop")
	}
}
