// Package tracestream consumes agent trace records pushed over a WebSocket.
package tracestream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultBackoff is the delay between reconnect attempts.
const DefaultBackoff = 2 * time.Second

// Frame is one trace message pushed by the upstream.
type Frame struct {
	PreviewID string
	Trace     json.RawMessage
}

// Handler receives decoded frames.
type Handler func(ctx context.Context, frame Frame) error

// Consumer reads frames from a WebSocket and hands them to a handler.
type Consumer struct {
	url     string
	dialer  *websocket.Dialer
	backoff time.Duration
	handler Handler
}

// NewConsumer creates a consumer for url.
func NewConsumer(url string, handler Handler) *Consumer {
	return &Consumer{
		url:     url,
		dialer:  websocket.DefaultDialer,
		backoff: DefaultBackoff,
		handler: handler,
	}
}

// WithBackoff overrides the reconnect delay.
func (c *Consumer) WithBackoff(d time.Duration) *Consumer {
	c.backoff = d
	return c
}

// Run consumes frames and reconnects after failures until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("WARN: trace stream disconnected: %v, retrying in %s", err, c.backoff)

		timer := time.NewTimer(c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	log.Printf("INFO: trace stream connected: %s", c.url)

	// Unblock ReadMessage on shutdown.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			log.Printf("WARN: dropping trace frame: %v", err)
			continue
		}
		if err := c.handler(ctx, frame); err != nil {
			log.Printf("ERROR: failed to handle trace frame: %v", err)
		}
	}
}

// DecodeFrame reads the routing fields of a trace message. The whole message
// is kept as the trace.
func DecodeFrame(data []byte) (Frame, error) {
	var head struct {
		PreviewID string `json:"preview_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Frame{}, fmt.Errorf("invalid frame: %w", err)
	}
	return Frame{PreviewID: head.PreviewID, Trace: json.RawMessage(data)}, nil
}
