// Package preview simulates a conversational flow against the simulation
// backend and replays the returned events into a paced, UI-consumable timeline.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/flows"
	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// DefaultPace is the delay between two released message batches.
const DefaultPace = 200 * time.Millisecond

const (
	// ServerErrorText replaces backend errors with status above 499.
	ServerErrorText = "Server error, try again later"
	// ExitedFlowText is appended when the session stops waiting.
	ExitedFlowText = "Exited flow"
)

var (
	// ErrBusy is returned when a start or resume is attempted while a
	// simulate call is in flight.
	ErrBusy = errors.New("preview is busy")
	// ErrNoContact is returned by Start before Init.
	ErrNoContact = errors.New("preview contact not initialised")
	// ErrNotStarted is returned by Resume before Start.
	ErrNotStarted = errors.New("preview not started")
)

// Waiter blocks for d or until ctx is done.
type Waiter func(ctx context.Context, d time.Duration) error

// SleepWaiter waits on a timer.
func SleepWaiter(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options configures an Engine.
type Options struct {
	Simulator   flows.Simulator
	Environment flows.Environment
	Pace        time.Duration
	Wait        Waiter
	Now         func() time.Time
	// Digit returns a random decimal digit.
	Digit func() int

	// OnEvent is called for every event released to the timeline.
	OnEvent func(domain.Event)
	// OnSettle is called with a snapshot every time the engine settles.
	OnSettle func(domain.PreviewState)
}

// StartParams selects the flow to simulate.
type StartParams struct {
	LanguageID string          `json:"language_id,omitempty"`
	FlowUUID   string          `json:"flow_uuid"`
	FlowName   string          `json:"flow_name"`
	FlowParams json.RawMessage `json:"flow_params,omitempty"`
}

// Engine owns the state of one simulated conversation. Start and Resume are
// mutually exclusive: while a simulate call is in flight both return ErrBusy.
type Engine struct {
	sim      flows.Simulator
	env      flows.Environment
	pace     time.Duration
	wait     Waiter
	now      func() time.Time
	digit    func() int
	onEvent  func(domain.Event)
	onSettle func(domain.PreviewState)

	mu     sync.Mutex
	state  domain.PreviewState
	recent domain.RecentMessages
}

// New creates an engine.
func New(opts Options) *Engine {
	e := &Engine{
		sim:      opts.Simulator,
		env:      opts.Environment,
		pace:     opts.Pace,
		wait:     opts.Wait,
		now:      opts.Now,
		digit:    opts.Digit,
		onEvent:  opts.OnEvent,
		onSettle: opts.OnSettle,
		state: domain.PreviewState{
			Events:       []domain.Event{},
			QuickReplies: []string{},
			Phase:        domain.PreviewPhaseIdle,
		},
		recent: domain.RecentMessages{},
	}
	if e.wait == nil {
		e.wait = SleepWaiter
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.digit == nil {
		e.digit = func() int { return rand.IntN(10) }
	}
	return e
}

// State returns a snapshot of the preview state.
func (e *Engine) State() domain.PreviewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// HasQuickReplies reports whether quick replies are on offer.
func (e *Engine) HasQuickReplies() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.state.QuickReplies) > 0
}

// Start sets up a new conversation with the flow and runs it until it
// settles. Failures of the simulate call are returned to the caller.
func (e *Engine) Start(ctx context.Context, params StartParams) (*flows.RunContext, error) {
	e.mu.Lock()
	if e.state.Sprinting {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	if e.state.Contact.UUID == "" {
		e.mu.Unlock()
		return nil, ErrNoContact
	}

	e.state.FlowUUID = params.FlowUUID
	e.state.FlowName = params.FlowName
	if params.LanguageID != "" {
		e.state.Contact.Language = params.LanguageID
	}
	e.state.Events = []domain.Event{}
	e.state.Active = false
	e.recent = domain.RecentMessages{}
	e.state.Sprinting = true
	e.state.Phase = domain.PreviewPhaseStarting
	contact := cloneContact(e.state.Contact)
	e.mu.Unlock()

	env := e.env
	if params.LanguageID != "" {
		env.Languages = []string{params.LanguageID}
	}
	if env.Languages == nil {
		env.Languages = []string{}
	}
	flowParams := params.FlowParams
	if len(flowParams) == 0 {
		flowParams = json.RawMessage(`{}`)
	}

	body := flows.StartRequest{
		Contact: contact,
		Trigger: flows.Trigger{
			Type:        "manual",
			Environment: env,
			Contact:     contact,
			Flow:        flows.FlowRef{UUID: params.FlowUUID, Name: params.FlowName},
			Params:      flowParams,
			TriggeredOn: e.timestamp(),
		},
	}

	rc, err := e.sim.Simulate(ctx, params.FlowUUID, body)
	if err != nil {
		e.mu.Lock()
		e.state.Sprinting = false
		e.state.Phase = domain.PreviewPhaseIdle
		e.mu.Unlock()
		return nil, fmt.Errorf("failed to start preview: %w", err)
	}

	if err := e.UpdateRunContext(ctx, rc, nil); err != nil {
		return rc, err
	}
	return rc, nil
}

// Resume sends text as the simulated user's reply. An empty text is a no-op.
// Simulator failures are appended to the timeline as an error event instead
// of being returned.
func (e *Engine) Resume(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	e.mu.Lock()
	if e.state.Sprinting {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.state.FlowUUID == "" {
		e.mu.Unlock()
		return ErrNotStarted
	}
	e.state.Sprinting = true
	e.state.Phase = domain.PreviewPhaseResuming
	contact := cloneContact(e.state.Contact)
	flowUUID := e.state.FlowUUID
	session := e.state.Session
	e.mu.Unlock()

	msg := domain.Msg{
		UUID:        uuid.New().String(),
		Text:        text,
		URN:         contact.PrimaryURN(),
		Attachments: []string{},
	}
	body := flows.ResumeRequest{
		Session: session,
		Resume: flows.Resume{
			Type:      "msg",
			Msg:       msg,
			ResumedOn: e.timestamp(),
			Contact:   contact,
		},
	}

	rc, err := e.sim.Simulate(ctx, flowUUID, body)
	if err != nil {
		log.Printf("WARN: preview resume failed: %v", err)
		errEvent := domain.Event{Type: domain.EventTypeError, Text: resumeErrorText(err), CreatedOn: e.timestamp()}

		e.mu.Lock()
		e.state.Events = append(e.state.Events, errEvent)
		e.state.Sprinting = false
		e.state.Phase = domain.PreviewPhaseSettled
		snapshot := e.snapshotLocked()
		e.mu.Unlock()

		e.emitEvent(errEvent)
		e.emitSettle(snapshot)
		return nil
	}

	return e.UpdateRunContext(ctx, rc, &msg)
}

func resumeErrorText(err error) string {
	var apiErr *flows.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status > 499 {
			return ServerErrorText
		}
		return apiErr.Message
	}
	return ServerErrorText
}

func (e *Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339Nano)
}

func (e *Engine) emitEvent(ev domain.Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

func (e *Engine) emitSettle(state domain.PreviewState) {
	if e.onSettle != nil {
		e.onSettle(state)
	}
}

func (e *Engine) snapshotLocked() domain.PreviewState {
	s := e.state
	s.Contact = cloneContact(e.state.Contact)
	s.Events = append([]domain.Event{}, e.state.Events...)
	s.QuickReplies = append([]string{}, e.state.QuickReplies...)
	return s
}

func cloneContact(c domain.Contact) domain.Contact {
	out := c
	out.URNs = append([]string{}, c.URNs...)
	out.Groups = append([]domain.Group{}, c.Groups...)
	out.Fields = make(map[string]string, len(c.Fields))
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	return out
}
