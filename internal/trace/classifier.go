package trace

import (
	"context"
	"sync"

	"github.com/xiaot623/gogo/agentbuilder/internal/adapter/errortrack"
)

// Categories shared by every profile.
const (
	CategoryKnowledge           = "knowledge"
	CategoryInvokingModel       = "invoking_model"
	CategoryThinking            = "thinking"
	CategoryDelegatingToAgent   = "delegating_to_agent"
	CategoryForwardingToManager = "forwarding_to_manager"
	CategoryExecutingTool       = "executing_tool"
	CategoryToolResult          = "tool_result"
	CategorySendingResponse     = "sending_response"
	CategoryApplyingGuardrails  = "applying_guardrails"
)

// NoMatchMessage is reported when a record matches no rule.
const NoMatchMessage = "No matching trace rules found"

// Classification is the outcome of classifying one record.
type Classification struct {
	Summary  string `json:"summary"`
	Category string `json:"category"`
	Icon     string `json:"icon"`
	// AgentName is the agent this record is attributed to.
	AgentName string `json:"agent_name,omitempty"`
	// CurrentAgent must be passed to the next Classify call of the stream.
	CurrentAgent string `json:"current_agent"`
	Kind         Kind   `json:"kind,omitempty"`
	Matched      bool   `json:"matched"`
}

type rule struct {
	kind     Kind
	category string
	guard    func(*Record) bool
	// slot picks the presentation; agentName is the name threaded for this record.
	slot func(agentName string) Slot
}

func fixed(slot Slot) func(string) Slot {
	return func(string) Slot { return slot }
}

// rules is evaluated in order; the first matching guard wins.
var rules = []rule{
	{
		kind:     KindKnowledgeLookupOutput,
		category: CategoryKnowledge,
		guard:    func(r *Record) bool { return r.KnowledgeBaseLookupOutput != nil },
		slot:     fixed(SlotKnowledgeLookupOutput),
	},
	{
		kind:     KindKnowledgeLookupInput,
		category: CategoryKnowledge,
		guard:    func(r *Record) bool { return r.KnowledgeBaseLookupInput != nil },
		slot:     fixed(SlotKnowledgeLookupInput),
	},
	{
		kind:     KindModelInvocationInput,
		category: CategoryInvokingModel,
		guard:    func(r *Record) bool { return r.ModelInvocationInput != nil },
		slot:     fixed(SlotModelInvocationInput),
	},
	{
		kind:     KindModelInvocationOutput,
		category: CategoryInvokingModel,
		guard:    func(r *Record) bool { return r.ModelInvocationOutput != nil },
		slot:     fixed(SlotModelInvocationOutput),
	},
	{
		kind:     KindRationale,
		category: CategoryThinking,
		guard:    func(r *Record) bool { return r.Rationale != nil },
		slot:     fixed(SlotRationale),
	},
	{
		kind:     KindDelegationInput,
		category: CategoryDelegatingToAgent,
		guard:    func(r *Record) bool { return r.AgentCollaboratorInvocationInput != nil },
		slot:     fixed(SlotDelegationInput),
	},
	{
		kind:     KindDelegationOutput,
		category: CategoryForwardingToManager,
		guard:    func(r *Record) bool { return r.AgentCollaboratorInvocationOutput != nil },
		slot:     fixed(SlotDelegationOutput),
	},
	{
		kind:     KindToolInput,
		category: CategoryExecutingTool,
		guard:    func(r *Record) bool { return r.ActionGroupInvocationInput != nil },
		slot:     fixed(SlotToolInput),
	},
	{
		kind:     KindToolOutput,
		category: CategoryToolResult,
		guard:    func(r *Record) bool { return r.ActionGroupInvocationOutput != nil },
		slot:     fixed(SlotToolOutput),
	},
	{
		kind:     KindFinalResponse,
		category: CategorySendingResponse,
		guard:    func(r *Record) bool { return r.FinalResponse != nil },
		slot: func(agentName string) Slot {
			if agentName != "" {
				return SlotFinalResponseManager
			}
			return SlotFinalResponse
		},
	},
	{
		kind:     KindGuardrail,
		category: CategoryApplyingGuardrails,
		guard:    func(r *Record) bool { return r.GuardrailTrace != nil },
		slot:     fixed(SlotGuardrail),
	},
}

// Classifier maps trace records to log entries using one presentation profile.
// It holds no per-stream state; callers thread CurrentAgent themselves or use
// a Thread.
type Classifier struct {
	profile  Profile
	reporter errortrack.Reporter
}

// NewClassifier creates a classifier. A nil reporter logs anomalies.
func NewClassifier(profile Profile, reporter errortrack.Reporter) *Classifier {
	if reporter == nil {
		reporter = errortrack.LogReporter{}
	}
	return &Classifier{profile: profile, reporter: reporter}
}

// Profile returns the presentation profile in use.
func (c *Classifier) Profile() Profile {
	return c.profile
}

// Classify classifies rec given the agent currently in control. It never
// fails: a record no rule matches is reported and yields empty fields.
func (c *Classifier) Classify(ctx context.Context, rec *Record, currentAgent string) Classification {
	out := Classification{CurrentAgent: currentAgent}

	// Delegation input takes precedence over output. An output hands control
	// back upward, so the current agent resets while the record keeps the
	// returning agent's name.
	switch {
	case rec.DelegatedAgent() != "":
		out.CurrentAgent = rec.DelegatedAgent()
		out.AgentName = rec.DelegatedAgent()
	case rec.ReturningAgent() != "":
		out.CurrentAgent = ""
		out.AgentName = rec.ReturningAgent()
	default:
		out.AgentName = currentAgent
	}

	if rec != nil {
		for _, rl := range rules {
			if !rl.guard(rec) {
				continue
			}
			p := c.profile.Lookup(rl.slot(out.AgentName))
			out.Summary = p.Summary
			out.Icon = p.Icon
			out.Category = rl.category
			out.Kind = rl.kind
			out.Matched = true
			return out
		}
	}

	raw := "null"
	if rec != nil && len(rec.Raw) > 0 {
		raw = string(rec.Raw)
	}
	c.reporter.CaptureException(ctx, errortrack.Exception{Message: NoMatchMessage, Trace: raw})
	return out
}

// Thread classifies the records of one stream, carrying the current agent
// between calls.
type Thread struct {
	classifier *Classifier

	mu           sync.Mutex
	currentAgent string
}

// NewThread creates a Thread over classifier.
func NewThread(classifier *Classifier) *Thread {
	return &Thread{classifier: classifier}
}

// Classify classifies rec and updates the carried agent.
func (t *Thread) Classify(ctx context.Context, rec *Record) Classification {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := t.classifier.Classify(ctx, rec, t.currentAgent)
	t.currentAgent = out.CurrentAgent
	return out
}

// CurrentAgent returns the carried agent name.
func (t *Thread) CurrentAgent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentAgent
}
