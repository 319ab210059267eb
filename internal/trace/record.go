// Package trace decodes agent orchestration traces and classifies them into
// log entries for the preview and supervisor views.
package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies which part of a trace record is populated.
type Kind string

const (
	KindKnowledgeLookupOutput Kind = "knowledge_lookup_output"
	KindKnowledgeLookupInput  Kind = "knowledge_lookup_input"
	KindModelInvocationInput  Kind = "model_invocation_input"
	KindModelInvocationOutput Kind = "model_invocation_output"
	KindRationale             Kind = "rationale"
	KindDelegationInput       Kind = "delegation_input"
	KindDelegationOutput      Kind = "delegation_output"
	KindToolInput             Kind = "tool_input"
	KindToolOutput            Kind = "tool_output"
	KindFinalResponse         Kind = "final_response"
	KindGuardrail             Kind = "guardrail"
	KindPostProcessing        Kind = "post_processing"
)

type KnowledgeBaseLookupInput struct {
	Text            string `json:"text,omitempty"`
	KnowledgeBaseID string `json:"knowledgeBaseId,omitempty"`
}

type KnowledgeBaseLookupOutput struct {
	RetrievedReferences []json.RawMessage `json:"retrievedReferences,omitempty"`
}

type ModelInvocationInput struct {
	Text string `json:"text,omitempty"`
	Type string `json:"type,omitempty"`
}

type ModelInvocationOutput struct {
	RawResponse json.RawMessage `json:"rawResponse,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

type Rationale struct {
	Text string `json:"text,omitempty"`
}

type AgentCollaboratorInvocationInput struct {
	AgentCollaboratorName     string          `json:"agentCollaboratorName,omitempty"`
	AgentCollaboratorAliasArn string          `json:"agentCollaboratorAliasArn,omitempty"`
	Input                     json.RawMessage `json:"input,omitempty"`
}

type AgentCollaboratorInvocationOutput struct {
	AgentCollaboratorName string          `json:"agentCollaboratorName,omitempty"`
	Output                json.RawMessage `json:"output,omitempty"`
}

type ActionGroupInvocationInput struct {
	ActionGroupName string          `json:"actionGroupName,omitempty"`
	Function        string          `json:"function,omitempty"`
	APIPath         string          `json:"apiPath,omitempty"`
	Parameters      json.RawMessage `json:"parameters,omitempty"`
}

type ActionGroupInvocationOutput struct {
	Text string `json:"text,omitempty"`
}

type FinalResponse struct {
	Text string `json:"text,omitempty"`
}

type GuardrailTrace struct {
	Action            string          `json:"action,omitempty"`
	InputAssessments  json.RawMessage `json:"inputAssessments,omitempty"`
	OutputAssessments json.RawMessage `json:"outputAssessments,omitempty"`
}

// Record is the typed view of one upstream trace message. Any part may be nil.
type Record struct {
	Type      string
	PreviewID string

	KnowledgeBaseLookupInput          *KnowledgeBaseLookupInput
	KnowledgeBaseLookupOutput         *KnowledgeBaseLookupOutput
	ModelInvocationInput              *ModelInvocationInput
	ModelInvocationOutput             *ModelInvocationOutput
	Rationale                         *Rationale
	AgentCollaboratorInvocationInput  *AgentCollaboratorInvocationInput
	AgentCollaboratorInvocationOutput *AgentCollaboratorInvocationOutput
	ActionGroupInvocationInput        *ActionGroupInvocationInput
	ActionGroupInvocationOutput       *ActionGroupInvocationOutput
	FinalResponse                     *FinalResponse
	GuardrailTrace                    *GuardrailTrace
	PostProcessingTrace               json.RawMessage

	// Raw is the message as received.
	Raw json.RawMessage
}

type wireMessage struct {
	Type      string     `json:"type"`
	PreviewID string     `json:"preview_id,omitempty"`
	Trace     *wireOuter `json:"trace"`
}

type wireOuter struct {
	Trace *wireTrace `json:"trace"`
}

type wireTrace struct {
	OrchestrationTrace  *wireOrchestration `json:"orchestrationTrace"`
	GuardrailTrace      *GuardrailTrace    `json:"guardrailTrace"`
	PostProcessingTrace json.RawMessage    `json:"postProcessingTrace"`
}

type wireOrchestration struct {
	InvocationInput       *wireInvocationInput   `json:"invocationInput"`
	Observation           *wireObservation       `json:"observation"`
	ModelInvocationInput  *ModelInvocationInput  `json:"modelInvocationInput"`
	ModelInvocationOutput *ModelInvocationOutput `json:"modelInvocationOutput"`
	Rationale             *Rationale             `json:"rationale"`
}

type wireInvocationInput struct {
	KnowledgeBaseLookupInput         *KnowledgeBaseLookupInput         `json:"knowledgeBaseLookupInput"`
	AgentCollaboratorInvocationInput *AgentCollaboratorInvocationInput `json:"agentCollaboratorInvocationInput"`
	ActionGroupInvocationInput       *ActionGroupInvocationInput       `json:"actionGroupInvocationInput"`
}

type wireObservation struct {
	KnowledgeBaseLookupOutput         *KnowledgeBaseLookupOutput         `json:"knowledgeBaseLookupOutput"`
	AgentCollaboratorInvocationOutput *AgentCollaboratorInvocationOutput `json:"agentCollaboratorInvocationOutput"`
	ActionGroupInvocationOutput       *ActionGroupInvocationOutput       `json:"actionGroupInvocationOutput"`
	FinalResponse                     *FinalResponse                     `json:"finalResponse"`
}

// Decode parses one upstream trace message. Missing or null nesting is
// accepted at every level; only malformed JSON is an error.
func Decode(data []byte) (*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty trace message")
	}

	var msg wireMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode trace message: %w", err)
	}

	rec := &Record{
		Type:      msg.Type,
		PreviewID: msg.PreviewID,
		Raw:       append(json.RawMessage(nil), trimmed...),
	}
	if msg.Trace == nil || msg.Trace.Trace == nil {
		return rec, nil
	}

	body := msg.Trace.Trace
	rec.GuardrailTrace = body.GuardrailTrace
	if present(body.PostProcessingTrace) {
		rec.PostProcessingTrace = body.PostProcessingTrace
	}

	orch := body.OrchestrationTrace
	if orch == nil {
		return rec, nil
	}
	rec.ModelInvocationInput = orch.ModelInvocationInput
	rec.ModelInvocationOutput = orch.ModelInvocationOutput
	rec.Rationale = orch.Rationale

	if in := orch.InvocationInput; in != nil {
		rec.KnowledgeBaseLookupInput = in.KnowledgeBaseLookupInput
		rec.AgentCollaboratorInvocationInput = in.AgentCollaboratorInvocationInput
		rec.ActionGroupInvocationInput = in.ActionGroupInvocationInput
	}
	if obs := orch.Observation; obs != nil {
		rec.KnowledgeBaseLookupOutput = obs.KnowledgeBaseLookupOutput
		rec.AgentCollaboratorInvocationOutput = obs.AgentCollaboratorInvocationOutput
		rec.ActionGroupInvocationOutput = obs.ActionGroupInvocationOutput
		rec.FinalResponse = obs.FinalResponse
	}
	return rec, nil
}

// Kinds lists the populated parts of the record in classification order.
func (r *Record) Kinds() []Kind {
	if r == nil {
		return nil
	}
	var kinds []Kind
	for _, rule := range rules {
		if rule.guard(r) {
			kinds = append(kinds, rule.kind)
		}
	}
	if present(r.PostProcessingTrace) {
		kinds = append(kinds, KindPostProcessing)
	}
	return kinds
}

// DelegatedAgent returns the collaborator name carried by a delegation
// input, or "".
func (r *Record) DelegatedAgent() string {
	if r == nil || r.AgentCollaboratorInvocationInput == nil {
		return ""
	}
	return r.AgentCollaboratorInvocationInput.AgentCollaboratorName
}

// ReturningAgent returns the collaborator name carried by a delegation
// output, or "".
func (r *Record) ReturningAgent() string {
	if r == nil || r.AgentCollaboratorInvocationOutput == nil {
		return ""
	}
	return r.AgentCollaboratorInvocationOutput.AgentCollaboratorName
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
