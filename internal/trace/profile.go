package trace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Slot names a presentation entry. Most slots match a Kind; the final
// response has one slot per audience.
type Slot string

const (
	SlotKnowledgeLookupOutput Slot = "knowledge_lookup_output"
	SlotKnowledgeLookupInput  Slot = "knowledge_lookup_input"
	SlotModelInvocationInput  Slot = "model_invocation_input"
	SlotModelInvocationOutput Slot = "model_invocation_output"
	SlotRationale             Slot = "rationale"
	SlotDelegationInput       Slot = "delegation_input"
	SlotDelegationOutput      Slot = "delegation_output"
	SlotToolInput             Slot = "tool_input"
	SlotToolOutput            Slot = "tool_output"
	SlotFinalResponseManager  Slot = "final_response_manager"
	SlotFinalResponse         Slot = "final_response"
	SlotGuardrail             Slot = "guardrail"
)

// Presentation is what a consumer shows for one slot.
type Presentation struct {
	Summary string `yaml:"summary" json:"summary"`
	Icon    string `yaml:"icon" json:"icon"`
}

// Profile is the icon and summary set one consumer renders traces with.
type Profile struct {
	Name  string                `yaml:"name" json:"name"`
	Slots map[Slot]Presentation `yaml:"slots" json:"slots"`
}

// Lookup returns the presentation for slot.
func (p Profile) Lookup(slot Slot) Presentation {
	return p.Slots[slot]
}

const (
	ProfilePreview    = "preview"
	ProfileSupervisor = "supervisor"
)

// PreviewProfile is used by the live preview log.
func PreviewProfile() Profile {
	return Profile{
		Name: ProfilePreview,
		Slots: map[Slot]Presentation{
			SlotKnowledgeLookupOutput: {Summary: "Search results obtained from the knowledge base", Icon: "menu_book"},
			SlotKnowledgeLookupInput:  {Summary: "Searching the knowledge base", Icon: "menu_book"},
			SlotModelInvocationInput:  {Summary: "Invoking model", Icon: "neurology"},
			SlotModelInvocationOutput: {Summary: "Model response obtained", Icon: "neurology"},
			SlotRationale:             {Summary: "Thinking", Icon: "lightbulb"},
			SlotDelegationInput:       {Summary: "Delegating to agent", Icon: "login"},
			SlotDelegationOutput:      {Summary: "Forwarding to manager", Icon: "logout"},
			SlotToolInput:             {Summary: "Executing tool", Icon: "build"},
			SlotToolOutput:            {Summary: "Tool result obtained", Icon: "build"},
			SlotFinalResponseManager:  {Summary: "Sending response for manager", Icon: "chat_bubble"},
			SlotFinalResponse:         {Summary: "Sending final response", Icon: "question_answer"},
			SlotGuardrail:             {Summary: "Applying guardrails", Icon: "security"},
		},
	}
}

// SupervisorProfile is used by the supervisor conversation view.
func SupervisorProfile() Profile {
	return Profile{
		Name: ProfileSupervisor,
		Slots: map[Slot]Presentation{
			SlotKnowledgeLookupOutput: {Summary: "Knowledge base results received", Icon: "article"},
			SlotKnowledgeLookupInput:  {Summary: "Searching knowledge base", Icon: "article"},
			SlotModelInvocationInput:  {Summary: "Invoking model", Icon: "neurology"},
			SlotModelInvocationOutput: {Summary: "Model response received", Icon: "neurology"},
			SlotRationale:             {Summary: "Thinking", Icon: "lightbulb"},
			SlotDelegationInput:       {Summary: "Delegating to agent", Icon: "login"},
			SlotDelegationOutput:      {Summary: "Forwarding to manager", Icon: "logout"},
			SlotToolInput:             {Summary: "Executing tool", Icon: "build"},
			SlotToolOutput:            {Summary: "Tool result received", Icon: "build"},
			SlotFinalResponseManager:  {Summary: "Response sent to manager", Icon: "chat_bubble"},
			SlotFinalResponse:         {Summary: "Final response sent", Icon: "question_answer"},
			SlotGuardrail:             {Summary: "Guardrails applied", Icon: "shield"},
		},
	}
}

// Profiles is a registry of presentation profiles by name.
type Profiles map[string]Profile

// DefaultProfiles returns the built-in profiles.
func DefaultProfiles() Profiles {
	return Profiles{
		ProfilePreview:    PreviewProfile(),
		ProfileSupervisor: SupervisorProfile(),
	}
}

// Get returns the profile named name.
func (p Profiles) Get(name string) (Profile, bool) {
	profile, ok := p[name]
	return profile, ok
}

type profilesFile struct {
	Profiles map[string]map[Slot]Presentation `yaml:"profiles"`
}

// LoadProfiles reads profile overrides from a YAML file and layers them over
// the built-in profiles. Slots missing from the file keep their built-in value.
// An empty path returns the built-ins.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	return mergeProfiles(profiles, data)
}

func mergeProfiles(profiles Profiles, data []byte) (Profiles, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	for name, slots := range file.Profiles {
		profile, ok := profiles[name]
		if !ok {
			profile = Profile{Name: name, Slots: make(map[Slot]Presentation)}
		}
		for slot, override := range slots {
			current := profile.Slots[slot]
			if override.Summary != "" {
				current.Summary = override.Summary
			}
			if override.Icon != "" {
				current.Icon = override.Icon
			}
			profile.Slots[slot] = current
		}
		profiles[name] = profile
	}
	return profiles, nil
}
