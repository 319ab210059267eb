package domain

import "encoding/json"

// PathStep is one visited node of a run.
type PathStep struct {
	UUID      string `json:"uuid"`
	NodeUUID  string `json:"node_uuid"`
	ExitUUID  string `json:"exit_uuid,omitempty"`
	ArrivedOn string `json:"arrived_on,omitempty"`
}

// Run is one execution thread through a flow graph.
type Run struct {
	UUID     string     `json:"uuid,omitempty"`
	FlowUUID string     `json:"flow_uuid,omitempty"`
	Path     []PathStep `json:"path"`
	Status   RunStatus  `json:"status"`
}

// Hint describes the input the simulator waits for.
type Hint struct {
	Type  HintType `json:"type"`
	Count int      `json:"count,omitempty"`
}

// Wait is the wait state of a session.
type Wait struct {
	Type string `json:"type,omitempty"`
	Hint *Hint  `json:"hint,omitempty"`
}

// Session is the backend run-state object. Raw keeps the exact payload the
// simulator returned so it can be sent back verbatim on resume.
type Session struct {
	Runs   []Run  `json:"runs"`
	Status string `json:"status,omitempty"`
	Wait   *Wait  `json:"wait,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps the raw payload.
func (s *Session) UnmarshalJSON(data []byte) error {
	type session Session
	var decoded session
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Session(decoded)
	s.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the raw payload when present, so resumes echo the
// backend's session untouched.
func (s Session) MarshalJSON() ([]byte, error) {
	if len(s.Raw) > 0 {
		return s.Raw, nil
	}
	type session Session
	return json.Marshal(session(s))
}

// HasWaitingRun reports whether any run is waiting for input.
func (s *Session) HasWaitingRun() bool {
	if s == nil {
		return false
	}
	for _, run := range s.Runs {
		if run.Status == RunStatusWaiting {
			return true
		}
	}
	return false
}

// LastStep returns the last path step of the last run.
func (s *Session) LastStep() (PathStep, bool) {
	if s == nil || len(s.Runs) == 0 {
		return PathStep{}, false
	}
	path := s.Runs[len(s.Runs)-1].Path
	if len(path) == 0 {
		return PathStep{}, false
	}
	return path[len(path)-1], true
}

// Msg is a message carried by a message event.
type Msg struct {
	UUID         string   `json:"uuid,omitempty"`
	Text         string   `json:"text"`
	URN          string   `json:"urn,omitempty"`
	Attachments  []string `json:"attachments,omitempty"`
	QuickReplies []string `json:"quick_replies,omitempty"`
}

// Event is a simulation event. Only the fields the preview engine reads are
// typed; everything else stays in Extra.
type Event struct {
	Type      EventType `json:"type"`
	CreatedOn string    `json:"created_on,omitempty"`
	StepUUID  string    `json:"step_uuid,omitempty"`
	Msg       *Msg      `json:"msg,omitempty"`
	Text      string    `json:"text,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var eventKnownFields = map[string]bool{
	"type": true, "created_on": true, "step_uuid": true, "msg": true, "text": true,
}

// UnmarshalJSON decodes the typed fields and stores the rest in Extra.
func (e *Event) UnmarshalJSON(data []byte) error {
	type event Event
	var decoded event
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*e = Event(decoded)
	for key, value := range all {
		if eventKnownFields[key] {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]json.RawMessage)
		}
		e.Extra[key] = value
	}
	return nil
}

// MarshalJSON merges Extra back into the typed fields.
func (e Event) MarshalJSON() ([]byte, error) {
	type event Event
	typed, err := json.Marshal(event(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return typed, nil
	}
	merged := make(map[string]json.RawMessage, len(e.Extra)+5)
	for key, value := range e.Extra {
		merged[key] = value
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(typed, &fields); err != nil {
		return nil, err
	}
	for key, value := range fields {
		merged[key] = value
	}
	return json.Marshal(merged)
}
