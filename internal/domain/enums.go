// Package domain defines the core domain models for the agent builder preview service.
package domain

// RunStatus represents the status of a flow run returned by the simulator.
type RunStatus string

const (
	RunStatusActive      RunStatus = "active"
	RunStatusWaiting     RunStatus = "waiting"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusExpired     RunStatus = "expired"
	RunStatusFailed      RunStatus = "failed"
)

// EventType represents the type of a simulation event.
type EventType string

const (
	// Message events
	EventTypeMsgCreated  EventType = "msg_created"
	EventTypeMsgReceived EventType = "msg_received"
	EventTypeIVRCreated  EventType = "ivr_created"

	// Synthetic events added by the preview engine
	EventTypeError EventType = "error"
	EventTypeInfo  EventType = "info"
)

// IsMessage reports whether events of this type render as chat messages.
func (t EventType) IsMessage() bool {
	switch t {
	case EventTypeMsgCreated, EventTypeMsgReceived, EventTypeIVRCreated:
		return true
	}
	return false
}

// IsMT reports whether the event is an outbound (mobile-terminated) message.
func (t EventType) IsMT() bool {
	return t == EventTypeMsgCreated || t == EventTypeIVRCreated
}

// HintType is the kind of input the simulator is waiting for.
type HintType string

const (
	HintTypeAudio    HintType = "audio"
	HintTypeVideo    HintType = "video"
	HintTypeImage    HintType = "image"
	HintTypeLocation HintType = "location"
	HintTypeDigits   HintType = "digits"
)

// DrawerType is the input affordance the console opens for the simulated user.
type DrawerType string

const (
	DrawerTypeNone         DrawerType = ""
	DrawerTypeAudio        DrawerType = "audio"
	DrawerTypeVideos       DrawerType = "videos"
	DrawerTypeImages       DrawerType = "images"
	DrawerTypeLocation     DrawerType = "location"
	DrawerTypeDigit        DrawerType = "digit"
	DrawerTypeDigits       DrawerType = "digits"
	DrawerTypeQuickReplies DrawerType = "quickReplies"
)

// PreviewPhase is the coarse lifecycle phase of a preview session.
type PreviewPhase string

const (
	PreviewPhaseIdle     PreviewPhase = "idle"
	PreviewPhaseStarting PreviewPhase = "starting"
	PreviewPhaseResuming PreviewPhase = "resuming"
	PreviewPhaseSettled  PreviewPhase = "settled"
)
