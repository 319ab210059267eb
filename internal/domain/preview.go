package domain

import (
	"encoding/json"
	"time"
)

// RecentMessage is a message shown on the flow edge that carried it.
type RecentMessage struct {
	Text      string `json:"text"`
	Sent      bool   `json:"sent"`
	CreatedOn string `json:"created_on,omitempty"`
}

// RecentMessages maps "{exitUuid}:{nextNodeUuidOrNull}" to the messages seen on
// that edge.
type RecentMessages map[string][]RecentMessage

// Activity is the flow-graph annotation of a session: how many times each
// edge was crossed, which nodes hold a waiting run, and the messages seen on
// each edge.
type Activity struct {
	Segments       map[string]int `json:"segments"`
	Nodes          map[string]int `json:"nodes"`
	RecentMessages RecentMessages `json:"recent_messages"`
}

// PreviewState is the UI-consumable state of one simulated conversation.
type PreviewState struct {
	FlowUUID       string                     `json:"flow_uuid"`
	FlowName       string                     `json:"flow_name,omitempty"`
	Contact        Contact                    `json:"contact"`
	Active         bool                       `json:"active"`
	Events         []Event                    `json:"events"`
	QuickReplies   []string                   `json:"quick_replies"`
	Context        map[string]json.RawMessage `json:"context,omitempty"`
	Sprinting      bool                       `json:"sprinting"`
	Session        *Session                   `json:"session,omitempty"`
	DrawerOpen     bool                       `json:"drawer_open"`
	DrawerType     DrawerType                 `json:"drawer_type,omitempty"`
	WaitingForHint bool                       `json:"waiting_for_hint"`
	Activity       *Activity                  `json:"activity,omitempty"`
	Phase          PreviewPhase               `json:"phase"`
}

// Preview is a persisted preview session.
type Preview struct {
	PreviewID       string          `json:"preview_id"`
	ContentBaseUUID string          `json:"content_base_uuid,omitempty"`
	FlowUUID        string          `json:"flow_uuid"`
	FlowName        string          `json:"flow_name,omitempty"`
	Contact         json.RawMessage `json:"contact,omitempty"`
	State           json.RawMessage `json:"state,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TimelineEvent is a preview event stored in release order.
type TimelineEvent struct {
	EventID   string          `json:"event_id"`
	PreviewID string          `json:"preview_id"`
	Seq       int             `json:"seq"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
