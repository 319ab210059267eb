package domain

import (
	"encoding/json"
	"time"
)

// TraceLog is a classified trace record attached to a preview or conversation.
type TraceLog struct {
	LogID     string          `json:"log_id"`
	PreviewID string          `json:"preview_id"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Kind      string          `json:"kind,omitempty"`
	Summary   string          `json:"summary"`
	Category  string          `json:"category"`
	Icon      string          `json:"icon"`
	AgentName string          `json:"agent_name,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// TraceAnomaly is a trace no classification rule matched.
type TraceAnomaly struct {
	AnomalyID string    `json:"anomaly_id"`
	Message   string    `json:"message"`
	Trace     string    `json:"trace"`
	CreatedAt time.Time `json:"created_at"`
}
