package domain

import "time"

// ConversationStatus is the UI-facing classification of a supervised conversation.
type ConversationStatus string

const (
	ConversationStatusOptimizedResolution ConversationStatus = "optimized_resolution"
	ConversationStatusOtherConclusion     ConversationStatus = "other_conclusion"
	ConversationStatusInProgress          ConversationStatus = "in_progress"
	ConversationStatusUnclassified        ConversationStatus = "unclassified"
)

// Conversation is a supervised conversation in UI shape.
type Conversation struct {
	ID          string             `json:"id"`
	URN         string             `json:"urn"`
	Username    string             `json:"username"`
	Status      ConversationStatus `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	EndedAt     *time.Time         `json:"ended_at,omitempty"`
	LastMessage string             `json:"last_message,omitempty"`
}

// ConversationPage is one page of supervised conversations.
type ConversationPage struct {
	Conversations []Conversation `json:"conversations"`
	Count         int            `json:"count"`
	Page          int            `json:"page"`
	HasMore       bool           `json:"has_more"`
}

// ConversationFilter selects supervised conversations. Dates use the
// console's DD/MM/YYYY format.
type ConversationFilter struct {
	Page   int                  `json:"page"`
	Start  string               `json:"start,omitempty"`
	End    string               `json:"end,omitempty"`
	Status []ConversationStatus `json:"status,omitempty"`
	Search string               `json:"search,omitempty"`
}
