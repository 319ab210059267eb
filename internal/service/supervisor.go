package service

import (
	"context"

	"github.com/xiaot623/gogo/agentbuilder/internal/domain"
)

// ListConversations loads a page of supervised conversations.
func (s *Service) ListConversations(ctx context.Context, filter domain.ConversationFilter) (*domain.ConversationPage, error) {
	if s.supervisor == nil {
		return nil, ErrSupervisorDisabled
	}
	return s.supervisor.Conversations(ctx, filter)
}

// ConversationLogs returns the classified traces of a supervised conversation.
func (s *Service) ConversationLogs(ctx context.Context, urn string) ([]domain.TraceLog, error) {
	if s.supervisor == nil {
		return nil, ErrSupervisorDisabled
	}
	return s.supervisor.Logs(ctx, urn)
}
