package support

import (
	"context"
	"strings"

	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// applyAppend is the state machine step for a new message. It runs inside
// the store's serialization point with msg.CreatedAt already stamped.
func applyAppend(conv *model.Conversation, msg *model.Message) error {
	if conv.Status.Terminal() && msg.Visibility != model.VisibilityInternal {
		return appErrors.ErrConversationClosed
	}
	conv.LastActivityAt = msg.CreatedAt

	// Internal notes are not replies and leave the lifecycle alone.
	if msg.Visibility != model.VisibilityPublic {
		return nil
	}
	switch msg.SenderRole {
	case model.RoleOperator:
		if conv.Status == model.StatusOpen || conv.Status == model.StatusInProgress {
			conv.Status = model.StatusWaitingResponse
		}
		if conv.AssignedOperator == "" && msg.SenderIdentity != "" {
			conv.AssignedOperator = msg.SenderIdentity
		}
	case model.RoleRequester:
		if conv.Status == model.StatusWaitingResponse {
			conv.Status = model.StatusInProgress
		}
	}
	return nil
}

// SetStatus moves a conversation to status on behalf of actor. Any status
// may be chosen except out of closed.
func (s *Service) SetStatus(ctx context.Context, id int64, status model.Status, actor string) (*model.Conversation, error) {
	if !status.Valid() {
		return nil, appErrors.ErrInvalidStatus
	}
	conv, err := s.store.UpdateConversation(ctx, id, func(conv *model.Conversation) error {
		if conv.Status.Terminal() {
			return appErrors.ErrTerminalStatus
		}
		now := s.stamp()
		if now.Before(conv.LastActivityAt) {
			now = conv.LastActivityAt
		}
		conv.Status = status
		conv.LastActivityAt = now
		if status.Settled() {
			conv.ResolvedBy = actor
			conv.ResolvedAt = &now
		} else {
			conv.ResolvedBy = ""
			conv.ResolvedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation status changed", "conversation_id", id, "status", status, "actor", actor)
	s.notify(model.Event{
		Type:           model.EventStatus,
		ConversationID: id,
		Status:         conv.Status,
		At:             conv.LastActivityAt,
	})
	return conv, nil
}

// Assign hands the conversation to operator. Reassignment is allowed in every
// status, closed included.
func (s *Service) Assign(ctx context.Context, id int64, operator string) (*model.Conversation, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return nil, appErrors.ErrInvalidOperator
	}
	conv, err := s.store.UpdateConversation(ctx, id, func(conv *model.Conversation) error {
		conv.AssignedOperator = operator
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("conversation assigned", "conversation_id", id, "operator", operator)
	s.notify(model.Event{
		Type:           model.EventAssign,
		ConversationID: id,
		Status:         conv.Status,
		At:             s.stamp(),
	})
	return conv, nil
}
