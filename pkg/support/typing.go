package support

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/mahaj/supportdesk/pkg/metrics"
	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// SetTyping records that role is composing in a conversation. Presence is
// best effort: cache failures are logged and the call still succeeds.
// Heartbeats faster than one per second per role are acknowledged without a
// write.
func (s *Service) SetTyping(ctx context.Context, conversationID int64, role model.Role) error {
	if !role.Valid() {
		return appErrors.ErrInvalidRole
	}
	if _, err := s.store.Conversation(ctx, conversationID); err != nil {
		return err
	}
	if !s.allowTyping(conversationID, role) {
		return nil
	}

	if err := s.presence.SetTyping(ctx, conversationID, role); err != nil {
		metrics.PresenceErrors.Inc()
		s.logger.Warn("failed to record typing", "error", err, "conversation_id", conversationID, "role", role)
		return nil
	}
	metrics.PresenceWrites.WithLabelValues("typing").Inc()

	s.notify(model.Event{
		Type:           model.EventTyping,
		ConversationID: conversationID,
		Role:           role,
		At:             s.stamp(),
	})
	return nil
}

func (s *Service) allowTyping(conversationID int64, role model.Role) bool {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	k := typingKey{conversationID, role}
	l, ok := s.typingLimiter[k]
	if !ok {
		l = rate.NewLimiter(rate.Every(typingInterval), 1)
		s.typingLimiter[k] = l
	}
	return l.AllowN(s.now(), 1)
}

// touch refreshes role's online flag after a poll.
func (s *Service) touch(ctx context.Context, conversationID int64, role model.Role) {
	if err := s.presence.Touch(ctx, conversationID, role); err != nil {
		metrics.PresenceErrors.Inc()
		s.logger.Warn("failed to record heartbeat", "error", err, "conversation_id", conversationID, "role", role)
		return
	}
	metrics.PresenceWrites.WithLabelValues("online").Inc()
}

// snapshot reads role's presence, reporting offline when the cache fails.
func (s *Service) snapshot(ctx context.Context, conversationID int64, role model.Role) model.Presence {
	p, err := s.presence.Snapshot(ctx, conversationID, role)
	if err != nil {
		metrics.PresenceErrors.Inc()
		s.logger.Warn("failed to read presence", "error", err, "conversation_id", conversationID, "role", role)
		return model.Presence{Role: role}
	}
	return p
}
