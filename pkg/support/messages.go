package support

import (
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mahaj/supportdesk/pkg/blob"
	"github.com/mahaj/supportdesk/pkg/metrics"
	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

type AppendInput struct {
	ConversationID int64
	Role           model.Role
	Identity       string
	Body           string
	// AttachmentKey references a blob uploaded beforehand.
	AttachmentKey string
	// Visibility is honoured for operators only; requester messages are public.
	Visibility model.Visibility
}

func (s *Service) draft(ctx context.Context, in AppendInput) (*model.Message, error) {
	if !in.Role.Valid() {
		return nil, appErrors.ErrInvalidRole
	}
	vis := in.Visibility
	switch {
	case in.Role == model.RoleRequester || vis == "":
		vis = model.VisibilityPublic
	case vis != model.VisibilityPublic && vis != model.VisibilityInternal:
		return nil, appErrors.InvalidArg("unknown visibility")
	}

	body := in.Body
	if strings.TrimSpace(body) == "" {
		body = ""
	}
	if body == "" && in.AttachmentKey == "" {
		return nil, appErrors.ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, appErrors.ErrBodyTooLong
	}

	msg := &model.Message{
		SenderRole:     in.Role,
		SenderIdentity: in.Identity,
		Body:           body,
		Visibility:     vis,
	}
	if in.AttachmentKey != "" {
		if s.blobs == nil {
			return nil, appErrors.ErrAttachmentNotFound
		}
		// Claimed last so a rejected draft never holds the blob.
		att, err := s.blobs.Claim(ctx, in.AttachmentKey, blob.Owner{
			ConversationID: in.ConversationID,
			Role:           in.Role,
			Identity:       in.Identity,
		})
		if err != nil {
			return nil, err
		}
		msg.Attachment = att
	}
	return msg, nil
}

// AppendMessage validates and stores a message, applying the state machine
// in the same atomic unit. The confirmed message is returned so the sender
// can reconcile its pending entry without waiting for a poll.
func (s *Service) AppendMessage(ctx context.Context, in AppendInput) (*model.Message, error) {
	msg, err := s.draft(ctx, in)
	if err != nil {
		metrics.AppendRejections.WithLabelValues(string(appErrors.CodeOf(err))).Inc()
		return nil, err
	}

	conv, err := s.store.Append(ctx, in.ConversationID, msg, func(conv *model.Conversation) error {
		// Stamped under the conversation's serialization point so created_at
		// never runs backwards against id order.
		at := s.stamp()
		if at.Before(conv.LastActivityAt) {
			at = conv.LastActivityAt
		}
		msg.CreatedAt = at
		return applyAppend(conv, msg)
	})
	if err != nil {
		metrics.AppendRejections.WithLabelValues(string(appErrors.CodeOf(err))).Inc()
		if msg.Attachment != nil {
			s.release(msg.Attachment.Key)
		}
		return nil, err
	}

	metrics.Appends.WithLabelValues(string(msg.SenderRole), string(msg.Visibility)).Inc()
	s.touch(ctx, conv.ID, msg.SenderRole)
	s.logger.Debug("message appended", "conversation_id", conv.ID, "id", msg.ID,
		"role", msg.SenderRole, "visibility", msg.Visibility, "status", conv.Status)

	s.notify(model.Event{
		Type:           model.EventMessage,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Role:           msg.SenderRole,
		Visibility:     msg.Visibility,
		Status:         conv.Status,
		At:             msg.CreatedAt,
	})
	out := *msg
	return &out, nil
}

// PollSince returns every message after the cursor that role may see, the
// conversation status and the other role's presence. The returned messages
// depend only on durable state; the caller's online flag is refreshed as a
// side channel.
func (s *Service) PollSince(ctx context.Context, conversationID, after int64, role model.Role) (*model.PollResult, error) {
	if !role.Valid() {
		return nil, appErrors.ErrInvalidRole
	}
	if after < 0 {
		return nil, appErrors.InvalidArg("cursor must not be negative")
	}

	all, err := s.store.MessagesAfter(ctx, conversationID, after)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	visible := make([]model.Message, 0, len(all))
	for i := range all {
		if all[i].VisibleTo(role) {
			visible = append(visible, all[i])
		}
	}

	res := &model.PollResult{
		Messages: visible,
		Status:   conv.Status,
		Presence: s.snapshot(ctx, conversationID, role.Other()),
	}
	s.touch(ctx, conversationID, role)

	metrics.Polls.WithLabelValues(string(role)).Inc()
	metrics.Delivered.Add(float64(len(visible)))
	return res, nil
}

// DeleteMessage tombstones a message and removes its attachment blob.
func (s *Service) DeleteMessage(ctx context.Context, conversationID, messageID int64) error {
	before, err := s.store.DeleteMessage(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	s.logger.Info("message deleted", "conversation_id", conversationID, "id", messageID)
	s.notify(model.Event{
		Type:           model.EventDeleted,
		ConversationID: conversationID,
		MessageID:      messageID,
		Visibility:     before.Visibility,
		At:             s.stamp(),
	})

	// The message is already gone; a leftover blob is only garbage.
	if before.Attachment != nil && s.blobs != nil {
		if err := s.blobs.Delete(ctx, before.Attachment.Key); err != nil {
			metrics.BlobErrors.WithLabelValues("delete").Inc()
			s.logger.Warn("failed to delete attachment", "error", err,
				"conversation_id", conversationID, "id", messageID, "key", before.Attachment.Key)
		}
	}
	return nil
}

// Upload stores an attachment payload ahead of the message that will
// reference it. Only the same caller in the same conversation can attach it,
// and only to one message.
func (s *Service) Upload(ctx context.Context, conversationID int64, role model.Role, identity, filename, mediaType string, r io.Reader) (*model.Attachment, error) {
	if s.blobs == nil {
		return nil, appErrors.FailedPrecondition("attachments are disabled")
	}
	if !role.Valid() {
		return nil, appErrors.ErrInvalidRole
	}
	if _, err := s.store.Conversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.blobs.Put(ctx, blob.Owner{ConversationID: conversationID, Role: role, Identity: identity}, filename, mediaType, r)
}

// release frees a claimed blob after a failed append so the upload can be
// retried.
func (s *Service) release(key string) {
	if err := s.blobs.Release(context.Background(), key); err != nil {
		metrics.BlobErrors.WithLabelValues("release").Inc()
		s.logger.Warn("failed to release attachment", "error", err, "key", key)
	}
}

// Attachment opens the blob behind a message for a caller allowed to see
// that message. Internal attachments are operator-only.
func (s *Service) Attachment(ctx context.Context, conversationID, messageID int64, role model.Role) (*model.Attachment, io.ReadCloser, error) {
	msg, err := s.store.Message(ctx, conversationID, messageID)
	if err != nil {
		return nil, nil, err
	}
	if !msg.VisibleTo(role) {
		return nil, nil, appErrors.ErrMessageNotFound
	}
	if msg.Attachment == nil || s.blobs == nil {
		return nil, nil, appErrors.ErrAttachmentNotFound
	}
	rc, err := s.blobs.Open(ctx, msg.Attachment.Key)
	if err != nil {
		return nil, nil, err
	}
	return msg.Attachment, rc, nil
}
