package store

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/mahaj/supportdesk/pkg/db"
	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

const defaultCASAttempts = 16

var errContention = errors.New("conversation is under heavy concurrent modification")

// ScyllaStore persists conversations in the conversation_log table. Every
// mutation is a lightweight transaction guarded by the version static
// column, which is the per-conversation serialization point.
type ScyllaStore struct {
	session     *db.Session
	casAttempts int
}

func NewScyllaStore(session *db.Session) *ScyllaStore {
	return &ScyllaStore{session: session, casAttempts: defaultCASAttempts}
}

const selectConversation = `SELECT status, assigned_operator, requester_account, guest_name, guest_email, guest_phone, guest_ip,
	created_at, last_activity_at, resolved_by, resolved_at, last_message_id, version
	FROM conversation_log WHERE conversation_id = ? LIMIT 1`

const insertConversation = `INSERT INTO conversation_log (conversation_id, status, assigned_operator, requester_account,
	guest_name, guest_email, guest_phone, guest_ip, created_at, last_activity_at, last_message_id, version)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`

const updateConversation = `UPDATE conversation_log SET status = ?, assigned_operator = ?, last_activity_at = ?,
	resolved_by = ?, resolved_at = ?, last_message_id = ?, version = ?
	WHERE conversation_id = ? IF version = ?`

const insertMessage = `INSERT INTO conversation_log (conversation_id, id, sender_role, sender_identity, body,
	attachment_key, attachment_type, attachment_name, attachment_size, visibility, sent_at, deleted)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, false)`

const selectMessages = `SELECT id, sender_role, sender_identity, body, attachment_key, attachment_type,
	attachment_name, attachment_size, visibility, sent_at, deleted
	FROM conversation_log WHERE conversation_id = ? AND id > ?`

const selectMessage = `SELECT id, sender_role, sender_identity, body, attachment_key, attachment_type,
	attachment_name, attachment_size, visibility, sent_at, deleted
	FROM conversation_log WHERE conversation_id = ? AND id = ?`

const tombstoneMessage = `UPDATE conversation_log SET deleted = true, body = null, attachment_key = null,
	attachment_type = null, attachment_name = null, attachment_size = null
	WHERE conversation_id = ? AND id = ? IF deleted = false`

func (s *ScyllaStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	var guest model.GuestIdentity
	if conv.Requester.Guest != nil {
		guest = *conv.Requester.Guest
	}
	applied, err := s.session.Query(insertConversation,
		conv.ID, string(conv.Status), conv.AssignedOperator, conv.Requester.AccountID,
		guest.Name, guest.Email, guest.Phone, guest.IP,
		conv.CreatedAt, conv.LastActivityAt, conv.LastMessageID, conv.Version,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return appErrors.ErrStorage(errors.Wrap(err, "scyllaStore.CreateConversation.Insert"))
	}
	if !applied {
		return appErrors.FailedPrecondition("conversation already exists")
	}
	return nil
}

func (s *ScyllaStore) Conversation(ctx context.Context, id int64) (*model.Conversation, error) {
	conv := &model.Conversation{ID: id}
	var (
		status, account        string
		name, email, phone, ip string
		resolvedAt             time.Time
	)
	err := s.session.Query(selectConversation, id).WithContext(ctx).Scan(
		&status, &conv.AssignedOperator, &account, &name, &email, &phone, &ip,
		&conv.CreatedAt, &conv.LastActivityAt, &conv.ResolvedBy, &resolvedAt,
		&conv.LastMessageID, &conv.Version,
	)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, appErrors.ErrConversationNotFound
		}
		return nil, appErrors.ErrStorage(errors.Wrap(err, "scyllaStore.Conversation.Scan"))
	}
	if status == "" {
		return nil, appErrors.ErrConversationNotFound
	}
	conv.Status = model.Status(status)
	if account != "" {
		conv.Requester.AccountID = account
	} else {
		conv.Requester.Guest = &model.GuestIdentity{Name: name, Email: email, Phone: phone, IP: ip}
	}
	if !resolvedAt.IsZero() {
		conv.ResolvedAt = &resolvedAt
	}
	return conv, nil
}

func conversationArgs(next *model.Conversation, prevVersion int64) []interface{} {
	var resolvedAt interface{}
	if next.ResolvedAt != nil {
		resolvedAt = *next.ResolvedAt
	}
	return []interface{}{
		string(next.Status), next.AssignedOperator, next.LastActivityAt,
		next.ResolvedBy, resolvedAt, next.LastMessageID, next.Version,
		next.ID, prevVersion,
	}
}

func (s *ScyllaStore) UpdateConversation(ctx context.Context, id int64, fn MutateFunc) (*model.Conversation, error) {
	for attempt := 0; attempt < s.casAttempts; attempt++ {
		cur, err := s.Conversation(ctx, id)
		if err != nil {
			return nil, err
		}
		next := *cur
		if err := fn(&next); err != nil {
			return nil, err
		}
		next.Version = cur.Version + 1

		applied, err := s.session.Query(updateConversation, conversationArgs(&next, cur.Version)...).
			WithContext(ctx).MapScanCAS(map[string]interface{}{})
		if err != nil {
			return nil, appErrors.ErrStorage(errors.Wrap(err, "scyllaStore.UpdateConversation.CAS"))
		}
		if applied {
			return &next, nil
		}
	}
	return nil, appErrors.ErrStorage(errContention)
}

func (s *ScyllaStore) Append(ctx context.Context, id int64, msg *model.Message, fn MutateFunc) (*model.Conversation, error) {
	for attempt := 0; attempt < s.casAttempts; attempt++ {
		cur, err := s.Conversation(ctx, id)
		if err != nil {
			return nil, err
		}
		next := *cur
		if fn != nil {
			if err := fn(&next); err != nil {
				return nil, err
			}
		}
		next.LastMessageID = cur.LastMessageID + 1
		next.Version = cur.Version + 1

		var att model.Attachment
		if msg.Attachment != nil {
			att = *msg.Attachment
		}

		// Both statements target the same partition, so the condition on
		// version covers the insert as well.
		batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
		batch.Query(updateConversation, conversationArgs(&next, cur.Version)...)
		batch.Query(insertMessage, id, next.LastMessageID, string(msg.SenderRole), msg.SenderIdentity, msg.Body,
			att.Key, att.MediaType, att.Filename, att.Size, string(msg.Visibility), msg.CreatedAt)

		applied, iter, err := s.session.MapExecuteBatchCAS(batch, map[string]interface{}{})
		if iter != nil {
			_ = iter.Close()
		}
		if err != nil {
			return nil, appErrors.ErrStorage(errors.Wrap(err, "scyllaStore.Append.Batch"))
		}
		if applied {
			msg.ID = next.LastMessageID
			msg.ConversationID = id
			return &next, nil
		}
	}
	return nil, appErrors.ErrStorage(errContention)
}

func scanMessage(conversationID int64, scan func(dest ...interface{}) bool) (model.Message, bool) {
	m := model.Message{ConversationID: conversationID}
	var (
		role, visibility string
		att              model.Attachment
	)
	ok := scan(&m.ID, &role, &m.SenderIdentity, &m.Body, &att.Key, &att.MediaType,
		&att.Filename, &att.Size, &visibility, &m.CreatedAt, &m.Deleted)
	if !ok {
		return m, false
	}
	m.SenderRole = model.Role(role)
	m.Visibility = model.Visibility(visibility)
	if att.Key != "" {
		m.Attachment = &att
	}
	return m, true
}

func (s *ScyllaStore) MessagesAfter(ctx context.Context, id int64, after int64) ([]model.Message, error) {
	if _, err := s.Conversation(ctx, id); err != nil {
		return nil, err
	}
	iter := s.session.Query(selectMessages, id, after).WithContext(ctx).Iter()
	var out []model.Message
	for {
		m, ok := scanMessage(id, iter.Scan)
		if !ok {
			break
		}
		out = append(out, m)
	}
	if err := iter.Close(); err != nil {
		return nil, appErrors.ErrStorage(errors.Wrap(err, "scyllaStore.MessagesAfter.Iter"))
	}
	return out, nil
}

func (s *ScyllaStore) Message(ctx context.Context, id int64, messageID int64) (*model.Message, error) {
	iter := s.session.Query(selectMessage, id, messageID).WithContext(ctx).Iter()
	m, ok := scanMessage(id, iter.Scan)
	if err := iter.Close(); err != nil {
		return nil, appErrors.ErrStorage(errors.Wrap(err, "scyllaStore.Message.Iter"))
	}
	if !ok || m.Deleted {
		return nil, appErrors.ErrMessageNotFound
	}
	return &m, nil
}

func (s *ScyllaStore) DeleteMessage(ctx context.Context, id int64, messageID int64) (*model.Message, error) {
	before, err := s.Message(ctx, id, messageID)
	if err != nil {
		return nil, err
	}
	applied, err := s.session.Query(tombstoneMessage, id, messageID).WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return nil, appErrors.ErrStorage(errors.Wrap(err, "scyllaStore.DeleteMessage.CAS"))
	}
	if !applied {
		return nil, appErrors.ErrMessageNotFound
	}
	return before, nil
}

func (s *ScyllaStore) Close() error {
	s.session.Close()
	return nil
}
