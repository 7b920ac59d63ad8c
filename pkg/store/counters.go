package store

import (
	"context"
	"sync"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/mahaj/supportdesk/pkg/db"
	"github.com/mahaj/supportdesk/pkg/model"
)

// Counters tracks how many messages a role has not read yet. Counts are
// advisory and never affect delivery.
type Counters interface {
	IncrementUnread(ctx context.Context, conversationID int64, role model.Role) error
	ResetUnread(ctx context.Context, conversationID int64, role model.Role) error
	Unread(ctx context.Context, conversationID int64, role model.Role) (int64, error)
}

type counterKey struct {
	conversationID int64
	role           model.Role
}

type MemoryCounters struct {
	mu     sync.Mutex
	counts map[counterKey]int64
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{counts: make(map[counterKey]int64)}
}

func (c *MemoryCounters) IncrementUnread(ctx context.Context, conversationID int64, role model.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[counterKey{conversationID, role}]++
	return nil
}

func (c *MemoryCounters) ResetUnread(ctx context.Context, conversationID int64, role model.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, counterKey{conversationID, role})
	return nil
}

func (c *MemoryCounters) Unread(ctx context.Context, conversationID int64, role model.Role) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[counterKey{conversationID, role}], nil
}

// ScyllaCounters uses the conversation_counters counter table.
type ScyllaCounters struct {
	session *db.Session
}

func NewScyllaCounters(session *db.Session) *ScyllaCounters {
	return &ScyllaCounters{session: session}
}

func (c *ScyllaCounters) IncrementUnread(ctx context.Context, conversationID int64, role model.Role) error {
	err := c.session.Query(`UPDATE conversation_counters SET unread_count = unread_count + 1 WHERE conversation_id = ? AND role = ?`,
		conversationID, string(role)).WithContext(ctx).Exec()
	return errors.Wrap(err, "scyllaCounters.IncrementUnread")
}

// ResetUnread deletes the row; deletion is the only way to reset a counter.
func (c *ScyllaCounters) ResetUnread(ctx context.Context, conversationID int64, role model.Role) error {
	err := c.session.Query(`DELETE FROM conversation_counters WHERE conversation_id = ? AND role = ?`,
		conversationID, string(role)).WithContext(ctx).Exec()
	return errors.Wrap(err, "scyllaCounters.ResetUnread")
}

func (c *ScyllaCounters) Unread(ctx context.Context, conversationID int64, role model.Role) (int64, error) {
	var count int64
	err := c.session.Query(`SELECT unread_count FROM conversation_counters WHERE conversation_id = ? AND role = ?`,
		conversationID, string(role)).WithContext(ctx).Scan(&count)
	if errors.Is(err, gocql.ErrNotFound) {
		return 0, nil
	}
	return count, errors.Wrap(err, "scyllaCounters.Unread")
}
