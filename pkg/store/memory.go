package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

type memConversation struct {
	mu       sync.Mutex
	conv     model.Conversation
	messages []model.Message
}

// MemoryStore keeps everything in process. Each conversation has its own
// mutex so appends to different conversations never contend.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[int64]*memConversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[int64]*memConversation)}
}

func (s *MemoryStore) get(id int64) (*memConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, appErrors.ErrConversationNotFound
	}
	return c, nil
}

func (s *MemoryStore) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[conv.ID]; ok {
		return appErrors.FailedPrecondition("conversation already exists")
	}
	s.convs[conv.ID] = &memConversation{conv: *conv}
	return nil
}

func (s *MemoryStore) Conversation(ctx context.Context, id int64) (*model.Conversation, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	conv := c.conv
	return &conv, nil
}

func (s *MemoryStore) UpdateConversation(ctx context.Context, id int64, fn MutateFunc) (*model.Conversation, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.conv
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.Version = c.conv.Version + 1
	c.conv = next
	out := next
	return &out, nil
}

func (s *MemoryStore) Append(ctx context.Context, id int64, msg *model.Message, fn MutateFunc) (*model.Conversation, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.conv
	if fn != nil {
		if err := fn(&next); err != nil {
			return nil, err
		}
	}
	next.LastMessageID = c.conv.LastMessageID + 1
	next.Version = c.conv.Version + 1

	msg.ID = next.LastMessageID
	msg.ConversationID = id
	c.messages = append(c.messages, *msg)
	c.conv = next
	out := next
	return &out, nil
}

func (s *MemoryStore) MessagesAfter(ctx context.Context, id int64, after int64) ([]model.Message, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	start := sort.Search(len(c.messages), func(i int) bool { return c.messages[i].ID > after })
	out := make([]model.Message, len(c.messages)-start)
	copy(out, c.messages[start:])
	return out, nil
}

func (s *MemoryStore) Message(ctx context.Context, id int64, messageID int64) (*model.Message, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// ids are dense and start at 1, so the slice index is id-1.
	i := messageID - 1
	if i < 0 || i >= int64(len(c.messages)) || c.messages[i].Deleted {
		return nil, appErrors.ErrMessageNotFound
	}
	m := c.messages[i]
	return &m, nil
}

func (s *MemoryStore) DeleteMessage(ctx context.Context, id int64, messageID int64) (*model.Message, error) {
	c, err := s.get(id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i := messageID - 1
	if i < 0 || i >= int64(len(c.messages)) || c.messages[i].Deleted {
		return nil, appErrors.ErrMessageNotFound
	}
	before := c.messages[i]
	c.messages[i].Deleted = true
	c.messages[i].Body = ""
	c.messages[i].Attachment = nil
	return &before, nil
}

func (s *MemoryStore) Close() error { return nil }
