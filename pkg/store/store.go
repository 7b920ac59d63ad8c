// Package store holds the durable conversation state and the append-only
// message log. It is the only source of truth for message ordering.
package store

import (
	"context"

	"github.com/mahaj/supportdesk/pkg/model"
)

// MutateFunc edits a conversation inside the store's per-conversation
// serialization point. Returning an error aborts the whole operation.
type MutateFunc func(conv *model.Conversation) error

type Store interface {
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	Conversation(ctx context.Context, id int64) (*model.Conversation, error)

	// UpdateConversation applies fn atomically and returns the stored result.
	UpdateConversation(ctx context.Context, id int64, fn MutateFunc) (*model.Conversation, error)

	// Append runs fn, assigns msg the next id of the conversation and persists
	// both as one unit. msg.ID and msg.ConversationID are filled in.
	Append(ctx context.Context, id int64, msg *model.Message, fn MutateFunc) (*model.Conversation, error)

	// MessagesAfter returns messages with id > after in ascending id order.
	// Deleted messages are included so callers can decide how to filter.
	MessagesAfter(ctx context.Context, id int64, after int64) ([]model.Message, error)
	Message(ctx context.Context, id int64, messageID int64) (*model.Message, error)

	// DeleteMessage tombstones a message and returns its state before
	// deletion. The id stays reserved.
	DeleteMessage(ctx context.Context, id int64, messageID int64) (*model.Message, error)

	Close() error
}
