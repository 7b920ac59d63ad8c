// Package presence records advisory online and typing flags per
// conversation and role. Entries expire on their own; nothing here is
// durable or consulted for message delivery.
package presence

import (
	"context"
	"time"

	"github.com/mahaj/supportdesk/pkg/model"
)

type Cache interface {
	// Touch marks role as online in the conversation for the online TTL.
	Touch(ctx context.Context, conversationID int64, role model.Role) error
	// SetTyping marks role as typing for the typing TTL. It also counts as activity.
	SetTyping(ctx context.Context, conversationID int64, role model.Role) error
	Snapshot(ctx context.Context, conversationID int64, role model.Role) (model.Presence, error)
}

type TTL struct {
	Online time.Duration
	Typing time.Duration
}

var DefaultTTL = TTL{Online: 15 * time.Second, Typing: 5 * time.Second}
