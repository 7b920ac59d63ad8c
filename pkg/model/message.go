package model

import "time"

type Role string

const (
	RoleRequester Role = "requester"
	RoleOperator  Role = "operator"
)

func (r Role) Valid() bool {
	return r == RoleRequester || r == RoleOperator
}

// Other returns the counterpart role in a conversation.
func (r Role) Other() Role {
	if r == RoleOperator {
		return RoleRequester
	}
	return RoleOperator
}

type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
)

// Message is one confirmed entry in a conversation log. ID is assigned by the
// store and is strictly increasing within a conversation.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	SenderRole     Role        `json:"sender_role"`
	SenderIdentity string      `json:"sender_identity,omitempty"`
	Body           string      `json:"body,omitempty"`
	Attachment     *Attachment `json:"attachment,omitempty"`
	Visibility     Visibility  `json:"visibility"`
	CreatedAt      time.Time   `json:"created_at"`
	Deleted        bool        `json:"-"`
}

// VisibleTo reports whether a caller with the given role may receive m.
func (m *Message) VisibleTo(role Role) bool {
	if m.Deleted {
		return false
	}
	return m.Visibility == VisibilityPublic || role == RoleOperator
}

// Attachment references a blob uploaded before the owning message was created.
type Attachment struct {
	Key       string `json:"key"`
	MediaType string `json:"media_type"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
}

// Presence is the advisory online/typing state of one role in a conversation.
type Presence struct {
	Role   Role `json:"role"`
	Online bool `json:"online"`
	Typing bool `json:"typing"`
}

// PollResult is the unit every transport delivers: messages after the
// caller's cursor, the conversation status and the other side's presence.
type PollResult struct {
	Messages []Message `json:"messages"`
	Status   Status    `json:"status"`
	Presence Presence  `json:"presence"`
}
