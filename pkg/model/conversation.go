package model

import (
	"errors"
	"time"
)

type Status string

const (
	StatusOpen            Status = "open"
	StatusInProgress      Status = "in_progress"
	StatusWaitingResponse Status = "waiting_response"
	StatusResolved        Status = "resolved"
	StatusClosed          Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusWaitingResponse, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusClosed
}

// Settled reports whether a viewer should stop polling once it observes s.
func (s Status) Settled() bool {
	return s == StatusResolved || s == StatusClosed
}

// Conversation is the support thread between one requester and the operators.
type Conversation struct {
	ID               int64      `json:"id"`
	Status           Status     `json:"status"`
	AssignedOperator string     `json:"assigned_operator,omitempty"`
	Requester        Requester  `json:"requester"`
	CreatedAt        time.Time  `json:"created_at"`
	LastActivityAt   time.Time  `json:"last_activity_at"`
	ResolvedBy       string     `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	LastMessageID    int64      `json:"last_message_id"`
	Version          int64      `json:"-"`
}

// Requester is either a registered account or a guest, never both.
type Requester struct {
	AccountID string         `json:"account_id,omitempty"`
	Guest     *GuestIdentity `json:"guest,omitempty"`
}

type GuestIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	IP    string `json:"ip,omitempty"`
}

var (
	errRequesterBoth = errors.New("requester must be an account or a guest, not both")
	errRequesterNone = errors.New("requester identity is required")
	errGuestContact  = errors.New("guest requester needs a name and an email")
)

func (r Requester) Validate() error {
	switch {
	case r.AccountID != "" && r.Guest != nil:
		return errRequesterBoth
	case r.AccountID == "" && r.Guest == nil:
		return errRequesterNone
	case r.Guest != nil && (r.Guest.Name == "" || r.Guest.Email == ""):
		return errGuestContact
	}
	return nil
}

// Identity returns an opaque sender identity for requester messages.
func (r Requester) Identity() string {
	if r.AccountID != "" {
		return "account:" + r.AccountID
	}
	if r.Guest != nil {
		return "guest:" + r.Guest.Email
	}
	return ""
}
