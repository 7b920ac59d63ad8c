package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mahaj/supportdesk/pkg/model"
)

// Transport is the request/response channel to the server.
type Transport interface {
	Append(ctx context.Context, conversationID int64, d Draft) (*model.Message, error)
	Poll(ctx context.Context, conversationID, after int64) (*model.PollResult, error)
	Typing(ctx context.Context, conversationID int64) error
}

const DefaultPollInterval = 3 * time.Second

// Session is one viewer's live view of a conversation. It lasts as long as
// the view is open; a new view starts a new Session.
type Session struct {
	transport      Transport
	conversationID int64
	interval       time.Duration
	logger         *slog.Logger
	typing         *rate.Limiter

	mu       sync.Mutex
	feed     Feed
	status   model.Status
	presence model.Presence

	updates chan struct{}
}

type SessionOption func(*Session)

func WithPollInterval(d time.Duration) SessionOption {
	return func(s *Session) { s.interval = d }
}

func NewSession(t Transport, conversationID int64, self Sender, logger *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		transport:      t,
		conversationID: conversationID,
		interval:       DefaultPollInterval,
		logger:         logger,
		typing:         rate.NewLimiter(rate.Every(time.Second), 1),
		feed:           NewFeed(self),
		updates:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Updates signals after every change to the feed, status or presence.
// Signals coalesce; read the current state with Feed and friends.
func (s *Session) Updates() <-chan struct{} { return s.updates }

func (s *Session) Feed() Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed
}

func (s *Session) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Presence is the other side's last reported presence.
func (s *Session) Presence() model.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence
}

func (s *Session) update(fn func(f Feed) Feed) {
	s.mu.Lock()
	s.feed = fn(s.feed)
	s.mu.Unlock()
	s.changed()
}

func (s *Session) changed() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Send renders d as pending, submits it and settles the pending entry. On
// failure the entry is removed and the error returned; d is untouched so the
// composer can restore it.
func (s *Session) Send(ctx context.Context, d Draft) (*model.Message, error) {
	tempID := uuid.NewString()
	s.update(func(f Feed) Feed { return f.AddPending(tempID, d) })

	msg, err := s.transport.Append(ctx, s.conversationID, d)
	if err != nil {
		s.update(func(f Feed) Feed {
			next, _, _ := f.Reject(tempID)
			return next
		})
		return nil, err
	}
	s.update(func(f Feed) Feed { return f.Confirm(tempID, *msg) })
	return msg, nil
}

// Typing sends a typing heartbeat at most once per second. Extra calls and
// transport failures are dropped.
func (s *Session) Typing(ctx context.Context) {
	if !s.typing.Allow() {
		return
	}
	if err := s.transport.Typing(ctx, s.conversationID); err != nil {
		s.logger.Debug("typing heartbeat failed", "error", err, "conversation_id", s.conversationID)
	}
}

// PollOnce fetches everything after the cursor and merges it.
func (s *Session) PollOnce(ctx context.Context) (model.Status, error) {
	res, err := s.transport.Poll(ctx, s.conversationID, s.Feed().Cursor())
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.feed = s.feed.Reconcile(res.Messages)
	s.status = res.Status
	s.presence = res.Presence
	s.mu.Unlock()
	s.changed()
	return res.Status, nil
}

// Run polls until ctx is done or the conversation is resolved or closed.
// Poll errors are logged and retried on the next tick. Once Run returns
// because the conversation settled it is not restarted automatically.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		status, err := s.PollOnce(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			s.logger.Debug("poll failed, retrying on the next tick", "error", err, "conversation_id", s.conversationID)
		case status.Settled():
			s.logger.Info("conversation settled, polling stopped", "conversation_id", s.conversationID, "status", status)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
