// Package support is the conversation synchronization engine. It applies
// the conversation state machine, assigns message ids through the store,
// answers cursor polls and records presence.
package support

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mahaj/supportdesk/pkg/blob"
	"github.com/mahaj/supportdesk/pkg/metrics"
	"github.com/mahaj/supportdesk/pkg/model"
	"github.com/mahaj/supportdesk/pkg/presence"
	"github.com/mahaj/supportdesk/pkg/snowflake"
	"github.com/mahaj/supportdesk/pkg/store"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// Notifier is told about every durable change. It is optional and its
// failures never affect the change itself.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event) error
}

const (
	MaxBodyLength  = 10000
	notifyTimeout  = 5 * time.Second
	typingInterval = time.Second
)

type Service struct {
	store    store.Store
	presence presence.Cache
	blobs    blob.Store
	notifier Notifier
	ids      *snowflake.Node
	logger   *slog.Logger
	now      func() time.Time

	typingMu      sync.Mutex
	typingLimiter map[typingKey]*rate.Limiter

	notifyWG sync.WaitGroup
}

type typingKey struct {
	conversationID int64
	role           model.Role
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithBlobs(b blob.Store) Option { return func(s *Service) { s.blobs = b } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, pc presence.Cache, ids *snowflake.Node, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:         st,
		presence:      pc,
		ids:           ids,
		logger:        logger,
		now:           time.Now,
		typingLimiter: make(map[typingKey]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until in-flight notifications have been handed off.
func (s *Service) Wait() {
	s.notifyWG.Wait()
}

// notify hands ev to the notifier in the background with its own deadline,
// so a slow broker never delays the caller.
func (s *Service) notify(ev model.Event) {
	if s.notifier == nil {
		return
	}
	s.notifyWG.Add(1)
	go func() {
		defer s.notifyWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, ev); err != nil {
			metrics.NotifyFailures.Inc()
			s.logger.Warn("failed to publish event", "error", err,
				"type", ev.Type, "conversation_id", ev.ConversationID)
		}
	}()
}

// OpenConversation creates a conversation for a requester. It stands in for
// the ticket directory, which owns creation in a full deployment.
func (s *Service) OpenConversation(ctx context.Context, requester model.Requester) (*model.Conversation, error) {
	if err := requester.Validate(); err != nil {
		return nil, appErrors.ErrInvalidRequester(err)
	}
	now := s.stamp()
	conv := &model.Conversation{
		ID:             s.ids.Generate(),
		Status:         model.StatusOpen,
		Requester:      requester,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.logger.Info("conversation opened", "conversation_id", conv.ID)
	return conv, nil
}

func (s *Service) Conversation(ctx context.Context, id int64) (*model.Conversation, error) {
	return s.store.Conversation(ctx, id)
}

// stamp returns the current time at the precision the stores keep.
func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
