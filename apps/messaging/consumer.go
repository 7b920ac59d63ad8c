package main

import (
	"context"
	"log/slog"

	"github.com/mahaj/supportdesk/pkg/model"
	"github.com/mahaj/supportdesk/pkg/presence"
	"github.com/mahaj/supportdesk/pkg/store"
)

// Alerter delivers an out-of-band notice to a participant who is not
// watching the conversation. Delivery channels live outside this service.
type Alerter interface {
	Alert(ctx context.Context, conversationID int64, to model.Role, reason string) error
}

// logAlerter records alerts in the log; it stands in for the mail gateway.
type logAlerter struct {
	logger *slog.Logger
}

func (a logAlerter) Alert(ctx context.Context, conversationID int64, to model.Role, reason string) error {
	a.logger.Info("notification dispatched", "conversation_id", conversationID, "to", to, "reason", reason)
	return nil
}

// Worker turns conversation events into unread counts and alerts.
type Worker struct {
	counters store.Counters
	presence presence.Cache
	alerts   Alerter
	logger   *slog.Logger
}

func NewWorker(counters store.Counters, pc presence.Cache, alerts Alerter, logger *slog.Logger) *Worker {
	return &Worker{counters: counters, presence: pc, alerts: alerts, logger: logger}
}

// Handle satisfies events.Handler.
func (w *Worker) Handle(ctx context.Context, ev model.Event) error {
	switch ev.Type {
	case model.EventMessage:
		return w.onMessage(ctx, ev)
	case model.EventStatus:
		if ev.Status.Settled() {
			return w.alertIfAway(ctx, ev.ConversationID, model.RoleRequester, "conversation "+string(ev.Status))
		}
	}
	return nil
}

func (w *Worker) onMessage(ctx context.Context, ev model.Event) error {
	// Internal notes never reach the requester and do not count as unread.
	if ev.Visibility != model.VisibilityPublic || !ev.Role.Valid() {
		return nil
	}
	recipient := ev.Role.Other()
	if err := w.counters.IncrementUnread(ctx, ev.ConversationID, recipient); err != nil {
		w.logger.Warn("failed to increment unread count", "error", err,
			"conversation_id", ev.ConversationID, "role", recipient)
	}
	if recipient != model.RoleRequester {
		return nil
	}
	return w.alertIfAway(ctx, ev.ConversationID, recipient, "new reply")
}

// alertIfAway alerts role unless it is currently online. A presence failure
// counts as away; a duplicate alert is better than a missed one.
func (w *Worker) alertIfAway(ctx context.Context, conversationID int64, role model.Role, reason string) error {
	p, err := w.presence.Snapshot(ctx, conversationID, role)
	if err != nil {
		w.logger.Warn("presence unavailable", "error", err, "conversation_id", conversationID)
	}
	if err == nil && p.Online {
		return nil
	}
	return w.alerts.Alert(ctx, conversationID, role, reason)
}
