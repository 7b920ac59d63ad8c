package main

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mahaj/supportdesk/pkg/auth"
	"github.com/mahaj/supportdesk/pkg/metrics"
	"github.com/mahaj/supportdesk/pkg/model"
	"github.com/mahaj/supportdesk/pkg/store"
	"github.com/mahaj/supportdesk/pkg/support"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// API is the polling transport in front of the sync engine.
type API struct {
	svc      *support.Service
	issuer   *auth.Issuer
	counters store.Counters
	maxSize  int64
	logger   *slog.Logger
}

func (a *API) Router() http.Handler {
	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/login", a.login).Methods(http.MethodPost)
	r.HandleFunc("/conversations", a.openConversation).Methods(http.MethodPost)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Protected endpoints
	p := r.NewRoute().Subrouter()
	p.Use(auth.Middleware(a.issuer, a.logger))
	p.HandleFunc("/conversations/{id:[0-9]+}", a.getConversation).Methods(http.MethodGet)
	p.HandleFunc("/conversations/{id:[0-9]+}/messages", a.appendMessage).Methods(http.MethodPost)
	p.HandleFunc("/conversations/{id:[0-9]+}/messages", a.pollMessages).Methods(http.MethodGet)
	p.HandleFunc("/conversations/{id:[0-9]+}/messages/{messageID:[0-9]+}", a.deleteMessage).Methods(http.MethodDelete)
	p.HandleFunc("/conversations/{id:[0-9]+}/messages/{messageID:[0-9]+}/attachment", a.downloadAttachment).Methods(http.MethodGet)
	p.HandleFunc("/conversations/{id:[0-9]+}/typing", a.typing).Methods(http.MethodPost)
	p.HandleFunc("/conversations/{id:[0-9]+}/status", a.setStatus).Methods(http.MethodPut)
	p.HandleFunc("/conversations/{id:[0-9]+}/assignee", a.assign).Methods(http.MethodPut)
	p.HandleFunc("/conversations/{id:[0-9]+}/read", a.markRead).Methods(http.MethodPost)
	p.HandleFunc("/conversations/{id:[0-9]+}/unread", a.unread).Methods(http.MethodGet)
	p.HandleFunc("/conversations/{id:[0-9]+}/attachments", a.uploadAttachment).Methods(http.MethodPost)

	return r
}

// access resolves the caller and the conversation in the path and checks
// that a requester token is scoped to it.
func access(r *http.Request) (*auth.Claims, int64, error) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, 0, appErrors.Unauthorized("missing credentials")
	}
	id, err := pathInt(r, "id")
	if err != nil {
		return nil, 0, err
	}
	if !claims.CanAccess(id) {
		return nil, 0, appErrors.ErrForbidden
	}
	return claims, id, nil
}

// operatorAccess is access restricted to operators.
func operatorAccess(r *http.Request) (*auth.Claims, int64, error) {
	claims, id, err := access(r)
	if err != nil {
		return nil, 0, err
	}
	if claims.Role != model.RoleOperator {
		return nil, 0, appErrors.ErrForbidden
	}
	return claims, id, nil
}
