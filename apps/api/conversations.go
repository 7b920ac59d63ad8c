package main

import (
	"net"
	"net/http"
	"strings"

	"github.com/mahaj/supportdesk/pkg/client"
	"github.com/mahaj/supportdesk/pkg/model"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// login issues operator tokens. Operator identity management lives outside
// this service, so any non-empty id is accepted.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req client.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id := strings.TrimSpace(req.OperatorID)
	if id == "" {
		a.writeError(w, r, appErrors.InvalidArg("operator_id is required"))
		return
	}

	token, err := a.issuer.OperatorToken(id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client.LoginResponse{Token: token, Role: model.RoleOperator, Identity: id})
}

// openConversation is the first contact from a requester. The response
// carries a token scoped to the new conversation.
func (a *API) openConversation(w http.ResponseWriter, r *http.Request) {
	var requester model.Requester
	if err := decodeJSON(r, &requester); err != nil {
		a.writeError(w, r, err)
		return
	}
	if requester.Guest != nil && requester.Guest.IP == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			requester.Guest.IP = host
		}
	}

	conv, err := a.svc.OpenConversation(r.Context(), requester)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	identity := requester.Identity()
	token, err := a.issuer.RequesterToken(identity, conv.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client.OpenResponse{Conversation: *conv, Token: token, Identity: identity})
}

func (a *API) getConversation(w http.ResponseWriter, r *http.Request) {
	_, id, err := access(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	conv, err := a.svc.Conversation(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type statusRequest struct {
	Status model.Status `json:"status"`
}

func (a *API) setStatus(w http.ResponseWriter, r *http.Request) {
	claims, id, err := operatorAccess(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	conv, err := a.svc.SetStatus(r.Context(), id, req.Status, claims.Identity)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

type assignRequest struct {
	Operator string `json:"operator"`
}

func (a *API) assign(w http.ResponseWriter, r *http.Request) {
	_, id, err := operatorAccess(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	conv, err := a.svc.Assign(r.Context(), id, req.Operator)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
