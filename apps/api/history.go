package main

import (
	"net/http"
	"strconv"

	"github.com/mahaj/supportdesk/pkg/client"
	"github.com/mahaj/supportdesk/pkg/support"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

func (a *API) appendMessage(w http.ResponseWriter, r *http.Request) {
	claims, id, err := access(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var d client.Draft
	if err := decodeJSON(r, &d); err != nil {
		a.writeError(w, r, err)
		return
	}

	msg, err := a.svc.AppendMessage(r.Context(), support.AppendInput{
		ConversationID: id,
		Role:           claims.Role,
		Identity:       claims.Identity,
		Body:           d.Body,
		AttachmentKey:  d.AttachmentKey,
		Visibility:     d.Visibility,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// pollMessages serves GET /conversations/{id}/messages?after=N. A missing
// cursor means the whole history.
func (a *API) pollMessages(w http.ResponseWriter, r *http.Request) {
	claims, id, err := access(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var after int64
	if v := r.URL.Query().Get("after"); v != "" {
		after, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			a.writeError(w, r, appErrors.InvalidArg("after must be an integer"))
			return
		}
	}

	res, err := a.svc.PollSince(r.Context(), id, after, claims.Role)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	_, id, err := operatorAccess(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	messageID, err := pathInt(r, "messageID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.svc.DeleteMessage(r.Context(), id, messageID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
