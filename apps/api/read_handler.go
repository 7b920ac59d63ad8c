package main

import (
	"net/http"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// markRead resets the caller's unread counter for the conversation.
func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	claims, id, err := access(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.counters.ResetUnread(r.Context(), id, claims.Role); err != nil {
		a.writeError(w, r, appErrors.ErrStorage(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unreadResponse struct {
	Unread int64 `json:"unread"`
}

func (a *API) unread(w http.ResponseWriter, r *http.Request) {
	claims, id, err := access(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	n, err := a.counters.Unread(r.Context(), id, claims.Role)
	if err != nil {
		a.writeError(w, r, appErrors.ErrStorage(err))
		return
	}
	writeJSON(w, http.StatusOK, unreadResponse{Unread: n})
}
