package main

import "net/http"

// typing records a typing heartbeat for the caller's role. It acknowledges
// even when the presence cache is unavailable.
func (a *API) typing(w http.ResponseWriter, r *http.Request) {
	claims, id, err := access(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.svc.SetTyping(r.Context(), id, claims.Role); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
