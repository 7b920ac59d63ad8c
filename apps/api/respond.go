package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as an AppError body. Errors without a code are
// reported as INTERNAL and their details stay in the log.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := appErrors.CodeOf(err)
	body := appErrors.AppError{Code: code, Message: err.Error()}
	if code == appErrors.CodeUnknown || code == appErrors.CodeInternal {
		body = appErrors.AppError{Code: appErrors.CodeInternal, Message: "internal error"}
	}
	status := appErrors.HTTPStatus(body.Code)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	} else {
		a.logger.Debug("request rejected", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return appErrors.InvalidArg("invalid request body")
	}
	return nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, appErrors.InvalidArg(name + " must be an integer")
	}
	return v, nil
}
