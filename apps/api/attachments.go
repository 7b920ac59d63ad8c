package main

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

// uploadAttachment accepts a multipart form with a single "file" part and
// returns the stored reference. The part's Content-Type is the media type
// checked against the allow-list. The upload can only be attached by the
// same caller in the same conversation.
func (a *API) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	claims, id, err := access(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, a.maxSize+1<<20)
	mr, err := r.MultipartReader()
	if err != nil {
		a.writeError(w, r, appErrors.InvalidArg("multipart form expected"))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			a.writeError(w, r, appErrors.InvalidArg("file part is required"))
			return
		}
		if err != nil {
			a.writeError(w, r, appErrors.InvalidArg("malformed multipart body"))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		att, err := a.svc.Upload(r.Context(), id, claims.Role, claims.Identity,
			part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, att)
		return
	}
}

func (a *API) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	claims, id, err := access(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	messageID, err := pathInt(r, "messageID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	att, rc, err := a.svc.Attachment(r.Context(), id, messageID, claims.Role)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", att.MediaType)
	w.Header().Set("Content-Length", strconv.FormatInt(att.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))
	if _, err := io.Copy(w, rc); err != nil {
		a.logger.Warn("attachment download interrupted", "error", err, "conversation_id", id, "message_id", messageID)
	}
}
