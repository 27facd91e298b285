// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lirios/radicle-httpd/internal/identity"
	"github.com/lirios/radicle-httpd/internal/logger"
	"github.com/lirios/radicle-httpd/internal/storage"
)

// ErrorReply is the body of error responses
type ErrorReply struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// HTTPError sends an HTTP error back to the client
func HTTPError(w http.ResponseWriter, code int) {
	EncodeJSONReplyStatus(w, code, ErrorReply{Error: http.StatusText(code), Code: code})
}

// HandleError maps err to a status code and sends it to the client
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		HTTPError(w, http.StatusNotFound)
	case errors.Is(err, identity.ErrInvalidID), errors.Is(err, storage.ErrInvalidRev):
		EncodeJSONReplyStatus(w, http.StatusBadRequest, ErrorReply{Error: err.Error(), Code: http.StatusBadRequest})
	default:
		logger.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		HTTPError(w, http.StatusInternalServerError)
	}
}

// EncodeJSONReply encodes a JSON reply
func EncodeJSONReply(w http.ResponseWriter, r *http.Request, object interface{}) {
	EncodeJSONReplyStatus(w, http.StatusOK, object)
}

// EncodeJSONReplyStatus encodes a JSON reply with the given status code
func EncodeJSONReplyStatus(w http.ResponseWriter, code int, object interface{}) {
	js, err := json.Marshal(object)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(js)
}
