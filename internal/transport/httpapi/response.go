// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hashicorp/raft"
	"github.com/sirupsen/logrus"

	"github.com/antgroup/lineage/internal/catalog"
	"github.com/antgroup/lineage/internal/dogmaerr"
)

const jsonMIME = "application/json"

type errorBody struct {
	Message string `json:"message"`
}

// writeJSON encodes a into w with a 200 status, following
// pkg/serve/httpserver/response.go's JsonEncode.
func writeJSON(w http.ResponseWriter, a any) {
	w.Header().Set("Content-Type", jsonMIME)
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(a); err != nil {
		logrus.Errorf("httpapi: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", jsonMIME)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Message: message})
}

// renderError maps an error surfaced by internal/hub back to an HTTP
// status, the same way pkg/serve/httpserver/response.go's renderError
// switches over the storage layer's own error kinds rather than
// guessing from the message text.
func renderError(w http.ResponseWriter, err error) {
	switch {
	case dogmaerr.IsErrEntryNotFound(err), dogmaerr.IsErrRevisionNotFound(err), catalog.IsErrNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case catalog.IsErrExist(err), dogmaerr.IsErrChangeConflict(err), errors.Is(err, dogmaerr.ErrEntryExists):
		writeError(w, http.StatusConflict, err.Error())
	case catalog.IsErrNamingRule(err), dogmaerr.IsErrInvalidPush(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dogmaerr.ErrReadOnly), errors.Is(err, raft.ErrNotLeader), errors.Is(err, raft.ErrLeadershipLost):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case dogmaerr.IsErrTooLargeRequest(err):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, dogmaerr.ErrTimedOut):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		logrus.Errorf("httpapi: internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
