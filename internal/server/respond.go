package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/xtxerr/eegstore/internal/errors"
	"github.com/xtxerr/eegstore/internal/logging"
	"github.com/xtxerr/eegstore/internal/wire"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", wire.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError answers with the status mapped from err and a JSON ErrorBody.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	log := logging.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case http.StatusTooManyRequests:
		w.Header().Set("Retry-After", strconv.Itoa(int(s.cfg.RejectWindow.Seconds())))
	}
	writeJSON(w, status, wire.NewErrorFromErr(logging.RequestID(r.Context()), err))
}
