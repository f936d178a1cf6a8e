package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/scangate/gateway/internal/auth"
	"github.com/scangate/gateway/internal/logsink"
)

// remoteLogLine is one entry of a batch submission. Source and, absent a
// timestamp, the arrival time are inherited from the enclosing request.
type remoteLogLine struct {
	Level     string     `json:"level"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp"`
}

// remoteLogRequest accepts either a single log line (source, level, message,
// timestamp all at the top level) or a batch sharing one source
// (source, logs[...]). Logs present means batch shape; absent means single.
type remoteLogRequest struct {
	Source    string          `json:"source"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Timestamp *time.Time      `json:"timestamp"`
	Logs      []remoteLogLine `json:"logs"`
}

func (s *Server) handleRemoteLog(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	var req remoteLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}

	now := time.Now()
	var entries []logsink.Entry
	if len(req.Logs) > 0 {
		entries = make([]logsink.Entry, 0, len(req.Logs))
		for _, line := range req.Logs {
			ts := now
			if line.Timestamp != nil {
				ts = *line.Timestamp
			}
			entries = append(entries, logsink.Entry{Source: req.Source, Level: line.Level, Message: line.Message, Timestamp: ts})
		}
	} else {
		ts := now
		if req.Timestamp != nil {
			ts = *req.Timestamp
		}
		entries = []logsink.Entry{{Source: req.Source, Level: req.Level, Message: req.Message, Timestamp: ts}}
	}

	if err := s.sink.WriteBatch(entries); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write log batch")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
