package api

import (
	"encoding/json"
	"io"
	"net/http"

	"scribe/internal/logging"
)

const maxAdminBody = 4 << 10

// handleQueueConcurrency resizes the dispatcher. Raising the limit admits
// queued requests at once; lowering it lets running jobs finish.
func (s *Server) handleQueueConcurrency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	var req ConcurrencyRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxAdminBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := s.dispatcher.SetMaxConcurrent(req.MaxConcurrent); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("dispatcher resized",
		logging.Int("max_concurrent", req.MaxConcurrent),
	)
	s.writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: s.dispatcher.Status()})
}

// handleQueueResetStats zeroes the processed and failed counters.
func (s *Server) handleQueueResetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	s.dispatcher.ResetStats()
	s.logger.Info("dispatcher stats reset")
	s.writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: s.dispatcher.Status()})
}
