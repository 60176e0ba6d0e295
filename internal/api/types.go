package api

import (
	"scribe/internal/deps"
	"scribe/internal/dispatch"
	"scribe/internal/history"
	"scribe/internal/services/whisper"
)

// SuccessResponse wraps a successful payload.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DependencyStatus reports an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Dispatcher   dispatch.Status       `json:"dispatcher"`
	LoadedModels []whisper.LoadedModel `json:"loaded_models"`
	Dependencies []DependencyStatus    `json:"dependencies"`
	History      *history.Stats        `json:"history,omitempty"`
}

// ConcurrencyRequest is the body of POST /api/queue/concurrency.
type ConcurrencyRequest struct {
	MaxConcurrent int `json:"max_concurrent"`
}

func convertDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}
