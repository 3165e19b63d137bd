package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/kozaktomas/smart-attendance/internal/capture"
)

// CaptureController is the slice of the capture pipeline the web layer
// drives.
type CaptureController interface {
	Start(ctx context.Context) (capture.State, error)
	Stop() capture.State
	State() capture.State
	LastErr() error
	LatestFrame() (capture.Frame, bool)
}

// CaptureHandler exposes start/stop/status control over the capture
// pipeline.
type CaptureHandler struct {
	pipeline CaptureController
}

// NewCaptureHandler creates a new capture handler.
func NewCaptureHandler(pipeline CaptureController) *CaptureHandler {
	return &CaptureHandler{pipeline: pipeline}
}

// StatusResponse describes the pipeline state.
type StatusResponse struct {
	State     capture.State `json:"state"`
	LastError string        `json:"last_error,omitempty"`
}

// Start begins a capture session. Starting an already-running session
// is a no-op and reports the current state.
func (h *CaptureHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := h.pipeline.Start(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, capture.ErrSourceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{State: state})
}

// Stop ends the capture session, blocking until the loop has drained.
func (h *CaptureHandler) Stop(w http.ResponseWriter, r *http.Request) {
	state := h.pipeline.Stop()
	respondJSON(w, http.StatusOK, StatusResponse{State: state})
}

// Status reports the current pipeline state and the last terminal error.
func (h *CaptureHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{State: h.pipeline.State()}
	if err := h.pipeline.LastErr(); err != nil {
		resp.LastError = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}
