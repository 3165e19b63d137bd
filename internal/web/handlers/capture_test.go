package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/smart-attendance/internal/capture"
)

// fakePipeline is a scriptable CaptureController.
type fakePipeline struct {
	state    capture.State
	startErr error
	lastErr  error
	frame    capture.Frame
	hasFrame bool
}

func (f *fakePipeline) Start(ctx context.Context) (capture.State, error) {
	if f.startErr != nil {
		return capture.StateStopped, f.startErr
	}
	f.state = capture.StateRunning
	return f.state, nil
}

func (f *fakePipeline) Stop() capture.State {
	f.state = capture.StateStopped
	return f.state
}

func (f *fakePipeline) State() capture.State { return f.state }

func (f *fakePipeline) LastErr() error { return f.lastErr }

func (f *fakePipeline) LatestFrame() (capture.Frame, bool) { return f.frame, f.hasFrame }

func TestCaptureStart_OK(t *testing.T) {
	h := NewCaptureHandler(&fakePipeline{state: capture.StateStopped})

	req := httptest.NewRequest("POST", "/api/v1/capture/start", nil)
	recorder := httptest.NewRecorder()
	h.Start(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}

	var resp StatusResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.State != capture.StateRunning {
		t.Errorf("expected running state, got %s", resp.State)
	}
}

func TestCaptureStart_SourceUnavailable(t *testing.T) {
	h := NewCaptureHandler(&fakePipeline{
		startErr: capture.ErrSourceUnavailable,
	})

	req := httptest.NewRequest("POST", "/api/v1/capture/start", nil)
	recorder := httptest.NewRecorder()
	h.Start(recorder, req)

	if recorder.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, recorder.Code)
	}
}

func TestCaptureStart_OtherErrorIs500(t *testing.T) {
	h := NewCaptureHandler(&fakePipeline{startErr: errors.New("roster broken")})

	req := httptest.NewRequest("POST", "/api/v1/capture/start", nil)
	recorder := httptest.NewRecorder()
	h.Start(recorder, req)

	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, recorder.Code)
	}
}

func TestCaptureStop(t *testing.T) {
	h := NewCaptureHandler(&fakePipeline{state: capture.StateRunning})

	req := httptest.NewRequest("POST", "/api/v1/capture/stop", nil)
	recorder := httptest.NewRecorder()
	h.Stop(recorder, req)

	var resp StatusResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.State != capture.StateStopped {
		t.Errorf("expected stopped state, got %s", resp.State)
	}
}

func TestCaptureStatus_ReportsLastError(t *testing.T) {
	h := NewCaptureHandler(&fakePipeline{
		state:   capture.StateStopped,
		lastErr: capture.ErrSourceLost,
	})

	req := httptest.NewRequest("GET", "/api/v1/capture/status", nil)
	recorder := httptest.NewRecorder()
	h.Status(recorder, req)

	var resp StatusResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.State != capture.StateStopped {
		t.Errorf("expected stopped state, got %s", resp.State)
	}
	if resp.LastError == "" {
		t.Error("expected last_error to be reported")
	}
}
