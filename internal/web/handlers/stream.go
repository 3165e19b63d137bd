package handlers

import (
	"fmt"
	"net/http"
	"time"
)

// streamFrameInterval paces the MJPEG feed; the pipeline publishes
// frames independently and the feed just samples the latest one.
const streamFrameInterval = 100 * time.Millisecond

// StreamHandler serves the annotated camera feed as an MJPEG stream.
type StreamHandler struct {
	pipeline CaptureController
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(pipeline CaptureController) *StreamHandler {
	return &StreamHandler{pipeline: pipeline}
}

// VideoFeed streams annotated frames as multipart/x-mixed-replace until
// the client disconnects. Browsers render this directly in an <img> tag.
func (h *StreamHandler) VideoFeed(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamFrameInterval)
	defer ticker.Stop()

	var lastCaptured time.Time
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			frame, ok := h.pipeline.LatestFrame()
			if !ok || frame.CapturedAt.Equal(lastCaptured) {
				continue
			}
			lastCaptured = frame.CapturedAt

			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
				len(frame.JPEG)); err != nil {
				return
			}
			if _, err := w.Write(frame.JPEG); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
