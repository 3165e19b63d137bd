// Package camera provides frame sources for the capture pipeline.
// The only production source is an HTTP snapshot camera (an IP camera
// or a webcam sidecar that serves one JPEG per request).
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"
)

// SnapshotSource reads frames from an HTTP endpoint returning one
// image per GET request.
type SnapshotSource struct {
	url    string
	client *http.Client
}

// Open connects to the snapshot endpoint and verifies it by reading a
// single frame, so a missing or busy camera fails at start rather than
// mid-session.
func Open(ctx context.Context, url string, readTimeout time.Duration) (*SnapshotSource, error) {
	if url == "" {
		return nil, errors.New("camera snapshot URL is not configured")
	}

	s := &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: readTimeout},
	}

	if _, err := s.NextFrame(ctx); err != nil {
		return nil, fmt.Errorf("probing camera: %w", err)
	}
	return s, nil
}

// NextFrame fetches and decodes a single frame. The read is bounded by
// the client timeout and the caller's context.
func (s *SnapshotSource) NextFrame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return img, nil
}

// Close releases the source. Idle HTTP connections are dropped so the
// camera endpoint is free for other clients.
func (s *SnapshotSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
