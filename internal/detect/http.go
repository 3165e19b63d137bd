package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/kozaktomas/smart-attendance/internal/config"
)

// HTTPDetector calls a local face recognition sidecar over HTTP.
// The sidecar accepts a JPEG and returns bounding boxes plus
// fixed-dimension embeddings for every face it finds.
type HTTPDetector struct {
	url          string
	dim          int
	maxImageSize int
	client       *http.Client
}

// detectResponse is the sidecar's wire format.
type detectResponse struct {
	Faces []struct {
		Box       []int     `json:"box"` // [x1, y1, x2, y2]
		Embedding []float32 `json:"embedding"`
		Score     float64   `json:"score"`
	} `json:"faces"`
}

// NewHTTPDetector creates a detector client from configuration.
func NewHTTPDetector(cfg *config.DetectorConfig) *HTTPDetector {
	return &HTTPDetector{
		url:          cfg.URL,
		dim:          cfg.Dim,
		maxImageSize: cfg.MaxImageSize,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Detect posts the frame to the sidecar and decodes its detections.
// Boxes are reported in the original frame's coordinates even when the
// upload was downscaled.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	bounds := img.Bounds()
	longest := bounds.Dx()
	if bounds.Dy() > longest {
		longest = bounds.Dy()
	}
	scale := 1.0
	if d.maxImageSize > 0 && longest > d.maxImageSize {
		scale = float64(longest) / float64(d.maxImageSize)
	}

	data, err := encodeJPEG(img, d.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("preparing frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url+"/detect", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("detector returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding detector response: %w", err)
	}

	detections := make([]Detection, 0, len(decoded.Faces))
	for i, face := range decoded.Faces {
		if len(face.Box) != 4 {
			return nil, fmt.Errorf("face %d has malformed box %v", i, face.Box)
		}
		if d.dim > 0 && len(face.Embedding) != d.dim {
			return nil, fmt.Errorf("face %d embedding has dim %d, want %d", i, len(face.Embedding), d.dim)
		}

		box := image.Rect(face.Box[0], face.Box[1], face.Box[2], face.Box[3])
		detections = append(detections, Detection{
			Box:      scaleBox(box, scale),
			Encoding: face.Embedding,
			Score:    face.Score,
		})
	}

	return detections, nil
}
