package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/config"
)

// ErrFaceDetectionDisabled is returned when no detection service is configured
var ErrFaceDetectionDisabled = errors.New("face detection is disabled")

// BoundingBox is a face rectangle in image pixels
type BoundingBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectedFace is one face reported by the detection service
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  *float64    `json:"confidence"`
}

// FaceDetectionResult is the body of a /detect-faces response
type FaceDetectionResult struct {
	Success bool           `json:"success"`
	Faces   []DetectedFace `json:"faces"`
	Message string         `json:"message"`
}

// FaceDetectionClient calls the external face detection service
type FaceDetectionClient struct {
	baseURL    string
	enabled    bool
	httpClient *http.Client
}

// NewFaceDetectionClient creates a client from cfg
func NewFaceDetectionClient(cfg config.FaceDetection) *FaceDetectionClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &FaceDetectionClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		enabled:    cfg.Enabled && cfg.URL != "",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a detection service is configured
func (c *FaceDetectionClient) Enabled() bool {
	return c.enabled
}

// Detect asks the service to find faces in the image at imagePath
func (c *FaceDetectionClient) Detect(ctx context.Context, imagePath string) (*FaceDetectionResult, error) {
	if !c.enabled {
		return nil, ErrFaceDetectionDisabled
	}

	body, err := json.Marshal(map[string]string{"image_path": imagePath})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect-faces", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face detection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("face detection failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result FaceDetectionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode face detection response: %w", err)
	}
	return &result, nil
}

// Health checks the service's /health endpoint
func (c *FaceDetectionClient) Health(ctx context.Context) error {
	if !c.enabled {
		return ErrFaceDetectionDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("face detection health: status %d", resp.StatusCode)
	}
	return nil
}

// confidenceOr returns the reported confidence or def
func (f DetectedFace) confidenceOr(def float64) float64 {
	if f.Confidence == nil {
		return def
	}
	return *f.Confidence
}

func roundPixel(v float64) int {
	return int(math.Round(v))
}
