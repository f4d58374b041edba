package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ravin1227/photonix-sub000/internal/models"
)

const apiKeyHeader = "X-API-Key"

// UploadFile is one local file sent in a bulk upload
type UploadFile struct {
	Filename   string
	Content    []byte
	CapturedAt *time.Time
}

// APIClient talks to the photonix server on behalf of one device
type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAPIClient creates a client with a per-call timeout
func NewAPIClient(baseURL, apiKey string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PreCheck asks which of checksums the server already holds for this user
func (c *APIClient) PreCheck(ctx context.Context, checksums []string) (*models.PreCheckResponse, error) {
	body, err := json.Marshal(models.PreCheckRequest{Checksums: checksums})
	if err != nil {
		return nil, err
	}

	var resp models.PreCheckResponse
	if err := c.doJSON(ctx, "pre-check", http.MethodPost, "/api/photos/check_bulk_upload", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BulkUpload sends files in one multipart request. Created, multi-status and
// unprocessable replies all carry per-item results and are returned parsed.
func (c *APIClient) BulkUpload(ctx context.Context, files []UploadFile) (*models.BulkUploadResponse, error) {
	const op = "bulk upload"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, f := range files {
		part, err := mw.CreateFormFile("photos[]", f.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, err
		}
		if f.CapturedAt != nil {
			if err := mw.WriteField(fmt.Sprintf("captured_at[%d]", i), f.CapturedAt.UTC().Format(time.RFC3339)); err != nil {
				return nil, err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/photos/bulk", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, op, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusCreated, http.StatusMultiStatus, http.StatusUnprocessableEntity:
		var out models.BulkUploadResponse
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("%s: %w", op, ErrMalformedResponse)
		}
		return &out, nil
	}
	return nil, statusError(op, res)
}

// TrackDeviceAlbum registers the album and its upload progress
func (c *APIClient) TrackDeviceAlbum(ctx context.Context, req models.TrackDeviceAlbumRequest) (*models.DeviceAlbumResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var resp models.DeviceAlbumResponse
	if err := c.doJSON(ctx, "track device album", http.MethodPost, "/api/device-albums/track", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnableSync pairs a tracked device album with a server album
func (c *APIClient) EnableSync(ctx context.Context, albumRecordID, serverAlbumID, frequency string) error {
	body, err := json.Marshal(models.EnableSyncRequest{ServerAlbumID: serverAlbumID, SyncFrequency: frequency})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, "enable sync", http.MethodPost, "/api/device-albums/"+albumRecordID+"/sync/enable", body, nil)
}

// RecordSync reports a completed sync of syncedCount photos
func (c *APIClient) RecordSync(ctx context.Context, albumRecordID string, syncedCount int) error {
	body, err := json.Marshal(models.RecordSyncRequest{SyncedCount: syncedCount})
	if err != nil {
		return err
	}
	return c.doJSON(ctx, "record sync", http.MethodPost, "/api/device-albums/"+albumRecordID+"/sync/record", body, nil)
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	return req, nil
}

func (c *APIClient) doJSON(ctx context.Context, op, method, path string, body []byte, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(ctx, op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return statusError(op, res)
	}
	if out == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w", op, ErrMalformedResponse)
	}
	return nil
}

func statusError(op string, res *http.Response) error {
	if retryableStatus(res.StatusCode) {
		io.Copy(io.Discard, res.Body)
		return &NetworkError{Op: op, StatusCode: res.StatusCode}
	}
	var body models.ErrorResponse
	json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&body)
	return &StatusError{Op: op, StatusCode: res.StatusCode, Message: body.Error}
}
