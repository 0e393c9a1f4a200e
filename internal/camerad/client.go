package camerad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// requestTimeout bounds every relayed controller call.
const requestTimeout = 5 * time.Second

// ErrControllerUnavailable indicates the controller did not answer.
var ErrControllerUnavailable = errors.New("camerad: controller unavailable")

// CameraInfo is one camera as enumerated by the controller.
type CameraInfo struct {
	HardwareID string `json:"hardware_id"`
	Model      string `json:"model"`
	Connected  bool   `json:"connected"`
}

// Response is a verbatim relay of one controller reply.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Client talks to the camera controller's local HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for a controller listening on the local port.
func NewClient(port int) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Health probes the controller's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("camerad: controller unhealthy, status %d", resp.StatusCode)
	}
	return nil
}

// ListCameras asks the controller for its current hardware enumeration.
func (c *Client) ListCameras(ctx context.Context) ([]CameraInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/cameras", nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camerad: listing cameras, status %d", resp.StatusCode)
	}

	var cameras []CameraInfo
	if err := json.Unmarshal(resp.Body, &cameras); err != nil {
		return nil, fmt.Errorf("camerad: decoding camera list: %w", err)
	}
	return cameras, nil
}

// Do relays one request to the controller and returns the reply as-is.
// The path must include the controller-side hardware ID, not the
// upstream camera name.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (Response, error) {
	return c.do(ctx, method, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (Response, error) {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Response{}, fmt.Errorf("camerad: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrControllerUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read side only

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("camerad: reading response: %w", err)
	}

	return Response{StatusCode: resp.StatusCode, Body: data}, nil
}
