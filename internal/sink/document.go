// internal/sink/document.go
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Document publishes readings as document-style writes against an HTTP
// endpoint: one PATCH per reading at <base>/<path> with a JSON field map.
type Document struct {
	baseURL string
	client  *http.Client
}

// NewDocument creates a document sink for the given base URL.
func NewDocument(baseURL string, timeout time.Duration) *Document {
	return &Document{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Set writes a field map to one document path.
func (d *Document) Set(ctx context.Context, path string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("sink: encode fields: %w", err)
	}

	url := d.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sink: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink: set %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink: set %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

// Publish implements Sink.
func (d *Document) Publish(ctx context.Context, r Reading) error {
	path := fmt.Sprintf("devices/%s/latest", r.DeviceID)
	fields := map[string]any{
		"channel":     r.Channel,
		"timestamp":   r.At.UTC().Format(time.RFC3339),
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
	}
	return d.Set(ctx, path, fields)
}

// FromURL returns a document sink for the URL, or the Nop sink when the URL
// is empty.
func FromURL(url string, timeout time.Duration) Sink {
	if strings.TrimSpace(url) == "" {
		return Nop{}
	}
	return NewDocument(url, timeout)
}
