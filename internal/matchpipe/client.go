// Package matchpipe talks to the external embedding and matching service.
package matchpipe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client calls the matching service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError represents a matching service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs a matching service client. The logger receives the
// dead-letter records for best-effort notifications.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// NotifyEmbedding asks the matching service to compute an embedding for a
// stored document. Best effort: it runs in the background and failures go to
// the dead-letter log, never to the caller. kind is "found" or "lost".
func (c *Client) NotifyEmbedding(docID, description, kind string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		payload := map[string]string{
			"docId":       docID,
			"description": description,
			"type":        kind,
		}
		if err := c.doJSON(ctx, http.MethodPost, "/generate-embedding", payload, nil); err != nil {
			c.logger.Warn("embedding_dead_letter",
				"doc_id", docID,
				"kind", kind,
				"error", err,
			)
			return
		}
		c.logger.Info("embedding_notified", "doc_id", docID, "kind", kind)
	}()
}

// ProcessPending triggers processing of the staging collection. The request
// carries no body; the service answers with the list of processed records.
// Unlike NotifyEmbedding, failures here surface to the caller.
func (c *Client) ProcessPending(ctx context.Context) ([]json.RawMessage, error) {
	var resp struct {
		Processed []json.RawMessage `json:"processed"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/process-pending-objects", nil, &resp); err != nil {
		return nil, fmt.Errorf("process pending objects: %w", err)
	}
	return resp.Processed, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
