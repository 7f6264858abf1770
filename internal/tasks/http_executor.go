package tasks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/retrack-engine/retrack/internal/domain"
)

// HTTPExecutor issues the configured method/headers/body for HTTPTask
// tasks, treating any 4xx/5xx status as failure, grounded on
// bravo1goingdark-mailgrid's webhook.SendNotificationSync.
type HTTPExecutor struct {
	client *http.Client
}

// NewHTTPExecutor builds an HTTPExecutor that sends through client, or
// http.DefaultClient when client is nil.
func NewHTTPExecutor(client *http.Client) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExecutor{client: client}
}

// Execute implements Executor.
func (e *HTTPExecutor) Execute(ctx context.Context, task domain.Task) error {
	if task.Type.Kind != domain.TaskKindHTTP {
		return fmt.Errorf("http executor received task kind %q", task.Type.Kind)
	}
	h := task.Type.HTTP

	method := h.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, bytes.NewReader(h.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	// Drain and discard: the body is logged (truncated) by the caller if
	// it wants to, not retained by the executor itself.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
