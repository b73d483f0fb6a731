package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/dev-tams/newsdrop/internal/errutil"
	"github.com/dev-tams/newsdrop/internal/httputil"
)

const webhookTimeout = 10 * time.Second

type webhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhook posts each Event as JSON to url. Configured headers are sent
// with every request and may override Content-Type.
func NewWebhook(url string, headers map[string]string) (Notifier, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("config.url is required")
	}
	return &webhookNotifier{
		url:     url,
		headers: maps.Clone(headers),
		client:  &http.Client{Timeout: webhookTimeout},
	}, nil
}

func (w *webhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", httputil.DefaultUserAgent)
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := httputil.DoWithRetry(ctx, w.client, req, 1)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer errutil.Close(resp.Body, "Failed to close webhook response", "url", w.url)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httputil.StatusError{StatusCode: resp.StatusCode, URL: w.url}
	}
	return nil
}
