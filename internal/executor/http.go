package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rzbill/txq/internal/classify"
)

const maxResponseBody = 1 << 20

// HTTPOptions configures an HTTP executor.
type HTTPOptions struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
	Client  *http.Client
}

// HTTP posts each payload as JSON to a fixed URL. Non-2xx responses become
// *classify.StatusError so the classifier can route them by code.
type HTTP struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewHTTP validates opts and returns an executor.
func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("executor: url is required")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}
	return &HTTP{url: opts.URL, headers: headers, client: client}, nil
}

func (h *HTTP) Execute(ctx context.Context, payload json.RawMessage) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("executor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("executor: post: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Result{}, fmt.Errorf("executor: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &classify.StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	res := Result{StatusCode: resp.StatusCode, Reference: resp.Header.Get("X-Reference")}
	if json.Valid(body) {
		res.Body = body
	}
	if res.Reference == "" && len(res.Body) > 0 {
		var ref struct {
			Reference string `json:"reference"`
			ID        string `json:"id"`
		}
		if json.Unmarshal(res.Body, &ref) == nil {
			res.Reference = ref.Reference
			if res.Reference == "" {
				res.Reference = ref.ID
			}
		}
	}
	return res, nil
}
