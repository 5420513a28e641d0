package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"codebattle/internal/common"
)

type httpEngineClient struct {
	url    string
	client *http.Client
}

// NewHTTPEngineClient returns an EngineClient that POSTs each execution unit
// to a sandbox service. The timeout bounds a single test-case round trip and
// should exceed the largest per-case time limit.
func NewHTTPEngineClient(url string, timeout time.Duration) EngineClient {
	return &httpEngineClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *httpEngineClient) Execute(ctx context.Context, req ExecRequest) (ExecResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ExecResult{}, fmt.Errorf("httpEngineClient.Execute: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ExecResult{}, fmt.Errorf("httpEngineClient.Execute: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return ExecResult{}, fmt.Errorf("engine request failed: %v: %w", err, common.ErrEngineUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ExecResult{}, fmt.Errorf("engine returned status %d: %w", resp.StatusCode, common.ErrEngineUnavailable)
	}

	var result ExecResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ExecResult{}, fmt.Errorf("engine response decode failed: %v: %w", err, common.ErrEngineUnavailable)
	}
	return result, nil
}
