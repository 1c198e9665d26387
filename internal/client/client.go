// Package client holds the HTTP facades for the catalog, identity and order services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/payment-settlement/internal/apperr"
)

const maxBodySize = 1 << 20

// Config configures one service client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type baseClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func newBaseClient(service string, cfg Config) baseClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return baseClient{
		service:    service,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// do sends one request. Transport failures and 5xx responses come back as
// UpstreamUnavailable; any other status is returned to the caller to interpret.
func (c baseClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding %s request: %w", c.service, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("building %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.UpstreamUnavailable, c.service+" request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, apperr.Wrap(apperr.UpstreamUnavailable, "reading "+c.service+" response", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, raw, apperr.Newf(apperr.UpstreamUnavailable, "%s returned HTTP %d", c.service, resp.StatusCode)
	}
	return resp.StatusCode, raw, nil
}

// getJSON decodes a 200 response into out. A 404 reports found=false.
func (c baseClient) getJSON(ctx context.Context, path string, out any) (bool, error) {
	status, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status != http.StatusOK:
		return false, apperr.Newf(apperr.Internal, "%s returned HTTP %d for %s", c.service, status, path)
	}
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return false, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decoding %s response: %w", c.service, err)
	}
	return true, nil
}
