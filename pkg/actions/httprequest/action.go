// Package httprequest serves apiCall actions with an outbound HTTP request.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/evofitmeals/evoflow/pkg/models"
)

const defaultTimeoutSeconds = 30

var (
	// ErrHTTPServerError is returned when the server answers with a 5xx status.
	ErrHTTPServerError = errors.New("server error during HTTP request")
	// ErrHTTPClientError is returned when the server answers with a 4xx status.
	ErrHTTPClientError = errors.New("request rejected by server")
)

// Action performs one HTTP request. Its config has already been rendered by
// the engine, so URL, headers and body are final. Retries are left to the
// action's retry policy.
type Action struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration

	client *http.Client
}

// NewAction decodes an apiCall config.
func NewAction(config map[string]any, client *http.Client) (*Action, error) {
	var apiCall models.APICallConfig

	err := models.DecodeConfig(config, &apiCall)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(apiCall.Method)
	if method == "" {
		method = http.MethodGet
	}

	timeout := defaultTimeoutSeconds * time.Second
	if apiCall.TimeoutSeconds > 0 {
		timeout = time.Duration(apiCall.TimeoutSeconds) * time.Second
	}

	headers := apiCall.Headers
	if headers == nil {
		headers = make(map[string]string)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &Action{
		Method:  method,
		URL:     apiCall.URL,
		Headers: headers,
		Body:    apiCall.Body,
		Timeout: timeout,
		client:  client,
	}, nil
}

// Execute sends the request and returns status code, parsed body and headers.
// Error statuses are returned together with the result so the step keeps
// the server's answer.
func (a *Action) Execute(ctx context.Context, _ map[string]any, logger *slog.Logger) (any, error) {
	logger.InfoContext(ctx, "Executing HTTP request", "method", a.Method, "url", a.URL)

	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	req, err := a.buildRequest(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	result, err := a.processResponse(ctx, resp, logger)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return result, fmt.Errorf("%w: status %d", ErrHTTPServerError, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return result, fmt.Errorf("%w: status %d", ErrHTTPClientError, resp.StatusCode)
	default:
		return result, nil
	}
}

func (a *Action) buildRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if a.Body != "" {
		body = strings.NewReader(a.Body)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, a.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if a.Body != "" && json.Valid([]byte(a.Body)) {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range a.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func (a *Action) processResponse(ctx context.Context, resp *http.Response, logger *slog.Logger) (map[string]any, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)

		logger.DebugContext(ctx, "Response is not JSON, returning as string")
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	logger.InfoContext(ctx, "HTTP request completed", "status", resp.StatusCode, "bytes", len(bodyBytes))

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     headers,
	}, nil
}
