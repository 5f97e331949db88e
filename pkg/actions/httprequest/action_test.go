package httprequest_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/evofitmeals/evoflow/pkg/actions/httprequest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		config   map[string]any
		expected *httprequest.Action
		wantErr  bool
	}{
		{
			name:   "defaults",
			config: map[string]any{"url": "https://api.example.com/plans"},
			expected: &httprequest.Action{
				Method:  http.MethodGet,
				URL:     "https://api.example.com/plans",
				Headers: map[string]string{},
				Timeout: 30 * time.Second,
			},
		},
		{
			name: "post with headers body and timeout",
			config: map[string]any{
				"method":          "post",
				"url":             "https://api.example.com/plans",
				"headers":         map[string]any{"Authorization": "Bearer abc"},
				"body":            `{"plan":"keto"}`,
				"timeout_seconds": 5,
			},
			expected: &httprequest.Action{
				Method:  http.MethodPost,
				URL:     "https://api.example.com/plans",
				Headers: map[string]string{"Authorization": "Bearer abc"},
				Body:    `{"plan":"keto"}`,
				Timeout: 5 * time.Second,
			},
		},
		{
			name:    "missing url",
			config:  map[string]any{"method": "GET"},
			wantErr: true,
		},
		{
			name:    "invalid url",
			config:  map[string]any{"url": "not a url"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			action, err := httprequest.NewAction(tt.config, nil)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected.Method, action.Method)
			assert.Equal(t, tt.expected.URL, action.URL)
			assert.Equal(t, tt.expected.Headers, action.Headers)
			assert.Equal(t, tt.expected.Body, action.Body)
			assert.Equal(t, tt.expected.Timeout, action.Timeout)
		})
	}
}

func TestAction_Execute(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/plans", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "keto", body["plan"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p-1"}`))
	}))
	defer server.Close()

	factory := httprequest.NewActionFactory(server.Client())
	assert.Equal(t, "apiCall", factory.ID())

	action, err := factory.Create(map[string]any{
		"method":  "POST",
		"url":     server.URL + "/plans",
		"headers": map[string]any{"Authorization": "Bearer abc"},
		"body":    `{"plan":"keto"}`,
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), map[string]any{}, testLogger())
	require.NoError(t, err)

	response, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, http.StatusCreated, response["status_code"])
	assert.Equal(t, map[string]any{"id": "p-1"}, response["body"])

	headers, ok := response["headers"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "application/json", headers["Content-Type"])
}

func TestAction_Execute_PlainTextResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	}))
	defer server.Close()

	action, err := httprequest.NewAction(map[string]any{"url": server.URL}, server.Client())
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "pong", result.(map[string]any)["body"])
}

func TestAction_Execute_ErrorStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusServiceUnavailable, httprequest.ErrHTTPServerError},
		{http.StatusNotFound, httprequest.ErrHTTPClientError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			action, err := httprequest.NewAction(map[string]any{"url": server.URL}, server.Client())
			require.NoError(t, err)

			result, err := action.Execute(context.Background(), nil, testLogger())
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.status, result.(map[string]any)["status_code"])
		})
	}
}

func TestAction_Execute_ConnectionError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	action, err := httprequest.NewAction(map[string]any{"url": url, "timeout_seconds": 1}, nil)
	require.NoError(t, err)

	_, err = action.Execute(context.Background(), nil, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http request failed")
}
