package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(h http.HandlerFunc) *httptest.Server {
	s := httptest.NewServer(h)
	s.Config.SetKeepAlivesEnabled(false)
	return s
}

func TestNewAPIClient_SendsBearerAndHeaders(t *testing.T) {
	var auth, ua, accept string
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	defer srv.Close()

	c, err := NewAPIClient("secret", time.Second)
	require.NoError(t, err)

	b, err := GetJSON(context.Background(), c, srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(b))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, UserAgent, ua)
	assert.Equal(t, "application/json", accept)
}

func TestNewAPIClient_EmptyToken(t *testing.T) {
	_, err := NewAPIClient("  ", time.Second)
	assert.Error(t, err)
}

func TestNewImageClient_NoCredentials(t *testing.T) {
	var auth, accept string
	srv := newTestServer(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		accept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	resp, err := NewImageClient(0).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, auth, "图片请求不应携带凭证")
	assert.Empty(t, accept)
}

func TestGetJSON_StatusErrorDetail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantDetail  string
	}{
		{
			name:        "json message",
			status:      http.StatusUnauthorized,
			contentType: "application/json; charset=utf-8",
			body:        `{"message":"Bad credentials","documentation_url":"https://docs.test"}`,
			wantDetail:  "Bad credentials",
		},
		{
			name:        "nested json error",
			status:      http.StatusNotFound,
			contentType: "application/json",
			body:        `{"error":{"message":"No collective found"}}`,
			wantDetail:  "No collective found",
		},
		{
			name:        "html gateway page",
			status:      http.StatusBadGateway,
			contentType: "text/html",
			body:        "<html><head><title>502   Bad\n Gateway</title></head><body>oops</body></html>",
			wantDetail:  "502 Bad Gateway",
		},
		{
			name:        "binary body",
			status:      http.StatusInternalServerError,
			contentType: "application/octet-stream",
			body:        "\x00\x01",
			wantDetail:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newTestServer(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			defer srv.Close()

			_, err := GetJSON(context.Background(), NewPublicClient(time.Second), srv.URL)
			require.Error(t, err)

			se, ok := IsStatus(err)
			require.True(t, ok, "期望 *StatusError，实际 %T", err)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantDetail, se.Detail)
			assert.Contains(t, err.Error(), "HTTP ")
		})
	}
}

func TestGetJSON_NilClient(t *testing.T) {
	_, err := GetJSON(context.Background(), nil, "http://example.test")
	assert.Error(t, err)
}
