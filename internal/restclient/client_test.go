package restclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"fbadmin/internal/admin"
	"fbadmin/internal/testutil"
)

type failingTokens struct{}

func (failingTokens) Token() (*oauth2.Token, error) {
	return nil, &admin.CredentialError{Err: errors.New("expired key")}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *testutil.MockMetricsImpl) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	metrics := testutil.MockMetrics()
	return &Client{
		HTTP:    server.Client(),
		Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		BaseURL: server.URL + "/",
		Service: admin.ServiceTypeRemoteConfig,
		Metrics: metrics,
	}, metrics
}

func gunzip(t *testing.T, r io.Reader) []byte {
	t.Helper()
	gz, err := gzip.NewReader(r)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return data
}

func TestClient_Do_HeadersAndGzip(t *testing.T) {
	client, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/thing", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("validateOnly"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json; UTF-8", r.Header.Get("Content-Type"))
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "etag-1", r.Header.Get("If-Match"))
		assert.Equal(t, `{"a":1}`, string(gunzip(t, r.Body)))

		w.Header().Set("ETag", "etag-2")
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(`{"ok":true}`))
		_ = gz.Close()
	})
	metrics.On("ObserveRemoteCall", admin.ServiceTypeRemoteConfig, "publish", admin.OutcomeSuccess, mock.Anything).Once()

	resp, err := client.Do(context.Background(), Request{
		Operation:  "publish",
		Method:     http.MethodPut,
		Path:       "/v1/thing",
		Query:      url.Values{"validateOnly": {"true"}},
		Header:     http.Header{"If-Match": {"etag-1"}},
		Body:       []byte(`{"a":1}`),
		GzipBody:   true,
		AcceptGzip: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, "etag-2", resp.ETag())
	metrics.AssertExpectations(t)
}

func TestClient_Do_PlainBody(t *testing.T) {
	client, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.Header.Get("Content-Encoding"))
		_, _ = w.Write([]byte(`plain`))
	})
	metrics.AllowAll()

	resp, err := client.Do(context.Background(), Request{Operation: "get", Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_Do_HTTPError(t *testing.T) {
	client, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad template"}}`))
	})
	metrics.On("ObserveRemoteCall", admin.ServiceTypeRemoteConfig, "publish", admin.OutcomeFailure, mock.Anything).Once()

	_, err := client.Do(context.Background(), Request{Operation: "publish", Method: http.MethodPut, Path: "/x", Body: []byte("{}")})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, admin.HTTPStatus(err))
	assert.Equal(t, `{"error":{"message":"bad template"}}`, admin.ErrorBody(err))
	metrics.AssertExpectations(t)
}

func TestClient_Do_GzipErrorBody(t *testing.T) {
	client, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusNotFound)
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(`version not found`))
		_ = gz.Close()
	})
	metrics.AllowAll()

	_, err := client.Do(context.Background(), Request{Operation: "rollback", Method: http.MethodPost, Path: "/x", AcceptGzip: true})
	require.Error(t, err)
	assert.Equal(t, "version not found", admin.ErrorBody(err))
}

func TestClient_Do_TokenFailure(t *testing.T) {
	client, metrics := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected without a token")
	})
	metrics.AllowAll()
	client.Tokens = failingTokens{}

	_, err := client.Do(context.Background(), Request{Operation: "get", Path: "/x"})
	require.Error(t, err)
	assert.True(t, admin.IsCredentialError(err))
}

func TestClient_Stream(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/denied.json" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Permission denied"))
			return
		}
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		_, _ = w.Write([]byte("event: keep-alive\ndata: null\n\n"))
	})

	body, err := client.Stream(context.Background(), Request{
		Operation: "listen",
		Path:      "/posts.json",
		Header:    http.Header{"Accept": {"text/event-stream"}},
	})
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.True(t, bytes.HasPrefix(data, []byte("event: keep-alive")))

	_, err = client.Stream(context.Background(), Request{Operation: "listen", Path: "/denied.json"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, admin.HTTPStatus(err))
	assert.Equal(t, "Permission denied", admin.ErrorBody(err))
}

func TestPreserveAuthOnRedirect(t *testing.T) {
	shard := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("event: keep-alive\ndata: null\n\n"))
	}))
	defer shard.Close()
	// a second listener gives the shard a different host:port than the entry point
	entry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, shard.URL+r.URL.Path, http.StatusTemporaryRedirect)
	}))
	defer entry.Close()

	client := &Client{
		HTTP:    &http.Client{CheckRedirect: PreserveAuthOnRedirect},
		Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}),
		BaseURL: entry.URL,
		Service: admin.ServiceTypeDatabase,
	}
	body, err := client.Stream(context.Background(), Request{Operation: "listen", Path: "/posts.json"})
	require.NoError(t, err)
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keep-alive")
}

func TestPreserveAuthOnRedirect_Limit(t *testing.T) {
	via := make([]*http.Request, 10)
	for i := range via {
		via[i] = httptest.NewRequest(http.MethodGet, "/", nil)
	}
	err := PreserveAuthOnRedirect(httptest.NewRequest(http.MethodGet, "/", nil), via)
	assert.Error(t, err)
}
