// Package restclient is the authenticated JSON transport shared by the Remote
// Config, FCM and realtime database streaming clients.
package restclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"fbadmin/internal/admin"
)

const contentTypeJSON = "application/json; UTF-8"

// Client sends bearer-authenticated requests to one Google API host
type Client struct {
	HTTP    *http.Client
	Tokens  oauth2.TokenSource
	BaseURL string
	Service admin.ServiceType
	Metrics admin.Metrics
}

// Request describes one call. Path is appended to BaseURL.
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Header    http.Header
	Body      []byte
	// GzipBody compresses Body and sets Content-Encoding: gzip
	GzipBody bool
	// AcceptGzip asks the server for a gzip response
	AcceptGzip bool
}

// Response is a successful (2xx) response with its body fully read and decoded
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ETag returns the ETag response header
func (r *Response) ETag() string {
	return r.Header.Get("ETag")
}

// Do performs the request. Non-2xx responses are returned as *admin.HTTPError
// carrying the decoded body verbatim.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	outcome := admin.OutcomeSuccess
	if err != nil {
		outcome = admin.OutcomeFailure
	}
	if c.Metrics != nil {
		c.Metrics.ObserveRemoteCall(c.Service, req.Operation, outcome, time.Since(start))
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", req.Operation, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := readBody(httpResp)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.Operation, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &admin.HTTPError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// Stream performs the request and hands the open body to the caller, who must
// close it. Non-2xx responses are consumed and returned as *admin.HTTPError.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", req.Operation, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		defer func() { _ = httpResp.Body.Close() }()
		body, _ := readBody(httpResp)
		return nil, &admin.HTTPError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}
	return httpResp.Body, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := strings.TrimSuffix(c.BaseURL, "/") + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload := req.Body
		if req.GzipBody {
			compressed, err := gzipBytes(payload)
			if err != nil {
				return nil, fmt.Errorf("failed to compress request body: %w", err)
			}
			payload = compressed
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", req.Operation, err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Content-Type", contentTypeJSON)
	if req.GzipBody {
		httpReq.Header.Set("Content-Encoding", "gzip")
	}
	if req.AcceptGzip {
		httpReq.Header.Set("Accept-Encoding", "gzip")
	}

	if c.Tokens != nil {
		token, err := c.Tokens.Token()
		if err != nil {
			return nil, err
		}
		token.SetAuthHeader(httpReq)
	}

	return httpReq, nil
}

// PreserveAuthOnRedirect is an http.Client CheckRedirect hook that carries the
// Authorization header across hosts. The database streaming endpoint redirects
// listeners to a shard on another host.
func PreserveAuthOnRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	if auth := via[0].Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// readBody reads the body, gunzipping it when the server says it is gzip.
// Setting Accept-Encoding ourselves disables net/http's transparent decoding.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}
	return io.ReadAll(reader)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
