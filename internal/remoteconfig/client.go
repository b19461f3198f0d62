// Package remoteconfig reads, publishes and rolls back Remote Config templates
// through the REST API.
package remoteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"fbadmin/internal/admin"
	"fbadmin/internal/restclient"
)

// DefaultBaseURL is the production Remote Config host
const DefaultBaseURL = "https://firebaseremoteconfig.googleapis.com"

// TemplateResponse is a template document exactly as the server sent it
type TemplateResponse struct {
	Body []byte
	ETag string
}

// ListVersionsOptions pages through the version history
type ListVersionsOptions struct {
	PageSize  int
	PageToken string
}

// VersionsPage is one page of version history
type VersionsPage struct {
	Versions      []Version `json:"versions"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}

// Client talks to the Remote Config REST endpoint of one project
type Client struct {
	rest      *restclient.Client
	projectID string
}

// NewClient creates a client. rest must carry a token source with the
// firebase.remoteconfig scope.
func NewClient(rest *restclient.Client, projectID string) *Client {
	return &Client{rest: rest, projectID: projectID}
}

func (c *Client) path(suffix string) string {
	return "/v1/projects/" + c.projectID + "/remoteConfig" + suffix
}

// GetTemplate fetches the active template and its ETag
func (c *Client) GetTemplate(ctx context.Context) (*TemplateResponse, error) {
	resp, err := c.rest.Do(ctx, restclient.Request{
		Operation:  "get_template",
		Path:       c.path(""),
		AcceptGzip: true,
	})
	if err != nil {
		return nil, err
	}
	return &TemplateResponse{Body: resp.Body, ETag: resp.ETag()}, nil
}

// GetTemplateAtVersion fetches a historical template
func (c *Client) GetTemplateAtVersion(ctx context.Context, version int64) (*TemplateResponse, error) {
	if version <= 0 {
		return nil, fmt.Errorf("%w: version number must be positive", admin.ErrInvalidArgument)
	}
	resp, err := c.rest.Do(ctx, restclient.Request{
		Operation:  "get_template_version",
		Path:       c.path(""),
		Query:      url.Values{"versionNumber": {strconv.FormatInt(version, 10)}},
		AcceptGzip: true,
	})
	if err != nil {
		return nil, err
	}
	return &TemplateResponse{Body: resp.Body, ETag: resp.ETag()}, nil
}

// PublishTemplate replaces the active template with body when etag still
// matches the server. "*" publishes unconditionally. A stale etag yields
// *admin.ConcurrencyConflict.
func (c *Client) PublishTemplate(ctx context.Context, body []byte, etag string) (*TemplateResponse, error) {
	return c.put(ctx, "publish_template", body, etag, nil)
}

// ValidateTemplate runs the server-side checks of a publish without activating
// the template
func (c *Client) ValidateTemplate(ctx context.Context, body []byte, etag string) (*TemplateResponse, error) {
	return c.put(ctx, "validate_template", body, etag, url.Values{"validateOnly": {"true"}})
}

func (c *Client) put(ctx context.Context, operation string, body []byte, etag string, query url.Values) (*TemplateResponse, error) {
	if etag == "" {
		return nil, fmt.Errorf("%w: etag is required", admin.ErrInvalidArgument)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: template body is empty", admin.ErrInvalidArgument)
	}

	resp, err := c.rest.Do(ctx, restclient.Request{
		Operation: operation,
		Method:    http.MethodPut,
		Path:      c.path(""),
		Query:     query,
		Header:    http.Header{"If-Match": {etag}},
		Body:      body,
		GzipBody:  true,
	})
	if err != nil {
		var httpErr *admin.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusPreconditionFailed {
			return nil, &admin.ConcurrencyConflict{ETag: etag, Err: httpErr}
		}
		return nil, err
	}
	return &TemplateResponse{Body: resp.Body, ETag: resp.ETag()}, nil
}

// ListVersions returns one page of version history, newest first
func (c *Client) ListVersions(ctx context.Context, opts ListVersionsOptions) (*VersionsPage, error) {
	query := url.Values{}
	if opts.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.PageToken != "" {
		query.Set("pageToken", opts.PageToken)
	}

	resp, err := c.rest.Do(ctx, restclient.Request{
		Operation:  "list_versions",
		Path:       c.path(":listVersions"),
		Query:      query,
		AcceptGzip: true,
	})
	if err != nil {
		return nil, err
	}

	var page VersionsPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode version list: %w", err)
	}
	return &page, nil
}

// ListAllVersions follows nextPageToken until the history is exhausted
func (c *Client) ListAllVersions(ctx context.Context, pageSize int) ([]Version, error) {
	var (
		versions []Version
		token    string
	)
	for {
		page, err := c.ListVersions(ctx, ListVersionsOptions{PageSize: pageSize, PageToken: token})
		if err != nil {
			return nil, err
		}
		versions = append(versions, page.Versions...)
		if page.NextPageToken == "" {
			return versions, nil
		}
		token = page.NextPageToken
	}
}

// Rollback makes an earlier version active again. The server publishes it as
// a new version and returns the resulting template.
func (c *Client) Rollback(ctx context.Context, version int64) (*TemplateResponse, error) {
	if version <= 0 {
		return nil, fmt.Errorf("%w: version number must be positive", admin.ErrInvalidArgument)
	}
	body, err := json.Marshal(map[string]int64{"version_number": version})
	if err != nil {
		return nil, err
	}

	resp, err := c.rest.Do(ctx, restclient.Request{
		Operation: "rollback",
		Method:    http.MethodPost,
		Path:      c.path(":rollback"),
		Body:      body,
	})
	if err != nil {
		return nil, err
	}
	return &TemplateResponse{Body: resp.Body, ETag: resp.ETag()}, nil
}
