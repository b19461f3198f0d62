package remoteconfig

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"fbadmin/internal/admin"
)

// ForceETag publishes regardless of the server's current version
const ForceETag = "*"

// Service runs the config commands against the local template file and prints
// results to Out
type Service struct {
	client       *Client
	templatePath string
	pageSize     int
	logger       admin.Logger

	// In answers the force-publish prompt
	In  io.Reader
	Out io.Writer
}

// NewService creates a service bound to a template file
func NewService(client *Client, cfg admin.RemoteConfigConfig, in io.Reader, out io.Writer, logger admin.Logger) *Service {
	return &Service{
		client:       client,
		templatePath: cfg.TemplatePath,
		pageSize:     cfg.VersionsPageSize,
		logger:       logger,
		In:           in,
		Out:          out,
	}
}

// Get downloads the active template (or a given version when version > 0) to
// the template file
func (s *Service) Get(ctx context.Context, version int64) (string, error) {
	var (
		resp *TemplateResponse
		err  error
	)
	if version > 0 {
		resp, err = s.client.GetTemplateAtVersion(ctx, version)
	} else {
		resp, err = s.client.GetTemplate(ctx)
	}
	if err != nil {
		return "", err
	}

	if err := SaveTemplate(s.templatePath, resp.Body); err != nil {
		return "", err
	}
	s.logger.Debug("template saved", "path", s.templatePath, "etag", resp.ETag)
	s.printf("Template retrieved and has been written to %s\n", filepath.Base(s.templatePath))
	s.printf("ETag from server: %s\n", resp.ETag)
	return resp.ETag, nil
}

// Publish uploads the template file. With ForceETag the user must confirm
// first; declining returns admin.ErrPublishCanceled without calling the server.
func (s *Service) Publish(ctx context.Context, etag string) (string, error) {
	if etag == ForceETag && !confirmForcePublish(s.In, s.Out) {
		s.printf("Publish canceled.\n")
		return "", admin.ErrPublishCanceled
	}

	body, err := LoadTemplate(s.templatePath)
	if err != nil {
		return "", err
	}

	s.printf("Publishing template...\n")
	resp, err := s.client.PublishTemplate(ctx, body, etag)
	if err != nil {
		return "", err
	}
	s.logger.Info("template published", "etag", resp.ETag)
	s.printf("Template has been published.\n")
	s.printf("ETag from server: %s\n", resp.ETag)
	return resp.ETag, nil
}

// Validate checks the template file server-side without publishing it
func (s *Service) Validate(ctx context.Context, etag string) error {
	body, err := LoadTemplate(s.templatePath)
	if err != nil {
		return err
	}
	if _, err := s.client.ValidateTemplate(ctx, body, etag); err != nil {
		return err
	}
	s.printf("Template was valid and safe to use\n")
	return nil
}

// VersionsOptions selects which part of the history Versions prints
type VersionsOptions struct {
	// PageToken continues a listing printed earlier
	PageToken string
	// All follows nextPageToken through the whole history
	All bool
}

// Versions prints the version history, newest first. By default it prints the
// single page a listVersions call returns and the token of the next page.
func (s *Service) Versions(ctx context.Context, opts VersionsOptions) ([]Version, error) {
	var (
		versions []Version
		next     string
	)
	if opts.All {
		all, err := s.client.ListAllVersions(ctx, s.pageSize)
		if err != nil {
			return nil, err
		}
		versions = all
	} else {
		page, err := s.client.ListVersions(ctx, ListVersionsOptions{PageSize: s.pageSize, PageToken: opts.PageToken})
		if err != nil {
			return nil, err
		}
		versions, next = page.Versions, page.NextPageToken
	}

	s.printf("Versions:\n")
	for _, v := range versions {
		line := fmt.Sprintf("  %s", v.VersionNumber)
		if updated := v.UpdatedAt(); !updated.IsZero() {
			line += " " + updated.UTC().Format("2006-01-02 15:04:05")
		}
		if v.UpdateUser != nil && v.UpdateUser.Email != "" {
			line += " " + v.UpdateUser.Email
		}
		if v.UpdateOrigin != "" {
			line += " " + v.UpdateOrigin
		}
		if v.UpdateType != "" {
			line += " " + v.UpdateType
		}
		s.printf("%s\n", line)
	}
	if next != "" {
		s.printf("Next page token: %s\n", next)
	}
	return versions, nil
}

// Rollback activates an earlier version and prints the resulting template
func (s *Service) Rollback(ctx context.Context, version int64) (string, error) {
	resp, err := s.client.Rollback(ctx, version)
	if err != nil {
		return "", err
	}

	s.printf("Rolled back to: %d\n", version)
	if pretty, err := PrettyJSON(resp.Body); err == nil {
		s.printf("%s\n", pretty)
	}
	s.printf("ETag from server: %s\n", resp.ETag)
	return resp.ETag, nil
}

// AddCondition adds a condition to the template file
func (s *Service) AddCondition(c Condition) error {
	if c.TagColor == "" {
		c.TagColor = TagColorUnspecified
	}
	if err := EditTemplateFile(s.templatePath, func(t *Template) error {
		return t.AddCondition(c)
	}); err != nil {
		return err
	}
	s.printf("Added condition %s to %s\n", c.Name, filepath.Base(s.templatePath))
	return nil
}

// AddParameterToGroup adds a parameter to a group in the template file
func (s *Service) AddParameterToGroup(group, key string, p Parameter) error {
	if err := EditTemplateFile(s.templatePath, func(t *Template) error {
		return t.AddParameterToGroup(group, key, p)
	}); err != nil {
		return err
	}
	s.printf("Added parameter %s to group %s\n", key, group)
	return nil
}

func (s *Service) printf(format string, args ...interface{}) {
	if s.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(s.Out, format, args...)
}
