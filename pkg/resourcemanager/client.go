// Package resourcemanager lists and manages Google Cloud projects.
package resourcemanager

import (
	"context"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/pkg/errors"
	raw "google.golang.org/api/cloudresourcemanager/v1"
)

type Client struct {
	svc     *raw.Service
	log     gcloud.Logger
	backoff *backoff.Backoff
}

// New builds a client. Unlike the other services no default project is
// needed: every call names the project it acts on.
func New(ctx context.Context, cfg *gcloud.Config, opts ...gcloud.Option) (*Client, error) {
	s := gcloud.NewSettings(cfg, gcloud.ServiceResourceManager, opts...)
	svc, err := raw.NewService(ctx, s.ClientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create resource manager service")
	}
	return &Client{
		svc:     svc,
		log:     s.Logger,
		backoff: s.Backoff.For(gcloud.ServiceResourceManager),
	}, nil
}

// Projects lists the projects visible to the caller, optionally narrowed by
// a filter such as "labels.env:prod" or "lifecycleState:ACTIVE".
func (c *Client) Projects(ctx context.Context, filter string) ([]*Project, error) {
	var out []*Project
	token := ""
	for {
		var resp *raw.ListProjectsResponse
		err := apierr.FromAPI("resourcemanager.projects.list", c.backoff.Execute(ctx, func() error {
			call := c.svc.Projects.List().Context(ctx)
			if filter != "" {
				call = call.Filter(filter)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			resp, err = call.Do()
			return err
		}))
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Projects {
			project, err := projectFromRaw(p)
			if err != nil {
				return nil, err
			}
			out = append(out, project)
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

func (c *Client) Project(ctx context.Context, id string) (*Project, error) {
	var resp *raw.Project
	err := apierr.FromAPI("resourcemanager.projects.get", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.Get(id).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	return projectFromRaw(resp)
}

// CreateProject starts creating a project. Poll the returned operation with
// Operation until it is done.
func (c *Client) CreateProject(ctx context.Context, p *Project) (*Operation, error) {
	if p.ID == "" {
		return nil, apierr.Invalidf("resourcemanager.projects.create", "project ID is required")
	}
	var resp *raw.Operation
	err := apierr.FromAPI("resourcemanager.projects.create", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.Create(p.toRaw()).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	c.log.WithField("project", p.ID).Info("creating project")
	return operationFromRaw("resourcemanager.projects.create", resp), nil
}

func (c *Client) Operation(ctx context.Context, name string) (*Operation, error) {
	var resp *raw.Operation
	err := apierr.FromAPI("resourcemanager.operations.get", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Operations.Get(name).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	return operationFromRaw("resourcemanager.operations.get", resp), nil
}

// UpdateProject replaces the name and labels of a project.
func (c *Client) UpdateProject(ctx context.Context, p *Project) (*Project, error) {
	var resp *raw.Project
	err := apierr.FromAPI("resourcemanager.projects.update", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.Update(p.ID, p.toRaw()).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	return projectFromRaw(resp)
}

// DeleteProject marks a project for deletion. It can be restored with
// UndeleteProject until the service removes it for good.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	err := apierr.FromAPI("resourcemanager.projects.delete", c.backoff.Execute(ctx, func() error {
		_, err := c.svc.Projects.Delete(id).Context(ctx).Do()
		return err
	}))
	if err == nil {
		c.log.WithField("project", id).Warn("project marked for deletion")
	}
	return err
}

func (c *Client) UndeleteProject(ctx context.Context, id string) error {
	return apierr.FromAPI("resourcemanager.projects.undelete", c.backoff.Execute(ctx, func() error {
		_, err := c.svc.Projects.Undelete(id, &raw.UndeleteProjectRequest{}).Context(ctx).Do()
		return err
	}))
}

// TestPermissions returns the subset of perms the caller holds on the
// project.
func (c *Client) TestPermissions(ctx context.Context, id string, perms ...string) ([]string, error) {
	req := &raw.TestIamPermissionsRequest{Permissions: perms}
	var resp *raw.TestIamPermissionsResponse
	err := apierr.FromAPI("resourcemanager.projects.testIamPermissions", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Projects.TestIamPermissions(id, req).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	return resp.Permissions, nil
}
