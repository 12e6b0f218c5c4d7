// Package dns manages Cloud DNS zones and their record sets.
//
// Records are never edited in place: every modification is a Change that
// atomically deletes and adds whole record sets.
package dns

import (
	"context"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	raw "google.golang.org/api/dns/v1"
)

type Client struct {
	project string
	svc     *raw.Service
	log     gcloud.Logger
	backoff *backoff.Backoff
}

func New(ctx context.Context, cfg *gcloud.Config, opts ...gcloud.Option) (*Client, error) {
	s := gcloud.NewSettings(cfg, gcloud.ServiceDNS, opts...)
	if s.Project == "" {
		return nil, errors.New("dns requires a project")
	}
	svc, err := raw.NewService(ctx, s.ClientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create dns service")
	}
	return &Client{
		project: s.Project,
		svc:     svc,
		log:     s.Logger,
		backoff: s.Backoff.For(gcloud.ServiceDNS),
	}, nil
}

func (c *Client) CreateZone(ctx context.Context, z *Zone) (*Zone, error) {
	var resp *raw.ManagedZone
	err := apierr.FromAPI("dns.managedZones.create", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.ManagedZones.Create(c.project, z.toRaw()).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"zone": z.Name, "dnsName": resp.DnsName}).Info("created zone")
	return zoneFromRaw(resp)
}

func (c *Client) Zone(ctx context.Context, name string) (*Zone, error) {
	var resp *raw.ManagedZone
	err := apierr.FromAPI("dns.managedZones.get", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.ManagedZones.Get(c.project, name).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	return zoneFromRaw(resp)
}

func (c *Client) Zones(ctx context.Context) ([]*Zone, error) {
	var out []*Zone
	token := ""
	for {
		var resp *raw.ManagedZonesListResponse
		err := apierr.FromAPI("dns.managedZones.list", c.backoff.Execute(ctx, func() error {
			call := c.svc.ManagedZones.List(c.project).Context(ctx)
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
		for _, z := range resp.ManagedZones {
			zone, err := zoneFromRaw(z)
			if err != nil {
				return nil, err
			}
			out = append(out, zone)
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

// DeleteZone deletes a zone. The zone may only hold its SOA and NS records.
func (c *Client) DeleteZone(ctx context.Context, name string) error {
	return apierr.FromAPI("dns.managedZones.delete", c.backoff.Execute(ctx, func() error {
		return c.svc.ManagedZones.Delete(c.project, name).Context(ctx).Do()
	}))
}

// Records lists the record sets of a zone. A non-empty name (fully
// qualified) and type narrow the listing.
func (c *Client) Records(ctx context.Context, zone, name, typ string) ([]*Record, error) {
	var out []*Record
	token := ""
	for {
		var resp *raw.ResourceRecordSetsListResponse
		err := apierr.FromAPI("dns.resourceRecordSets.list", c.backoff.Execute(ctx, func() error {
			call := c.svc.ResourceRecordSets.List(c.project, zone).Context(ctx)
			if name != "" {
				call = call.Name(name)
			}
			if typ != "" {
				call = call.Type(typ)
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
		out = append(out, recordsFromRaw(resp.Rrsets)...)
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

// Change submits additions and deletions as one change. Deletions must match
// the existing record sets exactly.
func (c *Client) Change(ctx context.Context, zone string, additions, deletions []*Record) (*Change, error) {
	if len(additions) == 0 && len(deletions) == 0 {
		return nil, apierr.Invalidf("dns.changes.create", "change to zone %s is empty", zone)
	}
	req := &raw.Change{
		Additions: recordsToRaw(additions),
		Deletions: recordsToRaw(deletions),
	}

	var resp *raw.Change
	err := apierr.FromAPI("dns.changes.create", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Changes.Create(c.project, zone, req).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"zone":      zone,
		"change":    resp.Id,
		"additions": len(additions),
		"deletions": len(deletions),
	}).Info("submitted change")
	return changeFromRaw(resp)
}

func (c *Client) Changes(ctx context.Context, zone string) ([]*Change, error) {
	var out []*Change
	token := ""
	for {
		var resp *raw.ChangesListResponse
		err := apierr.FromAPI("dns.changes.list", c.backoff.Execute(ctx, func() error {
			call := c.svc.Changes.List(c.project, zone).Context(ctx)
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
		for _, ch := range resp.Changes {
			change, err := changeFromRaw(ch)
			if err != nil {
				return nil, err
			}
			out = append(out, change)
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

func (c *Client) ChangeStatus(ctx context.Context, zone, id string) (*Change, error) {
	var resp *raw.Change
	err := apierr.FromAPI("dns.changes.get", c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Changes.Get(c.project, zone, id).Context(ctx).Do()
		return err
	}))
	if err != nil {
		return nil, err
	}
	return changeFromRaw(resp)
}
