// Package logging writes and reads Cloud Logging entries over gRPC.
//
// Entries are built as plain Go values (Entry) and converted to the service's
// wire form on write. Every call goes through the client's backoff, so writes
// throttled with RESOURCE_EXHAUSTED are retried.
package logging

import (
	"context"

	"cloud.google.com/go/logging/apiv2/loggingpb"
	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
	gtransport "google.golang.org/api/transport/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	DefaultEndpoint = "logging.googleapis.com:443"
	Scope           = "https://www.googleapis.com/auth/logging.admin"
)

type Client struct {
	project string
	conn    *grpc.ClientConn
	rpc     loggingpb.LoggingServiceV2Client
	log     gcloud.Logger
	backoff *backoff.Backoff
}

// New dials the Logging service. With an endpoint override and no-auth set
// (an emulator) the connection is plaintext.
func New(ctx context.Context, cfg *gcloud.Config, opts ...gcloud.Option) (*Client, error) {
	if cfg == nil {
		cfg = gcloud.DefaultConfig()
	}
	s := gcloud.NewSettings(cfg, gcloud.ServiceLogging, opts...)

	var conn *grpc.ClientConn
	var err error
	if ep := cfg.Endpoint(gcloud.ServiceLogging); ep != "" && cfg.NoAuth {
		conn, err = grpc.NewClient(ep, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOpts := []option.ClientOption{
			option.WithEndpoint(DefaultEndpoint),
			option.WithScopes(Scope),
		}
		conn, err = gtransport.Dial(ctx, append(dialOpts, s.ClientOptions...)...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "Failed to connect to logging service")
	}
	return newClient(conn, s), nil
}

// NewFromConn uses an existing connection, e.g. one to an in-process server.
// Close closes conn.
func NewFromConn(conn *grpc.ClientConn, cfg *gcloud.Config, opts ...gcloud.Option) *Client {
	return newClient(conn, gcloud.NewSettings(cfg, gcloud.ServiceLogging, opts...))
}

func newClient(conn *grpc.ClientConn, s *gcloud.Settings) *Client {
	return &Client{
		project: s.Project,
		conn:    conn,
		rpc:     loggingpb.NewLoggingServiceV2Client(conn),
		log:     s.Logger,
		backoff: s.Backoff.For(gcloud.ServiceLogging),
	}
}

func (c *Client) Project() string {
	return c.project
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// WriteOption sets request-wide defaults for WriteEntries. Entries that set
// the same field themselves take precedence.
type WriteOption func(*loggingpb.WriteLogEntriesRequest)

func WithLogName(name string) WriteOption {
	return func(r *loggingpb.WriteLogEntriesRequest) { r.LogName = name }
}

func WithResource(res Resource) WriteOption {
	return func(r *loggingpb.WriteLogEntriesRequest) {
		if !res.Empty() {
			r.Resource = res.toProto()
		}
	}
}

func WithLabels(labels map[string]string) WriteOption {
	return func(r *loggingpb.WriteLogEntriesRequest) { r.Labels = gcloud.CopyLabels(labels) }
}

// WithPartialSuccess writes the valid entries even if some are rejected.
func WithPartialSuccess() WriteOption {
	return func(r *loggingpb.WriteLogEntriesRequest) { r.PartialSuccess = true }
}

// WriteEntries sends entries in one request. Empty entries are skipped; if
// nothing is left no request is made. Log names are validated and qualified
// against the client's project before anything is sent.
func (c *Client) WriteEntries(ctx context.Context, entries []*Entry, opts ...WriteOption) error {
	req := &loggingpb.WriteLogEntriesRequest{}
	for _, opt := range opts {
		opt(req)
	}
	if req.LogName != "" {
		name, err := LogPath(c.project, req.LogName)
		if err != nil {
			return err
		}
		req.LogName = name
	}

	for _, e := range entries {
		if e == nil || e.Empty() {
			continue
		}
		pb, err := e.ToProto()
		if err != nil {
			return err
		}
		if pb.LogName != "" {
			if pb.LogName, err = LogPath(c.project, pb.LogName); err != nil {
				return err
			}
		} else if req.LogName == "" {
			return apierr.Invalidf("logging.entries.write", "entry has no log name and no default was given")
		}
		if e.Resource.Empty() && req.Resource != nil {
			pb.Resource = req.Resource
		}
		req.Entries = append(req.Entries, pb)
	}
	if len(req.Entries) == 0 {
		c.log.Debug("no entries to write")
		return nil
	}

	err := c.backoff.Execute(ctx, func() error {
		_, err := c.rpc.WriteLogEntries(ctx, req)
		return err
	})
	if err != nil {
		return apierr.FromAPI("logging.entries.write", err)
	}
	c.log.WithField("count", len(req.Entries)).Debug("wrote log entries")
	return nil
}

// EntriesQuery selects entries for Entries. Resources defaults to the client's
// project. Filter uses the Logging query language.
type EntriesQuery struct {
	Resources []string
	Filter    string
	// "timestamp asc" (default) or "timestamp desc"
	OrderBy   string
	PageSize  int
	PageToken string
}

// EntryList is one page of entries. Token is empty on the last page.
type EntryList struct {
	Entries []*Entry
	Token   string
}

func (c *Client) Entries(ctx context.Context, q EntriesQuery) (*EntryList, error) {
	req := &loggingpb.ListLogEntriesRequest{
		ResourceNames: q.Resources,
		Filter:        q.Filter,
		OrderBy:       q.OrderBy,
		PageSize:      int32(q.PageSize),
		PageToken:     q.PageToken,
	}
	if len(req.ResourceNames) == 0 {
		if c.project == "" {
			return nil, apierr.Invalidf("logging.entries.list", "no resource names and no project")
		}
		req.ResourceNames = []string{"projects/" + c.project}
	}

	var resp *loggingpb.ListLogEntriesResponse
	err := c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.rpc.ListLogEntries(ctx, req)
		return err
	})
	if err != nil {
		return nil, apierr.FromAPI("logging.entries.list", err)
	}

	list := &EntryList{Token: resp.GetNextPageToken()}
	for _, pb := range resp.GetEntries() {
		e, err := EntryFromProto(pb)
		if err != nil {
			return nil, err
		}
		list.Entries = append(list.Entries, e)
	}
	return list, nil
}

// Logs lists the names of every log in the project that has entries.
func (c *Client) Logs(ctx context.Context) ([]string, error) {
	if c.project == "" {
		return nil, apierr.Invalidf("logging.logs.list", "no project")
	}
	req := &loggingpb.ListLogsRequest{Parent: "projects/" + c.project}

	var names []string
	for {
		var resp *loggingpb.ListLogsResponse
		err := c.backoff.Execute(ctx, func() error {
			var err error
			resp, err = c.rpc.ListLogs(ctx, req)
			return err
		})
		if err != nil {
			return nil, apierr.FromAPI("logging.logs.list", err)
		}
		names = append(names, resp.GetLogNames()...)
		if resp.GetNextPageToken() == "" {
			return names, nil
		}
		req.PageToken = resp.GetNextPageToken()
	}
}

// DeleteLog deletes a log and all its entries.
func (c *Client) DeleteLog(ctx context.Context, name string) error {
	path, err := LogPath(c.project, name)
	if err != nil {
		return err
	}
	err = c.backoff.Execute(ctx, func() error {
		_, err := c.rpc.DeleteLog(ctx, &loggingpb.DeleteLogRequest{LogName: path})
		return err
	})
	return apierr.FromAPI("logging.logs.delete", err)
}
