// Package bigquery manages datasets and tables and runs queries.
//
// Besides rate limits, calls that fail with backendError are retried: the
// service reports transient internal failures that way.
package bigquery

import (
	"context"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	raw "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
)

type Client struct {
	project string
	svc     *raw.Service
	log     gcloud.Logger
	backoff *backoff.Backoff
}

func New(ctx context.Context, cfg *gcloud.Config, opts ...gcloud.Option) (*Client, error) {
	s := gcloud.NewSettings(cfg, gcloud.ServiceBigQuery, opts...)
	if s.Project == "" {
		return nil, errors.New("bigquery requires a project")
	}
	svc, err := raw.NewService(ctx, s.ClientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create bigquery service")
	}
	return &Client{
		project: s.Project,
		svc:     svc,
		log:     s.Logger,
		backoff: s.Backoff.For(gcloud.ServiceBigQuery, apierr.ReasonBackendError),
	}, nil
}

func (c *Client) Project() string {
	return c.project
}

// do runs call through the backoff and classifies its error.
func (c *Client) do(ctx context.Context, op string, call func() error) error {
	return apierr.FromAPI(op, c.backoff.Execute(ctx, call))
}

func (c *Client) CreateDataset(ctx context.Context, d *Dataset) (*Dataset, error) {
	var resp *raw.Dataset
	err := c.do(ctx, "bigquery.datasets.insert", func() error {
		var err error
		resp, err = c.svc.Datasets.Insert(c.project, d.toRaw(c.project)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.WithField("dataset", d.DatasetID).Info("created dataset")
	return datasetFromRaw(resp), nil
}

func (c *Client) Dataset(ctx context.Context, id string) (*Dataset, error) {
	var resp *raw.Dataset
	err := c.do(ctx, "bigquery.datasets.get", func() error {
		var err error
		resp, err = c.svc.Datasets.Get(c.project, id).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return datasetFromRaw(resp), nil
}

func (c *Client) Datasets(ctx context.Context) ([]*Dataset, error) {
	var out []*Dataset
	token := ""
	for {
		var resp *raw.DatasetList
		err := c.do(ctx, "bigquery.datasets.list", func() error {
			call := c.svc.Datasets.List(c.project).Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, d := range resp.Datasets {
			out = append(out, datasetFromList(d))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

// DeleteDataset deletes a dataset. Unless force is set the dataset must be
// empty.
func (c *Client) DeleteDataset(ctx context.Context, id string, force bool) error {
	return c.do(ctx, "bigquery.datasets.delete", func() error {
		return c.svc.Datasets.Delete(c.project, id).DeleteContents(force).Context(ctx).Do()
	})
}

func (c *Client) CreateTable(ctx context.Context, t *Table) (*Table, error) {
	var resp *raw.Table
	err := c.do(ctx, "bigquery.tables.insert", func() error {
		var err error
		resp, err = c.svc.Tables.Insert(c.project, t.DatasetID, t.toRaw(c.project)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return tableFromRaw(resp), nil
}

func (c *Client) Table(ctx context.Context, dataset, table string) (*Table, error) {
	var resp *raw.Table
	err := c.do(ctx, "bigquery.tables.get", func() error {
		var err error
		resp, err = c.svc.Tables.Get(c.project, dataset, table).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return tableFromRaw(resp), nil
}

func (c *Client) Tables(ctx context.Context, dataset string) ([]*Table, error) {
	var out []*Table
	token := ""
	for {
		var resp *raw.TableList
		err := c.do(ctx, "bigquery.tables.list", func() error {
			call := c.svc.Tables.List(c.project, dataset).Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		for _, t := range resp.Tables {
			out = append(out, tableFromList(t))
		}
		if resp.NextPageToken == "" {
			return out, nil
		}
		token = resp.NextPageToken
	}
}

func (c *Client) DeleteTable(ctx context.Context, dataset, table string) error {
	return c.do(ctx, "bigquery.tables.delete", func() error {
		return c.svc.Tables.Delete(c.project, dataset, table).Context(ctx).Do()
	})
}

type QueryOptions struct {
	Query string
	// Legacy SQL instead of standard SQL
	LegacySQL bool
	// Dataset used for unqualified table names
	DefaultDataset string
	MaxResults     int
	// How long to wait for the query to finish before returning an
	// incomplete result; zero uses the service default of 10s.
	Timeout  time.Duration
	DryRun   bool
	Location string
}

// Query runs a query synchronously. If it does not finish within the timeout
// the result is incomplete; fetch the rows later with QueryResults.
func (c *Client) Query(ctx context.Context, opts QueryOptions) (*QueryData, error) {
	req := &raw.QueryRequest{
		Query:        opts.Query,
		UseLegacySql: googleapi.Bool(opts.LegacySQL),
		MaxResults:   int64(opts.MaxResults),
		TimeoutMs:    int64(opts.Timeout / time.Millisecond),
		DryRun:       opts.DryRun,
		Location:     opts.Location,
		// identifies the request so a retry does not run the query twice
		RequestId: uuid.New().String(),
	}
	if opts.DefaultDataset != "" {
		req.DefaultDataset = &raw.DatasetReference{ProjectId: c.project, DatasetId: opts.DefaultDataset}
	}

	var resp *raw.QueryResponse
	err := c.do(ctx, "bigquery.jobs.query", func() error {
		var err error
		resp, err = c.svc.Jobs.Query(c.project, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return queryDataFromRaw(resp.Schema, resp.Rows, resp.TotalRows, resp.PageToken, resp.JobComplete, resp.JobReference)
}

// QueryJob starts a query job without waiting for it.
func (c *Client) QueryJob(ctx context.Context, opts QueryOptions) (*Job, error) {
	job := &raw.Job{
		JobReference: &raw.JobReference{
			ProjectId: c.project,
			JobId:     "job_" + uuid.New().String(),
			Location:  opts.Location,
		},
		Configuration: &raw.JobConfiguration{
			DryRun: opts.DryRun,
			Query: &raw.JobConfigurationQuery{
				Query:        opts.Query,
				UseLegacySql: googleapi.Bool(opts.LegacySQL),
			},
		},
	}
	if opts.DefaultDataset != "" {
		job.Configuration.Query.DefaultDataset = &raw.DatasetReference{ProjectId: c.project, DatasetId: opts.DefaultDataset}
	}

	var resp *raw.Job
	err := c.do(ctx, "bigquery.jobs.insert", func() error {
		var err error
		resp, err = c.svc.Jobs.Insert(c.project, job).Context(ctx).Do()
		return err
	})
	if err != nil {
		// a retried insert that already went through reports duplicate
		if !apierr.IsAlreadyExists(err) {
			return nil, err
		}
		return c.Job(ctx, job.JobReference.JobId, opts.Location)
	}
	c.log.WithField("job", job.JobReference.JobId).Debug("started query job")
	return jobFromRaw(resp), nil
}

func (c *Client) Job(ctx context.Context, id, location string) (*Job, error) {
	var resp *raw.Job
	err := c.do(ctx, "bigquery.jobs.get", func() error {
		call := c.svc.Jobs.Get(c.project, id).Context(ctx)
		if location != "" {
			call = call.Location(location)
		}
		var err error
		resp, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return jobFromRaw(resp), nil
}

// QueryResults fetches a page of the results of a query job.
func (c *Client) QueryResults(ctx context.Context, job *Job, token string) (*QueryData, error) {
	var resp *raw.GetQueryResultsResponse
	err := c.do(ctx, "bigquery.jobs.getQueryResults", func() error {
		call := c.svc.Jobs.GetQueryResults(c.project, job.JobID).Context(ctx)
		if job.Location != "" {
			call = call.Location(job.Location)
		}
		if token != "" {
			call = call.PageToken(token)
		}
		var err error
		resp, err = call.Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return queryDataFromRaw(resp.Schema, resp.Rows, resp.TotalRows, resp.PageToken, resp.JobComplete, resp.JobReference)
}

type InsertOptions struct {
	// Insert the valid rows even if some are rejected
	SkipInvalid bool
	// Drop values for unknown columns instead of rejecting the row
	IgnoreUnknown bool
}

// Insert streams rows into a table. Each row gets a random insert ID so a
// retried request is deduplicated. Rows the service rejected are reported
// in the returned slice; the error is only set if the request failed.
func (c *Client) Insert(ctx context.Context, dataset, table string, rows []map[string]interface{}, opts InsertOptions) ([]InsertError, error) {
	req := &raw.TableDataInsertAllRequest{
		SkipInvalidRows:     opts.SkipInvalid,
		IgnoreUnknownValues: opts.IgnoreUnknown,
	}
	for _, row := range rows {
		values := make(map[string]raw.JsonValue, len(row))
		for k, v := range row {
			values[k] = v
		}
		req.Rows = append(req.Rows, &raw.TableDataInsertAllRequestRows{
			InsertId: uuid.New().String(),
			Json:     values,
		})
	}

	var resp *raw.TableDataInsertAllResponse
	err := c.do(ctx, "bigquery.tabledata.insertAll", func() error {
		var err error
		resp, err = c.svc.Tabledata.InsertAll(c.project, dataset, table, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return insertErrorsFromRaw(resp.InsertErrors), nil
}
