// Package storage manages Cloud Storage buckets and files through the JSON
// API.
package storage

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	raw "google.golang.org/api/storage/v1"
)

type Client struct {
	project string
	svc     *raw.Service
	log     gcloud.Logger
	backoff *backoff.Backoff
}

func New(ctx context.Context, cfg *gcloud.Config, opts ...gcloud.Option) (*Client, error) {
	s := gcloud.NewSettings(cfg, gcloud.ServiceStorage, opts...)
	svc, err := raw.NewService(ctx, s.ClientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create storage service")
	}
	return &Client{
		project: s.Project,
		svc:     svc,
		log:     s.Logger,
		backoff: s.Backoff.For(gcloud.ServiceStorage),
	}, nil
}

func (c *Client) Project() string {
	return c.project
}

func (c *Client) CreateBucket(ctx context.Context, b *Bucket) (*Bucket, error) {
	if c.project == "" {
		return nil, apierr.Invalidf("storage.buckets.insert", "no project")
	}
	var resp *raw.Bucket
	err := c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Buckets.Insert(c.project, b.toRaw()).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, apierr.FromAPI("storage.buckets.insert", err)
	}
	c.log.WithField("bucket", resp.Name).Info("created bucket")
	return bucketFromRaw(resp)
}

func (c *Client) Bucket(ctx context.Context, name string) (*Bucket, error) {
	var resp *raw.Bucket
	err := c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Buckets.Get(name).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, apierr.FromAPI("storage.buckets.get", err)
	}
	return bucketFromRaw(resp)
}

// Buckets lists the project's buckets whose names start with prefix.
func (c *Client) Buckets(ctx context.Context, prefix string) ([]*Bucket, error) {
	if c.project == "" {
		return nil, apierr.Invalidf("storage.buckets.list", "no project")
	}
	var buckets []*Bucket
	token := ""
	for {
		var resp *raw.Buckets
		err := c.backoff.Execute(ctx, func() error {
			call := c.svc.Buckets.List(c.project).Context(ctx)
			if prefix != "" {
				call = call.Prefix(prefix)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, apierr.FromAPI("storage.buckets.list", err)
		}
		for _, item := range resp.Items {
			b, err := bucketFromRaw(item)
			if err != nil {
				return nil, err
			}
			buckets = append(buckets, b)
		}
		if resp.NextPageToken == "" {
			return buckets, nil
		}
		token = resp.NextPageToken
	}
}

func (c *Client) UpdateBucket(ctx context.Context, name string, u BucketUpdate) (*Bucket, error) {
	var current map[string]string
	if u.Labels != nil {
		b, err := c.Bucket(ctx, name)
		if err != nil {
			return nil, err
		}
		current = b.Labels
	}

	patch := u.toRaw(current)
	var resp *raw.Bucket
	err := c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Buckets.Patch(name, patch).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, apierr.FromAPI("storage.buckets.patch", err)
	}
	return bucketFromRaw(resp)
}

// DeleteBucket deletes an empty bucket.
func (c *Client) DeleteBucket(ctx context.Context, name string) error {
	err := c.backoff.Execute(ctx, func() error {
		return c.svc.Buckets.Delete(name).Context(ctx).Do()
	})
	if err != nil {
		return apierr.FromAPI("storage.buckets.delete", err)
	}
	c.log.WithField("bucket", name).Info("deleted bucket")
	return nil
}

// CreateFile uploads r as bucket/name. The content is buffered so the upload
// can be repeated if it is rate limited.
func (c *Client) CreateFile(ctx context.Context, bucket, name string, r io.Reader, opts FileOptions) (*File, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "error reading upload")
	}

	var resp *raw.Object
	err = c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Objects.Insert(bucket, opts.toRaw(bucket, name)).
			Media(bytes.NewReader(data), opts.mediaOptions()...).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, apierr.FromAPI("storage.objects.insert", err)
	}
	c.log.WithFields(logrus.Fields{
		"bucket": bucket,
		"file":   name,
		"size":   len(data),
	}).Debug("uploaded file")
	return fileFromRaw(resp)
}

func (c *Client) File(ctx context.Context, bucket, name string) (*File, error) {
	var resp *raw.Object
	err := c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Objects.Get(bucket, name).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, apierr.FromAPI("storage.objects.get", err)
	}
	return fileFromRaw(resp)
}

// Files lists the files in bucket whose names start with prefix.
func (c *Client) Files(ctx context.Context, bucket, prefix string) ([]*File, error) {
	var files []*File
	token := ""
	for {
		var resp *raw.Objects
		err := c.backoff.Execute(ctx, func() error {
			call := c.svc.Objects.List(bucket).Context(ctx)
			if prefix != "" {
				call = call.Prefix(prefix)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, apierr.FromAPI("storage.objects.list", err)
		}
		for _, item := range resp.Items {
			f, err := fileFromRaw(item)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
		if resp.NextPageToken == "" {
			return files, nil
		}
		token = resp.NextPageToken
	}
}

// Download copies the content of bucket/name to w. Only the request is
// retried; once the body is streaming a failure is returned as is.
func (c *Client) Download(ctx context.Context, bucket, name string, w io.Writer) (int64, error) {
	var resp *http.Response
	err := c.backoff.Execute(ctx, func() error {
		var err error
		resp, err = c.svc.Objects.Get(bucket, name).Context(ctx).Download()
		return err
	})
	if err != nil {
		return 0, apierr.FromAPI("storage.objects.get", err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errors.Wrapf(err, "error downloading %s/%s", bucket, name)
	}
	return n, nil
}

func (c *Client) DeleteFile(ctx context.Context, bucket, name string) error {
	err := c.backoff.Execute(ctx, func() error {
		return c.svc.Objects.Delete(bucket, name).Context(ctx).Do()
	})
	return apierr.FromAPI("storage.objects.delete", err)
}
