package storage

import (
	"time"

	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"google.golang.org/api/googleapi"
	raw "google.golang.org/api/storage/v1"
)

type Bucket struct {
	Name         string
	ID           string
	Location     string
	StorageClass string
	Created      time.Time
	Labels       map[string]string
	Versioning   bool
	Website      Website
	Logging      Logging
	CORS         []CORSRule
}

// Website configures static website serving for a bucket.
type Website struct {
	MainPage     string
	NotFoundPage string
}

// Logging sends access logs to another bucket.
type Logging struct {
	Bucket string
	Prefix string
}

type CORSRule struct {
	Origins         []string
	Methods         []string
	ResponseHeaders []string
	MaxAge          time.Duration
}

func bucketFromRaw(b *raw.Bucket) (*Bucket, error) {
	if b == nil {
		return &Bucket{}, nil
	}
	created, err := gcloud.ParseTime("Bucket", "timeCreated", b.TimeCreated)
	if err != nil {
		return nil, err
	}
	out := &Bucket{
		Name:         b.Name,
		ID:           b.Id,
		Location:     b.Location,
		StorageClass: b.StorageClass,
		Created:      created,
		Labels:       gcloud.CopyLabels(b.Labels),
	}
	if b.Versioning != nil {
		out.Versioning = b.Versioning.Enabled
	}
	if b.Website != nil {
		out.Website = Website{MainPage: b.Website.MainPageSuffix, NotFoundPage: b.Website.NotFoundPage}
	}
	if b.Logging != nil {
		out.Logging = Logging{Bucket: b.Logging.LogBucket, Prefix: b.Logging.LogObjectPrefix}
	}
	for _, c := range b.Cors {
		out.CORS = append(out.CORS, CORSRule{
			Origins:         c.Origin,
			Methods:         c.Method,
			ResponseHeaders: c.ResponseHeader,
			MaxAge:          time.Duration(c.MaxAgeSeconds) * time.Second,
		})
	}
	return out, nil
}

func (b *Bucket) toRaw() *raw.Bucket {
	out := &raw.Bucket{
		Name:         b.Name,
		Location:     b.Location,
		StorageClass: b.StorageClass,
		Labels:       gcloud.CopyLabels(b.Labels),
	}
	if b.Versioning {
		out.Versioning = &raw.BucketVersioning{Enabled: true}
	}
	if b.Website != (Website{}) {
		out.Website = &raw.BucketWebsite{MainPageSuffix: b.Website.MainPage, NotFoundPage: b.Website.NotFoundPage}
	}
	if b.Logging != (Logging{}) {
		out.Logging = &raw.BucketLogging{LogBucket: b.Logging.Bucket, LogObjectPrefix: b.Logging.Prefix}
	}
	for _, c := range b.CORS {
		out.Cors = append(out.Cors, &raw.BucketCors{
			Origin:         c.Origins,
			Method:         c.Methods,
			ResponseHeader: c.ResponseHeaders,
			MaxAgeSeconds:  int64(c.MaxAge / time.Second),
		})
	}
	return out
}

// BucketUpdate lists the bucket attributes to change. Nil fields are left
// alone; an empty non-nil Labels removes every label.
type BucketUpdate struct {
	Labels     map[string]string
	Versioning *bool
}

func (u BucketUpdate) toRaw(current map[string]string) *raw.Bucket {
	out := &raw.Bucket{}
	if u.Labels != nil {
		out.Labels = gcloud.CopyLabels(u.Labels)
		// labels missing from the patch are kept by the service
		for k := range current {
			if _, keep := u.Labels[k]; !keep {
				out.NullFields = append(out.NullFields, "Labels."+k)
			}
		}
	}
	if u.Versioning != nil {
		out.Versioning = &raw.BucketVersioning{
			Enabled:         *u.Versioning,
			ForceSendFields: []string{"Enabled"},
		}
	}
	return out
}

type File struct {
	Bucket             string
	Name               string
	Size               int64
	ContentType        string
	MD5                string
	CRC32C             string
	Generation         int64
	Metageneration     int64
	Created            time.Time
	Updated            time.Time
	Metadata           map[string]string
	CacheControl       string
	ContentEncoding    string
	ContentDisposition string
	ContentLanguage    string
}

func fileFromRaw(o *raw.Object) (*File, error) {
	if o == nil {
		return &File{}, nil
	}
	created, err := gcloud.ParseTime("File", "timeCreated", o.TimeCreated)
	if err != nil {
		return nil, err
	}
	updated, err := gcloud.ParseTime("File", "updated", o.Updated)
	if err != nil {
		return nil, err
	}
	return &File{
		Bucket:             o.Bucket,
		Name:               o.Name,
		Size:               int64(o.Size),
		ContentType:        o.ContentType,
		MD5:                o.Md5Hash,
		CRC32C:             o.Crc32c,
		Generation:         o.Generation,
		Metageneration:     o.Metageneration,
		Created:            created,
		Updated:            updated,
		Metadata:           gcloud.CopyLabels(o.Metadata),
		CacheControl:       o.CacheControl,
		ContentEncoding:    o.ContentEncoding,
		ContentDisposition: o.ContentDisposition,
		ContentLanguage:    o.ContentLanguage,
	}, nil
}

// FileOptions are the attributes set on upload.
type FileOptions struct {
	ContentType        string
	Metadata           map[string]string
	CacheControl       string
	ContentEncoding    string
	ContentDisposition string
	ContentLanguage    string
}

func (o FileOptions) toRaw(bucket, name string) *raw.Object {
	return &raw.Object{
		Bucket:             bucket,
		Name:               name,
		ContentType:        o.ContentType,
		Metadata:           gcloud.CopyLabels(o.Metadata),
		CacheControl:       o.CacheControl,
		ContentEncoding:    o.ContentEncoding,
		ContentDisposition: o.ContentDisposition,
		ContentLanguage:    o.ContentLanguage,
	}
}

func (o FileOptions) mediaOptions() []googleapi.MediaOption {
	opts := []googleapi.MediaOption{googleapi.ChunkSize(0)}
	if o.ContentType != "" {
		opts = append(opts, googleapi.ContentType(o.ContentType))
	}
	return opts
}
