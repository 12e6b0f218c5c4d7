package gcloud

import (
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Settings is what a service client is built from: the project it acts on, a
// logger, a retry policy and the options handed to the generated transport.
type Settings struct {
	Project       string
	Logger        Logger
	Backoff       *backoff.Backoff
	ClientOptions []option.ClientOption
}

type Option func(*Settings)

func WithLogger(l Logger) Option {
	return func(s *Settings) { s.Logger = l }
}

func WithBackoff(b *backoff.Backoff) Option {
	return func(s *Settings) { s.Backoff = b }
}

// WithClientOptions appends options for the generated client, e.g. an
// endpoint and HTTP client pointing at a fake service.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *Settings) { s.ClientOptions = append(s.ClientOptions, opts...) }
}

func WithProject(project string) Option {
	return func(s *Settings) { s.Project = project }
}

// NewSettings resolves the settings for service. A nil cfg means defaults.
func NewSettings(cfg *Config, service string, opts ...Option) *Settings {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Settings{
		Project:       cfg.Project,
		ClientOptions: cfg.ClientOptions(service),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Logger == nil {
		s.Logger = logrus.StandardLogger()
	}
	if s.Backoff == nil {
		s.Backoff = cfg.NewBackoff(backoff.WithLogger(s.Logger))
	}
	s.Logger = s.Logger.WithField("module", service)
	return s
}
