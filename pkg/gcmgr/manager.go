// Package gcmgr is the entry point for programs that use several services.
// A Manager loads the configuration once and hands out service clients that
// share its logger and retry policy.
package gcmgr

import (
	"context"
	"sync"

	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/bigquery"
	"github.com/gcloudkit/gcloud/pkg/dns"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/gcloudkit/gcloud/pkg/logging"
	"github.com/gcloudkit/gcloud/pkg/pubsub"
	"github.com/gcloudkit/gcloud/pkg/resourcemanager"
	"github.com/gcloudkit/gcloud/pkg/storage"
	"github.com/gcloudkit/gcloud/pkg/translate"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Manager struct {
	Config *gcloud.Config
	Logger gcloud.Logger
	Cfg    *viper.Viper

	backoff *backoff.Backoff

	m         sync.Mutex
	logging   *logging.Client
	storage   *storage.Client
	bigquery  *bigquery.Client
	dns       *dns.Client
	pubsub    *pubsub.Client
	resources *resourcemanager.Client
	translate *translate.Client
}

// NewManager understands these options:
//   config-file: path to the configuration, default ./configs/gcloud.*
//   project: overrides the configured project
//   logger: a gcloud.Logger, default a logrus logger at the configured level
//   registerer: a prometheus.Registerer for retry metrics, default none
func NewManager(userCfg map[string]interface{}) (*Manager, error) {
	mgr := &Manager{}

	cfgPath := ""
	if cfgPathRaw, ok := userCfg["config-file"]; ok {
		path, ok := cfgPathRaw.(string)
		if !ok {
			return nil, errors.New("option 'config-file' must be of type string")
		}
		cfgPath = path
	}
	var err error
	if mgr.Cfg, err = gcloud.NewViper(cfgPath); err != nil {
		return nil, err
	}
	if projectRaw, ok := userCfg["project"]; ok {
		project, ok := projectRaw.(string)
		if !ok {
			return nil, errors.New("option 'project' must be of type string")
		}
		mgr.Cfg.Set("project", project)
	}
	if mgr.Config, err = gcloud.FromViper(mgr.Cfg); err != nil {
		return nil, errors.Wrap(err, "Invalid configuration")
	}

	if loggerRaw, ok := userCfg["logger"]; ok {
		logger, ok := loggerRaw.(gcloud.Logger)
		if !ok {
			return nil, errors.New("option 'logger' must satisfy gcloud.Logger")
		}
		mgr.Logger = logger
	} else {
		logger := logrus.New()
		level, err := logrus.ParseLevel(mgr.Config.LogLevel)
		if err != nil {
			return nil, errors.Wrap(err, "Invalid log-level")
		}
		logger.SetLevel(level)
		mgr.Logger = logger
	}

	opts := []backoff.Option{backoff.WithLogger(mgr.Logger)}
	if regRaw, ok := userCfg["registerer"]; ok {
		reg, ok := regRaw.(prometheus.Registerer)
		if !ok {
			return nil, errors.New("option 'registerer' must satisfy prometheus.Registerer")
		}
		opts = append(opts, backoff.WithMetrics(backoff.NewMetrics(reg)))
	}
	mgr.backoff = mgr.Config.NewBackoff(opts...)

	return mgr, nil
}

func (mgr *Manager) options() []gcloud.Option {
	return []gcloud.Option{gcloud.WithLogger(mgr.Logger), gcloud.WithBackoff(mgr.backoff)}
}

// Destroy closes the clients that hold connections. The manager must not be
// used afterwards.
func (mgr *Manager) Destroy() {
	mgr.m.Lock()
	defer mgr.m.Unlock()
	if mgr.logging != nil {
		if err := mgr.logging.Close(); err != nil {
			mgr.Logger.Warnf("closing logging client: %v", err)
		}
		mgr.logging = nil
	}
}

func (mgr *Manager) Logging(ctx context.Context) (*logging.Client, error) {
	mgr.m.Lock()
	defer mgr.m.Unlock()
	if mgr.logging == nil {
		c, err := logging.New(ctx, mgr.Config, mgr.options()...)
		if err != nil {
			return nil, err
		}
		mgr.logging = c
	}
	return mgr.logging, nil
}

func (mgr *Manager) Storage(ctx context.Context) (*storage.Client, error) {
	mgr.m.Lock()
	defer mgr.m.Unlock()
	if mgr.storage == nil {
		c, err := storage.New(ctx, mgr.Config, mgr.options()...)
		if err != nil {
			return nil, err
		}
		mgr.storage = c
	}
	return mgr.storage, nil
}

func (mgr *Manager) BigQuery(ctx context.Context) (*bigquery.Client, error) {
	mgr.m.Lock()
	defer mgr.m.Unlock()
	if mgr.bigquery == nil {
		c, err := bigquery.New(ctx, mgr.Config, mgr.options()...)
		if err != nil {
			return nil, err
		}
		mgr.bigquery = c
	}
	return mgr.bigquery, nil
}

func (mgr *Manager) DNS(ctx context.Context) (*dns.Client, error) {
	mgr.m.Lock()
	defer mgr.m.Unlock()
	if mgr.dns == nil {
		c, err := dns.New(ctx, mgr.Config, mgr.options()...)
		if err != nil {
			return nil, err
		}
		mgr.dns = c
	}
	return mgr.dns, nil
}

func (mgr *Manager) PubSub(ctx context.Context) (*pubsub.Client, error) {
	mgr.m.Lock()
	defer mgr.m.Unlock()
	if mgr.pubsub == nil {
		c, err := pubsub.New(ctx, mgr.Config, mgr.options()...)
		if err != nil {
			return nil, err
		}
		mgr.pubsub = c
	}
	return mgr.pubsub, nil
}

func (mgr *Manager) ResourceManager(ctx context.Context) (*resourcemanager.Client, error) {
	mgr.m.Lock()
	defer mgr.m.Unlock()
	if mgr.resources == nil {
		c, err := resourcemanager.New(ctx, mgr.Config, mgr.options()...)
		if err != nil {
			return nil, err
		}
		mgr.resources = c
	}
	return mgr.resources, nil
}

func (mgr *Manager) Translate(ctx context.Context) (*translate.Client, error) {
	mgr.m.Lock()
	defer mgr.m.Unlock()
	if mgr.translate == nil {
		c, err := translate.New(ctx, mgr.Config, mgr.options()...)
		if err != nil {
			return nil, err
		}
		mgr.translate = c
	}
	return mgr.translate, nil
}
