package gcloud

import (
	"os"
	"time"

	"github.com/gcloudkit/gcloud/pkg/backoff"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
)

const (
	// default search path for config is ./configs/gcloud.* (* can be json, yaml, etc)
	DefaultConfigDir  = "./configs"
	DefaultConfigName = "gcloud"

	// written by "gcloud auth application-default login"
	DefaultCredentials = "~/.config/gcloud/application_default_credentials.json"
)

// Config carries the settings every service client needs.
type Config struct {
	Project string
	// Path to a service account or authorized user JSON key
	Keyfile string
	// API key, only used by translate
	APIKey string
	// Skip authentication entirely (emulators)
	NoAuth bool

	Retries     int
	Backoff     string // "linear" or "exponential"
	BackoffUnit time.Duration
	BackoffMax  time.Duration

	LogLevel string

	// Per-service endpoint overrides, keyed by service name
	Endpoints map[string]string
}

// DefaultConfig matches the defaults NewViper installs.
func DefaultConfig() *Config {
	return &Config{
		Retries:     backoff.DefaultRetries,
		Backoff:     "linear",
		BackoffUnit: backoff.DefaultUnit,
		LogLevel:    "info",
		Endpoints:   map[string]string{},
	}
}

// NewViper builds a private viper context (so as not to conflict with the
// importer's usage). If cfgPath is empty the default search path is used and
// a missing file is not an error.
func NewViper(cfgPath string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault("retries", backoff.DefaultRetries)
	v.SetDefault("backoff", "linear")
	v.SetDefault("backoff-unit", backoff.DefaultUnit)
	v.SetDefault("backoff-max", time.Duration(0))
	v.SetDefault("log-level", "info")
	v.SetDefault("no-auth", false)

	// Order of precedence: ENV, gcloud.yaml
	v.BindEnv("project", "GCLOUD_PROJECT", "GOOGLE_CLOUD_PROJECT")
	v.BindEnv("keyfile", "GCLOUD_KEYFILE", "GOOGLE_APPLICATION_CREDENTIALS")
	v.BindEnv("api-key", "TRANSLATE_KEY", "GOOGLE_CLOUD_KEY")

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "Failed to load config")
		}
		return v, nil
	}

	v.AddConfigPath(DefaultConfigDir)
	v.SetConfigName(DefaultConfigName)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "Failed to load config")
		}
	}
	return v, nil
}

// FromViper reads a Config out of v. Keyfile paths may start with "~/".
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Project:     v.GetString("project"),
		Keyfile:     v.GetString("keyfile"),
		APIKey:      v.GetString("api-key"),
		NoAuth:      v.GetBool("no-auth"),
		Retries:     v.GetInt("retries"),
		Backoff:     v.GetString("backoff"),
		BackoffUnit: v.GetDuration("backoff-unit"),
		BackoffMax:  v.GetDuration("backoff-max"),
		LogLevel:    v.GetString("log-level"),
		Endpoints:   v.GetStringMapString("endpoints"),
	}

	if cfg.Retries < 0 {
		return nil, errors.Errorf("retries must not be negative, got %d", cfg.Retries)
	}
	switch cfg.Backoff {
	case "linear", "exponential":
	default:
		return nil, errors.Errorf("unknown backoff strategy %q", cfg.Backoff)
	}

	keyfile, err := resolveKeyfile(cfg.Keyfile)
	if err != nil {
		return nil, err
	}
	cfg.Keyfile = keyfile

	return cfg, nil
}

func resolveKeyfile(path string) (string, error) {
	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return "", errors.Wrap(err, "error expanding keyfile path")
		}
		return expanded, nil
	}

	fallback, err := homedir.Expand(DefaultCredentials)
	if err != nil {
		// no home directory, rely on the metadata server
		return "", nil
	}
	if _, err := os.Stat(fallback); err != nil {
		return "", nil
	}
	return fallback, nil
}

// Endpoint returns the override for service, if any.
func (c *Config) Endpoint(service string) string {
	if c == nil || c.Endpoints == nil {
		return ""
	}
	return c.Endpoints[service]
}

// ClientOptions translates the config into options for a generated client.
func (c *Config) ClientOptions(service string) []option.ClientOption {
	var opts []option.ClientOption
	if c == nil {
		return opts
	}
	if ep := c.Endpoint(service); ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	switch {
	case c.NoAuth:
		opts = append(opts, option.WithoutAuthentication())
	case service == ServiceTranslate && c.APIKey != "":
		opts = append(opts, option.WithAPIKey(c.APIKey))
	case c.Keyfile != "":
		opts = append(opts, option.WithCredentialsFile(c.Keyfile))
	}
	return opts
}

// NewBackoff builds the retry policy described by the config.
func (c *Config) NewBackoff(opts ...backoff.Option) *backoff.Backoff {
	if c == nil {
		return backoff.New(opts...)
	}
	unit := c.BackoffUnit
	if unit <= 0 {
		unit = backoff.DefaultUnit
	}
	delay := backoff.Linear(unit)
	if c.Backoff == "exponential" {
		delay = backoff.Exponential(unit, c.BackoffMax)
	}
	base := []backoff.Option{backoff.WithRetries(c.Retries), backoff.WithDelay(delay)}
	return backoff.New(append(base, opts...)...)
}
