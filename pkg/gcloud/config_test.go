package gcloud

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
project: my-project
keyfile: /tmp/key.json
retries: 5
backoff: exponential
backoff-unit: 250ms
backoff-max: 4s
log-level: debug
endpoints:
  storage: http://localhost:9023/storage/v1/
  logging: localhost:9024
`

func writeConfig(t *testing.T, contents string) string {
	dir, err := ioutil.TempDir("", "gcloud-config")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "gcloud.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestConfigFromFile(t *testing.T) {
	v, err := NewViper(writeConfig(t, testConfig))
	require.NoError(t, err)

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "my-project", cfg.Project)
	assert.Equal(t, "/tmp/key.json", cfg.Keyfile)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, "exponential", cfg.Backoff)
	assert.Equal(t, 250*time.Millisecond, cfg.BackoffUnit)
	assert.Equal(t, 4*time.Second, cfg.BackoffMax)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:9023/storage/v1/", cfg.Endpoint(ServiceStorage))
	assert.Equal(t, "localhost:9024", cfg.Endpoint(ServiceLogging))
	assert.Equal(t, "", cfg.Endpoint(ServiceDNS))

	b := cfg.NewBackoff()
	assert.Equal(t, 5, b.Retries)
	assert.Equal(t, 250*time.Millisecond, b.Delay(1))
	assert.Equal(t, time.Second, b.Delay(3))
	assert.Equal(t, 4*time.Second, b.Delay(9))
}

func TestConfigEnvironment(t *testing.T) {
	os.Setenv("GCLOUD_PROJECT", "env-project")
	defer os.Unsetenv("GCLOUD_PROJECT")

	v, err := NewViper(writeConfig(t, "retries: 1\n"))
	require.NoError(t, err)

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "env-project", cfg.Project)
	assert.Equal(t, 1, cfg.Retries)
	assert.Equal(t, "linear", cfg.Backoff)

	b := cfg.NewBackoff()
	assert.Equal(t, 3*time.Second, b.Delay(3))
}

func TestConfigRejectsUnknownBackoff(t *testing.T) {
	v, err := NewViper(writeConfig(t, "backoff: random\n"))
	require.NoError(t, err)

	_, err = FromViper(v)
	assert.Error(t, err)
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := NewViper("/nonexistent/gcloud.yaml")
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.ClientOptions(ServiceStorage))

	cfg.Endpoints[ServiceStorage] = "http://localhost:1/storage/v1/"
	cfg.NoAuth = true
	assert.Len(t, cfg.ClientOptions(ServiceStorage), 2)

	cfg = DefaultConfig()
	cfg.APIKey = "secret"
	assert.Len(t, cfg.ClientOptions(ServiceTranslate), 1)
	assert.Empty(t, cfg.ClientOptions(ServiceDNS))
}

func TestNewSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Project = "p"

	s := NewSettings(cfg, ServiceDNS)
	assert.Equal(t, "p", s.Project)
	assert.NotNil(t, s.Logger)
	assert.Equal(t, 3, s.Backoff.Retries)

	s = NewSettings(nil, ServiceDNS, WithProject("other"))
	assert.Equal(t, "other", s.Project)
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("Bucket", "timeCreated", "2016-03-01T12:30:00.123Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 3, 1, 12, 30, 0, 123000000, time.UTC), ts)
	assert.Equal(t, "2016-03-01T12:30:00.123Z", FormatTime(ts))

	ts, err = ParseTime("Bucket", "timeCreated", "")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
	assert.Equal(t, "", FormatTime(ts))

	_, err = ParseTime("Bucket", "timeCreated", "last tuesday")
	var ce *apierr.ConversionError
	assert.True(t, errors.As(err, &ce))
}

func TestMillis(t *testing.T) {
	ts := Millis(1456835400123)
	assert.Equal(t, time.Date(2016, 3, 1, 12, 30, 0, 123000000, time.UTC), ts)
	assert.Equal(t, int64(1456835400123), ToMillis(ts))
	assert.True(t, Millis(0).IsZero())
	assert.Equal(t, int64(0), ToMillis(time.Time{}))
}

func TestCopyLabels(t *testing.T) {
	assert.Nil(t, CopyLabels(nil))
	assert.Nil(t, CopyLabels(map[string]string{}))

	orig := map[string]string{"env": "production"}
	c := CopyLabels(orig)
	c["env"] = "staging"
	assert.Equal(t, "production", orig["env"])
}
