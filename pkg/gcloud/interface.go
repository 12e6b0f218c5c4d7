// Standard interfaces and datatypes shared by the gcloud service packages.
// Terms:
//   "service" : A single Google Cloud API (storage, logging, dns, ...)
//   "record" : A typed domain object (Bucket, Entry, Zone, ...) that a
//              service package converts to and from the service's wire format
//   "connection" : The generated transport a service client issues calls through
package gcloud

import "github.com/sirupsen/logrus"

// Service names. They key endpoint overrides in the configuration and label
// loggers and metrics.
const (
	ServiceBigQuery        = "bigquery"
	ServiceDNS             = "dns"
	ServiceLogging         = "logging"
	ServicePubSub          = "pubsub"
	ServiceResourceManager = "resourcemanager"
	ServiceStorage         = "storage"
	ServiceTranslate       = "translate"
)

// Services lists every service this library wraps.
var Services = []string{
	ServiceBigQuery,
	ServiceDNS,
	ServiceLogging,
	ServicePubSub,
	ServiceResourceManager,
	ServiceStorage,
	ServiceTranslate,
}

// Logger is satisfied by both *logrus.Logger and *logrus.Entry, so callers
// can hand in a pre-configured sub-logger.
type Logger interface {
	logrus.FieldLogger
}
