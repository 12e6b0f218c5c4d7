package logging

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ltype "google.golang.org/genproto/googleapis/logging/type"
)

// Severity is the ordered importance of a log entry. The numeric values match
// the Cloud Logging wire values so severities compare naturally.
type Severity int

const (
	Default   Severity = 0   // The log entry has no assigned severity level.
	Debug     Severity = 100 // Debug or trace information.
	Info      Severity = 200 // Routine information, such as ongoing status or performance.
	Notice    Severity = 300 // Normal but significant events, such as start up, shut down, or a configuration change.
	Warning   Severity = 400 // Warning events might cause problems.
	Error     Severity = 500 // Error events are likely to cause problems.
	Critical  Severity = 600 // Critical events cause more severe problems or outages.
	Alert     Severity = 700 // A person must take an action immediately.
	Emergency Severity = 800 // One or more systems are unusable.
)

var severityNames = map[Severity]string{
	Default:   "DEFAULT",
	Debug:     "DEBUG",
	Info:      "INFO",
	Notice:    "NOTICE",
	Warning:   "WARNING",
	Error:     "ERROR",
	Critical:  "CRITICAL",
	Alert:     "ALERT",
	Emergency: "EMERGENCY",
}

// Severities in ascending order.
var Severities = []Severity{Default, Debug, Info, Notice, Warning, Error, Critical, Alert, Emergency}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "Severity(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether s is one of the defined levels.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// ParseSeverity accepts the level names in any case.
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for s, n := range severityNames {
		if n == upper {
			return s, nil
		}
	}
	return Default, errors.Errorf("unknown severity %q", name)
}

func (s Severity) toProto() ltype.LogSeverity {
	return ltype.LogSeverity(s)
}
