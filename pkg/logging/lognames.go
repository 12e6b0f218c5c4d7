package logging

import (
	"regexp"
	"strings"

	"github.com/gcloudkit/gcloud/pkg/apierr"
)

const maxLogIDLength = 512

var logIDPattern = regexp.MustCompile(`^[A-Za-z0-9/_\-.%]+$`)

// ValidateLogID checks a log ID (the part after "logs/"). IDs may contain
// letters, digits and "/_-.%" and must be shorter than 512 characters.
func ValidateLogID(id string) error {
	const op = "logging.logName"
	switch {
	case id == "":
		return apierr.Invalidf(op, "log ID is empty")
	case len(id) >= maxLogIDLength:
		return apierr.Invalidf(op, "log ID is %d characters long, must be less than %d", len(id), maxLogIDLength)
	case !logIDPattern.MatchString(id):
		return apierr.Invalidf(op, "log ID %q contains invalid characters", id)
	}
	return nil
}

// LogPath qualifies name as "projects/<project>/logs/<id>". Names already in
// that form keep their own project.
func LogPath(project, name string) (string, error) {
	const op = "logging.logName"
	id := name
	if strings.HasPrefix(name, "projects/") {
		parts := strings.SplitN(name, "/", 4)
		if len(parts) != 4 || parts[1] == "" || parts[2] != "logs" {
			return "", apierr.Invalidf(op, "malformed log name %q", name)
		}
		project, id = parts[1], parts[3]
	} else if project == "" {
		return "", apierr.Invalidf(op, "no project to qualify log %q", name)
	}
	if err := ValidateLogID(id); err != nil {
		return "", err
	}
	return "projects/" + project + "/logs/" + id, nil
}
