package resourcemanager

import (
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	raw "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/grpc/codes"
)

// Lifecycle states of a project.
const (
	StateActive           = "ACTIVE"
	StateDeleteRequested  = "DELETE_REQUESTED"
	StateDeleteInProgress = "DELETE_IN_PROGRESS"
	StateUnspecified      = "LIFECYCLE_STATE_UNSPECIFIED"
)

type Project struct {
	ID      string
	Number  int64
	Name    string
	State   string
	Created time.Time
	Labels  map[string]string
	Parent  Parent
}

// Parent is the organization or folder a project lives in.
type Parent struct {
	// "organization" or "folder"
	Type string
	ID   string
}

func projectFromRaw(p *raw.Project) (*Project, error) {
	if p == nil {
		return &Project{}, nil
	}
	out := &Project{
		ID:     p.ProjectId,
		Number: p.ProjectNumber,
		Name:   p.Name,
		State:  p.LifecycleState,
		Labels: gcloud.CopyLabels(p.Labels),
	}
	if p.Parent != nil {
		out.Parent = Parent{Type: p.Parent.Type, ID: p.Parent.Id}
	}
	created, err := gcloud.ParseTime("Project", "createTime", p.CreateTime)
	if err != nil {
		return nil, err
	}
	out.Created = created
	return out, nil
}

// toRaw leaves out the fields the service assigns.
func (p *Project) toRaw() *raw.Project {
	out := &raw.Project{
		ProjectId: p.ID,
		Name:      p.Name,
		Labels:    gcloud.CopyLabels(p.Labels),
	}
	if p.Parent.ID != "" {
		out.Parent = &raw.ResourceId{Type: p.Parent.Type, Id: p.Parent.ID}
	}
	return out
}

// Operation tracks a long running call such as project creation.
type Operation struct {
	Name string
	Done bool
	// Set when the operation finished unsuccessfully
	Err error
}

func operationFromRaw(op string, o *raw.Operation) *Operation {
	if o == nil {
		return &Operation{}
	}
	out := &Operation{Name: o.Name, Done: o.Done}
	if o.Error != nil {
		out.Err = &apierr.Error{
			Op:      op,
			Status:  codes.Code(o.Error.Code),
			Message: o.Error.Message,
		}
	}
	return out
}
