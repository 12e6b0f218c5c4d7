package resourcemanager_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gcloudkit/gcloud/pkg/apierr"
	"github.com/gcloudkit/gcloud/pkg/backoff"
	"github.com/gcloudkit/gcloud/pkg/gcloud"
	"github.com/gcloudkit/gcloud/pkg/resourcemanager"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	raw "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/grpc/codes"
)

type fakeProjects struct {
	m        sync.Mutex
	projects map[string]*raw.Project
	granted  map[string]bool
}

func (f *fakeProjects) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.m.Lock()
			defer f.m.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/v1/projects", f.list)
	r.Post("/v1/projects", f.create)
	r.Get("/v1/operations/{op}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, &raw.Operation{
			Name:  "operations/" + chi.URLParam(r, "op"),
			Done:  true,
			Error: &raw.Status{Code: int64(codes.AlreadyExists), Message: "project ID taken"},
		})
	})
	r.HandleFunc("/v1/projects/{id}", f.project)
	return r
}

func reply(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, code int, msg string) {
	reply(w, code, map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": msg},
	})
}

func (f *fakeProjects) list(w http.ResponseWriter, r *http.Request) {
	// only "lifecycleState:<state>" filters are understood
	state := strings.TrimPrefix(r.URL.Query().Get("filter"), "lifecycleState:")
	var ids []string
	for id, p := range f.projects {
		if state == "" || p.LifecycleState == state {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	resp := &raw.ListProjectsResponse{}
	for _, id := range ids {
		resp.Projects = append(resp.Projects, f.projects[id])
	}
	reply(w, http.StatusOK, resp)
}

func (f *fakeProjects) create(w http.ResponseWriter, r *http.Request) {
	var p raw.Project
	json.NewDecoder(r.Body).Decode(&p)
	p.LifecycleState = resourcemanager.StateActive
	p.ProjectNumber = int64(1000 + len(f.projects))
	p.CreateTime = "2016-03-01T12:30:00Z"
	f.projects[p.ProjectId] = &p
	reply(w, http.StatusOK, &raw.Operation{Name: "operations/cp.1"})
}

func (f *fakeProjects) project(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	id, method := splitMethod(id)
	p, ok := f.projects[id]
	if !ok {
		fail(w, http.StatusForbidden, "The caller does not have permission")
		return
	}

	switch {
	case method == "testIamPermissions":
		var req raw.TestIamPermissionsRequest
		json.NewDecoder(r.Body).Decode(&req)
		resp := &raw.TestIamPermissionsResponse{}
		for _, perm := range req.Permissions {
			if f.granted[perm] {
				resp.Permissions = append(resp.Permissions, perm)
			}
		}
		reply(w, http.StatusOK, resp)
	case method == "undelete":
		p.LifecycleState = resourcemanager.StateActive
		reply(w, http.StatusOK, &raw.Empty{})
	case r.Method == http.MethodGet:
		reply(w, http.StatusOK, p)
	case r.Method == http.MethodPut:
		var upd raw.Project
		json.NewDecoder(r.Body).Decode(&upd)
		p.Name, p.Labels = upd.Name, upd.Labels
		reply(w, http.StatusOK, p)
	case r.Method == http.MethodDelete:
		p.LifecycleState = resourcemanager.StateDeleteRequested
		reply(w, http.StatusOK, &raw.Empty{})
	default:
		fail(w, http.StatusNotImplemented, "not implemented")
	}
}

func splitMethod(s string) (string, string) {
	if i := strings.Index(s, ":"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func newClient(t *testing.T, f *fakeProjects) *resourcemanager.Client {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	cfg := gcloud.DefaultConfig()
	cfg.NoAuth = true
	cfg.Endpoints[gcloud.ServiceResourceManager] = srv.URL + "/"

	noSleep := func(context.Context, time.Duration) error { return nil }
	c, err := resourcemanager.New(context.Background(), cfg,
		gcloud.WithBackoff(backoff.New(backoff.WithSleep(noSleep))))
	require.NoError(t, err)
	return c
}

func TestProjectLifecycle(t *testing.T) {
	f := &fakeProjects{projects: map[string]*raw.Project{}}
	c := newClient(t, f)
	ctx := context.Background()

	op, err := c.CreateProject(ctx, &resourcemanager.Project{
		ID:     "demo-1",
		Name:   "Demo",
		Labels: map[string]string{"env": "test"},
		Parent: resourcemanager.Parent{Type: "folder", ID: "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "operations/cp.1", op.Name)
	assert.False(t, op.Done)

	p, err := c.Project(ctx, "demo-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), p.Number)
	assert.Equal(t, resourcemanager.StateActive, p.State)
	assert.Equal(t, resourcemanager.Parent{Type: "folder", ID: "42"}, p.Parent)
	assert.Equal(t, time.Date(2016, 3, 1, 12, 30, 0, 0, time.UTC), p.Created)

	p.Name = "Renamed"
	p, err = c.UpdateProject(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)

	require.NoError(t, c.DeleteProject(ctx, "demo-1"))
	active, err := c.Projects(ctx, "lifecycleState:ACTIVE")
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, c.UndeleteProject(ctx, "demo-1"))
	active, err = c.Projects(ctx, "lifecycleState:ACTIVE")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "demo-1", active[0].ID)

	_, err = c.Project(ctx, "someone-elses")
	assert.True(t, apierr.IsPermissionDenied(err))

	_, err = c.CreateProject(ctx, &resourcemanager.Project{Name: "no id"})
	assert.True(t, apierr.IsInvalid(err))
}

func TestOperationError(t *testing.T) {
	c := newClient(t, &fakeProjects{projects: map[string]*raw.Project{}})

	op, err := c.Operation(context.Background(), "operations/cp.2")
	require.NoError(t, err)
	assert.True(t, op.Done)
	assert.True(t, apierr.IsAlreadyExists(op.Err))
}

func TestPermissions(t *testing.T) {
	f := &fakeProjects{
		projects: map[string]*raw.Project{"demo": {ProjectId: "demo"}},
		granted:  map[string]bool{"storage.buckets.list": true},
	}
	c := newClient(t, f)

	held, err := c.TestPermissions(context.Background(), "demo", "storage.buckets.list", "storage.buckets.delete")
	require.NoError(t, err)
	assert.Equal(t, []string{"storage.buckets.list"}, held)
}
