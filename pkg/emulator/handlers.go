package emulator

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"io/ioutil"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	raw "google.golang.org/api/storage/v1"
)

// errResponse is the Google JSON error envelope.
type errResponse struct {
	HTTPStatusCode int     `json:"-"`
	Error          errBody `json:"error"`
}

type errBody struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Errors  []errItem `json:"errors"`
}

type errItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func renderError(w http.ResponseWriter, r *http.Request, code int, reason, msg string) {
	render.Render(w, r, &errResponse{
		HTTPStatusCode: code,
		Error: errBody{
			Code:    code,
			Message: msg,
			Errors:  []errItem{{Domain: "global", Reason: reason, Message: msg}},
		},
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Server) listBuckets(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("project") == "" {
		renderError(w, r, http.StatusBadRequest, "required", "Required parameter: project")
		return
	}
	prefix := r.URL.Query().Get("prefix")

	s.m.RLock()
	defer s.m.RUnlock()
	resp := &raw.Buckets{Kind: "storage#buckets", Items: []*raw.Bucket{}}
	for name, b := range s.buckets {
		if strings.HasPrefix(name, prefix) {
			resp.Items = append(resp.Items, b.meta)
		}
	}

	sort.Slice(resp.Items, func(i, j int) bool { return resp.Items[i].Name < resp.Items[j].Name })
	render.JSON(w, r, resp)
}

func (s *Server) insertBucket(w http.ResponseWriter, r *http.Request) {
	var b raw.Bucket
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		renderError(w, r, http.StatusBadRequest, "parseError", "Parse Error")
		return
	}
	if b.Name == "" {
		renderError(w, r, http.StatusBadRequest, "required", "Required parameter: name")
		return
	}

	s.m.Lock()
	defer s.m.Unlock()
	if _, exists := s.buckets[b.Name]; exists {
		renderError(w, r, http.StatusConflict, "conflict",
			"The requested bucket name is not available.")
		return
	}
	b.Kind = "storage#bucket"
	b.Id = b.Name
	b.TimeCreated = now()
	b.Updated = b.TimeCreated
	b.Metageneration = 1
	if b.Location == "" {
		b.Location = "US"
	}
	if b.StorageClass == "" {
		b.StorageClass = "STANDARD"
	}
	s.buckets[b.Name] = &bucket{meta: &b, objects: make(map[string]*object)}
	s.log.WithField("bucket", b.Name).Debug("created bucket")
	render.JSON(w, r, &b)
}

// lookup returns the bucket named in the route. Callers hold s.m.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*bucket, bool) {
	name := chi.URLParam(r, "bucket")
	b, ok := s.buckets[name]
	if !ok {
		renderError(w, r, http.StatusNotFound, "notFound",
			fmt.Sprintf("The specified bucket %s does not exist.", name))
	}
	return b, ok
}

func (s *Server) getBucket(w http.ResponseWriter, r *http.Request) {
	s.m.RLock()
	defer s.m.RUnlock()
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, b.meta)
}

func (s *Server) patchBucket(w http.ResponseWriter, r *http.Request) {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "parseError", "Parse Error")
		return
	}
	var patch raw.Bucket
	// null label values delete the label
	var labels struct {
		Labels map[string]*string `json:"labels"`
	}
	if json.Unmarshal(body, &patch) != nil || json.Unmarshal(body, &labels) != nil {
		renderError(w, r, http.StatusBadRequest, "parseError", "Parse Error")
		return
	}

	s.m.Lock()
	defer s.m.Unlock()
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	meta := b.meta
	if labels.Labels != nil {
		if meta.Labels == nil {
			meta.Labels = map[string]string{}
		}
		for k, v := range labels.Labels {
			if v == nil {
				delete(meta.Labels, k)
			} else {
				meta.Labels[k] = *v
			}
		}
	}
	if patch.Versioning != nil {
		meta.Versioning = patch.Versioning
	}
	if patch.Website != nil {
		meta.Website = patch.Website
	}
	if patch.Logging != nil {
		meta.Logging = patch.Logging
	}
	if patch.Cors != nil {
		meta.Cors = patch.Cors
	}
	if patch.StorageClass != "" {
		meta.StorageClass = patch.StorageClass
	}
	meta.Metageneration++
	meta.Updated = now()
	render.JSON(w, r, meta)
}

func (s *Server) deleteBucket(w http.ResponseWriter, r *http.Request) {
	s.m.Lock()
	defer s.m.Unlock()
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if len(b.objects) > 0 {
		renderError(w, r, http.StatusConflict, "conflict",
			"The bucket you tried to delete is not empty.")
		return
	}
	delete(s.buckets, b.meta.Name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listObjects(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	delimiter := r.URL.Query().Get("delimiter")

	s.m.RLock()
	defer s.m.RUnlock()
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := &raw.Objects{Kind: "storage#objects", Items: []*raw.Object{}}
	prefixes := map[string]bool{}
	for name, o := range b.objects {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if delimiter != "" {
			rest := name[len(prefix):]
			if i := strings.Index(rest, delimiter); i >= 0 {
				prefixes[prefix+rest[:i+len(delimiter)]] = true
				continue
			}
		}
		resp.Items = append(resp.Items, o.meta)
	}

	for p := range prefixes {
		resp.Prefixes = append(resp.Prefixes, p)
	}
	sort.Strings(resp.Prefixes)
	sort.Slice(resp.Items, func(i, j int) bool { return resp.Items[i].Name < resp.Items[j].Name })
	render.JSON(w, r, resp)
}

// objectName unescapes the object route parameter; names may contain
// escaped slashes.
func objectName(r *http.Request) string {
	name := chi.URLParam(r, "object")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			return unescaped
		}
	}
	return name
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	s.m.RLock()
	b, ok := s.lookup(w, r)
	if !ok {
		s.m.RUnlock()
		return
	}
	name := objectName(r)
	o, ok := b.objects[name]
	s.m.RUnlock()
	if !ok {
		renderError(w, r, http.StatusNotFound, "notFound", "No such object: "+b.meta.Name+"/"+name)
		return
	}

	if r.URL.Query().Get("alt") != "media" {
		render.JSON(w, r, o.meta)
		return
	}
	w.Header().Set("Content-Type", o.meta.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(o.data)))
	w.Header().Set("X-Goog-Generation", strconv.FormatInt(o.meta.Generation, 10))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, bytes.NewReader(o.data))
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request) {
	s.m.Lock()
	defer s.m.Unlock()
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	name := objectName(r)
	if _, ok := b.objects[name]; !ok {
		renderError(w, r, http.StatusNotFound, "notFound", "No such object: "+b.meta.Name+"/"+name)
		return
	}
	delete(b.objects, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadObject(w http.ResponseWriter, r *http.Request) {
	var meta raw.Object
	var data []byte
	var err error

	switch r.URL.Query().Get("uploadType") {
	case "media":
		meta.Name = r.URL.Query().Get("name")
		meta.ContentType = r.Header.Get("Content-Type")
		data, err = ioutil.ReadAll(r.Body)
	case "multipart":
		data, err = readMultipart(r, &meta)
	default:
		renderError(w, r, http.StatusBadRequest, "invalid",
			"Unsupported upload type "+strconv.Quote(r.URL.Query().Get("uploadType")))
		return
	}
	if err != nil {
		renderError(w, r, http.StatusBadRequest, "parseError", err.Error())
		return
	}
	if meta.Name == "" {
		renderError(w, r, http.StatusBadRequest, "required", "Required parameter: name")
		return
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}

	s.m.Lock()
	defer s.m.Unlock()
	b, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.generation++
	meta.Kind = "storage#object"
	meta.Bucket = b.meta.Name
	meta.Id = fmt.Sprintf("%s/%s/%d", b.meta.Name, meta.Name, s.generation)
	meta.Size = uint64(len(data))
	meta.Generation = s.generation
	meta.Metageneration = 1
	meta.TimeCreated = now()
	meta.Updated = meta.TimeCreated
	meta.StorageClass = b.meta.StorageClass
	meta.Md5Hash, meta.Crc32c = checksums(data)

	b.objects[meta.Name] = &object{meta: &meta, data: data}
	s.log.WithField("object", meta.Id).Debug("stored object")
	render.JSON(w, r, &meta)
}

// readMultipart parses a multipart/related upload: JSON metadata followed
// by the media.
func readMultipart(r *http.Request, meta *raw.Object) ([]byte, error) {
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("expected a multipart body, got %s", mediaType)
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	part, err := mr.NextPart()
	if err != nil {
		return nil, err
	}
	if err := json.NewDecoder(part).Decode(meta); err != nil {
		return nil, err
	}

	part, err = mr.NextPart()
	if err != nil {
		return nil, err
	}
	if meta.ContentType == "" {
		meta.ContentType = part.Header.Get("Content-Type")
	}
	return ioutil.ReadAll(part)
}

func checksums(data []byte) (md5Hash, crc string) {
	sum := md5.Sum(data)
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli)))
	return base64.StdEncoding.EncodeToString(sum[:]), base64.StdEncoding.EncodeToString(c[:])
}
