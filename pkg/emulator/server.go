// Package emulator serves an in-memory imitation of the Cloud Storage JSON API
// for tests and local development. Point a storage client at URL() with
// authentication disabled.
//
// Besides the bucket and object calls the emulator can inject rate limiting:
// RateLimit(n) answers the next n requests with 429 rateLimitExceeded, the
// same error body the real service uses.
package emulator

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	raw "google.golang.org/api/storage/v1"
)

type bucket struct {
	meta    *raw.Bucket
	objects map[string]*object
}

type object struct {
	meta *raw.Object
	data []byte
}

type Server struct {
	m          sync.RWMutex
	configAddr string
	Addr       net.Addr
	server     *http.Server
	log        logrus.FieldLogger

	buckets    map[string]*bucket
	generation int64
	throttle   int
	requests   int

	done chan bool
}

// NewServer listens on addr once started; "127.0.0.1:0" picks a free port.
func NewServer(addr string, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		configAddr: addr,
		log:        log.WithField("module", "emulator"),
		buckets:    make(map[string]*bucket),
		done:       make(chan bool, 1),
	}
}

func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.configAddr)
	if err != nil {
		return errors.Wrap(err, "error opening listener")
	}
	s.Addr = listener.Addr()
	s.log.Infof("listening at %v", s.Addr)

	s.server = &http.Server{Handler: s.Handler()}
	go func() {
		s.server.Serve(listener)
		s.done <- true
	}()
	return nil
}

// URL is the base URL of the running server.
func (s *Server) URL() string {
	return "http://" + s.Addr.String()
}

// Endpoint is the storage API endpoint to configure clients with.
func (s *Server) Endpoint() string {
	return s.URL() + "/storage/v1/"
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) Wait() {
	<-s.done
}

// RateLimit makes the next n requests fail with 429 rateLimitExceeded.
func (s *Server) RateLimit(n int) {
	s.m.Lock()
	defer s.m.Unlock()
	s.throttle = n
}

// Requests is the number of requests served so far, throttled ones included.
func (s *Server) Requests() int {
	s.m.RLock()
	defer s.m.RUnlock()
	return s.requests
}

// Handler routes the storage API. It can be mounted on any server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Route("/storage/v1/b", func(r chi.Router) {
		r.Get("/", s.listBuckets)
		r.Post("/", s.insertBucket)
		r.Route("/{bucket}", func(r chi.Router) {
			r.Get("/", s.getBucket)
			r.Patch("/", s.patchBucket)
			r.Delete("/", s.deleteBucket)
			r.Get("/o", s.listObjects)
			r.Get("/o/{object}", s.getObject)
			r.Delete("/o/{object}", s.deleteObject)
		})
	})
	r.Post("/upload/storage/v1/b/{bucket}/o", s.uploadObject)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, r, http.StatusNotFound, "notFound", "Not Found")
	})
	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.m.Lock()
		s.requests++
		throttled := s.throttle > 0
		if throttled {
			s.throttle--
		}
		s.m.Unlock()

		if throttled {
			s.log.WithField("path", r.URL.Path).Debug("rate limiting request")
			renderError(w, r, http.StatusTooManyRequests, "rateLimitExceeded",
				"The rate of change requests to the bucket is too high.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
