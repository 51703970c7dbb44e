// Package mockserver is a fake Hacker News upstream for offline runs and
// tests. It serves fixture data under /v0 with the same quirks as the real
// service (unknown ids answer a literal null) and can inject faults: error
// statuses, malformed bodies and latency.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
)

// PathPrefix is the API version prefix served by the mock.
const PathPrefix = "/v0"

const (
	faultKey        = "fault"
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
)

var ginModeOnce sync.Once

// Server is the fake upstream.
type Server struct {
	fixtures *Fixtures
	router   *gin.Engine
	log      logger.Logger
	faults   faultSet

	mu   sync.Mutex
	hits map[string]int
}

// New builds a Server over fx. Faults listed in the fixtures are armed.
func New(fx *Fixtures, log logger.Logger) *Server {
	ginModeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		fixtures: fx,
		log:      log,
		hits:     make(map[string]int),
	}
	for _, f := range fx.Faults {
		s.faults.add(f)
	}

	router := gin.New()
	router.Use(recoveryMiddleware(log))
	router.Use(requestIDMiddleware())
	router.Use(loggerMiddleware(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET(PathPrefix+"/*path", s.serve)

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// AddFault arms a fault.
func (s *Server) AddFault(f Fault) { s.faults.add(f) }

// ResetFaults disarms every fault.
func (s *Server) ResetFaults() { s.faults.reset() }

// Hits returns how many requests reached path (below /v0).
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) serve(c *gin.Context) {
	path := c.Param("path")

	s.mu.Lock()
	s.hits[path]++
	s.mu.Unlock()

	if fault, ok := s.faults.next(path); ok {
		c.Set(faultKey, fault)
		if !s.applyFault(c, fault) {
			return
		}
	}

	if raw, ok := s.fixtures.Raw[path]; ok {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(raw))
		return
	}

	s.writeJSON(c, s.resolve(path))
}

// applyFault writes the fault response and reports whether normal handling
// should continue (a delay-only fault).
func (s *Server) applyFault(c *gin.Context, f Fault) bool {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-c.Request.Context().Done():
			c.Abort()
			return false
		}
	}
	if f.Status == 0 && f.Body == "" {
		return true
	}
	c.Data(f.status(), "application/json; charset=utf-8", []byte(f.Body))
	return false
}

// resolve maps a path onto fixture data. Anything unknown is null.
func (s *Server) resolve(path string) any {
	name, ok := strings.CutSuffix(path, ".json")
	if !ok {
		return nil
	}

	switch {
	case name == "/maxitem":
		return s.fixtures.maxItem()
	case name == "/updates":
		if s.fixtures.Updates == nil {
			return UpdatesFixture{Items: []int64{}, Profiles: []string{}}
		}
		return s.fixtures.Updates
	case strings.HasPrefix(name, "/item/"):
		id, err := strconv.ParseInt(strings.TrimPrefix(name, "/item/"), 10, 64)
		if err != nil {
			return nil
		}
		if item, found := s.fixtures.Items[id]; found {
			return item
		}
		return nil
	case strings.HasPrefix(name, "/user/"):
		if user, found := s.fixtures.Users[strings.TrimPrefix(name, "/user/")]; found {
			return user
		}
		return nil
	default:
		if ids, found := s.fixtures.Lists[strings.TrimPrefix(name, "/")]; found {
			if ids == nil {
				return []int64{}
			}
			return ids
		}
		return nil
	}
}

func (s *Server) writeJSON(c *gin.Context, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Run listens on addr until ctx is canceled, then shuts down gracefully.
// When ready is non-nil it receives the bound address once listening.
func (s *Server) Run(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	s.log.Info("Mock upstream listening", logger.String("address", ln.Addr().String()))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
		close(errCh)
	}()

	select {
	case serveErr := <-errCh:
		return serveErr
	case <-ctx.Done():
	}

	s.log.Info("Shutting down mock upstream")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mock shutdown: %w", err)
	}
	return nil
}
