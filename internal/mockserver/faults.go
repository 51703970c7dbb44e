package mockserver

import (
	"net/http"
	"sync"
	"time"
)

// Fault makes matching requests misbehave.
type Fault struct {
	// Path is matched exactly against the request path below /v0; "*"
	// matches every path.
	Path string `yaml:"path"`
	// Status is written instead of the normal response when non-zero.
	Status int `yaml:"status"`
	// Body replaces the response body when non-empty. With Status zero it
	// is served as a 200.
	Body string `yaml:"body"`
	// Delay is slept before answering.
	Delay time.Duration `yaml:"delay"`
	// Times limits the fault to the first N matching requests; zero means
	// every request.
	Times int `yaml:"times"`
}

func (f Fault) matches(path string) bool {
	return f.Path == "*" || f.Path == path
}

type faultState struct {
	Fault
	fired int
}

type faultSet struct {
	mu     sync.Mutex
	faults []*faultState
}

func (s *faultSet) add(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, &faultState{Fault: f})
}

func (s *faultSet) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = nil
}

// next returns the first armed fault for path and consumes one use of it.
func (s *faultSet) next(path string) (Fault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.faults {
		if !f.matches(path) {
			continue
		}
		if f.Times > 0 && f.fired >= f.Times {
			continue
		}
		f.fired++
		return f.Fault, true
	}
	return Fault{}, false
}

func (f Fault) status() int {
	if f.Status == 0 {
		return http.StatusOK
	}
	return f.Status
}
