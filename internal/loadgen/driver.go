// Package loadgen drives a weighted request mix against the API with a
// fixed number of simulated users and records Locust-style statistics.
//
// Requests go straight to the wire with no retries so that failures and
// latency are measured as a client would see them.
package loadgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/transport"
)

// Request names as they appear in the stats.
const (
	NameTopStories = "/topstories.json"
	NameSeed       = "/topstories.json (seed)"
	NameItem       = "/item/{id}.json"
)

// Config describes a load run.
type Config struct {
	BaseURL          string
	Users            int
	Duration         time.Duration
	WaitMin          time.Duration
	WaitMax          time.Duration
	TopStoriesWeight int
	ItemWeight       int
	SeedWindow       int
	Timeout          time.Duration
}

// DefaultConfig mirrors the documented load profile.
func DefaultConfig() Config {
	return Config{
		Users:            10,
		Duration:         time.Minute,
		WaitMin:          200 * time.Millisecond,
		WaitMax:          800 * time.Millisecond,
		TopStoriesWeight: 3,
		ItemWeight:       1,
		SeedWindow:       100,
		Timeout:          transport.DefaultTimeout,
	}
}

// Recorder receives one observation per request.
type Recorder interface {
	ObserveRequest(name string, d time.Duration, failed bool)
}

type task struct {
	name   string
	weight int
	run    func(ctx context.Context, u *user)
}

// Driver runs simulated users.
type Driver struct {
	cfg      Config
	baseURL  string
	client   *http.Client
	recorder Recorder
	log      logger.Logger
	seed     uint64
	tasks    []task
	total    int
}

// Option configures a Driver.
type Option func(*Driver)

// WithHTTPClient replaces the pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Driver) { d.client = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithSeed makes task choice, waits and item picks reproducible.
func WithSeed(seed uint64) Option {
	return func(d *Driver) { d.seed = seed }
}

// New validates cfg and creates a Driver.
func New(cfg Config, opts ...Option) (*Driver, error) {
	if cfg.Users <= 0 {
		return nil, errors.New("loadgen: users must be positive")
	}
	if cfg.Duration <= 0 {
		return nil, errors.New("loadgen: duration must be positive")
	}
	if cfg.WaitMax < cfg.WaitMin {
		return nil, fmt.Errorf("loadgen: wait max %s is below wait min %s", cfg.WaitMax, cfg.WaitMin)
	}
	if cfg.TopStoriesWeight < 0 || cfg.ItemWeight < 0 || cfg.TopStoriesWeight+cfg.ItemWeight == 0 {
		return nil, errors.New("loadgen: task weights must be non-negative with a positive sum")
	}
	if cfg.SeedWindow <= 0 {
		cfg.SeedWindow = DefaultConfig().SeedWindow
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = transport.DefaultTimeout
	}

	d := &Driver{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  transport.NewPooledClient(transport.PoolConfig{MaxIdleConnsPerHost: cfg.Users}),
		log:     logger.NewNop(),
		seed:    rand.Uint64(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.tasks = []task{
		{name: "topstories", weight: cfg.TopStoriesWeight, run: d.topStories},
		{name: "item", weight: cfg.ItemWeight, run: d.item},
	}
	d.total = cfg.TopStoriesWeight + cfg.ItemWeight
	return d, nil
}

// user is one simulated client with its own random source.
type user struct {
	id    int
	rng   *rand.Rand
	stats *Stats
}

// Run drives the configured users until the duration elapses or ctx is
// canceled, then returns the collected statistics. The error is non-nil
// only when ctx itself ended the run early.
func (d *Driver) Run(parent context.Context) (*Stats, error) {
	runID := uuid.NewString()
	log := d.log.With(logger.String("run_id", runID))
	log.Info("Load run starting",
		logger.String("base_url", d.baseURL),
		logger.Int("users", d.cfg.Users),
		logger.Duration("duration", d.cfg.Duration),
	)

	ctx, cancel := context.WithTimeout(parent, d.cfg.Duration)
	defer cancel()

	stats := NewStats()
	var wg sync.WaitGroup
	for i := range d.cfg.Users {
		u := &user{
			id:    i,
			rng:   rand.New(rand.NewPCG(d.seed, uint64(i))),
			stats: stats,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.loop(ctx, u)
		}()
	}
	wg.Wait()
	stats.finish()

	agg := stats.Aggregate()
	log.Info("Load run finished",
		logger.Int("requests", agg.Requests),
		logger.Int("failures", agg.Failures),
		logger.Duration("p95", agg.Percentile(0.95)),
	)
	return stats, parent.Err()
}

func (d *Driver) loop(ctx context.Context, u *user) {
	for ctx.Err() == nil {
		d.pick(u.rng).run(ctx, u)
		if !sleep(ctx, d.wait(u.rng)) {
			return
		}
	}
}

// pick chooses a task with probability proportional to its weight.
func (d *Driver) pick(rng *rand.Rand) task {
	n := rng.IntN(d.total)
	for _, t := range d.tasks {
		if n < t.weight {
			return t
		}
		n -= t.weight
	}
	return d.tasks[len(d.tasks)-1]
}

func (d *Driver) wait(rng *rand.Rand) time.Duration {
	span := d.cfg.WaitMax - d.cfg.WaitMin
	if span <= 0 {
		return d.cfg.WaitMin
	}
	return d.cfg.WaitMin + time.Duration(rng.Int64N(int64(span)+1))
}

func (d *Driver) topStories(ctx context.Context, u *user) {
	d.get(ctx, u, NameTopStories, "/topstories.json")
}

// item seeds from the top stories list, picks a random id among the first
// SeedWindow entries and fetches it. A failed or empty seed ends the task.
func (d *Driver) item(ctx context.Context, u *user) {
	body, ok := d.get(ctx, u, NameSeed, "/topstories.json")
	if !ok || !gjson.ValidBytes(body) {
		return
	}
	ids := gjson.ParseBytes(body)
	if !ids.IsArray() {
		return
	}
	window := ids.Array()
	if len(window) == 0 {
		return
	}
	window = window[:min(len(window), d.cfg.SeedWindow)]

	id := window[u.rng.IntN(len(window))].String()
	d.get(ctx, u, NameItem, "/item/"+url.PathEscape(id)+".json")
}

// get issues one GET and records it under name. Transport failures and
// statuses >= 400 count as failures. It reports the body and whether the
// request succeeded.
func (d *Driver) get(ctx context.Context, u *user, name, path string) ([]byte, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	body, size, err := d.do(reqCtx, path)
	elapsed := time.Since(start)

	// Requests cut short by the end of the run are not measured.
	if ctx.Err() != nil {
		return nil, false
	}

	failed := err != nil
	u.stats.Record(http.MethodGet, name, elapsed, size, failed)
	if d.recorder != nil {
		d.recorder.ObserveRequest(name, elapsed, failed)
	}
	if failed {
		d.log.Debug("Load request failed",
			logger.Int("user", u.id),
			logger.String("name", name),
			logger.Error(err),
		)
	}
	return body, !failed
}

func (d *Driver) do(ctx context.Context, path string) ([]byte, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, int64(len(body)), fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return body, int64(len(body)), fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return body, int64(len(body)), nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
