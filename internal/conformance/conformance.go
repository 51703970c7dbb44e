// Package conformance runs named contract checks against a live or mocked
// Hacker News API.
//
// A check passes, fails or skips. Skips are for live-data situations where
// the property cannot be observed (no story with comments in the window,
// say) and are never counted as failures.
package conformance

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
)

// ErrSkip marks a check that could not observe its property.
var ErrSkip = errors.New("skipped")

// Skip returns an error that makes the check skip with reason.
func Skip(reason string) error {
	return fmt.Errorf("%w: %s", ErrSkip, reason)
}

// Tag groups checks for selection.
type Tag string

const (
	TagPositive   Tag = "positive"
	TagNegative   Tag = "negative"
	TagSmoke      Tag = "smoke"
	TagRobustness Tag = "robustness"
	TagFunctional Tag = "functional"
)

// ParseTag validates a tag name.
func ParseTag(s string) (Tag, error) {
	t := Tag(s)
	switch t {
	case TagPositive, TagNegative, TagSmoke, TagRobustness, TagFunctional:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tag %q", s)
	}
}

// Status is the result of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// API is the client surface the checks use. *hnapi.Client implements it.
type API interface {
	List(ctx context.Context, endpoint hnapi.ListEndpoint) (hnapi.IDList, error)
	Item(ctx context.Context, id int64) hnapi.Outcome
	User(ctx context.Context, id string) hnapi.Outcome
	MaxItem(ctx context.Context) (int64, error)
	Updates(ctx context.Context) (*hnapi.Updates, error)
}

// Env is what a check runs against.
type Env struct {
	API  API
	Now  func() time.Time
	Rand *rand.Rand
	Log  logger.Logger
}

// Check is a single named property.
type Check struct {
	Name string
	Tags []Tag
	Run  func(ctx context.Context, env *Env) error
}

func (c Check) hasAnyTag(tags []Tag) bool {
	if len(tags) == 0 {
		return true
	}
	return slices.ContainsFunc(c.Tags, func(t Tag) bool { return slices.Contains(tags, t) })
}

// Result is the outcome of one check.
type Result struct {
	Name     string
	Tags     []Tag
	Status   Status
	Err      error
	Duration time.Duration
}

// Runner executes checks sequentially.
type Runner struct {
	api    API
	checks []Check
	log    logger.Logger
	now    func() time.Time
	seed   uint64
}

// Option configures a Runner.
type Option func(*Runner)

// WithChecks replaces the default check suite.
func WithChecks(checks ...Check) Option {
	return func(r *Runner) { r.checks = checks }
}

// WithLogger sets the logger. Without it Run logs through the logger on
// its context.
func WithLogger(l logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSeed makes random sampling reproducible.
func WithSeed(seed uint64) Option {
	return func(r *Runner) { r.seed = seed }
}

// NewRunner creates a Runner over api with the default checks.
func NewRunner(api API, opts ...Option) *Runner {
	r := &Runner{
		api:    api,
		checks: DefaultChecks(),
		now:    time.Now,
		seed:   rand.Uint64(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Checks returns the configured checks.
func (r *Runner) Checks() []Check { return slices.Clone(r.checks) }

// Run executes every check carrying at least one of tags (all checks when
// tags is empty). Checks not started before ctx ends are skipped.
func (r *Runner) Run(ctx context.Context, tags ...Tag) *Report {
	report := &Report{
		RunID:   uuid.NewString(),
		Started: r.now(),
	}
	log := r.log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	log = log.With(logger.String("run_id", report.RunID))

	env := &Env{
		API:  r.api,
		Now:  r.now,
		Rand: rand.New(rand.NewPCG(r.seed, r.seed^0x9e3779b97f4a7c15)),
		Log:  log,
	}

	for _, check := range r.checks {
		if !check.hasAnyTag(tags) {
			continue
		}
		result := r.runOne(ctx, env, check)
		report.Results = append(report.Results, result)

		fields := []logger.Field{
			logger.String("check", result.Name),
			logger.String("status", string(result.Status)),
			logger.Duration("duration", result.Duration),
		}
		switch result.Status {
		case StatusFail:
			log.Error("Check failed", append(fields, logger.Error(result.Err))...)
		case StatusSkip:
			log.Info("Check skipped", append(fields, logger.Error(result.Err))...)
		default:
			log.Debug("Check passed", fields...)
		}
	}

	report.Finished = r.now()
	return report
}

func (r *Runner) runOne(ctx context.Context, env *Env, check Check) Result {
	res := Result{Name: check.Name, Tags: check.Tags}
	if err := ctx.Err(); err != nil {
		res.Status = StatusSkip
		res.Err = Skip("run canceled")
		return res
	}

	start := time.Now()
	err := check.Run(ctx, env)
	res.Duration = time.Since(start)

	switch {
	case err == nil:
		res.Status = StatusPass
	case errors.Is(err, ErrSkip):
		res.Status = StatusSkip
		res.Err = err
	default:
		res.Status = StatusFail
		res.Err = err
	}
	return res
}
