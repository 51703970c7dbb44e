// Package probe fetches many items in parallel with a bounded worker count.
// Every id gets its own Outcome; a failed fetch never cancels the others.
package probe

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
)

const defaultWorkers = 4

// ItemFetcher fetches one item.
type ItemFetcher interface {
	Item(ctx context.Context, id int64) hnapi.Outcome
}

// Result is the outcome of probing one id.
type Result struct {
	ID       int64
	Outcome  hnapi.Outcome
	Duration time.Duration
}

// Summary counts results by outcome.
type Summary struct {
	Found  int
	Absent int
	Failed int
}

// Summarize counts results by outcome.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Outcome.Kind() {
		case hnapi.OutcomeFound:
			s.Found++
		case hnapi.OutcomeAbsent:
			s.Absent++
		default:
			s.Failed++
		}
	}
	return s
}

// Prober runs item fetches through a bounded pool.
type Prober struct {
	fetcher ItemFetcher
	workers int
	limiter *rate.Limiter
	log     logger.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithWorkers bounds the number of in-flight fetches.
func WithWorkers(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithRate paces fetch starts to rps per second. Zero or negative disables pacing.
func WithRate(rps float64, burst int) Option {
	return func(p *Prober) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger. Without it Probe logs through the logger on
// its context.
func WithLogger(l logger.Logger) Option {
	return func(p *Prober) { p.log = l }
}

// New creates a Prober over f. The fetcher must be safe for concurrent use;
// *hnapi.Client is, since it and its transport keep no per-call state.
func New(f ItemFetcher, opts ...Option) *Prober {
	p := &Prober{fetcher: f, workers: defaultWorkers}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe fetches every id and returns results in input order. The returned
// error is only ever the caller's context error; per-id failures live in
// each Result.
func (p *Prober) Probe(ctx context.Context, ids []int64) ([]Result, error) {
	results := make([]Result, len(ids))
	log := p.log
	if log == nil {
		log = logger.FromContext(ctx)
	}

	// A plain Group: siblings keep running when one fetch fails.
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, id := range ids {
		g.Go(func() error {
			results[i] = p.probeOne(ctx, log, id)
			return nil
		})
	}
	_ = g.Wait()

	s := Summarize(results)
	log.Info("Probe finished",
		logger.Int("ids", len(ids)),
		logger.Int("found", s.Found),
		logger.Int("absent", s.Absent),
		logger.Int("failed", s.Failed),
	)

	return results, ctx.Err()
}

func (p *Prober) probeOne(ctx context.Context, log logger.Logger, id int64) Result {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Result{ID: id, Outcome: hnapi.Failed(err)}
		}
	}

	start := time.Now()
	out := p.fetcher.Item(ctx, id)
	if out.IsFailed() {
		log.Warn("Probe fetch failed", logger.Int64("id", id), logger.Error(out.Err()))
	}
	return Result{ID: id, Outcome: out, Duration: time.Since(start)}
}
