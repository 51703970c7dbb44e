// Package transport performs HTTP GETs with bounded retry and exponential
// backoff over a persistent connection pool.
//
// Timeouts, connection failures and responses with status >= 500 are
// retried; every other response, 4xx included, is returned to the caller
// untouched. A Transport is meant for sequential use by one logical client;
// the underlying *http.Client is safe to share but the Transport adds no
// ordering or locking of its own.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/retry"
)

const (
	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 3
	// DefaultBackoff is the base backoff delay.
	DefaultBackoff = 500 * time.Millisecond
	// DefaultTimeout is the per-attempt timeout.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes = 32 << 20

	userAgent = "hn-conformance/1.0"
)

// Config holds the retry budget and per-attempt timeout.
type Config struct {
	Retries int
	Backoff time.Duration
	Timeout time.Duration
}

// DefaultConfig returns 3 retries, 500ms backoff base and a 5s timeout.
func DefaultConfig() Config {
	return Config{Retries: DefaultRetries, Backoff: DefaultBackoff, Timeout: DefaultTimeout}
}

// Recorder receives per-attempt measurements.
type Recorder interface {
	ObserveAttempt(result string, d time.Duration)
	ObserveRetry(kind string)
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Attempts   int
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Transport issues GET requests with retries.
type Transport struct {
	cfg      Config
	client   *http.Client
	sleeper  retry.Sleeper
	recorder Recorder
	log      logger.Logger
	maxBody  int64
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient replaces the pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithSleeper replaces the real backoff sleeper.
func WithSleeper(s retry.Sleeper) Option {
	return func(t *Transport) { t.sleeper = s }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(t *Transport) { t.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// WithMaxBodyBytes caps the response body size. Larger bodies fail with
// KindBodyTooLarge instead of being truncated.
func WithMaxBodyBytes(n int64) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxBody = n
		}
	}
}

// New creates a Transport. A non-positive Timeout falls back to
// DefaultTimeout and negative Retries or Backoff are treated as zero.
func New(cfg Config, opts ...Option) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}

	t := &Transport{
		cfg:     cfg,
		client:  NewPooledClient(PoolConfig{}),
		sleeper: retry.RealSleeper{},
		log:     logger.NewNop(),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get fetches url using the configured per-attempt timeout.
func (t *Transport) Get(ctx context.Context, url string) (*Response, error) {
	return t.GetWithTimeout(ctx, url, t.cfg.Timeout)
}

// GetWithTimeout fetches url with an explicit per-attempt timeout.
func (t *Transport) GetWithTimeout(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = t.cfg.Timeout
	}

	log := t.log.With(logger.String("url", url))
	machine := retry.New(
		retry.Policy{Retries: t.cfg.Retries, Backoff: t.cfg.Backoff},
		retry.WithSleeper(t.sleeper),
		retry.WithClassifier(isRetryable),
		retry.WithObserver(func(tr retry.Transition) { t.observe(log, tr) }),
	)

	var resp *Response
	res, err := machine.Do(ctx, func(ctx context.Context, attempt int) error {
		r, attemptErr := t.attempt(ctx, url, timeout)
		if attemptErr != nil {
			return attemptErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, t.terminalError(url, res, err)
	}

	resp.Attempts = res.Attempts
	return resp, nil
}

func (t *Transport) attempt(ctx context.Context, url string, timeout time.Duration) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &attemptError{kind: KindCanceled, err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &attemptError{kind: KindRequest, err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	httpResp, err := t.client.Do(req)
	if err != nil {
		return nil, t.failed(ctx, err, start)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, t.maxBody+1))
	if err != nil {
		return nil, t.failed(ctx, fmt.Errorf("read body: %w", err), start)
	}
	if int64(len(body)) > t.maxBody {
		t.record(string(KindBodyTooLarge), start)
		return nil, &attemptError{
			kind: KindBodyTooLarge,
			err:  fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, t.maxBody),
		}
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		t.record(string(KindServerError), start)
		return nil, &attemptError{
			kind: KindServerError,
			err:  &ServerError{StatusCode: httpResp.StatusCode, Status: httpResp.Status},
		}
	}

	t.record("ok", start)
	return &Response{
		URL:        url,
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

func (t *Transport) failed(parent context.Context, err error, start time.Time) error {
	if parentErr := parent.Err(); parentErr != nil {
		return &attemptError{kind: KindCanceled, err: parentErr}
	}
	kind := classify(err)
	t.record(string(kind), start)
	return &attemptError{kind: kind, err: err}
}

func (t *Transport) terminalError(url string, res retry.Result, err error) error {
	terr := &TransportError{
		URL:       url,
		Attempts:  res.Attempts,
		Kind:      kindOf(err),
		Exhausted: res.State == retry.StateExhausted,
		Err:       err,
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		terr.Err = exhausted.Last
	}

	var ae *attemptError
	if errors.As(terr.Err, &ae) {
		terr.Err = ae.err
	}

	if errors.Is(err, retry.ErrCanceled) {
		terr.Kind = KindCanceled
		terr.Err = err
	}

	return terr
}

func (t *Transport) observe(log logger.Logger, tr retry.Transition) {
	switch tr.To {
	case retry.StateSleeping:
		kind := kindOf(tr.Err)
		if t.recorder != nil {
			t.recorder.ObserveRetry(string(kind))
		}
		log.Warn("GET failed, backing off",
			logger.Int("attempt", tr.Attempt),
			logger.String("kind", string(kind)),
			logger.Duration("delay", tr.Delay),
			logger.Error(tr.Err),
		)
	case retry.StateExhausted:
		log.Error("GET failed, retries exhausted",
			logger.Int("attempts", tr.Attempt+1),
			logger.Error(tr.Err),
		)
	default:
		log.Debug("retry transition",
			logger.String("from", tr.From.String()),
			logger.String("to", tr.To.String()),
			logger.Int("attempt", tr.Attempt),
		)
	}
}

func (t *Transport) record(result string, start time.Time) {
	if t.recorder != nil {
		t.recorder.ObserveAttempt(result, time.Since(start))
	}
}
