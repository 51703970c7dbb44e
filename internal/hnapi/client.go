// Package hnapi is a thin client for the Hacker News JSON API.
//
// List endpoints and single-object lookups deliberately fail differently.
// A list payload that is not a JSON array is a contract violation and
// surfaces as *ShapeError. An item or user payload that is not a JSON
// object, including one that does not decode at all, is folded into Absent:
// the upstream answers unknown ids with a literal null and some malformed
// states are indistinguishable from it. Transport failures and non-2xx
// responses are never downgraded; they surface as errors or Failed outcomes.
package hnapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/logger"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/transport"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://hacker-news.firebaseio.com/v0"
	// EnvBaseURL overrides the base URL when no explicit one is given.
	EnvBaseURL = "HACKERNEWS_BASE_URL"

	pathMaxItem = "/maxitem.json"
	pathUpdates = "/updates.json"
)

// Getter performs a GET with the transport's retry semantics.
type Getter interface {
	Get(ctx context.Context, url string) (*transport.Response, error)
}

// OutcomeRecorder receives one observation per client operation.
type OutcomeRecorder interface {
	ObserveOutcome(op, result string)
}

// Updates is the payload of /updates.json.
type Updates struct {
	Items    IDList
	Profiles IDList
}

// Client issues domain operations against one base URL. Calls are
// sequential; results come back in the order they were requested.
type Client struct {
	baseURL  string
	http     Getter
	recorder OutcomeRecorder
	log      logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets an explicit base URL, taking precedence over the environment.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithTransport replaces the default transport.
func WithTransport(g Getter) Option {
	return func(c *Client) { c.http = g }
}

// WithRecorder attaches an outcome recorder.
func WithRecorder(r OutcomeRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Client. The base URL is the WithBaseURL value, else
// $HACKERNEWS_BASE_URL, else DefaultBaseURL, with any trailing slash removed.
func New(opts ...Option) *Client {
	c := &Client{log: logger.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		c.baseURL = os.Getenv(EnvBaseURL)
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")

	if c.http == nil {
		c.http = transport.New(transport.DefaultConfig(), transport.WithLogger(c.log))
	}
	return c
}

// BaseURL returns the resolved base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// fetch returns the body of a 2xx response. Transport errors pass through
// untouched; other non-2xx statuses become *HTTPError.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.http.Get(ctx, c.url(path))
	if err != nil {
		return nil, err
	}
	if err := parseHTTPError(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// List fetches a story list and returns it verbatim. A non-array payload
// yields *ShapeError naming the type actually received; elements are not
// inspected.
func (c *Client) List(ctx context.Context, endpoint ListEndpoint) (IDList, error) {
	op := string(endpoint)

	body, err := c.fetch(ctx, endpoint.Path())
	if err != nil {
		c.observe(op, "failed")
		return nil, err
	}

	v, err := decodeJSON(body)
	if err != nil {
		c.observe(op, "decode_error")
		return nil, fmt.Errorf("%s: %w", endpoint.Path(), err)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, c.shapeError(op, "array", TypeName(v))
	}

	c.observe(op, "ok")
	return list, nil
}

func (c *Client) TopStories(ctx context.Context) (IDList, error) {
	return c.List(ctx, EndpointTopStories)
}

func (c *Client) NewStories(ctx context.Context) (IDList, error) {
	return c.List(ctx, EndpointNewStories)
}

func (c *Client) BestStories(ctx context.Context) (IDList, error) {
	return c.List(ctx, EndpointBestStories)
}

func (c *Client) AskStories(ctx context.Context) (IDList, error) {
	return c.List(ctx, EndpointAskStories)
}

func (c *Client) ShowStories(ctx context.Context) (IDList, error) {
	return c.List(ctx, EndpointShowStories)
}

func (c *Client) JobStories(ctx context.Context) (IDList, error) {
	return c.List(ctx, EndpointJobStories)
}

// Item fetches /item/{id}.json. Undecodable or non-object bodies are
// Absent, not errors; transport and HTTP failures are Failed.
func (c *Client) Item(ctx context.Context, id int64) Outcome {
	return c.object(ctx, "item", itemPath(id))
}

// User fetches /user/{id}.json with the same contract as Item.
func (c *Client) User(ctx context.Context, id string) Outcome {
	return c.object(ctx, "user", "/user/"+url.PathEscape(id)+".json")
}

func (c *Client) object(ctx context.Context, op, path string) Outcome {
	body, err := c.fetch(ctx, path)
	if err != nil {
		c.observe(op, OutcomeFailed.String())
		return Failed(err)
	}

	v, err := decodeJSON(body)
	if err != nil {
		c.log.Debug("Undecodable body treated as absent",
			logger.String("path", path),
			logger.Error(err),
		)
		c.observe(op, OutcomeAbsent.String())
		return Absent()
	}

	obj, ok := v.(map[string]any)
	if !ok {
		c.observe(op, OutcomeAbsent.String())
		return Absent()
	}

	c.observe(op, OutcomeFound.String())
	return Found(obj)
}

// Raw fetches any path and returns the decoded JSON value with no shape
// assertion.
func (c *Client) Raw(ctx context.Context, path string) (any, error) {
	body, err := c.fetch(ctx, path)
	if err != nil {
		c.observe("raw", "failed")
		return nil, err
	}

	v, err := decodeJSON(body)
	if err != nil {
		c.observe("raw", "decode_error")
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c.observe("raw", "ok")
	return v, nil
}

// MaxItem returns the current largest item id.
func (c *Client) MaxItem(ctx context.Context) (int64, error) {
	body, err := c.fetch(ctx, pathMaxItem)
	if err != nil {
		c.observe("maxitem", "failed")
		return 0, err
	}

	if !gjson.ValidBytes(body) {
		return 0, c.shapeError("maxitem", "integer", "invalid json")
	}
	top := gjson.ParseBytes(body)
	if top.Type != gjson.Number {
		return 0, c.shapeError("maxitem", "integer", jsonType(top))
	}
	id, ok := IntID(json.Number(top.Raw))
	if !ok {
		return 0, c.shapeError("maxitem", "integer", "non-integer number "+top.Raw)
	}

	c.observe("maxitem", "ok")
	return id, nil
}

// Updates returns the recently changed items and profiles. Either list is
// nil when the field is missing or not an array.
func (c *Client) Updates(ctx context.Context) (*Updates, error) {
	body, err := c.fetch(ctx, pathUpdates)
	if err != nil {
		c.observe("updates", "failed")
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, c.shapeError("updates", "object", "invalid json")
	}
	top := gjson.ParseBytes(body)
	if !top.IsObject() {
		return nil, c.shapeError("updates", "object", jsonType(top))
	}

	updates := &Updates{}
	for _, field := range []struct {
		name string
		dst  *IDList
	}{
		{name: "items", dst: &updates.Items},
		{name: "profiles", dst: &updates.Profiles},
	} {
		if r := top.Get(field.name); r.IsArray() {
			*field.dst = gjsonValue(r).([]any)
		}
	}

	c.observe("updates", "ok")
	return updates, nil
}

// FirstCommentIDs returns item["kids"] when it is a list, else an empty list.
func FirstCommentIDs(item map[string]any) IDList {
	if kids, ok := item["kids"].([]any); ok {
		return kids
	}
	return IDList{}
}

func (c *Client) shapeError(op, expected, got string) error {
	c.observe(op, "shape_error")
	return &ShapeError{Endpoint: op, Expected: expected, Got: got}
}

func (c *Client) observe(op, result string) {
	if c.recorder != nil {
		c.recorder.ObserveOutcome(op, result)
	}
}
