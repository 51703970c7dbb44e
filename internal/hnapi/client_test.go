package hnapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/retry"
	"github.com/jonesrussell/north-cloud/hn-conformance/internal/transport"
)

// routes maps a request path under /v0 to a raw response body. Unknown
// paths answer null, like the upstream does for unknown ids.
type routes map[string]string

func newServer(t *testing.T, r routes) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body, ok := r[strings.TrimPrefix(req.URL.Path, "/v0")]
		if !ok {
			body = "null"
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string, opts ...hnapi.Option) *hnapi.Client {
	t.Helper()
	tr := transport.New(
		transport.Config{Retries: 1, Backoff: time.Millisecond, Timeout: time.Second},
		transport.WithSleeper(&retry.RecordingSleeper{}),
	)
	return hnapi.New(append([]hnapi.Option{hnapi.WithBaseURL(baseURL + "/v0/"), hnapi.WithTransport(tr)}, opts...)...)
}

type fakeOutcomes struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeOutcomes) ObserveOutcome(op, result string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, op+"/"+result)
}

func TestNew_BaseURLResolution(t *testing.T) {
	t.Setenv(hnapi.EnvBaseURL, "http://env.example/v0/")

	assert.Equal(t, "http://explicit.example", hnapi.New(hnapi.WithBaseURL("http://explicit.example//")).BaseURL())
	assert.Equal(t, "http://env.example/v0", hnapi.New().BaseURL())

	t.Setenv(hnapi.EnvBaseURL, "")
	assert.Equal(t, hnapi.DefaultBaseURL, hnapi.New().BaseURL())
}

func TestList_ReturnsElementsVerbatim(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/topstories.json": `["123", 456]`})
	client := newClient(t, srv.URL)

	ids, err := client.TopStories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, hnapi.IDList{"123", json.Number("456")}, ids)
}

func TestList_NonArrayIsShapeError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		got  string
	}{
		{name: "object", body: `{"not": "a list"}`, got: "object"},
		{name: "null", body: `null`, got: "null"},
		{name: "string", body: `"1,2,3"`, got: "string"},
		{name: "number", body: `42`, got: "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newServer(t, routes{"/newstories.json": tt.body})
			client := newClient(t, srv.URL)

			ids, err := client.NewStories(context.Background())

			require.Error(t, err)
			assert.Nil(t, ids)
			assert.ErrorIs(t, err, hnapi.ErrShape)

			var shapeErr *hnapi.ShapeError
			require.ErrorAs(t, err, &shapeErr)
			assert.Equal(t, tt.got, shapeErr.Got)
			assert.Equal(t, "newstories", shapeErr.Endpoint)
			assert.Contains(t, err.Error(), tt.got)
		})
	}
}

func TestList_InvalidJSONIsNotShapeError(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/beststories.json": `[1, 2,`})
	client := newClient(t, srv.URL)

	_, err := client.BestStories(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, hnapi.ErrShape)
}

func TestList_ClientErrorIsHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error" : "Permission denied"}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).AskStories(context.Background())

	var httpErr *hnapi.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "Permission denied", httpErr.Message)
	assert.True(t, hnapi.IsHTTPError(err))
}

func TestList_ServerErrorSurfacesTransportError(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).ShowStories(context.Background())

	assert.ErrorIs(t, err, transport.ErrTransport)
	assert.ErrorIs(t, err, transport.ErrExhausted)
	assert.Equal(t, int32(2), hits.Load())
}

func TestItem_ReturnsMappingUnmodified(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/item/123.json": `{"id": "123", "type": 5, "time": "yesterday", "extra": [1]}`})
	client := newClient(t, srv.URL)

	out := client.Item(context.Background(), 123)

	require.True(t, out.IsFound(), out.String())
	assert.Equal(t, map[string]any{
		"id":    "123",
		"type":  json.Number("5"),
		"time":  "yesterday",
		"extra": []any{json.Number("1")},
	}, out.Payload())
	assert.NoError(t, out.Err())
}

func TestItem_NonObjectBodiesAreAbsent(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{
		"/item/1.json": `null`,
		"/item/2.json": `{"id": 2, "type": "story"`,
		"/item/3.json": `[1, 2, 3]`,
		"/item/4.json": `"story"`,
		"/item/5.json": ``,
	})
	client := newClient(t, srv.URL)

	for id := int64(1); id <= 5; id++ {
		out := client.Item(context.Background(), id)
		assert.Equal(t, hnapi.OutcomeAbsent, out.Kind(), "item %d", id)
		assert.Nil(t, out.Payload())
		assert.NoError(t, out.Err())
	}
}

func TestItem_OutOfRangeIDsAreAbsent(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{})
	client := newClient(t, srv.URL)

	for _, id := range []int64{-10, -1, 0, 1_000_000_000_000_000_000} {
		assert.True(t, client.Item(context.Background(), id).IsAbsent(), "item %d", id)
	}
	assert.True(t, client.User(context.Background(), "no_such_user_zz9").IsAbsent())
}

func TestItem_TransportFailureIsFailed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	out := newClient(t, srv.URL).Item(context.Background(), 8863)

	require.True(t, out.IsFailed())
	assert.ErrorIs(t, out.Err(), transport.ErrTransport)
}

func TestOversizedBodyIsFailedNotAbsent(t *testing.T) {
	t.Parallel()

	big := `{"id":8863,"type":"story","text":"` + strings.Repeat("a", 256) + `"}`
	srv := newServer(t, routes{
		"/item/8863.json":     big,
		"/user/dhouston.json": `{"id":"dhouston","about":"` + strings.Repeat("b", 256) + `"}`,
		"/topstories.json":    "[" + strings.Repeat("1,", 200) + "1]",
	})
	tr := transport.New(
		transport.Config{Retries: 1, Backoff: time.Millisecond, Timeout: time.Second},
		transport.WithSleeper(&retry.RecordingSleeper{}),
		transport.WithMaxBodyBytes(128),
	)
	client := hnapi.New(hnapi.WithBaseURL(srv.URL+"/v0/"), hnapi.WithTransport(tr))

	item := client.Item(context.Background(), 8863)
	require.True(t, item.IsFailed())
	assert.ErrorIs(t, item.Err(), transport.ErrBodyTooLarge)

	var terr *transport.TransportError
	require.ErrorAs(t, item.Err(), &terr)
	assert.Equal(t, transport.KindBodyTooLarge, terr.Kind)

	user := client.User(context.Background(), "dhouston")
	require.True(t, user.IsFailed())
	assert.ErrorIs(t, user.Err(), transport.ErrBodyTooLarge)

	ids, err := client.TopStories(context.Background())
	assert.Nil(t, ids)
	assert.ErrorIs(t, err, transport.ErrBodyTooLarge)
	assert.NotErrorIs(t, err, hnapi.ErrShape)
}

func TestItem_ClientErrorIsFailed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out := newClient(t, srv.URL).Item(context.Background(), 1)

	require.True(t, out.IsFailed())
	assert.True(t, hnapi.IsHTTPError(out.Err()))
}

func TestItem_RepeatedFetchIsStable(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/item/8863.json": `{"by":"dhouston","id":8863,"score":104,"time":1175714200,"type":"story"}`})
	client := newClient(t, srv.URL)

	first := client.Item(context.Background(), 8863)
	second := client.Item(context.Background(), 8863)

	require.True(t, first.IsFound())
	require.True(t, second.IsFound())
	for _, field := range []string{"id", "type", "time"} {
		assert.Equal(t, first.Payload()[field], second.Payload()[field], field)
	}
}

func TestUser_EscapesID(t *testing.T) {
	t.Parallel()

	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"id":"a b","created":1,"karma":2}`))
	}))
	defer srv.Close()

	out := newClient(t, srv.URL).User(context.Background(), "a b")

	require.True(t, out.IsFound())
	assert.Equal(t, "/v0/user/a%20b.json", gotPath.Load())
}

func TestRaw(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/maxitem.json": `42`, "/broken.json": `{`})
	client := newClient(t, srv.URL)

	v, err := client.Raw(context.Background(), "maxitem.json")
	require.NoError(t, err)
	assert.Equal(t, json.Number("42"), v)

	v, err = client.Raw(context.Background(), "/unknown.json")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = client.Raw(context.Background(), "/broken.json")
	assert.Error(t, err)
}

func TestMaxItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    int64
		wantErr bool
	}{
		{name: "integer", body: `40000000`, want: 40000000},
		{name: "whole float", body: `40000000.0`, want: 40000000},
		{name: "fraction", body: `1.5`, wantErr: true},
		{name: "string", body: `"40000000"`, wantErr: true},
		{name: "null", body: `null`, wantErr: true},
		{name: "invalid", body: `4x`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newServer(t, routes{"/maxitem.json": tt.body})
			got, err := newClient(t, srv.URL).MaxItem(context.Background())

			if tt.wantErr {
				assert.ErrorIs(t, err, hnapi.ErrShape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdates(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/updates.json": `{"items":[8423305,8420805],"profiles":["thefox","mdda"]}`})
	updates, err := newClient(t, srv.URL).Updates(context.Background())

	require.NoError(t, err)
	assert.Equal(t, hnapi.IDList{json.Number("8423305"), json.Number("8420805")}, updates.Items)
	assert.Equal(t, hnapi.IDList{"thefox", "mdda"}, updates.Profiles)
}

func TestUpdates_ElementsKeptVerbatim(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/updates.json": `{"items":[1,"x",2.5,null,true,{"a":[1]}],"profiles":"mdda"}`})
	updates, err := newClient(t, srv.URL).Updates(context.Background())

	require.NoError(t, err)
	assert.Equal(t, hnapi.IDList{
		json.Number("1"),
		"x",
		json.Number("2.5"),
		nil,
		true,
		map[string]any{"a": []any{json.Number("1")}},
	}, updates.Items)
	assert.Nil(t, updates.Profiles)
}

func TestUpdates_EmptyObject(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/updates.json": `{"items":[]}`})
	updates, err := newClient(t, srv.URL).Updates(context.Background())

	require.NoError(t, err)
	assert.Equal(t, hnapi.IDList{}, updates.Items)
	assert.Nil(t, updates.Profiles)
}

func TestUpdates_NonObjectIsShapeError(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{"/updates.json": `[]`})
	_, err := newClient(t, srv.URL).Updates(context.Background())

	var shapeErr *hnapi.ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "array", shapeErr.Got)
}

func TestClient_RecordsOutcomes(t *testing.T) {
	t.Parallel()

	srv := newServer(t, routes{
		"/jobstories.json": `[1]`,
		"/item/1.json":     `{"id":1,"type":"job","time":1}`,
		"/topstories.json": `{}`,
	})
	rec := &fakeOutcomes{}
	client := newClient(t, srv.URL, hnapi.WithRecorder(rec))

	_, _ = client.JobStories(context.Background())
	_ = client.Item(context.Background(), 1)
	_ = client.Item(context.Background(), 2)
	_, _ = client.TopStories(context.Background())

	assert.Equal(t, []string{
		"jobstories/ok",
		"item/found",
		"item/absent",
		"topstories/shape_error",
	}, rec.seen)
}

func TestFirstCommentIDs(t *testing.T) {
	t.Parallel()

	kids := []any{json.Number("2"), json.Number("3")}
	assert.Equal(t, hnapi.IDList(kids), hnapi.FirstCommentIDs(map[string]any{"kids": kids}))
	assert.Empty(t, hnapi.FirstCommentIDs(map[string]any{"id": json.Number("1")}))
	assert.Empty(t, hnapi.FirstCommentIDs(map[string]any{"kids": "2,3"}))
	assert.Empty(t, hnapi.FirstCommentIDs(nil))
	assert.NotNil(t, hnapi.FirstCommentIDs(nil))
}
