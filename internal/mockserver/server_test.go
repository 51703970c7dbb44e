package mockserver_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/mockserver"
)

func startMock(t *testing.T, fx *mockserver.Fixtures) (*mockserver.Server, string) {
	t.Helper()
	s := mockserver.New(fx, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv.URL + mockserver.PathPrefix
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestDefaultFixtures_ServeModeledData(t *testing.T) {
	t.Parallel()

	fx, err := mockserver.DefaultFixtures()
	require.NoError(t, err)
	_, base := startMock(t, fx)

	status, body := get(t, base+"/topstories.json")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[8863, 121003, 126809, 192327, 2921983]`, body)

	_, body = get(t, base+"/item/8863.json")
	assert.Contains(t, body, `"by":"dhouston"`)

	_, body = get(t, base+"/user/pg.json")
	assert.Contains(t, body, `"karma":155111`)

	_, body = get(t, base+"/maxitem.json")
	assert.Equal(t, "2922097", body)

	_, body = get(t, base+"/updates.json")
	assert.JSONEq(t, `{"items":[8863,9224,126809],"profiles":["dhouston","pg","jl"]}`, body)
}

func TestUnknownResourcesAnswerNull(t *testing.T) {
	t.Parallel()

	fx, err := mockserver.DefaultFixtures()
	require.NoError(t, err)
	_, base := startMock(t, fx)

	for _, path := range []string{"/item/0.json", "/item/-1.json", "/item/1000000000000000000.json", "/user/nobody.json", "/whatever.json"} {
		status, body := get(t, base+path)
		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, "null", body, path)
	}
}

func TestLoadFixtures_RawAndFaults(t *testing.T) {
	t.Parallel()

	fx, err := mockserver.LoadFixtures("testdata/faulty.yaml")
	require.NoError(t, err)
	s, base := startMock(t, fx)

	status, _ := get(t, base+"/topstories.json")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = get(t, base+"/topstories.json")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, body := get(t, base+"/topstories.json")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[1]", body)
	assert.Equal(t, 3, s.Hits("/topstories.json"))

	_, body = get(t, base+"/newstories.json")
	assert.Equal(t, `{"not": "a list"}`, body)

	_, body = get(t, base+"/item/2.json")
	assert.Equal(t, `{"id": 2, "type": "story",`, body)

	_, err = mockserver.LoadFixtures("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestAddFault(t *testing.T) {
	t.Parallel()

	fx, err := mockserver.DefaultFixtures()
	require.NoError(t, err)
	s, base := startMock(t, fx)

	s.AddFault(mockserver.Fault{Path: "*", Body: "not json"})
	_, body := get(t, base+"/item/8863.json")
	assert.Equal(t, "not json", body)

	s.ResetFaults()
	s.AddFault(mockserver.Fault{Path: "/maxitem.json", Delay: 20 * time.Millisecond, Times: 1})
	start := time.Now()
	_, body = get(t, base+"/maxitem.json")
	assert.Equal(t, "2922097", body)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	fx, err := mockserver.DefaultFixtures()
	require.NoError(t, err)
	s := mockserver.New(fx, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	req.Header.Set("X-Request-ID", "trace-abc")
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "trace-abc", w.Header().Get("X-Request-ID"))
}

func TestRun_GracefulShutdown(t *testing.T) {
	t.Parallel()

	fx, err := mockserver.DefaultFixtures()
	require.NoError(t, err)
	s := mockserver.New(fx, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0", ready) }()

	addr := <-ready
	status, _ := get(t, "http://"+addr+"/healthz")
	assert.Equal(t, http.StatusOK, status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
