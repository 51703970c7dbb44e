package hnapi_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/hn-conformance/internal/hnapi"
)

func TestIntID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{name: "json integer", in: json.Number("8863"), want: 8863, ok: true},
		{name: "json whole float", in: json.Number("8863.0"), want: 8863, ok: true},
		{name: "json exponent", in: json.Number("1e3"), want: 1000, ok: true},
		{name: "json fraction", in: json.Number("8863.5"), ok: false},
		{name: "float64", in: float64(12), want: 12, ok: true},
		{name: "int", in: 7, want: 7, ok: true},
		{name: "numeric string", in: "123", ok: false},
		{name: "bool", in: true, ok: false},
		{name: "nil", in: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := hnapi.IntID(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTypeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "null", hnapi.TypeName(nil))
	assert.Equal(t, "number", hnapi.TypeName(json.Number("1")))
	assert.Equal(t, "array", hnapi.TypeName([]any{}))
	assert.Equal(t, "object", hnapi.TypeName(map[string]any{}))
	assert.Equal(t, "boolean", hnapi.TypeName(false))
}

func TestParseListEndpoint(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"top", "topstories", "TopStories.json"} {
		e, err := hnapi.ParseListEndpoint(in)
		assert.NoError(t, err, in)
		assert.Equal(t, hnapi.EndpointTopStories, e)
	}

	_, err := hnapi.ParseListEndpoint("worst")
	assert.Error(t, err)

	assert.Equal(t, "/jobstories.json", hnapi.EndpointJobStories.Path())
	assert.Equal(t, 200, hnapi.EndpointAskStories.MaxLen())
	assert.Equal(t, 500, hnapi.EndpointBestStories.MaxLen())
}
