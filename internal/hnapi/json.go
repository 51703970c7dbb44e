package hnapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/tidwall/gjson"
)

// IDList is a list payload exactly as the server returned it. Elements are
// json.Number for numeric ids but are never checked or coerced here.
type IDList = []any

// decodeJSON decodes a single JSON value, keeping numbers as json.Number so
// integers stay distinguishable from floats.
func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode json: trailing data after top-level value")
	}
	return v, nil
}

// jsonType names the top-level JSON type of a parsed gjson result.
func jsonType(r gjson.Result) string {
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.False, gjson.True:
		return "boolean"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	case gjson.JSON:
		if r.IsArray() {
			return "array"
		}
		return "object"
	default:
		return "unknown"
	}
}

// gjsonValue converts a parsed gjson result into the same form decodeJSON
// produces: json.Number for numbers, []any and map[string]any for
// containers.
func gjsonValue(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	}
	if r.IsArray() {
		list := make([]any, 0)
		r.ForEach(func(_, v gjson.Result) bool {
			list = append(list, gjsonValue(v))
			return true
		})
		return list
	}
	obj := make(map[string]any)
	r.ForEach(func(k, v gjson.Result) bool {
		obj[k.Str] = gjsonValue(v)
		return true
	})
	return obj
}

// TypeName names the JSON type of a decoded value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IntID reports whether v is an integral JSON number representable as
// int64, returning its value. Booleans and numeric strings are not ids.
func IntID(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return wholeFloat(f)
	case float64:
		return wholeFloat(n)
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
