package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Type is a JSON type a field can be constrained to.
type Type int

const (
	TypeString Type = iota
	TypeInteger
	TypeBoolean
	TypeArray
	TypeIntegerArray
	TypeObject
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeIntegerArray:
		return "array of integers"
	case TypeObject:
		return "object"
	default:
		return "unknown"
	}
}

func (t Type) matches(v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeInteger:
		return isInteger(v)
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeIntegerArray:
		arr, ok := v.([]any)
		return ok && !slices.ContainsFunc(arr, func(e any) bool { return !isInteger(e) })
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

// Violation is a single failed constraint.
type Violation struct {
	Field  string
	Reason string
}

// Rule checks one constraint against a decoded object and returns nil when
// it holds. Rules only look at the fields they name.
type Rule func(obj map[string]any) *Violation

// Required fails when any of fields is missing.
func Required(fields ...string) Rule {
	return func(obj map[string]any) *Violation {
		for _, f := range fields {
			if _, ok := obj[f]; !ok {
				return &Violation{Field: f, Reason: "required field missing"}
			}
		}
		return nil
	}
}

// Typed constrains field to t when present. A present null is a mismatch.
func Typed(field string, t Type) Rule {
	return func(obj map[string]any) *Violation {
		v, ok := obj[field]
		if !ok || t.matches(v) {
			return nil
		}
		return &Violation{Field: field, Reason: fmt.Sprintf("expected %s, got %s", t, describe(v))}
	}
}

// Enum constrains a present field to one of values.
func Enum(field string, values ...string) Rule {
	return func(obj map[string]any) *Violation {
		v, ok := obj[field]
		if !ok {
			return nil
		}
		if s, isStr := v.(string); isStr && slices.Contains(values, s) {
			return nil
		}
		return &Violation{Field: field, Reason: fmt.Sprintf("%s is not one of %v", describe(v), values)}
	}
}

// Const constrains a present field to exactly value.
func Const(field, value string) Rule {
	return func(obj map[string]any) *Violation {
		v, ok := obj[field]
		if !ok {
			return nil
		}
		if s, isStr := v.(string); isStr && s == value {
			return nil
		}
		return &Violation{Field: field, Reason: fmt.Sprintf("expected %q, got %s", value, describe(v))}
	}
}

// MinLength requires a present string field to have at least n characters.
func MinLength(field string, n int) Rule {
	return func(obj map[string]any) *Violation {
		s, ok := obj[field].(string)
		if !ok || len([]rune(s)) >= n {
			return nil
		}
		return &Violation{Field: field, Reason: fmt.Sprintf("shorter than %d characters", n)}
	}
}

// Minimum requires a present integer field to be at least minimum.
func Minimum(field string, minimum int64) Rule {
	return func(obj map[string]any) *Violation {
		v, ok := obj[field]
		if !ok {
			return nil
		}
		f, isNum := toFloat(v)
		if !isNum || f >= float64(minimum) {
			return nil
		}
		return &Violation{Field: field, Reason: fmt.Sprintf("%s is less than %d", describe(v), minimum)}
	}
}

// isInteger accepts any JSON number without a fractional part. Booleans and
// numeric strings are never integers.
func isInteger(v any) bool {
	switch n := v.(type) {
	case json.Number:
		if _, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return true
		}
		f, err := n.Float64()
		return err == nil && isWhole(f)
	case float64:
		return isWhole(n)
	case float32:
		return isWhole(float64(n))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isWhole(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean " + strconv.FormatBool(x)
	case json.Number:
		return "number " + x.String()
	case float64, float32, int, int64:
		return fmt.Sprintf("number %v", x)
	case string:
		return strconv.Quote(x)
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
