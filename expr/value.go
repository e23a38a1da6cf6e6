package expr

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the result of resolving an identifier that does not exist
// in the context. It is distinct from nil, which is the literal null.
var Undefined any = undefined{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

func isNullish(v any) bool {
	return v == nil || IsUndefined(v)
}

// normalize folds every Go numeric kind into float64 so that values coming
// from maps of mixed origin compare the same way literals do.
func normalize(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}
		return f
	}
	return v
}

// ToBool coerces a value to a boolean. nil, Undefined, the empty string,
// the string "false" (any case) and 0 are false. Everything else is true.
func ToBool(v any) bool {
	v = normalize(v)
	switch x := v.(type) {
	case nil, undefined:
		return false
	case bool:
		return x
	case string:
		return x != "" && !strings.EqualFold(x, "false")
	case float64:
		return x != 0
	}
	return true
}

// ToString converts a value to the text form used for case-insensitive
// comparison and for string validation.
func ToString(v any) string {
	v = normalize(v)
	switch x := v.(type) {
	case nil:
		return "null"
	case undefined:
		return "undefined"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			e := rv.Index(i).Interface()
			if isNullish(e) {
				continue
			}
			parts[i] = ToString(e)
		}
		return strings.Join(parts, ",")
	case reflect.Map, reflect.Struct:
		return "[object Object]"
	}
	return ""
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToNumber converts v to a number the way an untyped form value is read:
// booleans are 0 or 1, nil and blank strings are 0, numeric strings are
// parsed. The second result is false when v has no numeric reading.
func ToNumber(v any) (float64, bool) {
	v = normalize(v)
	switch x := v.(type) {
	case nil:
		return 0, true
	case undefined:
		return 0, false
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case float64:
		return x, !math.IsNaN(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

var leadingNumber = regexp.MustCompile(`^\s*[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// relational returns the number used by > >= < <=: numbers as-is, the
// leading numeric prefix of strings, and 0 for everything else.
func relational(v any) float64 {
	v = normalize(v)
	switch x := v.(type) {
	case float64:
		return x
	case string:
		m := leadingNumber.FindString(x)
		if m == "" {
			return 0
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// IsEmpty reports whether v is nil, Undefined, a blank string, or an empty
// list or object.
func IsEmpty(v any) bool {
	if isNullish(v) {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// StrictEquals compares a and b the way === does: no coercion, and lists
// and objects are never equal.
func StrictEquals(a, b any) bool {
	return strictEquals(a, b)
}

func strictEquals(a, b any) bool {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case nil:
		return b == nil
	case undefined:
		return IsUndefined(b)
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	}
	return false
}

// LooseEquals compares a and b the way == does: identical values are equal,
// null only equals null or undefined, then the string forms are compared
// case-insensitively, then the numeric forms.
func LooseEquals(a, b any) bool {
	if strictEquals(a, b) {
		return true
	}
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	if strings.EqualFold(ToString(a), ToString(b)) {
		return true
	}
	na, okA := ToNumber(a)
	nb, okB := ToNumber(b)
	return okA && okB && na == nb
}

// elements returns the members of a list value, or false when v is not a list.
func elements(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// member returns the value stored under key in an object value, or the
// length of a list when key is "length".
func member(v any, key string) any {
	switch x := v.(type) {
	case map[string]any:
		if m, ok := x[key]; ok {
			return m
		}
		return Undefined
	case nil, undefined:
		return Undefined
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Undefined
		}
		m := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !m.IsValid() {
			return Undefined
		}
		return m.Interface()
	case reflect.Slice, reflect.Array:
		if key == "length" {
			return float64(rv.Len())
		}
		if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < rv.Len() {
			return rv.Index(i).Interface()
		}
	}
	return Undefined
}
