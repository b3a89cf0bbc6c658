// Package runtime executes compiled template descriptions.
//
// Values flowing through templates are plain Go values: nil is null, the
// Undefined sentinel is a missing value, numbers are float64, and objects are
// map[string]any, structs, or anything implementing Getter.
package runtime

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the value of a missing property or unbound name.
var Undefined any = undefined{}

type unreachable struct{}

func (unreachable) String() string { return "unreachable" }

// Unreachable marks an internal expression that could not be evaluated
// during a dirty check. It is never equal to any other value, so a change
// is always assumed.
var Unreachable any = unreachable{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// IsNullish reports whether v is null or Undefined.
func IsNullish(v any) bool {
	return v == nil || IsUndefined(v)
}

// RawHTML is markup that is emitted without escaping.
type RawHTML string

// Function is a callable template value. this is the invocation context.
type Function func(this any, args []any) (any, error)

// Getter lets a Go type expose named properties to templates.
type Getter interface {
	Get(name string) (any, bool)
}

// Setter lets a Go type accept property assignment from bindings.
type Setter interface {
	Set(name string, value any) error
}

// RecordSet is a collection that iterates itself. Returning false from fn
// stops the iteration.
type RecordSet interface {
	Each(fn func(record any, index int) bool)
}

// Truthy follows the usual expression language rules: false, 0, NaN, "",
// null and undefined are false.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil, undefined, unreachable:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case RawHTML:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case int32:
		return x != 0
	case uint:
		return x != 0
	case uint64:
		return x != 0
	}
	return true
}

// ToNumber converts v to a float64, NaN when it has no numeric meaning.
func ToNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case undefined:
		return math.NaN()
	case bool:
		if x {
			return 1
		}
		return 0
	case float64:
		return x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return math.NaN()
}

// ToString renders v the way text interpolation does. null and undefined
// render as the empty string.
func ToString(v any) string {
	switch x := v.(type) {
	case nil, undefined, unreachable:
		return ""
	case string:
		return x
	case RawHTML:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return formatNumber(x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = ToString(e)
		}
		return strings.Join(parts, ",")
	case interface{ String() string }:
		return x.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return formatNumber(rv.Float())
	case reflect.Map, reflect.Struct:
		return "[object Object]"
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = ToString(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
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
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Typeof names the type of v.
func Typeof(v any) string {
	switch v.(type) {
	case undefined, unreachable:
		return "undefined"
	case nil:
		return "object"
	case bool:
		return "boolean"
	case string, RawHTML:
		return "string"
	case Function:
		return "function"
	}
	if isNumeric(v) {
		return "number"
	}
	if reflect.ValueOf(v).Kind() == reflect.Func {
		return "function"
	}
	return "object"
}

func isNumeric(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isStringLike(v any) bool {
	switch v.(type) {
	case string, RawHTML:
		return true
	}
	return false
}

// Unary applies a prefix operator.
func Unary(op string, v any) any {
	switch op {
	case "!":
		return !Truthy(v)
	case "-":
		return -ToNumber(v)
	case "+":
		return ToNumber(v)
	case "typeof":
		return Typeof(v)
	}
	return Undefined
}

// Binary applies an arithmetic, comparison or equality operator.
func Binary(op string, a, b any) any {
	switch op {
	case "+":
		if isStringLike(a) || isStringLike(b) || !isPrimitive(a) || !isPrimitive(b) {
			return ToString(a) + ToString(b)
		}
		return ToNumber(a) + ToNumber(b)
	case "-":
		return ToNumber(a) - ToNumber(b)
	case "*":
		return ToNumber(a) * ToNumber(b)
	case "/":
		return ToNumber(a) / ToNumber(b)
	case "%":
		return math.Mod(ToNumber(a), ToNumber(b))
	case "==":
		return LooseEqual(a, b)
	case "!=":
		return !LooseEqual(a, b)
	case "===":
		return StrictEqual(a, b)
	case "!==":
		return !StrictEqual(a, b)
	case "<", ">", "<=", ">=":
		return compare(op, a, b)
	}
	return Undefined
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, undefined, bool, string, RawHTML:
		return true
	}
	return isNumeric(v)
}

func compare(op string, a, b any) bool {
	if isStringLike(a) && isStringLike(b) {
		x, y := ToString(a), ToString(b)
		switch op {
		case "<":
			return x < y
		case ">":
			return x > y
		case "<=":
			return x <= y
		default:
			return x >= y
		}
	}
	x, y := ToNumber(a), ToNumber(b)
	switch op {
	case "<":
		return x < y
	case ">":
		return x > y
	case "<=":
		return x <= y
	default:
		return x >= y
	}
}

// StrictEqual compares without type coercion. Numbers of any Go kind
// compare by value.
func StrictEqual(a, b any) bool {
	if _, ok := a.(unreachable); ok {
		return false
	}
	if _, ok := b.(unreachable); ok {
		return false
	}
	if isNumeric(a) && isNumeric(b) {
		return ToNumber(a) == ToNumber(b)
	}
	if isStringLike(a) && isStringLike(b) {
		return ToString(a) == ToString(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	switch ta.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
	}
	return false
}

// LooseEqual is == with null and undefined equal to each other and
// primitive coercion to numbers.
func LooseEqual(a, b any) bool {
	if IsNullish(a) || IsNullish(b) {
		return IsNullish(a) && IsNullish(b)
	}
	if StrictEqual(a, b) {
		return true
	}
	if isPrimitive(a) && isPrimitive(b) {
		if isStringLike(a) && isStringLike(b) {
			return false
		}
		return ToNumber(a) == ToNumber(b)
	}
	return false
}

// Keys returns the property names of an object value in sorted order.
func Keys(v any) []string {
	switch m := v.(type) {
	case *optionsScope:
		return Keys(m.m)
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, ToString(k.Interface()))
		}
		sort.Strings(keys)
		return keys
	case reflect.Struct:
		var keys []string
		for i := 0; i < rv.NumField(); i++ {
			if f := rv.Type().Field(i); f.IsExported() {
				keys = append(keys, fieldName(f))
			}
		}
		return keys
	}
	return nil
}
