package runtime

import (
	"math"
	"reflect"
	"sort"
)

// IterateFunc receives each entry of a collection. Returning false stops.
type IterateFunc func(key, value any) bool

// IteratorAdapter makes one family of values iterable by foreach.
type IteratorAdapter struct {
	Name  string
	Match func(v any) bool
	Each  func(v any, fn IterateFunc)
}

// Iterators is an ordered adapter registry. The first matching adapter
// wins.
type Iterators struct {
	adapters []IteratorAdapter
}

// DefaultIterators recognizes, in order: record sets, slices and arrays,
// maps and structs, and non-negative integers.
func DefaultIterators() *Iterators {
	return &Iterators{adapters: []IteratorAdapter{
		{Name: "recordset", Match: isRecordSet, Each: eachRecordSet},
		{Name: "array", Match: isList, Each: eachList},
		{Name: "object", Match: isObject, Each: eachObject},
		{Name: "int", Match: isCount, Each: eachCount},
	}}
}

// Register adds an adapter ahead of the built-in ones.
func (it *Iterators) Register(a IteratorAdapter) {
	it.adapters = append([]IteratorAdapter{a}, it.adapters...)
}

// Lookup returns the adapter for v.
func (it *Iterators) Lookup(v any) (IteratorAdapter, bool) {
	if IsNullish(v) {
		return IteratorAdapter{}, false
	}
	for _, a := range it.adapters {
		if a.Match(v) {
			return a, true
		}
	}
	return IteratorAdapter{}, false
}

// Each iterates v. A value no adapter recognizes has no entries.
func (it *Iterators) Each(v any, fn IterateFunc) {
	if a, ok := it.Lookup(v); ok {
		a.Each(v, fn)
	}
}

func isRecordSet(v any) bool {
	_, ok := v.(RecordSet)
	return ok
}

func eachRecordSet(v any, fn IterateFunc) {
	v.(RecordSet).Each(func(record any, index int) bool {
		return fn(float64(index), record)
	})
}

func isList(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	}
	return false
}

func eachList(v any, fn IterateFunc) {
	if list, ok := v.([]any); ok {
		for i, e := range list {
			if !fn(float64(i), e) {
				return
			}
		}
		return
	}
	rv := reflect.ValueOf(v)
	for i := 0; i < rv.Len(); i++ {
		if !fn(float64(i), rv.Index(i).Interface()) {
			return
		}
	}
}

func isObject(v any) bool {
	if _, ok := v.(map[string]any); ok {
		return true
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.Map:
		return rv.Type().Key().Kind() == reflect.String
	case reflect.Struct:
		return true
	}
	return false
}

func eachObject(v any, fn IterateFunc) {
	keys := Keys(v)
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(k, property(v, k)) {
			return
		}
	}
}

func isCount(v any) bool {
	if !isNumeric(v) {
		return false
	}
	f := ToNumber(v)
	return f >= 0 && f == math.Trunc(f)
}

func eachCount(v any, fn IterateFunc) {
	n := int(ToNumber(v))
	for i := 0; i < n; i++ {
		if !fn(float64(i), float64(i)) {
			return
		}
	}
}
