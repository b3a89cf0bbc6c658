// Package codegen compiles expression programs into evaluators.
//
// Every generator produces a Fragment: an Evaluator (and, for bindings and
// events, an Assigner or Handler) plus the disassembly text stored in the
// serialized description. Generators never keep state between calls; the
// flags describing what an expression depends on are returned with the
// fragment and merged by the caller.
package codegen

import (
	"strings"
)

// Flags records what a compiled expression depends on besides data.
type Flags uint16

const (
	// Self is set when the expression reads this.
	Self Flags = 1 << iota
	// FuncContext is set when a bare function is called.
	FuncContext
	// Context is set by context.x reads.
	Context
	// Children is set by _children.x reads.
	Children
	// Methods is set when a helper from the method table is needed.
	Methods
	// Translation is set by rk(), compiled as a call to M.rk.
	Translation
	// Debug is set by debug(), compiled as a call to M.dg.
	Debug
	// UnsafeHTML is set by __setHTMLUnsafe().
	UnsafeHTML
)

// structural flags force an expression into a table function. Translation
// and debug calls go through the method table like any other helper.
const structural = Self | FuncContext | Context | Children | Methods | Translation | Debug

// materialized flags survive when an expression is compiled separately and
// embedded by reference, as event arguments are.
const materialized = Debug | Translation

var flagNames = []struct {
	flag Flags
	name string
}{
	{Self, "self"},
	{FuncContext, "funcContext"},
	{Context, "context"},
	{Children, "children"},
	{Methods, "methods"},
	{Translation, "translation"},
	{Debug, "debug"},
	{UnsafeHTML, "unsafeHTML"},
}

// Has reports whether all of f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// Structural reports whether f needs the evaluation environment.
func (f Flags) Structural() bool { return f&structural != 0 }

// Materialize keeps only the flags that propagate out of a separately
// compiled sub-expression.
func (f Flags) Materialize() Flags { return f & materialized }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}
