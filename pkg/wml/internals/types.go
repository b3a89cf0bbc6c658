// Package internals decides, per lexical container, which expressions must
// be re-evaluated to tell whether that part of a template needs a re-render.
//
// Containers live in an Arena and refer to each other by id. Registering a
// program classifies it, hoists it toward the nearest template boundary and
// records its free identifiers as reactive properties unless an enclosing
// container isolates them.
package internals

import (
	"github.com/sambeau/wml/pkg/wml/ast"
)

// ContainerType is the kind of lexical boundary a container stands for.
type ContainerType int

const (
	Global ContainerType = iota
	Component
	ContentOption
	Template
	Conditional
	Cycle
)

var containerTypeNames = [...]string{
	Global:        "GLOBAL",
	Component:     "COMPONENT",
	ContentOption: "CONTENT_OPTION",
	Template:      "TEMPLATE",
	Conditional:   "CONDITIONAL",
	Cycle:         "CYCLE",
}

func (t ContainerType) String() string {
	if int(t) < len(containerTypeNames) {
		return containerTypeNames[t]
	}
	return "UNKNOWN"
}

// ProgramType says where a program came from.
type ProgramType int

const (
	Simple ProgramType = iota
	Attribute
	Bind
	Option
	Event
	Float
	Iterator
	Scope
	Regular
)

var programTypeNames = [...]string{
	Simple:    "SIMPLE",
	Attribute: "ATTRIBUTE",
	Bind:      "BIND",
	Option:    "OPTION",
	Event:     "EVENT",
	Float:     "FLOAT",
	Iterator:  "ITERATOR",
	Scope:     "SCOPE",
	Regular:   "REGULAR",
}

func (t ProgramType) String() string {
	if t >= 0 && int(t) < len(programTypeNames) {
		return programTypeNames[t]
	}
	return "UNKNOWN"
}

// Operation says whether a registered program counts toward its container's
// dirty-check set.
type Operation int

const (
	Ignore Operation = iota
	Include
	Exclude
)

func (o Operation) String() string {
	switch o {
	case Ignore:
		return "IGNORE"
	case Include:
		return "INCLUDE"
	default:
		return "EXCLUDE"
	}
}

// ProgramMeta is one registration of a program in a container.
type ProgramMeta struct {
	Program   *ast.Program
	Type      ProgramType
	Operation Operation
	// Synthetic marks a single path split off a larger expression.
	Synthetic bool
	// Origin is the container the expression appears in.
	Origin int
	// Processing is the container that evaluates it.
	Processing int
}

// denylist holds pseudo-identifiers that are never reactive properties.
var denylist = map[string]bool{
	"arguments":   true,
	"_options":    true,
	"_container":  true,
	"_children":   true,
	"context":     true,
	"__spread":    true,
	"undefined":   true,
	"rk":          true,
	"debug":       true,
	"resourceUrl": true,
}

// IsDenied reports whether name can never be a reactive property.
func IsDenied(name string) bool {
	return denylist[name]
}
