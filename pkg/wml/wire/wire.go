// Package wire reads and writes serialized template descriptions.
//
// A description is stored as a JSON object. Compiled closures are not
// serialized; on load every expression is parsed again from its source
// text and recompiled. A single ws:template function can also be written
// as the line CONTENT_OPTION,<index>,<json>, where index names the body
// inside the description.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/wml/pkg/wml/codegen"
	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/parser"
	"github.com/sambeau/wml/pkg/wml/runtime"
)

// LinePrefix starts a serialized template function.
const LinePrefix = "CONTENT_OPTION,"

// Options configure decoding.
type Options struct {
	// Decorators are checked while recompiling, as at build time.
	Decorators []string
}

// Marshal serializes d.
func Marshal(d *runtime.Description) ([]byte, error) {
	return json.Marshal(d)
}

// MarshalIndent serializes d for reading.
func MarshalIndent(d *runtime.Description) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// MarshalLine writes the template function at body index of d as a
// CONTENT_OPTION line.
func MarshalLine(d *runtime.Description, index int) (string, error) {
	if index < 0 || index >= len(d.Bodies) {
		return "", malformed("body %d out of range", index)
	}
	payload, err := Marshal(d)
	if err != nil {
		return "", err
	}
	return LinePrefix + strconv.Itoa(index) + "," + string(payload), nil
}

// Unmarshal decodes a description and recompiles its expression table.
func Unmarshal(data []byte, opts Options) (*runtime.Description, error) {
	var d runtime.Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, werrors.Wrap("WIRE-0001", err, map[string]any{"Reason": "invalid JSON"})
	}
	if d.Version != runtime.DescriptionVersion {
		return nil, werrors.New("WIRE-0002", map[string]any{"Version": d.Version})
	}
	if err := validate(&d); err != nil {
		return nil, err
	}
	if err := Recompile(&d, opts); err != nil {
		return nil, err
	}
	return &d, nil
}

// UnmarshalLine decodes a CONTENT_OPTION line. The line may also be given
// as a JSON string, the form Template.MarshalJSON produces.
func UnmarshalLine(line string, opts Options) (*runtime.Description, int, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, `"`) {
		var s string
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return nil, 0, werrors.Wrap("WIRE-0001", err, map[string]any{"Reason": "invalid quoted line"})
		}
		line = s
	}
	rest, ok := strings.CutPrefix(line, LinePrefix)
	if !ok {
		return nil, 0, malformed("missing %s prefix", strings.TrimSuffix(LinePrefix, ","))
	}
	idx, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, 0, malformed("missing body index")
	}
	index, err := strconv.Atoi(idx)
	if err != nil {
		return nil, 0, malformed("body index %q", idx)
	}
	d, err := Unmarshal([]byte(payload), opts)
	if err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(d.Bodies) {
		return nil, 0, malformed("body %d out of range", index)
	}
	return d, index, nil
}

// Load decodes either form and returns the template it names: the module
// template of a description, or the ws:template function of a line.
func Load(data []byte, m *runtime.Methods, opts Options) (*runtime.Template, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, LinePrefix) || strings.HasPrefix(trimmed, `"`+LinePrefix) {
		d, index, err := UnmarshalLine(trimmed, opts)
		if err != nil {
			return nil, err
		}
		module, err := runtime.New(d, m)
		if err != nil {
			return nil, err
		}
		body := d.Bodies[index]
		switch body.Kind {
		case runtime.RootBody:
			return module, nil
		case runtime.TemplateBody:
			return module.Templates[body.Name], nil
		}
		return nil, malformed("body %d is a %s body", index, body.Kind)
	}
	d, err := Unmarshal(data, opts)
	if err != nil {
		return nil, err
	}
	return runtime.New(d, m)
}

// Recompile rebuilds the closures of every expression table entry from
// its source text.
func Recompile(d *runtime.Description, opts Options) error {
	syms := codegen.NewSymbols()
	for _, s := range d.Symbols {
		syms.Intern(s)
	}
	genOpts := codegen.Options{Symbols: syms, Decorators: opts.Decorators}
	expr := codegen.NewExpressionGenerator(genOpts)
	bind := codegen.NewBindGenerator(genOpts)
	event := codegen.NewEventGenerator(genOpts)

	for i, e := range d.Expressions {
		if e == nil {
			return malformed("expression %d is null", i)
		}
		p, err := parser.Parse(e.Source)
		if err != nil {
			return werrors.Wrap("WIRE-0001", err, map[string]any{"Reason": fmt.Sprintf("expression %d", i)})
		}
		frag, err := expr.Generate(p, "", false)
		if err != nil {
			return err
		}
		e.Eval = frag.Eval
		if e.Bind {
			e.Assign = frag.Assign
			if e.Assign == nil {
				bf, err := bind.Generate(p, "")
				if err != nil {
					return err
				}
				e.Assign = bf.Assign
			}
		}
		if e.Event {
			ef, err := event.Generate(p)
			if err != nil {
				return err
			}
			e.Handler = ef.Handler
		}
	}
	return nil
}

// validate checks that every slot an instruction names exists.
func validate(d *runtime.Description) error {
	roots := 0
	for _, b := range d.Bodies {
		if b == nil {
			return malformed("null body")
		}
		if b.Kind == runtime.RootBody {
			roots++
		}
		if err := checkInternal(d, b.Internal); err != nil {
			return err
		}
		if err := validateList(d, b.Children); err != nil {
			return err
		}
	}
	if roots != 1 {
		return werrors.New("CODEGEN-0004", map[string]any{"Count": roots})
	}
	for _, ranges := range d.Internals {
		for _, r := range ranges {
			for _, slot := range r {
				if err := checkSlot(d, slot); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateList(d *runtime.Description, instrs []*runtime.Instruction) error {
	for _, ins := range instrs {
		if ins == nil {
			return malformed("null instruction")
		}
		if err := checkInternal(d, ins.Internal); err != nil {
			return err
		}
		for _, seg := range ins.Segments {
			if err := checkSegment(d, seg); err != nil {
				return err
			}
		}
		for _, a := range ins.Attrs {
			if err := checkAttr(d, a); err != nil {
				return err
			}
		}
		for _, opt := range ins.Options {
			if err := checkOption(d, opt); err != nil {
				return err
			}
		}
		for _, ref := range ins.Contents {
			if ref.Body < 0 || ref.Body >= len(d.Bodies) || d.Bodies[ref.Body].Kind != runtime.ContentBody {
				return malformed("content %q points at body %d", ref.Name, ref.Body)
			}
		}
		switch ins.Op {
		case runtime.OpPartial:
			if ins.Mode == runtime.DynamicPartial {
				if err := checkSlot(d, ins.Target); err != nil {
					return err
				}
			}
		case runtime.OpIf:
			for _, br := range ins.Branches {
				if br.Test != runtime.NoExpr {
					if err := checkSlot(d, br.Test); err != nil {
						return err
					}
				}
				if err := checkInternal(d, br.Internal); err != nil {
					return err
				}
				if err := validateList(d, br.Children); err != nil {
					return err
				}
			}
		case runtime.OpFor:
			for _, slot := range []int{ins.Init, ins.Test, ins.Update} {
				if slot != runtime.NoExpr {
					if err := checkSlot(d, slot); err != nil {
						return err
					}
				}
			}
		case runtime.OpForeach:
			if err := checkSlot(d, ins.Collection); err != nil {
				return err
			}
		}
		if err := validateList(d, ins.Children); err != nil {
			return err
		}
	}
	return nil
}

func checkSegment(d *runtime.Description, seg runtime.Segment) error {
	if seg.Kind == runtime.ExprSegment {
		return checkSlot(d, seg.Expr)
	}
	return nil
}

func checkAttr(d *runtime.Description, a *runtime.AttrSpec) error {
	switch a.Kind {
	case runtime.BindAttr, runtime.EventAttr:
		return checkSlot(d, a.Expr)
	}
	for _, seg := range a.Segments {
		if err := checkSegment(d, seg); err != nil {
			return err
		}
	}
	return nil
}

func checkOption(d *runtime.Description, o *runtime.OptionSpec) error {
	for _, seg := range o.Segments {
		if err := checkSegment(d, seg); err != nil {
			return err
		}
	}
	for _, sub := range append(append([]*runtime.OptionSpec(nil), o.Items...), o.Properties...) {
		if err := checkOption(d, sub); err != nil {
			return err
		}
	}
	return nil
}

func checkSlot(d *runtime.Description, slot int) error {
	if slot < 0 || slot >= len(d.Expressions) {
		return malformed("expression %d out of range", slot)
	}
	return nil
}

func checkInternal(d *runtime.Description, idx int) error {
	if idx < -1 || idx >= len(d.Internals) {
		return malformed("internals %d out of range", idx)
	}
	return nil
}

func malformed(format string, args ...any) error {
	return werrors.New("WIRE-0001", map[string]any{"Reason": fmt.Sprintf(format, args...)})
}
