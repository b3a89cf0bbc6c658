package builder

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sambeau/wml/pkg/wml/runtime"
)

// Generator primitives and method helpers as compiled bodies call them.
var (
	gTemplate  = generatorRef("Template")
	gContent   = generatorRef("ContentOption")
	gJoin      = generatorRef("Join")
	gText      = generatorRef("CreateText")
	gTag       = generatorRef("CreateTag")
	gControl   = generatorRef("CreateControl")
	gInline    = generatorRef("Inline")
	gPartial   = generatorRef("Partial")
	gIf        = generatorRef("If")
	gFor       = generatorRef("For")
	gForeach   = generatorRef("Foreach")
	gExpr      = generatorRef("Expression")
	gScope     = generatorRef("Scope")
	mTranslate = "M." + runtime.MethodAlias("Translate")

	elif = "." + runtime.GeneratorAlias("Elif")
	els  = "." + runtime.GeneratorAlias("Else")
	fi   = "." + runtime.GeneratorAlias("Fi")
)

func generatorRef(op string) string { return "G." + runtime.GeneratorAlias(op) }

// Disassemble renders a body in the generator alias syntax. The text is
// for reading only; nothing parses it back.
func Disassemble(body *runtime.Body) string {
	var b strings.Builder
	switch body.Kind {
	case runtime.RootBody:
		b.WriteString(gTemplate + "(null, function(d, a, c){ return " + gJoin + "(")
	case runtime.TemplateBody:
		b.WriteString(gTemplate + "(" + strconv.Quote(body.Name) + ", function(d, a, c){ return " + gJoin + "(")
	default:
		b.WriteString(gContent + "(" + strconv.Quote(body.Name) + ", function(d, c){ return " + gJoin + "(")
	}
	list(&b, body.Children)
	b.WriteString("); })")
	return b.String()
}

func list(b *strings.Builder, instrs []*runtime.Instruction) {
	b.WriteByte('[')
	for i, ins := range instrs {
		if i > 0 {
			b.WriteString(", ")
		}
		instruction(b, ins)
	}
	b.WriteByte(']')
}

func instruction(b *strings.Builder, ins *runtime.Instruction) {
	key := strconv.Quote(ins.Key)
	switch ins.Op {
	case runtime.OpText:
		b.WriteString(gText + "(" + segments(ins.Segments) + ", " + key + ")")
	case runtime.OpElement:
		b.WriteString(gTag + "(" + strconv.Quote(ins.Name) + ", " + key + ", " + attrs(ins.Attrs) + ", ")
		list(b, ins.Children)
		b.WriteByte(')')
	case runtime.OpComponent, runtime.OpPartial:
		fn := gControl + "("
		name := strconv.Quote(ins.Name)
		if ins.Op == runtime.OpPartial {
			switch ins.Mode {
			case runtime.InlinePartial:
				fn = gInline + "("
			case runtime.DynamicPartial:
				fn, name = gPartial+"(", slot(ins.Target)
			default:
				fn = gPartial + "("
			}
		}
		b.WriteString(fn + name + ", " + key + ", " + attrs(ins.Attrs))
		for _, opt := range ins.Options {
			b.WriteString(", " + option(opt))
		}
		for _, co := range ins.Contents {
			b.WriteString(", " + gContent + "(" + strconv.Quote(co.Name) + ", B[" + strconv.Itoa(co.Body) + "])")
		}
		b.WriteByte(')')
	case runtime.OpIf:
		for i, br := range ins.Branches {
			switch {
			case i == 0:
				b.WriteString(gIf + "(" + slot(br.Test) + ", ")
			case br.Test == runtime.NoExpr:
				b.WriteString(els + "(")
			default:
				b.WriteString(elif + "(" + slot(br.Test) + ", ")
			}
			list(b, br.Children)
			b.WriteByte(')')
		}
		b.WriteString(fi + "()")
	case runtime.OpFor:
		b.WriteString(gFor + "(" + slot(ins.Init) + ", " + slot(ins.Test) + ", " + slot(ins.Update) + ", ")
		list(b, ins.Children)
		b.WriteByte(')')
	case runtime.OpForeach:
		b.WriteString(gForeach + "(" + slot(ins.Collection) + ", " + strconv.Quote(ins.Index) + ", " + strconv.Quote(ins.Iterator) + ", ")
		list(b, ins.Children)
		b.WriteByte(')')
	}
}

func slot(i int) string {
	if i == runtime.NoExpr {
		return "null"
	}
	return "E[" + strconv.Itoa(i) + "]"
}

func segments(segs []runtime.Segment) string {
	if len(segs) == 0 {
		return `""`
	}
	parts := make([]string, len(segs))
	for i, s := range segs {
		switch s.Kind {
		case runtime.TextSegment:
			parts[i] = strconv.Quote(s.Text)
		case runtime.ValueSegment:
			v, _ := json.Marshal(s.Value)
			parts[i] = string(v)
		case runtime.TranslationSegment:
			parts[i] = mTranslate + "(" + strconv.Quote(s.Text) + ", " + strconv.Quote(s.Context) + ")"
		case runtime.ExprSegment:
			parts[i] = gExpr + "(" + slot(s.Expr) + ")"
		}
	}
	return strings.Join(parts, " + ")
}

func attrs(specs []*runtime.AttrSpec) string {
	if len(specs) == 0 {
		return "{}"
	}
	parts := make([]string, len(specs))
	for i, a := range specs {
		var v string
		switch a.Kind {
		case runtime.BindAttr:
			v = gScope + "(" + slot(a.Expr) + ")"
		case runtime.EventAttr:
			v = slot(a.Expr)
		default:
			v = segments(a.Segments)
		}
		parts[i] = strconv.Quote(string(a.Kind)+":"+a.Name) + ": " + v
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func option(o *runtime.OptionSpec) string {
	var v string
	switch o.Type {
	case "Array":
		items := make([]string, len(o.Items))
		for i, it := range o.Items {
			items[i] = option(it)
		}
		v = "[" + strings.Join(items, ", ") + "]"
	case "Object":
		props := make([]string, len(o.Properties))
		for i, p := range o.Properties {
			props[i] = option(p)
		}
		v = "{" + strings.Join(props, ", ") + "}"
	default:
		v = segments(o.Segments)
	}
	if o.Name == "" {
		return v
	}
	return strconv.Quote(o.Name) + ": " + v
}
