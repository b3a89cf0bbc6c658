package runtime

import (
	"fmt"
	"path"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	werrors "github.com/sambeau/wml/pkg/wml/errors"
	"github.com/sambeau/wml/pkg/wml/logger"
)

// Decorator transforms a value. args[0] is the decorated value.
type Decorator func(args []any) (any, error)

// Translator resolves translation keys for rk().
type Translator interface {
	Translate(text, context string) string
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(text, context string) string

func (f TranslatorFunc) Translate(text, context string) string { return f(text, context) }

// Methods is the low-level helper object compiled expressions call into.
// A Methods value is read-only during rendering and may be shared.
type Methods struct {
	Decorators   map[string]Decorator
	Translator   Translator
	ResourceRoot string
	Logger       logger.Logger
}

// MethodAliases maps the short names used in compiled expression bodies to
// Methods operations. Bodies reference only the short names.
var MethodAliases = map[string]string{
	"s":  "Sanitize",
	"g":  "Get",
	"sp": "Set",
	"d":  "Decorate",
	"c":  "Call",
	"c2": "Call2",
	"u":  "ResourceURL",
	"rk": "Translate",
	"dg": "Debug",
}

// NewMethods returns Methods with no decorators and an identity translator.
func NewMethods() *Methods {
	return &Methods{Decorators: map[string]Decorator{}, Logger: logger.NullLogger()}
}

// Get reads path from obj. A null or undefined step yields Undefined rather
// than an error.
func (m *Methods) Get(obj any, path []string) any {
	v := obj
	for _, name := range path {
		if IsNullish(v) {
			return Undefined
		}
		v = property(v, name)
	}
	return v
}

// Set assigns value to the last element of path under obj.
func (m *Methods) Set(obj any, path []string, value any) error {
	if len(path) == 0 {
		return nil
	}
	target := m.Get(obj, path[:len(path)-1])
	name := path[len(path)-1]
	if IsNullish(target) {
		return werrors.New("RUNTIME-0006", map[string]any{"Value": nullName(target), "Property": name})
	}
	return setProperty(target, name, value)
}

// Call invokes fn with this as the invocation context.
func (m *Methods) Call(this any, fn any, args []any, name string) (any, error) {
	switch f := fn.(type) {
	case Function:
		return f(this, args)
	case func(this any, args []any) (any, error):
		return f(this, args)
	case func(args ...any) (any, error):
		return f(args...)
	case func(args ...any) any:
		return f(args...), nil
	case nil, undefined:
		return nil, werrors.New("RUNTIME-0001", map[string]any{"Name": name})
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, werrors.New("RUNTIME-0001", map[string]any{"Name": name})
	}
	return callReflect(rv, args, name)
}

// Call2 invokes the method at path on obj, with the owning object as the
// invocation context. Go methods are found by their exported name.
func (m *Methods) Call2(obj any, path []string, args []any) (any, error) {
	owner := obj
	for i, name := range path {
		if IsNullish(owner) {
			return nil, werrors.New("RUNTIME-0002", map[string]any{"Value": nullName(owner), "Property": name})
		}
		if i == len(path)-1 {
			break
		}
		owner = property(owner, name)
	}
	name := path[len(path)-1]
	fn := property(owner, name)
	if IsUndefined(fn) {
		if method, ok := goMethod(owner, name); ok {
			return callReflect(method, args, strings.Join(path, "."))
		}
	}
	return m.Call(owner, fn, args, strings.Join(path, "."))
}

// Decorate applies the named decorator.
func (m *Methods) Decorate(name string, args []any) (any, error) {
	d, ok := m.Decorators[name]
	if !ok {
		return nil, werrors.New("CODEGEN-0002", map[string]any{"Name": name}).WithSuggestion(name, m.decoratorNames())
	}
	return d(args)
}

func (m *Methods) decoratorNames() []string {
	names := make([]string, 0, len(m.Decorators))
	for name := range m.Decorators {
		names = append(names, name)
	}
	return names
}

// ResourceURL resolves a resource path against the configured root.
// Absolute URLs pass through.
func (m *Methods) ResourceURL(p string) string {
	if strings.Contains(p, "://") || strings.HasPrefix(p, "//") || m.ResourceRoot == "" {
		return p
	}
	root := strings.TrimSuffix(m.ResourceRoot, "/")
	return root + path.Clean("/"+p)
}

// Translate resolves a translation key. Without a translator the text is
// returned as is.
func (m *Methods) Translate(text, context string) string {
	if m.Translator == nil {
		return text
	}
	return m.Translator.Translate(text, context)
}

// Debug logs the values reachable from an expression.
func (m *Methods) Debug(values ...any) {
	if m.Logger == nil {
		return
	}
	m.Logger.LogLine(append([]any{"debug:"}, values...)...)
}

func nullName(v any) string {
	if v == nil {
		return "null"
	}
	return "undefined"
}

// property reads one named property.
func property(v any, name string) any {
	switch x := v.(type) {
	case map[string]any:
		if val, ok := x[name]; ok {
			return val
		}
		return Undefined
	case Getter:
		if val, ok := x.Get(name); ok {
			return val
		}
		return Undefined
	case []any:
		if name == "length" {
			return float64(len(x))
		}
		if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < len(x) {
			return x[i]
		}
		return Undefined
	case string:
		if name == "length" {
			return float64(len([]rune(x)))
		}
		if i, err := strconv.Atoi(name); err == nil {
			r := []rune(x)
			if i >= 0 && i < len(r) {
				return string(r[i])
			}
		}
		return Undefined
	}
	return reflectProperty(reflect.ValueOf(v), name)
}

func reflectProperty(rv reflect.Value, name string) any {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Undefined
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Undefined
		}
		val := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !val.IsValid() {
			return Undefined
		}
		return val.Interface()
	case reflect.Slice, reflect.Array:
		if name == "length" {
			return float64(rv.Len())
		}
		if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < rv.Len() {
			return rv.Index(i).Interface()
		}
	case reflect.Struct:
		if f, ok := structField(rv, name); ok {
			return f.Interface()
		}
	}
	return Undefined
}

// structField finds a field by exact name, json tag, or capitalized name.
func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Name == name || fieldName(f) == name {
			return rv.Field(i), true
		}
	}
	if f := rv.FieldByName(exported(name)); f.IsValid() {
		return f, true
	}
	return reflect.Value{}, false
}

// fieldName is the template-visible name of a struct field.
func fieldName(f reflect.StructField) string {
	if tag, ok := f.Tag.Lookup("json"); ok {
		if name, _, _ := strings.Cut(tag, ","); name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func exported(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func goMethod(owner any, name string) (reflect.Value, bool) {
	if owner == nil {
		return reflect.Value{}, false
	}
	m := reflect.ValueOf(owner).MethodByName(exported(name))
	return m, m.IsValid()
}

func setProperty(target any, name string, value any) error {
	switch x := target.(type) {
	case map[string]any:
		x[name] = value
		return nil
	case Setter:
		return x.Set(name, value)
	case []any:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(x) {
			return fmt.Errorf("index %q out of range", name)
		}
		x[i] = value
		return nil
	}
	rv := reflect.ValueOf(target)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return werrors.New("RUNTIME-0006", map[string]any{"Value": "null", "Property": name})
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			val, err := convert(value, rv.Type().Elem())
			if err != nil {
				return err
			}
			rv.SetMapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()), val)
			return nil
		}
	case reflect.Struct:
		if f, ok := structField(rv, name); ok && f.CanSet() {
			val, err := convert(value, f.Type())
			if err != nil {
				return err
			}
			f.Set(val)
			return nil
		}
	}
	return fmt.Errorf("cannot set property %q on %T", name, target)
}

// convert adapts a template value to a Go parameter or field type.
func convert(v any, t reflect.Type) (reflect.Value, error) {
	if IsNullish(v) {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t.Kind() == reflect.String {
		return reflect.ValueOf(ToString(v)).Convert(t), nil
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

func callReflect(fn reflect.Value, args []any, name string) (any, error) {
	t := fn.Type()
	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		switch {
		case t.IsVariadic() && i >= t.NumIn()-1:
			pt = t.In(t.NumIn() - 1).Elem()
		case i < t.NumIn():
			pt = t.In(i)
		default:
			continue
		}
		v, err := convert(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
		}
		in = append(in, v)
	}
	for len(in) < t.NumIn() && !(t.IsVariadic() && len(in) == t.NumIn()-1) {
		in = append(in, reflect.Zero(t.In(len(in))))
	}
	out := fn.Call(in)
	errType := reflect.TypeOf((*error)(nil)).Elem()
	switch len(out) {
	case 0:
		return Undefined, nil
	case 1:
		if t.Out(0) == errType {
			if err, _ := out[0].Interface().(error); err != nil {
				return nil, err
			}
			return Undefined, nil
		}
		return out[0].Interface(), nil
	default:
		if err, _ := out[len(out)-1].Interface().(error); err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
}
