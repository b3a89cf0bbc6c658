package runtime

// DescriptionVersion is the current serialized description version.
const DescriptionVersion = 3

// BodyKind distinguishes template bodies.
type BodyKind string

const (
	RootBody     BodyKind = "ROOT"
	TemplateBody BodyKind = "TEMPLATE"
	ContentBody  BodyKind = "CONTENT"
)

// Description is a compiled template: bodies of instructions referencing
// a shared expression table. It is immutable once built.
type Description struct {
	Version       int           `json:"version"`
	Module        string        `json:"module"`
	Dependencies  []string      `json:"dependencies"`
	Bodies        []*Body       `json:"bodies"`
	ReactiveProps []string      `json:"reactiveProps,omitempty"`
	Expressions   []*Expression `json:"expressions,omitempty"`
	// Internals holds, per scope container, the ranges of the expression
	// table evaluated by a dirty check.
	Internals [][][]int `json:"internals,omitempty"`
	// ChildNames are the name="..." values of the template.
	ChildNames []string `json:"childNames,omitempty"`
	// TranslationKeys are the registered rk() and {[ ]} texts.
	TranslationKeys []TranslationKey `json:"translationKeys,omitempty"`
	// Symbols are the string literals referenced as S[i] by expression
	// bodies.
	Symbols []string `json:"symbols,omitempty"`
}

// TranslationKey is one translatable text of the template.
type TranslationKey struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

// Root returns the ROOT body.
func (d *Description) Root() *Body {
	for _, b := range d.Bodies {
		if b.Kind == RootBody {
			return b
		}
	}
	return nil
}

// Template returns the named TEMPLATE body.
func (d *Description) Template(name string) (*Body, bool) {
	for _, b := range d.Bodies {
		if b.Kind == TemplateBody && b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// TemplateNames lists the TEMPLATE bodies in order.
func (d *Description) TemplateNames() []string {
	var names []string
	for _, b := range d.Bodies {
		if b.Kind == TemplateBody {
			names = append(names, b.Name)
		}
	}
	return names
}

// Body is one executable template body.
type Body struct {
	Kind BodyKind `json:"kind"`
	Name string   `json:"name,omitempty"`
	// Source is a readable rendering of the body in the alias syntax.
	Source   string         `json:"source,omitempty"`
	Children []*Instruction `json:"children"`
	Internal int            `json:"internal"`
}

// Expression is one entry of the expression table.
type Expression struct {
	Source string `json:"source"`
	// Body is the compiled expression in the method alias syntax.
	Body  string `json:"body"`
	Flags uint16 `json:"flags"`
	// Bind and Event record which extra closures the entry carries.
	Bind  bool `json:"bind,omitempty"`
	Event bool `json:"event,omitempty"`

	Eval    Evaluator `json:"-"`
	Assign  Assigner  `json:"-"`
	Handler *Handler  `json:"-"`
}

// Handler is a compiled event handler.
type Handler struct {
	// Name is the method name.
	Name string
	// Context evaluates the object owning the method; nil means the
	// function context.
	Context Evaluator
	Args    []Evaluator
}

// Op is an instruction opcode.
type Op string

const (
	OpText      Op = "text"
	OpElement   Op = "element"
	OpComponent Op = "component"
	OpPartial   Op = "partial"
	OpIf        Op = "if"
	OpFor       Op = "for"
	OpForeach   Op = "foreach"
)

// PartialMode says how a partial resolves its template.
type PartialMode string

const (
	InlinePartial  PartialMode = "inline"
	StaticPartial  PartialMode = "static"
	DynamicPartial PartialMode = "dynamic"
)

// SegmentKind tags a Segment.
type SegmentKind string

const (
	TextSegment        SegmentKind = "text"
	ValueSegment       SegmentKind = "value"
	ExprSegment        SegmentKind = "expr"
	TranslationSegment SegmentKind = "rk"
)

// Segment is one piece of text or attribute content.
type Segment struct {
	Kind    SegmentKind `json:"kind"`
	Text    string      `json:"text,omitempty"`
	Context string      `json:"context,omitempty"`
	// Value is a constant folded at build time.
	Value any `json:"value"`
	Expr  int `json:"expr,omitempty"`
	// Unsafe output skips sanitizing.
	Unsafe bool `json:"unsafe,omitempty"`
}

// AttrKind says how an attribute is consumed.
type AttrKind string

const (
	HTMLAttr   AttrKind = "attr"
	OptionAttr AttrKind = "option"
	BindAttr   AttrKind = "bind"
	EventAttr  AttrKind = "event"
)

// AttrSpec is an attribute of an element, component or partial.
type AttrSpec struct {
	Name     string         `json:"name"`
	Kind     AttrKind       `json:"kind"`
	Segments []Segment      `json:"segments,omitempty"`
	Expr     int            `json:"expr,omitempty"`
	Binding  *BindingConfig `json:"binding,omitempty"`
}

// OptionSpec is a typed option value.
type OptionSpec struct {
	Name       string        `json:"name,omitempty"`
	Type       string        `json:"type"`
	Segments   []Segment     `json:"segments,omitempty"`
	Items      []*OptionSpec `json:"items,omitempty"`
	Properties []*OptionSpec `json:"properties,omitempty"`
}

// ContentRef points a content option at its CONTENT body.
type ContentRef struct {
	Name string `json:"name"`
	Body int    `json:"body"`
}

// Branch is one arm of an if chain. Test is -1 for a plain else.
type Branch struct {
	Test     int            `json:"test"`
	Children []*Instruction `json:"children"`
	Internal int            `json:"internal"`
}

// Instruction is one node of a body.
type Instruction struct {
	Op   Op     `json:"op"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`

	Segments []Segment      `json:"segments,omitempty"`
	Attrs    []*AttrSpec    `json:"attrs,omitempty"`
	Children []*Instruction `json:"children,omitempty"`
	Void     bool           `json:"void,omitempty"`

	Mode     PartialMode   `json:"mode,omitempty"`
	Target   int           `json:"target,omitempty"`
	Options  []*OptionSpec `json:"options,omitempty"`
	Contents []ContentRef  `json:"contents,omitempty"`

	Branches []*Branch `json:"branches,omitempty"`

	Init       int      `json:"init,omitempty"`
	Test       int      `json:"test,omitempty"`
	Update     int      `json:"update,omitempty"`
	Collection int      `json:"collection,omitempty"`
	Index      string   `json:"index,omitempty"`
	Iterator   string   `json:"iterator,omitempty"`
	Names      []string `json:"names,omitempty"`

	// Internal indexes Description.Internals, -1 when none.
	Internal int `json:"internal"`
}

// NoExpr marks an absent expression slot.
const NoExpr = -1
