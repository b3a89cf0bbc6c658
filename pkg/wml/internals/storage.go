package internals

import (
	"github.com/sambeau/wml/pkg/wml/ast"
	"github.com/sambeau/wml/pkg/wml/walker"
)

// Storage de-duplicates programs by their canonical text and allocates
// expression table slots. One Storage serves one compiled template.
type Storage struct {
	parser walker.Parser
	byText map[string]*ast.Program
	table  []*ast.Program
}

// NewStorage creates a Storage that parses synthetic programs with p.
func NewStorage(p walker.Parser) *Storage {
	return &Storage{parser: p, byText: map[string]*ast.Program{}}
}

// Intern returns the program already stored under p's text, or stores p.
func (s *Storage) Intern(p *ast.Program) *ast.Program {
	key := p.String()
	if existing, ok := s.byText[key]; ok {
		return existing
	}
	s.byText[key] = p
	return p
}

// Find looks a program up by canonical text.
func (s *Storage) Find(text string) (*ast.Program, bool) {
	p, ok := s.byText[text]
	return p, ok
}

// Parse parses text and interns the result.
func (s *Storage) Parse(text string) (*ast.Program, error) {
	if p, ok := s.byText[text]; ok {
		return p, nil
	}
	p, err := s.parser.Parse(text)
	if err != nil {
		return nil, err
	}
	return s.Intern(p), nil
}

// Allocate gives p an expression table slot if it has none and returns it.
func (s *Storage) Allocate(p *ast.Program) int {
	p = s.Intern(p)
	if p.ReferenceID < 0 {
		p.ReferenceID = len(s.table)
		s.table = append(s.table, p)
	}
	return p.ReferenceID
}

// Table returns the allocated programs in slot order.
func (s *Storage) Table() []*ast.Program {
	return s.table
}

// Parser returns the parser used for synthetic programs.
func (s *Storage) Parser() walker.Parser {
	return s.parser
}
