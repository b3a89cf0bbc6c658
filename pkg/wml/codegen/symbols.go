package codegen

import (
	"strconv"
	"sync"
)

// Symbols interns string literals. Compiled bodies reference an interned
// literal as S[i] and every evaluator returns the same string value.
type Symbols struct {
	mu     sync.Mutex
	values []string
	index  map[string]int
}

// NewSymbols creates an empty table.
func NewSymbols() *Symbols {
	return &Symbols{index: map[string]int{}}
}

// Intern returns the slot of s, adding it on first use.
func (s *Symbols) Intern(str string) (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[str]; ok {
		return i, s.values[i]
	}
	i := len(s.values)
	s.values = append(s.values, str)
	s.index[str] = i
	return i, str
}

// Values returns the table in slot order.
func (s *Symbols) Values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.values...)
}

func symbolRef(i int) string { return "S[" + strconv.Itoa(i) + "]" }
