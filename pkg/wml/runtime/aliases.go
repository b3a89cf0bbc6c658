package runtime

import "fmt"

var (
	methodShort    = invert(MethodAliases)
	generatorShort = invert(GeneratorAliases)
)

func invert(aliases map[string]string) map[string]string {
	out := make(map[string]string, len(aliases))
	for short, op := range aliases {
		out[op] = short
	}
	return out
}

// MethodAlias returns the short name compiled bodies use for a Methods
// operation. It panics for an operation with no alias.
func MethodAlias(op string) string {
	short, ok := methodShort[op]
	if !ok {
		panic(fmt.Sprintf("runtime: no method alias for %s", op))
	}
	return short
}

// GeneratorAlias returns the short name compiled bodies use for a generator
// primitive. It panics for a primitive with no alias.
func GeneratorAlias(op string) string {
	short, ok := generatorShort[op]
	if !ok {
		panic(fmt.Sprintf("runtime: no generator alias for %s", op))
	}
	return short
}
