// Package codename hands out unique "The {Name}" display names for gadgets.
//
// Uniqueness is checked through a caller-supplied lookup before the name is
// returned. The check is a pre-filter only: two concurrent callers can draw
// the same free name, so the store's unique index stays the final authority.
//
// With a small pool every name is eventually taken. Generate then gives up
// after MaxAttempts draws and returns ErrPoolExhausted rather than spinning.
package codename

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var ErrPoolExhausted = errors.New("codename pool exhausted")

// DefaultPool is used when no pool is configured
var DefaultPool = []string{
	"Nightingale",
	"Kraken",
	"Phoenix",
	"Shadow",
	"Eagle",
	"Viper",
	"Storm",
}

const DefaultMaxAttempts = 100

// LookupFunc reports whether a codename is already in use by any gadget,
// including destroyed and decommissioned ones.
type LookupFunc func(codename string) (bool, error)

type Generator struct {
	pool        []string
	maxAttempts int
	intn        func(n int) int
}

// NewGenerator trims and de-duplicates pool, falling back to DefaultPool when
// nothing usable is left. maxAttempts <= 0 means DefaultMaxAttempts.
func NewGenerator(pool []string, maxAttempts int) *Generator {
	seen := make(map[string]bool, len(pool))
	var names []string
	for _, name := range pool {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		names = append([]string(nil), DefaultPool...)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Generator{
		pool:        names,
		maxAttempts: maxAttempts,
		intn:        rand.IntN,
	}
}

// WithRand swaps the random source, mainly for deterministic tests.
func (g *Generator) WithRand(intn func(n int) int) *Generator {
	g.intn = intn
	return g
}

// Pool returns a copy of the names the generator draws from
func (g *Generator) Pool() []string {
	return append([]string(nil), g.pool...)
}

// Format renders a pool name as a codename
func Format(name string) string {
	return "The " + name
}

// Generate draws random names until exists reports one as free.
func (g *Generator) Generate(exists LookupFunc) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := Format(g.pool[g.intn(len(g.pool))])

		taken, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("codename lookup: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w after %d attempts", ErrPoolExhausted, g.maxAttempts)
}
