// Package puzzles holds the puzzle collaborators the harness grades
// against: built-in generators and YAML case files.
package puzzles

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/chazu/procmachine/harness"
	"github.com/chazu/procmachine/machine"
)

// Registry maps puzzle keys to puzzles. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[string]harness.Puzzle
}

// NewRegistry returns a registry holding the built-in puzzles.
func NewRegistry() *Registry {
	r := &Registry{m: make(map[string]harness.Puzzle)}
	for _, p := range []harness.Puzzle{Caesar{Shift: 2, Length: 10}, Reverse{MaxLength: 10}, Sum{Max: 1000}} {
		r.m[p.Key()] = p
	}
	return r
}

// Register adds p, replacing any puzzle with the same key.
func (r *Registry) Register(p harness.Puzzle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[p.Key()] = p
}

// Lookup finds a puzzle by key.
func (r *Registry) Lookup(key string) (harness.Puzzle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[key]
	return p, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func rng(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func lowercase(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + r.IntN(26))
	}
	return string(b)
}

func stringInput(input []machine.Value) (string, error) {
	if len(input) != 1 || !input[0].IsStr() {
		return "", fmt.Errorf("puzzles: want one string input, got %v", input)
	}
	return input[0].Text(), nil
}

// ---------------------------------------------------------------------------
// Built-in puzzles
// ---------------------------------------------------------------------------

// Caesar shifts every letter of a lowercase word forward.
type Caesar struct {
	Shift  int
	Length int
}

func (c Caesar) Key() string      { return "caesar" }
func (c Caesar) Schema() []string { return []string{"text"} }

func (c Caesar) Generate(seed uint64) ([]machine.Value, error) {
	return []machine.Value{machine.Str(lowercase(rng(seed), c.Length))}, nil
}

func (c Caesar) Solve(input []machine.Value) (machine.Value, error) {
	s, err := stringInput(input)
	if err != nil {
		return machine.Value{}, err
	}
	b := []byte(s)
	for i, ch := range b {
		if ch >= 'a' && ch <= 'z' {
			b[i] = byte('a' + ((int(ch-'a')+c.Shift)%26+26)%26)
		}
	}
	return machine.Str(string(b)), nil
}

// Reverse reverses a lowercase word of one to MaxLength letters.
type Reverse struct {
	MaxLength int
}

func (Reverse) Key() string      { return "reverse" }
func (Reverse) Schema() []string { return []string{"text"} }

func (p Reverse) Generate(seed uint64) ([]machine.Value, error) {
	r := rng(seed)
	return []machine.Value{machine.Str(lowercase(r, 1+r.IntN(p.MaxLength)))}, nil
}

func (Reverse) Solve(input []machine.Value) (machine.Value, error) {
	s, err := stringInput(input)
	if err != nil {
		return machine.Value{}, err
	}
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return machine.Str(string(b)), nil
}

// Sum adds two numbers below Max into the output register.
type Sum struct {
	Max int
}

func (Sum) Key() string      { return "sum" }
func (Sum) Schema() []string { return []string{"out", "a", "b"} }

func (p Sum) Generate(seed uint64) ([]machine.Value, error) {
	r := rng(seed)
	return []machine.Value{
		machine.Num(0),
		machine.Num(int64(r.IntN(p.Max))),
		machine.Num(int64(r.IntN(p.Max))),
	}, nil
}

func (Sum) Solve(input []machine.Value) (machine.Value, error) {
	if len(input) != 3 || !input[1].IsNum() || !input[2].IsNum() {
		return machine.Value{}, fmt.Errorf("puzzles: sum wants (out, a, b) numbers, got %v", input)
	}
	return machine.Num(int64(int32(input[1].Int() + input[2].Int()))), nil
}
