package puzzles

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chazu/procmachine/machine"
	"gopkg.in/yaml.v3"
)

// CasePuzzle serves a fixed list of cases read from a YAML file. Seeds pick
// cases round robin.
type CasePuzzle struct {
	key    string
	schema []string
	cases  []Case
}

// Case is one input with its expected output.
type Case struct {
	Input  []machine.Value
	Output machine.Value
}

type caseFile struct {
	Key    string     `yaml:"key"`
	Schema []string   `yaml:"schema"`
	Cases  []caseYAML `yaml:"cases"`
}

type caseYAML struct {
	Input  []yamlValue `yaml:"input"`
	Output yamlValue   `yaml:"output"`
}

// yamlValue decodes an integer scalar as a number and any other scalar as a
// string.
type yamlValue struct {
	v machine.Value
}

func (y *yamlValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.AliasNode:
		return y.UnmarshalYAML(node.Alias)
	case yaml.ScalarNode:
	default:
		return fmt.Errorf("line %d: expected a number or string but found %s", node.Line, node.ShortTag())
	}
	if node.Tag == "!!int" {
		n, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		y.v = machine.Num(n)
		return nil
	}
	if len(node.Value) > machine.MaxString {
		return fmt.Errorf("line %d: string is longer than %d characters", node.Line, machine.MaxString)
	}
	y.v = machine.Str(node.Value)
	return nil
}

// LoadCaseFile reads a case-file puzzle.
func LoadCaseFile(path string) (*CasePuzzle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("puzzles: open %s: %w", path, err)
	}
	defer file.Close()
	return decodeCaseFile(file, path)
}

func decodeCaseFile(r io.Reader, path string) (*CasePuzzle, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var raw caseFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("puzzles: %s is empty", path)
		}
		return nil, fmt.Errorf("puzzles: parse %s: %w", path, err)
	}
	if raw.Key == "" {
		return nil, fmt.Errorf("puzzles: %s: key must be provided", path)
	}
	if len(raw.Cases) == 0 {
		return nil, fmt.Errorf("puzzles: %s: no cases", path)
	}
	p := &CasePuzzle{key: raw.Key, schema: raw.Schema}
	for i, c := range raw.Cases {
		if len(raw.Schema) > 0 && len(c.Input) != len(raw.Schema) {
			return nil, fmt.Errorf("puzzles: %s: case %d has %d inputs, schema has %d", path, i+1, len(c.Input), len(raw.Schema))
		}
		in := make([]machine.Value, len(c.Input))
		for j, v := range c.Input {
			in[j] = v.v
		}
		p.cases = append(p.cases, Case{Input: in, Output: c.Output.v})
	}
	return p, nil
}

// LoadDir registers every *.yaml file in dir.
func (r *Registry) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return err
	}
	for _, path := range paths {
		p, err := LoadCaseFile(path)
		if err != nil {
			return err
		}
		r.Register(p)
	}
	return nil
}

func (p *CasePuzzle) Key() string      { return p.key }
func (p *CasePuzzle) Schema() []string { return p.schema }
func (p *CasePuzzle) Cases() []Case    { return p.cases }

func (p *CasePuzzle) Generate(seed uint64) ([]machine.Value, error) {
	c := p.cases[seed%uint64(len(p.cases))]
	return append([]machine.Value(nil), c.Input...), nil
}

// Solve returns the output of the first case whose input matches.
func (p *CasePuzzle) Solve(input []machine.Value) (machine.Value, error) {
	for _, c := range p.cases {
		if equalInputs(c.Input, input) {
			return c.Output, nil
		}
	}
	return machine.Value{}, fmt.Errorf("puzzles: %s: no case for input %v", p.key, input)
}

func equalInputs(a, b []machine.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
