// Package machine implements the procedure register machine.
//
// This package contains:
//   - the Value model (numbers and strings) and the alphabet table
//   - the static program graph: procedures, registers and nodes
//   - selection extraction and insertion for editors
//   - the runtime state, call stack and single-step interpreter
//   - typed interpreter failures
package machine

// Hard resource ceilings. These are not configurable.
const (
	// MaxStack is the deepest the call stack may grow.
	MaxStack = 1024

	// MaxString is the longest string a register may hold.
	MaxString = 1024

	// MaxSteps is the instruction budget of a graded run.
	MaxSteps = 64 * MaxStack
)
