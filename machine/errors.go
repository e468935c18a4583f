package machine

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Interpreter failures
// ---------------------------------------------------------------------------
//
// Every failure the interpreter can report is an *Error. Callers grading a
// run turn these into a runtime-error verdict; anything else escaping Step
// is a bug.

// ErrorKind classifies an interpreter failure.
type ErrorKind uint8

const (
	KindBadParam ErrorKind = iota + 1
	KindNoRegister
	KindNoNodeToGoto
	KindNoProcedure
	KindStringTooLong
	KindStackOverflow
	KindBadOperands
)

var kindNames = [...]string{
	KindBadParam:      "BadParam",
	KindNoRegister:    "NoRegister",
	KindNoNodeToGoto:  "NoNodeToGoto",
	KindNoProcedure:   "NoProcedure",
	KindStringTooLong: "StringTooLong",
	KindStackOverflow: "StackOverflow",
	KindBadOperands:   "BadOperands",
}

func (k ErrorKind) String() string {
	if k == 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
	return kindNames[k]
}

// Error is a typed interpreter failure. Only the fields relevant to Kind
// are set.
type Error struct {
	Kind ErrorKind

	Proc ProcID
	Node NodeID
	Reg  RegID

	// BadParam
	NParam    int
	NProvided int

	// StringTooLong
	Length int
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrBadParam      = &Error{Kind: KindBadParam}
	ErrNoRegister    = &Error{Kind: KindNoRegister}
	ErrNoNodeToGoto  = &Error{Kind: KindNoNodeToGoto}
	ErrNoProcedure   = &Error{Kind: KindNoProcedure}
	ErrStringTooLong = &Error{Kind: KindStringTooLong}
	ErrStackOverflow = &Error{Kind: KindStackOverflow}
	ErrBadOperands   = &Error{Kind: KindBadOperands}
)

// Is matches on kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Error describes the failure for the person who wrote the program.
func (e *Error) Error() string {
	switch e.Kind {
	case KindBadParam:
		return fmt.Sprintf("procedure %d needs %d parameters but %d were provided", e.Proc, e.NParam, e.NProvided)
	case KindNoRegister:
		return fmt.Sprintf("register %d is not declared in procedure %d", e.Reg, e.Proc)
	case KindNoNodeToGoto:
		return fmt.Sprintf("node %d of procedure %d jumps to an instruction that does not exist", e.Node, e.Proc)
	case KindNoProcedure:
		return fmt.Sprintf("procedure %d does not exist", e.Proc)
	case KindStringTooLong:
		return fmt.Sprintf("string of length %d is longer than the limit of %d", e.Length, MaxString)
	case KindStackOverflow:
		return fmt.Sprintf("call stack is deeper than %d frames", MaxStack)
	case KindBadOperands:
		return fmt.Sprintf("node %d of procedure %d subtracts a string from a string", e.Node, e.Proc)
	}
	return "interpreter error " + e.Kind.String()
}

// AsError extracts an interpreter failure from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
