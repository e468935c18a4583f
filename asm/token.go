package asm

import (
	"fmt"

	"github.com/chazu/procmachine/machine"
)

// ---------------------------------------------------------------------------
// Tokens: one per non-blank source line
// ---------------------------------------------------------------------------

// TokenKind classifies a source line.
type TokenKind int

const (
	TokenComment  TokenKind = iota // // text
	TokenDefStart                  // proc "name" {   mainproc "name" {
	TokenDefEnd                    // }
	TokenRegister                  // register "name" = 1   parameter "name"
	TokenGoto                      // goto 3 if "c"
	TokenOp                        // add "a" "b"
)

var tokenNames = map[TokenKind]string{
	TokenComment:  "COMMENT",
	TokenDefStart: "DEF",
	TokenDefEnd:   "END",
	TokenRegister: "REGISTER",
	TokenGoto:     "GOTO",
	TokenOp:       "OP",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", k)
}

// Operand is a register or procedure reference by name.
// Unset operands were written as the bare word unset.
type Operand struct {
	Name  string
	Unset bool
	Col   int
}

// JumpKind says how a goto line names its destination.
type JumpKind int

const (
	JumpLine JumpKind = iota
	JumpEnd
	JumpUnset
)

// Token is one classified line. Only the fields relevant to Kind are set.
type Token struct {
	Kind TokenKind
	Line int // 1-based
	Col  int // 1-based column of the first character

	// TokenComment
	Text string

	// TokenDefStart, TokenRegister
	Name    string
	NameCol int
	Main    bool

	// TokenRegister
	Param bool
	Value machine.Value

	// TokenGoto
	Jump     JumpKind
	JumpLine int
	JumpCol  int

	// TokenGoto, TokenOp (breakpoint)
	Cond *Operand

	// TokenOp. For calls the first operand names the procedure.
	Op       machine.Op
	Operands []Operand
}

// ParseError is a syntax or resolution error with its source position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

func errorf(line, col int, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}
