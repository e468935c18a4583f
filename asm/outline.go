package asm

import "strings"

// SymbolKind classifies an outline entry.
type SymbolKind int

const (
	SymbolProc SymbolKind = iota
	SymbolRegister
	SymbolParameter
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolProc:
		return "proc"
	case SymbolRegister:
		return "register"
	case SymbolParameter:
		return "parameter"
	}
	return "unknown"
}

// Symbol is a declaration found in source text. Positions are 1-based.
type Symbol struct {
	Kind    SymbolKind
	Name    string
	Proc    string // enclosing procedure, empty for procedures
	Main    bool
	Line    int
	Col     int // column of the quoted name
	EndLine int // closing brace for procedures; 0 when unclosed
}

// Outline lists the declarations in text. Lines that do not tokenize are
// skipped, so it works on half-edited source.
func Outline(text string) []Symbol {
	var syms []Symbol
	open := -1
	for i, line := range strings.Split(text, "\n") {
		tok, ok, err := tokenizeLine(line, i+1)
		if err != nil || !ok {
			continue
		}
		switch tok.Kind {
		case TokenDefStart:
			syms = append(syms, Symbol{Kind: SymbolProc, Name: tok.Name, Main: tok.Main, Line: tok.Line, Col: tok.NameCol})
			open = len(syms) - 1
		case TokenDefEnd:
			if open >= 0 {
				syms[open].EndLine = tok.Line
				open = -1
			}
		case TokenRegister:
			kind := SymbolRegister
			if tok.Param {
				kind = SymbolParameter
			}
			s := Symbol{Kind: kind, Name: tok.Name, Line: tok.Line, Col: tok.NameCol}
			if open >= 0 {
				s.Proc = syms[open].Name
			}
			syms = append(syms, s)
		}
	}
	return syms
}

// ProcAt returns the procedure whose body contains line, or nil.
func ProcAt(syms []Symbol, line int) *Symbol {
	for i := range syms {
		s := &syms[i]
		if s.Kind != SymbolProc || line < s.Line {
			continue
		}
		if s.EndLine == 0 || line <= s.EndLine {
			return s
		}
	}
	return nil
}
