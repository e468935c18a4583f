package asm

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/chazu/procmachine/machine"
)

// ---------------------------------------------------------------------------
// Lexer: splits one line into lexemes
// ---------------------------------------------------------------------------

type lexKind int

const (
	lexWord lexKind = iota
	lexString
	lexInt
	lexLBrace
	lexRBrace
	lexEquals
	lexComment
)

type lexeme struct {
	kind lexKind
	text string // decoded text for strings, raw otherwise
	col  int
}

func scanLine(line string, lineNo int) ([]lexeme, error) {
	var out []lexeme
	i := 0
	for i < len(line) {
		c := line[i]
		col := i + 1
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case strings.HasPrefix(line[i:], "//"):
			out = append(out, lexeme{kind: lexComment, text: line[i+2:], col: col})
			return out, nil
		case c == '{':
			out = append(out, lexeme{kind: lexLBrace, text: "{", col: col})
			i++
		case c == '}':
			out = append(out, lexeme{kind: lexRBrace, text: "}", col: col})
			i++
		case c == '=':
			out = append(out, lexeme{kind: lexEquals, text: "=", col: col})
			i++
		case c == '"':
			end := i + 1
			for end < len(line) && line[end] != '"' {
				if line[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(line) {
				return nil, errorf(lineNo, col, "unterminated string")
			}
			s, err := strconv.Unquote(line[i : end+1])
			if err != nil {
				return nil, errorf(lineNo, col, "bad string literal %s", line[i:end+1])
			}
			out = append(out, lexeme{kind: lexString, text: s, col: col})
			i = end + 1
		case c == '-' || isDigit(c):
			end := i + 1
			for end < len(line) && isDigit(line[end]) {
				end++
			}
			if c == '-' && end == i+1 {
				return nil, errorf(lineNo, col, "expected digits after '-'")
			}
			out = append(out, lexeme{kind: lexInt, text: line[i:end], col: col})
			i = end
		case isWordByte(c):
			end := i
			for end < len(line) && isWordByte(line[end]) {
				end++
			}
			out = append(out, lexeme{kind: lexWord, text: line[i:end], col: col})
			i = end
		default:
			return nil, errorf(lineNo, col, "unexpected character %q", c)
		}
	}
	return out, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isWordByte(c byte) bool {
	return c < 0x80 && (unicode.IsLetter(rune(c)) || isDigit(c) || c == '_')
}

// ---------------------------------------------------------------------------
// Tokenize: phase one of parsing
// ---------------------------------------------------------------------------

// Tokenize classifies every non-blank line of text. It stops at the first
// malformed line.
func Tokenize(text string) ([]Token, error) {
	var toks []Token
	for i, line := range strings.Split(text, "\n") {
		tok, ok, err := tokenizeLine(line, i+1)
		if err != nil {
			return toks, err
		}
		if ok {
			toks = append(toks, tok)
		}
	}
	return toks, nil
}

// tokenizeLine returns ok=false for blank lines.
func tokenizeLine(line string, lineNo int) (Token, bool, error) {
	lx, err := scanLine(line, lineNo)
	if err != nil {
		return Token{}, false, err
	}
	if len(lx) == 0 {
		return Token{}, false, nil
	}
	if lx[0].kind == lexComment {
		text := strings.TrimPrefix(lx[0].text, " ")
		return Token{Kind: TokenComment, Line: lineNo, Col: lx[0].col, Text: text}, true, nil
	}
	// Trailing comments are dropped.
	if last := lx[len(lx)-1]; last.kind == lexComment {
		lx = lx[:len(lx)-1]
	}

	c := &cursor{lx: lx, line: lineNo, eol: len(line) + 1}
	first := lx[0]
	tok := Token{Line: lineNo, Col: first.col}

	switch {
	case first.kind == lexRBrace:
		c.next()
		tok.Kind = TokenDefEnd

	case first.kind != lexWord:
		return Token{}, false, errorf(lineNo, first.col, "expected a keyword")

	case first.text == "proc" || first.text == "mainproc":
		c.next()
		tok.Kind = TokenDefStart
		tok.Main = first.text == "mainproc"
		name, err := c.expect(lexString, "procedure name")
		if err != nil {
			return Token{}, false, err
		}
		tok.Name, tok.NameCol = name.text, name.col
		if _, err := c.expect(lexLBrace, "'{'"); err != nil {
			return Token{}, false, err
		}

	case first.text == "register" || first.text == "parameter":
		c.next()
		tok.Kind = TokenRegister
		tok.Param = first.text == "parameter"
		name, err := c.expect(lexString, "register name")
		if err != nil {
			return Token{}, false, err
		}
		tok.Name, tok.NameCol = name.text, name.col
		if !tok.Param {
			if _, err := c.expect(lexEquals, "'='"); err != nil {
				return Token{}, false, err
			}
			v, err := c.value()
			if err != nil {
				return Token{}, false, err
			}
			tok.Value = v
		}

	case first.text == "goto":
		c.next()
		tok.Kind = TokenGoto
		if err := c.jump(&tok); err != nil {
			return Token{}, false, err
		}
		cond, err := c.condition()
		if err != nil {
			return Token{}, false, err
		}
		tok.Cond = cond

	default:
		op, ok := machine.ParseOp(first.text)
		if !ok || op == machine.OpGoto {
			return Token{}, false, errorf(lineNo, first.col, "unknown instruction %q", first.text)
		}
		c.next()
		tok.Kind = TokenOp
		tok.Op = op
		if err := c.operands(&tok); err != nil {
			return Token{}, false, err
		}
	}

	if !c.done() {
		return Token{}, false, errorf(lineNo, c.peek().col, "unexpected %q", c.peek().text)
	}
	return tok, true, nil
}

type cursor struct {
	lx   []lexeme
	pos  int
	line int
	eol  int
}

func (c *cursor) done() bool   { return c.pos >= len(c.lx) }
func (c *cursor) peek() lexeme { return c.lx[c.pos] }

func (c *cursor) next() lexeme {
	l := c.lx[c.pos]
	c.pos++
	return l
}

func (c *cursor) col() int {
	if c.done() {
		return c.eol
	}
	return c.peek().col
}

func (c *cursor) expect(kind lexKind, what string) (lexeme, error) {
	if c.done() || c.peek().kind != kind {
		return lexeme{}, errorf(c.line, c.col(), "expected %s", what)
	}
	return c.next(), nil
}

func (c *cursor) value() (machine.Value, error) {
	if c.done() {
		return machine.Value{}, errorf(c.line, c.col(), "expected a number or string")
	}
	l := c.next()
	switch l.kind {
	case lexInt:
		n, err := strconv.ParseInt(l.text, 10, 64)
		if err != nil {
			return machine.Value{}, errorf(c.line, l.col, "number %s is out of range", l.text)
		}
		return machine.Num(n), nil
	case lexString:
		if len(l.text) > machine.MaxString {
			return machine.Value{}, errorf(c.line, l.col, "string is longer than %d characters", machine.MaxString)
		}
		return machine.Str(l.text), nil
	}
	return machine.Value{}, errorf(c.line, l.col, "expected a number or string")
}

func (c *cursor) operand() (Operand, bool) {
	if c.done() {
		return Operand{}, false
	}
	l := c.peek()
	switch {
	case l.kind == lexString:
		c.next()
		return Operand{Name: l.text, Col: l.col}, true
	case l.kind == lexWord && l.text == "unset":
		c.next()
		return Operand{Unset: true, Col: l.col}, true
	}
	return Operand{}, false
}

func (c *cursor) jump(tok *Token) error {
	if c.done() {
		return errorf(c.line, c.col(), "expected a line number, end or unset")
	}
	l := c.next()
	tok.JumpCol = l.col
	switch {
	case l.kind == lexInt:
		n, err := strconv.Atoi(l.text)
		if err != nil || n < 1 {
			return errorf(c.line, l.col, "line number must be 1 or more")
		}
		tok.Jump, tok.JumpLine = JumpLine, n
	case l.kind == lexWord && l.text == "end":
		tok.Jump = JumpEnd
	case l.kind == lexWord && l.text == "unset":
		tok.Jump = JumpUnset
	default:
		return errorf(c.line, l.col, "expected a line number, end or unset")
	}
	return nil
}

func (c *cursor) condition() (*Operand, error) {
	if c.done() {
		return nil, nil
	}
	l := c.peek()
	if l.kind != lexWord || l.text != "if" {
		return nil, errorf(c.line, l.col, "expected 'if' or end of line")
	}
	c.next()
	op, ok := c.operand()
	if !ok {
		return nil, errorf(c.line, c.col(), "expected a register name after 'if'")
	}
	return &op, nil
}

func (c *cursor) operands(tok *Token) error {
	switch tok.Op {
	case machine.OpBreakpoint:
		cond, err := c.condition()
		tok.Cond = cond
		return err
	case machine.OpCall:
		proc, ok := c.operand()
		if !ok {
			return errorf(c.line, c.col(), "expected a procedure name")
		}
		tok.Operands = append(tok.Operands, proc)
		for {
			op, ok := c.operand()
			if !ok {
				return nil
			}
			tok.Operands = append(tok.Operands, op)
		}
	}
	for i := 0; i < tok.Op.Arity(); i++ {
		op, ok := c.operand()
		if !ok {
			return errorf(c.line, c.col(), "%s needs %d register operands", tok.Op, tok.Op.Arity())
		}
		tok.Operands = append(tok.Operands, op)
	}
	return nil
}
