package lsp

import (
	"fmt"
	"strings"
	"unicode"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/procmachine/asm"
	"github.com/chazu/procmachine/machine"
)

var declarations = []string{"proc", "mainproc", "register", "parameter"}

var opDocs = map[string]string{
	"inc":        "`inc \"a\"`\n\nAdds 1 to a. Numbers wrap at 32 bits; strings shift every letter.",
	"dec":        "`dec \"a\"`\n\nSubtracts 1 from a.",
	"add":        "`add \"a\" \"b\"`\n\nNumbers add with 32-bit wrap. A string and a number shift the string's letters. Two strings concatenate.",
	"sub":        "`sub \"a\" \"b\"`\n\nNumbers subtract with 32-bit wrap. A string and a number shift the string's letters back.",
	"set":        "`set \"a\" \"b\"`\n\nCopies the value of b into a.",
	"access":     "`access \"i\" \"s\"`\n\nReplaces i with the character of s at index i, or -1 past the end.",
	"setidx":     "`setidx \"s\" \"c\" \"i\"`\n\nWrites the first character of c into s at index i, padding with spaces.",
	"goto":       "`goto N|end|unset [if \"c\"]`\n\nJumps to instruction N of this procedure. With a condition, jumps only when c is positive.",
	"call":       "`call \"proc\" \"a\" ...`\n\nCalls a procedure. Arguments are passed by reference.",
	"breakpoint": "`breakpoint [if \"c\"]`\n\nPauses a debugging session. Stepping again continues past it.",
	"proc":       "`proc \"name\" {`\n\nStarts a procedure.",
	"mainproc":   "`mainproc \"name\" {`\n\nStarts the entry procedure. Its first parameter holds the output.",
	"register":   "`register \"name\" = 0`\n\nDeclares a register with an initial number or string.",
	"parameter":  "`parameter \"name\"`\n\nDeclares a register bound to the caller's argument.",
}

// --- Text extraction helpers ---

func lineAt(text string, line int) string {
	lines := strings.Split(text, "\n")
	if line < 0 || line >= len(lines) {
		return ""
	}
	return strings.TrimRight(lines[line], "\r")
}

func clampCol(line string, pos protocol.Position) int {
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return col
}

func isWordChar(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_'
}

// tokenLength is the length of the bare word or quoted string at col.
func tokenLength(line string, col int) int {
	if col < 0 || col >= len(line) {
		return 0
	}
	if line[col] == '"' {
		if end := strings.IndexByte(line[col+1:], '"'); end >= 0 {
			return end + 2
		}
		return len(line) - col
	}
	n := 0
	for col+n < len(line) && isWordChar(line[col+n]) {
		n++
	}
	return n
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line := lineAt(text, int(pos.Line))
	col := clampCol(line, pos)

	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	return line[start:col]
}

// extractWord returns the full bare word under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line := lineAt(text, int(pos.Line))
	col := clampCol(line, pos)

	start := col
	for start > 0 && isWordChar(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(line[end]) {
		end++
	}
	return line[start:end]
}

// quoted describes the string literal the cursor is in.
type quoted struct {
	text  string // raw text between the quotes, up to the closing quote
	start int    // column of the opening quote
	index int    // position among the quoted strings of the line
}

// quotedAt finds the string literal containing col. Escaped quotes are
// honoured.
func quotedAt(line string, col int) (quoted, bool) {
	index := 0
	for i := 0; i < len(line); i++ {
		if line[i] != '"' {
			continue
		}
		start := i
		for i++; i < len(line) && line[i] != '"'; i++ {
			if line[i] == '\\' {
				i++
			}
		}
		end := i
		if end > len(line) {
			end = len(line)
		}
		if col > start && col <= end {
			return quoted{text: line[start+1 : end], start: start, index: index}, true
		}
		if start >= col {
			break
		}
		index++
	}
	return quoted{}, false
}

func firstWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// --- Completion ---

func complete(text string, pos protocol.Position) []protocol.CompletionItem {
	line := lineAt(text, int(pos.Line))
	col := clampCol(line, pos)
	syms := asm.Outline(text)

	if q, ok := quotedAt(line, col); ok {
		prefix := q.text[:col-q.start-1]
		if firstWord(line) == "call" && q.index == 0 {
			return nameItems(syms, prefix, nil, protocol.CompletionItemKindFunction)
		}
		return nameItems(syms, prefix, asm.ProcAt(syms, int(pos.Line)+1), protocol.CompletionItemKindVariable)
	}

	prefix := extractPrefix(text, pos)
	if strings.TrimSpace(line[:col-len(prefix)]) != "" {
		return nil
	}
	var items []protocol.CompletionItem
	lower := strings.ToLower(prefix)
	add := func(word, detail string) {
		if !strings.HasPrefix(word, lower) {
			return
		}
		kind := protocol.CompletionItemKindKeyword
		label := word
		items = append(items, protocol.CompletionItem{Label: label, Kind: &kind, Detail: &detail, InsertText: &label})
	}
	for _, op := range machine.Ops() {
		add(strings.ToLower(op.String()), "instruction")
	}
	for _, kw := range declarations {
		add(kw, "declaration")
	}
	return items
}

// nameItems lists procedure names, or the registers of proc when proc is
// not nil, that start with prefix.
func nameItems(syms []asm.Symbol, prefix string, proc *asm.Symbol, kind protocol.CompletionItemKind) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	for _, sym := range syms {
		if proc == nil && sym.Kind != asm.SymbolProc {
			continue
		}
		if proc != nil && (sym.Kind == asm.SymbolProc || sym.Proc != proc.Name || sym.Line < proc.Line) {
			continue
		}
		if proc != nil && proc.EndLine != 0 && sym.Line > proc.EndLine {
			continue
		}
		if !strings.HasPrefix(sym.Name, prefix) {
			continue
		}
		k := kind
		detail := sym.Kind.String()
		label := sym.Name
		items = append(items, protocol.CompletionItem{Label: label, Kind: &k, Detail: &detail, InsertText: &label})
	}
	return items
}

// --- Hover ---

func hover(text string, pos protocol.Position) *protocol.Hover {
	line := lineAt(text, int(pos.Line))
	col := clampCol(line, pos)

	if q, ok := quotedAt(line, col); ok {
		sym := resolve(text, line, int(pos.Line)+1, q)
		if sym == nil {
			return nil
		}
		return markdown(symbolDoc(text, sym))
	}

	word := strings.ToLower(extractWord(text, pos))
	doc, ok := opDocs[word]
	if !ok {
		return nil
	}
	return markdown(doc)
}

func markdown(s string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: s,
		},
	}
}

func symbolDoc(text string, sym *asm.Symbol) string {
	decl := strings.TrimSpace(lineAt(text, sym.Line-1))
	switch sym.Kind {
	case asm.SymbolProc:
		kind := "procedure"
		if sym.Main {
			kind = "entry procedure"
		}
		return fmt.Sprintf("**%s** (%s, line %d)", sym.Name, kind, sym.Line)
	default:
		return fmt.Sprintf("**%s** %s of `%s`\n\n`%s`", sym.Name, sym.Kind, sym.Proc, decl)
	}
}

// resolve finds the declaration a quoted name refers to.
func resolve(text, line string, lineNo int, q quoted) *asm.Symbol {
	syms := asm.Outline(text)
	name := q.text
	word := firstWord(line)

	if (word == "call" && q.index == 0) || word == "proc" || word == "mainproc" {
		for i := range syms {
			if syms[i].Kind == asm.SymbolProc && syms[i].Name == name {
				return &syms[i]
			}
		}
		return nil
	}
	proc := asm.ProcAt(syms, lineNo)
	if proc == nil {
		return nil
	}
	for i := range syms {
		s := &syms[i]
		if s.Kind != asm.SymbolProc && s.Proc == proc.Name && s.Name == name && s.Line >= proc.Line {
			return s
		}
	}
	return nil
}

// --- Definition ---

func definition(uri protocol.DocumentUri, text string, pos protocol.Position) []protocol.Location {
	line := lineAt(text, int(pos.Line))
	q, ok := quotedAt(line, clampCol(line, pos))
	if !ok {
		return nil
	}
	sym := resolve(text, line, int(pos.Line)+1, q)
	if sym == nil {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: symbolRange(text, sym)}}
}

func symbolRange(text string, sym *asm.Symbol) protocol.Range {
	line := protocol.UInteger(sym.Line - 1)
	start := protocol.UInteger(sym.Col - 1)
	end := start + protocol.UInteger(tokenLength(lineAt(text, sym.Line-1), sym.Col-1))
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: start},
		End:   protocol.Position{Line: line, Character: end},
	}
}

// --- Document symbols ---

func documentSymbols(text string) []protocol.DocumentSymbol {
	var out []protocol.DocumentSymbol
	for _, sym := range asm.Outline(text) {
		r := symbolRange(text, &sym)
		ds := protocol.DocumentSymbol{Name: sym.Name, Range: r, SelectionRange: r}
		switch sym.Kind {
		case asm.SymbolProc:
			ds.Kind = protocol.SymbolKindFunction
			if sym.EndLine > 0 {
				ds.Range.Start.Character = 0
				ds.Range.End = protocol.Position{Line: protocol.UInteger(sym.EndLine - 1), Character: 1}
			}
			out = append(out, ds)
		default:
			ds.Kind = protocol.SymbolKindVariable
			detail := sym.Kind.String()
			ds.Detail = &detail
			if n := len(out); n > 0 && out[n-1].Name == sym.Proc {
				out[n-1].Children = append(out[n-1].Children, ds)
			} else {
				out = append(out, ds)
			}
		}
	}
	return out
}
