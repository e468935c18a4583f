package machine

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Alphabet: character <-> number table
// ---------------------------------------------------------------------------
//
// A space (and the empty string) always maps to -1 and -1 maps back to a
// space. Characters outside the table also read as -1 and are left alone
// by string shifts.

// Alphabet is an ordered set of distinct single-byte characters.
type Alphabet struct {
	chars string
	index [256]int16
}

// DefaultAlphabet is the lowercase latin alphabet a..z.
var DefaultAlphabet = MustAlphabet("abcdefghijklmnopqrstuvwxyz")

// NewAlphabet builds a table from chars. Characters must be distinct,
// single-byte and not a space.
func NewAlphabet(chars string) (*Alphabet, error) {
	if chars == "" {
		return nil, fmt.Errorf("machine: empty alphabet")
	}
	a := &Alphabet{chars: chars}
	for i := range a.index {
		a.index[i] = -1
	}
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		if c == ' ' || c >= 0x80 {
			return nil, fmt.Errorf("machine: alphabet character %q not allowed", c)
		}
		if a.index[c] >= 0 {
			return nil, fmt.Errorf("machine: duplicate alphabet character %q", c)
		}
		a.index[c] = int16(i)
	}
	return a, nil
}

// MustAlphabet is NewAlphabet that panics on error.
func MustAlphabet(chars string) *Alphabet {
	a, err := NewAlphabet(chars)
	if err != nil {
		panic(err)
	}
	return a
}

// Chars returns the table in order.
func (a *Alphabet) Chars() string { return a.chars }

// Size returns the number of characters in the table.
func (a *Alphabet) Size() int { return len(a.chars) }

// CharToNum maps one character to its index, or -1.
func (a *Alphabet) CharToNum(c byte) int64 {
	return int64(a.index[c])
}

// NumToChar maps a number to a character: -1 is a space and non-negative
// numbers wrap modulo the table size. Other negative numbers have no
// character.
func (a *Alphabet) NumToChar(n int64) (byte, bool) {
	switch {
	case n == -1:
		return ' ', true
	case n < 0:
		return 0, false
	}
	return a.chars[n%int64(len(a.chars))], true
}

// ToNum casts a value to a number. Strings read their first character.
func (a *Alphabet) ToNum(v Value) int64 {
	if v.IsNum() {
		return v.num
	}
	if v.str == "" {
		return -1
	}
	return a.CharToNum(v.str[0])
}

// ToStr casts a value to a string. Numbers become one character, or the
// empty string when NumToChar has none.
func (a *Alphabet) ToStr(v Value) string {
	if v.IsStr() {
		return v.str
	}
	c, ok := a.NumToChar(v.num)
	if !ok {
		return ""
	}
	return string(c)
}

// Shift moves every table character of s by n positions, wrapping within
// the table. The intermediate sum is truncated to 32 bits first.
func (a *Alphabet) Shift(s string, n int64) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		k := a.index[c]
		if k < 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte(a.chars[a.mod(wrap32(int64(k)+n))])
	}
	return b.String()
}

func (a *Alphabet) mod(n int64) int64 {
	size := int64(len(a.chars))
	m := n % size
	if m < 0 {
		m += size
	}
	return m
}
