package machine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Value: number or string register content
// ---------------------------------------------------------------------------

// Kind tells which half of the Value union is populated.
type Kind uint8

const (
	KindNum Kind = iota
	KindStr
)

func (k Kind) String() string {
	if k == KindStr {
		return "string"
	}
	return "number"
}

// Value is the content of a register: either an integer or a string.
// The zero Value is the number 0.
type Value struct {
	kind Kind
	num  int64
	str  string
}

// Num returns a numeric Value. n is truncated to 32-bit two's complement,
// so every literal, input and decoded number lands in register range.
func Num(n int64) Value {
	return Value{kind: KindNum, num: wrap32(n)}
}

// Str returns a string Value. The caller is responsible for the length limit.
func Str(s string) Value {
	return Value{kind: KindStr, str: s}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNum reports whether v holds a number.
func (v Value) IsNum() bool { return v.kind == KindNum }

// IsStr reports whether v holds a string.
func (v Value) IsStr() bool { return v.kind == KindStr }

// Int returns the numeric payload. It is 0 for strings.
func (v Value) Int() int64 { return v.num }

// Text returns the string payload. It is "" for numbers.
func (v Value) Text() string { return v.str }

// Equal is strict equality: same kind and same payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindStr {
		return v.str == o.str
	}
	return v.num == o.num
}

// String renders numbers in decimal and strings quoted.
func (v Value) String() string {
	if v.kind == KindStr {
		return strconv.Quote(v.str)
	}
	return strconv.FormatInt(v.num, 10)
}

// ParseValue reads a command-line style literal: an integer, or a string
// (quoted or bare).
func ParseValue(s string) (Value, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Num(n), nil
	}
	if strings.HasPrefix(s, `"`) {
		u, err := strconv.Unquote(s)
		if err != nil {
			return Value{}, fmt.Errorf("bad string literal %s: %w", s, err)
		}
		s = u
	}
	if len(s) > MaxString {
		return Value{}, &Error{Kind: KindStringTooLong, Length: len(s)}
	}
	return Str(s), nil
}

// wrap32 truncates n to 32-bit two's complement.
func wrap32(n int64) int64 {
	return int64(int32(n))
}

func trimRight(s string) string {
	return strings.TrimRight(s, " ")
}

// ---------------------------------------------------------------------------
// Encoding: a Value is a bare JSON/CBOR number or string
// ---------------------------------------------------------------------------

// MarshalJSON encodes the value as a JSON number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindStr {
		return json.Marshal(v.str)
	}
	return []byte(strconv.FormatInt(v.num, 10)), nil
}

// UnmarshalJSON accepts a JSON number or string.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Str(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("machine: value must be a number or string: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*v = Num(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("machine: bad number %s: %w", n, err)
	}
	*v = Num(int64(math.Trunc(f)))
	return nil
}

// MarshalCBOR encodes the value as a CBOR integer or text string.
func (v Value) MarshalCBOR() ([]byte, error) {
	if v.kind == KindStr {
		return cbor.Marshal(v.str)
	}
	return cbor.Marshal(v.num)
}

// UnmarshalCBOR accepts a CBOR integer or text string.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var raw interface{}
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case string:
		*v = Str(x)
	case uint64:
		*v = Num(int64(x))
	case int64:
		*v = Num(x)
	default:
		return fmt.Errorf("machine: cbor value of type %T is not a register value", raw)
	}
	return nil
}
