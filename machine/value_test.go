package machine

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestValue_Equal(t *testing.T) {
	if !Num(3).Equal(Num(3)) {
		t.Error("Num(3) should equal Num(3)")
	}
	if Num(0).Equal(Str("")) {
		t.Error("number and string must never be equal")
	}
	if !Str("ab").Equal(Str("ab")) {
		t.Error("Str(ab) should equal Str(ab)")
	}
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal([]Value{Num(-4), Str("hi")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `[-4,"hi"]` {
		t.Errorf("json = %s, want [-4,\"hi\"]", data)
	}
	var got []Value
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(Num(-4)) || !got[1].Equal(Str("hi")) {
		t.Errorf("decoded %v", got)
	}
}

func TestValue_CBOR(t *testing.T) {
	for _, v := range []Value{Num(7), Num(-7), Str("abc")} {
		data, err := cbor.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal %v: %v", v, err)
		}
		var got Value
		if err := cbor.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal %v: %v", v, err)
		}
		if !got.Equal(v) {
			t.Errorf("cbor round trip: got %v, want %v", got, v)
		}
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("42")
	if err != nil || !v.Equal(Num(42)) {
		t.Errorf("ParseValue(42) = %v, %v", v, err)
	}
	v, err = ParseValue(`"a b"`)
	if err != nil || !v.Equal(Str("a b")) {
		t.Errorf("ParseValue(quoted) = %v, %v", v, err)
	}
	v, err = ParseValue("hello")
	if err != nil || !v.Equal(Str("hello")) {
		t.Errorf("ParseValue(bare) = %v, %v", v, err)
	}
}

// ---------------------------------------------------------------------------
// Alphabet
// ---------------------------------------------------------------------------

func TestAlphabet_Casts(t *testing.T) {
	a := DefaultAlphabet
	if a.Size() != 26 {
		t.Fatalf("Size = %d, want 26", a.Size())
	}
	cases := []struct {
		v    Value
		want int64
	}{
		{Str("a"), 0},
		{Str("zebra"), 25},
		{Str(" "), -1},
		{Str(""), -1},
		{Str("A"), -1},
		{Num(12), 12},
	}
	for _, c := range cases {
		if got := a.ToNum(c.v); got != c.want {
			t.Errorf("ToNum(%v) = %d, want %d", c.v, got, c.want)
		}
	}
	if got := a.ToStr(Num(2)); got != "c" {
		t.Errorf("ToStr(2) = %q, want c", got)
	}
	if got := a.ToStr(Num(-1)); got != " " {
		t.Errorf("ToStr(-1) = %q, want space", got)
	}
	if got := a.ToStr(Num(27)); got != "b" {
		t.Errorf("ToStr(27) = %q, want b", got)
	}
	for _, n := range []int64{-2, -3, -27} {
		if got := a.ToStr(Num(n)); got != "" {
			t.Errorf("ToStr(%d) = %q, want empty", n, got)
		}
	}
}

func TestNumTruncatesTo32Bits(t *testing.T) {
	cases := []struct {
		in, want int64
	}{
		{9223372036854775807, -1},
		{-9223372036854775808, 0},
		{1<<32 + 5000, 5000},
		{2147483648, -2147483648},
		{-42, -42},
	}
	for _, c := range cases {
		if got := Num(c.in).Int(); got != c.want {
			t.Errorf("Num(%d) = %d, want %d", c.in, got, c.want)
		}
	}

	v, err := ParseValue("4294967297")
	if err != nil {
		t.Fatalf("ParseValue: %v", err)
	}
	if !v.Equal(Num(1)) {
		t.Errorf("ParseValue(4294967297) = %v, want 1", v)
	}

	var j Value
	if err := j.UnmarshalJSON([]byte("4294967298")); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !j.Equal(Num(2)) {
		t.Errorf("UnmarshalJSON(4294967298) = %v, want 2", j)
	}
}

func TestAlphabet_ShiftWraps(t *testing.T) {
	a := DefaultAlphabet
	if got := a.Shift("xyz", 2); got != "zab" {
		t.Errorf("Shift(xyz, 2) = %q, want zab", got)
	}
	if got := a.Shift("a b!", -1); got != "z a!" {
		t.Errorf("Shift(a b!, -1) = %q, want %q", got, "z a!")
	}
}

func TestNewAlphabet_Rejects(t *testing.T) {
	for _, chars := range []string{"", "aa", "a b"} {
		if _, err := NewAlphabet(chars); err == nil {
			t.Errorf("NewAlphabet(%q) should fail", chars)
		}
	}
}
