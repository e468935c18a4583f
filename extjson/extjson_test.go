package extjson

import (
	"reflect"
	"strings"
	"testing"

	"github.com/chazu/procmachine/asm"
	"github.com/chazu/procmachine/machine"
)

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func TestMarshalTagsMaps(t *testing.T) {
	b, err := Marshal(map[int]string{2: "b", 1: "a"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"__dtype":"map","value":[[1,"a"],[2,"b"]]}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestMarshalTagsSets(t *testing.T) {
	b, err := Marshal(map[string]struct{}{"b": {}, "a": {}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"__dtype":"set","value":["a","b"]}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

type Inner struct {
	A int `json:"a"`
}

type sample struct {
	Inner
	Name  string              `json:"name"`
	Tags  map[string]struct{} `json:"tags,omitempty"`
	Skip  int                 `json:"-"`
	Count int
	Ptr   *int `json:"ptr"`
}

func TestMarshalStructTags(t *testing.T) {
	b, err := Marshal(sample{Inner: Inner{A: 1}, Name: "x", Skip: 9, Count: 2})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"a":1,"name":"x","Count":2,"ptr":null}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	m := map[string]int{}
	for _, k := range strings.Split("q w e r t y u i o p", " ") {
		m[k] = len(k)
	}
	first, _ := Marshal(m)
	for i := 0; i < 10; i++ {
		again, _ := Marshal(m)
		if string(again) != string(first) {
			t.Fatalf("encodings differ: %s vs %s", first, again)
		}
	}
}

func TestMarshalRejectsFuncs(t *testing.T) {
	if _, err := Marshal(struct{ F func() }{F: func() {}}); err == nil {
		t.Error("expected an error for a func field")
	}
}

// ---------------------------------------------------------------------------
// Round trips
// ---------------------------------------------------------------------------

func TestParseRoundTripsDynamicContainers(t *testing.T) {
	x := Map{
		int64(1): Set{"a": {}, int64(2): {}},
		"k":      []any{"v", 1.5, true, nil},
		"nested": Map{"inner": Set{}},
	}
	b, err := Marshal(x)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(got, x) {
		t.Errorf("round trip changed value:\n got %#v\nwant %#v", got, x)
	}
}

func TestUnmarshalStruct(t *testing.T) {
	n := 7
	in := sample{Inner: Inner{A: 3}, Name: "y", Tags: map[string]struct{}{"t": {}}, Count: 4, Ptr: &n}
	b, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out sample
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestProgramRoundTrip(t *testing.T) {
	pr, err := asm.Parse(`mainproc "main" {
  // doubles its input
  parameter "out"
  register "s" = "ab"
  register "n" = -3
  add "out" "out"
  goto 3 if "n"
  call "helper" "out"
  breakpoint
}

proc "helper" {
  parameter "x"
  call "empty"
}

proc "empty" {
}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := Marshal(pr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back machine.Program
	if err := Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(pr, &back) {
		t.Errorf("program changed in transit:\n%s", b)
	}
}

func TestUnmarshalAcceptsPlainObjects(t *testing.T) {
	var m map[string]int
	if err := Unmarshal([]byte(`{"a":1,"b":2}`), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(m, map[string]int{"a": 1, "b": 2}) {
		t.Errorf("got %v", m)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	var m map[string]int
	if err := Unmarshal([]byte(`{"__dtype":"set","value":["a"]}`), &m); err == nil {
		t.Error("decoding a set into a map should fail")
	}
	if err := Unmarshal([]byte(`{}`), m); err == nil {
		t.Error("a non-pointer target should fail")
	}
	if err := Unmarshal([]byte(`{"__dtype":"map","value":[1]}`), &m); err == nil {
		t.Error("a malformed entry should fail")
	}
	if _, err := Parse([]byte(`{"__dtype":"set","value":[[1]]}`)); err == nil {
		t.Error("an array set member should fail")
	}
	if _, err := Parse([]byte(`1 2`)); err == nil {
		t.Error("trailing data should fail")
	}
}
