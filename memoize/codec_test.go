package memoize

import (
	"errors"
	"reflect"
	"testing"
)

type payload struct {
	Name   string
	Counts []int
	Meta   map[string]string
}

func TestGobCodec_RoundTrip(t *testing.T) {
	codec := GobCodec{}
	in := payload{
		Name:   "report",
		Counts: []int{1, 2, 3},
		Meta:   map[string]string{"region": "eu"},
	}

	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out payload
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := JSONCodec{}
	in := payload{
		Name:   "report",
		Counts: []int{4, 5},
		Meta:   map[string]string{"region": "us"},
	}

	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out payload
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestGobCodec_MarshalError(t *testing.T) {
	codec := GobCodec{}
	_, err := codec.Marshal(func() {})
	if err == nil {
		t.Fatal("Marshal of a func should fail")
	}
	if !errors.Is(err, ErrEncode) {
		t.Errorf("error %v is not ErrEncode", err)
	}
}

func TestCopyValue_Independence(t *testing.T) {
	in := payload{
		Name:   "mutable",
		Counts: []int{1, 2, 3},
		Meta:   map[string]string{"k": "v"},
	}

	out, err := copyValue(GobCodec{}, in)
	if err != nil {
		t.Fatalf("copyValue failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("copy mismatch: got %+v, want %+v", out, in)
	}

	// Mutating the copy must not reach the original.
	out.Counts[0] = 99
	out.Meta["k"] = "changed"
	if in.Counts[0] != 1 {
		t.Error("mutating the copied slice reached the original")
	}
	if in.Meta["k"] != "v" {
		t.Error("mutating the copied map reached the original")
	}
}
