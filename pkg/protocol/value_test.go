package protocol

import (
	"encoding/json"
	"math"
	"testing"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		kind Kind
	}{
		{"zero value", Value{}, KindNull},
		{"null", Null(), KindNull},
		{"bool", Bool(true), KindBool},
		{"number", Number(3.5), KindNumber},
		{"string", String("hi"), KindString},
		{"array", Array(Number(1), Number(2)), KindArray},
		{"object", Object(map[string]Value{"a": Null()}), KindObject},
		{"empty object", EmptyObject(), KindObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Kind(); got != tt.kind {
				t.Errorf("Kind() = %v; want %v", got, tt.kind)
			}
		})
	}
}

func TestValueMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null(), "null"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"integer-valued number", Number(42), "42"},
		{"fractional number", Number(2.5), "2.5"},
		{"string", String("hello"), `"hello"`},
		{"string escaping", String(`a"b`), `"a\"b"`},
		{"empty array", Array(), "[]"},
		{"array", Array(Number(1), String("x"), Null()), `[1,"x",null]`},
		{"empty object", EmptyObject(), "{}"},
		{"nil map object", Object(nil), "{}"},
		{
			"object keys sorted",
			Object(map[string]Value{"b": Number(2), "a": Number(1)}),
			`{"a":1,"b":2}`,
		},
		{
			"nested",
			Object(map[string]Value{"items": Array(Object(map[string]Value{"body": String("hi")}))}),
			`{"items":[{"body":"hi"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s; want %s", got, tt.want)
			}
		})
	}
}

func TestValueMarshalNonFinite(t *testing.T) {
	inf := Number(math.Inf(1))
	if _, err := json.Marshal(inf); err == nil {
		t.Error("Marshal(+Inf) succeeded; want error")
	}
}

func TestValueRoundTrip(t *testing.T) {
	docs := []string{
		`null`,
		`true`,
		`1.25`,
		`"text"`,
		`[1,2,[3,null]]`,
		`{"a":{"b":[true,"c"]},"d":0}`,
	}

	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			v, err := ParseValue([]byte(doc))
			if err != nil {
				t.Fatalf("ParseValue() error = %v", err)
			}
			out, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			v2, err := ParseValue(out)
			if err != nil {
				t.Fatalf("ParseValue(round trip) error = %v", err)
			}
			if !v.Equal(v2) {
				t.Errorf("round trip changed value: %s -> %s", doc, out)
			}
		})
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null == null", Null(), Null(), true},
		{"null != bool", Null(), Bool(false), false},
		{"bool mismatch", Bool(true), Bool(false), false},
		{"number equal", Number(1), Number(1), true},
		{"array order matters", Array(Number(1), Number(2)), Array(Number(2), Number(1)), false},
		{
			"object key order does not matter",
			Object(map[string]Value{"a": Number(1), "b": Number(2)}),
			Object(map[string]Value{"b": Number(2), "a": Number(1)}),
			true,
		},
		{
			"object missing key",
			Object(map[string]Value{"a": Number(1)}),
			Object(map[string]Value{"b": Number(1)}),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestValueField(t *testing.T) {
	v := Object(map[string]Value{"name": String("x")})

	fv, ok := v.Field("name")
	if !ok || fv.AsString() != "x" {
		t.Errorf(`Field("name") = %v, %v; want "x", true`, fv, ok)
	}
	if _, ok := v.Field("missing"); ok {
		t.Error(`Field("missing") found; want absent`)
	}
}

func TestValueInterface(t *testing.T) {
	v := Object(map[string]Value{"n": Number(1), "l": Array(String("a"))})
	raw := v.Interface()

	m, ok := raw.(map[string]any)
	if !ok {
		t.Fatalf("Interface() = %T; want map[string]any", raw)
	}
	if m["n"] != 1.0 {
		t.Errorf(`Interface()["n"] = %v; want 1`, m["n"])
	}
	items, ok := m["l"].([]any)
	if !ok || len(items) != 1 || items[0] != "a" {
		t.Errorf(`Interface()["l"] = %v; want ["a"]`, m["l"])
	}
}
