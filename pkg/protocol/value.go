package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Bool"
	case KindNumber:
		return "Number"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindObject:
		return "Object"
	default:
		return "Unknown"
	}
}

// Value is a tagged JSON value: null, bool, number, string, array, or object.
//
// Function arguments and subscription results are opaque to the protocol
// engine; Value keeps them representable without resorting to interface{}
// soup, so encode/decode stay total and switches over Kind stay exhaustive.
//
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	a    []Value
	o    map[string]Value
}

// Null returns the null value.
func Null() Value {
	return Value{}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Number returns a numeric value.
func Number(n float64) Value {
	return Value{kind: KindNumber, n: n}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Array returns an array value with the given items.
func Array(items ...Value) Value {
	return Value{kind: KindArray, a: items}
}

// Object returns an object value with the given fields.
// The map is used directly, not copied.
func Object(fields map[string]Value) Value {
	return Value{kind: KindObject, o: fields}
}

// EmptyObject returns an object value with no fields.
func EmptyObject() Value {
	return Value{kind: KindObject}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool returns the boolean payload. Valid only for KindBool.
func (v Value) AsBool() bool {
	return v.b
}

// AsNumber returns the numeric payload. Valid only for KindNumber.
func (v Value) AsNumber() float64 {
	return v.n
}

// AsString returns the string payload. Valid only for KindString.
func (v Value) AsString() string {
	return v.s
}

// Items returns the array payload. Valid only for KindArray.
func (v Value) Items() []Value {
	return v.a
}

// Fields returns the object payload. Valid only for KindObject.
// May be nil for an empty object.
func (v Value) Fields() map[string]Value {
	return v.o
}

// Field returns the named object field and whether it exists.
func (v Value) Field(name string) (Value, bool) {
	fv, ok := v.o[name]
	return fv, ok
}

// Equal reports deep equality between two values.
// NaN numbers compare equal to each other so round-trips stay reflexive.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		if math.IsNaN(v.n) && math.IsNaN(other.n) {
			return true
		}
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.a) != len(other.a) {
			return false
		}
		for i := range v.a {
			if !v.a[i].Equal(other.a[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.o) != len(other.o) {
			return false
		}
		for k, fv := range v.o {
			ov, ok := other.o[k]
			if !ok || !fv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("protocol: number %v is not representable in JSON", v.n)
		}
		return []byte(strconv.FormatFloat(v.n, 'g', -1, 64)), nil
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.a {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		// Sorted keys keep encoding deterministic for tests and logs.
		keys := make([]string, 0, len(v.o))
		for k := range v.o {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.o[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("protocol: invalid value kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromAny converts a decoded encoding/json value (nil, bool, float64, string,
// []any, map[string]any) into a Value.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(n), nil
	case string:
		return String(x), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = iv
		}
		return Array(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, fv := range x {
			pv, err := FromAny(fv)
			if err != nil {
				return Value{}, err
			}
			fields[k] = pv
		}
		return Object(fields), nil
	default:
		return Value{}, fmt.Errorf("protocol: unsupported value type %T", raw)
	}
}

// Interface converts the value back to the encoding/json representation.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		items := make([]any, len(v.a))
		for i, item := range v.a {
			items[i] = item.Interface()
		}
		return items
	case KindObject:
		fields := make(map[string]any, len(v.o))
		for k, fv := range v.o {
			fields[k] = fv.Interface()
		}
		return fields
	default:
		return nil
	}
}

// String implements fmt.Stringer using the JSON encoding.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// ParseValue decodes a JSON document into a Value.
func ParseValue(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Value{}, err
	}
	return v, nil
}
