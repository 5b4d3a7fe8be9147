package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
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
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a JSON-shaped tagged variant. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	m    map[string]Value
	l    []Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Int wraps an integer as a number.
func Int(i int) Value { return Value{kind: KindNumber, n: float64(i)} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Map wraps a mapping. The map is copied.
func Map(m map[string]Value) Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return Value{kind: KindMap, m: out}
}

// List wraps a sequence. The elements are copied.
func List(values ...Value) Value {
	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = v.Clone()
	}
	return Value{kind: KindList, l: out}
}

// Kind reports the variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns the numeric payload.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

// AsInt returns the numeric payload when it is integral.
func (v Value) AsInt() (int, bool) {
	if v.kind != KindNumber || v.n != math.Trunc(v.n) {
		return 0, false
	}
	return int(v.n), true
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsMap returns a copy of the mapping payload.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return Map(v.m).m, true
}

// AsList returns a copy of the sequence payload.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return List(v.l...).l, true
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		return Map(v.m)
	case KindList:
		return List(v.l...)
	default:
		return v
	}
}

// Equal reports deep equality.
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
		return v.n == other.n
	case KindString:
		return v.s == other.s
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, item := range v.m {
			o, ok := other.m[k]
			if !ok || !item.Equal(o) {
				return false
			}
		}
		return true
	case KindList:
		if len(v.l) != len(other.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(other.l[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts v into the plain Go shape encoding/json produces:
// nil, bool, float64, string, map[string]any or []any.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Native()
		}
		return out
	case KindList:
		out := make([]any, len(v.l))
		for i, item := range v.l {
			out[i] = item.Native()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(raw)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return strconv.AppendBool(nil, v.b), nil
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("settings: number %v is not representable in JSON", v.n)
		}
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(k)
			buf.Write(key)
			buf.WriteByte(':')
			item, err := v.m[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(item)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.l {
			if i > 0 {
				buf.WriteByte(',')
			}
			raw, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(raw)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("settings: unknown value kind %d", v.kind)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseValue decodes a JSON document into a Value.
func ParseValue(data []byte) (Value, error) {
	var v Value
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return v, nil
}

// ValueOf converts a Go value into a Value. It accepts the shapes produced by
// encoding/json and YAML decoders, Go integer and float kinds, json.Number,
// Value and Blob.
func ValueOf(x any) (Value, error) {
	switch typed := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return typed.Clone(), nil
	case Blob:
		return Map(typed), nil
	case bool:
		return Bool(typed), nil
	case string:
		return String(typed), nil
	case float64:
		return Number(typed), nil
	case float32:
		return Number(float64(typed)), nil
	case int:
		return Int(typed), nil
	case int64:
		return Number(float64(typed)), nil
	case int32:
		return Number(float64(typed)), nil
	case uint:
		return Number(float64(typed)), nil
	case uint64:
		return Number(float64(typed)), nil
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("settings: invalid number %q: %w", typed, err)
		}
		return Number(f), nil
	case map[string]any:
		out := make(map[string]Value, len(typed))
		for k, item := range typed {
			converted, err := ValueOf(item)
			if err != nil {
				return Value{}, fmt.Errorf("settings: key %q: %w", k, err)
			}
			out[k] = converted
		}
		return Value{kind: KindMap, m: out}, nil
	case []any:
		out := make([]Value, len(typed))
		for i, item := range typed {
			converted, err := ValueOf(item)
			if err != nil {
				return Value{}, fmt.Errorf("settings: index %d: %w", i, err)
			}
			out[i] = converted
		}
		return Value{kind: KindList, l: out}, nil
	}
	return valueOfReflect(reflect.ValueOf(x))
}

// MustValue is ValueOf for literals known to be convertible.
func MustValue(x any) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

func valueOfReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Number(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Number(rv.Float()), nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return valueOfReflect(rv.Elem())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		out := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			out[i] = item
		}
		return Value{kind: KindList, l: out}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("settings: unsupported map key type %s", rv.Type().Key())
		}
		if rv.IsNil() {
			return Null(), nil
		}
		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := ValueOf(iter.Value().Interface())
			if err != nil {
				return Value{}, err
			}
			out[iter.Key().String()] = item
		}
		return Value{kind: KindMap, m: out}, nil
	}
	if !rv.IsValid() {
		return Null(), nil
	}
	// Structs and other types go through their JSON form.
	raw, err := json.Marshal(rv.Interface())
	if err != nil {
		return Value{}, fmt.Errorf("settings: unsupported value of type %s: %w", rv.Type(), err)
	}
	return ParseValue(raw)
}
