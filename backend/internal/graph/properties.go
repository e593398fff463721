package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ValueKind tags the variant held by a Value
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindMap
	KindList
)

// Value is a JSON-compatible property value: string, number, bool,
// nested map or list. The zero Value is null.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	m    Properties
	list []Value
}

func String(s string) Value      { return Value{kind: KindString, str: s} }
func Number(f float64) Value     { return Value{kind: KindNumber, num: f} }
func Int(i int64) Value          { return Value{kind: KindNumber, num: float64(i)} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Map(p Properties) Value     { return Value{kind: KindMap, m: p} }
func List(items ...Value) Value  { return Value{kind: KindList, list: items} }
func Time(t time.Time) Value     { return String(t.UTC().Format(time.RFC3339)) }
func (v Value) Kind() ValueKind  { return v.kind }
func (v Value) IsNull() bool     { return v.kind == KindNull }

// Strings builds a list value from plain strings
func Strings(items []string) Value {
	out := make([]Value, 0, len(items))
	for _, s := range items {
		out = append(out, String(s))
	}
	return List(out...)
}

func (v Value) AsString() (string, bool)  { return v.str, v.kind == KindString }
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }
func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) AsMap() (Properties, bool) { return v.m, v.kind == KindMap }
func (v Value) AsList() ([]Value, bool)   { return v.list, v.kind == KindList }

// Interface converts the value back into plain Go types
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		return v.m.Interface()
	case KindList:
		out := make([]any, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.Interface())
		}
		return out
	default:
		return nil
	}
}

func (v Value) clone() Value {
	switch v.kind {
	case KindMap:
		return Map(v.m.Clone())
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.clone()
		}
		return List(items...)
	default:
		return v
	}
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler
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

// ValueOf converts decoded JSON (or simple Go values) into a Value
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case int32:
		return Int(int64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case time.Time:
		return Time(t), nil
	case []string:
		return Strings(t), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			parsed, err := ValueOf(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, parsed)
		}
		return List(items...), nil
	case Properties:
		return Map(t), nil
	case map[string]any:
		props, err := PropertiesOf(t)
		if err != nil {
			return Value{}, err
		}
		return Map(props), nil
	default:
		return Value{}, fmt.Errorf("unsupported property value type %T", x)
	}
}

// Properties is an open mapping of keys to typed values
type Properties map[string]Value

// PropertiesOf converts a decoded JSON object into Properties
func PropertiesOf(m map[string]any) (Properties, error) {
	props := make(Properties, len(m))
	for key, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", key, err)
		}
		props[key] = v
	}
	return props, nil
}

// Interface converts the properties into a plain map
func (p Properties) Interface() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Interface()
	}
	return out
}

// Clone returns a deep copy
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v.clone()
	}
	return out
}

// Keys returns the property keys in sorted order
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetString returns a string property or ""
func (p Properties) GetString(key string) string {
	s, _ := p[key].AsString()
	return s
}

// GetNumber returns a numeric property or 0
func (p Properties) GetNumber(key string) float64 {
	f, _ := p[key].AsNumber()
	return f
}

// encodeProperties serialises properties for stores that cannot hold nested maps
func encodeProperties(p Properties) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeProperties(raw string) (Properties, error) {
	props := Properties{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, err
	}
	return props, nil
}
