// Package jsontree models decoded JSON payloads as an explicit sum type so the
// resolver can navigate versioned upstream shapes without reflection.
package jsontree

import (
	"fmt"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"
)

// Kind discriminates the JSON value variants.
type Kind uint8

const (
	// Null represents a JSON null or an absent value.
	Null Kind = iota
	// Bool represents a JSON boolean.
	Bool
	// Number represents a JSON number.
	Number
	// String represents a JSON string.
	String
	// Array represents a JSON array.
	Array
	// Object represents a JSON object.
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Value is a decoded JSON node. The zero value is Null. Accessors are nil-safe
// so callers can chain Field/Index lookups without intermediate checks.
type Value struct {
	kind   Kind
	b      bool
	num    float64
	str    string
	items  []*Value
	fields map[string]*Value
}

// Decode parses raw JSON into a Value tree.
func Decode(data []byte) (*Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return fromAny(raw), nil
}

func fromAny(raw any) *Value {
	switch v := raw.(type) {
	case nil:
		return &Value{kind: Null}
	case bool:
		return &Value{kind: Bool, b: v}
	case float64:
		return &Value{kind: Number, num: v}
	case string:
		return &Value{kind: String, str: v}
	case []any:
		items := make([]*Value, 0, len(v))
		for _, item := range v {
			items = append(items, fromAny(item))
		}
		return &Value{kind: Array, items: items}
	case map[string]any:
		fields := make(map[string]*Value, len(v))
		for key, field := range v {
			fields[key] = fromAny(field)
		}
		return &Value{kind: Object, fields: fields}
	default:
		return &Value{kind: Null}
	}
}

// Kind returns the variant of the value; nil values report Null.
func (v *Value) Kind() Kind {
	if v == nil {
		return Null
	}
	return v.kind
}

// Str returns the string payload, or "" for non-string values.
func (v *Value) Str() string {
	if v == nil || v.kind != String {
		return ""
	}
	return v.str
}

// Float64 returns the numeric payload, or 0 for non-number values.
func (v *Value) Float64() float64 {
	if v == nil || v.kind != Number {
		return 0
	}
	return v.num
}

// Int64 returns the numeric payload truncated to int64.
func (v *Value) Int64() int64 {
	return int64(v.Float64())
}

// Bool returns the boolean payload, or false for non-bool values.
func (v *Value) Bool() bool {
	if v == nil || v.kind != Bool {
		return false
	}
	return v.b
}

// Len returns the element count for arrays, the field count for objects, and 0 otherwise.
func (v *Value) Len() int {
	if v == nil {
		return 0
	}
	switch v.kind {
	case Array:
		return len(v.items)
	case Object:
		return len(v.fields)
	default:
		return 0
	}
}

// Index returns the i-th array element, or nil when out of range or not an array.
func (v *Value) Index(i int) *Value {
	if v == nil || v.kind != Array || i < 0 || i >= len(v.items) {
		return nil
	}
	return v.items[i]
}

// Field returns the named object field, or nil when absent or not an object.
func (v *Value) Field(name string) *Value {
	if v == nil || v.kind != Object {
		return nil
	}
	return v.fields[name]
}

// Has reports whether the object carries the named field.
func (v *Value) Has(name string) bool {
	if v == nil || v.kind != Object {
		return false
	}
	_, ok := v.fields[name]
	return ok
}

// Keys returns the object's field names in sorted order.
func (v *Value) Keys() []string {
	if v == nil || v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for key := range v.fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Items returns the array elements, or nil for non-arrays.
func (v *Value) Items() []*Value {
	if v == nil || v.kind != Array {
		return nil
	}
	return v.items
}

// Interface converts the value back into plain decoded-JSON form.
func (v *Value) Interface() any {
	if v == nil {
		return nil
	}
	switch v.kind {
	case Null:
		return nil
	case Bool:
		return v.b
	case Number:
		return v.num
	case String:
		return v.str
	case Array:
		out := make([]any, 0, len(v.items))
		for _, item := range v.items {
			out = append(out, item.Interface())
		}
		return out
	case Object:
		out := make(map[string]any, len(v.fields))
		for key, field := range v.fields {
			out[key] = field.Interface()
		}
		return out
	}
	return nil
}

// JSON renders the value as compact JSON for diagnostics, truncated to limit
// bytes when limit > 0.
func (v *Value) JSON(limit int) string {
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprintf("<unencodable: %v>", err)
	}
	if limit > 0 && len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}

// NumberString returns a numeric value formatted as its shortest decimal
// representation, or the string payload for string values.
func (v *Value) NumberString() string {
	switch v.Kind() {
	case Number:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case String:
		return v.str
	default:
		return ""
	}
}
