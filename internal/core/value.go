package core

// value.go defines the typed value tree produced by normalization.
//
// A record is an *Object whose fields are one of five shapes: String, Number,
// Bool, Array or a nested *Object. A missing value is simply an absent key;
// nil is never stored.

import (
	"bytes"
	"encoding/json"
)

// Value is a normalized field value. The set of implementations is closed.
type Value interface {
	isValue()
}

// String is a text value.
type String string

// Number is a numeric value. It holds the source literal unchanged, which
// is always a valid JSON number, so no digits are lost to float rounding.
type Number string

// Bool is a boolean value.
type Bool bool

// Array holds repeated sibling values in source order.
type Array []Value

func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue() {}
func (Array) isValue() {}
func (*Object) isValue() {}

// Object is an insertion-ordered map of field name to value.
type Object struct {
	keys   []string
	fields map[string]Value
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{fields: make(map[string]Value)}
}

// Set stores v under key. Setting an existing key replaces the value in place.
// A nil value removes the key.
func (o *Object) Set(key string, v Value) {
	if v == nil {
		o.Delete(key)
		return
	}
	if o.fields == nil {
		o.fields = make(map[string]Value)
	}
	if _, ok := o.fields[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.fields[key]
	return v, ok
}

// Delete removes key if present.
func (o *Object) Delete(key string) {
	if _, ok := o.fields[key]; !ok {
		return
	}
	delete(o.fields, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the field names in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of fields.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// MarshalJSON writes fields in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.fields[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON writes the literal as a bare JSON number.
func (n Number) MarshalJSON() ([]byte, error) {
	return json.Marshal(json.Number(n))
}

// plain converts a value into the generic form used for canonical encoding.
func plain(v Value) any {
	switch x := v.(type) {
	case String:
		return string(x)
	case Number:
		return json.Number(x)
	case Bool:
		return bool(x)
	case Array:
		out := make([]any, 0, len(x))
		for _, item := range x {
			if item == nil {
				continue
			}
			out = append(out, plain(item))
		}
		return out
	case *Object:
		out := make(map[string]any, x.Len())
		for _, k := range x.keys {
			if fv := x.fields[k]; fv != nil {
				out[k] = plain(fv)
			}
		}
		return out
	}
	return nil
}
