package jsonmodel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNotJSON is returned by Parse when the input is not syntactically
// valid JSON.
var ErrNotJSON = errors.New("body is not valid JSON")

// Parse decodes UTF-8 JSON text into a Value tree, preserving object key
// order. Parsing is strict: trailing garbage after the single top-level
// value is rejected.
func Parse(data []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, ErrNotJSON
	}

	// Reject trailing non-whitespace content after the top-level value.
	if _, err := dec.Token(); err != io.EOF {
		return nil, ErrNotJSON
	}
	return v, nil
}

// ParseObject is a convenience wrapper for the common case of requiring
// the top-level value to be a JSON object (spec.md §4.4 BASELINE_ENSURE).
func ParseObject(data []byte) (*Value, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if !v.IsObject() {
		return nil, fmt.Errorf("request JSON body must be an object")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("jsonmodel: expected object key, got %v", keyTok)
				}
				child, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, child)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return ObjectValue(obj), nil
		case '[':
			var arr []*Value
			for dec.More() {
				child, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, child)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return ArrayValue(arr), nil
		default:
			return nil, fmt.Errorf("jsonmodel: unexpected delimiter %v", t)
		}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	default:
		return nil, fmt.Errorf("jsonmodel: unexpected token %v", tok)
	}
}

// Serialize renders v as canonical JSON text: object keys in insertion
// order, no extraneous whitespace, numbers formatted via formatNumber.
// This is the single serializer used both to produce Mutation.bodyText
// and to implement Stringify for object/array values, so two structurally
// equal trees always serialize identically.
func Serialize(v *Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v *Value) error {
	if v == nil {
		buf.WriteString("null")
		return nil
	}
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(formatNumber(v.Number))
	case KindString:
		data, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.Object.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyData, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyData)
			buf.WriteByte(':')
			child, _ := v.Object.Get(k)
			if err := writeValue(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, child := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, child); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("jsonmodel: unknown kind %v", v.Kind)
	}
	return nil
}
