// Package compact shapes an analysis result into a bounded record at the
// persistence boundary: exact-decimal numbers, capped collection sizes and
// a hard ceiling on the encoded record.
package compact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind tags a Value variant.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// Value is a typed JSON-shaped document. Working on a tagged variant
// instead of interface{} keeps the compaction transform explicit and
// exhaustively testable.
type Value struct {
	Kind Kind
	Bool bool
	// Num holds the number's decimal text exactly as it will be written.
	Num  string
	Str  string
	List []Value
	Map  map[string]Value
}

func Null() Value                       { return Value{Kind: KindNull} }
func BoolValue(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func NumberValue(n string) Value        { return Value{Kind: KindNumber, Num: n} }
func StringValue(s string) Value        { return Value{Kind: KindString, Str: s} }
func ListValue(vs []Value) Value        { return Value{Kind: KindList, List: vs} }
func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// FromJSON decodes JSON into a Value. Numbers keep their source text so
// integers never pick up a float representation in transit.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("decoding record: %w", err)
	}
	return fromAny(raw)
}

func fromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return BoolValue(v), nil
	case json.Number:
		return NumberValue(v.String()), nil
	case string:
		return StringValue(v), nil
	case []any:
		list := make([]Value, len(v))
		for i, e := range v {
			ev, err := fromAny(e)
			if err != nil {
				return Value{}, err
			}
			list[i] = ev
		}
		return ListValue(list), nil
	case map[string]any:
		m := make(map[string]Value, len(v))
		for k, e := range v {
			ev, err := fromAny(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = ev
		}
		return MapValue(m), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// MarshalJSON writes the Value with map keys sorted, so identical records
// always encode to identical bytes.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.Bool))
	case KindNumber:
		if v.Num == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.Num)
		}
	case KindString:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindList:
		buf.WriteByte('[')
		for i, e := range v.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.Map[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
	return nil
}

// Equal reports whether two Values encode identically.
func Equal(a, b Value) bool {
	ab, errA := a.MarshalJSON()
	bb, errB := b.MarshalJSON()
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
