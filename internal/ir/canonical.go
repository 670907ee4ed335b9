package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON.
// This is the ONLY serialization used for stream digests and golden files.
//
// Key differences from standard json.Marshal:
// 1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
// 2. No HTML escaping (< > & are NOT escaped)
// 3. Strings are NFC normalized
// 4. No floats (returns error)
//
// SQL NULL column values (IRNull) serialize as null; a bare Go nil is rejected.
func MarshalCanonical(v any) ([]byte, error) {
	return marshalCanonical(v)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("untyped nil is forbidden in canonical JSON")
	case IRNull:
		return []byte("null"), nil
	case IRString:
		return marshalCanonicalString(string(val))
	case IRInt:
		return []byte(fmt.Sprintf("%d", val)), nil
	case IRBool:
		return marshalCanonicalBool(bool(val)), nil
	case IRArray:
		return marshalCanonicalArray(val)
	case IRObject:
		return marshalCanonicalObject(val)
	case string:
		return marshalCanonicalString(val)
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		return marshalCanonicalBool(val), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := toCanonicalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return marshalCanonicalArray(arr)
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := toCanonicalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return marshalCanonicalObject(obj)
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// toCanonicalValue converts a Go value to an IRValue, rejecting untyped nil.
func toCanonicalValue(v any) (IRValue, error) {
	if v == nil {
		return nil, fmt.Errorf("untyped nil is forbidden")
	}
	return FromGo(v)
}

func marshalCanonicalBool(b bool) []byte {
	if b {
		return []byte("true")
	}
	return []byte("false")
}

// marshalCanonicalString produces canonical JSON string with NFC normalization.
// RFC 8785 compliance:
// - No HTML escaping (<, >, & are NOT escaped)
// - U+2028 and U+2029 are NOT escaped
// - Only control characters (U+0000-U+001F), backslash, and quote are escaped
func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds trailing newline, remove it
	result := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})

	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes Go's encoder emits
// back into literal characters, leaving escaped backslashes (\\u2028) alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' {
			out = append(out, data[i])
			continue
		}
		// Escape sequences are copied as a unit so an escaped backslash never
		// pairs with the text after it.
		if i+5 < len(data) && data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			if data[i+5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, data[i])
		if i+1 < len(data) {
			out = append(out, data[i+1])
			i++
		}
	}
	return out
}

// marshalCanonicalArray marshals an array to canonical JSON.
func marshalCanonicalArray(arr IRArray) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// marshalCanonicalObject marshals an object to canonical JSON with RFC 8785 key ordering.
func marshalCanonicalObject(obj IRObject) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// EventObject converts a captured event into its canonical object form.
// Absent before/after images are omitted rather than serialized as null.
func EventObject(ev CapturedEvent) IRObject {
	obj := IRObject{
		"seq":   IRInt(ev.Seq),
		"op":    IRString(ev.Op),
		"ts_ms": IRInt(ev.TsMs),
		"table": IRString(ev.Table),
		"pk":    IRString(ev.PK),
	}
	if ev.Before != nil {
		obj["before"] = ev.Before
	}
	if ev.After != nil {
		obj["after"] = ev.After
	}
	return obj
}

// OperationObject converts an operation into its canonical object form.
func OperationObject(op Operation) IRObject {
	obj := IRObject{
		"t":     IRInt(op.T),
		"op":    IRString(op.Op),
		"table": IRString(op.Table),
		"pk":    IRObject{"id": IRString(op.PK.ID)},
	}
	if op.Before != nil {
		obj["before"] = op.Before
	}
	if op.After != nil {
		obj["after"] = op.After
	}
	return obj
}

// MarshalEventsCanonical serializes an event stream as a canonical JSON array.
func MarshalEventsCanonical(events []CapturedEvent) ([]byte, error) {
	arr := make(IRArray, len(events))
	for i, ev := range events {
		arr[i] = EventObject(ev)
	}
	return MarshalCanonical(arr)
}

// MarshalScenarioCanonical serializes a scenario as canonical JSON.
func MarshalScenarioCanonical(s *Scenario) ([]byte, error) {
	ops := make(IRArray, len(s.Ops))
	for i, op := range s.Ops {
		ops[i] = OperationObject(op)
	}
	obj := IRObject{
		"id":  IRString(s.ID),
		"ops": ops,
	}
	if len(s.Tables) > 0 {
		tables := make(IRArray, len(s.Tables))
		for i, t := range s.Tables {
			tables[i] = IRString(t)
		}
		obj["tables"] = tables
	}
	return MarshalCanonical(obj)
}
