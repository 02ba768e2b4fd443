package gvariant

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Encode serializes value as the given type signature. It accepts the same
// Go types Decode produces; map keys are written in sorted order.
// The resolver only reads repository objects; Encode builds summary and
// commit objects for fake repositories in tests.
func Encode(signature string, value any) ([]byte, error) {
	t, err := parseType(signature)
	if err != nil {
		return nil, err
	}
	return encode(t, value)
}

func encode(t *typeInfo, value any) ([]byte, error) {
	switch t.kind {
	case 'y':
		v, ok := value.(uint8)
		if !ok {
			return nil, typeError(t, value)
		}
		return []byte{v}, nil
	case 'b':
		v, ok := value.(bool)
		if !ok {
			return nil, typeError(t, value)
		}
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case 'n', 'q', 'i', 'u', 'h', 'x', 't', 'd':
		return encodeNumber(t, value)
	case 's', 'o', 'g':
		v, ok := value.(string)
		if !ok {
			return nil, typeError(t, value)
		}
		return append([]byte(v), 0), nil
	case 'v':
		v, ok := value.(Variant)
		if !ok {
			return nil, typeError(t, value)
		}
		inner, err := Encode(v.Type, v.Value)
		if err != nil {
			return nil, err
		}
		out := append(inner, 0)
		return append(out, v.Type...), nil
	case 'm':
		if value == nil {
			return nil, nil
		}
		inner, err := encode(t.elem, value)
		if err != nil {
			return nil, err
		}
		if t.elem.isFixed() {
			return inner, nil
		}
		return append(inner, 0), nil
	case 'a':
		return encodeArray(t, value)
	case '(', '{':
		fields, ok := value.([]any)
		if !ok || len(fields) != len(t.fields) {
			return nil, typeError(t, value)
		}
		return encodeTuple(t, fields)
	}
	return nil, fmt.Errorf("gvariant: cannot encode type %s", t.sig)
}

func encodeNumber(t *typeInfo, value any) ([]byte, error) {
	out := make([]byte, t.fixedSize)
	switch v := value.(type) {
	case int16:
		if t.kind != 'n' {
			return nil, typeError(t, value)
		}
		binary.LittleEndian.PutUint16(out, uint16(v))
	case uint16:
		if t.kind != 'q' {
			return nil, typeError(t, value)
		}
		binary.LittleEndian.PutUint16(out, v)
	case int32:
		if t.kind != 'i' && t.kind != 'h' {
			return nil, typeError(t, value)
		}
		binary.LittleEndian.PutUint32(out, uint32(v))
	case uint32:
		if t.kind != 'u' {
			return nil, typeError(t, value)
		}
		binary.LittleEndian.PutUint32(out, v)
	case int64:
		if t.kind != 'x' {
			return nil, typeError(t, value)
		}
		binary.LittleEndian.PutUint64(out, uint64(v))
	case uint64:
		if t.kind != 't' {
			return nil, typeError(t, value)
		}
		binary.LittleEndian.PutUint64(out, v)
	case float64:
		if t.kind != 'd' {
			return nil, typeError(t, value)
		}
		binary.LittleEndian.PutUint64(out, math.Float64bits(v))
	default:
		return nil, typeError(t, value)
	}
	return out, nil
}

func encodeArray(t *typeInfo, value any) ([]byte, error) {
	var elems [][]byte
	switch v := value.(type) {
	case []byte:
		if t.elem.kind != 'y' {
			return nil, typeError(t, value)
		}
		return append([]byte(nil), v...), nil
	case map[string]any:
		if t.elem.kind != '{' || !isStringKind(t.elem.fields[0].kind) {
			return nil, typeError(t, value)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b, err := encodeTuple(t.elem, []any{k, v[k]})
			if err != nil {
				return nil, err
			}
			elems = append(elems, b)
		}
	case []any:
		for _, e := range v {
			b, err := encode(t.elem, e)
			if err != nil {
				return nil, err
			}
			elems = append(elems, b)
		}
	default:
		return nil, typeError(t, value)
	}

	var body []byte
	var ends []int
	for _, e := range elems {
		body = pad(body, t.elem.align)
		body = append(body, e...)
		ends = append(ends, len(body))
	}
	if t.elem.isFixed() {
		return body, nil
	}
	return appendOffsets(body, ends), nil
}

func encodeTuple(t *typeInfo, fields []any) ([]byte, error) {
	var body []byte
	var ends []int
	for i, f := range t.fields {
		b, err := encode(f, fields[i])
		if err != nil {
			return nil, fmt.Errorf("gvariant: %s field %d: %w", t.sig, i, err)
		}
		body = pad(body, f.align)
		body = append(body, b...)
		if !f.isFixed() && i != len(t.fields)-1 {
			ends = append(ends, len(body))
		}
	}
	if t.isFixed() {
		body = pad(body, t.align)
		if len(body) == 0 {
			body = []byte{0}
		}
		return body, nil
	}
	// Tuple offsets are stored last-to-first.
	for i, j := 0, len(ends)-1; i < j; i, j = i+1, j-1 {
		ends[i], ends[j] = ends[j], ends[i]
	}
	return appendOffsets(body, ends), nil
}

func appendOffsets(body []byte, offsets []int) []byte {
	if len(offsets) == 0 {
		return body
	}
	size := 1
	for _, s := range []int{1, 2, 4, 8} {
		size = s
		if offsetSize(len(body)+len(offsets)*s) == s {
			break
		}
	}
	for _, off := range offsets {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(off))
		body = append(body, buf[:size]...)
	}
	return body
}

func pad(b []byte, align int) []byte {
	for len(b)%align != 0 {
		b = append(b, 0)
	}
	return b
}

func typeError(t *typeInfo, value any) error {
	return fmt.Errorf("gvariant: cannot encode %T as %s", value, t.sig)
}
