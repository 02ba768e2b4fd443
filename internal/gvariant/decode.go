package gvariant

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Decode parses data as a serialized value of the given type signature.
func Decode(signature string, data []byte) (any, error) {
	t, err := parseType(signature)
	if err != nil {
		return nil, err
	}
	return decode(t, data)
}

func decode(t *typeInfo, data []byte) (any, error) {
	if t.isFixed() && len(data) != t.fixedSize {
		return nil, fmt.Errorf("gvariant: %s needs %d bytes, have %d", t.sig, t.fixedSize, len(data))
	}
	switch t.kind {
	case 'y':
		return data[0], nil
	case 'b':
		return data[0] != 0, nil
	case 'n':
		return int16(binary.LittleEndian.Uint16(data)), nil
	case 'q':
		return binary.LittleEndian.Uint16(data), nil
	case 'i', 'h':
		return int32(binary.LittleEndian.Uint32(data)), nil
	case 'u':
		return binary.LittleEndian.Uint32(data), nil
	case 'x':
		return int64(binary.LittleEndian.Uint64(data)), nil
	case 't':
		return binary.LittleEndian.Uint64(data), nil
	case 'd':
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
	case 's', 'o', 'g':
		return decodeString(data)
	case 'v':
		return decodeVariant(data)
	case 'm':
		return decodeMaybe(t, data)
	case 'a':
		return decodeArray(t, data)
	case '(', '{':
		return decodeTuple(t, data)
	}
	return nil, fmt.Errorf("gvariant: cannot decode type %s", t.sig)
}

func decodeString(data []byte) (string, error) {
	if len(data) == 0 || data[len(data)-1] != 0 {
		return "", fmt.Errorf("gvariant: string is not nul-terminated")
	}
	s := data[:len(data)-1]
	if bytes.IndexByte(s, 0) >= 0 {
		return "", fmt.Errorf("gvariant: string contains embedded nul")
	}
	return string(s), nil
}

func decodeVariant(data []byte) (Variant, error) {
	sep := bytes.LastIndexByte(data, 0)
	if sep < 0 {
		return Variant{}, fmt.Errorf("gvariant: variant has no type separator")
	}
	sig := string(data[sep+1:])
	t, err := parseType(sig)
	if err != nil {
		return Variant{}, err
	}
	v, err := decode(t, data[:sep])
	if err != nil {
		return Variant{}, fmt.Errorf("gvariant: variant of type %s: %w", sig, err)
	}
	return Variant{Type: sig, Value: v}, nil
}

func decodeMaybe(t *typeInfo, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if t.elem.isFixed() {
		return decode(t.elem, data)
	}
	if data[len(data)-1] != 0 {
		return nil, fmt.Errorf("gvariant: maybe value missing trailing byte")
	}
	return decode(t.elem, data[:len(data)-1])
}

func decodeArray(t *typeInfo, data []byte) (any, error) {
	if t.elem.kind == 'y' {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	elems, err := splitArray(t.elem, data)
	if err != nil {
		return nil, err
	}
	if t.elem.kind == '{' && isStringKind(t.elem.fields[0].kind) {
		m := make(map[string]any, len(elems))
		for _, e := range elems {
			v, err := decodeTuple(t.elem, e)
			if err != nil {
				return nil, err
			}
			pair := v.([]any)
			m[pair[0].(string)] = pair[1]
		}
		return m, nil
	}
	out := make([]any, 0, len(elems))
	for _, e := range elems {
		v, err := decode(t.elem, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// splitArray returns the serialized bytes of each element of an array.
func splitArray(elem *typeInfo, data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if elem.isFixed() {
		if len(data)%elem.fixedSize != 0 {
			return nil, fmt.Errorf("gvariant: array of %s has %d bytes, not a multiple of %d", elem.sig, len(data), elem.fixedSize)
		}
		n := len(data) / elem.fixedSize
		out := make([][]byte, n)
		for i := range out {
			out[i] = data[i*elem.fixedSize : (i+1)*elem.fixedSize]
		}
		return out, nil
	}

	osz := offsetSize(len(data))
	last, err := readOffset(data, len(data)-osz, osz)
	if err != nil {
		return nil, err
	}
	if last > len(data)-osz || (len(data)-last)%osz != 0 {
		return nil, fmt.Errorf("gvariant: array of %s has invalid framing offsets", elem.sig)
	}
	n := (len(data) - last) / osz
	out := make([][]byte, n)
	start := 0
	for i := 0; i < n; i++ {
		end, err := readOffset(data, last+i*osz, osz)
		if err != nil {
			return nil, err
		}
		start = alignUp(start, elem.align)
		if start > end || end > last {
			return nil, fmt.Errorf("gvariant: array of %s element %d out of bounds", elem.sig, i)
		}
		out[i] = data[start:end]
		start = end
	}
	return out, nil
}

func decodeTuple(t *typeInfo, data []byte) (any, error) {
	out := make([]any, 0, len(t.fields))
	if len(t.fields) == 0 {
		return out, nil
	}
	osz := offsetSize(len(data))
	used := 0
	pos := 0
	for i, f := range t.fields {
		pos = alignUp(pos, f.align)
		var end int
		switch {
		case f.isFixed():
			end = pos + f.fixedSize
		case i == len(t.fields)-1:
			end = len(data) - used*osz
		default:
			used++
			off, err := readOffset(data, len(data)-used*osz, osz)
			if err != nil {
				return nil, err
			}
			end = off
		}
		if pos > end || end > len(data)-used*osz {
			return nil, fmt.Errorf("gvariant: %s field %d out of bounds", t.sig, i)
		}
		v, err := decode(f, data[pos:end])
		if err != nil {
			return nil, fmt.Errorf("gvariant: %s field %d: %w", t.sig, i, err)
		}
		out = append(out, v)
		pos = end
	}
	return out, nil
}

func readOffset(data []byte, at, size int) (int, error) {
	if size == 0 || at < 0 || at+size > len(data) {
		return 0, fmt.Errorf("gvariant: framing offset out of range")
	}
	var v uint64
	switch size {
	case 1:
		v = uint64(data[at])
	case 2:
		v = uint64(binary.LittleEndian.Uint16(data[at:]))
	case 4:
		v = uint64(binary.LittleEndian.Uint32(data[at:]))
	case 8:
		v = binary.LittleEndian.Uint64(data[at:])
	}
	if v > uint64(len(data)) {
		return 0, fmt.Errorf("gvariant: framing offset %d beyond %d bytes", v, len(data))
	}
	return int(v), nil
}

func isStringKind(k byte) bool {
	return k == 's' || k == 'o' || k == 'g'
}
