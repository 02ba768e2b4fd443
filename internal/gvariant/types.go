// Package gvariant reads and writes the GVariant serialization format used by
// OSTree for summary files and commit objects.
//
// Values are decoded into plain Go values:
//
//	y uint8     b bool      n int16     q uint16
//	i int32     u uint32    h int32     x int64
//	t uint64    d float64   s o g string
//	v Variant   m* nil or the element
//	ay []byte   a{s*} map[string]any    other arrays []any
//	tuples and dict entries []any
//
// Multi-byte numbers are little-endian. OSTree stores some integers (commit
// timestamps, summary sizes) big-endian; callers swap those themselves.
package gvariant

import (
	"fmt"
)

// Variant is a value of type v: a value carrying its own type signature.
type Variant struct {
	Type  string
	Value any
}

type typeInfo struct {
	sig       string
	kind      byte
	elem      *typeInfo
	fields    []*typeInfo
	align     int
	fixedSize int
}

func (t *typeInfo) isFixed() bool {
	return t.fixedSize > 0
}

// parseType parses exactly one complete type from sig.
func parseType(sig string) (*typeInfo, error) {
	t, rest, err := parseOne(sig)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("gvariant: trailing characters in type %q", sig)
	}
	return t, nil
}

func parseOne(sig string) (*typeInfo, string, error) {
	if sig == "" {
		return nil, "", fmt.Errorf("gvariant: unexpected end of type")
	}
	c := sig[0]
	switch c {
	case 'y', 'b':
		return &typeInfo{sig: sig[:1], kind: c, align: 1, fixedSize: 1}, sig[1:], nil
	case 'n', 'q':
		return &typeInfo{sig: sig[:1], kind: c, align: 2, fixedSize: 2}, sig[1:], nil
	case 'i', 'u', 'h':
		return &typeInfo{sig: sig[:1], kind: c, align: 4, fixedSize: 4}, sig[1:], nil
	case 'x', 't', 'd':
		return &typeInfo{sig: sig[:1], kind: c, align: 8, fixedSize: 8}, sig[1:], nil
	case 's', 'o', 'g':
		return &typeInfo{sig: sig[:1], kind: c, align: 1}, sig[1:], nil
	case 'v':
		return &typeInfo{sig: sig[:1], kind: c, align: 8}, sig[1:], nil
	case 'a', 'm':
		elem, rest, err := parseOne(sig[1:])
		if err != nil {
			return nil, "", err
		}
		return &typeInfo{
			sig:   sig[:len(sig)-len(rest)],
			kind:  c,
			elem:  elem,
			align: elem.align,
		}, rest, nil
	case '(', '{':
		closer := byte(')')
		if c == '{' {
			closer = '}'
		}
		t := &typeInfo{kind: c, align: 1}
		rest := sig[1:]
		for {
			if rest == "" {
				return nil, "", fmt.Errorf("gvariant: unterminated container in %q", sig)
			}
			if rest[0] == closer {
				rest = rest[1:]
				break
			}
			f, r, err := parseOne(rest)
			if err != nil {
				return nil, "", err
			}
			t.fields = append(t.fields, f)
			rest = r
		}
		if c == '{' {
			if len(t.fields) != 2 {
				return nil, "", fmt.Errorf("gvariant: dict entry needs 2 fields in %q", sig)
			}
			switch t.fields[0].kind {
			case 'a', 'm', '(', '{', 'v':
				return nil, "", fmt.Errorf("gvariant: dict entry key must be basic in %q", sig)
			}
		}
		t.sig = sig[:len(sig)-len(rest)]
		t.computeLayout()
		return t, rest, nil
	default:
		return nil, "", fmt.Errorf("gvariant: unknown type character %q", c)
	}
}

// computeLayout fills in alignment and fixed size for a tuple or dict entry.
func (t *typeInfo) computeLayout() {
	fixed := true
	offset := 0
	for _, f := range t.fields {
		if f.align > t.align {
			t.align = f.align
		}
		if !f.isFixed() {
			fixed = false
			continue
		}
		offset = alignUp(offset, f.align) + f.fixedSize
	}
	if !fixed {
		return
	}
	if len(t.fields) == 0 {
		t.fixedSize = 1
		return
	}
	t.fixedSize = alignUp(offset, t.align)
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// offsetSize is the width of framing offsets in a container of size n.
func offsetSize(n int) int {
	switch {
	case n == 0:
		return 0
	case n <= 0xff:
		return 1
	case n <= 0xffff:
		return 2
	case uint64(n) <= 0xffffffff:
		return 4
	default:
		return 8
	}
}
