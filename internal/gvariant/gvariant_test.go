package gvariant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors from the GVariant serialization specification.
func TestEncode_SpecVectors(t *testing.T) {
	tests := []struct {
		name  string
		sig   string
		value any
		want  []byte
	}{
		{"string", "s", "hello world", append([]byte("hello world"), 0)},
		{"maybe string", "ms", "hello world", append([]byte("hello world"), 0, 0)},
		{"array of bool", "ab", []any{true, false, false, true, true}, []byte{1, 0, 0, 1, 1}},
		{"struct", "(si)", []any{"foo", int32(-1)}, []byte{'f', 'o', 'o', 0, 0xff, 0xff, 0xff, 0xff, 0x04}},
		{"struct array", "a(si)", []any{[]any{"hi", int32(-2)}, []any{"bye", int32(-1)}}, []byte{
			'h', 'i', 0, 0, 0xfe, 0xff, 0xff, 0xff, 0x03, 0, 0, 0,
			'b', 'y', 'e', 0, 0xff, 0xff, 0xff, 0xff, 0x04, 0x09, 0x15,
		}},
		{"string array", "as", []any{"i", "can", "has", "strings?"}, []byte{
			'i', 0, 'c', 'a', 'n', 0, 'h', 'a', 's', 0,
			's', 't', 'r', 'i', 'n', 'g', 's', '?', 0,
			0x02, 0x06, 0x0a, 0x13,
		}},
		{"dict entry", "{si}", []any{"a key", int32(514)}, []byte{'a', ' ', 'k', 'e', 'y', 0, 0, 0, 0x02, 0x02, 0, 0, 0x06}},
		{"unit", "()", []any{}, []byte{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.sig, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := Decode(tt.sig, got)
			require.NoError(t, err)
			assert.Equal(t, tt.value, back)
		})
	}
}

func TestDecode_Variant(t *testing.T) {
	data, err := Encode("v", Variant{Type: "as", Value: []any{"app/org.foo/x86_64/stable"}})
	require.NoError(t, err)

	v, err := Decode("v", data)
	require.NoError(t, err)
	assert.Equal(t, Variant{Type: "as", Value: []any{"app/org.foo/x86_64/stable"}}, v)
}

func TestDecode_CommitShape(t *testing.T) {
	const sig = "(a{sv}aya(say)sstayay)"
	root := make([]byte, 32)
	for i := range root {
		root[i] = byte(i)
	}
	commit := []any{
		map[string]any{
			"xa.ref":             Variant{Type: "s", Value: "app/org.foo/x86_64/stable"},
			"ostree.ref-binding": Variant{Type: "as", Value: []any{"app/org.foo/x86_64/beta"}},
		},
		[]byte{},
		[]any{},
		"subject",
		"body",
		uint64(1528192876),
		root,
		[]byte{0xaa, 0xbb},
	}

	data, err := Encode(sig, commit)
	require.NoError(t, err)

	v, err := Decode(sig, data)
	require.NoError(t, err)
	fields := v.([]any)
	require.Len(t, fields, 8)
	meta := fields[0].(map[string]any)
	assert.Equal(t, "app/org.foo/x86_64/stable", meta["xa.ref"].(Variant).Value)
	assert.Equal(t, "subject", fields[3])
	assert.Equal(t, uint64(1528192876), fields[5])
	assert.Equal(t, root, fields[6])
	assert.Equal(t, []byte{0xaa, 0xbb}, fields[7])
}

func TestDecode_LargeArrayUsesWideOffsets(t *testing.T) {
	var refs []any
	for i := 0; i < 2000; i++ {
		refs = append(refs, "app/org.example.Application/x86_64/stable")
	}
	data, err := Encode("as", refs)
	require.NoError(t, err)
	require.Greater(t, len(data), 0xffff)

	v, err := Decode("as", data)
	require.NoError(t, err)
	assert.Len(t, v, 2000)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		sig  string
		data []byte
	}{
		{"unterminated string", "s", []byte("abc")},
		{"short fixed", "t", []byte{1, 2, 3}},
		{"bad offset", "as", []byte{'a', 0, 0x7f}},
		{"bad type", "(sz)", []byte{0}},
		{"variant without type", "v", []byte{1, 2}},
		{"truncated tuple", "(ss)", []byte{'a', 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.sig, tt.data)
			assert.Error(t, err)
		})
	}
}
