package ref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldKeep(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"app/org.foo/x86_64/stable", true},
		{"app/org.foo.Debug/x86_64/stable", true},
		{"runtime/org.foo/x86_64/1.0", true},
		{"runtime/org.foo.Locale/x86_64/1.0", false},
		{"runtime/org.foo.Debug/x86_64/1.0", false},
		{"runtime/org.foo.Sources/x86_64/1.0", false},
		{"runtime", false},
		{"unknown/x", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldKeep(tt.name))
		})
	}
}

func TestParse(t *testing.T) {
	r, err := Parse("runtime/org.freedesktop.Sdk/x86_64/1.6")
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: "runtime", ID: "org.freedesktop.Sdk", Arch: "x86_64", Branch: "1.6"}, r)
	assert.Equal(t, "runtime/org.freedesktop.Sdk/x86_64/1.6", r.String())

	_, err = Parse("app/org.foo/x86_64")
	assert.Error(t, err)
	_, err = Parse("app//x86_64/stable")
	assert.Error(t, err)
}
