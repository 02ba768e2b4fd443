// Package ref handles flatpak ref names of the form kind/id/arch/branch.
package ref

import (
	"fmt"
	"strings"
)

const (
	KindApp     = "app"
	KindRuntime = "runtime"
)

// Extension runtimes that are never counted as downloads.
var ignoredRuntimeSuffixes = []string{".Debug", ".Locale", ".Sources"}

type Ref struct {
	Kind   string
	ID     string
	Arch   string
	Branch string
}

func (r Ref) String() string {
	return strings.Join([]string{r.Kind, r.ID, r.Arch, r.Branch}, "/")
}

func Parse(name string) (Ref, error) {
	parts := strings.Split(name, "/")
	if len(parts) != 4 {
		return Ref{}, fmt.Errorf("invalid ref %q: want kind/id/arch/branch", name)
	}
	for _, p := range parts {
		if p == "" {
			return Ref{}, fmt.Errorf("invalid ref %q: empty segment", name)
		}
	}
	return Ref{Kind: parts[0], ID: parts[1], Arch: parts[2], Branch: parts[3]}, nil
}

// ShouldKeep reports whether downloads of name are worth recording.
func ShouldKeep(name string) bool {
	parts := strings.Split(name, "/")
	switch parts[0] {
	case KindApp:
		return true
	case KindRuntime:
		if len(parts) < 2 || parts[1] == "" {
			return false
		}
		for _, suffix := range ignoredRuntimeSuffixes {
			if strings.HasSuffix(parts[1], suffix) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
