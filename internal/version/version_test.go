package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Version+" (commit "+Commit) {
		t.Fatalf("unexpected version string %q", s)
	}
	if !strings.Contains(s, runtime.Version()) {
		t.Fatalf("expected Go version in %q", s)
	}
	if Short() != Version {
		t.Fatalf("Short() = %q, want %q", Short(), Version)
	}
}
