package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestString_IncludesCommitAndPlatform(t *testing.T) {
	oldVersion, oldCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = oldVersion, oldCommit })

	Version, Commit = "v0.3.0", "abc1234"
	got := String()
	if !strings.HasPrefix(got, "v0.3.0 (abc1234) ") {
		t.Fatalf("unexpected version string %q", got)
	}
	if !strings.HasSuffix(got, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Fatalf("expected platform suffix, got %q", got)
	}

	Commit = ""
	if got := String(); strings.Contains(got, "(") {
		t.Fatalf("expected no commit, got %q", got)
	}
}
