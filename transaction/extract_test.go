package transaction

import (
	"path/filepath"
	"testing"
)

func TestSafeJoinRejectsParentTraversal(t *testing.T) {
	base := filepath.Join(t.TempDir(), "extract")
	if _, err := safeJoin(base, "../../etc/passwd"); err == nil {
		t.Fatal("expected traversal outside base to be rejected")
	}
}

func TestSafeJoinAllowsOrdinaryEntry(t *testing.T) {
	base := filepath.Join(t.TempDir(), "extract")
	got, err := safeJoin(base, "info/paths.json")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(base, "info", "paths.json")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSafeJoinAbsoluteEntryIsAnchoredToBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "extract")
	got, err := safeJoin(base, "/etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(base, "etc", "passwd")
	if got != want {
		t.Fatalf("absolute entries should be anchored under base: got %q, want %q", got, want)
	}
}
