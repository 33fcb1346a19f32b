package transaction

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckPathConflictNoExistingFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "absent")
	if err := checkPathConflict(dst, PathConflictPrevent); err != nil {
		t.Fatalf("unexpected error for nonexistent file: %v", err)
	}
}

func TestCheckPathConflictPreventRejectsExisting(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "present")
	if err := os.WriteFile(dst, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := checkPathConflict(dst, PathConflictPrevent); err == nil {
		t.Fatal("expected error for existing file under prevent policy")
	}
}

func TestCheckPathConflictClobberAllowsExisting(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "present")
	if err := os.WriteFile(dst, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := checkPathConflict(dst, PathConflictClobber); err != nil {
		t.Fatalf("clobber policy should not error: %v", err)
	}
}
