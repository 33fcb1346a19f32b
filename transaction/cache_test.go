package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	condacore "github.com/condacore/conda-core"
)

func TestArchiveMatchesNoExistingFile(t *testing.T) {
	rec := condacore.PackageRecord{Name: "numpy", Version: "1.26.0", Build: "py311_0"}
	ok, err := archiveMatches(filepath.Join(t.TempDir(), "absent.conda"), rec)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no match for a missing archive")
	}
}

func TestArchiveMatchesSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.conda")
	body := []byte("archive payload bytes")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(body)
	digest, err := condacore.NewDigestFromHex(condacore.SHA256, hex.EncodeToString(sum[:]))
	if err != nil {
		t.Fatal(err)
	}
	rec := condacore.PackageRecord{Name: "numpy", Version: "1.26.0", Build: "py311_0", SHA256: digest}

	ok, err := archiveMatches(path, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected digest match")
	}
}

func TestArchiveMatchesSHA256Mismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.conda")
	if err := os.WriteFile(path, []byte("archive payload bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	wrongSum := sha256.Sum256([]byte("different content"))
	digest, err := condacore.NewDigestFromHex(condacore.SHA256, hex.EncodeToString(wrongSum[:]))
	if err != nil {
		t.Fatal(err)
	}
	rec := condacore.PackageRecord{Name: "numpy", Version: "1.26.0", Build: "py311_0", SHA256: digest}

	ok, err := archiveMatches(path, rec)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected digest mismatch to be reported")
	}
}

func TestArchiveMatchesNoDigestIsPresenceOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.conda")
	if err := os.WriteFile(path, []byte("anything"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := condacore.PackageRecord{Name: "numpy", Version: "1.26.0", Build: "py311_0"}

	ok, err := archiveMatches(path, rec)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected presence-only match with no known digest")
	}
}

func TestFirstWritableCacheDirSkipsUnwritable(t *testing.T) {
	unwritable := filepath.Join(string([]byte{0}), "nope")
	writable := t.TempDir()

	got, err := firstWritableCacheDir([]string{unwritable, writable})
	if err != nil {
		t.Fatal(err)
	}
	if got != writable {
		t.Fatalf("got %q, want %q", got, writable)
	}
}

func TestFirstWritableCacheDirAllUnwritable(t *testing.T) {
	bogus := filepath.Join(string([]byte{0}), "nope")
	if _, err := firstWritableCacheDir([]string{bogus}); err == nil {
		t.Fatal("expected error when no candidate directory is writable")
	}
}
