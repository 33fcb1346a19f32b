package transaction

import (
	"os"
	"path/filepath"
	"testing"

	condacore "github.com/condacore/conda-core"
)

func TestChooseLinkTypeAlwaysCopy(t *testing.T) {
	if got := chooseLinkType(t.TempDir(), t.TempDir(), true, true); got != condacore.LinkCopy {
		t.Fatalf("alwaysCopy=true: got %s, want copy", got)
	}
}

func TestChooseLinkTypeSameFilesystemPrefersHardlink(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatal(err)
	}
	got := chooseLinkType(src, dst, false, false)
	if got != condacore.LinkHard {
		t.Fatalf("got %s, want hard (same tmp filesystem)", got)
	}
}

func TestMaterializeFileCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "nested", "dst.txt")

	linkType, err := materializeFile(src, dst, condacore.LinkCopy)
	if err != nil {
		t.Fatal(err)
	}
	if linkType != condacore.LinkCopy {
		t.Fatalf("got link type %s, want copy", linkType)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("copied content mismatch: %q", got)
	}
}

func TestMaterializeFileHardlinkSharesInode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "dst.txt")

	if _, err := materializeFile(src, dst, condacore.LinkHard); err != nil {
		t.Fatal(err)
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(srcInfo, dstInfo) {
		t.Fatal("hardlinked files should report the same underlying file")
	}
}
